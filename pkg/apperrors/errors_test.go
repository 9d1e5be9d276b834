package apperrors

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfSurvivesWrapping(t *testing.T) {
	err := New(KindAuth, "authentication failed for %s", "acme/widgets")
	wrapped := errors.Wrap(errors.Wrap(err, "outer"), "outermost")

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindAuth, kind)
	assert.True(t, IsKind(wrapped, KindAuth))
	assert.False(t, IsKind(wrapped, KindNetwork))
}

func TestKindOfForeignError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsKind(nil, KindAPI))
}

func TestConstructors(t *testing.T) {
	err := WithStatus(KindAPI, 500, "server melted", "request failed with status %d", 500)
	assert.Equal(t, "request failed with status 500", err.Error())
	assert.Equal(t, 500, err.StatusCode)
	assert.Equal(t, "server melted", err.Body)

	reset := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := RateLimited(reset, "rate limit exceeded")
	assert.Equal(t, KindRateLimit, rl.Kind)
	assert.Equal(t, reset, rl.ResetAt)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "rate-limit", KindRateLimit.String())
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
