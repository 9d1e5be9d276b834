// Package apperrors defines the closed error taxonomy shared by the GitHub
// and JIRA clients and matched at the command layer for exit handling.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	// KindNetwork covers connection and timeout failures before any HTTP
	// status was received.
	KindNetwork Kind = iota
	// KindAPI is any non-2xx GitHub response not covered by a more
	// specific kind.
	KindAPI
	// KindAuth is HTTP 401.
	KindAuth
	// KindNotFound is HTTP 404.
	KindNotFound
	// KindRateLimit is HTTP 403 with the core quota exhausted, surfaced
	// only after bounded retries.
	KindRateLimit
	// KindValidation is a bad user-supplied regex, column or sort name,
	// raised before any network call.
	KindValidation
	// KindJira is a JIRA connectivity or configuration failure, raised
	// only when the rank column was requested.
	KindJira
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAPI:
		return "api"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not-found"
	case KindRateLimit:
		return "rate-limit"
	case KindValidation:
		return "validation"
	case KindJira:
		return "jira"
	}
	return "unknown"
}

// Error carries the kind plus whatever context the failing call had. Only
// one Error value exists per failure; wrapping for propagation is done with
// github.com/pkg/errors so the kind stays recoverable via errors.As.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Body       string
	ResetAt    time.Time
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WithStatus(kind Kind, statusCode int, body, format string, args ...interface{}) *Error {
	return &Error{
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
		Body:       body,
	}
}

func RateLimited(resetAt time.Time, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindRateLimit,
		Message: fmt.Sprintf(format, args...),
		ResetAt: resetAt,
	}
}

// KindOf unwraps err and reports its kind. The second return is false for
// errors that did not originate from this taxonomy.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
