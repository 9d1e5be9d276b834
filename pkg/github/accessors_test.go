package github

import (
	"encoding/base64"
	"net/http"
	"testing"

	gh "github.com/google/go-github/v45/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notFoundErr() error {
	return &gh.ErrorResponse{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  "Not Found",
	}
}

func TestOpenPullRequests(t *testing.T) {
	c := newTestClient(nil)
	pages := map[int][]*gh.PullRequest{1: numberedPulls(1, 2, 3)}
	c.listPulls = func(page int) ([]*gh.PullRequest, *gh.Response, error) {
		return pages[page], nil, nil
	}

	prs, err := c.OpenPullRequests("")
	require.NoError(t, err)
	assert.Len(t, prs, 3)
}

func TestOpenPullRequestsReviewRequestedIntersection(t *testing.T) {
	c := newTestClient(nil)
	pages := map[int][]*gh.PullRequest{1: numberedPulls(1, 2, 3)}
	c.listPulls = func(page int) ([]*gh.PullRequest, *gh.Response, error) {
		return pages[page], nil, nil
	}

	var queries []string
	searchPages := map[int][]*gh.Issue{
		1: {{Number: gh.Int(2)}, {Number: gh.Int(3)}},
	}
	c.searchIssues = func(query string, page int) (*gh.IssuesSearchResult, *gh.Response, error) {
		queries = append(queries, query)
		return &gh.IssuesSearchResult{Issues: searchPages[page]}, nil, nil
	}

	prs, err := c.OpenPullRequests("alice")
	require.NoError(t, err)
	require.Len(t, prs, 2)
	assert.Equal(t, 2, prs[0].GetNumber())
	assert.Equal(t, 3, prs[1].GetNumber())
	require.NotEmpty(t, queries)
	assert.Equal(t, "is:pr is:open repo:acme/widgets review-requested:alice", queries[0])
}

func TestUserNotFoundIsNotAnError(t *testing.T) {
	c := newTestClient(nil)
	c.getUser = func(login string) (*gh.User, *gh.Response, error) {
		// bot accounts like Copilot 404 on the users endpoint
		return nil, nil, notFoundErr()
	}

	user, err := c.User("Copilot")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestUserOtherErrorsSurface(t *testing.T) {
	c := newTestClient(nil)
	c.getUser = func(login string) (*gh.User, *gh.Response, error) {
		return nil, nil, &gh.ErrorResponse{
			Response: &http.Response{StatusCode: http.StatusInternalServerError},
			Message:  "boom",
		}
	}

	_, err := c.User("alice")
	require.Error(t, err)
}

func TestAuthenticatedUserBestEffort(t *testing.T) {
	c := newTestClient(nil)
	c.getAuthUser = func() (*gh.User, *gh.Response, error) {
		return &gh.User{
			Login:   gh.String("alice"),
			Name:    gh.String("Alice Smith"),
			HTMLURL: gh.String("https://github.com/alice"),
		}, nil, nil
	}
	name, url := c.AuthenticatedUser()
	assert.Equal(t, "Alice Smith", name)
	assert.Equal(t, "https://github.com/alice", url)

	// no display name falls back to the login
	c.getAuthUser = func() (*gh.User, *gh.Response, error) {
		return &gh.User{Login: gh.String("alice")}, nil, nil
	}
	name, _ = c.AuthenticatedUser()
	assert.Equal(t, "alice", name)

	// failures degrade to empty strings
	c.getAuthUser = func() (*gh.User, *gh.Response, error) {
		return nil, nil, notFoundErr()
	}
	name, url = c.AuthenticatedUser()
	assert.Empty(t, name)
	assert.Empty(t, url)
}

func TestFileContent(t *testing.T) {
	c := newTestClient(nil)
	encoded := base64.StdEncoding.EncodeToString([]byte("feature: ANSTRAT-20\n"))
	c.getContents = func(path, ref string) (*gh.RepositoryContent, *gh.Response, error) {
		return &gh.RepositoryContent{
			Encoding: gh.String("base64"),
			Content:  gh.String(encoded),
		}, nil, nil
	}
	assert.Equal(t, "feature: ANSTRAT-20\n", c.FileContent("config.yaml", "abc123"))

	// missing files degrade to empty content
	c.getContents = func(path, ref string) (*gh.RepositoryContent, *gh.Response, error) {
		return nil, nil, notFoundErr()
	}
	assert.Empty(t, c.FileContent("gone.yaml", "abc123"))

	// directories resolve to a nil file content
	c.getContents = func(path, ref string) (*gh.RepositoryContent, *gh.Response, error) {
		return nil, nil, nil
	}
	assert.Empty(t, c.FileContent("docs", "abc123"))
}

func TestDiffErrorsSurface(t *testing.T) {
	c := newTestClient(nil)
	c.getDiff = func(number int) (string, *gh.Response, error) {
		return "", nil, notFoundErr()
	}
	_, err := c.Diff(7)
	require.Error(t, err)

	c.getDiff = func(number int) (string, *gh.Response, error) {
		return "+added line\n", nil, nil
	}
	diff, err := c.Diff(7)
	require.NoError(t, err)
	assert.Equal(t, "+added line\n", diff)
}
