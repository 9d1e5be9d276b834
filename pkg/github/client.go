// Package github wraps the GitHub REST API calls the summary needs: pull
// request discovery plus the per-PR enrichment fetches. All calls are
// sequential; retry handling is limited to rate-limit backoff.
package github

import (
	"context"
	"time"

	gh "github.com/google/go-github/v45/github"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// Client holds one repository's API surface. The individual calls are
// function fields so tests can substitute fakes without a live client.
type Client struct {
	ctx   context.Context
	owner string
	repo  string

	listPulls       func(page int) ([]*gh.PullRequest, *gh.Response, error)
	getPull         func(number int) (*gh.PullRequest, *gh.Response, error)
	listIssueEvents func(number, page int) ([]*gh.IssueEvent, *gh.Response, error)
	listReviews     func(number, page int) ([]*gh.PullRequestReview, *gh.Response, error)
	getUser         func(login string) (*gh.User, *gh.Response, error)
	getAuthUser     func() (*gh.User, *gh.Response, error)
	listFiles       func(number, page int) ([]*gh.CommitFile, *gh.Response, error)
	getContents     func(path, ref string) (*gh.RepositoryContent, *gh.Response, error)
	getDiff         func(number int) (string, *gh.Response, error)
	searchIssues    func(query string, page int) (*gh.IssuesSearchResult, *gh.Response, error)

	// injectable clock for backoff tests
	now   func() time.Time
	sleep func(time.Duration)
}

// New builds a client for one owner/repo pair. An empty token means
// unauthenticated requests with GitHub's lower rate limits.
func New(ctx context.Context, owner, repo, token string) *Client {
	c := &Client{
		ctx:   ctx,
		owner: owner,
		repo:  repo,
		now:   time.Now,
		sleep: time.Sleep,
	}

	var ghc *gh.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		ghc = gh.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		log.Warning("no GitHub token supplied, using unauthenticated requests with lower rate limits")
		ghc = gh.NewClient(nil)
	}

	c.listPulls = func(page int) ([]*gh.PullRequest, *gh.Response, error) {
		opts := &gh.PullRequestListOptions{
			State:       "open",
			ListOptions: gh.ListOptions{Page: page},
		}
		return ghc.PullRequests.List(ctx, owner, repo, opts)
	}
	c.getPull = func(number int) (*gh.PullRequest, *gh.Response, error) {
		return ghc.PullRequests.Get(ctx, owner, repo, number)
	}
	c.listIssueEvents = func(number, page int) ([]*gh.IssueEvent, *gh.Response, error) {
		return ghc.Issues.ListIssueEvents(ctx, owner, repo, number, &gh.ListOptions{Page: page})
	}
	c.listReviews = func(number, page int) ([]*gh.PullRequestReview, *gh.Response, error) {
		return ghc.PullRequests.ListReviews(ctx, owner, repo, number, &gh.ListOptions{Page: page})
	}
	c.getUser = func(login string) (*gh.User, *gh.Response, error) {
		return ghc.Users.Get(ctx, login)
	}
	c.getAuthUser = func() (*gh.User, *gh.Response, error) {
		return ghc.Users.Get(ctx, "")
	}
	c.listFiles = func(number, page int) ([]*gh.CommitFile, *gh.Response, error) {
		return ghc.PullRequests.ListFiles(ctx, owner, repo, number, &gh.ListOptions{Page: page})
	}
	c.getContents = func(path, ref string) (*gh.RepositoryContent, *gh.Response, error) {
		opts := &gh.RepositoryContentGetOptions{Ref: ref}
		fileContent, _, resp, err := ghc.Repositories.GetContents(ctx, owner, repo, path, opts)
		return fileContent, resp, err
	}
	c.getDiff = func(number int) (string, *gh.Response, error) {
		return ghc.PullRequests.GetRaw(ctx, owner, repo, number, gh.RawOptions{Type: gh.Diff})
	}
	c.searchIssues = func(query string, page int) (*gh.IssuesSearchResult, *gh.Response, error) {
		opts := &gh.SearchOptions{ListOptions: gh.ListOptions{Page: page, PerPage: 100}}
		return ghc.Search.Issues(ctx, query, opts)
	}

	return c
}

func (c *Client) Owner() string { return c.owner }
func (c *Client) Repo() string  { return c.repo }
