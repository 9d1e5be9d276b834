package github

import (
	"fmt"
	"strconv"

	gh "github.com/google/go-github/v45/github"
	log "github.com/sirupsen/logrus"

	"github.com/openshift-eng/gh-pulls-summary/pkg/apperrors"
)

// OpenPullRequests returns every open PR in the repository. When
// reviewRequestedFor is set, the full list is intersected with the numbers
// reported by the search API for that reviewer; the list endpoint is still
// fetched in full so downstream callers always see complete PR objects.
func (c *Client) OpenPullRequests(reviewRequestedFor string) ([]*gh.PullRequest, error) {
	desc := fmt.Sprintf("listing open pull requests for %s/%s", c.owner, c.repo)
	prs, err := listAll(c, desc, func(pr *gh.PullRequest) string {
		return strconv.Itoa(pr.GetNumber())
	}, c.listPulls)
	if err != nil {
		return nil, err
	}

	if reviewRequestedFor == "" || len(prs) == 0 {
		return prs, nil
	}

	wanted, err := c.reviewRequestedNumbers(reviewRequestedFor)
	if err != nil {
		return nil, err
	}
	filtered := make([]*gh.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if wanted[pr.GetNumber()] {
			filtered = append(filtered, pr)
		}
	}
	log.Debugf("filtered %d open PRs to %d with review-requested:%s", len(prs), len(filtered), reviewRequestedFor)
	return filtered, nil
}

// reviewRequestedNumbers pages through the issue search endpoint collecting
// the numbers of open PRs where the given user's review is requested.
func (c *Client) reviewRequestedNumbers(user string) (map[int]bool, error) {
	query := fmt.Sprintf("is:pr is:open repo:%s/%s review-requested:%s", c.owner, c.repo, user)
	desc := fmt.Sprintf("searching pull requests with review-requested:%s", user)

	numbers := map[int]bool{}
	for page := 1; ; page++ {
		var result *gh.IssuesSearchResult
		err := c.withRetry(desc, func() error {
			var err error
			result, _, err = c.searchIssues(query, page)
			return err
		})
		if err != nil {
			return nil, err
		}
		if result == nil || len(result.Issues) == 0 {
			break
		}
		for _, issue := range result.Issues {
			numbers[issue.GetNumber()] = true
		}
	}
	return numbers, nil
}

// GetPullRequest fetches a single PR by number.
func (c *Client) GetPullRequest(number int) (*gh.PullRequest, error) {
	var pr *gh.PullRequest
	err := c.withRetry(fmt.Sprintf("fetching pull request #%d", number), func() error {
		var err error
		pr, _, err = c.getPull(number)
		return err
	})
	return pr, err
}

// IssueEvents fetches all issue events for a PR.
func (c *Client) IssueEvents(number int) ([]*gh.IssueEvent, error) {
	desc := fmt.Sprintf("fetching issue events for PR #%d", number)
	return listAll(c, desc, func(ev *gh.IssueEvent) string {
		return strconv.FormatInt(ev.GetID(), 10)
	}, func(page int) ([]*gh.IssueEvent, *gh.Response, error) {
		return c.listIssueEvents(number, page)
	})
}

// Reviews fetches all reviews for a PR.
func (c *Client) Reviews(number int) ([]*gh.PullRequestReview, error) {
	desc := fmt.Sprintf("fetching reviews for PR #%d", number)
	return listAll(c, desc, func(r *gh.PullRequestReview) string {
		return strconv.FormatInt(r.GetID(), 10)
	}, func(page int) ([]*gh.PullRequestReview, *gh.Response, error) {
		return c.listReviews(number, page)
	})
}

// User fetches a user's profile. Bot accounts like "Copilot" legitimately
// 404, so a missing user is reported as nil rather than an error.
func (c *Client) User(login string) (*gh.User, error) {
	var user *gh.User
	err := c.withRetry(fmt.Sprintf("fetching user %s", login), func() error {
		var err error
		user, _, err = c.getUser(login)
		return err
	})
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			log.Debugf("user %s not found, treating profile as absent", login)
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// AuthenticatedUser resolves the token owner's display name and profile
// URL for the report's generator line. Best effort: any failure returns
// empty strings.
func (c *Client) AuthenticatedUser() (name, url string) {
	var user *gh.User
	err := c.withRetry("fetching authenticated user", func() error {
		var err error
		user, _, err = c.getAuthUser()
		return err
	})
	if err != nil || user == nil {
		return "", ""
	}
	name = user.GetName()
	if name == "" {
		name = user.GetLogin()
	}
	return name, user.GetHTMLURL()
}

// ChangedFiles fetches the list of files changed in a PR.
func (c *Client) ChangedFiles(number int) ([]*gh.CommitFile, error) {
	desc := fmt.Sprintf("fetching changed files for PR #%d", number)
	return listAll(c, desc, func(f *gh.CommitFile) string {
		return f.GetFilename()
	}, func(page int) ([]*gh.CommitFile, *gh.Response, error) {
		return c.listFiles(number, page)
	})
}

// FileContent fetches a file's content at a ref. Content is best effort:
// 404s, permission failures and decode errors all degrade to an empty
// string with a warning, never an error.
func (c *Client) FileContent(path, ref string) string {
	var fileContent *gh.RepositoryContent
	err := c.withRetry(fmt.Sprintf("fetching content of %s at %s", path, ref), func() error {
		var err error
		fileContent, _, err = c.getContents(path, ref)
		return err
	})
	if err != nil {
		log.WithError(err).Warningf("could not fetch content of %s at ref %s", path, ref)
		return ""
	}
	if fileContent == nil {
		// path resolved to a directory
		return ""
	}
	content, err := fileContent.GetContent()
	if err != nil {
		log.WithError(err).Warningf("could not decode content of %s at ref %s", path, ref)
		return ""
	}
	return content
}

// Diff fetches a PR's unified diff. Unlike file content this is only
// called when URL extraction was explicitly requested, so failures are
// returned to the caller.
func (c *Client) Diff(number int) (string, error) {
	var diff string
	err := c.withRetry(fmt.Sprintf("fetching diff for PR #%d", number), func() error {
		var err error
		diff, _, err = c.getDiff(number)
		return err
	})
	return diff, err
}
