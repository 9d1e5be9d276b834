package github

import (
	"errors"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v45/github"
	log "github.com/sirupsen/logrus"

	"github.com/openshift-eng/gh-pulls-summary/pkg/apperrors"
)

// maxRateLimitRetries bounds how many rate-limit pauses a single request
// will sit through before the error surfaces to the caller.
const maxRateLimitRetries = 3

// withRetry runs call, sleeping until the reported quota reset whenever
// GitHub answers with an exhausted rate limit. Attempts are counted
// explicitly; any other failure is classified and returned immediately.
func (c *Client) withRetry(desc string, call func() error) error {
	for attempt := 0; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}

		var rateErr *gh.RateLimitError
		if errors.As(err, &rateErr) {
			reset := rateErr.Rate.Reset.Time
			if attempt >= maxRateLimitRetries {
				return apperrors.RateLimited(reset,
					"GitHub API rate limit exceeded after %d retries while %s. "+
						"Rate limit will reset at %s. "+
						"Consider using a GitHub token (--github-token or GITHUB_TOKEN) to raise the limit from 60 to 5000 requests/hour.",
					maxRateLimitRetries, desc, reset.Format(time.RFC3339))
			}
			c.sleepUntilReset(reset, attempt)
			continue
		}

		var abuseErr *gh.AbuseRateLimitError
		if errors.As(err, &abuseErr) {
			if attempt >= maxRateLimitRetries {
				return apperrors.RateLimited(c.now(),
					"GitHub secondary rate limit hit after %d retries while %s", maxRateLimitRetries, desc)
			}
			wait := abuseErr.GetRetryAfter()
			if wait < time.Second {
				wait = time.Second
			}
			log.Warningf("secondary rate limit while %s, waiting %s (retry %d/%d)", desc, wait, attempt+1, maxRateLimitRetries)
			c.sleep(wait)
			continue
		}

		return classify(desc, err)
	}
}

func (c *Client) sleepUntilReset(reset time.Time, attempt int) {
	wait := reset.Sub(c.now()) + time.Second
	if wait < time.Second {
		wait = time.Second
	}
	log.Warningf("rate limit exceeded, current time %s, reset at %s, waiting %s (retry %d/%d)",
		c.now().Format(time.RFC3339), reset.Format(time.RFC3339), wait, attempt+1, maxRateLimitRetries)
	c.sleep(wait)
}

// classify maps a go-github error onto the closed taxonomy. Anything
// without an HTTP response is a network fault.
func classify(desc string, err error) error {
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		status := respErr.Response.StatusCode
		switch status {
		case http.StatusUnauthorized:
			return apperrors.WithStatus(apperrors.KindAuth, status, respErr.Message,
				"GitHub API authentication failed while %s. Check --github-token or GITHUB_TOKEN; you may need a new personal access token.", desc)
		case http.StatusNotFound:
			return apperrors.WithStatus(apperrors.KindNotFound, status, respErr.Message,
				"GitHub API returned 404 while %s. Verify the repository owner and name are correct.", desc)
		default:
			return apperrors.WithStatus(apperrors.KindAPI, status, respErr.Message,
				"GitHub API request failed with status %d while %s: %s", status, desc, respErr.Message)
		}
	}
	return apperrors.New(apperrors.KindNetwork,
		"network error while %s: %v. Please check your connection and try again.", desc, err)
}

// listAll accumulates every page of a collection endpoint, stopping on the
// first empty page. Two identical consecutive pages indicate an upstream
// paging fault, so the pager logs and stops instead of looping.
func listAll[T any](c *Client, desc string, key func(T) string, fetch func(page int) ([]T, *gh.Response, error)) ([]T, error) {
	var all []T
	lastPage := ""
	for page := 1; ; page++ {
		var items []T
		err := c.withRetry(desc, func() error {
			var err error
			items, _, err = fetch(page)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}

		fingerprint := pageFingerprint(items, key)
		if fingerprint == lastPage {
			log.Warningf("duplicate results for pages %d and %d while %s, stopping pagination", page-1, page, desc)
			break
		}

		all = append(all, items...)
		lastPage = fingerprint
	}
	log.Debugf("fetched %d items while %s", len(all), desc)
	return all, nil
}

func pageFingerprint[T any](items []T, key func(T) string) string {
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, key(item))
	}
	return strings.Join(keys, ",")
}
