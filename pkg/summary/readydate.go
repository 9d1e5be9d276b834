package summary

import (
	"time"

	gh "github.com/google/go-github/v45/github"
)

const dateLayout = "2006-01-02"

// ReadyForReviewDate returns the day (UTC) the PR most recently moved from
// draft to ready, falling back to its creation day when no such transition
// exists in the event stream.
func ReadyForReviewDate(pr *gh.PullRequest, events []*gh.IssueEvent) string {
	var ready *time.Time
	for _, event := range events {
		if event.GetEvent() != "ready_for_review" || event.CreatedAt == nil {
			continue
		}
		createdAt := event.CreatedAt.UTC()
		if ready == nil || createdAt.After(*ready) {
			ready = &createdAt
		}
	}
	if ready != nil {
		return ready.Format(dateLayout)
	}
	if pr.CreatedAt != nil {
		return pr.CreatedAt.UTC().Format(dateLayout)
	}
	return ""
}
