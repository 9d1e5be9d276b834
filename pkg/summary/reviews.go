package summary

import (
	"time"

	gh "github.com/google/go-github/v45/github"
)

// ReviewCounts is the consensus derived from the latest review state per
// reviewer. Comment-only reviewers count toward Reviewers but neither of
// the other two, so Approvals+ChangesRequested <= Reviewers.
type ReviewCounts struct {
	Reviewers        int
	Approvals        int
	ChangesRequested int
}

type latestReview struct {
	state       string
	submittedAt time.Time
}

// LatestReviewStates reduces a review list to the chronologically latest
// state per reviewer. Reviews without a submission timestamp (pending) are
// ignored, and a newer COMMENTED review never overwrites an existing
// formal verdict for the same reviewer.
func LatestReviewStates(reviews []*gh.PullRequestReview) map[string]string {
	latest := map[string]latestReview{}
	for _, review := range reviews {
		if review.SubmittedAt == nil || review.User == nil {
			continue
		}
		user := review.User.GetLogin()
		state := review.GetState()
		submittedAt := review.SubmittedAt.UTC()

		existing, seen := latest[user]
		if seen && !submittedAt.After(existing.submittedAt) {
			continue
		}
		if seen && existing.state != "COMMENTED" && state == "COMMENTED" {
			continue
		}
		latest[user] = latestReview{state: state, submittedAt: submittedAt}
	}

	states := make(map[string]string, len(latest))
	for user, review := range latest {
		states[user] = review.state
	}
	return states
}

// CountReviews aggregates the per-reviewer latest states into the three
// report counters.
func CountReviews(reviews []*gh.PullRequestReview) ReviewCounts {
	states := LatestReviewStates(reviews)
	counts := ReviewCounts{Reviewers: len(states)}
	for _, state := range states {
		switch state {
		case "APPROVED":
			counts.Approvals++
		case "CHANGES_REQUESTED":
			counts.ChangesRequested++
		}
	}
	return counts
}
