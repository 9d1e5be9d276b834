// Package summary builds one normalized record per surviving open pull
// request: review consensus, ready-for-review date, optional URL
// extraction and optional JIRA rank.
package summary

// URLRef is one extracted link; Text is the last path segment of the URL
// and doubles as the display text in the report.
type URLRef struct {
	Text string
	URL  string
}

// PullRequestRecord is the normalized result of enriching one PR. Records
// are assembled once and never mutated afterwards. Synthetic records stand
// in for always-included JIRA issues that matched no PR; they carry no PR
// number, author or URL.
type PullRequestRecord struct {
	Number    int
	Title     string
	URL       string
	ReadyDate string // YYYY-MM-DD, UTC

	AuthorName string
	AuthorURL  string

	ReviewerCount         int
	ApprovalCount         int
	ChangesRequestedCount int

	// ExtractedURLs is ordered by Text; populated only when URL
	// extraction was requested.
	ExtractedURLs []URLRef

	// ClosedIssueKeys holds every referenced JIRA key found in Closed
	// status, for strikethrough rendering.
	ClosedIssueKeys map[string]bool

	// Rank is "<rank-value> <issue-key>" with pipes replaced by
	// underscores, or empty when unresolvable.
	Rank string

	Synthetic bool
	JiraKey   string
}

// JiraIssueSummary describes one distinct JIRA issue referenced during a
// run, for synthetic rows and title links.
type JiraIssueSummary struct {
	Key    string
	Title  string
	URL    string
	Rank   string
	Closed bool
}
