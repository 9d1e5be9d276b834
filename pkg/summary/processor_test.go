package summary

import (
	"regexp"
	"strconv"
	"testing"

	gh "github.com/google/go-github/v45/github"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub serves canned API responses keyed by PR number.
type fakeGitHub struct {
	prs      []*gh.PullRequest
	events   map[int][]*gh.IssueEvent
	reviews  map[int][]*gh.PullRequestReview
	users    map[string]*gh.User
	files    map[int][]*gh.CommitFile
	contents map[string]string
	diffs    map[int]string

	eventsErr  error
	reviewsErr error
	filesErr   error
	diffErr    error
}

func (f *fakeGitHub) OpenPullRequests(reviewRequestedFor string) ([]*gh.PullRequest, error) {
	return f.prs, nil
}

func (f *fakeGitHub) GetPullRequest(number int) (*gh.PullRequest, error) {
	for _, pr := range f.prs {
		if pr.GetNumber() == number {
			return pr, nil
		}
	}
	return nil, errors.Errorf("no such PR #%d", number)
}

func (f *fakeGitHub) IssueEvents(number int) ([]*gh.IssueEvent, error) {
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	return f.events[number], nil
}

func (f *fakeGitHub) Reviews(number int) ([]*gh.PullRequestReview, error) {
	if f.reviewsErr != nil {
		return nil, f.reviewsErr
	}
	return f.reviews[number], nil
}

func (f *fakeGitHub) User(login string) (*gh.User, error) {
	return f.users[login], nil
}

func (f *fakeGitHub) ChangedFiles(number int) ([]*gh.CommitFile, error) {
	if f.filesErr != nil {
		return nil, f.filesErr
	}
	return f.files[number], nil
}

func (f *fakeGitHub) FileContent(path, ref string) string {
	return f.contents[path]
}

func (f *fakeGitHub) Diff(number int) (string, error) {
	if f.diffErr != nil {
		return "", f.diffErr
	}
	return f.diffs[number], nil
}

func pullRequest(number int, title, author string, draft bool) *gh.PullRequest {
	return &gh.PullRequest{
		Number:    gh.Int(number),
		Title:     gh.String(title),
		HTMLURL:   gh.String("https://github.com/acme/widgets/pull/" + strconv.Itoa(number)),
		Draft:     gh.Bool(draft),
		User:      &gh.User{Login: gh.String(author)},
		CreatedAt: ts("2025-05-01T12:00:00Z"),
		Head:      &gh.PullRequestBranch{SHA: gh.String("abc123")},
	}
}

func TestProcessorSinglePRWithoutReviews(t *testing.T) {
	fake := &fakeGitHub{
		prs: []*gh.PullRequest{pullRequest(1, "Add feature X", "alice", false)},
		users: map[string]*gh.User{
			"alice": {Login: gh.String("alice"), Name: gh.String("Alice Smith"), HTMLURL: gh.String("https://github.com/alice")},
		},
	}
	p := NewProcessor(fake, nil, Options{})

	records, jiraIssues, err := p.Run()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, jiraIssues)

	record := records[0]
	assert.Equal(t, 1, record.Number)
	assert.Equal(t, "Add feature X", record.Title)
	assert.Equal(t, "2025-05-01", record.ReadyDate)
	assert.Equal(t, "Alice Smith", record.AuthorName)
	assert.Zero(t, record.ReviewerCount)
	assert.Zero(t, record.ApprovalCount)
	assert.Zero(t, record.ChangesRequestedCount)
	assert.False(t, record.Synthetic)
}

func TestProcessorDraftFilterPartition(t *testing.T) {
	prs := []*gh.PullRequest{
		pullRequest(1, "draft work", "alice", true),
		pullRequest(2, "finished work", "alice", false),
		pullRequest(3, "more draft work", "alice", true),
	}
	fake := func() *fakeGitHub { return &fakeGitHub{prs: prs} }

	all, _, err := NewProcessor(fake(), nil, Options{}).Run()
	require.NoError(t, err)

	drafts, _, err := NewProcessor(fake(), nil, Options{DraftFilter: DraftFilterOnly}).Run()
	require.NoError(t, err)

	nonDrafts, _, err := NewProcessor(fake(), nil, Options{DraftFilter: DraftFilterNone}).Run()
	require.NoError(t, err)

	// the two filters partition the unfiltered set
	assert.Len(t, all, 3)
	assert.Len(t, drafts, 2)
	assert.Len(t, nonDrafts, 1)
	assert.Equal(t, len(all), len(drafts)+len(nonDrafts))
	for _, record := range drafts {
		assert.Contains(t, []int{1, 3}, record.Number)
	}
	assert.Equal(t, 2, nonDrafts[0].Number)
}

func TestProcessorEventsFailureIsFatal(t *testing.T) {
	fake := &fakeGitHub{
		prs:       []*gh.PullRequest{pullRequest(1, "x", "alice", false)},
		eventsErr: errors.New("boom"),
	}
	_, _, err := NewProcessor(fake, nil, Options{}).Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not fetch events for PR #1")
}

func TestProcessorReviewFailureDegrades(t *testing.T) {
	fake := &fakeGitHub{
		prs:        []*gh.PullRequest{pullRequest(1, "x", "alice", false)},
		reviewsErr: errors.New("boom"),
	}
	records, _, err := NewProcessor(fake, nil, Options{}).Run()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Zero(t, records[0].ReviewerCount)
}

func TestProcessorReviewCounts(t *testing.T) {
	fake := &fakeGitHub{
		prs: []*gh.PullRequest{pullRequest(1, "x", "alice", false)},
		reviews: map[int][]*gh.PullRequestReview{
			1: {
				review("bob", "APPROVED", ts("2025-05-02T10:00:00Z")),
				review("carol", "CHANGES_REQUESTED", ts("2025-05-02T11:00:00Z")),
				review("dave", "COMMENTED", ts("2025-05-02T12:00:00Z")),
			},
		},
	}
	records, _, err := NewProcessor(fake, nil, Options{}).Run()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].ReviewerCount)
	assert.Equal(t, 1, records[0].ApprovalCount)
	assert.Equal(t, 1, records[0].ChangesRequestedCount)
}

func TestProcessorFileFilters(t *testing.T) {
	prs := []*gh.PullRequest{
		pullRequest(1, "docs only", "alice", false),
		pullRequest(2, "code only", "alice", false),
		pullRequest(3, "vendored", "alice", false),
	}
	files := map[int][]*gh.CommitFile{
		1: {{Filename: gh.String("docs/readme.md")}},
		2: {{Filename: gh.String("pkg/widget/widget.go")}},
		3: {{Filename: gh.String("vendor/dep/dep.go")}, {Filename: gh.String("docs/notes.md")}},
	}

	records, _, err := NewProcessor(&fakeGitHub{prs: prs, files: files}, nil, Options{
		FileInclude: []*regexp.Regexp{regexp.MustCompile(`^docs/`)},
		FileExclude: []*regexp.Regexp{regexp.MustCompile(`^vendor/`)},
	}).Run()
	require.NoError(t, err)

	// exclude beats include: PR 3 touches docs/ but also vendor/
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Number)
}

func TestProcessorFileFetchFailureExcludesWithInclude(t *testing.T) {
	fake := &fakeGitHub{
		prs:      []*gh.PullRequest{pullRequest(1, "x", "alice", false)},
		filesErr: errors.New("boom"),
	}
	records, _, err := NewProcessor(fake, nil, Options{
		FileInclude: []*regexp.Regexp{regexp.MustCompile(`^docs/`)},
	}).Run()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProcessorURLExtraction(t *testing.T) {
	fake := &fakeGitHub{
		prs: []*gh.PullRequest{pullRequest(1, "x", "alice", false)},
		diffs: map[int]string{
			1: "+see https://example.com/foo/bar123\n",
		},
	}
	records, _, err := NewProcessor(fake, nil, Options{
		URLPattern: regexp.MustCompile(`https://example\.com/\S+`),
	}).Run()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []URLRef{{Text: "bar123", URL: "https://example.com/foo/bar123"}}, records[0].ExtractedURLs)
}

func TestProcessorDiffFailureDegrades(t *testing.T) {
	fake := &fakeGitHub{
		prs:     []*gh.PullRequest{pullRequest(1, "x", "alice", false)},
		diffErr: errors.New("boom"),
	}
	records, _, err := NewProcessor(fake, nil, Options{
		URLPattern: regexp.MustCompile(`https://\S+`),
	}).Run()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].ExtractedURLs)
}

func TestProcessorRankFromBody(t *testing.T) {
	pr := pullRequest(1, "x", "alice", false)
	pr.Body = gh.String("| Feature / Initiative | ANSTRAT-10 |")
	fake := &fakeGitHub{prs: []*gh.PullRequest{pr}}

	jc := &fakeJiraMeta{
		types:    map[string]string{"ANSTRAT-10": "Feature"},
		statuses: map[string]string{"ANSTRAT-10": "New"},
		ranks:    map[string]string{"ANSTRAT-10": "0_i01"},
		metadata: issueCache("ANSTRAT-10"),
	}
	records, jiraIssues, err := NewProcessor(fake, jc, Options{
		IssuePatterns: []*regexp.Regexp{anstratPattern},
	}).Run()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0_i01 ANSTRAT-10", records[0].Rank)
	require.Contains(t, jiraIssues, "ANSTRAT-10")
	assert.Equal(t, "0_i01 ANSTRAT-10", jiraIssues["ANSTRAT-10"].Rank)
}

func TestProcessorJiraFetchFailureDegrades(t *testing.T) {
	pr := pullRequest(1, "x", "alice", false)
	pr.Body = gh.String("| Feature / Initiative | ANSTRAT-10 |")
	fake := &fakeGitHub{prs: []*gh.PullRequest{pr}}

	jc := &fakeJiraMeta{metadataErr: errors.New("jira down")}
	records, jiraIssues, err := NewProcessor(fake, jc, Options{
		IssuePatterns: []*regexp.Regexp{anstratPattern},
	}).Run()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Rank)
	assert.Empty(t, jiraIssues)
}

func TestProcessorSyntheticIncludeRows(t *testing.T) {
	fake := &fakeGitHub{prs: nil}
	jc := &fakeJiraMeta{
		types:     map[string]string{"ANSTRAT-50": "Initiative"},
		statuses:  map[string]string{"ANSTRAT-50": "Backlog"},
		ranks:     map[string]string{"ANSTRAT-50": "0_i09"},
		summaries: map[string]string{"ANSTRAT-50": "Quarterly initiative"},
		metadata:  issueCache("ANSTRAT-50"),
	}
	records, jiraIssues, err := NewProcessor(fake, jc, Options{
		IssuePatterns: []*regexp.Regexp{anstratPattern},
		JiraInclude:   []string{"ANSTRAT-50"},
	}).Run()
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.True(t, record.Synthetic)
	assert.Equal(t, "ANSTRAT-50", record.JiraKey)
	assert.Equal(t, "0_i09 ANSTRAT-50", record.Rank)
	assert.Equal(t, "Quarterly initiative", jiraIssues["ANSTRAT-50"].Title)
}

func TestProcessorIncludeAlreadyOnPRIsNotDuplicated(t *testing.T) {
	pr := pullRequest(1, "x", "alice", false)
	pr.Body = gh.String("| Feature / Initiative | ANSTRAT-50 |")
	fake := &fakeGitHub{prs: []*gh.PullRequest{pr}}
	jc := &fakeJiraMeta{
		types:    map[string]string{"ANSTRAT-50": "Feature"},
		statuses: map[string]string{"ANSTRAT-50": "New"},
		ranks:    map[string]string{"ANSTRAT-50": "0_i09"},
		metadata: issueCache("ANSTRAT-50"),
	}
	records, _, err := NewProcessor(fake, jc, Options{
		IssuePatterns: []*regexp.Regexp{anstratPattern},
		JiraInclude:   []string{"ANSTRAT-50"},
	}).Run()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Synthetic)
}

func TestProcessorIncludeWithoutRankSkipped(t *testing.T) {
	fake := &fakeGitHub{prs: nil}
	jc := &fakeJiraMeta{
		// a Story never qualifies for a rank
		types:    map[string]string{"ANSTRAT-60": "Story"},
		statuses: map[string]string{"ANSTRAT-60": "New"},
		metadata: issueCache("ANSTRAT-60"),
	}
	records, _, err := NewProcessor(fake, jc, Options{
		IssuePatterns: []*regexp.Regexp{anstratPattern},
		JiraInclude:   []string{"ANSTRAT-60"},
	}).Run()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProcessorSpecificPRNumber(t *testing.T) {
	fake := &fakeGitHub{
		prs: []*gh.PullRequest{
			pullRequest(1, "first", "alice", false),
			pullRequest(2, "second", "alice", false),
		},
	}
	records, _, err := NewProcessor(fake, nil, Options{PRNumber: 2}).Run()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "second", records[0].Title)

	_, _, err = NewProcessor(fake, nil, Options{PRNumber: 99}).Run()
	require.Error(t, err)
}
