package summary

import (
	"regexp"
	"sort"
	"strings"

	jira "github.com/andygrunwald/go-jira"
	gh "github.com/google/go-github/v45/github"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Draft filter values accepted by Options.DraftFilter.
const (
	DraftFilterOnly = "only-drafts"
	DraftFilterNone = "no-drafts"
)

// GitHubAPI is the repository-scoped surface the processor consumes,
// implemented by pkg/github.Client.
type GitHubAPI interface {
	OpenPullRequests(reviewRequestedFor string) ([]*gh.PullRequest, error)
	GetPullRequest(number int) (*gh.PullRequest, error)
	IssueEvents(number int) ([]*gh.IssueEvent, error)
	Reviews(number int) ([]*gh.PullRequestReview, error)
	User(login string) (*gh.User, error)
	ChangedFiles(number int) ([]*gh.CommitFile, error)
	FileContent(path, ref string) string
	Diff(number int) (string, error)
}

// Options carries the validated, pre-compiled configuration for one run.
// Compilation and validation happen at the flag boundary, never here.
type Options struct {
	PRNumber           int
	DraftFilter        string
	FileInclude        []*regexp.Regexp
	FileExclude        []*regexp.Regexp
	URLPattern         *regexp.Regexp
	IssuePatterns      []*regexp.Regexp
	JiraInclude        []string
	ReviewRequestedFor string
}

// Processor drives the per-repository enrichment pipeline. Everything runs
// sequentially: one shared rate-limit budget, one clock.
type Processor struct {
	gh   GitHubAPI
	jira IssueMetadata // nil when the rank column is off
	opts Options
}

func NewProcessor(githubClient GitHubAPI, jiraClient IssueMetadata, opts Options) *Processor {
	return &Processor{gh: githubClient, jira: jiraClient, opts: opts}
}

// Run discovers candidate PRs, filters and enriches each one, and returns
// the normalized records plus the JIRA issues referenced during the run.
// A failure on discovery aborts the run; per-PR enrichment failures
// degrade to safe defaults.
func (p *Processor) Run() ([]PullRequestRecord, map[string]JiraIssueSummary, error) {
	prs, err := p.discover()
	if err != nil {
		return nil, nil, err
	}
	log.Infof("loaded %d candidate pull requests", len(prs))

	cache, prIssueKeys, err := p.prefetchJiraMetadata(prs)
	if err != nil {
		return nil, nil, err
	}

	var records []PullRequestRecord
	for _, pr := range prs {
		record, keep, err := p.enrich(pr, prIssueKeys, cache)
		if err != nil {
			return nil, nil, err
		}
		if keep {
			records = append(records, record)
		}
	}

	jiraIssues := p.summarizeJiraIssues(cache)
	records = p.appendSyntheticRecords(records, jiraIssues)

	log.Info("done loading PR data")
	return records, jiraIssues, nil
}

func (p *Processor) discover() ([]*gh.PullRequest, error) {
	if p.opts.PRNumber > 0 {
		pr, err := p.gh.GetPullRequest(p.opts.PRNumber)
		if err != nil {
			return nil, errors.Wrapf(err, "could not fetch PR #%d", p.opts.PRNumber)
		}
		return []*gh.PullRequest{pr}, nil
	}
	prs, err := p.gh.OpenPullRequests(p.opts.ReviewRequestedFor)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch pull requests")
	}
	return prs, nil
}

// prefetchJiraMetadata collects every JIRA key referenced by any candidate
// PR (plus the always-include keys) and fetches their metadata in one
// batch, parent chains included, before the per-PR loop runs.
func (p *Processor) prefetchJiraMetadata(prs []*gh.PullRequest) (map[string]*jira.Issue, map[int][]string, error) {
	cache := map[string]*jira.Issue{}
	prIssueKeys := map[int][]string{}
	if p.jira == nil || len(p.opts.IssuePatterns) == 0 {
		return cache, prIssueKeys, nil
	}

	log.Info("collecting JIRA issues from all PRs for batch fetch")
	allKeys := map[string]bool{}
	for _, key := range p.opts.JiraInclude {
		allKeys[key] = true
	}
	if len(p.opts.JiraInclude) > 0 {
		log.Infof("adding %d jira-include issues: %s", len(p.opts.JiraInclude), strings.Join(p.opts.JiraInclude, ", "))
	}

	for _, pr := range prs {
		number := pr.GetNumber()
		var fileContents []string
		if len(p.opts.FileInclude) > 0 {
			fileContents = p.matchingFileContents(pr)
		}
		keys := ExtractIssueKeys(pr.GetBody(), fileContents, p.opts.IssuePatterns)
		if len(keys) == 0 {
			continue
		}
		prIssueKeys[number] = keys
		for _, key := range keys {
			allKeys[key] = true
		}
		log.Debugf("PR #%d: found %d JIRA issues", number, len(keys))
	}

	if len(allKeys) == 0 {
		return cache, prIssueKeys, nil
	}

	uniqueKeys := make([]string, 0, len(allKeys))
	for key := range allKeys {
		uniqueKeys = append(uniqueKeys, key)
	}
	sort.Strings(uniqueKeys)

	log.Infof("batch fetching metadata for %d unique JIRA issues", len(uniqueKeys))
	fetched, err := p.jira.GetIssuesMetadata(uniqueKeys, true)
	if err != nil {
		// the rank column degrades to empty rather than aborting the run
		log.WithError(err).Error("failed to batch fetch JIRA metadata")
		return cache, prIssueKeys, nil
	}
	log.Infof("fetched metadata for %d issues with parent fields", len(fetched))
	return fetched, prIssueKeys, nil
}

// matchingFileContents fetches the content of every changed file matching
// a file-include pattern, at the PR's head commit. All failures degrade.
func (p *Processor) matchingFileContents(pr *gh.PullRequest) []string {
	ref := pr.GetHead().GetSHA()
	if ref == "" {
		return nil
	}
	files, err := p.gh.ChangedFiles(pr.GetNumber())
	if err != nil {
		log.WithError(err).Warningf("failed to fetch files for PR #%d, skipping file content scan", pr.GetNumber())
		return nil
	}

	var contents []string
	for _, file := range files {
		path := file.GetFilename()
		if !matchesAny(p.opts.FileInclude, path) {
			continue
		}
		if content := p.gh.FileContent(path, ref); content != "" {
			contents = append(contents, content)
		}
	}
	return contents
}

// enrich applies the filters to one PR and, when it survives, assembles
// its record. The keep return is false for filtered-out PRs.
func (p *Processor) enrich(pr *gh.PullRequest, prIssueKeys map[int][]string, cache map[string]*jira.Issue) (PullRequestRecord, bool, error) {
	number := pr.GetNumber()
	log.Infof("processing PR #%d - %s", number, pr.GetTitle())

	if p.opts.DraftFilter == DraftFilterNone && pr.GetDraft() {
		log.Debugf("excluding draft PR #%d", number)
		return PullRequestRecord{}, false, nil
	}
	if p.opts.DraftFilter == DraftFilterOnly && !pr.GetDraft() {
		log.Debugf("excluding non-draft PR #%d", number)
		return PullRequestRecord{}, false, nil
	}

	if len(p.opts.FileInclude) > 0 || len(p.opts.FileExclude) > 0 {
		if excluded := p.filteredByFiles(number); excluded {
			return PullRequestRecord{}, false, nil
		}
	}

	events, err := p.gh.IssueEvents(number)
	if err != nil {
		return PullRequestRecord{}, false, errors.Wrapf(err, "could not fetch events for PR #%d", number)
	}

	record := PullRequestRecord{
		Number:          number,
		Title:           pr.GetTitle(),
		URL:             pr.GetHTMLURL(),
		ReadyDate:       ReadyForReviewDate(pr, events),
		ClosedIssueKeys: map[string]bool{},
	}

	record.AuthorName, record.AuthorURL = p.authorProfile(pr.GetUser().GetLogin())

	reviews, err := p.gh.Reviews(number)
	if err != nil {
		log.WithError(err).Warningf("failed to fetch reviews for PR #%d, review counts will be zero", number)
		reviews = nil
	}
	counts := CountReviews(reviews)
	record.ReviewerCount = counts.Reviewers
	record.ApprovalCount = counts.Approvals
	record.ChangesRequestedCount = counts.ChangesRequested

	if p.opts.URLPattern != nil {
		diff, err := p.gh.Diff(number)
		if err != nil {
			log.WithError(err).Warningf("failed to fetch diff for PR #%d, skipping URL extraction", number)
		} else {
			record.ExtractedURLs = ExtractURLs(diff, p.opts.URLPattern)
		}
	}

	if p.jira != nil {
		if keys := prIssueKeys[number]; len(keys) > 0 {
			record.Rank, record.ClosedIssueKeys = RankForIssues(p.jira, keys, cache)
			if record.Rank != "" {
				log.Debugf("PR #%d rank: %s", number, record.Rank)
			}
		}
	}

	return record, true, nil
}

// filteredByFiles reports whether the PR is excluded by the file-path
// filters. A failed file fetch degrades to an empty list, which excludes
// the PR whenever include patterns are configured.
func (p *Processor) filteredByFiles(number int) bool {
	files, err := p.gh.ChangedFiles(number)
	if err != nil {
		log.WithError(err).Warningf("failed to fetch files for PR #%d, treating it as having no changed files", number)
		files = nil
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		paths = append(paths, file.GetFilename())
	}

	for _, path := range paths {
		if matchesAny(p.opts.FileExclude, path) {
			log.Debugf("excluding PR #%d due to file-exclude filter match", number)
			return true
		}
	}
	if len(p.opts.FileInclude) > 0 {
		for _, path := range paths {
			if matchesAny(p.opts.FileInclude, path) {
				return false
			}
		}
		log.Debugf("excluding PR #%d due to no file-include filter match", number)
		return true
	}
	return false
}

// authorProfile resolves the author's display name and profile URL,
// falling back to the login and a constructed URL on any failure.
func (p *Processor) authorProfile(login string) (string, string) {
	fallbackURL := "https://github.com/" + login
	user, err := p.gh.User(login)
	if err != nil {
		log.WithError(err).Warningf("failed to fetch author details for %s, using login as fallback", login)
		return login, fallbackURL
	}
	if user == nil {
		log.Warningf("no profile found for %s, using login as fallback", login)
		return login, fallbackURL
	}
	name := user.GetName()
	if name == "" {
		name = login
	}
	url := user.GetHTMLURL()
	if url == "" {
		url = fallbackURL
	}
	return name, url
}

func (p *Processor) summarizeJiraIssues(cache map[string]*jira.Issue) map[string]JiraIssueSummary {
	issues := map[string]JiraIssueSummary{}
	if p.jira == nil {
		return issues
	}
	for key, issue := range cache {
		rank, closedKeys := RankForIssues(p.jira, []string{key}, cache)
		issues[key] = JiraIssueSummary{
			Key:    key,
			Title:  p.jira.Summary(issue),
			URL:    p.jira.BrowseURL(key),
			Rank:   rank,
			Closed: closedKeys[key],
		}
	}
	return issues
}

// appendSyntheticRecords adds a zero-PR record for every always-include
// JIRA issue that resolved a rank but appeared on no PR. Unresolvable
// includes are dropped with a warning.
func (p *Processor) appendSyntheticRecords(records []PullRequestRecord, jiraIssues map[string]JiraIssueSummary) []PullRequestRecord {
	if len(p.opts.JiraInclude) == 0 || len(jiraIssues) == 0 {
		return records
	}

	existing := map[string]bool{}
	for _, record := range records {
		if record.Rank == "" {
			continue
		}
		parts := strings.Fields(record.Rank)
		if len(parts) > 0 {
			existing[parts[len(parts)-1]] = true
		}
	}

	for _, key := range p.opts.JiraInclude {
		if existing[key] {
			continue
		}
		issue, ok := jiraIssues[key]
		if !ok || issue.Rank == "" {
			log.Warningf("could not get rank for jira-include issue %s, skipping", key)
			continue
		}
		log.Infof("creating synthetic entry for jira-include issue %s", key)
		records = append(records, PullRequestRecord{
			Synthetic:       true,
			JiraKey:         key,
			Rank:            issue.Rank,
			ClosedIssueKeys: map[string]bool{},
		})
	}
	return records
}

func matchesAny(patterns []*regexp.Regexp, path string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(path) {
			return true
		}
	}
	return false
}
