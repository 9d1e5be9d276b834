package flags

import (
	"os"
	"regexp"

	"github.com/spf13/pflag"

	"github.com/openshift-eng/gh-pulls-summary/pkg/jira"
)

// defaultIssuePattern extracts the strategy-project keys this report was
// originally built around; override with --jira-issue-pattern.
const defaultIssuePattern = `(ANSTRAT-\d+)`

// JiraFlags configures the optional rank column.
type JiraFlags struct {
	URL           string
	Token         string
	RankField     string
	IncludeRank   bool
	IssuePatterns []string
	Include       []string
}

func NewJiraFlags() *JiraFlags {
	return &JiraFlags{}
}

func (f *JiraFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.URL, "jira-url", f.URL,
		"JIRA base URL (e.g. 'https://issues.redhat.com'). Can also be set via JIRA_BASE_URL.")
	fs.StringVar(&f.Token, "jira-token", f.Token,
		"JIRA API token. Can also be set via JIRA_TOKEN.")
	fs.StringVar(&f.RankField, "jira-rank-field", f.RankField,
		"Explicit JIRA Rank field ID (e.g. 'customfield_12311940'). Discovered automatically when omitted.")
	fs.BoolVar(&f.IncludeRank, "include-rank", f.IncludeRank,
		"Add a JIRA rank column to the output. Requires JIRA configuration. Only Feature and Initiative issues carry ranks.")
	fs.StringArrayVar(&f.IssuePatterns, "jira-issue-pattern", f.IssuePatterns,
		"Regex extracting JIRA issue keys, with the key in a capture group (e.g. '(ANSTRAT-\\d+)'). Repeatable; defaults to '(ANSTRAT-\\d+)'.")
	fs.StringArrayVar(&f.Include, "jira-include", f.Include,
		"Always include this JIRA issue in the output regardless of filters. Repeatable.")
}

// GetClient builds and probes the JIRA client when the rank column was
// requested, returning nil otherwise. Configuration problems surface here,
// before any GitHub call.
func (f *JiraFlags) GetClient() (*jira.Client, error) {
	if !f.IncludeRank {
		return nil, nil
	}

	baseURL := f.URL
	if baseURL == "" {
		baseURL = os.Getenv("JIRA_BASE_URL")
	}
	token := f.Token
	if token == "" {
		token = os.Getenv("JIRA_TOKEN")
	}

	client, err := jira.NewClient(baseURL, token, f.RankField)
	if err != nil {
		return nil, err
	}
	if err := client.TestConnection(); err != nil {
		return nil, err
	}
	return client, nil
}

// CompiledIssuePatterns compiles the key-extraction patterns, applying the
// default when none were given.
func (f *JiraFlags) CompiledIssuePatterns() ([]*regexp.Regexp, error) {
	patterns := f.IssuePatterns
	if len(patterns) == 0 {
		patterns = []string{defaultIssuePattern}
	}
	return compilePatterns("--jira-issue-pattern", patterns)
}
