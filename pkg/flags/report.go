package flags

import (
	"regexp"

	"github.com/spf13/pflag"

	"github.com/openshift-eng/gh-pulls-summary/pkg/apperrors"
	"github.com/openshift-eng/gh-pulls-summary/pkg/summary"
)

// ReportFlags shapes which PRs make it into the report and how the table
// is rendered.
type ReportFlags struct {
	DraftFilter      string
	FileInclude      []string
	FileExclude      []string
	URLFromPRContent string
	ColumnTitles     []string
	SortColumn       string
	OutputMarkdown   string
}

func NewReportFlags() *ReportFlags {
	return &ReportFlags{
		SortColumn: "date",
	}
}

func (f *ReportFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.DraftFilter, "draft-filter", f.DraftFilter,
		"Filter PRs by draft status: 'only-drafts' keeps drafts only, 'no-drafts' excludes them.")
	fs.StringArrayVar(&f.FileInclude, "file-include", f.FileInclude,
		"Regex including PRs by changed file path. Repeatable.")
	fs.StringArrayVar(&f.FileExclude, "file-exclude", f.FileExclude,
		"Regex excluding PRs by changed file path. Repeatable.")
	fs.StringVar(&f.URLFromPRContent, "url-from-pr-content", f.URLFromPRContent,
		"Regex extracting unique URLs from added lines of the PR diff; adds a URLs column to the table.")
	fs.StringArrayVar(&f.ColumnTitles, "column-title", f.ColumnTitles,
		"Override a column title, format COLUMN=TITLE (columns: date, title, author, changes, approvals, urls, rank). Repeatable.")
	fs.StringVar(&f.SortColumn, "sort-column", f.SortColumn,
		"Column to sort by: date, title, author, changes, approvals, urls, rank.")
	fs.StringVar(&f.OutputMarkdown, "output-markdown", f.OutputMarkdown,
		"Write the generated Markdown (with timestamp) to this file instead of stdout.")
}

// Validate checks the enumerated options. Regex compilation has its own
// accessors so callers get the compiled values.
func (f *ReportFlags) Validate() error {
	switch f.DraftFilter {
	case "", summary.DraftFilterOnly, summary.DraftFilterNone:
	default:
		return apperrors.New(apperrors.KindValidation,
			"invalid --draft-filter %q, valid values are %q and %q", f.DraftFilter, summary.DraftFilterOnly, summary.DraftFilterNone)
	}
	return nil
}

func (f *ReportFlags) CompiledFileInclude() ([]*regexp.Regexp, error) {
	return compilePatterns("--file-include", f.FileInclude)
}

func (f *ReportFlags) CompiledFileExclude() ([]*regexp.Regexp, error) {
	return compilePatterns("--file-exclude", f.FileExclude)
}

// CompiledURLPattern returns nil when URL extraction was not requested.
func (f *ReportFlags) CompiledURLPattern() (*regexp.Regexp, error) {
	if f.URLFromPRContent == "" {
		return nil, nil
	}
	patterns, err := compilePatterns("--url-from-pr-content", []string{f.URLFromPRContent})
	if err != nil {
		return nil, err
	}
	return patterns[0], nil
}

func compilePatterns(flagName string, patterns []string) ([]*regexp.Regexp, error) {
	var compiled []*regexp.Regexp
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, apperrors.New(apperrors.KindValidation,
				"invalid regular expression in %s: %q: %v", flagName, pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
