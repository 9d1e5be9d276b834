package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/openshift-eng/gh-pulls-summary/pkg/flags"
	"github.com/openshift-eng/gh-pulls-summary/pkg/report"
	"github.com/openshift-eng/gh-pulls-summary/pkg/summary"
)

// SummarizeFlags groups the option structs the report run needs.
type SummarizeFlags struct {
	GitHub *flags.GitHubFlags
	Jira   *flags.JiraFlags
	Report *flags.ReportFlags
}

func NewSummarizeFlags() *SummarizeFlags {
	return &SummarizeFlags{
		GitHub: flags.NewGitHubFlags(),
		Jira:   flags.NewJiraFlags(),
		Report: flags.NewReportFlags(),
	}
}

func (f *SummarizeFlags) BindFlags(fs *pflag.FlagSet) {
	f.GitHub.BindFlags(fs)
	f.Jira.BindFlags(fs)
	f.Report.BindFlags(fs)
}

var summarizeFlags = NewSummarizeFlags()

func init() {
	summarizeFlags.BindFlags(rootCmd.Flags())
}

// runSummarize validates configuration, runs the enrichment pipeline and
// writes the rendered report to stdout or the configured file.
func runSummarize(ctx context.Context, f *SummarizeFlags) error {
	// everything user-supplied is checked before the first network call
	if err := f.Report.Validate(); err != nil {
		return err
	}
	sortColumn, err := report.ValidateSortColumn(f.Report.SortColumn)
	if err != nil {
		return err
	}
	fileInclude, err := f.Report.CompiledFileInclude()
	if err != nil {
		return err
	}
	fileExclude, err := f.Report.CompiledFileExclude()
	if err != nil {
		return err
	}
	urlPattern, err := f.Report.CompiledURLPattern()
	if err != nil {
		return err
	}
	issuePatterns, err := f.Jira.CompiledIssuePatterns()
	if err != nil {
		return err
	}
	if err := f.GitHub.Resolve(); err != nil {
		return err
	}

	jiraClient, err := f.Jira.GetClient()
	if err != nil {
		return err
	}
	githubClient := f.GitHub.GetClient(ctx)

	opts := summary.Options{
		PRNumber:           f.GitHub.PRNumber,
		DraftFilter:        f.Report.DraftFilter,
		FileInclude:        fileInclude,
		FileExclude:        fileExclude,
		URLPattern:         urlPattern,
		IssuePatterns:      issuePatterns,
		JiraInclude:        f.Jira.Include,
		ReviewRequestedFor: f.GitHub.ReviewRequestedFor,
	}

	var jiraMetadata summary.IssueMetadata
	if jiraClient != nil {
		jiraMetadata = jiraClient
	}

	log.Infof("fetching pull requests for repository %s/%s", f.GitHub.Owner, f.GitHub.Repo)
	processor := summary.NewProcessor(githubClient, jiraMetadata, opts)
	records, jiraIssues, err := processor.Run()
	if err != nil {
		return err
	}

	table := report.Render(records, jiraIssues, report.Options{
		SortColumn:  sortColumn,
		TitleByName: report.ParseColumnTitles(f.Report.ColumnTitles),
		ShowURLs:    urlPattern != nil,
		ShowRank:    f.Jira.IncludeRank,
	})

	generatorName, generatorURL := githubClient.AuthenticatedUser()
	output := report.Timestamp(time.Now(), generatorName, generatorURL) + "\n" + table + "\n"

	if path := f.Report.OutputMarkdown; path != "" {
		if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
			return errors.Wrapf(err, "failed to write output file %s", path)
		}
		log.Infof("markdown output written to %s", path)
		return nil
	}
	fmt.Println(output)
	return nil
}
