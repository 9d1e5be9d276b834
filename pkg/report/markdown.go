// Package report renders enriched pull-request records as a sorted,
// column-configurable Markdown table.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openshift-eng/gh-pulls-summary/pkg/apperrors"
	"github.com/openshift-eng/gh-pulls-summary/pkg/summary"
)

// Column names, also the accepted values for --sort-column and the left
// half of --column-title entries.
const (
	ColumnDate      = "date"
	ColumnTitle     = "title"
	ColumnAuthor    = "author"
	ColumnChanges   = "changes"
	ColumnApprovals = "approvals"
	ColumnURLs      = "urls"
	ColumnRank      = "rank"
)

var columnOrder = []string{ColumnDate, ColumnTitle, ColumnAuthor, ColumnChanges, ColumnApprovals, ColumnURLs, ColumnRank}

var defaultTitles = map[string]string{
	ColumnDate:      "Date",
	ColumnTitle:     "Title",
	ColumnAuthor:    "Author",
	ColumnChanges:   "Change Requested",
	ColumnApprovals: "Approvals",
	ColumnURLs:      "URLs",
	ColumnRank:      "RANK",
}

const sortedMarker = " ↓"

// Options shapes one rendering: which optional columns exist, how columns
// are titled and which one orders the rows.
type Options struct {
	SortColumn  string
	TitleByName map[string]string
	ShowURLs    bool
	ShowRank    bool
}

// ParseColumnTitles merges "col=text" override entries over the default
// titles. Unknown column names are warned about and ignored.
func ParseColumnTitles(entries []string) map[string]string {
	titles := make(map[string]string, len(defaultTitles))
	for name, title := range defaultTitles {
		titles[name] = title
	}
	for _, entry := range entries {
		name, value, found := strings.Cut(entry, "=")
		if !found {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if _, known := defaultTitles[name]; !known {
			log.Warningf("invalid column name %q in --column-title, valid columns: %s", name, strings.Join(columnOrder, ", "))
			continue
		}
		titles[name] = strings.TrimSpace(value)
	}
	return titles
}

// ValidateSortColumn normalizes and checks a sort column name.
func ValidateSortColumn(name string) (string, error) {
	name = strings.ToLower(name)
	for _, column := range columnOrder {
		if name == column {
			return name, nil
		}
	}
	return "", apperrors.New(apperrors.KindValidation,
		"invalid sort column %q, valid options are: %s", name, strings.Join(columnOrder, ", "))
}

// Render produces the Markdown table: header, separator and one row per
// record, sorted by the configured column. jiraIssues supplies titles and
// links for synthetic rows.
func Render(records []summary.PullRequestRecord, jiraIssues map[string]summary.JiraIssueSummary, opts Options) string {
	titles := opts.TitleByName
	if titles == nil {
		titles = ParseColumnTitles(nil)
	} else {
		copied := make(map[string]string, len(titles))
		for name, title := range titles {
			copied[name] = title
		}
		titles = copied
	}
	if _, ok := titles[opts.SortColumn]; ok {
		titles[opts.SortColumn] += sortedMarker
	}

	sorted := sortRecords(records, opts.SortColumn)

	var out []string
	header, separator := tableHeader(titles, opts)
	out = append(out, header, separator)
	for _, record := range sorted {
		out = append(out, tableRow(record, jiraIssues, opts))
	}
	return strings.Join(out, "\n")
}

// Timestamp returns the generation line placed above the table,
// optionally crediting the generating user.
func Timestamp(now time.Time, generatorName, generatorURL string) string {
	ts := now.UTC().Format("**Generated at 2006-01-02 15:04Z**")
	switch {
	case generatorName != "" && generatorURL != "":
		ts += fmt.Sprintf(" by [%s](%s)", generatorName, generatorURL)
	case generatorName != "":
		ts += " by " + generatorName
	}
	return ts + "\n"
}

func tableHeader(titles map[string]string, opts Options) (string, string) {
	header := fmt.Sprintf("| %s | %s | %s | %s | %s |",
		titles[ColumnDate], titles[ColumnTitle], titles[ColumnAuthor], titles[ColumnChanges], titles[ColumnApprovals])
	separator := "| --- | --- | --- | --- | --- |"
	if opts.ShowURLs {
		header += fmt.Sprintf(" %s |", titles[ColumnURLs])
		separator += " --- |"
	}
	if opts.ShowRank {
		header += fmt.Sprintf(" %s |", titles[ColumnRank])
		separator += " --- |"
	}
	return header, separator
}

func tableRow(record summary.PullRequestRecord, jiraIssues map[string]summary.JiraIssueSummary, opts Options) string {
	var titleCell, authorCell, changesCell, approvalsCell string
	if record.Synthetic {
		if issue, ok := jiraIssues[record.JiraKey]; ok {
			titleCell = fmt.Sprintf("[%s](%s)", issue.Title, issue.URL)
		} else {
			titleCell = fmt.Sprintf("[%s]()", record.JiraKey)
		}
	} else {
		titleCell = fmt.Sprintf("%s #[%d](%s)", record.Title, record.Number, record.URL)
		if record.AuthorName != "" {
			authorCell = fmt.Sprintf("[%s](%s)", record.AuthorName, record.AuthorURL)
		}
		if record.ReviewerCount > 0 {
			approvalsCell = fmt.Sprintf("%d of %d", record.ApprovalCount, record.ReviewerCount)
		}
		changesCell = strconv.Itoa(record.ChangesRequestedCount)
	}

	row := fmt.Sprintf("| %s | %s | %s | %s | %s |", record.ReadyDate, titleCell, authorCell, changesCell, approvalsCell)

	if opts.ShowURLs {
		if len(record.ExtractedURLs) > 0 {
			links := make([]string, 0, len(record.ExtractedURLs))
			for _, ref := range record.ExtractedURLs {
				if record.ClosedIssueKeys[ref.Text] {
					links = append(links, fmt.Sprintf("[~~%s~~](%s)", ref.Text, ref.URL))
				} else {
					links = append(links, fmt.Sprintf("[%s](%s)", ref.Text, ref.URL))
				}
			}
			row += fmt.Sprintf(" %s |", strings.Join(links, " "))
		} else {
			row += " |"
		}
	}
	if opts.ShowRank {
		row += fmt.Sprintf(" %s |", record.Rank)
	}
	return row
}

// emptyRankSentinel pushes records without a rank behind every ranked one.
var emptyRankSentinel = strings.Repeat("z", 100)

// sortRecords orders a copy of the records by the chosen column. Date,
// title, author, urls and rank compare as strings (empty ranks last);
// changes and approvals compare numerically with synthetic rows, which
// have no counts, last.
func sortRecords(records []summary.PullRequestRecord, column string) []summary.PullRequestRecord {
	sorted := append([]summary.PullRequestRecord(nil), records...)
	switch column {
	case ColumnChanges, ColumnApprovals:
		sort.SliceStable(sorted, func(i, j int) bool {
			a, aReal := numericKey(sorted[i], column)
			b, bReal := numericKey(sorted[j], column)
			if aReal != bReal {
				return aReal
			}
			return a < b
		})
	default:
		sort.SliceStable(sorted, func(i, j int) bool {
			return stringKey(sorted[i], column) < stringKey(sorted[j], column)
		})
	}
	return sorted
}

func numericKey(record summary.PullRequestRecord, column string) (value int, real bool) {
	if record.Synthetic {
		return 0, false
	}
	if column == ColumnChanges {
		return record.ChangesRequestedCount, true
	}
	return record.ApprovalCount, true
}

func stringKey(record summary.PullRequestRecord, column string) string {
	switch column {
	case ColumnDate:
		return record.ReadyDate
	case ColumnTitle:
		return record.Title
	case ColumnAuthor:
		return record.AuthorName
	case ColumnURLs:
		texts := make([]string, 0, len(record.ExtractedURLs))
		for _, ref := range record.ExtractedURLs {
			texts = append(texts, ref.Text)
		}
		return strings.Join(texts, ",")
	case ColumnRank:
		if record.Rank == "" {
			return emptyRankSentinel
		}
		return record.Rank
	}
	return ""
}
