package summary

import (
	"sort"
	"strings"

	jira "github.com/andygrunwald/go-jira"
	log "github.com/sirupsen/logrus"
)

// IssueMetadata is the JIRA contract the rank computation consumes. The
// concrete implementation lives in pkg/jira.
type IssueMetadata interface {
	GetIssuesMetadata(keys []string, includeParentFields bool) (map[string]*jira.Issue, error)
	IssueType(issue *jira.Issue) string
	IssueStatus(issue *jira.Issue) string
	Summary(issue *jira.Issue) string
	RankValue(issue *jira.Issue) string
	Ancestors(key string, cache map[string]*jira.Issue) []*jira.Issue
	BrowseURL(key string) string
}

var openStatuses = map[string]bool{
	"New":         true,
	"Backlog":     true,
	"In Progress": true,
	"Refinement":  true,
}

var closedStatuses = map[string]bool{
	"Closed": true,
}

var rankableTypes = map[string]bool{
	"Feature":    true,
	"Initiative": true,
}

// emptyRankSentinel sorts empty rank values after every real LexoRank.
var emptyRankSentinel = strings.Repeat("z", 100)

type rankCandidate struct {
	rank string
	key  string
}

// RankForIssues resolves the rank for one PR's set of JIRA keys against a
// pre-fetched metadata cache. Feature/Initiative issues with a rank are
// direct candidates; for other types the ancestor chain is walked and the
// first qualifying ancestor wins. Open candidates are preferred wholesale
// over closed ones; within the chosen bucket the lexicographically
// smallest rank is the highest priority. Closed keys encountered along
// the way are reported regardless of outcome.
func RankForIssues(jc IssueMetadata, issueKeys []string, cache map[string]*jira.Issue) (string, map[string]bool) {
	closedKeys := map[string]bool{}
	if jc == nil || len(issueKeys) == 0 {
		return "", closedKeys
	}

	var openCandidates, closedCandidates []rankCandidate

	for _, issueKey := range issueKeys {
		issue, ok := cache[issueKey]
		if !ok {
			continue
		}
		issueType := jc.IssueType(issue)
		issueStatus := jc.IssueStatus(issue)
		rankValue := jc.RankValue(issue)
		log.Debugf("%s: type=%s, status=%s, rank=%s", issueKey, issueType, issueStatus, rankValue)

		if closedStatuses[issueStatus] {
			closedKeys[issueKey] = true
		}

		if rankableTypes[issueType] {
			if rankValue != "" {
				if openStatuses[issueStatus] {
					openCandidates = append(openCandidates, rankCandidate{rank: rankValue, key: issueKey})
				} else if closedStatuses[issueStatus] {
					closedCandidates = append(closedCandidates, rankCandidate{rank: rankValue, key: issueKey})
				}
			}
			continue
		}

		log.Debugf("%s is type %q, walking hierarchy for a ranked ancestor", issueKey, issueType)
		for _, ancestor := range jc.Ancestors(issueKey, cache) {
			ancestorKey := ancestor.Key
			if ancestorKey == "" {
				continue
			}
			ancestorStatus := jc.IssueStatus(ancestor)
			ancestorRank := jc.RankValue(ancestor)

			if closedStatuses[ancestorStatus] {
				closedKeys[ancestorKey] = true
			}
			if !rankableTypes[jc.IssueType(ancestor)] || ancestorRank == "" {
				continue
			}
			if openStatuses[ancestorStatus] {
				openCandidates = append(openCandidates, rankCandidate{rank: ancestorRank, key: ancestorKey})
				break
			}
			if closedStatuses[ancestorStatus] {
				closedCandidates = append(closedCandidates, rankCandidate{rank: ancestorRank, key: ancestorKey})
				break
			}
		}
	}

	candidates := openCandidates
	if len(candidates) == 0 {
		candidates = closedCandidates
	}
	if len(candidates) == 0 {
		return "", closedKeys
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return rankSortValue(candidates[i].rank) < rankSortValue(candidates[j].rank)
	})
	best := candidates[0]

	// pipes break Markdown table cells
	return strings.ReplaceAll(best.rank, "|", "_") + " " + best.key, closedKeys
}

func rankSortValue(rank string) string {
	if rank == "" {
		return emptyRankSentinel
	}
	return rank
}
