// Package jira provides the issue-metadata lookups behind the rank column:
// batch metadata retrieval (including the parent chain), field extraction
// and ancestor traversal over a pre-fetched cache.
package jira

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	jira "github.com/andygrunwald/go-jira"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/openshift-eng/gh-pulls-summary/pkg/apperrors"
)

const (
	rankFieldName = "Rank"

	// how many parent hops GetIssuesMetadata will chase before giving up
	maxHierarchyDepth = 10

	searchPageSize = 100
)

// parentLinkFieldNames are the custom fields, in preference order after the
// standard parent field, that can carry an issue's hierarchy link.
var parentLinkFieldNames = []string{"Parent Link", "Epic Link", "Feature Link"}

type bearerAuthTransport struct {
	Token     string
	Transport http.RoundTripper
}

func (bat *bearerAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Add("Authorization", "Bearer "+bat.Token)
	return bat.transport().RoundTrip(req)
}

func (bat *bearerAuthTransport) transport() http.RoundTripper {
	if bat.Transport != nil {
		return bat.Transport
	}
	return http.DefaultTransport
}

// Client is the JIRA side of the pipeline. Search and field-catalog calls
// are function fields so tests can run against fixtures.
type Client struct {
	baseURL        string
	rankFieldID    string
	parentFieldIDs []string

	searchIssues func(jql string, opts *jira.SearchOptions) ([]jira.Issue, *jira.Response, error)
	listFields   func() ([]jira.Field, error)
}

// NewClient validates the configuration and builds the underlying go-jira
// client. The connection itself is not exercised until TestConnection.
func NewClient(baseURL, token, rankFieldID string) (*Client, error) {
	if baseURL == "" {
		return nil, apperrors.New(apperrors.KindValidation,
			"JIRA configuration error: no base URL. Rank column requested but JIRA is not configured; pass --jira-url or set JIRA_BASE_URL.")
	}

	httpClient := http.DefaultClient
	if token != "" {
		httpClient = &http.Client{Transport: &bearerAuthTransport{Token: token}}
	} else {
		log.Warning("no JIRA token supplied, using anonymous JIRA access")
	}

	jc, err := jira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, apperrors.New(apperrors.KindValidation, "JIRA configuration error: invalid base URL %q: %v", baseURL, err)
	}

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		rankFieldID: rankFieldID,
	}
	c.searchIssues = func(jql string, opts *jira.SearchOptions) ([]jira.Issue, *jira.Response, error) {
		return jc.Issue.Search(jql, opts)
	}
	c.listFields = func() ([]jira.Field, error) {
		fields, _, err := jc.Field.GetList()
		return fields, err
	}
	return c, nil
}

// TestConnection fetches the field catalog, which both proves connectivity
// and resolves the Rank and parent-link field IDs when not given
// explicitly.
func (c *Client) TestConnection() error {
	fields, err := c.listFields()
	if err != nil {
		return apperrors.New(apperrors.KindJira,
			"JIRA connection failed: cannot fetch field catalog from %s: %v. Rank column requested but JIRA is unreachable.", c.baseURL, err)
	}

	parentNames := map[string]int{}
	for i, name := range parentLinkFieldNames {
		parentNames[name] = i
	}
	parentIDs := make([]string, len(parentLinkFieldNames))

	for _, field := range fields {
		if c.rankFieldID == "" && field.Name == rankFieldName {
			c.rankFieldID = field.ID
			log.Debugf("discovered JIRA rank field %s", field.ID)
		}
		if idx, ok := parentNames[field.Name]; ok {
			parentIDs[idx] = field.ID
		}
	}
	for _, id := range parentIDs {
		if id != "" {
			c.parentFieldIDs = append(c.parentFieldIDs, id)
		}
	}

	if c.rankFieldID == "" {
		return apperrors.New(apperrors.KindJira,
			"JIRA configuration error: could not discover the Rank field on %s; pass --jira-rank-field explicitly.", c.baseURL)
	}
	log.Info("JIRA client initialized successfully")
	return nil
}

// GetIssuesMetadata fetches metadata for the given keys in one batch. With
// includeParentFields it also chases parent links, round by round, until
// the whole ancestor chain of every key is cached or the depth bound hits.
func (c *Client) GetIssuesMetadata(keys []string, includeParentFields bool) (map[string]*jira.Issue, error) {
	cache := map[string]*jira.Issue{}
	pending := dedupe(keys)
	if len(pending) == 0 {
		return cache, nil
	}

	searchFields := []string{"summary", "issuetype", "status", c.rankFieldID}
	if includeParentFields {
		searchFields = append(searchFields, "parent")
		searchFields = append(searchFields, c.parentFieldIDs...)
	}

	for depth := 0; depth < maxHierarchyDepth && len(pending) > 0; depth++ {
		issues, err := c.searchBatch(pending, searchFields)
		if err != nil {
			return nil, err
		}
		for i := range issues {
			cache[issues[i].Key] = &issues[i]
		}
		if !includeParentFields {
			break
		}

		var next []string
		for i := range issues {
			if parent := c.ParentKey(&issues[i]); parent != "" && cache[parent] == nil {
				next = append(next, parent)
			}
		}
		pending = dedupe(next)
	}

	log.Debugf("fetched JIRA metadata for %d issues", len(cache))
	return cache, nil
}

func (c *Client) searchBatch(keys, fields []string) ([]jira.Issue, error) {
	jql := fmt.Sprintf("issuekey in (%s)", strings.Join(keys, ","))

	var all []jira.Issue
	startAt := 0
	for {
		opts := &jira.SearchOptions{
			StartAt:       startAt,
			MaxResults:    searchPageSize,
			Fields:        fields,
			ValidateQuery: "warn",
		}
		issues, resp, err := c.searchIssues(jql, opts)
		if err != nil {
			return nil, apperrors.New(apperrors.KindJira, "JIRA search failed for %d issue keys: %v", len(keys), err)
		}
		all = append(all, issues...)
		if resp == nil || len(issues) == 0 || len(all) >= resp.Total {
			break
		}
		startAt += len(issues)
	}
	return all, nil
}

// IssueType returns the issue's type name, e.g. "Feature" or "Story".
func (c *Client) IssueType(issue *jira.Issue) string {
	if issue == nil || issue.Fields == nil {
		return ""
	}
	return issue.Fields.Type.Name
}

// IssueStatus returns the issue's status name, e.g. "New" or "Closed".
func (c *Client) IssueStatus(issue *jira.Issue) string {
	if issue == nil || issue.Fields == nil || issue.Fields.Status == nil {
		return ""
	}
	return issue.Fields.Status.Name
}

// Summary returns the issue's summary, falling back to its key.
func (c *Client) Summary(issue *jira.Issue) string {
	if issue == nil {
		return ""
	}
	if issue.Fields == nil || issue.Fields.Summary == "" {
		return issue.Key
	}
	return issue.Fields.Summary
}

// RankValue returns the raw rank string (a LexoRank like "0|i01v00:"), or
// empty when the issue carries none.
func (c *Client) RankValue(issue *jira.Issue) string {
	if issue == nil || issue.Fields == nil || issue.Fields.Unknowns == nil {
		return ""
	}
	value, ok := issue.Fields.Unknowns[c.rankFieldID]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

// ParentKey resolves the issue's hierarchy link: the standard parent field
// first, then the discovered custom link fields. Custom link values come
// back either as a bare key string or as a nested object, so the object
// forms are probed with gjson.
func (c *Client) ParentKey(issue *jira.Issue) string {
	if issue == nil || issue.Fields == nil {
		return ""
	}
	if issue.Fields.Parent != nil && issue.Fields.Parent.Key != "" {
		return issue.Fields.Parent.Key
	}
	if issue.Fields.Unknowns == nil {
		return ""
	}
	for _, fieldID := range c.parentFieldIDs {
		value, ok := issue.Fields.Unknowns[fieldID]
		if !ok || value == nil {
			continue
		}
		if s, ok := value.(string); ok {
			if s != "" {
				return s
			}
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			continue
		}
		for _, path := range []string{"key", "data.key"} {
			if key := gjson.GetBytes(raw, path).String(); key != "" {
				return key
			}
		}
	}
	return ""
}

// Ancestors walks the parent chain through the cache, nearest ancestor
// first. The walk stops at the first key missing from the cache and guards
// against link cycles.
func (c *Client) Ancestors(key string, cache map[string]*jira.Issue) []*jira.Issue {
	var chain []*jira.Issue
	seen := map[string]bool{key: true}

	current := cache[key]
	for current != nil {
		parentKey := c.ParentKey(current)
		if parentKey == "" || seen[parentKey] {
			break
		}
		seen[parentKey] = true
		parent := cache[parentKey]
		if parent == nil {
			break
		}
		chain = append(chain, parent)
		current = parent
	}
	return chain
}

// BrowseURL returns the human-facing link for an issue key.
func (c *Client) BrowseURL(key string) string {
	return c.baseURL + "/browse/" + key
}

func dedupe(keys []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}
