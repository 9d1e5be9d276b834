package summary

import (
	"regexp"
	"sort"
	"strings"
)

// metadataLineLimit caps how deep into the PR description the marker-line
// scan goes.
const metadataLineLimit = 50

var featureInitiativeMarker = regexp.MustCompile(`(?i)feature\s*/?\s*initiative`)

// patternMatches returns every match of pattern in text, preferring the
// first capture group when one is present.
func patternMatches(pattern *regexp.Regexp, text string) []string {
	var out []string
	for _, match := range pattern.FindAllStringSubmatch(text, -1) {
		if len(match) > 1 {
			out = append(out, match[1])
		} else {
			out = append(out, match[0])
		}
	}
	return out
}

// KeysFromBody scans the first 50 lines of the PR description for a
// "Feature / Initiative" marker line and applies every pattern to that
// single line. Matches are deduplicated preserving first-appearance order.
func KeysFromBody(body string, patterns []*regexp.Regexp) []string {
	if body == "" || len(patterns) == 0 {
		return nil
	}

	lines := strings.Split(body, "\n")
	if len(lines) > metadataLineLimit {
		lines = lines[:metadataLineLimit]
	}

	for _, line := range lines {
		if !featureInitiativeMarker.MatchString(line) {
			continue
		}
		var keys []string
		seen := map[string]bool{}
		for _, pattern := range patterns {
			for _, key := range patternMatches(pattern, line) {
				if !seen[key] {
					seen[key] = true
					keys = append(keys, key)
				}
			}
		}
		if len(keys) > 0 {
			return keys
		}
	}
	return nil
}

// KeysFromFileContents applies every pattern to the full content of every
// file and returns the sorted union of matches.
func KeysFromFileContents(contents []string, patterns []*regexp.Regexp) []string {
	if len(contents) == 0 || len(patterns) == 0 {
		return nil
	}

	seen := map[string]bool{}
	for _, pattern := range patterns {
		for _, content := range contents {
			if content == "" {
				continue
			}
			for _, key := range patternMatches(pattern, content) {
				seen[key] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ExtractIssueKeys resolves a PR's JIRA keys: the description's metadata
// table first, full file contents as the fallback.
func ExtractIssueKeys(body string, fileContents []string, patterns []*regexp.Regexp) []string {
	if keys := KeysFromBody(body, patterns); len(keys) > 0 {
		return keys
	}
	return KeysFromFileContents(fileContents, patterns)
}
