package summary

import (
	"regexp"
	"sort"
	"strings"
)

// ExtractURLs collects every pattern match on added diff lines (excluding
// the +++ file headers), keyed by display text: the last path segment of
// the URL, or the whole match when it has no slash. The last occurrence in
// diff order wins on duplicate text; the result is ordered by text.
func ExtractURLs(diff string, pattern *regexp.Regexp) []URLRef {
	if diff == "" || pattern == nil {
		return nil
	}

	byText := map[string]string{}
	for _, line := range strings.Split(diff, "\n") {
		if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
			continue
		}
		for _, match := range patternMatches(pattern, line) {
			text := match
			if strings.Contains(match, "/") {
				trimmed := strings.TrimRight(match, "/")
				segments := strings.Split(trimmed, "/")
				text = segments[len(segments)-1]
			}
			byText[text] = match
		}
	}
	if len(byText) == 0 {
		return nil
	}

	texts := make([]string, 0, len(byText))
	for text := range byText {
		texts = append(texts, text)
	}
	sort.Strings(texts)

	urls := make([]URLRef, 0, len(texts))
	for _, text := range texts {
		urls = append(urls, URLRef{Text: text, URL: byText[text]})
	}
	return urls
}
