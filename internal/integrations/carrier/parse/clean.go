package parse

import (
	"regexp"
	"sort"
	"strings"

	"github.com/trackfleet/trackfleet/internal/models"
)

// Carrier remark fields are known to embed tracking-page markup and links.
var (
	markupRe     = regexp.MustCompile(`<[^>]*>`)
	urlRe        = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// cleanText strips HTML tags and URL-like substrings from carrier free text
// and collapses the leftover whitespace.
func cleanText(s string) string {
	s = markupRe.ReplaceAllString(s, " ")
	s = urlRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func sortHistoryDesc(events []models.HistoryEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
