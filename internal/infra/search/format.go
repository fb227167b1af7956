package search

import (
	"fmt"
	"strings"
)

const (
	// MaxItems is the most results a bundle carries.
	MaxItems = 3
	// MaxSnippetRunes caps each snippet; longer ones are cut and get "..." appended.
	MaxSnippetRunes = 200
)

// Result is one ranked hit from a provider.
type Result struct {
	Title   string
	Snippet string
	URL     string
}

// formatBundle renders up to MaxItems results under header.
// Results without a title are skipped. "" when nothing is left.
func formatBundle(header string, results []Result) string {
	parts := make([]string, 0, MaxItems)
	for _, r := range results {
		if len(parts) == MaxItems {
			break
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "**%d. %s**", len(parts)+1, title)
		if snippet := truncateRunes(strings.TrimSpace(r.Snippet), MaxSnippetRunes); snippet != "" {
			b.WriteString("\n" + snippet)
		}
		if u := strings.TrimSpace(r.URL); u != "" {
			b.WriteString("\n🔗 " + u)
		}
		parts = append(parts, b.String())
	}
	if len(parts) == 0 {
		return ""
	}
	return "🔍 **" + header + ":**\n\n" + strings.Join(parts, "\n\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
