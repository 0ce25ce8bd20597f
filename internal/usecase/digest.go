package usecase

import (
	"fmt"
	"sort"
	"strings"

	"LegislativeClipping/internal/domain"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "`", "\\`")

// BuildDigest formats high relevance records as a Telegram Markdown message,
// highest score first.
func BuildDigest(items []domain.ScoredNewsRecord) string {
	if len(items) == 0 {
		return ""
	}

	sorted := make([]domain.ScoredNewsRecord, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	var b strings.Builder
	fmt.Fprintf(&b, "*Clipping FACIAP*: %d notícia(s) de alta relevância\n\n", len(sorted))
	for _, item := range sorted {
		fmt.Fprintf(&b, "• *%s* (%.2f) %s\n",
			markdownEscaper.Replace(string(item.Record.Source)),
			item.Score,
			markdownEscaper.Replace(item.Record.Title))
		if len(item.MatchedKeywords) > 0 {
			fmt.Fprintf(&b, "Termos: %s\n", markdownEscaper.Replace(strings.Join(item.MatchedKeywords, ", ")))
		}
		fmt.Fprintf(&b, "%s\n\n", item.Record.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}
