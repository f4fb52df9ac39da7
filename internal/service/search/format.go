package search

import (
	"fmt"
	"html"
	"strings"
)

// NoResults 在搜索为空时展示。
const NoResults = "К сожалению, не удалось найти информацию по вашему запросу."

// Format renders results as a numbered HTML list.
func Format(results []Result) string {
	if len(results) == 0 {
		return NoResults
	}

	var sb strings.Builder
	sb.WriteString("🔍 <b>Результаты поиска:</b>\n\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. <b>%s</b>\n", i+1, html.EscapeString(r.Title))
		fmt.Fprintf(&sb, "📎 %s\n", html.EscapeString(r.Link))
		fmt.Fprintf(&sb, "📝 %s\n\n", html.EscapeString(r.Snippet))
	}
	return sb.String()
}
