package chatbot

import (
	"fmt"
	"sort"
	"strings"
)

// FormatMarkdown renders query results as a Markdown table. It is the
// deterministic fallback used when the text-generation service is
// unavailable, so the user still receives the data.
func FormatMarkdown(rows []map[string]any) string {
	if len(rows) == 0 {
		return "No matching records were found."
	}

	columns := columnOrder(rows[0])

	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(columns, " | "))
	b.WriteString(" |\n|")
	for range columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	for _, row := range rows {
		b.WriteString("| ")
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = formatCell(row[col])
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// columnOrder yields a stable column ordering; map iteration alone would
// shuffle the table between calls.
func columnOrder(row map[string]any) []string {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

func formatCell(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.ReplaceAll(v, "|", `\|`)
	case []byte:
		return strings.ReplaceAll(string(v), "|", `\|`)
	default:
		return fmt.Sprintf("%v", v)
	}
}
