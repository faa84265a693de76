package activity

import (
	"fmt"
	"strings"
)

// Line renders one entry as a single list line:
//
//	2024-01-05 14:03:11 [Code] Editing parser tests (main.go) #go #tests
func Line(e *Entry) string {
	var b strings.Builder
	b.WriteString(e.Date)
	if e.Time != "" {
		b.WriteString(" " + e.Time)
	}
	if app := e.AppName(); app != "" {
		b.WriteString(" [" + app + "]")
	}
	if e.Activity != "" {
		b.WriteString(" " + e.Activity)
	}
	if title := e.Title(); title != "" && title != e.Activity {
		b.WriteString(" (" + title + ")")
	}
	for _, t := range e.Tags {
		b.WriteString(" #" + strings.ReplaceAll(t, " ", "-"))
	}
	return b.String()
}

// RenderList renders entries one per line. An empty list renders a notice.
func RenderList(entries []Entry) string {
	if len(entries) == 0 {
		return "No matching entries."
	}
	lines := make([]string, len(entries))
	for i := range entries {
		lines[i] = Line(&entries[i])
	}
	return strings.Join(lines, "\n")
}

// RenderContext renders recent entries for an extractor prompt, oldest
// first, including the summary so continuity can be judged.
func RenderContext(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for i := range entries {
		e := &entries[i]
		fmt.Fprintf(&b, "- %s\n", Line(e))
		if e.Summary != "" {
			fmt.Fprintf(&b, "  %s\n", e.Summary)
		}
	}
	return b.String()
}
