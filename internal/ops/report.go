package ops

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/trail/internal/activity"
	"github.com/hpungsan/trail/internal/db"
	"github.com/hpungsan/trail/internal/errors"
)

// unknownApp groups entries with no detected app.
const unknownApp = "Other"

// ReportInput contains parameters for the Report operation.
type ReportInput struct {
	Date string // required; loose formats accepted
	HTML bool   // also render HTML
}

// ReportOutput is a day log rendered as markdown, and optionally HTML.
type ReportOutput struct {
	Date     string `json:"date"`
	Count    int    `json:"count"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html,omitempty"`
}

// Report builds a markdown log of one day: an app usage table, then one
// section per app in order of first use with the entries by time.
func Report(ctx context.Context, database *sql.DB, input ReportInput) (*ReportOutput, error) {
	date, err := resolveDate("date", input.Date)
	if err != nil {
		return nil, err
	}
	entries, err := db.GetByDate(ctx, database, date)
	if err != nil {
		return nil, err
	}
	usage, err := db.GetAppUsage(ctx, database, date, date)
	if err != nil {
		return nil, err
	}

	out := &ReportOutput{
		Date:     date,
		Count:    len(entries),
		Markdown: renderReport(date, entries, usage),
	}
	if input.HTML {
		html, err := markdownToHTML(out.Markdown)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out.HTML = html
	}
	return out, nil
}

func renderReport(date string, entries []activity.Entry, usage []db.AppUsage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Activity for %s\n\n", date)
	if len(entries) == 0 {
		b.WriteString("No activity recorded.\n")
		return b.String()
	}

	if len(usage) > 0 {
		b.WriteString("| App | Entries |\n|---|---:|\n")
		for _, u := range usage {
			fmt.Fprintf(&b, "| %s | %d |\n", escapeCell(u.Name), u.Count)
		}
		b.WriteString("\n")
	}

	var order []string
	groups := map[string][]*activity.Entry{}
	for i := range entries {
		e := &entries[i]
		app := e.AppName()
		if app == "" {
			app = unknownApp
		}
		if _, ok := groups[app]; !ok {
			order = append(order, app)
		}
		groups[app] = append(groups[app], e)
	}

	for _, app := range order {
		fmt.Fprintf(&b, "## %s\n\n", app)
		for _, e := range groups[app] {
			clock := e.Time
			if len(clock) > 5 {
				clock = clock[:5]
			}
			fmt.Fprintf(&b, "- **%s** %s", clock, e.Activity)
			if title := e.Title(); title != "" && title != e.Activity {
				fmt.Fprintf(&b, " _(%s)_", title)
			}
			b.WriteString("\n")
			if e.Summary != "" {
				fmt.Fprintf(&b, "  %s\n", e.Summary)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

func markdownToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
