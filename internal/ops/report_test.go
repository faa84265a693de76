package ops

import (
	"context"
	"strings"
	"testing"

	"github.com/hpungsan/trail/internal/activity"
)

func TestReport(t *testing.T) {
	_, database := setupDB(t)
	ctx := context.Background()

	e := newEntry("c.png", "2024-01-05", 11, "Firefox", "Reading docs")
	e.Browser = &activity.Browser{PageTitle: "Go spec"}
	e.Summary = "Looked up slices."
	mustIndex(t, database,
		newEntry("a.png", "2024-01-05", 9, "Code", "Editing parser"),
		e,
		newEntry("b.png", "2024-01-05", 10, "Code", "Running tests"),
		newEntry("d.png", "2024-01-05", 12, "", "Idle desktop"),
		newEntry("x.png", "2024-01-06", 9, "Code", "Other day"),
	)

	out, err := Report(ctx, database, ReportInput{Date: "2024-01-05", HTML: true})
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if out.Count != 4 {
		t.Errorf("Count = %d, want 4", out.Count)
	}

	md := out.Markdown
	for _, want := range []string{
		"# Activity for 2024-01-05",
		"| Code | 2 |",
		"| Firefox | 1 |",
		"## Code\n\n- **09:00** Editing parser\n- **10:00** Running tests\n",
		"- **11:00** Reading docs _(Go spec)_\n  Looked up slices.\n",
		"## Other\n\n- **12:00** Idle desktop\n",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Index(md, "## Code") > strings.Index(md, "## Firefox") {
		t.Error("sections should follow first use")
	}
	if strings.Contains(md, "Other day") {
		t.Error("report leaked another date")
	}

	if !strings.Contains(out.HTML, "<h1>Activity for 2024-01-05</h1>") || !strings.Contains(out.HTML, "<table>") {
		t.Errorf("html = %s", out.HTML)
	}
}

func TestReport_Empty(t *testing.T) {
	_, database := setupDB(t)
	out, err := Report(context.Background(), database, ReportInput{Date: "2024-01-05"})
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if out.Markdown != "# Activity for 2024-01-05\n\nNo activity recorded.\n" || out.HTML != "" {
		t.Errorf("out = %+v", out)
	}
}
