package ops

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/trail/internal/errors"
)

func TestSearchFulltext(t *testing.T) {
	_, database := setupDB(t)
	ctx := context.Background()
	mustIndex(t, database,
		newEntry("a.png", "2024-01-05", 9, "Code", "Editing parser tests"),
		newEntry("b.png", "2024-01-05", 10, "Slack", "Chatting about lunch"),
	)

	for _, unweighted := range []bool{false, true} {
		out, err := SearchFulltext(ctx, database, SearchInput{Query: "parser", Unweighted: unweighted})
		if err != nil {
			t.Fatalf("SearchFulltext failed: %v", err)
		}
		if out.Count != 1 || out.Entries[0].Filename != "a.png" {
			t.Fatalf("unweighted=%v: got %v", unweighted, filenames(out.Entries))
		}
		if !strings.Contains(out.Text, "[Code] Editing parser tests") {
			t.Errorf("Text = %q", out.Text)
		}
	}
}

func TestSearchFulltext_Invalid(t *testing.T) {
	_, database := setupDB(t)
	ctx := context.Background()

	_, err := SearchFulltext(ctx, database, SearchInput{Query: strings.Repeat("a", MaxQueryLength+1)})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestSearchFulltext_EmptyQuery(t *testing.T) {
	_, database := setupDB(t)
	ctx := context.Background()
	mustIndex(t, database, newEntry("a.png", "2024-01-05", 9, "Code", "Editing parser"))

	for _, q := range []string{"", "   ", "the of"} {
		out, err := SearchFulltext(ctx, database, SearchInput{Query: q})
		if err != nil {
			t.Fatalf("SearchFulltext(%q) failed: %v", q, err)
		}
		if out.Count != 0 || out.Entries == nil {
			t.Errorf("SearchFulltext(%q) = %+v, want empty list", q, out)
		}
	}
}

func TestSearchByDate_LooseFormats(t *testing.T) {
	_, database := setupDB(t)
	ctx := context.Background()
	fixClock(t, time.Date(2024, 1, 6, 12, 0, 0, 0, time.Local))
	mustIndex(t, database,
		newEntry("late.png", "2024-01-05", 15, "Code", "Late work"),
		newEntry("early.png", "2024-01-05", 9, "Code", "Early work"),
		newEntry("other.png", "2024-01-06", 9, "Code", "Next day"),
	)

	for _, in := range []string{"2024-01-05", "yesterday", "Jan 5, 2024", "01/05/2024"} {
		out, err := SearchByDate(ctx, database, in)
		if err != nil {
			t.Fatalf("SearchByDate(%q) failed: %v", in, err)
		}
		if got := filenames(out.Entries); !slices.Equal(got, []string{"early.png", "late.png"}) {
			t.Errorf("SearchByDate(%q) = %v", in, got)
		}
	}

	if _, err := SearchByDate(ctx, database, "not a date"); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
	if _, err := SearchByDate(ctx, database, ""); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST for empty date, got %v", err)
	}
}

func TestSearchByDateRange(t *testing.T) {
	_, database := setupDB(t)
	ctx := context.Background()
	mustIndex(t, database,
		newEntry("d4.png", "2024-01-04", 9, "Code", "x"),
		newEntry("d5.png", "2024-01-05", 9, "Code", "x"),
		newEntry("d7.png", "2024-01-07", 9, "Code", "x"),
	)

	out, err := SearchByDateRange(ctx, database, "2024-01-05", "2024-01-07")
	if err != nil {
		t.Fatalf("SearchByDateRange failed: %v", err)
	}
	if got := filenames(out.Entries); !slices.Equal(got, []string{"d5.png", "d7.png"}) {
		t.Errorf("got %v", got)
	}

	if _, err := SearchByDateRange(ctx, database, "2024-01-07", "2024-01-05"); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST for reversed range, got %v", err)
	}
}

func TestSearchByApp_Suggestions(t *testing.T) {
	_, database := setupDB(t)
	ctx := context.Background()
	mustIndex(t, database,
		newEntry("a.png", "2024-01-05", 9, "Google Chrome", "Reading docs"),
		newEntry("b.png", "2024-01-05", 10, "Code", "Editing"),
	)

	out, err := SearchByApp(ctx, database, "google  chrome")
	if err != nil {
		t.Fatalf("SearchByApp failed: %v", err)
	}
	if out.Count != 1 || len(out.Suggestions) != 0 {
		t.Fatalf("Count = %d, Suggestions = %v", out.Count, out.Suggestions)
	}

	out, err = SearchByApp(ctx, database, "crome")
	if err != nil {
		t.Fatalf("SearchByApp failed: %v", err)
	}
	if out.Count != 0 {
		t.Fatalf("Count = %d, want 0", out.Count)
	}
	if !slices.Equal(out.Suggestions, []string{"Google Chrome"}) {
		t.Errorf("Suggestions = %v", out.Suggestions)
	}
	if !strings.Contains(out.Text, "Did you mean: Google Chrome?") {
		t.Errorf("Text = %q", out.Text)
	}

	if _, err := SearchByApp(ctx, database, " "); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestSearchCombined(t *testing.T) {
	_, database := setupDB(t)
	ctx := context.Background()
	mustIndex(t, database,
		newEntry("a.png", "2024-01-05", 9, "Code", "Editing parser"),
		newEntry("b.png", "2024-01-06", 9, "Code", "Editing parser"),
		newEntry("c.png", "2024-01-06", 10, "Slack", "Parser discussion"),
	)

	out, err := SearchCombined(ctx, database, CombinedInput{
		StartDate: "2024-01-06",
		Keywords:  "parser",
		AppName:   "code",
	})
	if err != nil {
		t.Fatalf("SearchCombined failed: %v", err)
	}
	if got := filenames(out.Entries); !slices.Equal(got, []string{"b.png"}) {
		t.Errorf("got %v", got)
	}

	if _, err := SearchCombined(ctx, database, CombinedInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST for no filters, got %v", err)
	}
	_, err = SearchCombined(ctx, database, CombinedInput{StartDate: "2024-01-07", EndDate: "2024-01-06"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST for reversed range, got %v", err)
	}
}

func TestListAppsDatesStats(t *testing.T) {
	_, database := setupDB(t)
	ctx := context.Background()

	apps, err := ListApps(ctx, database)
	if err != nil {
		t.Fatalf("ListApps failed: %v", err)
	}
	if apps.Count != 0 || apps.Text != "No apps indexed yet." {
		t.Errorf("empty ListApps = %+v", apps)
	}

	mustIndex(t, database,
		newEntry("a.png", "2024-01-05", 9, "Slack", "x"),
		newEntry("b.png", "2024-01-06", 9, "Code", "y"),
	)

	apps, err = ListApps(ctx, database)
	if err != nil {
		t.Fatalf("ListApps failed: %v", err)
	}
	if !slices.Equal(apps.Items, []string{"Code", "Slack"}) {
		t.Errorf("apps = %v", apps.Items)
	}

	dates, err := ListDates(ctx, database)
	if err != nil {
		t.Fatalf("ListDates failed: %v", err)
	}
	if !slices.Equal(dates.Items, []string{"2024-01-06", "2024-01-05"}) {
		t.Errorf("dates = %v", dates.Items)
	}
	if dates.Text != "2024-01-06\n2024-01-05" {
		t.Errorf("dates text = %q", dates.Text)
	}

	stats, err := GetIndexStats(ctx, database)
	if err != nil {
		t.Fatalf("GetIndexStats failed: %v", err)
	}
	if stats.EntryCount != 2 || stats.AppCount != 2 || stats.DateCount != 2 {
		t.Errorf("stats = %+v", stats.IndexStats)
	}
	if !strings.HasPrefix(stats.Text, "2 entries, 2 apps, 2 dates, ") ||
		!strings.HasSuffix(stats.Text, "(2024-01-05 to 2024-01-06)") {
		t.Errorf("stats text = %q", stats.Text)
	}
}

func TestHumanBytes(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for in, want := range tests {
		if got := humanBytes(in); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
