package db

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/hpungsan/trail/internal/activity"
	"github.com/hpungsan/trail/internal/errors"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newEntry builds an entry for date at the given hour.
func newEntry(filename, date string, hour int, app, act string) *activity.Entry {
	ts, _ := time.Parse("2006-01-02", date)
	ts = ts.Add(time.Duration(hour) * time.Hour)
	e := &activity.Entry{
		Filename:  filename,
		Timestamp: ts.UnixMilli(),
		Date:      date,
		Time:      ts.Format("15:04:05"),
		Activity:  act,
	}
	if app != "" {
		e.App = &activity.App{Name: app}
	}
	return e
}

func mustIndex(t *testing.T, db *sql.DB, entries ...*activity.Entry) {
	t.Helper()
	for _, e := range entries {
		if err := IndexEntry(db, e); err != nil {
			t.Fatalf("IndexEntry(%s) error = %v", e.Filename, err)
		}
	}
}

func filenames(entries []activity.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Filename
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestIndexEntry_Upsert(t *testing.T) {
	db := setupDB(t)

	mustIndex(t, db, newEntry("shot.png", "2024-01-01", 9, "Code", "first draft"))
	mustIndex(t, db, newEntry("shot.png", "2024-01-01", 9, "Safari", "second draft"))

	if n := countRows(t, db, "entries"); n != 1 {
		t.Fatalf("entries = %d, want 1", n)
	}
	if n := countRows(t, db, "entries_fts"); n != 1 {
		t.Fatalf("entries_fts = %d, want 1", n)
	}

	got, err := GetEntry(db, "shot.png")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.Activity != "second draft" || got.AppName() != "Safari" {
		t.Errorf("got %q / %q, want latest fields", got.Activity, got.AppName())
	}

	// The old text must be gone from the full-text view
	results, err := Search(context.Background(), db, "first", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("stale full-text row matched: %v", filenames(results))
	}
}

func TestIndexEntry_Validation(t *testing.T) {
	db := setupDB(t)

	tests := []struct {
		name  string
		entry *activity.Entry
	}{
		{"nil", nil},
		{"no filename", &activity.Entry{Date: "2024-01-01"}},
		{"bad date", &activity.Entry{Filename: "a.png", Date: "01/02/2024"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := IndexEntry(db, tt.entry)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("IndexEntry() error = %v, want INVALID_REQUEST", err)
			}
		})
	}
}

func TestIndexEntries_Atomic(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	batch := []*activity.Entry{
		newEntry("a.png", "2024-01-01", 1, "Code", "a"),
		newEntry("b.png", "2024-01-01", 2, "Code", "b"),
	}
	if err := IndexEntries(ctx, db, batch); err != nil {
		t.Fatalf("IndexEntries() error = %v", err)
	}
	if n := countRows(t, db, "entries"); n != 2 {
		t.Fatalf("entries = %d, want 2", n)
	}

	// One invalid entry rejects the whole batch
	bad := []*activity.Entry{
		newEntry("c.png", "2024-01-02", 1, "Code", "c"),
		{Filename: "d.png", Date: "nope"},
	}
	if err := IndexEntries(ctx, db, bad); err == nil {
		t.Fatal("IndexEntries() expected error")
	}
	if ok, _ := HasEntry(db, "c.png"); ok {
		t.Error("c.png visible after failed batch")
	}

	// A cancelled context aborts without writing
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err := IndexEntries(cctx, db, []*activity.Entry{newEntry("e.png", "2024-01-03", 1, "", "e")})
	if err == nil {
		t.Fatal("IndexEntries() with cancelled context expected error")
	}
	if ok, _ := HasEntry(db, "e.png"); ok {
		t.Error("e.png visible after cancelled batch")
	}
}

func TestGetByDateRange(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	// Insert out of order to check the sort
	for _, d := range []string{"2024-01-04", "2024-01-01", "2024-01-03", "2024-01-05", "2024-01-02"} {
		mustIndex(t, db, newEntry(d+".png", d, 12, "Code", "work"))
	}

	got, err := GetByDateRange(ctx, db, "2024-01-02", "2024-01-04")
	if err != nil {
		t.Fatalf("GetByDateRange() error = %v", err)
	}
	want := []string{"2024-01-02.png", "2024-01-03.png", "2024-01-04.png"}
	if !equalStrings(filenames(got), want) {
		t.Errorf("GetByDateRange() = %v, want %v", filenames(got), want)
	}

	got, err = GetByDateRange(ctx, db, "2024-01-03", "2024-01-03")
	if err != nil {
		t.Fatalf("GetByDateRange() error = %v", err)
	}
	if !equalStrings(filenames(got), []string{"2024-01-03.png"}) {
		t.Errorf("single-day range = %v", filenames(got))
	}

	if _, err := GetByDateRange(ctx, db, "2024-01-04", "2024-01-02"); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("reversed range error = %v, want INVALID_REQUEST", err)
	}
	if _, err := GetByDateRange(ctx, db, "2024-1-2", "2024-01-04"); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad date error = %v, want INVALID_REQUEST", err)
	}
}

func TestGetByDate_AscendingTime(t *testing.T) {
	db := setupDB(t)
	mustIndex(t, db,
		newEntry("late.png", "2024-02-01", 18, "Code", "late"),
		newEntry("early.png", "2024-02-01", 8, "Code", "early"),
		newEntry("other.png", "2024-02-02", 8, "Code", "other"),
	)

	got, err := GetByDate(context.Background(), db, "2024-02-01")
	if err != nil {
		t.Fatalf("GetByDate() error = %v", err)
	}
	if !equalStrings(filenames(got), []string{"early.png", "late.png"}) {
		t.Errorf("GetByDate() = %v", filenames(got))
	}
}

func TestGetByApp_MostRecentFirst(t *testing.T) {
	db := setupDB(t)
	mustIndex(t, db,
		newEntry("1.png", "2024-02-01", 8, "Code", "a"),
		newEntry("2.png", "2024-02-03", 8, "Code", "b"),
		newEntry("3.png", "2024-02-02", 8, "Safari", "c"),
		newEntry("4.png", "2024-02-02", 9, "code", "d"),
	)

	got, err := GetByApp(context.Background(), db, "CODE")
	if err != nil {
		t.Fatalf("GetByApp() error = %v", err)
	}
	want := []string{"2.png", "4.png", "1.png"}
	if !equalStrings(filenames(got), want) {
		t.Errorf("GetByApp() = %v, want %v", filenames(got), want)
	}
}

func TestSearch(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	e := newEntry("a.png", "2024-03-01", 9, "Firefox", "Reading SQLite docs")
	e.Browser = &activity.Browser{URL: "https://sqlite.org/fts5.html", Domain: "sqlite.org"}
	mustIndex(t, db, e, newEntry("b.png", "2024-03-01", 10, "Code", "Writing Go tests"))

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"prefix", "sqli", []string{"a.png"}},
		{"case-insensitive", "WRITING", []string{"b.png"}},
		{"or across tokens", "fts5 tests", nil}, // order checked by length only
		{"quotes stripped", `"go"`, []string{"b.png"}},
		{"fts syntax stripped", "docs* OR (", []string{"a.png"}},
		{"all stopwords", "the and of", []string{}},
		{"empty", "   ", []string{}},
		{"no match", "kubernetes", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Search(ctx, db, tt.query, 0)
			if err != nil {
				t.Fatalf("Search(%q) error = %v", tt.query, err)
			}
			if tt.want == nil {
				if len(got) != 2 {
					t.Errorf("Search(%q) = %v, want both entries", tt.query, filenames(got))
				}
				return
			}
			if !equalStrings(filenames(got), tt.want) {
				t.Errorf("Search(%q) = %v, want %v", tt.query, filenames(got), tt.want)
			}
		})
	}
}

func TestSearchWeighted_ActivityOutranksTags(t *testing.T) {
	db := setupDB(t)

	tagged := newEntry("tagged.png", "2024-03-01", 9, "Code", "Editing config")
	tagged.Tags = []string{"typescript"}
	primary := newEntry("primary.png", "2024-03-01", 10, "Code", "typescript sandbox design")

	// Unrelated entries keep term document frequencies realistic
	mustIndex(t, db, tagged, primary)
	for i := range 4 {
		mustIndex(t, db, newEntry(fmt.Sprintf("filler%d.png", i), "2024-03-02", i, "Mail", "reading email"))
	}

	got, err := SearchWeighted(context.Background(), db, "typescript sandbox", 10)
	if err != nil {
		t.Fatalf("SearchWeighted() error = %v", err)
	}
	want := []string{"primary.png", "tagged.png"}
	if !equalStrings(filenames(got), want) {
		t.Errorf("SearchWeighted() = %v, want %v", filenames(got), want)
	}
}

func TestSearchWeighted_FilenameRanksLast(t *testing.T) {
	db := setupDB(t)

	byName := newEntry("invoice-2024.png", "2024-03-01", 9, "Preview", "Viewing a PDF")
	bySummary := newEntry("x.png", "2024-03-01", 10, "Mail", "Answering email")
	bySummary.Summary = "Sent the invoice to accounting"
	mustIndex(t, db, byName, bySummary)
	for i := range 4 {
		mustIndex(t, db, newEntry(fmt.Sprintf("filler%d.png", i), "2024-03-02", i, "Code", "coding"))
	}

	got, err := SearchWeighted(context.Background(), db, "invoice", 10)
	if err != nil {
		t.Fatalf("SearchWeighted() error = %v", err)
	}
	if !equalStrings(filenames(got), []string{"x.png", "invoice-2024.png"}) {
		t.Errorf("SearchWeighted() = %v", filenames(got))
	}
}

func TestSearchCombined(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	mustIndex(t, db,
		newEntry("1.png", "2024-04-01", 9, "Code", "parser work"),
		newEntry("2.png", "2024-04-02", 9, "Code", "lexer work"),
		newEntry("3.png", "2024-04-02", 10, "Safari", "parser docs"),
		newEntry("4.png", "2024-04-03", 9, "Code", "parser review"),
	)

	tests := []struct {
		name string
		q    CombinedQuery
		want []string
	}{
		{"dates only ascending", CombinedQuery{StartDate: "2024-04-02"}, []string{"2.png", "3.png", "4.png"}},
		{"end date only", CombinedQuery{EndDate: "2024-04-01"}, []string{"1.png"}},
		{"app only", CombinedQuery{AppName: "safari"}, []string{"3.png"}},
		{"keywords and app", CombinedQuery{Keywords: "parser", AppName: "Code", StartDate: "2024-04-02"}, []string{"4.png"}},
		{"stopword keywords with filters", CombinedQuery{Keywords: "the", AppName: "Safari"}, []string{}},
		{"stopword keywords with dates", CombinedQuery{Keywords: "of the", StartDate: "2024-04-01", EndDate: "2024-04-03"}, []string{}},
		{"stopword keywords alone", CombinedQuery{Keywords: "the"}, []string{}},
		{"limit", CombinedQuery{AppName: "code", Limit: 2}, []string{"1.png", "2.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SearchCombined(ctx, db, tt.q)
			if err != nil {
				t.Fatalf("SearchCombined() error = %v", err)
			}
			if !equalStrings(filenames(got), tt.want) {
				t.Errorf("SearchCombined() = %v, want %v", filenames(got), tt.want)
			}
		})
	}

	if _, err := SearchCombined(ctx, db, CombinedQuery{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty query error = %v, want INVALID_REQUEST", err)
	}
	if _, err := SearchCombined(ctx, db, CombinedQuery{StartDate: "April"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad date error = %v, want INVALID_REQUEST", err)
	}
}

func TestDeleteEntry(t *testing.T) {
	db := setupDB(t)
	mustIndex(t, db, newEntry("a.png", "2024-01-01", 1, "Code", "unique words here"))

	if err := DeleteEntry(db, "a.png"); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}
	if n := countRows(t, db, "entries_fts"); n != 0 {
		t.Errorf("entries_fts = %d after delete, want 0", n)
	}
	if _, err := GetEntry(db, "a.png"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetEntry() error = %v, want NOT_FOUND", err)
	}
	if err := DeleteEntry(db, "a.png"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second DeleteEntry() error = %v, want NOT_FOUND", err)
	}
}

func TestClearAndRebuild(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	mustIndex(t, db,
		newEntry("a.png", "2024-01-01", 1, "Code", "alpha"),
		newEntry("b.png", "2024-01-01", 2, "Code", "beta"),
	)

	// Drift the full-text view, then rebuild it from the entries
	if _, err := db.Exec("DELETE FROM entries_fts"); err != nil {
		t.Fatalf("drift: %v", err)
	}
	n, err := RebuildIndex(ctx, db)
	if err != nil {
		t.Fatalf("RebuildIndex() error = %v", err)
	}
	if n != 2 {
		t.Errorf("RebuildIndex() = %d, want 2", n)
	}
	got, err := Search(ctx, db, "beta", 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("Search after rebuild = %v, %v", filenames(got), err)
	}

	removed, err := Clear(db)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Clear() = %d, want 2", removed)
	}
	if countRows(t, db, "entries") != 0 || countRows(t, db, "entries_fts") != 0 {
		t.Error("tables not empty after Clear")
	}
}

func TestRecent(t *testing.T) {
	db := setupDB(t)
	for i := range 5 {
		mustIndex(t, db, newEntry(fmt.Sprintf("%d.png", i), "2024-01-01", i, "", "x"))
	}

	got, err := Recent(context.Background(), db, 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if !equalStrings(filenames(got), []string{"2.png", "3.png", "4.png"}) {
		t.Errorf("Recent() = %v", filenames(got))
	}

	got, _ = Recent(context.Background(), db, 0)
	if len(got) != 0 {
		t.Errorf("Recent(0) = %v", filenames(got))
	}
}

func TestAppsDatesStats(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	stats, err := Stats(ctx, db)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.EntryCount != 0 || stats.OldestDate != "" {
		t.Errorf("empty Stats() = %+v", stats)
	}

	mustIndex(t, db,
		newEntry("1.png", "2024-01-01", 1, "Code", "a"),
		newEntry("2.png", "2024-01-03", 1, "Safari", "b"),
		newEntry("3.png", "2024-01-03", 2, "Code", "c"),
		newEntry("4.png", "2024-01-02", 1, "", "d"),
	)

	apps, err := GetApps(ctx, db)
	if err != nil {
		t.Fatalf("GetApps() error = %v", err)
	}
	if !equalStrings(apps, []string{"Code", "Safari"}) {
		t.Errorf("GetApps() = %v", apps)
	}

	dates, err := GetDates(ctx, db)
	if err != nil {
		t.Fatalf("GetDates() error = %v", err)
	}
	if !equalStrings(dates, []string{"2024-01-03", "2024-01-02", "2024-01-01"}) {
		t.Errorf("GetDates() = %v", dates)
	}

	usage, err := GetAppUsage(ctx, db, "2024-01-01", "2024-01-03")
	if err != nil {
		t.Fatalf("GetAppUsage() error = %v", err)
	}
	if len(usage) != 2 || usage[0].Name != "Code" || usage[0].Count != 2 {
		t.Errorf("GetAppUsage() = %+v", usage)
	}

	stats, err = Stats(ctx, db)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.EntryCount != 4 || stats.AppCount != 2 || stats.DateCount != 3 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.OldestDate != "2024-01-01" || stats.NewestDate != "2024-01-03" {
		t.Errorf("Stats() dates = %s..%s", stats.OldestDate, stats.NewestDate)
	}
	if stats.SizeBytes <= 0 {
		t.Errorf("Stats().SizeBytes = %d", stats.SizeBytes)
	}
}

func TestApps_CaseInsensitive(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	mustIndex(t, db,
		newEntry("1.png", "2024-01-01", 1, "slack", "a"),
		newEntry("2.png", "2024-01-01", 2, "Slack", "b"),
		newEntry("3.png", "2024-01-01", 3, "Code", "c"),
	)

	apps, err := GetApps(ctx, db)
	if err != nil {
		t.Fatalf("GetApps() error = %v", err)
	}
	if !equalStrings(apps, []string{"Code", "Slack"}) {
		t.Errorf("GetApps() = %v, want [Code Slack]", apps)
	}

	usage, err := GetAppUsage(ctx, db, "2024-01-01", "2024-01-01")
	if err != nil {
		t.Fatalf("GetAppUsage() error = %v", err)
	}
	if len(usage) != 2 || usage[0].Name != "Slack" || usage[0].Count != 2 {
		t.Errorf("GetAppUsage() = %+v", usage)
	}

	stats, err := Stats(ctx, db)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.AppCount != 2 {
		t.Errorf("Stats().AppCount = %d, want 2", stats.AppCount)
	}

	byApp, err := GetByApp(ctx, db, "SLACK")
	if err != nil {
		t.Fatalf("GetByApp() error = %v", err)
	}
	if len(byApp) != 2 {
		t.Errorf("GetByApp() = %v, want both spellings", filenames(byApp))
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello World", []string{"hello", "world"}},
		{`"quoted" 'single'`, []string{"quoted", "single"}},
		{"tree-sitter", []string{"tree-sitter"}},
		{"the go and the GO", []string{"go"}},
		{"alpha's node.js", []string{"alpha's", "node.js"}},
		{`say"hi"`, []string{"sayhi"}},
		{"col:value^2", []string{"col:value^2"}},
		{"-- *** ( )", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Tokenize(tt.in); !equalStrings(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if got := ftsQuery("go tests"); got != `"go"* OR "tests"*` {
		t.Errorf("ftsQuery() = %q", got)
	}
	if got := ftsQuery("alpha's"); got != `"alpha's"*` {
		t.Errorf("ftsQuery(alpha's) = %q", got)
	}
}

func TestSearch_InnerPunctuationStaysOneTerm(t *testing.T) {
	db := setupDB(t)
	mustIndex(t, db,
		newEntry("a.png", "2024-03-01", 9, "Code", "alpha's review"),
		newEntry("b.png", "2024-03-01", 10, "Figma", "sandbox design"),
		newEntry("c.png", "2024-03-01", 11, "Code", "node.js server"),
		newEntry("d.png", "2024-03-01", 12, "Code", "typing tests"),
	)

	tests := []struct {
		query string
		want  []string
	}{
		{"alpha's", []string{"a.png"}},
		{"node.js", []string{"c.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := SearchWeighted(context.Background(), db, tt.query, 0)
			if err != nil {
				t.Fatalf("SearchWeighted(%q) error = %v", tt.query, err)
			}
			if !equalStrings(filenames(got), tt.want) {
				t.Errorf("SearchWeighted(%q) = %v, want %v", tt.query, filenames(got), tt.want)
			}
		})
	}
}
