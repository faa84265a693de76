package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"

	"github.com/hpungsan/trail/internal/activity"
	"github.com/hpungsan/trail/internal/db"
	"github.com/hpungsan/trail/internal/errors"
)

// SearchInput contains parameters for the SearchFulltext operation.
type SearchInput struct {
	Query string // required
	Limit int    // default: 50, max: 200

	// Unweighted ranks every field equally instead of favouring
	// activity and summary matches.
	Unweighted bool
}

// SearchFulltext runs a ranked full-text search. An empty query finds nothing.
func SearchFulltext(ctx context.Context, database *sql.DB, input SearchInput) (*EntryList, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return newEntryList(nil), nil
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}

	search := db.SearchWeighted
	if input.Unweighted {
		search = db.Search
	}
	entries, err := search(ctx, database, query, clampLimit(input.Limit))
	if err != nil {
		return nil, err
	}
	return newEntryList(entries), nil
}

// SearchByDate returns one day's entries, oldest first.
func SearchByDate(ctx context.Context, database *sql.DB, date string) (*EntryList, error) {
	d, err := resolveDate("date", date)
	if err != nil {
		return nil, err
	}
	entries, err := db.GetByDate(ctx, database, d)
	if err != nil {
		return nil, err
	}
	return newEntryList(entries), nil
}

// SearchByDateRange returns entries between two dates inclusive, oldest first.
func SearchByDateRange(ctx context.Context, database *sql.DB, start, end string) (*EntryList, error) {
	s, err := resolveDate("start_date", start)
	if err != nil {
		return nil, err
	}
	e, err := resolveDate("end_date", end)
	if err != nil {
		return nil, err
	}
	entries, err := db.GetByDateRange(ctx, database, s, e)
	if err != nil {
		return nil, err
	}
	return newEntryList(entries), nil
}

// AppEntryList adds app-name suggestions when nothing matched.
type AppEntryList struct {
	EntryList
	Suggestions []string `json:"suggestions,omitempty"`
}

// MaxSuggestions bounds the "did you mean" list.
const MaxSuggestions = 3

// SearchByApp returns one app's entries, most recent first. When the name
// matches nothing, close app names are suggested.
func SearchByApp(ctx context.Context, database *sql.DB, appName string) (*AppEntryList, error) {
	appName = activity.Normalize(appName)
	if appName == "" {
		return nil, errors.NewInvalidRequest("app_name is required")
	}

	entries, err := db.GetByApp(ctx, database, appName)
	if err != nil {
		return nil, err
	}
	out := &AppEntryList{EntryList: *newEntryList(entries)}
	if len(entries) > 0 {
		return out, nil
	}

	apps, err := db.GetApps(ctx, database)
	if err != nil {
		return nil, err
	}
	out.Suggestions = suggestApps(appName, apps)
	if len(out.Suggestions) > 0 {
		out.Text += "\nDid you mean: " + strings.Join(out.Suggestions, ", ") + "?"
	}
	return out, nil
}

// suggestApps ranks known app names by fuzzy match against name.
func suggestApps(name string, apps []string) []string {
	matches := fuzzy.Find(strings.ToLower(name), lowerAll(apps))
	out := make([]string, 0, MaxSuggestions)
	for _, m := range matches {
		if len(out) == MaxSuggestions {
			break
		}
		out = append(out, apps[m.Index])
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// CombinedInput contains parameters for SearchCombined. At least one filter
// is required.
type CombinedInput struct {
	StartDate string
	EndDate   string
	Keywords  string
	AppName   string
	Limit     int
}

// SearchCombined ANDs every given filter.
func SearchCombined(ctx context.Context, database *sql.DB, input CombinedInput) (*EntryList, error) {
	start, err := resolveOptionalDate("start_date", input.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := resolveOptionalDate("end_date", input.EndDate)
	if err != nil {
		return nil, err
	}
	if start != "" && end != "" && start > end {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("start_date %s is after end_date %s", start, end))
	}

	entries, err := db.SearchCombined(ctx, database, db.CombinedQuery{
		StartDate: start,
		EndDate:   end,
		Keywords:  input.Keywords,
		AppName:   activity.Normalize(input.AppName),
		Limit:     clampLimit(input.Limit),
	})
	if err != nil {
		return nil, err
	}
	return newEntryList(entries), nil
}

// NameList is a list of distinct values with a rendered text form.
type NameList struct {
	Count int      `json:"count"`
	Items []string `json:"items"`
	Text  string   `json:"text"`
}

func newNameList(items []string, empty string) *NameList {
	if items == nil {
		items = []string{}
	}
	text := empty
	if len(items) > 0 {
		text = strings.Join(items, "\n")
	}
	return &NameList{Count: len(items), Items: items, Text: text}
}

// ListApps returns every app seen, alphabetically.
func ListApps(ctx context.Context, database *sql.DB) (*NameList, error) {
	apps, err := db.GetApps(ctx, database)
	if err != nil {
		return nil, err
	}
	return newNameList(apps, "No apps indexed yet."), nil
}

// ListDates returns every date with entries, newest first.
func ListDates(ctx context.Context, database *sql.DB) (*NameList, error) {
	dates, err := db.GetDates(ctx, database)
	if err != nil {
		return nil, err
	}
	return newNameList(dates, "No dates indexed yet."), nil
}

// StatsOutput wraps IndexStats with a rendered summary.
type StatsOutput struct {
	db.IndexStats
	Text string `json:"text"`
}

// GetIndexStats describes the search index.
func GetIndexStats(ctx context.Context, database *sql.DB) (*StatsOutput, error) {
	s, err := db.Stats(ctx, database)
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("%d entries, %d apps, %d dates, %s on disk",
		s.EntryCount, s.AppCount, s.DateCount, humanBytes(s.SizeBytes))
	if s.OldestDate != "" {
		text += fmt.Sprintf(" (%s to %s)", s.OldestDate, s.NewestDate)
	}
	return &StatsOutput{IndexStats: *s, Text: text}, nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
