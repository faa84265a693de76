package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hpungsan/trail/internal/activity"
	"github.com/hpungsan/trail/internal/errors"
)

// GetByDate returns the entries of one day in ascending time order.
func GetByDate(ctx context.Context, db *sql.DB, date string) ([]activity.Entry, error) {
	return GetByDateRange(ctx, db, date, date)
}

// GetByDateRange returns entries with start <= date <= end, ascending.
func GetByDateRange(ctx context.Context, db *sql.DB, start, end string) ([]activity.Entry, error) {
	if !activity.ValidDate(start) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid start date %q (want YYYY-MM-DD)", start))
	}
	if !activity.ValidDate(end) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid end date %q (want YYYY-MM-DD)", end))
	}
	if start > end {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("start date %s is after end date %s", start, end))
	}
	return queryEntries(ctx, db, `
		SELECT data FROM entries
		WHERE date >= ? AND date <= ?
		ORDER BY timestamp ASC, id ASC
	`, start, end)
}

// GetByApp returns the entries of one app, most recent first.
// The app name comparison is case-insensitive.
func GetByApp(ctx context.Context, db *sql.DB, appName string) ([]activity.Entry, error) {
	if appName == "" {
		return nil, errors.NewInvalidRequest("app name is required")
	}
	return queryEntries(ctx, db, `
		SELECT data FROM entries
		WHERE app_name = ? COLLATE NOCASE
		ORDER BY timestamp DESC, id DESC
	`, appName)
}

// GetApps returns the distinct app names, alphabetically. Names differing
// only in case are one app, listed under its most recent spelling.
func GetApps(ctx context.Context, db *sql.DB) ([]string, error) {
	return queryStrings(ctx, db, `
		SELECT app_name FROM (
			SELECT app_name, MAX(timestamp) FROM entries
			WHERE app_name != ''
			GROUP BY app_name COLLATE NOCASE
		) ORDER BY app_name COLLATE NOCASE
	`)
}

// GetDates returns the distinct dates, newest first.
func GetDates(ctx context.Context, db *sql.DB) ([]string, error) {
	return queryStrings(ctx, db, "SELECT DISTINCT date FROM entries ORDER BY date DESC")
}

// AppUsage is the number of entries recorded for one app.
type AppUsage struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// GetAppUsage counts entries per app in a date range, busiest first. Apps
// are grouped case-insensitively like GetByApp.
func GetAppUsage(ctx context.Context, db *sql.DB, start, end string) ([]AppUsage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT app_name, n FROM (
			SELECT app_name, COUNT(*) AS n, MAX(timestamp) FROM entries
			WHERE app_name != '' AND date >= ? AND date <= ?
			GROUP BY app_name COLLATE NOCASE
		) ORDER BY n DESC, app_name COLLATE NOCASE
	`, start, end)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	usage := []AppUsage{}
	for rows.Next() {
		var u AppUsage
		if err := rows.Scan(&u.Name, &u.Count); err != nil {
			return nil, errors.NewInternal(err)
		}
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return usage, nil
}

// IndexStats describes the search index. Derived on every call.
type IndexStats struct {
	EntryCount int    `json:"entry_count"`
	AppCount   int    `json:"app_count"`
	DateCount  int    `json:"date_count"`
	SizeBytes  int64  `json:"size_bytes"`
	OldestDate string `json:"oldest_date,omitempty"`
	NewestDate string `json:"newest_date,omitempty"`
}

// Stats computes IndexStats. SizeBytes is the main database file size
// (page_count * page_size).
func Stats(ctx context.Context, db *sql.DB) (*IndexStats, error) {
	var (
		s              IndexStats
		oldest, newest sql.NullString
	)
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(DISTINCT NULLIF(app_name, '') COLLATE NOCASE),
			COUNT(DISTINCT date),
			MIN(date), MAX(date)
		FROM entries
	`).Scan(&s.EntryCount, &s.AppCount, &s.DateCount, &oldest, &newest)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	s.OldestDate = oldest.String
	s.NewestDate = newest.String

	var pageCount, pageSize int64
	if err := db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, errors.NewInternal(err)
	}
	s.SizeBytes = pageCount * pageSize

	return &s, nil
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}
