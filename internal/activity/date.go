package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// ValidDate reports whether s is a real YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// NormalizeDate accepts loose date input ("2024-01-05", "Jan 5 2024",
// "01/05/2024", "today", "yesterday") and returns YYYY-MM-DD in loc.
func NormalizeDate(s string, now time.Time, loc *time.Location) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.Local
	}
	if ValidDate(s) {
		return s, nil
	}

	switch strings.ToLower(s) {
	case "today":
		return now.In(loc).Format(DateLayout), nil
	case "yesterday":
		return now.In(loc).AddDate(0, 0, -1).Format(DateLayout), nil
	}

	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return "", fmt.Errorf("unrecognized date %q: %w", s, err)
	}
	return t.In(loc).Format(DateLayout), nil
}

// Stamp returns the date and time strings for an epoch-ms timestamp in loc.
func Stamp(timestampMs int64, loc *time.Location) (date, clock string) {
	if loc == nil {
		loc = time.Local
	}
	t := time.UnixMilli(timestampMs).In(loc)
	return t.Format(DateLayout), t.Format(TimeLayout)
}
