package ops

import (
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/trail/internal/activity"
	"github.com/hpungsan/trail/internal/errors"
)

// Result limits
const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 200
	MaxQueryLength     = 1000
)

// EntryList is the shape every search tool returns: a count, the entries,
// and a rendered one-line-per-entry text for conversational callers.
type EntryList struct {
	Count   int              `json:"count"`
	Entries []activity.Entry `json:"entries"`
	Text    string           `json:"text"`
}

func newEntryList(entries []activity.Entry) *EntryList {
	if entries == nil {
		entries = []activity.Entry{}
	}
	return &EntryList{
		Count:   len(entries),
		Entries: entries,
		Text:    activity.RenderList(entries),
	}
}

// clock is swapped in tests.
var clock = time.Now

// resolveDate normalizes loose date input to YYYY-MM-DD in local time.
func resolveDate(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.NewInvalidRequest(field + " is required")
	}
	d, err := activity.NormalizeDate(value, clock(), time.Local)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("%s: %v", field, err))
	}
	return d, nil
}

// resolveOptionalDate is resolveDate that lets "" through.
func resolveOptionalDate(field, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return resolveDate(field, value)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}
