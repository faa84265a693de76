package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/hpungsan/trail/internal/activity"
	"github.com/hpungsan/trail/internal/errors"
)

// DefaultSearchLimit applies when a caller passes limit <= 0.
const DefaultSearchLimit = 50

// MaxSearchQueryChars bounds query input before tokenization.
const MaxSearchQueryChars = 1000

// entries_fts column order. Must match schemaV1.
const (
	colFilename = iota
	colActivity
	colSummary
	colDetails
	colTags
	colAppName
	colWindowTitle
	colURL
	colDomain
	colPageTitle
	colVideoTitle
	colVideoChannel
	colIDEFile
	colIDEPath
	colIDEProject
	colGitBranch
	colTerminalCwd
	colTerminalCommand
	colSSHHost
	colCommChannel
	colCommRecipient
	colDocumentTitle
	ftsColumnCount
)

// columnWeights is the bm25 weight per entries_fts column. Descriptive
// fields rank above titles and URLs, which rank above paths and commands;
// the raw filename ranks last.
var columnWeights = [ftsColumnCount]float64{
	colFilename:        0.5,
	colActivity:        10,
	colSummary:         8,
	colDetails:         4,
	colTags:            4.5,
	colAppName:         5,
	colWindowTitle:     5,
	colURL:             4,
	colDomain:          4,
	colPageTitle:       5,
	colVideoTitle:      5,
	colVideoChannel:    3,
	colIDEFile:         3,
	colIDEPath:         2,
	colIDEProject:      3,
	colGitBranch:       2,
	colTerminalCwd:     2,
	colTerminalCommand: 2,
	colSSHHost:         2,
	colCommChannel:     3,
	colCommRecipient:   3,
	colDocumentTitle:   5,
}

// weightedRank is the bm25() call with columnWeights applied.
var weightedRank = func() string {
	parts := make([]string, len(columnWeights))
	for i, w := range columnWeights {
		parts[i] = fmt.Sprintf("%g", w)
	}
	return "bm25(entries_fts, " + strings.Join(parts, ", ") + ")"
}()

var stopwords = map[string]bool{
	"a": true, "about": true, "all": true, "an": true, "and": true, "any": true,
	"are": true, "as": true, "at": true, "be": true, "been": true, "but": true,
	"by": true, "can": true, "did": true, "do": true, "does": true, "for": true,
	"from": true, "had": true, "has": true, "have": true, "how": true, "i": true,
	"if": true, "in": true, "into": true, "is": true, "it": true, "its": true,
	"me": true, "my": true, "no": true, "not": true, "of": true, "on": true,
	"or": true, "our": true, "so": true, "some": true, "than": true, "that": true,
	"the": true, "their": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "to": true, "was": true, "we": true, "were": true,
	"what": true, "when": true, "where": true, "which": true, "while": true,
	"who": true, "why": true, "will": true, "with": true, "you": true, "your": true,
}

// Tokenize splits a query on whitespace into lowercase search terms.
// Quote characters are stripped; stopwords, duplicates and tokens without
// a letter or digit are dropped. Inner punctuation is kept, so "node.js"
// stays one term.
func Tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))

	seen := make(map[string]bool, len(fields))
	var tokens []string
	for _, f := range fields {
		f = strings.Trim(strings.ReplaceAll(f, `"`, ""), "'`")
		if f == "" || !strings.ContainsFunc(f, isWordRune) || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ftsQuery builds an FTS5 MATCH expression: each token as a quoted prefix
// term, OR-combined. Inside a quoted term FTS5 reads punctuation as a phrase
// boundary, so "alpha's"* needs "alpha" followed by an s-prefixed word. Returns "" when nothing is searchable.
func ftsQuery(query string) string {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return ""
	}
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = `"` + t + `"*`
	}
	return strings.Join(terms, " OR ")
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return limit
}

// Search ranks entries by plain bm25 over all full-text columns.
// An empty or all-stopword query returns no entries.
func Search(ctx context.Context, db *sql.DB, query string, limit int) ([]activity.Entry, error) {
	return search(ctx, db, query, limit, "bm25(entries_fts)")
}

// SearchWeighted ranks entries with per-column weights so activity and
// summary matches dominate incidental ones.
func SearchWeighted(ctx context.Context, db *sql.DB, query string, limit int) ([]activity.Entry, error) {
	return search(ctx, db, query, limit, weightedRank)
}

func search(ctx context.Context, db *sql.DB, query string, limit int, rank string) ([]activity.Entry, error) {
	match := ftsQuery(query)
	if match == "" {
		return []activity.Entry{}, nil
	}
	return queryEntries(ctx, db, `
		SELECT e.data
		FROM entries_fts
		JOIN entries e ON e.id = entries_fts.rowid
		WHERE entries_fts MATCH ?
		ORDER BY `+rank+`, e.id
		LIMIT ?
	`, match, clampLimit(limit))
}

// CombinedQuery filters are ANDed. Empty fields are ignored.
type CombinedQuery struct {
	StartDate string
	EndDate   string
	Keywords  string
	AppName   string
	Limit     int
}

// SearchCombined applies every given filter. With keywords the results are
// ranked like SearchWeighted, otherwise they are in ascending time order.
func SearchCombined(ctx context.Context, db *sql.DB, q CombinedQuery) ([]activity.Entry, error) {
	keywords := strings.TrimSpace(q.Keywords)
	app := strings.TrimSpace(q.AppName)
	if q.StartDate == "" && q.EndDate == "" && keywords == "" && app == "" {
		return nil, errors.NewInvalidRequest("at least one of start_date, end_date, keywords, app_name is required")
	}
	for _, d := range []string{q.StartDate, q.EndDate} {
		if d != "" && !activity.ValidDate(d) {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid date %q (want YYYY-MM-DD)", d))
		}
	}

	// Keywords that leave nothing searchable match nothing, even with filters.
	match := ftsQuery(keywords)
	if keywords != "" && match == "" {
		return []activity.Entry{}, nil
	}

	var (
		where []string
		args  []any
		from  = "entries e"
		order = "e.timestamp ASC, e.id ASC"
	)
	if match != "" {
		from = "entries_fts JOIN entries e ON e.id = entries_fts.rowid"
		where = append(where, "entries_fts MATCH ?")
		args = append(args, match)
		order = weightedRank + ", e.id"
	}
	if q.StartDate != "" {
		where = append(where, "e.date >= ?")
		args = append(args, q.StartDate)
	}
	if q.EndDate != "" {
		where = append(where, "e.date <= ?")
		args = append(args, q.EndDate)
	}
	if app != "" {
		where = append(where, "e.app_name = ? COLLATE NOCASE")
		args = append(args, app)
	}
	args = append(args, clampLimit(q.Limit))

	query := "SELECT e.data FROM " + from +
		" WHERE " + strings.Join(where, " AND ") +
		" ORDER BY " + order + " LIMIT ?"
	return queryEntries(ctx, db, query, args...)
}
