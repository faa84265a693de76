package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hpungsan/trail/internal/activity"
	"github.com/hpungsan/trail/internal/config"
	"github.com/hpungsan/trail/internal/db"
	"github.com/hpungsan/trail/internal/errors"
	"github.com/hpungsan/trail/internal/fsutil"
)

// maxImportLine bounds one JSONL line; entries carry free text but no images.
const maxImportLine = 4 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string // required
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one line that could not be imported.
type ImportError struct {
	Line     int    `json:"line"`
	Filename string `json:"filename,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// Import reads a JSONL export and upserts every valid entry in a single
// transaction, then rebuilds the full-text view. Bad lines are reported and
// skipped; they never abort the import.
func Import(ctx context.Context, database *sql.DB, dataDir string, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if err := ValidatePath(input.Path, PathCheckRead, dataDir, cfg); err != nil {
		return nil, err
	}

	file, err := fsutil.OpenNoFollowRead(input.Path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	entries, lineErrors := parseExport(file)

	if len(entries) > 0 {
		if err := db.IndexEntries(ctx, database, entries); err != nil {
			return nil, err
		}
		if _, err := db.RebuildIndex(ctx, database); err != nil {
			return nil, err
		}
	}

	if lineErrors == nil {
		lineErrors = []ImportError{}
	}
	return &ImportOutput{
		Imported: len(entries),
		Skipped:  len(lineErrors),
		Errors:   lineErrors,
	}, nil
}

// parseExport decodes entry lines, skipping the header and blank lines.
// Entries repeated later in the file win.
func parseExport(r io.Reader) ([]*activity.Entry, []ImportError) {
	var (
		entries []*activity.Entry
		errs    []ImportError
		seen    = map[string]int{}
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var record activity.ExportRecord
		if err := json.Unmarshal(line, &record); err != nil {
			errs = append(errs, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if record.IsHeader() {
			continue
		}
		if record.Entry == nil || strings.TrimSpace(record.Filename) == "" {
			errs = append(errs, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing filename field",
			})
			continue
		}
		if !activity.ValidDate(record.Date) {
			errs = append(errs, ImportError{
				Line:     lineNum,
				Filename: record.Filename,
				Code:     "INVALID_RECORD",
				Message:  fmt.Sprintf("invalid date %q", record.Date),
			})
			continue
		}

		e := record.Entry.Prune()
		if i, ok := seen[e.Filename]; ok {
			entries[i] = e
			continue
		}
		seen[e.Filename] = len(entries)
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		errs = append(errs, ImportError{
			Line:    lineNum + 1,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}
	return entries, errs
}
