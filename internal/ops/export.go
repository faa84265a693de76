package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hpungsan/trail/internal/activity"
	"github.com/hpungsan/trail/internal/config"
	"github.com/hpungsan/trail/internal/db"
	"github.com/hpungsan/trail/internal/errors"
	"github.com/hpungsan/trail/internal/fsutil"
)

// ExportSchemaVersion is written into the header line of every export.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path      string // optional, default: <dataDir>/exports/trail-<timestamp>.jsonl
	StartDate string // optional; requires EndDate
	EndDate   string
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes entries to a JSONL file: a header line, then one entry per
// line in timestamp order. The file is written to a temp name and renamed
// into place, so an existing export survives a failed run.
func Export(ctx context.Context, database *sql.DB, dataDir string, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := clock()

	entries, err := exportEntries(ctx, database, input)
	if err != nil {
		return nil, err
	}

	exportPath := input.Path
	if exportPath == "" {
		exportPath = filepath.Join(ExportsDir(dataDir), "trail-"+now.Format("2006-01-02T150405")+".jsonl")
	}
	if err := ValidatePath(exportPath, PathCheckWrite, dataDir, cfg); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := fsutil.OpenNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	header := activity.ExportRecord{
		TrailExport:   true,
		SchemaVersion: ExportSchemaVersion,
		ExportedAt:    now.Unix(),
	}
	if err := enc.Encode(header); err != nil {
		return nil, errors.NewInternal(err)
	}
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("export")
		}
		if err := enc.Encode(activity.ExportRecord{Entry: &entries[i]}); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	if err := w.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink planted since validation
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      len(entries),
		ExportedAt: now.Unix(),
	}, nil
}

func exportEntries(ctx context.Context, database *sql.DB, input ExportInput) ([]activity.Entry, error) {
	if input.StartDate == "" && input.EndDate == "" {
		return db.All(ctx, database)
	}
	start, err := resolveDate("start_date", input.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := resolveDate("end_date", input.EndDate)
	if err != nil {
		return nil, err
	}
	return db.GetByDateRange(ctx, database, start, end)
}
