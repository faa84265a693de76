package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/trail/internal/db"
	"github.com/hpungsan/trail/internal/dedup"
	"github.com/hpungsan/trail/internal/errors"
)

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted  bool   `json:"deleted"`
	Filename string `json:"filename"`
}

// Delete removes one entry from the search index. Its dedup hash is kept so
// the same screenshot is still recognized.
func Delete(database *sql.DB, filename string) (*DeleteOutput, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, errors.NewInvalidRequest("filename is required")
	}
	if err := db.DeleteEntry(database, filename); err != nil {
		return nil, err
	}
	return &DeleteOutput{Deleted: true, Filename: filename}, nil
}

// ReindexOutput contains the result of the Reindex operation.
type ReindexOutput struct {
	Rebuilt int `json:"rebuilt"`
}

// Reindex rebuilds the full-text view from the stored entries.
func Reindex(ctx context.Context, database *sql.DB) (*ReindexOutput, error) {
	n, err := db.RebuildIndex(ctx, database)
	if err != nil {
		return nil, err
	}
	return &ReindexOutput{Rebuilt: n}, nil
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	Removed      int64 `json:"removed"`
	HashesPurged int   `json:"hashes_purged"`
}

// Clear removes every entry. When idx is non-nil the dedup index is emptied
// as well, so previously seen screenshots can be ingested again.
func Clear(database *sql.DB, idx *dedup.Index) (*ClearOutput, error) {
	n, err := db.Clear(database)
	if err != nil {
		return nil, err
	}
	out := &ClearOutput{Removed: n}
	if idx != nil {
		out.HashesPurged = idx.Len()
		if err := idx.Clear(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
