package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/trail/internal/db"
	"github.com/hpungsan/trail/internal/extract"
	"github.com/hpungsan/trail/internal/fsutil"
)

// RollupDir is the data-directory subfolder holding rollup documents.
const RollupDir = "rollups"

const rollupTimeout = 2 * time.Minute

// RollupPath returns the document path for kind under dir.
func RollupPath(dir string, kind extract.RollupKind) string {
	return filepath.Join(dir, RollupDir, string(kind)+".md")
}

// maybeRollup starts the rollups due at count. They run in the background
// and never affect the ingest that triggered them.
func (c *Coordinator) maybeRollup(ctx context.Context, count int) {
	if c.summarizer == nil || count == 0 {
		return
	}
	if n := c.opts.SummaryEvery; n > 0 && count%n == 0 {
		c.startRollup(ctx, extract.RollupSummary, n)
	}
	if n := c.opts.ProfileEvery; n > 0 && count%n == 0 {
		c.startRollup(ctx, extract.RollupProfile, n)
	}
}

func (c *Coordinator) startRollup(ctx context.Context, kind extract.RollupKind, window int) {
	c.rollups.Add(1)
	go func() {
		defer c.rollups.Done()

		// Rollups are serialized so two of the same kind never interleave writes.
		c.rollupMu.Lock()
		defer c.rollupMu.Unlock()

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollupTimeout)
		defer cancel()

		if err := c.runRollup(rctx, kind, window); err != nil {
			c.log.Warn("rollup failed", "kind", kind, "err", err)
			return
		}
		c.log.Debug("rollup written", "kind", kind)
	}()
}

func (c *Coordinator) runRollup(ctx context.Context, kind extract.RollupKind, window int) error {
	entries, err := db.Recent(ctx, c.db, window)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	path := RollupPath(c.dir, kind)
	previous, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	out, err := c.summarizer.Summarize(ctx, kind, string(previous), entries)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, []byte(out+"\n"), 0600)
}

// Wait blocks until in-flight rollups finish.
func (c *Coordinator) Wait() {
	c.rollups.Wait()
}
