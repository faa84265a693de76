// Package ingest runs each screenshot through dedup, extraction, exclusion
// rules, and the search index, one at a time in submission order.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hpungsan/trail/internal/activity"
	"github.com/hpungsan/trail/internal/db"
	"github.com/hpungsan/trail/internal/dedup"
	trailerrors "github.com/hpungsan/trail/internal/errors"
	"github.com/hpungsan/trail/internal/extract"
	"github.com/hpungsan/trail/internal/logging"
	"github.com/hpungsan/trail/internal/rules"
)

// State is where a screenshot ended up.
type State string

const (
	StateReceived         State = "received"
	StateDeduped          State = "deduped"
	StateSkippedDuplicate State = "skipped_duplicate"
	StateExcluded         State = "excluded"
	StateExtracted        State = "extracted"
	StateIndexed          State = "indexed"
)

// Screenshot is one capture to ingest.
type Screenshot struct {
	Path      string `json:"path"`
	Filename  string `json:"filename"`
	Timestamp int64  `json:"timestamp"` // epoch ms
}

// ScreenshotFromFile describes the file at path, using its mtime as the
// capture time.
func ScreenshotFromFile(path string) (Screenshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Screenshot{}, trailerrors.NewFileNotFound(path)
		}
		return Screenshot{}, trailerrors.NewInternal(err)
	}
	if info.IsDir() {
		return Screenshot{}, trailerrors.NewInvalidRequest(fmt.Sprintf("%s is a directory", path))
	}
	return Screenshot{
		Path:      path,
		Filename:  filepath.Base(path),
		Timestamp: info.ModTime().UnixMilli(),
	}, nil
}

// Result reports the outcome for one screenshot.
type Result struct {
	Filename   string          `json:"filename"`
	State      State           `json:"state"`
	Hash       string          `json:"hash,omitempty"`
	SimilarTo  string          `json:"similar_to,omitempty"`
	ExcludedBy string          `json:"excluded_by,omitempty"`
	Entry      *activity.Entry `json:"entry,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Options tunes a Coordinator. Zero values fall back to defaults.
type Options struct {
	ContextEntries int // default 3
	SummaryEvery   int // 0 disables the running summary
	ProfileEvery   int // 0 disables the profile
	Location       *time.Location
	Logger         *log.Logger
}

// Coordinator owns the ingestion pipeline for one data directory.
type Coordinator struct {
	dir        string
	db         *sql.DB
	dedup      *dedup.Index
	rules      *rules.Store
	extractor  extract.Extractor
	summarizer extract.Summarizer
	opts       Options
	log        *log.Logger

	mu    sync.Mutex // one screenshot at a time
	state *stateFile

	rollups  sync.WaitGroup
	rollupMu sync.Mutex
}

// New builds a coordinator. summarizer may be nil to disable rollups.
func New(dir string, database *sql.DB, idx *dedup.Index, store *rules.Store,
	extractor extract.Extractor, summarizer extract.Summarizer, opts Options) *Coordinator {
	if opts.ContextEntries <= 0 {
		opts.ContextEntries = 3
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	logger := logging.OrDiscard(opts.Logger).WithPrefix("ingest")
	return &Coordinator{
		dir:        dir,
		db:         database,
		dedup:      idx,
		rules:      store,
		extractor:  extractor,
		summarizer: summarizer,
		opts:       opts,
		log:        logger,
		state:      loadState(filepath.Join(dir, StateFile), logger),
	}
}

// Process ingests one screenshot. A near-duplicate or excluded screenshot
// is not an error. Extraction and index write failures are returned with a
// result describing how far the screenshot got.
func (c *Coordinator) Process(ctx context.Context, shot Screenshot) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if shot.Filename == "" {
		shot.Filename = filepath.Base(shot.Path)
	}
	res := &Result{Filename: shot.Filename, State: StateReceived}
	if shot.Path == "" || shot.Filename == "" || shot.Filename == "." {
		err := trailerrors.NewInvalidRequest("screenshot path is required")
		res.Error = err.Error()
		return res, err
	}
	if err := ctx.Err(); err != nil {
		err := trailerrors.NewCancelled("ingest")
		res.Error = err.Error()
		return res, err
	}
	if shot.Timestamp == 0 {
		shot.Timestamp = time.Now().UnixMilli()
	}

	image, err := os.ReadFile(shot.Path)
	if err != nil {
		var tErr *trailerrors.TrailError
		if errors.Is(err, os.ErrNotExist) {
			tErr = trailerrors.NewFileNotFound(shot.Path)
		} else {
			tErr = trailerrors.NewInternal(err)
		}
		res.Error = tErr.Error()
		return res, tErr
	}

	check, err := c.dedup.CheckAndAdd(shot.Path, shot.Filename, shot.Timestamp)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.State = StateDeduped
	res.Hash = check.Hash

	if check.IsDuplicate {
		res.State = StateSkippedDuplicate
		res.SimilarTo = check.SimilarTo
		c.log.Debug("skipped near-duplicate", "filename", shot.Filename, "similar_to", check.SimilarTo)
		if err := c.state.markProcessed(shot.Filename, false); err != nil {
			res.Error = err.Error()
			return res, err
		}
		return res, nil
	}

	ruleSet := c.rules.Load()
	recent, err := db.Recent(ctx, c.db, c.opts.ContextEntries)
	if err != nil {
		c.log.Warn("cannot load recent context", "err", err)
		recent = nil
	}

	analysis, err := c.extractor.Extract(ctx, extract.Request{
		Filename: shot.Filename,
		Image:    image,
		MIMEType: mimeType(shot.Path),
		Context:  activity.RenderContext(recent),
		Rules:    rules.Format(ruleSet),
	})
	if err != nil {
		xErr := trailerrors.NewExtraction(shot.Filename, err)
		c.log.Error("extraction failed", "filename", shot.Filename, "err", err)
		res.Error = xErr.Error()
		return res, xErr
	}
	res.State = StateExtracted

	date, clock := activity.Stamp(shot.Timestamp, c.opts.Location)
	entry := analysis.Entry(shot.Filename, shot.Timestamp, date, clock)

	if rule := matchExclusion(ruleSet, entry, c.log); rule != "" {
		res.State = StateExcluded
		res.ExcludedBy = rule
		c.log.Info("excluded by rule", "filename", shot.Filename, "rule", rule)
		if err := c.state.markProcessed(shot.Filename, false); err != nil {
			res.Error = err.Error()
			return res, err
		}
		return res, nil
	}

	if err := db.IndexEntry(c.db, entry); err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.State = StateIndexed
	res.Entry = entry

	if err := c.state.markProcessed(shot.Filename, true); err != nil {
		res.Error = err.Error()
		return res, err
	}
	c.log.Info("indexed", "filename", shot.Filename, "app", entry.AppName(), "activity", entry.Activity)

	c.maybeRollup(ctx, c.state.count())
	return res, nil
}

// ProcessBatch ingests screenshots in order, continuing past failures.
func (c *Coordinator) ProcessBatch(ctx context.Context, shots []Screenshot) []Result {
	results := make([]Result, 0, len(shots))
	for _, shot := range shots {
		res, _ := c.Process(ctx, shot)
		results = append(results, *res)
	}
	return results
}

// Status returns the persisted coordinator state.
func (c *Coordinator) Status() Status {
	return c.state.snapshot()
}

// GetByDate returns one day's entries, oldest first.
func (c *Coordinator) GetByDate(ctx context.Context, date string) ([]activity.Entry, error) {
	return db.GetByDate(ctx, c.db, date)
}

// GetByDateRange returns entries in an inclusive date range, oldest first.
func (c *Coordinator) GetByDateRange(ctx context.Context, start, end string) ([]activity.Entry, error) {
	return db.GetByDateRange(ctx, c.db, start, end)
}

// GetByApp returns one app's entries, most recent first.
func (c *Coordinator) GetByApp(ctx context.Context, app string) ([]activity.Entry, error) {
	return db.GetByApp(ctx, c.db, app)
}

func matchExclusion(rs rules.RuleSet, e *activity.Entry, logger *log.Logger) string {
	m, errs := rules.NewMatcher(rs)
	for _, err := range errs {
		logger.Warn("invalid exclude rule", "err", err)
	}
	if m.Empty() {
		return ""
	}
	t := rules.Target{AppName: e.AppName(), Domain: e.Domain()}
	if e.App != nil {
		t.WindowTitle = e.App.WindowTitle
	}
	if e.Browser != nil {
		t.URL = e.Browser.URL
		t.PageTitle = e.Browser.PageTitle
	}
	return m.Match(t)
}

func mimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png", "":
		return "image/png"
	}
	if t := mime.TypeByExtension(ext); strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/png"
}
