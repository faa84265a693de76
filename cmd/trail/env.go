package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hpungsan/trail/internal/config"
	"github.com/hpungsan/trail/internal/db"
	"github.com/hpungsan/trail/internal/dedup"
	"github.com/hpungsan/trail/internal/errors"
	"github.com/hpungsan/trail/internal/extract"
	"github.com/hpungsan/trail/internal/ingest"
	"github.com/hpungsan/trail/internal/logging"
	"github.com/hpungsan/trail/internal/mcp"
	"github.com/hpungsan/trail/internal/rules"
)

// extractTimeout bounds one vision or text completion.
const extractTimeout = 90 * time.Second

// env is everything a command needs for one data directory.
type env struct {
	dir   string
	db    *sql.DB
	cfg   *config.Config
	log   *log.Logger
	rules *rules.Store

	// llm is nil when no API key is configured.
	llm *extract.OpenAI

	dedup *dedup.Index
}

func openEnv(dir string) (*env, error) {
	database, err := db.Init(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	db.ConfigurePool(database, cfg)
	return newEnv(dir, database, cfg, logging.Stderr(cfg.LogLevel)), nil
}

func newEnv(dir string, database *sql.DB, cfg *config.Config, logger *log.Logger) *env {
	rt := &env{
		dir:   dir,
		db:    database,
		cfg:   cfg,
		log:   logger,
		rules: rules.NewStore(dir, logger),
	}
	if key := os.Getenv(cfg.ExtractorAPIKeyEnv); key != "" {
		rt.llm = extract.NewOpenAI(extract.OpenAIConfig{
			BaseURL:   cfg.ExtractorBaseURL,
			APIKey:    key,
			Model:     cfg.ExtractorModel,
			MaxTokens: cfg.ExtractorMaxTokens,
			Timeout:   extractTimeout,
		})
	}
	return rt
}

func (rt *env) Close() {
	if rt.db != nil {
		rt.db.Close()
		rt.db = nil
	}
}

// dedupIndex opens the dedup index on first use.
func (rt *env) dedupIndex() *dedup.Index {
	if rt.dedup == nil {
		rt.dedup = dedup.Open(filepath.Join(rt.dir, dedup.FileName), dedup.Options{
			HashSize:     rt.cfg.HashSize,
			Threshold:    rt.cfg.DedupThreshold(),
			RecentWindow: rt.cfg.DedupRecentWindow,
			MaxEntries:   rt.cfg.DedupMaxEntries,
			Logger:       rt.log,
		})
	}
	return rt.dedup
}

// interpreter returns the feedback interpreter, or nil without an API key.
func (rt *env) interpreter() extract.Interpreter {
	if rt.llm == nil {
		return nil
	}
	return rt.llm
}

// coordinator builds the ingestion pipeline; it needs an extractor.
func (rt *env) coordinator() (*ingest.Coordinator, error) {
	if rt.llm == nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("no extractor configured: set %s", rt.cfg.ExtractorAPIKeyEnv))
	}
	return ingest.New(rt.dir, rt.db, rt.dedupIndex(), rt.rules, rt.llm, rt.llm, ingest.Options{
		ContextEntries: rt.cfg.ContextEntries,
		SummaryEvery:   rt.cfg.SummaryEvery,
		ProfileEvery:   rt.cfg.ProfileEvery,
		Logger:         rt.log,
	}), nil
}

func (rt *env) mcpDeps() mcp.Deps {
	return mcp.Deps{
		DB:          rt.db,
		Config:      rt.cfg,
		Rules:       rt.rules,
		Interpreter: rt.interpreter(),
		Logger:      rt.log,
	}
}
