package config

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// HashSize is the perceptual hash side length; the hash carries HashSize*HashSize bits.
	// Changing it invalidates the persisted dedup index (it is rebuilt empty).
	HashSize int `json:"hash_size"`

	// DedupThresholdFraction is the share of hash bits that may differ for two
	// screenshots to count as near-duplicates.
	DedupThresholdFraction float64 `json:"dedup_threshold_fraction"`

	// DedupRecentWindow is how many of the most recently hashed screenshots a new
	// capture is compared against.
	DedupRecentWindow int `json:"dedup_recent_window"`

	// DedupMaxEntries caps the dedup index; the oldest hashes are evicted first.
	DedupMaxEntries int `json:"dedup_max_entries"`

	// ContextEntries is how many previously indexed entries are passed to the
	// extractor for continuity detection.
	ContextEntries int `json:"context_entries"`

	// SummaryEvery triggers the running-summary rollup every N indexed entries.
	SummaryEvery int `json:"summary_every"`

	// ProfileEvery triggers the activity-profile rollup every N indexed entries.
	ProfileEvery int `json:"profile_every"`

	// ExtractorBaseURL is an OpenAI-compatible API base URL (empty = api.openai.com).
	ExtractorBaseURL string `json:"extractor_base_url,omitempty"`

	// ExtractorModel is the vision-capable chat model used for extraction.
	ExtractorModel string `json:"extractor_model"`

	// ExtractorAPIKeyEnv names the environment variable holding the API key.
	ExtractorAPIKeyEnv string `json:"extractor_api_key_env"`

	// ExtractorMaxTokens bounds each completion. 0 leaves it to the server.
	ExtractorMaxTokens int `json:"extractor_max_tokens,omitempty"`

	// ScreenshotDir is the directory watched by `trail watch`.
	ScreenshotDir string `json:"screenshot_dir,omitempty"`

	// ExtractPerMinute throttles extraction calls made by the watcher. 0 = unlimited.
	ExtractPerMinute int `json:"extract_per_minute,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside <data dir>/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		HashSize:               16,
		DedupThresholdFraction: 0.1,
		DedupRecentWindow:      100,
		DedupMaxEntries:        10000,
		ContextEntries:         3,
		SummaryEvery:           10,
		ProfileEvery:           100,
		ExtractorModel:         "gpt-4o-mini",
		ExtractorAPIKeyEnv:     "OPENAI_API_KEY",
		LogLevel:               "info",
	}
}

// HashBits returns the number of bits in a perceptual hash built with this config.
func (c *Config) HashBits() int {
	return c.HashSize * c.HashSize
}

// DedupThreshold returns the Hamming distance at or below which two hashes of
// the configured width are near-duplicates (25 for a 256-bit hash at 10%).
func (c *Config) DedupThreshold() int {
	return ThresholdFor(c.HashBits(), c.DedupThresholdFraction)
}

// ThresholdFor converts a bit-difference fraction into a Hamming threshold.
func ThresholdFor(bits int, fraction float64) int {
	if bits <= 0 || fraction <= 0 {
		return 0
	}
	return int(math.Floor(float64(bits) * fraction))
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.trail.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.HashSize = pickInt(overlay.HashSize, base.HashSize)
	result.DedupThresholdFraction = overlay.DedupThresholdFraction
	if result.DedupThresholdFraction == 0 {
		result.DedupThresholdFraction = base.DedupThresholdFraction
	}
	result.DedupRecentWindow = pickInt(overlay.DedupRecentWindow, base.DedupRecentWindow)
	result.DedupMaxEntries = pickInt(overlay.DedupMaxEntries, base.DedupMaxEntries)
	result.ContextEntries = pickInt(overlay.ContextEntries, base.ContextEntries)
	result.SummaryEvery = pickInt(overlay.SummaryEvery, base.SummaryEvery)
	result.ProfileEvery = pickInt(overlay.ProfileEvery, base.ProfileEvery)
	result.ExtractorMaxTokens = pickInt(overlay.ExtractorMaxTokens, base.ExtractorMaxTokens)
	result.ExtractPerMinute = pickInt(overlay.ExtractPerMinute, base.ExtractPerMinute)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.ExtractorBaseURL = pickString(overlay.ExtractorBaseURL, base.ExtractorBaseURL)
	result.ExtractorModel = pickString(overlay.ExtractorModel, base.ExtractorModel)
	result.ExtractorAPIKeyEnv = pickString(overlay.ExtractorAPIKeyEnv, base.ExtractorAPIKeyEnv)
	result.ScreenshotDir = pickString(overlay.ScreenshotDir, base.ScreenshotDir)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
