package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HashSize != 16 {
		t.Fatalf("HashSize = %d, want 16", cfg.HashSize)
	}
	if cfg.DedupRecentWindow != 100 {
		t.Fatalf("DedupRecentWindow = %d, want 100", cfg.DedupRecentWindow)
	}
	if cfg.DedupMaxEntries != 10000 {
		t.Fatalf("DedupMaxEntries = %d, want 10000", cfg.DedupMaxEntries)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"hash_size": 8, "summary_every": 25}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HashSize != 8 {
		t.Fatalf("HashSize = %d, want 8", cfg.HashSize)
	}
	if cfg.SummaryEvery != 25 {
		t.Fatalf("SummaryEvery = %d, want 25", cfg.SummaryEvery)
	}
	// Untouched keys keep their defaults
	if cfg.ProfileEvery != 100 {
		t.Fatalf("ProfileEvery = %d, want 100", cfg.ProfileEvery)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["rules_undo", "rules_feedback"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "rules_undo" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "rules_undo")
	}
}

func TestDedupThreshold(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		fraction float64
		want     int
	}{
		{name: "reference 256-bit", size: 16, fraction: 0.1, want: 25},
		{name: "64-bit hash", size: 8, fraction: 0.1, want: 6},
		{name: "zero fraction", size: 16, fraction: 0, want: 0},
		{name: "stricter", size: 16, fraction: 0.05, want: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{HashSize: tt.size, DedupThresholdFraction: tt.fraction}
			if got := cfg.DedupThreshold(); got != tt.want {
				t.Errorf("DedupThreshold() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.AllowedPaths = []string{"/a", "/b"}

	overlay := &Config{
		ContextEntries:   5,
		AllowedPaths:     []string{" /b ", "/c"},
		AllowUnsafePaths: true,
		LogLevel:         "debug",
	}

	got := Merge(base, overlay)

	if got.ContextEntries != 5 {
		t.Errorf("ContextEntries = %d, want 5", got.ContextEntries)
	}
	if got.HashSize != 16 {
		t.Errorf("HashSize = %d, want 16 (base)", got.HashSize)
	}
	if !got.AllowUnsafePaths {
		t.Error("AllowUnsafePaths = false, want true")
	}
	if got.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", got.LogLevel)
	}
	want := []string{"/a", "/b", "/c"}
	if len(got.AllowedPaths) != len(want) {
		t.Fatalf("AllowedPaths = %v, want %v", got.AllowedPaths, want)
	}
	for i := range want {
		if got.AllowedPaths[i] != want[i] {
			t.Errorf("AllowedPaths[%d] = %q, want %q", i, got.AllowedPaths[i], want[i])
		}
	}
}
