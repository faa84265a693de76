package ingest

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	trailerrors "github.com/hpungsan/trail/internal/errors"
	"github.com/hpungsan/trail/internal/fsutil"
)

// StateFile holds the coordinator's last-processed marker.
const StateFile = "state.json"

// Status is the persisted coordinator state.
type Status struct {
	LastProcessed  string `json:"lastProcessed,omitempty"`
	LastUpdated    int64  `json:"lastUpdated,omitempty"` // epoch ms
	ProcessedCount int    `json:"processedCount"`        // indexed entries only
}

type stateFile struct {
	path string

	mu sync.Mutex
	st Status
}

func loadState(path string, logger *log.Logger) *stateFile {
	f := &stateFile{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("cannot read coordinator state, starting fresh", "err", err)
		}
		return f
	}
	if err := json.Unmarshal(data, &f.st); err != nil {
		logger.Warn("corrupt coordinator state, starting fresh", "path", path, "err", err)
		f.st = Status{}
	}
	return f
}

// markProcessed advances the marker and persists it. indexed also bumps the
// processed count that drives rollups.
func (f *stateFile) markProcessed(filename string, indexed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.st
	next.LastProcessed = filename
	next.LastUpdated = time.Now().UnixMilli()
	if indexed {
		next.ProcessedCount++
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return trailerrors.NewIndexWriteFailed("coordinator state", err)
	}
	if err := fsutil.WriteFileAtomic(f.path, data, 0600); err != nil {
		return trailerrors.NewIndexWriteFailed("coordinator state", err)
	}
	f.st = next
	return nil
}

func (f *stateFile) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.ProcessedCount
}

func (f *stateFile) snapshot() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}
