// Package dedup keeps a persistent filename -> perceptual hash index and decides
// whether a new screenshot is a near-duplicate of a recent one.
//
// The index is a cache, not a source of truth: a missing, corrupt, or
// incompatible document loads as an empty index.
package dedup

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	trailerrors "github.com/hpungsan/trail/internal/errors"
	"github.com/hpungsan/trail/internal/fsutil"
	"github.com/hpungsan/trail/internal/logging"
	"github.com/hpungsan/trail/internal/phash"
)

// FileName is the index document inside the data directory.
const FileName = "dedup-index.json"

// FormatVersion is bumped whenever the persisted document layout changes.
const FormatVersion = 1

// Defaults of the reference configuration.
const (
	DefaultRecentWindow = 100
	DefaultMaxEntries   = 10000
)

// Entry is one hashed screenshot.
type Entry struct {
	Filename  string `json:"filename"`
	Hash      string `json:"hash"`
	Timestamp int64  `json:"timestamp"` // epoch ms
}

// Result is the outcome of CheckAndAdd.
type Result struct {
	IsDuplicate bool   `json:"is_duplicate"`
	SimilarTo   string `json:"similar_to,omitempty"`
	Hash        string `json:"hash"`
}

// HashFunc computes the hash of the image at path.
type HashFunc func(path string) (string, error)

// Options configures an Index. Zero values take the defaults.
type Options struct {
	// HashSize is the hash side length; it is stored in the document and a
	// mismatch on load discards the stored hashes.
	HashSize int

	// Threshold is the maximum Hamming distance of a near-duplicate.
	// Zero derives 10% of the hash width.
	Threshold int

	// RecentWindow is how many of the newest entries CheckAndAdd compares against.
	RecentWindow int

	// MaxEntries caps the index; the oldest entries are evicted first.
	MaxEntries int

	// Hasher overrides the perceptual hash function (tests).
	Hasher HashFunc

	Logger *log.Logger
}

// document is the persisted form.
type document struct {
	Version  int     `json:"version"`
	HashSize int     `json:"hash_size"`
	Entries  []Entry `json:"entries"`
}

// Index is the dedup index for one data directory. Safe for concurrent use,
// although the engine only ever has one writer.
type Index struct {
	path string
	opts Options
	log  *log.Logger

	mu      sync.Mutex
	entries []Entry           // insertion order, oldest first
	byName  map[string]string // filename -> hash
}

// Open loads the index document at path. Load problems never fail Open; they
// are logged and the index starts empty.
func Open(path string, opts Options) *Index {
	if opts.HashSize <= 0 {
		opts.HashSize = phash.DefaultSize
	}
	if opts.Threshold <= 0 {
		opts.Threshold = opts.HashSize * opts.HashSize / 10
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = DefaultRecentWindow
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Hasher == nil {
		size := opts.HashSize
		opts.Hasher = func(p string) (string, error) { return phash.Compute(p, size) }
	}

	idx := &Index{
		path:   path,
		opts:   opts,
		log:    logging.OrDiscard(opts.Logger).WithPrefix("dedup"),
		byName: make(map[string]string),
	}
	idx.load()
	return idx
}

func (idx *Index) load() {
	data, err := os.ReadFile(idx.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			idx.log.Warn("cannot read dedup index, starting empty", "path", idx.path, "err", err)
		}
		return
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		idx.log.Warn("corrupt dedup index, starting empty", "path", idx.path, "err", err)
		return
	}
	if doc.Version != FormatVersion || doc.HashSize != idx.opts.HashSize {
		idx.log.Warn("incompatible dedup index, starting empty",
			"version", doc.Version, "hash_size", doc.HashSize,
			"want_version", FormatVersion, "want_hash_size", idx.opts.HashSize)
		return
	}

	for _, e := range doc.Entries {
		if e.Filename == "" {
			continue
		}
		if _, dup := idx.byName[e.Filename]; dup {
			continue
		}
		idx.entries = append(idx.entries, e)
		idx.byName[e.Filename] = e.Hash
	}
	var dropped []Entry
	idx.entries, dropped = capEntries(idx.entries, idx.opts.MaxEntries)
	for _, e := range dropped {
		delete(idx.byName, e.Filename)
	}
}

// Threshold returns the near-duplicate Hamming threshold in use.
func (idx *Index) Threshold() int {
	return idx.opts.Threshold
}

// Len returns the number of stored entries.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.entries)
}

// Entries returns a copy of the stored entries, oldest first.
func (idx *Index) Entries() []Entry {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// HasHash reports whether filename has been hashed.
func (idx *Index) HasHash(filename string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.byName[filename]
	return ok
}

// GetHash returns the stored hash of filename.
func (idx *Index) GetHash(filename string) (string, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	h, ok := idx.byName[filename]
	return h, ok
}

// FindSimilar scans the whole index for entries within the threshold of hash,
// skipping excludeFilename when non-empty. Results keep insertion order.
func (idx *Index) FindSimilar(hash, excludeFilename string) []Entry {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var out []Entry
	for _, e := range idx.entries {
		if excludeFilename != "" && e.Filename == excludeFilename {
			continue
		}
		if phash.Distance(hash, e.Hash) <= idx.opts.Threshold {
			out = append(out, e)
		}
	}
	return out
}

// CheckAndAdd classifies the screenshot at imagePath and records its hash.
//
// An already indexed filename short-circuits with its stored hash. A hashing
// failure is fail-open: the result is not a duplicate and Hash is empty.
// Near-duplicates are still recorded so later captures compare against them.
// The only error is a failure to persist the index.
func (idx *Index) CheckAndAdd(imagePath, filename string, timestamp int64) (*Result, error) {
	idx.mu.Lock()
	if h, ok := idx.byName[filename]; ok {
		idx.mu.Unlock()
		return &Result{Hash: h}, nil
	}
	idx.mu.Unlock()

	hash, err := idx.opts.Hasher(imagePath)
	if err != nil {
		idx.log.Warn("hash failed, skipping dedup", "filename", filename, "err", err)
		return &Result{}, nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Re-check: another caller may have added it while hashing.
	if h, ok := idx.byName[filename]; ok {
		return &Result{Hash: h}, nil
	}

	result := &Result{Hash: hash}
	start := max(len(idx.entries)-idx.opts.RecentWindow, 0)
	for i := len(idx.entries) - 1; i >= start; i-- {
		if phash.Distance(hash, idx.entries[i].Hash) <= idx.opts.Threshold {
			result.IsDuplicate = true
			result.SimilarTo = idx.entries[i].Filename
			break
		}
	}

	// Memory changes only after the document is on disk.
	next := make([]Entry, len(idx.entries), len(idx.entries)+1)
	copy(next, idx.entries)
	next = append(next, Entry{Filename: filename, Hash: hash, Timestamp: timestamp})
	next, dropped := capEntries(next, idx.opts.MaxEntries)
	if err := idx.save(next); err != nil {
		return nil, err
	}

	idx.entries = next
	idx.byName[filename] = hash
	for _, e := range dropped {
		delete(idx.byName, e.Filename)
	}
	return result, nil
}

// Clear drops every entry and persists the empty index.
func (idx *Index) Clear() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.save(nil); err != nil {
		return err
	}
	idx.entries = nil
	idx.byName = make(map[string]string)
	return nil
}

// capEntries applies the FIFO cap, returning the kept and dropped entries.
func capEntries(entries []Entry, maxEntries int) (kept, dropped []Entry) {
	over := len(entries) - maxEntries
	if over <= 0 {
		return entries, nil
	}
	return append([]Entry(nil), entries[over:]...), entries[:over]
}

// save writes entries as the index document. Callers hold mu.
func (idx *Index) save(entries []Entry) error {
	doc := document{
		Version:  FormatVersion,
		HashSize: idx.opts.HashSize,
		Entries:  entries,
	}
	if doc.Entries == nil {
		doc.Entries = []Entry{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return trailerrors.NewIndexWriteFailed("dedup index", err)
	}
	if err := fsutil.WriteFileAtomic(idx.path, data, 0600); err != nil {
		return trailerrors.NewIndexWriteFailed("dedup index", err)
	}
	return nil
}
