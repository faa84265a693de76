// Package watch feeds new screenshots from a directory to the ingestion
// coordinator, one at a time in arrival order.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/hpungsan/trail/internal/ingest"
	"github.com/hpungsan/trail/internal/logging"
)

// DefaultDebounce is how long a file must be quiet before it is queued.
const DefaultDebounce = 500 * time.Millisecond

// Processor ingests one screenshot. *ingest.Coordinator satisfies it.
type Processor interface {
	Process(ctx context.Context, shot ingest.Screenshot) (*ingest.Result, error)
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration

	// PerMinute caps Process calls per minute. 0 = unlimited.
	PerMinute int

	// OnResult is called after each screenshot, from the worker goroutine.
	OnResult func(res *ingest.Result, err error)

	Logger *log.Logger
}

// Watcher watches one directory.
type Watcher struct {
	dir     string
	proc    Processor
	opts    Options
	limiter *rate.Limiter
	log     *log.Logger

	queue chan string
}

// New builds a watcher for dir.
func New(dir string, proc Processor, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.PerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.PerMinute)), 1)
	}
	return &Watcher{
		dir:     dir,
		proc:    proc,
		opts:    opts,
		limiter: limiter,
		log:     logging.OrDiscard(opts.Logger).WithPrefix("watch"),
		queue:   make(chan string, 256),
	}
}

// IsScreenshot reports whether path has an image extension the pipeline handles.
func IsScreenshot(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".webp":
		return true
	}
	return false
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", w.dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info("watching", "dir", w.dir)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx)
	}()

	debounce := make(map[string]*time.Timer)
	var debounceMu sync.Mutex
	defer func() {
		// Stop pending timers so none fire after Run returns
		debounceMu.Lock()
		for _, timer := range debounce {
			timer.Stop()
		}
		debounceMu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !IsScreenshot(event.Name) {
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}

			name := event.Name
			debounceMu.Lock()
			if timer, exists := debounce[name]; exists {
				timer.Stop()
			}
			debounce[name] = time.AfterFunc(w.opts.Debounce, func() {
				debounceMu.Lock()
				delete(debounce, name)
				debounceMu.Unlock()
				select {
				case w.queue <- name:
				case <-ctx.Done():
				}
			})
			debounceMu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "err", err)
		}
	}
}

func (w *Watcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.queue:
			if err := w.limiter.Wait(ctx); err != nil {
				return
			}
			w.handle(ctx, path)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	shot, err := ingest.ScreenshotFromFile(path)
	if err != nil {
		// Removed before it could be processed
		w.log.Debug("skipping vanished file", "path", path, "err", err)
		return
	}

	res, err := w.proc.Process(ctx, shot)
	if err != nil {
		w.log.Error("ingest failed", "filename", shot.Filename, "err", err)
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(res, err)
	}
}
