// Package watch reports debounced changes to Jac files on disk.
package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jward/jacls/internal/discover"
)

// Event is one settled change. Removed is set when the file no longer
// exists at flush time.
type Event struct {
	Path    string
	Removed bool
}

// Handler receives settled events in path order, one batch per flush.
type Handler func(ctx context.Context, events []Event)

// Watcher watches a workspace tree with fsnotify and coalesces bursts of
// writes to the same file into a single Event.
type Watcher struct {
	root     string
	handler  Handler
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
	tick     time.Duration

	mu      sync.Mutex
	pending map[string]time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for watch errors.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must stay quiet before it is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
		if d/2 < w.tick {
			w.tick = max(d/2, 5*time.Millisecond)
		}
	}
}

// New creates a watcher over root. Nothing is watched until Start.
func New(root string, handler Handler, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     root,
		handler:  handler,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		watcher:  fw,
		debounce: 200 * time.Millisecond,
		tick:     100 * time.Millisecond,
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start registers every directory under root and begins delivering events.
// The watcher stops when ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	if err := w.addRecursive(w.root); err != nil {
		w.cancel()
		return err
	}
	w.done.Add(2)
	go w.processEvents()
	go w.processPending()
	return nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && discover.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("watch.add", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.done.Done()
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !discover.SkipDir(filepath.Base(event.Name)) {
						_ = w.addRecursive(event.Name)
					}
					continue
				}
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if discover.IsSource(event.Name) {
				w.mu.Lock()
				w.pending[event.Name] = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch.error", "error", err)
		}
	}
}

func (w *Watcher) processPending() {
	defer w.done.Done()
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case now := <-ticker.C:
			if events := w.settled(now); len(events) > 0 {
				w.handler(w.ctx, events)
			}
		}
	}
}

// settled drains the pending entries that have been quiet for the debounce
// period.
func (w *Watcher) settled(now time.Time) []Event {
	w.mu.Lock()
	var paths []string
	for path, changed := range w.pending {
		if now.Sub(changed) >= w.debounce {
			paths = append(paths, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	sort.Strings(paths)
	events := make([]Event, len(paths))
	for i, p := range paths {
		_, err := os.Stat(p)
		events[i] = Event{Path: p, Removed: os.IsNotExist(err)}
	}
	return events
}

// Close stops the watcher and waits for its goroutines to exit.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.watcher.Close()
	w.done.Wait()
	return err
}
