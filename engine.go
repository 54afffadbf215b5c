package jacls

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	goruntime "runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jward/jacls/internal/config"
	"github.com/jward/jacls/internal/discover"
	"github.com/jward/jacls/internal/docs"
	"github.com/jward/jacls/internal/extract"
	"github.com/jward/jacls/internal/index"
	"github.com/jward/jacls/internal/runtime"
	"github.com/jward/jacls/internal/store"
)

// Engine orchestrates the indexing pipeline for one server session: the
// document store, the pass runtime, the workspace index and the
// revalidation schedule driven by document lifecycle events.
type Engine struct {
	mu sync.Mutex

	store   *store.Store
	runtime *runtime.Runtime
	docs    *docs.Store
	index   *index.Index

	root         string
	scriptsDir   string
	scriptsFS    fs.FS
	excludes     []string
	workers      int
	showWarnings bool
	logger       *slog.Logger
	session      string

	// filled is set once the workspace scan has run.
	filled bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithScriptsFS configures the Engine to load lint scripts from the given
// filesystem instead of from the scriptsDir path on disk. This enables
// embedding scripts via go:embed.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithRoot sets the workspace root scanned by FillWorkspace. Without a root
// only documents handed to the Engine are indexed.
func WithRoot(root string) Option {
	return func(e *Engine) {
		e.root = root
	}
}

// WithShowWarnings controls whether GetDiagnostics includes warnings.
// Defaults to true.
func WithShowWarnings(show bool) Option {
	return func(e *Engine) {
		e.showWarnings = show
	}
}

// WithWorkers bounds parallel reads and extraction during the workspace
// scan. Defaults to the number of CPUs.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithExclude adds gitignore-style patterns skipped by the workspace scan.
func WithExclude(patterns ...string) Option {
	return func(e *Engine) {
		e.excludes = append(e.excludes, patterns...)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithConfig applies workspace settings. Options given after it override
// the matching settings.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.showWarnings = cfg.ShowWarnings
		e.excludes = append(e.excludes, cfg.Exclude...)
		if cfg.Workers > 0 {
			e.workers = cfg.Workers
		}
		if cfg.ScriptsDir != "" {
			e.scriptsDir = cfg.ScriptsDir
			e.scriptsFS = nil
		}
	}
}

// New creates an Engine backed by a SQLite session store at dbPath; an
// empty dbPath keeps the store in memory. Lint scripts are loaded from
// the fs.FS given with WithScriptsFS, otherwise from scriptsDir on disk.
// Both may be absent, in which case no lint pass runs.
func New(dbPath string, scriptsDir string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("jacls: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("jacls: migrate: %w", err)
	}

	e := &Engine{
		store:        s,
		docs:         docs.NewStore(),
		scriptsDir:   scriptsDir,
		workers:      goruntime.NumCPU(),
		showWarnings: true,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		session:      uuid.NewString(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("session", e.session)

	rtOpts := []runtime.RuntimeOption{runtime.WithLogger(e.logger)}
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	e.runtime = runtime.NewRuntime(e.scriptsDir, rtOpts...)
	e.index = index.New(s, e.docs, e.analyze, index.WithLogger(e.logger))
	if e.root != "" {
		root, err := docs.Canonical(e.root)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("jacls: workspace root: %w", err)
		}
		e.root = root
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the session store for direct inspection.
func (e *Engine) Store() *store.Store {
	return e.store
}

// SessionID identifies this Engine in logs and progress tokens.
func (e *Engine) SessionID() string {
	return e.session
}

// Root returns the canonical workspace root, or "" when none was set.
func (e *Engine) Root() string {
	return e.root
}

// SetShowWarnings changes whether GetDiagnostics includes warnings.
func (e *Engine) SetShowWarnings(show bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.showWarnings = show
}

func (e *Engine) analyze(ctx context.Context, path, text string) extract.Analysis {
	return extract.Analyze(ctx, e.runtime, path, text)
}

// canonical maps a caller path to its file identity.
func canonical(path string) (string, error) {
	p, err := docs.Canonical(path)
	if err != nil {
		return "", fmt.Errorf("jacls: %s: %w", path, err)
	}
	return p, nil
}

// OnOpen records path as open with the editor's text. The first open of a
// session triggers the workspace scan. The file is then revalidated and the
// dependents marked stale by it are returned.
func (e *Engine) OnOpen(ctx context.Context, path, text string, version int32) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, err
	}
	e.docs.Put(path, text, version)
	e.docs.SetOpen(path, true)
	if !e.filled {
		if err := e.fillWorkspace(ctx); err != nil {
			return nil, err
		}
	}
	return e.revalidate(ctx, path)
}

// OnChange replaces the text of an open document. Unchanged text only bumps
// the version. Otherwise the file is re-extracted, and if its exported
// symbols moved every transitive dependent is marked stale and returned.
// Versions only move forward: a change older than the open document's
// version is dropped.
func (e *Engine) OnChange(ctx context.Context, path, text string, version int32) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, err
	}
	if doc, ok := e.docs.Get(path); ok && doc.Open && version < doc.Version {
		e.logger.Warn("file.version_regression", "path", path, "have", doc.Version, "got", version)
		return nil, nil
	}
	return e.update(ctx, path, text, version)
}

// OnSave behaves as OnChange with the saved text, keeping the version.
func (e *Engine) OnSave(ctx context.Context, path, text string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, err
	}
	var version int32
	if doc, ok := e.docs.Get(path); ok {
		version = doc.Version
	}
	return e.update(ctx, path, text, version)
}

func (e *Engine) update(ctx context.Context, path, text string, version int32) ([]string, error) {
	if old, ok := e.docs.Get(path); ok && old.Hash == docs.HashText(text) {
		e.docs.Put(path, text, version)
		e.logger.Debug("file.unchanged", "path", path, "version", version)
		return nil, nil
	}
	e.docs.Put(path, text, version)
	e.index.MarkStale(path)
	return e.revalidate(ctx, path)
}

// OnClose drops the document text. The index keeps the file's symbols so
// other files still resolve against them; nothing is re-indexed.
func (e *Engine) OnClose(_ context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return err
	}
	e.docs.Remove(path)
	e.logger.Debug("file.close", "path", path)
	return nil
}

// OnCreate indexes a file that appeared on disk. Files whose imports now
// resolve to it are marked stale and returned.
func (e *Engine) OnCreate(ctx context.Context, path string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, err
	}
	return e.loadFromDisk(ctx, path)
}

// OnDelete forgets a file removed from disk and returns the dependents
// marked stale.
func (e *Engine) OnDelete(_ context.Context, path string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, err
	}
	return e.remove(path)
}

// OnRename moves a file's identity: the old path is forgotten and the new
// one indexed from disk.
func (e *Engine) OnRename(ctx context.Context, oldPath, newPath string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	oldPath, err := canonical(oldPath)
	if err != nil {
		return nil, err
	}
	newPath, err = canonical(newPath)
	if err != nil {
		return nil, err
	}
	var open bool
	if doc, ok := e.docs.Get(oldPath); ok {
		open = doc.Open
	}
	stale, err := e.remove(oldPath)
	if err != nil {
		return nil, err
	}
	more, err := e.loadFromDisk(ctx, newPath)
	if err != nil {
		return nil, err
	}
	e.docs.SetOpen(newPath, open)
	return mergeSorted(stale, more), nil
}

// OnDiskChange applies a change seen by the disk watcher. Open documents
// are owned by the editor and are left alone.
func (e *Engine) OnDiskChange(ctx context.Context, path string, removed bool) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, err
	}
	if doc, ok := e.docs.Get(path); ok && doc.Open {
		return nil, nil
	}
	if removed {
		return e.remove(path)
	}
	return e.loadFromDisk(ctx, path)
}

// loadFromDisk first relinks imports whose targets moved under a symlink,
// then installs path from disk.
func (e *Engine) loadFromDisk(ctx context.Context, path string) ([]string, error) {
	relinked, err := e.index.Relink()
	if err != nil {
		return nil, err
	}
	if !discover.IsSource(path) {
		return relinked, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jacls: read %s: %w", path, err)
	}
	text := string(data)
	if old, ok := e.docs.Get(path); ok && old.Hash == docs.HashText(text) {
		return relinked, nil
	}
	e.docs.Put(path, text, 0)
	e.index.MarkStale(path)
	stale, err := e.revalidate(ctx, path)
	if err != nil {
		return nil, err
	}
	return mergeSorted(relinked, stale), nil
}

func (e *Engine) remove(path string) ([]string, error) {
	e.docs.Remove(path)
	if !e.index.Tracked(path) {
		return nil, nil
	}
	stale, err := e.index.Remove(path)
	if err != nil {
		return nil, err
	}
	e.logger.Info("file.remove", "path", path, "stale", len(stale))
	return stale, nil
}

func (e *Engine) revalidate(ctx context.Context, path string) ([]string, error) {
	start := time.Now()
	stale, err := e.index.Revalidate(ctx, path)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("file.revalidate",
		"path", path,
		"state", e.index.State(path).String(),
		"stale", len(stale),
		"duration", time.Since(start),
	)
	return stale, nil
}

// mergeSorted unions two sorted path lists.
func mergeSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, p := range list {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	slices.Sort(out)
	return out
}
