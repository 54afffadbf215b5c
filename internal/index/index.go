// Package index is the workspace index: per-file symbol tables persisted in
// the session store, the dependency graph, and the merged per-file view of
// own symbols plus those of direct Jac dependencies.
//
// An Index is not safe for concurrent use. The engine serializes every
// event and query.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/jward/jacls/internal/docs"
	"github.com/jward/jacls/internal/extract"
	"github.com/jward/jacls/internal/graph"
	"github.com/jward/jacls/internal/jac"
	"github.com/jward/jacls/internal/store"
)

// AnalyzeFunc produces the extraction output for one file's text. It must
// be pure with respect to text.
type AnalyzeFunc func(ctx context.Context, path, text string) extract.Analysis

type entry struct {
	state       State
	hash        string
	symbolsHash string
	alerts      []jac.Alert
	merged      []*store.Symbol
}

type Index struct {
	store   *store.Store
	graph   *graph.Graph
	docs    *docs.Store
	analyze AnalyzeFunc
	logger  *slog.Logger
	entries map[string]*entry
}

type Option func(*Index)

func WithLogger(l *slog.Logger) Option {
	return func(ix *Index) {
		ix.logger = l
	}
}

// New creates an empty index. Texts are read from d; nothing here touches
// the disk.
func New(s *store.Store, d *docs.Store, analyze AnalyzeFunc, opts ...Option) *Index {
	ix := &Index{
		store:   s,
		graph:   graph.New(),
		docs:    d,
		analyze: analyze,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Graph exposes the dependency graph for read-only traversal.
func (ix *Index) Graph() *graph.Graph {
	return ix.graph
}

// Track registers path as Unindexed unless it is already tracked.
func (ix *Index) Track(path string) {
	if _, ok := ix.entries[path]; !ok {
		ix.entries[path] = &entry{state: Unindexed}
	}
}

// Tracked reports whether path is known to the index.
func (ix *Index) Tracked(path string) bool {
	_, ok := ix.entries[path]
	return ok
}

// State returns the state of path; untracked files report Unindexed.
func (ix *Index) State(path string) State {
	if e, ok := ix.entries[path]; ok {
		return e.state
	}
	return Unindexed
}

// Files returns every tracked path, sorted.
func (ix *Index) Files() []string {
	out := make([]string, 0, len(ix.entries))
	for p := range ix.entries {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Install replaces everything stored for doc's file with a: symbols and
// imports in one store transaction, then the file's outgoing edges. The
// file becomes Indexed with its merged view pending. changed reports
// whether the exported symbol set differs from the previous install.
func (ix *Index) Install(doc docs.Document, a extract.Analysis) (changed bool, err error) {
	symbols := make([]*store.Symbol, 0, len(a.Symbols))
	for _, s := range a.Symbols {
		sym := *s
		if err := normalize(&sym); err != nil {
			ix.logger.Debug("index.defaulted", "path", doc.Path, "err", err)
		}
		symbols = append(symbols, &sym)
	}
	symbolsHash := store.ComputeSymbolsHash(symbols)

	b := store.NewBatch(store.File{
		Path:        doc.Path,
		Hash:        doc.Hash,
		Version:     int(doc.Version),
		SymbolsHash: symbolsHash,
		LastIndexed: time.Now(),
	})
	for _, s := range symbols {
		b.AddSymbol(*s)
	}
	edges := make([]graph.Edge, len(a.Edges))
	for i, e := range a.Edges {
		if to, err := docs.Canonical(e.To); err == nil {
			e.To = to
		}
		edges[i] = e
		lang := "py"
		if e.IsJac {
			lang = "jac"
		}
		b.AddImport(store.Import{Source: e.Module, Target: e.To, Language: lang, IsJac: e.IsJac, Line: e.Line})
	}
	if _, err := ix.store.CommitBatch(b); err != nil {
		return false, fmt.Errorf("index: install %s: %w", doc.Path, err)
	}
	ix.graph.SetOutgoingEdges(doc.Path, edges)

	e, ok := ix.entries[doc.Path]
	if !ok {
		e = &entry{state: Unindexed}
		ix.entries[doc.Path] = e
	}
	changed = e.state == Unindexed || e.symbolsHash != symbolsHash
	e.state = Indexed
	e.hash = doc.Hash
	e.symbolsHash = symbolsHash
	e.alerts = slices.Clone(a.Alerts)
	e.merged = nil
	return changed, nil
}

// Relink re-canonicalizes import targets that are not tracked. A symlink
// created after a file was installed can move where its imports point.
// Files whose edges moved are marked Stale and returned.
func (ix *Index) Relink() ([]string, error) {
	var moved []string
	for _, from := range ix.graph.Files() {
		edges := ix.graph.Outgoing(from)
		changed := false
		for i, e := range edges {
			if ix.Tracked(e.To) {
				continue
			}
			to, err := docs.Canonical(e.To)
			if err != nil || to == e.To {
				continue
			}
			if err := ix.store.RetargetImports(e.To, to); err != nil {
				return nil, err
			}
			edges[i].To = to
			changed = true
		}
		if changed {
			ix.graph.SetOutgoingEdges(from, edges)
			moved = append(moved, from)
		}
	}
	ix.MarkStale(moved...)
	return moved, nil
}

// normalize defaults a symbol whose range is unusable to the span of its
// name on the declaration line.
func normalize(s *store.Symbol) error {
	r := s.Range()
	if r.End.Before(r.Start) || s.Name == "" {
		s.StartLine, s.StartCol = s.NameLine, s.NameCol
		s.EndLine, s.EndCol = s.NameLine, s.NameEndCol
		return fmt.Errorf("%w: %q", ErrMalformedDeclaration, s.Name)
	}
	return nil
}

// MarkStale flags tracked files for re-merge (and re-extraction, when
// their text moved) on their next read. Untracked paths are ignored.
func (ix *Index) MarkStale(paths ...string) {
	for _, p := range paths {
		e, ok := ix.entries[p]
		if !ok || e.state == Unindexed {
			continue
		}
		e.state = Stale
		e.merged = nil
	}
}

// Revalidate re-extracts path from its current document text when the text
// changed, installs the result, extracts any direct Jac dependency that was
// never extracted, merges, and marks every transitive dependent Stale if
// the exported symbol set moved. It returns the dependents marked. A Stale
// file whose text did not change is only re-merged.
func (ix *Index) Revalidate(ctx context.Context, path string) ([]string, error) {
	doc, ok := ix.docs.Get(path)
	if !ok {
		return nil, nil
	}
	ix.Track(path)
	e := ix.entries[path]
	if e.state != Unindexed && e.hash == doc.Hash {
		if e.state == Stale {
			ix.merge(path)
		}
		return nil, nil
	}

	changed, err := ix.Install(doc, ix.analyze(ctx, path, doc.Text))
	if err != nil {
		return nil, err
	}
	if err := ix.ensureDepsExtracted(ctx, path); err != nil {
		return nil, err
	}
	ix.merge(path)
	if !changed {
		return nil, nil
	}
	dependents := ix.graph.TransitiveDependents(path)
	ix.MarkStale(dependents...)
	if len(dependents) > 0 {
		ix.logger.Debug("file.stale", "origin", path, "dependents", len(dependents))
	}
	return dependents, nil
}

// ensure brings path to Indexed with a current merged view. A file with no
// document text keeps whatever was installed last and is only re-merged.
func (ix *Index) ensure(ctx context.Context, path string) error {
	e, ok := ix.entries[path]
	if !ok {
		if _, has := ix.docs.Get(path); !has {
			return nil
		}
	}
	if ok && e.state == Indexed && e.merged != nil {
		if doc, has := ix.docs.Get(path); !has || doc.Hash == e.hash {
			return nil
		}
	}
	if _, err := ix.Revalidate(ctx, path); err != nil {
		return err
	}
	if err := ix.ensureDepsExtracted(ctx, path); err != nil {
		return err
	}
	ix.Merge(path)
	return nil
}

// ensureDepsExtracted gives every direct Jac dependency of path at least
// one extraction before path is merged.
func (ix *Index) ensureDepsExtracted(ctx context.Context, path string) error {
	for _, dep := range ix.graph.Dependencies(path) {
		if ix.State(dep) != Unindexed {
			continue
		}
		if _, ok := ix.docs.Get(dep); !ok {
			continue
		}
		if _, err := ix.Revalidate(ctx, dep); err != nil {
			return err
		}
	}
	return nil
}

// Merge recomputes the merged view of path. Used by the workspace fill
// after every file has been installed.
func (ix *Index) Merge(path string) {
	if e, ok := ix.entries[path]; ok && e.state != Unindexed {
		ix.merge(path)
	}
}

func (ix *Index) merge(path string) {
	e := ix.entries[path]
	own, err := ix.store.SymbolsByFile(path)
	if err != nil {
		ix.logger.Error("index.merge", "path", path, "err", err)
		return
	}
	merged := own
	for _, dep := range ix.graph.Dependencies(path) {
		syms, err := ix.store.SymbolsByFile(dep)
		if err != nil {
			ix.logger.Error("index.merge", "path", path, "dep", dep, "err", err)
			continue
		}
		merged = append(merged, syms...)
	}
	if merged == nil {
		merged = []*store.Symbol{}
	}
	e.merged = merged
	e.state = Indexed
}

// SymbolsOf returns the merged view of path: its own symbols in declaration
// order followed by the own symbols of each direct Jac dependency. An
// Unindexed file with document text is indexed first; a Stale one is
// re-extracted or re-merged as needed. Untracked paths yield nil.
func (ix *Index) SymbolsOf(ctx context.Context, path string) ([]*store.Symbol, error) {
	if err := ix.ensure(ctx, path); err != nil {
		return nil, err
	}
	e, ok := ix.entries[path]
	if !ok || e.merged == nil {
		return nil, nil
	}
	return slices.Clone(e.merged), nil
}

// OwnSymbols returns only the symbols declared in path.
func (ix *Index) OwnSymbols(ctx context.Context, path string) ([]*store.Symbol, error) {
	if err := ix.ensure(ctx, path); err != nil {
		return nil, err
	}
	return ix.store.SymbolsByFile(path)
}

func (ix *Index) ensureAll(ctx context.Context) error {
	for _, p := range ix.Files() {
		if ix.State(p) == Unindexed {
			if err := ix.ensure(ctx, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// WorkspaceSymbols unions the own symbols of every tracked file, ordered by
// path and declaration.
func (ix *Index) WorkspaceSymbols(ctx context.Context) ([]*store.Symbol, error) {
	if err := ix.ensureAll(ctx); err != nil {
		return nil, err
	}
	return ix.store.AllSymbols()
}

// SearchSymbols filters WorkspaceSymbols by a case-insensitive substring.
func (ix *Index) SearchSymbols(ctx context.Context, query string) ([]*store.Symbol, error) {
	if err := ix.ensureAll(ctx); err != nil {
		return nil, err
	}
	return ix.store.SearchSymbols(query)
}

// DefinitionOf returns the innermost symbol of path whose range contains
// pos. Narrower ranges win; on equal extent the later declaration wins.
func (ix *Index) DefinitionOf(ctx context.Context, path string, pos jac.Position) (*store.Symbol, bool, error) {
	own, err := ix.OwnSymbols(ctx, path)
	if err != nil {
		return nil, false, err
	}
	var best *store.Symbol
	for _, s := range own {
		if !s.Range().Contains(pos) {
			continue
		}
		if best == nil || !narrower(best.Range(), s.Range()) {
			best = s
		}
	}
	return best, best != nil, nil
}

// narrower reports whether a is strictly narrower than b.
func narrower(a, b jac.Range) bool {
	if b.Encloses(a) && a != b {
		return true
	}
	if a.Encloses(b) {
		return false
	}
	al, bl := a.End.Line-a.Start.Line, b.End.Line-b.Start.Line
	if al != bl {
		return al < bl
	}
	return a.End.Col-a.Start.Col < b.End.Col-b.Start.Col
}

// Alerts returns the alerts of the last extraction of path.
func (ix *Index) Alerts(path string) []jac.Alert {
	if e, ok := ix.entries[path]; ok {
		return slices.Clone(e.alerts)
	}
	return nil
}

// Unresolved returns a warning for every Jac import of path whose target
// is not tracked, in declaration order.
func (ix *Index) Unresolved(path string) []jac.Alert {
	var out []jac.Alert
	for _, e := range ix.graph.Outgoing(path) {
		if !e.IsJac || ix.Tracked(e.To) {
			continue
		}
		if _, ok := ix.docs.Get(e.To); ok {
			continue
		}
		out = append(out, jac.Warningf(e.Span, "cannot resolve import '%s': %s is not in the workspace", e.Module, e.To))
	}
	return out
}

// Problems summarizes what is wrong with path as an error wrapping
// ErrParseFailure and ErrUnresolvedDependency, or nil.
func (ix *Index) Problems(path string) error {
	var errs []error
	for _, a := range ix.Alerts(path) {
		if a.Severity == jac.SeverityError {
			errs = append(errs, fmt.Errorf("%w: %s:%s: %s", ErrParseFailure, path, a.Range.Start, a.Message))
			break
		}
	}
	for _, a := range ix.Unresolved(path) {
		errs = append(errs, fmt.Errorf("%w: %s:%s: %s", ErrUnresolvedDependency, path, a.Range.Start, a.Message))
	}
	return errors.Join(errs...)
}

// Remove forgets path: its stored symbols and imports, its outgoing edges
// and its entry. Files that imported it are marked Stale and returned.
func (ix *Index) Remove(path string) ([]string, error) {
	dependents := ix.graph.TransitiveDependents(path)
	if err := ix.store.DeleteFile(path); err != nil {
		return nil, fmt.Errorf("index: remove %s: %w", path, err)
	}
	ix.graph.RemoveFile(path)
	delete(ix.entries, path)
	ix.MarkStale(dependents...)
	return dependents, nil
}
