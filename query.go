package jacls

import (
	"context"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/jacls/internal/diagnostic"
	"github.com/jward/jacls/internal/jac"
)

// GetDocumentSymbols returns the merged view of path: the file's own symbols
// in declaration order followed by the own symbols of each Jac module it
// imports. Symbols of imported modules keep their declaring Path.
func (e *Engine) GetDocumentSymbols(ctx context.Context, path string) ([]*Symbol, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, err
	}
	return e.index.SymbolsOf(ctx, path)
}

// GetWorkspaceSymbols returns the own symbols of every indexed file whose
// name contains query, ignoring case. An empty query returns all of them.
func (e *Engine) GetWorkspaceSymbols(ctx context.Context, query string) ([]*Symbol, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if query == "" {
		return e.index.WorkspaceSymbols(ctx)
	}
	return e.index.SearchSymbols(ctx, query)
}

// GetDefinition returns the innermost declaration of path enclosing pos.
func (e *Engine) GetDefinition(ctx context.Context, path string, pos Position) (*Symbol, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, false, err
	}
	return e.index.DefinitionOf(ctx, path, pos)
}

// LookupReference resolves the identifier under pos to a declaration in the
// merged view of path. Members of the enclosing architype win over
// top-level declarations, which win over members of other architypes.
func (e *Engine) LookupReference(ctx context.Context, path string, pos Position) (*Symbol, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, false, err
	}
	return e.lookupReference(ctx, path, pos)
}

func (e *Engine) lookupReference(ctx context.Context, path string, pos Position) (*Symbol, bool, error) {
	doc, ok := e.docs.Get(path)
	if !ok {
		return nil, false, nil
	}
	word, _, ok := jac.WordAt(doc.Text, pos)
	if !ok || jac.IsKeyword(word) {
		return nil, false, nil
	}
	merged, err := e.index.SymbolsOf(ctx, path)
	if err != nil {
		return nil, false, err
	}

	var candidates []*Symbol
	for _, s := range merged {
		if s.Name != word {
			continue
		}
		if s.Path == path && s.NameRange().Contains(pos) {
			return s, true, nil
		}
		candidates = append(candidates, s)
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}

	container := ""
	if enclosing, ok, err := e.index.DefinitionOf(ctx, path, pos); err != nil {
		return nil, false, err
	} else if ok {
		container = enclosing.ContainerName
		if enclosing.Kind.IsArchitype() {
			container = enclosing.Name
		}
	}
	if container != "" {
		for _, s := range candidates {
			if s.ContainerName == container {
				return s, true, nil
			}
		}
	}
	for _, s := range candidates {
		if s.ContainerName == "" {
			return s, true, nil
		}
	}
	return candidates[0], true, nil
}

// GetAlerts returns every alert for path: the last extraction's parse and
// pass alerts, lint findings on the current text, then unresolved Jac
// imports.
func (e *Engine) GetAlerts(ctx context.Context, path string) ([]Alert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, err
	}
	return e.alerts(ctx, path)
}

func (e *Engine) alerts(ctx context.Context, path string) ([]Alert, error) {
	if _, err := e.index.SymbolsOf(ctx, path); err != nil {
		return nil, err
	}
	alerts := e.index.Alerts(path)
	if doc, ok := e.docs.Get(path); ok {
		lint, err := e.runtime.Lint(ctx, path, doc.Text)
		if err != nil {
			e.logger.Warn("file.lint", "path", path, "err", err)
		}
		alerts = append(alerts, lint...)
	}
	return append(alerts, e.index.Unresolved(path)...), nil
}

// GetDiagnostics translates GetAlerts into protocol diagnostics. Warnings
// are dropped unless warnings are enabled.
func (e *Engine) GetDiagnostics(ctx context.Context, path string) ([]protocol.Diagnostic, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, err
	}
	alerts, err := e.alerts(ctx, path)
	if err != nil {
		return nil, err
	}
	return diagnostic.Translate(alerts, e.showWarnings), nil
}

// Problems reports what is wrong with path as an error wrapping the index
// sentinels, or nil.
func (e *Engine) Problems(ctx context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return err
	}
	if _, err := e.index.SymbolsOf(ctx, path); err != nil {
		return err
	}
	return e.index.Problems(path)
}

// Dependencies returns the distinct Jac modules path imports.
func (e *Engine) Dependencies(path string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, err
	}
	return e.index.Graph().Dependencies(path), nil
}

// Dependents returns the files importing path directly.
func (e *Engine) Dependents(path string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, err
	}
	return e.index.Graph().Dependents(path), nil
}

// TransitiveDependents returns every file that reaches path through Jac
// imports, path itself excluded.
func (e *Engine) TransitiveDependents(path string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, err
	}
	return e.index.Graph().TransitiveDependents(path), nil
}

// Files returns every indexed file, sorted.
func (e *Engine) Files() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Files()
}

// State reports the index state of path: "unindexed", "indexed" or "stale".
func (e *Engine) State(path string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, err := canonical(path); err == nil {
		path = p
	}
	return e.index.State(path).String()
}

// Document returns the current text and version of path.
func (e *Engine) Document(path string) (text string, version int32, ok bool) {
	p, err := canonical(path)
	if err != nil {
		return "", 0, false
	}
	doc, ok := e.docs.Get(p)
	return doc.Text, doc.Version, ok
}

// OpenDocuments returns the paths the editor holds open, sorted.
func (e *Engine) OpenDocuments() []string {
	var out []string
	for _, p := range e.docs.Paths() {
		if doc, ok := e.docs.Get(p); ok && doc.Open {
			out = append(out, p)
		}
	}
	return out
}
