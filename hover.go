package jacls

import (
	"context"
	"fmt"
)

// Hover returns the symbol to describe at pos: the declaration named by the
// identifier under pos, or else the innermost declaration enclosing pos.
func (e *Engine) Hover(ctx context.Context, path string, pos Position) (*Symbol, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, false, err
	}
	if sym, ok, err := e.lookupReference(ctx, path, pos); err != nil || ok {
		return sym, ok, err
	}
	return e.index.DefinitionOf(ctx, path, pos)
}

// HoverText renders a symbol as "(kind) name", followed by its doc string
// on the next line when it has one.
func HoverText(s *Symbol) string {
	text := fmt.Sprintf("(%s) %s", s.Kind, s.Name)
	if s.Doc != "" {
		text += "\n" + s.Doc
	}
	return text
}
