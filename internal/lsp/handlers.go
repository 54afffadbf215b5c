package lsp

import (
	"context"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/jacls"
	"github.com/jward/jacls/internal/diagnostic"
	"github.com/jward/jacls/internal/docs"
)

func (s *Server) didOpen(_ *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	ctx := context.Background()
	path, err := PathFromURI(params.TextDocument.URI)
	if err != nil {
		return err
	}
	stale, err := s.Engine().OnOpen(ctx, path, params.TextDocument.Text, params.TextDocument.Version)
	if err != nil {
		return err
	}
	s.afterEvent(ctx, path, stale)
	return nil
}

func (s *Server) didChange(_ *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	ctx := context.Background()
	path, err := PathFromURI(params.TextDocument.URI)
	if err != nil {
		return err
	}
	engine := s.Engine()
	current, _, _ := engine.Document(path)
	text, err := ApplyChanges(current, params.ContentChanges)
	if err != nil {
		return err
	}
	stale, err := engine.OnChange(ctx, path, text, params.TextDocument.Version)
	if err != nil {
		return err
	}
	s.afterEvent(ctx, path, stale)
	return nil
}

func (s *Server) didSave(_ *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	ctx := context.Background()
	path, err := PathFromURI(params.TextDocument.URI)
	if err != nil {
		return err
	}
	engine := s.Engine()
	text, _, ok := engine.Document(path)
	if params.Text != nil {
		text, ok = *params.Text, true
	}
	if !ok {
		return nil
	}
	stale, err := engine.OnSave(ctx, path, text)
	if err != nil {
		return err
	}
	s.afterEvent(ctx, path, stale)
	return nil
}

func (s *Server) didClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	path, err := PathFromURI(params.TextDocument.URI)
	if err != nil {
		return err
	}
	return s.Engine().OnClose(context.Background(), path)
}

func (s *Server) afterEvent(ctx context.Context, path string, stale []string) {
	s.publish(ctx, path)
	s.publishStale(ctx, stale)
}

func (s *Server) didCreateFiles(_ *glsp.Context, params *protocol.CreateFilesParams) error {
	ctx := context.Background()
	for _, f := range params.Files {
		path, err := PathFromURI(f.URI)
		if err != nil {
			return err
		}
		stale, err := s.Engine().OnCreate(ctx, path)
		if err != nil {
			s.logger.Warn("lsp.create", "path", path, "err", err)
			continue
		}
		s.publishStale(ctx, stale)
	}
	return nil
}

func (s *Server) didRenameFiles(_ *glsp.Context, params *protocol.RenameFilesParams) error {
	ctx := context.Background()
	for _, f := range params.Files {
		oldPath, err := PathFromURI(f.OldURI)
		if err != nil {
			return err
		}
		newPath, err := PathFromURI(f.NewURI)
		if err != nil {
			return err
		}
		stale, err := s.Engine().OnRename(ctx, oldPath, newPath)
		if err != nil {
			s.logger.Warn("lsp.rename", "old", oldPath, "new", newPath, "err", err)
			continue
		}
		s.publishStale(ctx, stale)
	}
	return nil
}

func (s *Server) didDeleteFiles(_ *glsp.Context, params *protocol.DeleteFilesParams) error {
	ctx := context.Background()
	for _, f := range params.Files {
		path, err := PathFromURI(f.URI)
		if err != nil {
			return err
		}
		stale, err := s.Engine().OnDelete(ctx, path)
		if err != nil {
			s.logger.Warn("lsp.delete", "path", path, "err", err)
			continue
		}
		s.publishStale(ctx, stale)
	}
	return nil
}

// didChangeConfiguration reads jac.showWarning and republishes every open
// file when it changes.
func (s *Server) didChangeConfiguration(_ *glsp.Context, params *protocol.DidChangeConfigurationParams) error {
	show, ok := showWarningSetting(params.Settings)
	if !ok {
		return nil
	}
	engine := s.Engine()
	engine.SetShowWarnings(show)
	ctx := context.Background()
	for _, p := range engine.OpenDocuments() {
		s.publish(ctx, p)
	}
	return nil
}

// showWarningSetting finds jac.showWarning in a settings payload, either
// nested ({"jac": {"showWarning": true}}) or flat ({"jac.showWarning": true}).
func showWarningSetting(settings any) (bool, bool) {
	m, ok := settings.(map[string]any)
	if !ok {
		return false, false
	}
	if v, ok := m["jac.showWarning"].(bool); ok {
		return v, true
	}
	if jac, ok := m["jac"].(map[string]any); ok {
		if v, ok := jac["showWarning"].(bool); ok {
			return v, true
		}
	}
	return false, false
}

func (s *Server) documentSymbol(_ *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	path, err := PathFromURI(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	syms, err := s.Engine().GetDocumentSymbols(context.Background(), path)
	if err != nil {
		return nil, err
	}
	own, err := docs.Canonical(path)
	if err != nil {
		return nil, err
	}
	return DocumentSymbols(own, syms), nil
}

func (s *Server) workspaceSymbol(_ *glsp.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	syms, err := s.Engine().GetWorkspaceSymbols(context.Background(), params.Query)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.SymbolInformation, 0, len(syms))
	for _, sym := range syms {
		out = append(out, SymbolInformation(sym))
	}
	return out, nil
}

// definition resolves the identifier under the cursor, falling back to the
// declaration enclosing it.
func (s *Server) definition(_ *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	ctx := context.Background()
	path, err := PathFromURI(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	pos := diagnostic.FromPosition(params.Position)
	engine := s.Engine()
	sym, ok, err := engine.LookupReference(ctx, path, pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		if sym, ok, err = engine.GetDefinition(ctx, path, pos); err != nil || !ok {
			return nil, err
		}
	}
	return Location(sym), nil
}

func (s *Server) hover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	path, err := PathFromURI(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	sym, ok, err := s.Engine().Hover(context.Background(), path, diagnostic.FromPosition(params.Position))
	if err != nil || !ok {
		return nil, err
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindPlainText, Value: jacls.HoverText(sym)},
	}, nil
}

func (s *Server) completion(_ *glsp.Context, params *protocol.CompletionParams) (any, error) {
	path, err := PathFromURI(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	items, err := s.Engine().Complete(context.Background(), path, diagnostic.FromPosition(params.Position))
	if err != nil {
		return nil, err
	}
	return CompletionItems(items), nil
}

func (s *Server) semanticTokensFull(_ *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	path, err := PathFromURI(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	tokens, err := s.Engine().SemanticTokens(context.Background(), path)
	if err != nil {
		return nil, err
	}
	data, err := EncodeTokens(tokens)
	if err != nil {
		return nil, err
	}
	return &protocol.SemanticTokens{Data: data}, nil
}
