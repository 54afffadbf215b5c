package lsp

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/jacls"
	"github.com/jward/jacls/internal/config"
	"github.com/jward/jacls/internal/docs"
	"github.com/jward/jacls/internal/store"
	"github.com/jward/jacls/scripts"
)

func TestURIRoundTrip(t *testing.T) {
	t.Parallel()
	uri := URIFromPath("/tmp/a b/x.jac")
	assert.Equal(t, "file:///tmp/a%20b/x.jac", uri)
	path, err := PathFromURI(uri)
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/tmp/a b/x.jac"), path)

	_, err = PathFromURI("https://example.com/x.jac")
	assert.Error(t, err)
}

func rng(l1, c1, l2, c2 uint32) *protocol.Range {
	return &protocol.Range{
		Start: protocol.Position{Line: l1, Character: c1},
		End:   protocol.Position{Line: l2, Character: c2},
	}
}

func TestApplyChanges(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		text    string
		changes []any
		want    string
	}{
		{
			name:    "insert",
			text:    "node A {}\n",
			changes: []any{protocol.TextDocumentContentChangeEvent{Range: rng(0, 6, 0, 6), Text: "B"}},
			want:    "node AB {}\n",
		},
		{
			name:    "replace across lines",
			text:    "node A {}\nnode B {}\n",
			changes: []any{protocol.TextDocumentContentChangeEvent{Range: rng(0, 5, 1, 6), Text: "C"}},
			want:    "node C {}\n",
		},
		{
			name: "sequential edits see earlier ones",
			text: "x",
			changes: []any{
				protocol.TextDocumentContentChangeEvent{Range: rng(0, 1, 0, 1), Text: "\ny"},
				protocol.TextDocumentContentChangeEvent{Range: rng(1, 1, 1, 1), Text: "z"},
			},
			want: "x\nyz",
		},
		{
			name:    "utf16 columns",
			text:    "😀a",
			changes: []any{protocol.TextDocumentContentChangeEvent{Range: rng(0, 2, 0, 3), Text: "b"}},
			want:    "😀b",
		},
		{
			name:    "whole document",
			text:    "old",
			changes: []any{protocol.TextDocumentContentChangeEventWhole{Text: "new"}},
			want:    "new",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ApplyChanges(tt.text, tt.changes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ApplyChanges("abc", []any{protocol.TextDocumentContentChangeEvent{Range: rng(0, 2, 0, 1)}})
	assert.Error(t, err)
}

func TestEncodeTokens(t *testing.T) {
	t.Parallel()
	data, err := EncodeTokens([]jacls.SemanticToken{
		{Line: 1, Col: 0, Length: 3, Type: jacls.TokenKeyword},
		{Line: 1, Col: 4, Length: 14, Type: jacls.TokenFunction, Modifiers: jacls.ModDeclaration},
		{Line: 3, Col: 2, Length: 1, Type: jacls.TokenNumber},
	})
	require.NoError(t, err)
	assert.Equal(t, []protocol.UInteger{
		1, 0, 3, uint32(jacls.TokenKeyword), 0,
		0, 4, 14, uint32(jacls.TokenFunction), jacls.ModDeclaration,
		2, 2, 1, uint32(jacls.TokenNumber), 0,
	}, data)

	_, err = EncodeTokens([]jacls.SemanticToken{{Line: 0, Col: 0, Length: -1}})
	assert.Error(t, err)
}

func TestSymbolKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind      store.SymbolKind
		container string
		want      protocol.SymbolKind
	}{
		{store.KindWalker, "", protocol.SymbolKindClass},
		{store.KindNode, "", protocol.SymbolKindClass},
		{store.KindEdge, "", protocol.SymbolKindInterface},
		{store.KindGraph, "", protocol.SymbolKindNamespace},
		{store.KindObject, "", protocol.SymbolKindObject},
		{store.KindAbility, "", protocol.SymbolKindFunction},
		{store.KindAbility, "Greeter", protocol.SymbolKindMethod},
		{store.KindVariable, "", protocol.SymbolKindVariable},
	}
	for _, tt := range tests {
		got := SymbolKind(&jacls.Symbol{Kind: tt.kind, ContainerName: tt.container})
		assert.Equal(t, tt.want, got, "%s in %q", tt.kind, tt.container)
	}
}

func TestDocumentSymbols(t *testing.T) {
	t.Parallel()
	syms := []*jacls.Symbol{
		{Name: "Greeter", Kind: store.KindWalker, Path: "/w/main.jac", StartLine: 1, EndLine: 4},
		{Name: "greeting", Kind: store.KindVariable, ContainerName: "Greeter", Path: "/w/main.jac", StartLine: 2, EndLine: 2, Detail: "str"},
		{Name: "greet", Kind: store.KindAbility, ContainerName: "Greeter", Path: "/w/main.jac", StartLine: 3, EndLine: 3},
		{Name: "main", Kind: store.KindAbility, Path: "/w/main.jac", StartLine: 6, EndLine: 8},
		{Name: "Person", Kind: store.KindNode, Path: "/w/lib/models.jac"},
	}
	out := DocumentSymbols("/w/main.jac", syms)
	require.Len(t, out, 2)
	assert.Equal(t, "Greeter", out[0].Name)
	require.Len(t, out[0].Children, 2)
	assert.Equal(t, "greeting", out[0].Children[0].Name)
	require.NotNil(t, out[0].Children[0].Detail)
	assert.Equal(t, "str", *out[0].Children[0].Detail)
	assert.Equal(t, protocol.SymbolKindMethod, out[0].Children[1].Kind)
	assert.Equal(t, "main", out[1].Name)
	assert.Equal(t, protocol.UInteger(6), out[1].Range.Start.Line)

	assert.Empty(t, DocumentSymbols("/w/other.jac", syms))
	assert.NotNil(t, DocumentSymbols("/w/other.jac", syms))
}

func TestShowWarningSetting(t *testing.T) {
	t.Parallel()
	v, ok := showWarningSetting(map[string]any{"jac": map[string]any{"showWarning": false}})
	assert.True(t, ok)
	assert.False(t, v)

	v, ok = showWarningSetting(map[string]any{"jac.showWarning": true})
	assert.True(t, ok)
	assert.True(t, v)

	_, ok = showWarningSetting(map[string]any{"python": map[string]any{}})
	assert.False(t, ok)
	_, ok = showWarningSetting(nil)
	assert.False(t, ok)
}

// recorder captures notifications sent to the client.
type recorder struct {
	mu    sync.Mutex
	calls []notification
}

type notification struct {
	method string
	params any
}

func (r *recorder) notify(method string, params any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, notification{method: method, params: params})
}

func (r *recorder) diagnostics(uri string) []protocol.PublishDiagnosticsParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.PublishDiagnosticsParams
	for _, n := range r.calls {
		if p, ok := n.params.(protocol.PublishDiagnosticsParams); ok && n.method == protocol.ServerTextDocumentPublishDiagnostics && p.URI == uri {
			out = append(out, p)
		}
	}
	return out
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.calls {
		if p, ok := n.params.(protocol.ShowMessageParams); ok {
			out = append(out, p.Message)
		}
	}
	return out
}

func newTestServer(t *testing.T) (*Server, *recorder, *glsp.Context, string) {
	t.Helper()
	root, err := docs.Canonical(t.TempDir())
	require.NoError(t, err)
	s := New(func(root string) (*jacls.Engine, *config.Config, error) {
		e, err := jacls.New("", "", jacls.WithScriptsFS(scripts.FS), jacls.WithRoot(root))
		if err == nil {
			t.Cleanup(func() { e.Close() })
		}
		return e, config.Default(), err
	})
	rec := &recorder{}
	ctx := &glsp.Context{Notify: rec.notify}
	rootURI := URIFromPath(root)
	res, err := s.initialize(ctx, &protocol.InitializeParams{RootURI: &rootURI})
	require.NoError(t, err)
	result, ok := res.(protocol.InitializeResult)
	require.True(t, ok)
	assert.Equal(t, Name, result.ServerInfo.Name)
	require.NoError(t, s.initialized(ctx, &protocol.InitializedParams{}))
	require.NotNil(t, s.Engine())
	assert.Equal(t, root, s.Engine().Root())
	return s, rec, ctx, root
}

func writeJac(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func TestServer_PublishesDiagnostics(t *testing.T) {
	s, rec, ctx, root := newTestServer(t)
	path := filepath.Join(root, "w.jac")
	text := "walker W {}\n"
	writeJac(t, path, text)
	uri := URIFromPath(path)

	require.NoError(t, s.didOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "jac", Version: 1, Text: text},
	}))
	published := rec.diagnostics(uri)
	require.Len(t, published, 1)
	require.Len(t, published[0].Diagnostics, 1)
	assert.Equal(t, "walker 'W' has an empty body", published[0].Diagnostics[0].Message)

	require.NoError(t, s.didChangeConfiguration(ctx, &protocol.DidChangeConfigurationParams{
		Settings: map[string]any{"jac": map[string]any{"showWarning": false}},
	}))
	published = rec.diagnostics(uri)
	require.Len(t, published, 2)
	assert.Empty(t, published[1].Diagnostics)
}

func TestServer_DidChangeRepublishesDependents(t *testing.T) {
	s, rec, ctx, root := newTestServer(t)
	lib := filepath.Join(root, "lib.jac")
	main := filepath.Join(root, "main.jac")
	writeJac(t, lib, "node Person {\n    has name: str;\n}\n")
	writeJac(t, main, "import:jac lib;\nwalker W {\n    has p: int;\n}\n")
	libURI, mainURI := URIFromPath(lib), URIFromPath(main)

	for _, p := range []string{lib, main} {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		require.NoError(t, s.didOpen(ctx, &protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{URI: URIFromPath(p), Version: 1, Text: string(data)},
		}))
	}
	before := len(rec.diagnostics(mainURI))

	require.NoError(t, s.didChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: libURI},
			Version:                2,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEvent{Range: rng(3, 0, 3, 0), Text: "node Pet {\n    has age: int;\n}\n"}},
	}))
	text, version, ok := s.Engine().Document(lib)
	require.True(t, ok)
	assert.Equal(t, int32(2), version)
	assert.Contains(t, text, "node Pet")
	assert.Greater(t, len(rec.diagnostics(mainURI)), before)

	res, err := s.documentSymbol(ctx, &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: mainURI},
	})
	require.NoError(t, err)
	outline, ok := res.([]protocol.DocumentSymbol)
	require.True(t, ok)
	require.Len(t, outline, 1)
	assert.Equal(t, "W", outline[0].Name)
}

func TestServer_DefinitionAndHover(t *testing.T) {
	s, _, ctx, root := newTestServer(t)
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "circle", "circle.jac"))
	require.NoError(t, err)
	path := filepath.Join(root, "circle.jac")
	writeJac(t, path, string(data))
	uri := URIFromPath(path)
	require.NoError(t, s.didOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, Version: 1, Text: string(data)},
	}))

	at := protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Position:     protocol.Position{Line: 12, Character: 4},
	}
	res, err := s.definition(ctx, &protocol.DefinitionParams{TextDocumentPositionParams: at})
	require.NoError(t, err)
	loc, ok := res.(protocol.Location)
	require.True(t, ok)
	assert.Equal(t, protocol.UInteger(11), loc.Range.Start.Line)

	hover, err := s.hover(ctx, &protocol.HoverParams{TextDocumentPositionParams: at})
	require.NoError(t, err)
	require.NotNil(t, hover)
	content, ok := hover.Contents.(protocol.MarkupContent)
	require.True(t, ok)
	assert.Equal(t, "(ability) calculate_area\nFunction to calculate the area of a circle.", content.Value)

	tokens, err := s.semanticTokensFull(ctx, &protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Data)
	assert.Zero(t, len(tokens.Data)%5)

	syms, err := s.workspaceSymbol(ctx, &protocol.WorkspaceSymbolParams{Query: "circle"})
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, protocol.SymbolKindObject, syms[0].Kind)
}

func TestServer_UnknownCommand(t *testing.T) {
	s, _, ctx, _ := newTestServer(t)
	_, err := s.executeCommand(ctx, &protocol.ExecuteCommandParams{Command: "jacls.nope"})
	assert.Error(t, err)
}

func TestCountDown(t *testing.T) {
	s := New(nil)
	s.tick = time.Millisecond
	rec := &recorder{}
	s.countDown(rec.notify, nil)

	msgs := rec.messages()
	require.Len(t, msgs, 10)
	assert.Equal(t, "Counting down... 9", msgs[0])
	assert.Equal(t, "Counting down... 0", msgs[9])
}

func TestCountDown_DoesNotBlockRequests(t *testing.T) {
	s, rec, ctx, _ := newTestServer(t)
	s.tick = 20 * time.Millisecond
	_, err := s.executeCommand(ctx, &protocol.ExecuteCommandParams{Command: CountDownCommand})
	require.NoError(t, err)

	_, err = s.workspaceSymbol(ctx, &protocol.WorkspaceSymbolParams{})
	require.NoError(t, err)
	assert.Less(t, len(rec.messages()), 10)

	require.Eventually(t, func() bool { return len(rec.messages()) == 10 }, 5*time.Second, 10*time.Millisecond)
}
