// Package lsp serves a jacls Engine over the Language Server Protocol.
//
// The engine is created on initialize, once the workspace root is known.
// Every handler converts protocol values at the edge and calls one Engine
// operation; diagnostics are pushed after each lifecycle event for the
// changed file and for every open file the event marked stale.
package lsp

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/jward/jacls"
	"github.com/jward/jacls/internal/config"
	"github.com/jward/jacls/internal/watch"
)

// Name is the server name reported to clients.
const Name = "jacls"

// Factory builds the Engine for a workspace root, along with the settings
// read for it. root is "" when the client opened no folder.
type Factory func(root string) (*jacls.Engine, *config.Config, error)

// Server adapts an Engine to protocol handlers.
type Server struct {
	handler protocol.Handler
	factory Factory
	logger  *slog.Logger
	version string
	tick    time.Duration

	mu      sync.Mutex
	engine  *jacls.Engine
	cfg     *config.Config
	notify  glsp.NotifyFunc
	watcher *watch.Watcher
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithVersion sets the version reported in serverInfo.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a Server. Nothing is served until RunStdio.
func New(factory Factory, opts ...Option) *Server {
	s := &Server{
		factory: factory,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		version: "dev",
		tick:    time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.didOpen,
		TextDocumentDidChange: s.didChange,
		TextDocumentDidSave:   s.didSave,
		TextDocumentDidClose:  s.didClose,

		TextDocumentDocumentSymbol:     s.documentSymbol,
		TextDocumentDefinition:         s.definition,
		TextDocumentHover:              s.hover,
		TextDocumentCompletion:         s.completion,
		TextDocumentSemanticTokensFull: s.semanticTokensFull,

		WorkspaceSymbol:                 s.workspaceSymbol,
		WorkspaceExecuteCommand:         s.executeCommand,
		WorkspaceDidCreateFiles:         s.didCreateFiles,
		WorkspaceDidRenameFiles:         s.didRenameFiles,
		WorkspaceDidDeleteFiles:         s.didDeleteFiles,
		WorkspaceDidChangeConfiguration: s.didChangeConfiguration,
	}
	return s
}

// Handler exposes the protocol handler, mainly for tests.
func (s *Server) Handler() *protocol.Handler {
	return &s.handler
}

// RunStdio serves on stdin and stdout until the client disconnects.
func (s *Server) RunStdio() error {
	srv := glspserver.NewServer(&s.handler, Name, false)
	err := srv.RunStdio()
	s.close()
	return err
}

// Engine returns the engine created on initialize, or nil before it.
func (s *Server) Engine() *jacls.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	root := workspaceRoot(params)
	engine, cfg, err := s.factory(root)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.engine = engine
	s.cfg = cfg
	s.notify = ctx.Notify
	s.mu.Unlock()
	s.logger.Info("lsp.initialize", "root", root, "session", engine.SessionID())

	caps := s.handler.CreateServerCapabilities()
	change := protocol.TextDocumentSyncKindIncremental
	caps.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &change,
		Save:      &protocol.SaveOptions{IncludeText: &protocol.True},
	}
	caps.CompletionProvider = &protocol.CompletionOptions{TriggerCharacters: []string{".", ":", " ", ","}}
	caps.SemanticTokensProvider = protocol.SemanticTokensOptions{
		Legend: protocol.SemanticTokensLegend{
			TokenTypes:     jacls.TokenTypes,
			TokenModifiers: jacls.TokenModifiers,
		},
		Full: true,
	}
	caps.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{Commands: []string{CountDownCommand}}
	jacFiles := &protocol.FileOperationRegistrationOptions{
		Filters: []protocol.FileOperationFilter{{Pattern: protocol.FileOperationPattern{Glob: "**/*.jac"}}},
	}
	caps.Workspace = &protocol.ServerCapabilitiesWorkspace{
		FileOperations: &protocol.ServerCapabilitiesWorkspaceFileOperations{
			DidCreate: jacFiles,
			DidRename: jacFiles,
			DidDelete: jacFiles,
		},
	}

	version := s.version
	return protocol.InitializeResult{
		Capabilities: caps,
		ServerInfo:   &protocol.InitializeResultServerInfo{Name: Name, Version: &version},
	}, nil
}

// workspaceRoot picks the first workspace folder, then rootUri, then the
// deprecated rootPath.
func workspaceRoot(params *protocol.InitializeParams) string {
	if len(params.WorkspaceFolders) > 0 {
		if p, err := PathFromURI(params.WorkspaceFolders[0].URI); err == nil {
			return p
		}
	}
	if params.RootURI != nil {
		if p, err := PathFromURI(*params.RootURI); err == nil {
			return p
		}
	}
	if params.RootPath != nil {
		return *params.RootPath
	}
	return ""
}

func (s *Server) initialized(ctx *glsp.Context, _ *protocol.InitializedParams) error {
	s.mu.Lock()
	s.notify = ctx.Notify
	engine, cfg := s.engine, s.cfg
	s.mu.Unlock()
	if cfg == nil || !cfg.Watch || engine.Root() == "" {
		return nil
	}
	w, err := watch.New(engine.Root(), s.onDiskEvents, watch.WithLogger(s.logger), watch.WithDebounce(cfg.Debounce()))
	if err != nil {
		s.logger.Warn("lsp.watch", "err", err)
		return nil
	}
	if err := w.Start(context.Background()); err != nil {
		s.logger.Warn("lsp.watch", "err", err)
		return nil
	}
	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
	return nil
}

func (s *Server) onDiskEvents(ctx context.Context, events []watch.Event) {
	engine := s.Engine()
	var stale []string
	for _, ev := range events {
		more, err := engine.OnDiskChange(ctx, ev.Path, ev.Removed)
		if err != nil {
			s.logger.Warn("lsp.disk_change", "path", ev.Path, "err", err)
			continue
		}
		stale = append(stale, more...)
	}
	s.publishStale(ctx, stale)
}

func (s *Server) shutdown(_ *glsp.Context) error {
	s.close()
	return nil
}

func (s *Server) close() {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w != nil {
		if err := w.Close(); err != nil {
			s.logger.Warn("lsp.watch_close", "err", err)
		}
	}
}

func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// publish pushes the current diagnostics of path.
func (s *Server) publish(ctx context.Context, path string) {
	diags, err := s.Engine().GetDiagnostics(ctx, path)
	if err != nil {
		s.logger.Warn("lsp.diagnostics", "path", path, "err", err)
		return
	}
	s.mu.Lock()
	notify := s.notify
	s.mu.Unlock()
	if notify == nil {
		return
	}
	notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         URIFromPath(path),
		Diagnostics: diags,
	})
}

// publishStale republishes the open files among paths.
func (s *Server) publishStale(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	open := make(map[string]bool)
	for _, p := range s.Engine().OpenDocuments() {
		open[p] = true
	}
	for _, p := range paths {
		if open[p] {
			s.publish(ctx, p)
		}
	}
}
