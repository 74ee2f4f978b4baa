// Package lsp adapts the workspace session to the Language Server Protocol.
// Opening an HTML document answers with a bhc/showDocument notification
// naming the stylesheet to show beside it.
package lsp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/starford/bhc/internal/apperr"
	"github.com/starford/bhc/internal/htmldoc"
	"github.com/starford/bhc/internal/workspace"
)

// Name is reported to clients as the server name.
const Name = "bhc"

// MethodShowDocument asks the client to open a stylesheet beside the
// current document.
const MethodShowDocument = "bhc/showDocument"

const methodLogMessage = "window/logMessage"

// ShowDocumentParams is the payload of MethodShowDocument.
type ShowDocumentParams struct {
	URI string `json:"uri"`
}

// Server handles LSP requests over a workspace session.
type Server struct {
	session *workspace.Session
	logger  *slog.Logger
	version string
	baseCtx context.Context

	handler protocol.Handler

	mu    sync.Mutex
	ready bool
}

// New creates a server. ctx bounds the reconciliation passes it starts.
func New(ctx context.Context, session *workspace.Session, logger *slog.Logger, version string) *Server {
	s := &Server{session: session, logger: logger, version: version, baseCtx: ctx}
	s.handler = protocol.Handler{
		Initialize:                         s.initialize,
		Initialized:                        s.initialized,
		Shutdown:                           s.shutdown,
		SetTrace:                           s.setTrace,
		TextDocumentDidOpen:                s.didOpen,
		TextDocumentDidSave:                s.didSave,
		WorkspaceDidChangeWorkspaceFolders: s.didChangeWorkspaceFolders,
	}
	return s
}

// RunStdio serves the protocol on stdin/stdout until the client exits.
func (s *Server) RunStdio() error {
	return server.NewServer(&s.handler, Name, false).RunStdio()
}

func (s *Server) logToClient(ctx *glsp.Context, typ protocol.MessageType, msg string) {
	if ctx == nil || ctx.Notify == nil {
		return
	}
	ctx.Notify(methodLogMessage, protocol.LogMessageParams{Type: typ, Message: msg})
}

func (s *Server) addFolder(uri string) {
	path, err := htmldoc.URIToPath(uri)
	if err != nil {
		s.logger.Warn("lsp: bad workspace uri", slog.String("uri", uri), slog.String("error", err.Error()))
		return
	}
	if _, err := s.session.AddRoot(path); err != nil {
		s.logger.Warn("lsp: add workspace failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	switch {
	case len(params.WorkspaceFolders) > 0:
		for _, f := range params.WorkspaceFolders {
			s.addFolder(f.URI)
		}
	case params.RootURI != nil:
		s.addFolder(*params.RootURI)
	case params.RootPath != nil:
		if _, err := s.session.AddRoot(*params.RootPath); err != nil {
			s.logger.Warn("lsp: add workspace failed", slog.String("path", *params.RootPath), slog.String("error", err.Error()))
		}
	}

	capabilities := s.handler.CreateServerCapabilities()
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    Name,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, _ *protocol.InitializedParams) error {
	s.firstTimeSetup(ctx)
	s.logToClient(ctx, protocol.MessageTypeInfo, "bhc language server initialized")
	return nil
}

// firstTimeSetup reconciles every open workspace once per server lifetime.
func (s *Server) firstTimeSetup(ctx *glsp.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return
	}
	s.ready = true
	if _, err := s.session.ReconcileAll(s.baseCtx); err != nil {
		s.logger.Error("lsp: initial reconcile failed", slog.String("error", err.Error()))
		s.logToClient(ctx, protocol.MessageTypeError, err.Error())
	}
}

func (s *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	path, err := htmldoc.URIToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	if params.TextDocument.LanguageID != "html" && !workspace.IsDocument(path) {
		return nil
	}
	s.firstTimeSetup(ctx)

	proj, err := s.session.Project(s.baseCtx, path, []byte(params.TextDocument.Text))
	if errors.Is(err, apperr.ErrNoStylesheets) {
		s.logger.Debug("lsp: document links no stylesheets", slog.String("path", path))
		return nil
	}
	if err != nil {
		s.logger.Warn("lsp: projection failed", slog.String("path", path), slog.String("error", err.Error()))
		s.logToClient(ctx, protocol.MessageTypeError, fmt.Sprintf("bhc: %s: %v", path, err))
		return nil
	}
	if ctx != nil && ctx.Notify != nil {
		ctx.Notify(MethodShowDocument, ShowDocumentParams{URI: htmldoc.PathToURI(proj.Path)})
	}
	return nil
}

func (s *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	path, err := htmldoc.URIToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	if !workspace.IsStylesheet(path) && !workspace.IsDocument(path) {
		return nil
	}
	root, err := s.session.WorkspaceFor(path)
	if err != nil {
		s.logger.Debug("lsp: saved file outside workspaces", slog.String("path", path))
		return nil
	}
	if _, err := s.session.Reconcile(s.baseCtx, root); err != nil {
		s.logger.Warn("lsp: reconcile after save failed", slog.String("root", root), slog.String("error", err.Error()))
		s.logToClient(ctx, protocol.MessageTypeError, err.Error())
	}
	return nil
}

func (s *Server) didChangeWorkspaceFolders(ctx *glsp.Context, params *protocol.DidChangeWorkspaceFoldersParams) error {
	for _, f := range params.Event.Removed {
		path, err := htmldoc.URIToPath(f.URI)
		if err != nil {
			continue
		}
		s.session.RemoveRoot(path)
	}
	for _, f := range params.Event.Added {
		path, err := htmldoc.URIToPath(f.URI)
		if err != nil {
			continue
		}
		root, err := s.session.AddRoot(path)
		if err != nil {
			s.logger.Warn("lsp: add workspace failed", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		if _, err := s.session.Reconcile(s.baseCtx, root); err != nil {
			s.logToClient(ctx, protocol.MessageTypeError, err.Error())
		}
	}
	return nil
}
