// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes workspace reconciliation and stylesheet projection as tools over
// stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/bhc/internal/stylesheet"
	"github.com/starford/bhc/internal/workspace"
)

const workspacesURI = "bhc://workspaces"

// Server wraps the MCP server with the bhc tools.
type Server struct {
	mcp     *server.MCPServer
	session *workspace.Session
}

// New creates a new MCP server with all tools registered.
func New(session *workspace.Session, version string) *Server {
	s := &Server{session: session}

	s.mcp = server.NewMCPServer(
		"bhc",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("reconcile_workspace",
		mcp.WithDescription("Bring the .bhc metadata of a workspace in line with its HTML and CSS files. "+
			"Opens the workspace first when it is not open yet. Returns the pass report as JSON."),
		mcp.WithString("root", mcp.Required(), mcp.Description("Absolute path of the workspace root")),
	), s.reconcileWorkspace)

	s.mcp.AddTool(mcp.NewTool("get_workspace_index",
		mcp.WithDescription("Return the stored workspace index (meta.json): tracked stylesheets and documents with their ids and cross references."),
		mcp.WithString("root", mcp.Required(), mcp.Description("Absolute path of an open workspace root")),
	), s.getWorkspaceIndex)

	s.mcp.AddTool(mcp.NewTool("get_stylesheet_metadata",
		mcp.WithDescription("Return the stored record of one stylesheet: parsed styles and last update time."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the stylesheet")),
	), s.getStylesheetMetadata)

	s.mcp.AddTool(mcp.NewTool("get_css_projection",
		mcp.WithDescription("Return the stylesheet view of an HTML document. "+
			"A document linking one stylesheet projects to that file; several are merged into .bhc/.virtual."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the HTML document")),
	), s.getCSSProjection)

	s.mcp.AddTool(mcp.NewTool("parse_css",
		mcp.WithDescription("Parse stylesheet text into tag rules. Only bare tag selectors are understood; "+
			"skipped constructs are listed as diagnostics."),
		mcp.WithString("css", mcp.Required(), mcp.Description("Stylesheet text")),
	), s.parseCSS)

	s.mcp.AddResource(
		mcp.NewResource(workspacesURI, "Open workspaces",
			mcp.WithResourceDescription("Roots of the workspaces this server tracks."),
			mcp.WithMIMEType("application/json"),
		),
		s.readWorkspacesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) reconcileWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := req.RequireString("root")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	abs, err := s.session.AddRoot(root)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rep, err := s.session.Reconcile(ctx, abs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep)
}

func (s *Server) getWorkspaceIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := req.RequireString("root")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := s.session.Index(root)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(index)
}

func (s *Server) getStylesheetMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.session.CSSMetaDataFor(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec)
}

func (s *Server) getCSSProjection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	proj, err := s.session.Project(ctx, path, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if proj.File == nil {
		return mcp.NewToolResultText(fmt.Sprintf("single stylesheet: %s", proj.Path)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("/* %s */\n%s", proj.Path, proj.CSS)), nil
}

func (s *Server) parseCSS(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	css, err := req.RequireString("css")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := stylesheet.Parse([]byte(css))
	return jsonResult(map[string]any{
		"styles":      res.Styles,
		"diagnostics": res.Diagnostics,
	})
}

func (s *Server) readWorkspacesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.Marshal(s.session.Roots())
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      workspacesURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
