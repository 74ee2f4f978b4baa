package api

import (
	"context"

	"github.com/starford/bhc/internal/metadata"
	"github.com/starford/bhc/internal/workspace"
)

// Workspaces is the part of workspace.Session the API serves.
type Workspaces interface {
	Roots() []string
	Reconcile(ctx context.Context, root string) (workspace.Report, error)
	Index(root string) (*metadata.WorkspaceMetaData, error)
	CSSMetaDataFor(path string) (*metadata.CSSMetaData, error)
	Project(ctx context.Context, htmlPath string, text []byte) (workspace.Projection, error)
}

var _ Workspaces = (*workspace.Session)(nil)
