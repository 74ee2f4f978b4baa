package api

import (
	"encoding/json"
	"net/http"

	"github.com/starford/bhc/internal/stylesheet"
)

// Handler holds API route handlers.
type Handler struct {
	ws Workspaces
}

// NewHandler creates a new Handler.
func NewHandler(ws Workspaces) *Handler {
	return &Handler{ws: ws}
}

func requireQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter '"+name+"' is required"))
		return "", false
	}
	return v, true
}

// ListWorkspaces handles GET /api/workspaces.
//
//	@Summary		List open workspaces
//	@Tags			workspaces
//	@Produce		json
//	@Success		200	{object}	WorkspaceListResponse
//	@Security		BearerAuth
//	@Router			/workspaces [get]
func (h *Handler) ListWorkspaces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, WorkspaceListResponse{Roots: h.ws.Roots()})
}

// Reconcile handles POST /api/workspaces/reconcile.
//
//	@Summary		Run a reconciliation pass over a workspace
//	@Tags			workspaces
//	@Produce		json
//	@Param			root	query		string	true	"Workspace root"
//	@Success		200		{object}	workspace.Report
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspaces/reconcile [post]
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	root, ok := requireQuery(w, r, "root")
	if !ok {
		return
	}
	rep, err := h.ws.Reconcile(r.Context(), root)
	if err != nil {
		writeError(w, "reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Index handles GET /api/workspaces/index.
//
//	@Summary		Get the stored workspace index
//	@Tags			workspaces
//	@Produce		json
//	@Param			root	query		string	true	"Workspace root"
//	@Success		200		{object}	metadata.WorkspaceMetaData
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspaces/index [get]
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	root, ok := requireQuery(w, r, "root")
	if !ok {
		return
	}
	index, err := h.ws.Index(root)
	if err != nil {
		writeError(w, "index", err)
		return
	}
	writeJSON(w, http.StatusOK, index)
}

// StylesheetMetadata handles GET /api/stylesheets/metadata.
//
//	@Summary		Get the stored record of a stylesheet
//	@Tags			stylesheets
//	@Produce		json
//	@Param			path	query		string	true	"Absolute stylesheet path"
//	@Success		200		{object}	metadata.CSSMetaData
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stylesheets/metadata [get]
func (h *Handler) StylesheetMetadata(w http.ResponseWriter, r *http.Request) {
	path, ok := requireQuery(w, r, "path")
	if !ok {
		return
	}
	rec, err := h.ws.CSSMetaDataFor(path)
	if err != nil {
		writeError(w, "stylesheet metadata", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ParseStylesheet handles POST /api/stylesheets/parse.
//
//	@Summary		Parse stylesheet text without touching the workspace
//	@Tags			stylesheets
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ParseRequest	true	"Stylesheet text"
//	@Success		200		{object}	ParseResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stylesheets/parse [post]
func (h *Handler) ParseStylesheet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res := stylesheet.Parse([]byte(req.CSS))
	resp := ParseResponse{Styles: res.Styles, Diagnostics: res.Diagnostics}
	if resp.Styles == nil {
		resp.Styles = []stylesheet.Style{}
	}
	if resp.Diagnostics == nil {
		resp.Diagnostics = []stylesheet.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Projection handles GET /api/projection.
//
//	@Summary		Project the stylesheets of an HTML document
//	@Tags			projection
//	@Produce		json
//	@Param			path	query		string	true	"Absolute HTML document path"
//	@Success		200		{object}	workspace.Projection
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projection [get]
func (h *Handler) Projection(w http.ResponseWriter, r *http.Request) {
	path, ok := requireQuery(w, r, "path")
	if !ok {
		return
	}
	proj, err := h.ws.Project(r.Context(), path, nil)
	if err != nil {
		writeError(w, "projection", err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}
