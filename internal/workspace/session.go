package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/starford/bhc/internal/apperr"
	"github.com/starford/bhc/internal/htmldoc"
	"github.com/starford/bhc/internal/merge"
	"github.com/starford/bhc/internal/metadata"
	"github.com/starford/bhc/internal/storage"
)

// EventCallback is called after a session-driven change in the workspace
// at root. kind is one of "reconciled" (path is root) or "projected" (path
// is the written projection).
type EventCallback func(kind, root, path string)

// Option configures a Session.
type Option func(*Session)

// WithParseFunc sets the stylesheet parser used by reconciliation passes.
func WithParseFunc(parse metadata.ParseFunc) Option {
	return func(s *Session) {
		s.parse = parse
	}
}

// WithIgnoreDirs sets the directory names skipped while enumerating.
func WithIgnoreDirs(dirs []string) Option {
	return func(s *Session) {
		s.ignoreDirs = dirs
	}
}

// WithEventCallback registers cb for session events.
func WithEventCallback(cb EventCallback) Option {
	return func(s *Session) {
		s.onEvent = cb
	}
}

// Projection is the stylesheet an editor should show next to a document.
// File is set only when several stylesheets were merged into Path.
type Projection struct {
	Path string                  `json:"path"`
	File *merge.FormattedCSSFile `json:"file,omitempty"`
	CSS  string                  `json:"css,omitempty"`
}

type root struct {
	mu  sync.Mutex
	rec *Reconciler
}

// Session tracks the open workspaces. Passes and projections over one
// workspace are serialized; different workspaces proceed independently.
type Session struct {
	logger     *slog.Logger
	parse      metadata.ParseFunc
	ignoreDirs []string
	onEvent    EventCallback

	mu    sync.RWMutex
	roots map[string]*root
}

// NewSession returns an empty session.
func NewSession(logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		logger: logger,
		roots:  make(map[string]*root),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddRoot registers the workspace at path and returns its absolute root.
// Adding a known root is a no-op.
func (s *Session) AddRoot(path string) (string, error) {
	store, err := storage.NewFS(path, s.ignoreDirs)
	if err != nil {
		return "", err
	}
	abs := store.Root()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roots[abs]; !ok {
		s.roots[abs] = &root{rec: NewReconciler(store, s.parse, s.logger)}
		s.logger.Info("session: workspace added", slog.String("root", abs))
	}
	return abs, nil
}

// RemoveRoot forgets the workspace at path. The metadata tree stays on disk.
func (s *Session) RemoveRoot(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roots[abs]; !ok {
		return false
	}
	delete(s.roots, abs)
	s.logger.Info("session: workspace removed", slog.String("root", abs))
	return true
}

// Roots lists the registered workspace roots in lexical order.
func (s *Session) Roots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.roots))
	for r := range s.roots {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// WorkspaceFor returns the innermost registered root containing path.
func (s *Session) WorkspaceFor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &apperr.ClassificationError{Path: path, Reason: err.Error()}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	best := ""
	for r := range s.roots {
		if metadata.NewLayout(r).Contains(abs) && len(r) > len(best) {
			best = r
		}
	}
	if best == "" {
		return "", &apperr.ClassificationError{Path: abs, Reason: "not inside any open workspace"}
	}
	return best, nil
}

func (s *Session) lookup(rootPath string) (*root, error) {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roots[abs]
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", abs, apperr.ErrNoWorkspace)
	}
	return r, nil
}

func (s *Session) emit(kind, root, path string) {
	if s.onEvent != nil {
		s.onEvent(kind, root, path)
	}
}

// Reconcile runs a pass over the registered workspace at rootPath.
func (s *Session) Reconcile(ctx context.Context, rootPath string) (Report, error) {
	r, err := s.lookup(rootPath)
	if err != nil {
		return Report{Root: rootPath}, err
	}
	r.mu.Lock()
	rep, err := r.rec.Initialize(ctx)
	r.mu.Unlock()
	if err != nil {
		return rep, err
	}
	if !rep.Skipped {
		s.emit("reconciled", rep.Root, rep.Root)
	}
	return rep, nil
}

// ReconcileAll runs a pass over every registered workspace. Fatal errors of
// single workspaces are combined; the other passes still run.
func (s *Session) ReconcileAll(ctx context.Context) ([]Report, error) {
	var (
		reports []Report
		errs    error
	)
	for _, r := range s.Roots() {
		rep, err := s.Reconcile(ctx, r)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		reports = append(reports, rep)
	}
	return reports, errs
}

// Index returns the stored index of the workspace at rootPath.
func (s *Session) Index(rootPath string) (*metadata.WorkspaceMetaData, error) {
	r, err := s.lookup(rootPath)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return openIndex(r.rec)
}

func openIndex(rec *Reconciler) (*metadata.WorkspaceMetaData, error) {
	index, err := metadata.OpenWorkspaceMetaData(rec.store, rec.layout)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("index of %s: %w", rec.layout.Root, apperr.ErrNotFound)
	}
	return index, err
}

// CSSMetaDataFor returns the stored record of the stylesheet at path.
func (s *Session) CSSMetaDataFor(path string) (*metadata.CSSMetaData, error) {
	rootPath, err := s.WorkspaceFor(path)
	if err != nil {
		return nil, err
	}
	r, err := s.lookup(rootPath)
	if err != nil {
		return nil, err
	}
	abs, _ := filepath.Abs(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	index, err := openIndex(r.rec)
	if err != nil {
		return nil, err
	}
	id, ok := index.CSSFileID(abs)
	if !ok {
		return nil, fmt.Errorf("stylesheet %s: %w", abs, apperr.ErrNotFound)
	}
	return metadata.LoadCSSMetaData(r.rec.store, r.rec.layout.CSSMetaPath(id))
}

// Project returns the stylesheet to show for the document at htmlPath.
// text is the document content as the editor sees it; nil reads it from
// disk. A document linking one tracked stylesheet projects to that file.
// Several stylesheets are merged into the projection folder. Untracked or
// stale stylesheets trigger a reconciliation pass first.
func (s *Session) Project(ctx context.Context, htmlPath string, text []byte) (Projection, error) {
	rootPath, err := s.WorkspaceFor(htmlPath)
	if err != nil {
		return Projection{}, err
	}
	r, err := s.lookup(rootPath)
	if err != nil {
		return Projection{}, err
	}
	abs, _ := filepath.Abs(htmlPath)
	rec := r.rec

	r.mu.Lock()
	defer r.mu.Unlock()

	if text == nil {
		if text, err = rec.store.Read(abs); err != nil {
			return Projection{}, err
		}
	}
	paths, linkErr := htmldoc.StylesheetPaths(abs, rec.layout.Root, text)
	if linkErr != nil {
		s.logger.Warn("project: unresolved stylesheet links",
			slog.String("path", abs), slog.String("error", linkErr.Error()))
	}
	if len(paths) == 0 {
		return Projection{}, fmt.Errorf("%s: %w", abs, apperr.ErrNoStylesheets)
	}

	sheets, fresh := s.linkedSheets(rec, paths)
	if !fresh {
		rep, err := rec.Initialize(ctx)
		if err != nil {
			return Projection{}, err
		}
		s.emit("reconciled", rep.Root, rep.Root)
		sheets, _ = s.linkedSheets(rec, paths)
	}

	switch len(sheets) {
	case 0:
		return Projection{}, fmt.Errorf("%s: no tracked stylesheet: %w", abs, apperr.ErrNoStylesheets)
	case 1:
		return Projection{Path: sheets[0].AbsolutePath}, nil
	}

	target, err := rec.layout.VirtualPath(abs)
	if err != nil {
		return Projection{}, err
	}
	file := merge.GenerateFormattedFile(target, sheets, rec.layout.IsShared)
	css := file.ToCSSString()
	if err := rec.store.Write(target, []byte(css)); err != nil {
		return Projection{}, err
	}
	s.logger.Debug("project: merged stylesheets",
		slog.String("document", abs),
		slog.String("path", target),
		slog.Int("sheets", len(sheets)))
	s.emit("projected", rec.layout.Root, target)
	return Projection{Path: target, File: file, CSS: css}, nil
}

// linkedSheets loads the records of the stylesheets at paths that exist on
// disk. fresh is false when one of them is untracked or stale.
func (s *Session) linkedSheets(rec *Reconciler, paths []string) ([]metadata.CSSMetaData, bool) {
	index, err := openIndex(rec)
	if err != nil {
		return nil, false
	}
	fresh := true
	seen := make(map[int]struct{}, len(paths))
	var out []metadata.CSSMetaData
	for _, p := range paths {
		info, err := rec.store.Stat(p)
		if err != nil {
			s.logger.Debug("project: linked stylesheet missing", slog.String("path", p))
			continue
		}
		id, ok := index.CSSFileID(p)
		if !ok {
			fresh = false
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		m, err := metadata.LoadCSSMetaData(rec.store, rec.layout.CSSMetaPath(id))
		if err != nil {
			fresh = false
			continue
		}
		if metadata.IsStale(info.ModTime(), m.LastUpdated) {
			fresh = false
		}
		seen[id] = struct{}{}
		out = append(out, *m)
	}
	return out, fresh
}
