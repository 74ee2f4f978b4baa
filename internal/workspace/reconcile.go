package workspace

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/starford/bhc/internal/metadata"
	"github.com/starford/bhc/internal/storage"
	"github.com/starford/bhc/internal/stylesheet"
)

// Report summarizes one reconciliation pass.
type Report struct {
	Root          string   `json:"root"`
	Skipped       bool     `json:"skipped,omitempty"`
	CSSCreated    int      `json:"css_created"`
	CSSUpdated    int      `json:"css_updated"`
	CSSUnchanged  int      `json:"css_unchanged"`
	HTMLCreated   int      `json:"html_created"`
	HTMLUpdated   int      `json:"html_updated"`
	HTMLUnchanged int      `json:"html_unchanged"`
	Errors        []string `json:"errors,omitempty"`

	// Err combines every per-file failure of the pass.
	Err error `json:"-"`
}

func (r *Report) fail(logger *slog.Logger, msg, path string, err error) {
	logger.Warn(msg, slog.String("path", path), slog.String("error", err.Error()))
	r.Err = multierr.Append(r.Err, err)
	r.Errors = append(r.Errors, err.Error())
}

// Reconciler runs reconciliation passes over one workspace.
type Reconciler struct {
	store  storage.Provider
	layout metadata.Layout
	parse  metadata.ParseFunc
	logger *slog.Logger
}

// NewReconciler returns a reconciler for the workspace rooted at
// store.Root(). A nil parse uses the stylesheet parser directly and logs
// its diagnostics at debug.
func NewReconciler(store storage.Provider, parse metadata.ParseFunc, logger *slog.Logger) *Reconciler {
	if parse == nil {
		parse = parseLogged(logger)
	}
	return &Reconciler{
		store:  store,
		layout: metadata.NewLayout(store.Root()),
		parse:  parse,
		logger: logger,
	}
}

func parseLogged(logger *slog.Logger) metadata.ParseFunc {
	return func(path string, content []byte) []stylesheet.Style {
		res := stylesheet.Parse(content)
		for _, d := range res.Diagnostics {
			logger.Debug("css: skipped construct",
				slog.String("path", path),
				slog.Int("line", d.Line),
				slog.String("detail", d.Message))
		}
		return res.Styles
	}
}

// Layout returns the metadata layout of the workspace.
func (r *Reconciler) Layout() metadata.Layout { return r.layout }

// InitializeWorkspace runs a single pass over the workspace at root.
func InitializeWorkspace(ctx context.Context, root string, parse metadata.ParseFunc, logger *slog.Logger) (Report, error) {
	store, err := storage.NewFS(root, nil)
	if err != nil {
		return Report{Root: root}, err
	}
	return NewReconciler(store, parse, logger).Initialize(ctx)
}

// Initialize brings the metadata tree in line with the workspace files.
// Stylesheets are processed before documents so that documents resolve
// against a complete set of stylesheet ids. Failures of single files are
// logged and collected in the report; only enumeration, loading the index
// and writing it back abort the pass. Running it twice over an unchanged
// workspace changes nothing but timestamps.
func (r *Reconciler) Initialize(ctx context.Context) (Report, error) {
	rep := Report{Root: r.layout.Root}

	files, err := classify(r.store, r.layout)
	if err != nil {
		return rep, fmt.Errorf("workspace: enumerate %s: %w", r.layout.Root, err)
	}
	if files.webAssets == 0 {
		r.logger.Debug("reconcile: no web assets", slog.String("root", r.layout.Root))
		rep.Skipped = true
		return rep, nil
	}

	index, err := metadata.LoadOrCreateWorkspaceMetaData(r.store, r.layout)
	if err != nil {
		return rep, fmt.Errorf("workspace: load index: %w", err)
	}

	cssRecords := r.loadCSSRecords(files.CSSMeta, &rep)
	htmlRecords := r.loadHTMLRecords(files.HTMLMeta, &rep)

	if err := r.reconcileCSS(ctx, index, files.CSS, cssRecords, &rep); err != nil {
		return rep, err
	}
	seen, err := r.reconcileHTML(ctx, index, files.HTML, htmlRecords, &rep)
	if err != nil {
		return rep, err
	}

	for i := range index.HTMLFiles {
		f := &index.HTMLFiles[i]
		if _, ok := seen[f.AbsolutePath]; !ok {
			continue
		}
		if err := f.Update(r.store, index, r.layout); err != nil {
			if metadata.IsPartial(err) {
				r.logger.Debug("reconcile: links still unresolved", slog.String("path", f.AbsolutePath))
				continue
			}
			rep.fail(r.logger, "reconcile: cross-reference failed", f.AbsolutePath, err)
		}
	}
	index.LinkReciprocals()

	index.LastUpdated = metadata.Now()
	if err := index.Save(r.store, r.layout); err != nil {
		return rep, fmt.Errorf("workspace: save index: %w", err)
	}

	r.logger.Info("reconcile: done",
		slog.String("root", r.layout.Root),
		slog.Int("css", len(index.CSSFiles)),
		slog.Int("html", len(index.HTMLFiles)),
		slog.Int("errors", len(rep.Errors)))
	return rep, nil
}

func (r *Reconciler) reconcileCSS(ctx context.Context, index *metadata.WorkspaceMetaData, files []sourceFile, records map[string]*metadata.CSSMetaData, rep *Report) error {
	claimed, recordIDs := recordIDSet(records, func(m *metadata.CSSMetaData) int { return m.ID })
	nextID := func() int { return index.NextAvailableCSSID(recordIDs...) }

	var untracked []sourceFile
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, ok := records[f.Path]
		if !ok {
			untracked = append(untracked, f)
			continue
		}
		if !metadata.IsStale(f.ModTime, rec.LastUpdated) {
			index.UpsertCSSFile(rec.Summary(r.layout))
			rep.CSSUnchanged++
			continue
		}
		summary, err := rec.UpdateMetadata(r.store, r.layout.CSSMetaPath(rec.ID), r.layout, r.parse)
		if err != nil {
			rep.fail(r.logger, "reconcile: css update failed", f.Path, err)
			continue
		}
		index.UpsertCSSFile(summary)
		rep.CSSUpdated++
		r.logger.Debug("reconcile: css updated", slog.String("path", f.Path), slog.Int("id", rec.ID))
	}

	for _, f := range untracked {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := reuseOrNext(index.CSSFileID, f.Path, claimed, nextID)
		rec, err := metadata.CreateCSSMetaData(r.store, r.layout.CSSMetaPath(id), f.Path, id, r.parse)
		if err != nil {
			rep.fail(r.logger, "reconcile: css create failed", f.Path, err)
			continue
		}
		index.UpsertCSSFile(rec.Summary(r.layout))
		rep.CSSCreated++
		r.logger.Debug("reconcile: css tracked", slog.String("path", f.Path), slog.Int("id", id))
	}
	return nil
}

func (r *Reconciler) reconcileHTML(ctx context.Context, index *metadata.WorkspaceMetaData, files []sourceFile, records map[string]*metadata.HTMLMetaData, rep *Report) (map[string]struct{}, error) {
	claimed, recordIDs := recordIDSet(records, func(m *metadata.HTMLMetaData) int { return m.ID })
	nextID := func() int { return index.NextAvailableHTMLID(recordIDs...) }
	htmlFileID := func(path string) (int, bool) {
		f, ok := index.HTMLFileByPath(path)
		return f.ID, ok
	}

	seen := make(map[string]struct{}, len(files))
	var untracked []sourceFile
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, ok := records[f.Path]
		if !ok {
			untracked = append(untracked, f)
			continue
		}
		if !metadata.IsStale(f.ModTime, rec.LastUpdated) {
			index.UpsertHTMLFile(rec.Summary(r.layout))
			seen[f.Path] = struct{}{}
			rep.HTMLUnchanged++
			continue
		}
		summary, err := rec.UpdateMetadata(r.store, r.layout.HTMLMetaPath(rec.ID), index, r.layout)
		if err != nil && !metadata.IsPartial(err) {
			rep.fail(r.logger, "reconcile: html update failed", f.Path, err)
			continue
		}
		if err != nil {
			rep.fail(r.logger, "reconcile: unresolved stylesheet links", f.Path, err)
		}
		index.UpsertHTMLFile(summary)
		seen[f.Path] = struct{}{}
		rep.HTMLUpdated++
	}

	for _, f := range untracked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := reuseOrNext(htmlFileID, f.Path, claimed, nextID)
		rec, err := metadata.CreateHTMLMetaData(r.store, r.layout.HTMLMetaPath(id), f.Path, id, index)
		if err != nil && !metadata.IsPartial(err) {
			rep.fail(r.logger, "reconcile: html create failed", f.Path, err)
			continue
		}
		if err != nil {
			rep.fail(r.logger, "reconcile: unresolved stylesheet links", f.Path, err)
		}
		index.UpsertHTMLFile(rec.Summary(r.layout))
		seen[f.Path] = struct{}{}
		rep.HTMLCreated++
		r.logger.Debug("reconcile: html tracked", slog.String("path", f.Path), slog.Int("id", id))
	}
	return seen, nil
}

// reuseOrNext keeps the id the index already gives path when no record file
// claims it; otherwise it takes next, the smallest id unused by the index
// and the record files.
func reuseOrNext(lookup func(string) (int, bool), path string, claimed map[int]struct{}, next func() int) int {
	if id, ok := lookup(path); ok {
		if _, taken := claimed[id]; !taken {
			return id
		}
	}
	return next()
}

// recordIDSet collects the ids of the record files found on disk.
func recordIDSet[M any](records map[string]M, id func(M) int) (map[int]struct{}, []int) {
	set := make(map[int]struct{}, len(records))
	ids := make([]int, 0, len(records))
	for _, rec := range records {
		set[id(rec)] = struct{}{}
		ids = append(ids, id(rec))
	}
	return set, ids
}

func (r *Reconciler) loadCSSRecords(paths []string, rep *Report) map[string]*metadata.CSSMetaData {
	out := make(map[string]*metadata.CSSMetaData, len(paths))
	for _, p := range paths {
		rec, err := metadata.LoadCSSMetaData(r.store, p)
		if err != nil {
			rep.fail(r.logger, "reconcile: unreadable css record", p, err)
			continue
		}
		if prev, ok := out[rec.AbsolutePath]; ok {
			r.logger.Warn("reconcile: duplicate css record",
				slog.String("path", rec.AbsolutePath),
				slog.Int("kept", min(prev.ID, rec.ID)),
				slog.Int("ignored", max(prev.ID, rec.ID)))
			if prev.ID < rec.ID {
				continue
			}
		}
		out[rec.AbsolutePath] = rec
	}
	return out
}

func (r *Reconciler) loadHTMLRecords(paths []string, rep *Report) map[string]*metadata.HTMLMetaData {
	out := make(map[string]*metadata.HTMLMetaData, len(paths))
	for _, p := range paths {
		rec, err := metadata.LoadHTMLMetaData(r.store, p)
		if err != nil {
			rep.fail(r.logger, "reconcile: unreadable html record", p, err)
			continue
		}
		if prev, ok := out[rec.AbsolutePath]; ok {
			r.logger.Warn("reconcile: duplicate html record",
				slog.String("path", rec.AbsolutePath),
				slog.Int("kept", min(prev.ID, rec.ID)),
				slog.Int("ignored", max(prev.ID, rec.ID)))
			if prev.ID < rec.ID {
				continue
			}
		}
		out[rec.AbsolutePath] = rec
	}
	return out
}
