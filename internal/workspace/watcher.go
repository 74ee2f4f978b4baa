package workspace

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/bhc/internal/metadata"
	"github.com/starford/bhc/internal/storage"
)

// DefaultDebounce is the quiet period before a watcher-driven pass.
const DefaultDebounce = 300 * time.Millisecond

// FileEventCallback is called for every stylesheet or document change the
// watcher sees. kind is one of "created", "updated", "deleted".
type FileEventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the registered workspace at rootPath
// and reconciles it once changes to .css or .html files settle for
// debounce. Ignored directories and the record and projection folders under
// .bhc are not watched; the shared stylesheet folder is. It blocks until ctx
// is cancelled.
func Watch(ctx context.Context, s *Session, rootPath string, debounce time.Duration, ignoreDirs []string, logger *slog.Logger, cb FileEventCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if ignoreDirs == nil {
		ignoreDirs = storage.DefaultIgnoreDirs
	}
	ignore := make(map[string]struct{}, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignore[d] = struct{}{}
	}
	layout := metadata.NewLayout(rootPath)
	generated := map[string]struct{}{
		layout.MetaDir():    {},
		layout.VirtualDir(): {},
	}
	skip := func(path, name string) bool {
		if _, ok := ignore[name]; ok {
			return true
		}
		_, ok := generated[path]
		return ok
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, rootPath, skip); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", rootPath))

	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped", slog.String("root", rootPath))
			return nil

		case <-timerCh:
			if _, err := s.Reconcile(ctx, rootPath); err != nil {
				logger.Warn("watcher: reconcile failed",
					slog.String("root", rootPath),
					slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			path := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
					if skip(path, info.Name()) {
						continue
					}
					if addErr := addDirsRecursive(w, path, skip); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", path),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", path))
					}
					schedule()
					continue
				}
			}

			if !IsStylesheet(path) && !IsDocument(path) {
				continue
			}
			if layout.IsVirtual(path) {
				continue
			}

			var kind string
			switch {
			case ev.Op&fsnotify.Create != 0:
				kind = "created"
			case ev.Op&fsnotify.Write != 0:
				kind = "updated"
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				kind = "deleted"
			default:
				continue
			}
			logger.Debug("watcher: change", slog.String("path", path), slog.String("op", kind))
			if cb != nil {
				cb(kind, path)
			}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and its subdirectories to the watcher,
// pruning directories below root that skip reports.
func addDirsRecursive(w *fsnotify.Watcher, root string, skip func(path, name string) bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skip(path, d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
