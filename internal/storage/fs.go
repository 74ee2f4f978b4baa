package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/bhc/internal/apperr"
)

// DefaultIgnoreDirs are directory names Walk never descends into.
var DefaultIgnoreDirs = []string{".git", "node_modules"}

// FS implements Provider backed by the local file system.
type FS struct {
	root   string // absolute path to workspace directory
	ignore map[string]struct{}
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist. ignoreDirs replaces DefaultIgnoreDirs
// when non-nil.
func NewFS(root string, ignoreDirs []string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, apperr.IO("stat root", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs
	}
	ignore := make(map[string]struct{}, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignore[d] = struct{}{}
	}
	return &FS{root: abs, ignore: ignore}, nil
}

// Root returns the absolute workspace root.
func (f *FS) Root() string { return f.root }

// safePath resolves path against the workspace root and rejects any result
// that escapes it.
func (f *FS) safePath(path string) (string, error) {
	if path == "" {
		return f.root, nil
	}
	abs := filepath.Clean(path)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(f.root, abs)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes workspace root: %s", path)
	}
	return abs, nil
}

// Walk visits every regular file under the root.
func (f *FS) Walk(fn WalkFunc) error {
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if _, skip := f.ignore[d.Name()]; skip && p != f.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(p, info)
	})
	if err != nil {
		return apperr.IO("walk", f.root, err)
	}
	return nil
}

// Read returns the raw bytes of a workspace file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, apperr.IO("read", abs, err)
	}
	return data, nil
}

// Stat returns file info for a workspace file.
func (f *FS) Stat(path string) (fs.FileInfo, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, apperr.IO("stat", abs, err)
	}
	return info, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.IO("mkdir", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".bhc-tmp-*")
	if err != nil {
		return apperr.IO("create temp", dir, err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return apperr.IO("write", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return apperr.IO("fsync", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.IO("close", tmpName, err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return apperr.IO("rename", abs, err)
	}
	success = true
	return nil
}
