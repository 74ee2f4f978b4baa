// Package metadata persists per-file and workspace-wide records describing
// the HTML documents and stylesheets of a workspace.
package metadata

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Reserved directory names under a workspace root.
const (
	DirName     = ".bhc"
	MetaDirName = ".meta"
	SharedName  = ".shared"
	VirtualName = ".virtual"
	IndexName   = "meta.json"
	CSSDirName  = "css"
	HTMLDirName = "html"
)

// Layout locates the metadata tree of one workspace.
type Layout struct {
	Root string
}

// NewLayout returns the layout for the workspace at root.
func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

func (l Layout) Dir() string         { return filepath.Join(l.Root, DirName) }
func (l Layout) MetaDir() string     { return filepath.Join(l.Dir(), MetaDirName) }
func (l Layout) IndexPath() string   { return filepath.Join(l.MetaDir(), IndexName) }
func (l Layout) CSSMetaDir() string  { return filepath.Join(l.MetaDir(), CSSDirName) }
func (l Layout) HTMLMetaDir() string { return filepath.Join(l.MetaDir(), HTMLDirName) }
func (l Layout) SharedDir() string   { return filepath.Join(l.Dir(), SharedName) }
func (l Layout) VirtualDir() string  { return filepath.Join(l.Dir(), VirtualName) }

// CSSMetaPath is the record file for the stylesheet with the given id.
func (l Layout) CSSMetaPath(id int) string {
	return filepath.Join(l.CSSMetaDir(), JSONFileName(id))
}

// HTMLMetaPath is the record file for the document with the given id.
func (l Layout) HTMLMetaPath(id int) string {
	return filepath.Join(l.HTMLMetaDir(), JSONFileName(id))
}

// IsShared reports whether path lies under the shared stylesheet folder.
func (l Layout) IsShared(path string) bool {
	return within(l.SharedDir(), path)
}

// IsVirtual reports whether path lies under the generated projection folder.
func (l Layout) IsVirtual(path string) bool {
	return within(l.VirtualDir(), path)
}

// Contains reports whether path lies inside the workspace.
func (l Layout) Contains(path string) bool {
	return within(l.Root, path)
}

// VirtualPath mirrors htmlPath into the projection folder with a .css
// extension.
func (l Layout) VirtualPath(htmlPath string) (string, error) {
	rel, err := filepath.Rel(l.Root, htmlPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("metadata: %s is outside workspace %s", htmlPath, l.Root)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ".css"
	return filepath.Join(l.VirtualDir(), rel), nil
}

// JSONFileName returns "<id>.json".
func JSONFileName(id int) string {
	return strconv.Itoa(id) + ".json"
}

// IDFromFileName parses a record file name back into its id.
func IDFromFileName(name string) (int, bool) {
	base := strings.TrimSuffix(filepath.Base(name), ".json")
	id, err := strconv.Atoi(base)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func within(dir, path string) bool {
	p := filepath.Clean(path)
	return p == dir || strings.HasPrefix(p, dir+string(filepath.Separator))
}
