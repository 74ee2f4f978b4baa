// Package workspace keeps the metadata tree of each workspace consistent
// with the HTML documents and stylesheets on disk.
package workspace

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/bhc/internal/metadata"
	"github.com/starford/bhc/internal/storage"
)

// sourceFile is a discovered .css or .html file.
type sourceFile struct {
	Path    string
	ModTime time.Time
}

// groupedFiles is the result of classifying every file of a workspace.
type groupedFiles struct {
	CSS       []sourceFile
	HTML      []sourceFile
	Index     string
	CSSMeta   []string
	HTMLMeta  []string
	webAssets int
}

// IsStylesheet reports whether path names a CSS file.
func IsStylesheet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".css")
}

// IsDocument reports whether path names an HTML file.
func IsDocument(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".html")
}

// isRecordFile reports whether path is named like a record, "<id>.json".
func isRecordFile(path string) bool {
	if filepath.Ext(path) != ".json" {
		return false
	}
	_, ok := metadata.IDFromFileName(path)
	return ok
}

// classify walks store in lexical order. Everything under the projection
// folder is left out so generated files never feed back into a pass.
// Stylesheets under the shared folder are classified like any other. Files
// in the record folders not named "<id>.json" are ignored.
func classify(store storage.Provider, layout metadata.Layout) (*groupedFiles, error) {
	g := &groupedFiles{}
	err := store.Walk(func(path string, info fs.FileInfo) error {
		if layout.IsVirtual(path) {
			return nil
		}
		switch {
		case path == layout.IndexPath():
			g.Index = path
		case filepath.Dir(path) == layout.CSSMetaDir() && isRecordFile(path):
			g.CSSMeta = append(g.CSSMeta, path)
		case filepath.Dir(path) == layout.HTMLMetaDir() && isRecordFile(path):
			g.HTMLMeta = append(g.HTMLMeta, path)
		case IsStylesheet(path):
			if layout.IsShared(path) || !strings.HasPrefix(path, layout.Dir()+string(filepath.Separator)) {
				g.CSS = append(g.CSS, sourceFile{Path: path, ModTime: info.ModTime()})
				g.webAssets++
			}
		case IsDocument(path):
			if !strings.HasPrefix(path, layout.Dir()+string(filepath.Separator)) {
				g.HTML = append(g.HTML, sourceFile{Path: path, ModTime: info.ModTime()})
				g.webAssets++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
