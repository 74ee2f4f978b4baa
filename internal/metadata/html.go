package metadata

import (
	"errors"
	"path/filepath"

	"github.com/starford/bhc/internal/htmldoc"
	"github.com/starford/bhc/internal/storage"
	"github.com/starford/bhc/internal/stylesheet"
)

// HTMLMetaData is the persisted record of one HTML document.
type HTMLMetaData struct {
	ID           int               `json:"id"`
	FileName     string            `json:"file_name"`
	AbsolutePath string            `json:"absolute_path"`
	LastUpdated  UnixTime          `json:"last_updated"`
	CSSSheets    []stylesheet.File `json:"css_sheets,omitempty"`
}

// UnresolvedLinksError lists the <link> targets of Document that could not
// be resolved. Functions returning it still return a usable result.
type UnresolvedLinksError struct {
	Document string
	Err      error
}

func (e *UnresolvedLinksError) Error() string {
	return "unresolved stylesheet links in " + e.Document + ": " + e.Err.Error()
}

func (e *UnresolvedLinksError) Unwrap() error { return e.Err }

// IsPartial reports whether err only describes unresolved links, leaving
// the accompanying result valid.
func IsPartial(err error) bool {
	var u *UnresolvedLinksError
	return errors.As(err, &u)
}

// CreateHTMLMetaData reads the document at filePath, resolves its linked
// stylesheets against index and writes a new record to metadataPath.
func CreateHTMLMetaData(store storage.Provider, metadataPath, filePath string, id int, index *WorkspaceMetaData) (*HTMLMetaData, error) {
	m := &HTMLMetaData{
		ID:           id,
		FileName:     filepath.Base(filePath),
		AbsolutePath: filePath,
		LastUpdated:  Now(),
	}
	linkErr := m.resolveSheets(store, index)
	if linkErr != nil && !IsPartial(linkErr) {
		return nil, linkErr
	}
	if err := writeJSON(store, metadataPath, m); err != nil {
		return nil, err
	}
	return m, linkErr
}

// LoadHTMLMetaData reads the record at metadataPath.
func LoadHTMLMetaData(store storage.Provider, metadataPath string) (*HTMLMetaData, error) {
	var m HTMLMetaData
	if err := readJSON(store, metadataPath, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the record to metadataPath.
func (m *HTMLMetaData) Save(store storage.Provider, metadataPath string) error {
	return writeJSON(store, metadataPath, m)
}

// UpdateMetadata recomputes the linked stylesheets and writes the record
// back with a fresh timestamp.
func (m *HTMLMetaData) UpdateMetadata(store storage.Provider, metadataPath string, index *WorkspaceMetaData, layout Layout) (WorkspaceHTMLFile, error) {
	summary, linkErr := m.UpdateCSSSheets(store, index, layout)
	if linkErr != nil && !IsPartial(linkErr) {
		return WorkspaceHTMLFile{}, linkErr
	}
	m.LastUpdated = Now()
	if err := m.Save(store, metadataPath); err != nil {
		return WorkspaceHTMLFile{}, err
	}
	return summary, linkErr
}

// UpdateCSSSheets re-reads the document's <link> tags and replaces CSSSheets
// with the linked stylesheets that index tracks, in link order.
func (m *HTMLMetaData) UpdateCSSSheets(store storage.Provider, index *WorkspaceMetaData, layout Layout) (WorkspaceHTMLFile, error) {
	err := m.resolveSheets(store, index)
	if err != nil && !IsPartial(err) {
		return WorkspaceHTMLFile{}, err
	}
	return m.Summary(layout), err
}

func (m *HTMLMetaData) resolveSheets(store storage.Provider, index *WorkspaceMetaData) error {
	content, err := store.Read(m.AbsolutePath)
	if err != nil {
		return err
	}
	paths, linkErr := htmldoc.StylesheetPaths(m.AbsolutePath, store.Root(), content)

	m.CSSSheets = nil
	seen := map[int]struct{}{}
	for _, p := range paths {
		f, ok := index.CSSFileByPath(p)
		if !ok {
			continue
		}
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		m.CSSSheets = append(m.CSSSheets, stylesheet.File{ID: f.ID, FileName: f.FileName, AbsolutePath: f.AbsolutePath})
	}
	if linkErr != nil {
		return &UnresolvedLinksError{Document: m.AbsolutePath, Err: linkErr}
	}
	return nil
}

// Summary returns the workspace index entry for the record.
func (m *HTMLMetaData) Summary(layout Layout) WorkspaceHTMLFile {
	f := WorkspaceHTMLFile{
		ID:           m.ID,
		FileName:     m.FileName,
		AbsolutePath: m.AbsolutePath,
		IsShared:     layout.IsShared(m.AbsolutePath),
	}
	for _, s := range m.CSSSheets {
		f.CSSFiles = append(f.CSSFiles, s.ID)
	}
	return f
}
