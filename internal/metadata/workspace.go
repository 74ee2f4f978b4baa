package metadata

import (
	"errors"
	"io/fs"
	"sort"

	"github.com/starford/bhc/internal/storage"
)

// WorkspaceCSSFile summarizes a tracked stylesheet in the workspace index.
type WorkspaceCSSFile struct {
	ID           int    `json:"id"`
	FileName     string `json:"file_name"`
	AbsolutePath string `json:"absolute_path"`
	IsShared     bool   `json:"is_shared"`
	HTMLFiles    []int  `json:"html_files,omitempty"`
}

// WorkspaceHTMLFile summarizes a tracked document in the workspace index.
type WorkspaceHTMLFile struct {
	ID           int    `json:"id"`
	FileName     string `json:"file_name"`
	AbsolutePath string `json:"absolute_path"`
	IsShared     bool   `json:"is_shared"`
	CSSFiles     []int  `json:"css_files,omitempty"`
}

// Update re-resolves the document's stylesheet links against index, writes
// the refreshed record and replaces f with the new summary. A missing record
// is recreated under the same id.
func (f *WorkspaceHTMLFile) Update(store storage.Provider, index *WorkspaceMetaData, layout Layout) error {
	path := layout.HTMLMetaPath(f.ID)
	rec, err := LoadHTMLMetaData(store, path)
	if errors.Is(err, fs.ErrNotExist) {
		rec, err = CreateHTMLMetaData(store, path, f.AbsolutePath, f.ID, index)
		if err != nil && !IsPartial(err) {
			return err
		}
		*f = rec.Summary(layout)
		return err
	}
	if err != nil {
		return err
	}
	summary, err := rec.UpdateMetadata(store, path, index, layout)
	if err != nil && !IsPartial(err) {
		return err
	}
	*f = summary
	return err
}

// WorkspaceMetaData is the workspace index stored in meta.json.
type WorkspaceMetaData struct {
	WorkspacePath string              `json:"workspace_path"`
	LastUpdated   UnixTime            `json:"last_updated"`
	HTMLFiles     []WorkspaceHTMLFile `json:"html_files"`
	CSSFiles      []WorkspaceCSSFile  `json:"css_files"`
}

// NewWorkspaceMetaData returns an empty index for the workspace at root.
func NewWorkspaceMetaData(root string) *WorkspaceMetaData {
	return &WorkspaceMetaData{
		WorkspacePath: root,
		LastUpdated:   Now(),
		HTMLFiles:     []WorkspaceHTMLFile{},
		CSSFiles:      []WorkspaceCSSFile{},
	}
}

// OpenWorkspaceMetaData reads the index of layout's workspace. A missing
// index yields an error matching fs.ErrNotExist.
func OpenWorkspaceMetaData(store storage.Provider, layout Layout) (*WorkspaceMetaData, error) {
	var w WorkspaceMetaData
	if err := readJSON(store, layout.IndexPath(), &w); err != nil {
		return nil, err
	}
	if w.HTMLFiles == nil {
		w.HTMLFiles = []WorkspaceHTMLFile{}
	}
	if w.CSSFiles == nil {
		w.CSSFiles = []WorkspaceCSSFile{}
	}
	return &w, nil
}

// CreateWorkspaceMetaData writes a fresh empty index for layout's workspace.
func CreateWorkspaceMetaData(store storage.Provider, layout Layout) (*WorkspaceMetaData, error) {
	w := NewWorkspaceMetaData(layout.Root)
	if err := w.Save(store, layout); err != nil {
		return nil, err
	}
	return w, nil
}

// LoadOrCreateWorkspaceMetaData opens the index, creating it when absent.
func LoadOrCreateWorkspaceMetaData(store storage.Provider, layout Layout) (*WorkspaceMetaData, error) {
	w, err := OpenWorkspaceMetaData(store, layout)
	if errors.Is(err, fs.ErrNotExist) {
		return CreateWorkspaceMetaData(store, layout)
	}
	return w, err
}

// Save writes the index with both collections ordered by id.
func (w *WorkspaceMetaData) Save(store storage.Provider, layout Layout) error {
	sort.SliceStable(w.CSSFiles, func(i, j int) bool { return w.CSSFiles[i].ID < w.CSSFiles[j].ID })
	sort.SliceStable(w.HTMLFiles, func(i, j int) bool { return w.HTMLFiles[i].ID < w.HTMLFiles[j].ID })
	return writeJSON(store, layout.IndexPath(), w)
}

// NextAvailableCSSID returns the smallest positive id unused by CSSFiles
// and not listed in reserved.
func (w *WorkspaceMetaData) NextAvailableCSSID(reserved ...int) int {
	ids := make([]int, 0, len(w.CSSFiles)+len(reserved))
	for _, f := range w.CSSFiles {
		ids = append(ids, f.ID)
	}
	return nextAvailableID(append(ids, reserved...))
}

// NextAvailableHTMLID returns the smallest positive id unused by HTMLFiles
// and not listed in reserved.
func (w *WorkspaceMetaData) NextAvailableHTMLID(reserved ...int) int {
	ids := make([]int, 0, len(w.HTMLFiles)+len(reserved))
	for _, f := range w.HTMLFiles {
		ids = append(ids, f.ID)
	}
	return nextAvailableID(append(ids, reserved...))
}

func nextAvailableID(ids []int) int {
	used := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		used[id] = struct{}{}
	}
	for id := 1; ; id++ {
		if _, ok := used[id]; !ok {
			return id
		}
	}
}

// CSSFileByPath finds the tracked stylesheet at path.
func (w *WorkspaceMetaData) CSSFileByPath(path string) (WorkspaceCSSFile, bool) {
	for _, f := range w.CSSFiles {
		if f.AbsolutePath == path {
			return f, true
		}
	}
	return WorkspaceCSSFile{}, false
}

// CSSFileID returns the id of the tracked stylesheet at path.
func (w *WorkspaceMetaData) CSSFileID(path string) (int, bool) {
	f, ok := w.CSSFileByPath(path)
	return f.ID, ok
}

// HTMLFileByPath finds the tracked document at path.
func (w *WorkspaceMetaData) HTMLFileByPath(path string) (WorkspaceHTMLFile, bool) {
	for _, f := range w.HTMLFiles {
		if f.AbsolutePath == path {
			return f, true
		}
	}
	return WorkspaceHTMLFile{}, false
}

// UpsertCSSFile replaces the entry with f's id or appends f. Reciprocal
// references of a replaced entry are kept.
func (w *WorkspaceMetaData) UpsertCSSFile(f WorkspaceCSSFile) {
	for i := range w.CSSFiles {
		if w.CSSFiles[i].ID == f.ID {
			if f.HTMLFiles == nil {
				f.HTMLFiles = w.CSSFiles[i].HTMLFiles
			}
			w.CSSFiles[i] = f
			return
		}
	}
	w.CSSFiles = append(w.CSSFiles, f)
}

// UpsertHTMLFile replaces the entry with f's id or appends f.
func (w *WorkspaceMetaData) UpsertHTMLFile(f WorkspaceHTMLFile) {
	for i := range w.HTMLFiles {
		if w.HTMLFiles[i].ID == f.ID {
			w.HTMLFiles[i] = f
			return
		}
	}
	w.HTMLFiles = append(w.HTMLFiles, f)
}

// LinkReciprocals rebuilds every stylesheet's HTMLFiles from the documents'
// CSSFiles.
func (w *WorkspaceMetaData) LinkReciprocals() {
	refs := make(map[int][]int)
	for _, h := range w.HTMLFiles {
		for _, id := range h.CSSFiles {
			refs[id] = append(refs[id], h.ID)
		}
	}
	for i := range w.CSSFiles {
		ids := refs[w.CSSFiles[i].ID]
		sort.Ints(ids)
		w.CSSFiles[i].HTMLFiles = dedupSorted(ids)
	}
}

func dedupSorted(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
