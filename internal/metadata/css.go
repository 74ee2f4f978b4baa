package metadata

import (
	"path/filepath"

	"github.com/starford/bhc/internal/stylesheet"
	"github.com/starford/bhc/internal/storage"
)

// ParseFunc turns the content of the stylesheet at path into styles. It
// returns nil when the content holds no rules.
type ParseFunc func(path string, content []byte) []stylesheet.Style

// ParseStylesheet is the ParseFunc backed directly by the stylesheet parser.
func ParseStylesheet(_ string, content []byte) []stylesheet.Style {
	return stylesheet.Parse(content).Styles
}

// CSSMetaData is the persisted record of one stylesheet.
type CSSMetaData struct {
	ID             int                `json:"id"`
	FileName       string             `json:"file_name"`
	AbsolutePath   string             `json:"absolute_path"`
	LastUpdated    UnixTime           `json:"last_updated"`
	ImportedSheets []stylesheet.File  `json:"imported_sheets,omitempty"`
	Styles         []stylesheet.Style `json:"styles,omitempty"`
}

// CreateCSSMetaData parses the stylesheet at filePath and writes a new
// record with the given id to metadataPath. Rules sharing a selector are
// stored as one style.
func CreateCSSMetaData(store storage.Provider, metadataPath, filePath string, id int, parse ParseFunc) (*CSSMetaData, error) {
	if parse == nil {
		parse = ParseStylesheet
	}
	content, err := store.Read(filePath)
	if err != nil {
		return nil, err
	}
	m := &CSSMetaData{
		ID:           id,
		FileName:     filepath.Base(filePath),
		AbsolutePath: filePath,
		LastUpdated:  Now(),
		Styles:       combineStyles(parse(filePath, content)),
	}
	if err := writeJSON(store, metadataPath, m); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadCSSMetaData reads the record at metadataPath.
func LoadCSSMetaData(store storage.Provider, metadataPath string) (*CSSMetaData, error) {
	var m CSSMetaData
	if err := readJSON(store, metadataPath, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the record to metadataPath.
func (m *CSSMetaData) Save(store storage.Provider, metadataPath string) error {
	return writeJSON(store, metadataPath, m)
}

// UpdateMetadata re-parses the stylesheet, folds the result into the record
// and writes it back with a fresh timestamp. Call it only when the file is
// stale. layout decides whether the returned summary is shared.
func (m *CSSMetaData) UpdateMetadata(store storage.Provider, metadataPath string, layout Layout, parse ParseFunc) (WorkspaceCSSFile, error) {
	if parse == nil {
		parse = ParseStylesheet
	}
	content, err := store.Read(m.AbsolutePath)
	if err != nil {
		return WorkspaceCSSFile{}, err
	}
	m.UpdateStyles(parse(m.AbsolutePath, content))
	m.LastUpdated = Now()
	if err := m.Save(store, metadataPath); err != nil {
		return WorkspaceCSSFile{}, err
	}
	return m.Summary(layout), nil
}

// UpdateStyles folds freshly parsed styles into the record. Incoming styles
// sharing a tag are combined first. The first stored style whose tag
// reappears gets the new attribute list wholesale and later stored styles
// with that tag are dropped; new tags are appended. Tags missing from the
// new parse are kept. A parse with no rules clears the styles.
func (m *CSSMetaData) UpdateStyles(styles []stylesheet.Style) {
	if styles == nil {
		m.Styles = nil
		return
	}
	incoming := combineStyles(styles)
	byTag := make(map[string]int, len(incoming))
	for i, s := range incoming {
		byTag[s.Tag] = i
	}

	// TODO: prune stored tags missing from styles; they linger in
	// projections until then.
	out := make([]stylesheet.Style, 0, len(m.Styles)+len(incoming))
	replaced := make(map[string]struct{}, len(incoming))
	for _, s := range m.Styles {
		if i, ok := byTag[s.Tag]; ok {
			if _, dup := replaced[s.Tag]; dup {
				continue
			}
			s.ReplaceAttributes(incoming[i].Attributes)
			replaced[s.Tag] = struct{}{}
		}
		out = append(out, s)
	}
	for _, s := range incoming {
		if _, ok := replaced[s.Tag]; !ok {
			out = append(out, s)
		}
	}
	stylesheet.SortStyles(out)
	m.Styles = out
}

// combineStyles merges styles sharing a tag into the first of them, with
// their attributes collapsed by name and sorted. Order of first appearance
// is kept.
func combineStyles(styles []stylesheet.Style) []stylesheet.Style {
	if styles == nil {
		return nil
	}
	out := make([]stylesheet.Style, 0, len(styles))
	pos := make(map[string]int, len(styles))
	for _, s := range styles {
		i, ok := pos[s.Tag]
		if !ok {
			pos[s.Tag] = len(out)
			out = append(out, stylesheet.Style{Tag: s.Tag, Attributes: append([]stylesheet.Attribute(nil), s.Attributes...)})
			continue
		}
		out[i].Attributes = append(out[i].Attributes, s.Attributes...)
	}
	for i := range out {
		if len(out[i].Attributes) == 0 {
			continue
		}
		out[i].Attributes = stylesheet.CollapseAttributes(out[i].Attributes)
		stylesheet.SortAttributes(out[i].Attributes)
	}
	return out
}

// Summary returns the workspace index entry for the record.
func (m *CSSMetaData) Summary(layout Layout) WorkspaceCSSFile {
	return WorkspaceCSSFile{
		ID:           m.ID,
		FileName:     m.FileName,
		AbsolutePath: m.AbsolutePath,
		IsShared:     layout.IsShared(m.AbsolutePath),
	}
}

// File returns a reference to the stylesheet.
func (m *CSSMetaData) File() stylesheet.File {
	return stylesheet.File{ID: m.ID, FileName: m.FileName, AbsolutePath: m.AbsolutePath}
}
