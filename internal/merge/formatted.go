package merge

import (
	"sort"
	"strings"

	"github.com/starford/bhc/internal/metadata"
	"github.com/starford/bhc/internal/stylesheet"
)

// IncludedFile records one stylesheet that contributed to a projection.
type IncludedFile struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	IsShared bool   `json:"is_shared"`
}

// OwnedAttribute is an attribute tagged with the id of the file declaring it.
type OwnedAttribute struct {
	stylesheet.Attribute
	Owner int `json:"owner"`
}

// FormattedStyle is a merged rule. Owner is set only when every attribute
// comes from the same file.
type FormattedStyle struct {
	Tag        string           `json:"tag"`
	Owner      *int             `json:"owner,omitempty"`
	Attributes []OwnedAttribute `json:"attributes"`
}

// LineInformation maps a 1-based line of the rendered text to its owner.
type LineInformation struct {
	LineNumber int  `json:"line_number"`
	Owner      *int `json:"owner,omitempty"`
}

// FormattedCSSFile is a merged projection of several stylesheets with
// per-line ownership. It is derived on demand and never persisted as JSON.
type FormattedCSSFile struct {
	AbsolutePath  string            `json:"absolute_path"`
	IncludedFiles []IncludedFile    `json:"included_files"`
	Styles        []FormattedStyle  `json:"styles"`
	Lines         []LineInformation `json:"lines"`
}

// GenerateFormattedFile merges files like MergeCSSMetaData while tracking
// which file declared each attribute. isShared classifies included files.
func GenerateFormattedFile(absolutePath string, files []metadata.CSSMetaData, isShared func(path string) bool) *FormattedCSSFile {
	f := &FormattedCSSFile{AbsolutePath: absolutePath, IncludedFiles: []IncludedFile{}}

	type bucket struct {
		attrs        []OwnedAttribute
		contributors map[int]struct{}
	}
	buckets := map[string]*bucket{}
	for _, rec := range ordered(files) {
		shared := isShared != nil && isShared(rec.AbsolutePath)
		f.IncludedFiles = append(f.IncludedFiles, IncludedFile{ID: rec.ID, FileName: rec.FileName, IsShared: shared})
		for _, s := range rec.Styles {
			b, ok := buckets[s.Tag]
			if !ok {
				b = &bucket{contributors: map[int]struct{}{}}
				buckets[s.Tag] = b
			}
			b.contributors[rec.ID] = struct{}{}
			for _, a := range s.Attributes {
				b.attrs = append(b.attrs, OwnedAttribute{Attribute: a.Clone(), Owner: rec.ID})
			}
		}
	}

	f.Styles = make([]FormattedStyle, 0, len(buckets))
	for tag, b := range buckets {
		sortOwned(b.attrs)
		f.Styles = append(f.Styles, FormattedStyle{Tag: tag, Owner: styleOwner(b.attrs, b.contributors), Attributes: b.attrs})
	}
	sortFormatted(f.Styles)
	f.UpdateLines()
	return f
}

func sortOwned(attrs []OwnedAttribute) {
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
}

func sortFormatted(styles []FormattedStyle) {
	sort.SliceStable(styles, func(i, j int) bool { return styles[i].Tag < styles[j].Tag })
}

func styleOwner(attrs []OwnedAttribute, contributors map[int]struct{}) *int {
	if len(attrs) == 0 {
		if len(contributors) != 1 {
			return nil
		}
		for id := range contributors {
			return &id
		}
		return nil
	}
	owner := attrs[0].Owner
	for _, a := range attrs[1:] {
		if a.Owner != owner {
			return nil
		}
	}
	return &owner
}

// walk emits every rendered line with its owner. ToCSSString and
// UpdateLines both go through it so text and line map cannot drift apart.
func (f *FormattedCSSFile) walk(emit func(line string, owner *int)) {
	var b strings.Builder
	for _, s := range f.Styles {
		b.Reset()
		writeOpen(&b, s.Tag)
		emit(b.String(), s.Owner)
		for _, a := range s.Attributes {
			owner := a.Owner
			for _, v := range a.Values {
				b.Reset()
				writeDeclaration(&b, a.Name, v)
				emit(b.String(), &owner)
			}
		}
		b.Reset()
		writeClose(&b)
		emit(b.String(), s.Owner)
	}
}

// ToCSSString renders the projection as CSS text.
func (f *FormattedCSSFile) ToCSSString() string {
	var b strings.Builder
	f.walk(func(line string, _ *int) { b.WriteString(line) })
	return b.String()
}

// UpdateLines rebuilds Lines from the current styles.
func (f *FormattedCSSFile) UpdateLines() {
	f.Lines = f.Lines[:0]
	n := 0
	f.walk(func(_ string, owner *int) {
		n++
		var o *int
		if owner != nil {
			v := *owner
			o = &v
		}
		f.Lines = append(f.Lines, LineInformation{LineNumber: n, Owner: o})
	})
}
