// Package merge combines the styles of several stylesheets into one
// deterministic projection.
package merge

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/starford/bhc/internal/metadata"
	"github.com/starford/bhc/internal/stylesheet"
)

// ordered returns the records sorted by id, then path, then their encoded
// styles, so every merge sees the same input order regardless of how the
// records were gathered.
func ordered(files []metadata.CSSMetaData) []metadata.CSSMetaData {
	type keyed struct {
		rec    metadata.CSSMetaData
		styles string
	}
	ks := make([]keyed, len(files))
	for i, f := range files {
		raw, _ := json.Marshal(f.Styles)
		ks[i] = keyed{rec: f, styles: string(raw)}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		a, b := ks[i], ks[j]
		if a.rec.ID != b.rec.ID {
			return a.rec.ID < b.rec.ID
		}
		if a.rec.AbsolutePath != b.rec.AbsolutePath {
			return a.rec.AbsolutePath < b.rec.AbsolutePath
		}
		return a.styles < b.styles
	})
	out := make([]metadata.CSSMetaData, len(ks))
	for i, k := range ks {
		out[i] = k.rec
	}
	return out
}

// MergeCSSMetaData concatenates the attributes of every style sharing a tag
// across files. Attributes are sorted by name and styles by tag.
func MergeCSSMetaData(files []metadata.CSSMetaData) []stylesheet.Style {
	buckets := map[string][]stylesheet.Attribute{}
	for _, f := range ordered(files) {
		for _, s := range f.Styles {
			b := buckets[s.Tag]
			for _, a := range s.Attributes {
				b = append(b, a.Clone())
			}
			buckets[s.Tag] = b
		}
	}

	out := make([]stylesheet.Style, 0, len(buckets))
	for tag, attrs := range buckets {
		stylesheet.SortAttributes(attrs)
		out = append(out, stylesheet.Style{Tag: tag, Attributes: attrs})
	}
	stylesheet.SortStyles(out)
	return out
}

// GenerateCSSString renders the merged styles of files as CSS text, one line
// per declared value.
func GenerateCSSString(files []metadata.CSSMetaData) string {
	var b strings.Builder
	for _, s := range MergeCSSMetaData(files) {
		writeOpen(&b, s.Tag)
		for _, a := range s.Attributes {
			for _, v := range a.Values {
				writeDeclaration(&b, a.Name, v)
			}
		}
		writeClose(&b)
	}
	return b.String()
}

func writeOpen(b *strings.Builder, tag string) {
	b.WriteString(tag)
	b.WriteString(" {\n")
}

func writeDeclaration(b *strings.Builder, name, value string) {
	b.WriteString("\t")
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString(";\n")
}

func writeClose(b *strings.Builder) {
	b.WriteString("}\n")
}
