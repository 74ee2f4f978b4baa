// Package stylesheet parses CSS text into the style model used by the
// metadata store and merge engine.
package stylesheet

import "sort"

// Attribute is one declared property inside a rule. Values holds every
// declaration of the property in source order; the last one wins when
// rendered by a browser.
type Attribute struct {
	Name          string   `json:"name"`
	Values        []string `json:"values"`
	Source        *int     `json:"source,omitempty"`
	IsOverwritten *bool    `json:"is_overwritten,omitempty"`
}

// UpdateOrInsert replaces a's values with other's. Provenance fields are
// only taken from other when it carries them.
func (a *Attribute) UpdateOrInsert(other Attribute) {
	a.Values = append([]string(nil), other.Values...)
	if other.Source != nil {
		v := *other.Source
		a.Source = &v
	}
	if other.IsOverwritten != nil {
		v := *other.IsOverwritten
		a.IsOverwritten = &v
	}
}

// Clone returns a deep copy of a.
func (a Attribute) Clone() Attribute {
	out := Attribute{Name: a.Name, Values: append([]string(nil), a.Values...)}
	if a.Source != nil {
		v := *a.Source
		out.Source = &v
	}
	if a.IsOverwritten != nil {
		v := *a.IsOverwritten
		out.IsOverwritten = &v
	}
	return out
}

// Style is a rule: a selector and its declarations.
type Style struct {
	Tag        string      `json:"tag"`
	Attributes []Attribute `json:"attributes"`
}

// Clone returns a deep copy of s.
func (s Style) Clone() Style {
	out := Style{Tag: s.Tag, Attributes: make([]Attribute, len(s.Attributes))}
	for i, a := range s.Attributes {
		out.Attributes[i] = a.Clone()
	}
	return out
}

// UpdateAttributes merges attrs into s by name. Incoming declarations of the
// same name are folded together first, then each replaces the stored
// attribute of that name or is appended. The result is unique by name and
// sorted by name.
func (s *Style) UpdateAttributes(attrs []Attribute) {
	out := make([]Attribute, 0, len(s.Attributes)+len(attrs))
	pos := make(map[string]int, len(s.Attributes))
	for _, a := range s.Attributes {
		if i, ok := pos[a.Name]; ok {
			out[i].Values = append(out[i].Values, a.Values...)
			continue
		}
		pos[a.Name] = len(out)
		out = append(out, a.Clone())
	}
	for _, a := range CollapseAttributes(attrs) {
		if i, ok := pos[a.Name]; ok {
			out[i].UpdateOrInsert(a)
			continue
		}
		pos[a.Name] = len(out)
		out = append(out, a)
	}
	SortAttributes(out)
	s.Attributes = out
}

// ReplaceAttributes swaps the attribute list wholesale.
func (s *Style) ReplaceAttributes(attrs []Attribute) {
	out := make([]Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = a.Clone()
	}
	s.Attributes = out
}

// CollapseAttributes folds attributes sharing a name into one entry whose
// values are concatenated in input order. The last non-nil provenance wins.
// Output keeps first-occurrence order.
func CollapseAttributes(attrs []Attribute) []Attribute {
	out := make([]Attribute, 0, len(attrs))
	pos := make(map[string]int, len(attrs))
	for _, a := range attrs {
		i, ok := pos[a.Name]
		if !ok {
			pos[a.Name] = len(out)
			out = append(out, a.Clone())
			continue
		}
		out[i].Values = append(out[i].Values, a.Values...)
		if a.Source != nil {
			v := *a.Source
			out[i].Source = &v
		}
		if a.IsOverwritten != nil {
			v := *a.IsOverwritten
			out[i].IsOverwritten = &v
		}
	}
	return out
}

// SortAttributes orders attrs by name, keeping equal names in input order.
func SortAttributes(attrs []Attribute) {
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
}

// SortStyles orders styles by tag, keeping equal tags in input order.
func SortStyles(styles []Style) {
	sort.SliceStable(styles, func(i, j int) bool { return styles[i].Tag < styles[j].Tag })
}

// File references a tracked stylesheet.
type File struct {
	ID           int    `json:"id"`
	FileName     string `json:"file_name"`
	AbsolutePath string `json:"absolute_path"`
}
