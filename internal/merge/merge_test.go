package merge

import (
	"strings"
	"testing"

	"github.com/starford/bhc/internal/metadata"
	"github.com/starford/bhc/internal/stylesheet"
)

func record(id int, name, css string) metadata.CSSMetaData {
	return metadata.CSSMetaData{
		ID:           id,
		FileName:     name,
		AbsolutePath: "/w/" + name,
		Styles:       stylesheet.ParseSheet(css),
	}
}

func TestGenerateCSSString_EndToEndProjection(t *testing.T) {
	a := record(1, "a.css", "h1{color:red;}")
	b := record(2, "b.css", "h1{font-size:10pt;} p{color:blue;}")

	want := "h1 {\n\tcolor: red;\n\tfont-size: 10pt;\n}\np {\n\tcolor: blue;\n}\n"
	if got := GenerateCSSString([]metadata.CSSMetaData{a, b}); got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestGenerateCSSString_OrderIndependent(t *testing.T) {
	a := record(1, "a.css", "h1 { color: red; margin: 0; } div { color: black; }")
	b := record(2, "b.css", "h1 { color: blue; } a { color: green; }")
	c := record(3, "c.css", "div { padding: 1px; } h1 { color: white; }")

	base := GenerateCSSString([]metadata.CSSMetaData{a, b, c})
	perms := [][]metadata.CSSMetaData{
		{a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}
	for i, p := range perms {
		if got := GenerateCSSString(p); got != base {
			t.Errorf("permutation %d differs:\n%s\nvs\n%s", i, got, base)
		}
	}
	if !strings.Contains(base, "\tcolor: red;\n\tcolor: blue;\n\tcolor: white;\n") {
		t.Errorf("values not emitted one per line in file order:\n%s", base)
	}
}

func TestGenerateCSSString_SameIDAndPathOrderIndependent(t *testing.T) {
	a := record(0, "x.css", "h1 { color: red; }")
	b := record(0, "x.css", "h1 { color: blue; }")

	ab := GenerateCSSString([]metadata.CSSMetaData{a, b})
	ba := GenerateCSSString([]metadata.CSSMetaData{b, a})
	if ab != ba {
		t.Errorf("output depends on input order:\n%q\n%q", ab, ba)
	}
	if !strings.Contains(ab, "color: blue;\n\tcolor: red;") {
		t.Errorf("got %q", ab)
	}
}

func TestMergeCSSMetaData_NoStyles(t *testing.T) {
	got := MergeCSSMetaData([]metadata.CSSMetaData{{ID: 1}})
	if len(got) != 0 {
		t.Errorf("merge of empty record = %+v", got)
	}
	if s := GenerateCSSString(nil); s != "" {
		t.Errorf("empty render = %q", s)
	}
}

func TestGenerateFormattedFile_Ownership(t *testing.T) {
	a := record(1, "a.css", "h1{color:red;} footer{margin:0;}")
	b := record(2, "b.css", "h1{font-size:10pt;} p{color:blue; color: navy;}")

	f := GenerateFormattedFile("/w/.bhc/.virtual/index.css", []metadata.CSSMetaData{b, a}, func(p string) bool {
		return p == "/w/b.css"
	})

	if len(f.IncludedFiles) != 2 || f.IncludedFiles[0].ID != 1 || !f.IncludedFiles[1].IsShared {
		t.Errorf("included = %+v", f.IncludedFiles)
	}

	owners := map[string]*int{}
	for _, s := range f.Styles {
		owners[s.Tag] = s.Owner
	}
	if owners["h1"] != nil {
		t.Errorf("h1 has two contributors, owner = %v", *owners["h1"])
	}
	if owners["p"] == nil || *owners["p"] != 2 {
		t.Errorf("p owner = %v, want 2", owners["p"])
	}
	if owners["footer"] == nil || *owners["footer"] != 1 {
		t.Errorf("footer owner = %v, want 1", owners["footer"])
	}

	text := f.ToCSSString()
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(lines) != len(f.Lines) {
		t.Fatalf("%d text lines vs %d line entries\n%s", len(lines), len(f.Lines), text)
	}

	// footer {, margin, }, h1 {, color (1), font-size (2), }, p {, color (2), color (2), }
	want := []*int{ptr(1), ptr(1), ptr(1), nil, ptr(1), ptr(2), nil, ptr(2), ptr(2), ptr(2), ptr(2)}
	for i, li := range f.Lines {
		if li.LineNumber != i+1 {
			t.Errorf("line %d numbered %d", i+1, li.LineNumber)
		}
		if !sameOwner(li.Owner, want[i]) {
			t.Errorf("line %d (%q) owner = %v, want %v", i+1, lines[i], deref(li.Owner), deref(want[i]))
		}
	}

	plain := GenerateCSSString([]metadata.CSSMetaData{a, b})
	if text != plain {
		t.Errorf("formatted text differs from plain merge:\n%s\nvs\n%s", text, plain)
	}
}

func ptr(v int) *int { return &v }

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func sameOwner(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
