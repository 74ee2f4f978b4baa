package stylesheet

import (
	"reflect"
	"testing"
)

func TestParseSheet_Empty(t *testing.T) {
	if got := ParseSheet(""); got != nil {
		t.Errorf("empty sheet = %+v, want nil", got)
	}
	if got := ParseSheet("/* only a comment */\n"); got != nil {
		t.Errorf("comment-only sheet = %+v, want nil", got)
	}
}

func TestParseSheet_DuplicateDeclarationsFold(t *testing.T) {
	styles := ParseSheet("h1 { color: red; color: blue; }")
	if len(styles) != 1 {
		t.Fatalf("len = %d, want 1", len(styles))
	}
	attrs := styles[0].Attributes
	if len(attrs) != 1 {
		t.Fatalf("attributes = %+v, want one", attrs)
	}
	if attrs[0].Name != "color" {
		t.Errorf("name = %q", attrs[0].Name)
	}
	if !reflect.DeepEqual(attrs[0].Values, []string{"red", "blue"}) {
		t.Errorf("values = %v, want [red blue]", attrs[0].Values)
	}
}

func TestParseSheet_SortedByTagAndName(t *testing.T) {
	styles := ParseSheet(`
p { margin: 0; color: blue; }
body { width: 100%; background: white; }
h1 { font-size: 14pt; }
`)
	var tags []string
	for _, s := range styles {
		tags = append(tags, s.Tag)
	}
	if !reflect.DeepEqual(tags, []string{"body", "h1", "p"}) {
		t.Fatalf("tags = %v", tags)
	}
	var names []string
	for _, a := range styles[2].Attributes {
		names = append(names, a.Name)
	}
	if !reflect.DeepEqual(names, []string{"color", "margin"}) {
		t.Errorf("p attributes = %v", names)
	}
	if got := styles[1].Attributes[0].Values[0]; got != "14pt" {
		t.Errorf("dimension = %q, want 14pt", got)
	}
	if got := styles[0].Attributes[1].Values[0]; got != "100%" {
		t.Errorf("percentage = %q, want 100%%", got)
	}
}

func TestParseSheet_MultiTokenValues(t *testing.T) {
	styles := ParseSheet("div { margin: 0  auto ; color: red !important; font-family: \"Fira Sans\", serif; transform: translate(1px, 2px) }")
	want := map[string]string{
		"color":       "red !important",
		"font-family": `"Fira Sans", serif`,
		"margin":      "0 auto",
		"transform":   "translate(1px, 2px)",
	}
	got := map[string]string{}
	for _, a := range styles[0].Attributes {
		got[a.Name] = a.Values[0]
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("values = %v, want %v", got, want)
	}
}

func TestParseSheet_LastDeclarationWithoutSemicolon(t *testing.T) {
	styles := ParseSheet("a{color:red}b{color:blue}")
	if len(styles) != 2 {
		t.Fatalf("len = %d, want 2", len(styles))
	}
	if styles[0].Tag != "a" || styles[0].Attributes[0].Values[0] != "red" {
		t.Errorf("first = %+v", styles[0])
	}
	if styles[1].Tag != "b" || styles[1].Attributes[0].Values[0] != "blue" {
		t.Errorf("second = %+v", styles[1])
	}
}

func TestParse_PermissiveWithDiagnostics(t *testing.T) {
	res := Parse([]byte(`
@media screen { h1 { color: green; } }
{ color: red; }
h1 { : nothing; color: ; font-weight: bold; }
}
p { color: blue;
`))
	if len(res.Styles) != 2 {
		t.Fatalf("styles = %+v, want h1 and p", res.Styles)
	}
	if res.Styles[0].Tag != "h1" || len(res.Styles[0].Attributes) != 1 || res.Styles[0].Attributes[0].Name != "font-weight" {
		t.Errorf("h1 = %+v", res.Styles[0])
	}
	if res.Styles[1].Tag != "p" {
		t.Errorf("p = %+v", res.Styles[1])
	}
	if len(res.Diagnostics) < 4 {
		t.Errorf("diagnostics = %v, want at-rule, missing selector, missing name, empty value, stray brace, unterminated", res.Diagnostics)
	}
	for _, d := range res.Diagnostics {
		if d.Line < 1 {
			t.Errorf("diagnostic without line: %+v", d)
		}
	}
}

func TestParse_CompoundSelectorKeptAsTag(t *testing.T) {
	styles := ParseSheet("ul li { padding: 0; }\na:hover { color: red; }")
	if styles[0].Tag != "a:hover" || styles[1].Tag != "ul li" {
		t.Errorf("tags = %q, %q", styles[0].Tag, styles[1].Tag)
	}
}

func TestParse_CustomProperty(t *testing.T) {
	styles := ParseSheet(":root-less { --accent: #ff0000; }")
	if len(styles) != 1 {
		t.Fatalf("styles = %+v", styles)
	}
	a := styles[0].Attributes
	if len(a) != 1 || a[0].Name != "--accent" || a[0].Values[0] != "#ff0000" {
		t.Errorf("attributes = %+v", a)
	}
}
