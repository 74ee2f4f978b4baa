package stylesheet

import (
	"reflect"
	"testing"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestAttributeUpdateOrInsert_KeepsProvenanceWhenAbsent(t *testing.T) {
	a := Attribute{Name: "color", Values: []string{"red"}, Source: intPtr(2), IsOverwritten: boolPtr(false)}
	a.UpdateOrInsert(Attribute{Name: "color", Values: []string{"blue"}})
	if !reflect.DeepEqual(a.Values, []string{"blue"}) {
		t.Errorf("values = %v", a.Values)
	}
	if a.Source == nil || *a.Source != 2 {
		t.Errorf("source lost: %v", a.Source)
	}
	if a.IsOverwritten == nil || *a.IsOverwritten {
		t.Errorf("is_overwritten changed: %v", a.IsOverwritten)
	}

	a.UpdateOrInsert(Attribute{Name: "color", Values: []string{"green"}, IsOverwritten: boolPtr(true)})
	if !*a.IsOverwritten {
		t.Error("is_overwritten should be taken from update")
	}
}

func TestStyleUpdateAttributes_UniqueByName(t *testing.T) {
	s := Style{Tag: "h1", Attributes: []Attribute{
		{Name: "margin", Values: []string{"0"}, Source: intPtr(3)},
		{Name: "color", Values: []string{"red"}},
	}}
	s.UpdateAttributes([]Attribute{
		{Name: "margin", Values: []string{"1px"}},
		{Name: "padding", Values: []string{"2px"}},
		{Name: "margin", Values: []string{"3px"}},
	})

	want := []Attribute{
		{Name: "color", Values: []string{"red"}},
		{Name: "margin", Values: []string{"1px", "3px"}, Source: intPtr(3)},
		{Name: "padding", Values: []string{"2px"}},
	}
	if !reflect.DeepEqual(s.Attributes, want) {
		t.Errorf("attributes = %+v\nwant %+v", s.Attributes, want)
	}
}

func TestStyleReplaceAttributes(t *testing.T) {
	s := Style{Tag: "p", Attributes: []Attribute{{Name: "color", Values: []string{"red"}}}}
	in := []Attribute{{Name: "margin", Values: []string{"0"}}}
	s.ReplaceAttributes(in)
	in[0].Values[0] = "mutated"
	if len(s.Attributes) != 1 || s.Attributes[0].Name != "margin" || s.Attributes[0].Values[0] != "0" {
		t.Errorf("attributes = %+v", s.Attributes)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := Style{Tag: "a", Attributes: []Attribute{{Name: "color", Values: []string{"red"}, Source: intPtr(1)}}}
	c := s.Clone()
	c.Attributes[0].Values[0] = "blue"
	*c.Attributes[0].Source = 9
	if s.Attributes[0].Values[0] != "red" || *s.Attributes[0].Source != 1 {
		t.Error("clone shares memory with original")
	}
}
