package roi

import (
	"reflect"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		name, sep string
		want      []string
	}{
		{"A_cell1", "_", []string{"A", "cell1"}},
		{"A_", "_", []string{"A"}},
		{"_", "_", []string{}},
		{"lonely", "_", []string{"lonely"}},
		{"A.b.c", ".", []string{"A", "b", "c"}},
		{"A__b", "__", []string{"A", "b"}},
		{"A_b", "", []string{"A_b"}},
	}
	for _, tt := range tests {
		got := SplitName(tt.name, tt.sep)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitName(%q, %q): expected %v, got %v", tt.name, tt.sep, tt.want, got)
		}
	}

	if got := Structure("_", "_"); got != "_" {
		t.Errorf("Expected structure of a separator-only name to be the name, got %q", got)
	}
	if got := Structure("A_cell1", "_"); got != "A" {
		t.Errorf("Expected structure A, got %q", got)
	}
}

func TestCategorize(t *testing.T) {
	c := NewCollection(
		NewRect("B_cell1", 0, 0, 2, 2),
		NewRect("A_cell1", 0, 0, 2, 2),
		NewRect("lonely", 0, 0, 2, 2),
		NewRect("A_cell2", 0, 0, 2, 2),
		NewRect("C_", 0, 0, 2, 2),
	)
	cat := Categorize(c, "_")

	if !reflect.DeepEqual(cat.Tags, []string{"B", "A"}) {
		t.Errorf("Expected tags [B A], got %v", cat.Tags)
	}
	if !reflect.DeepEqual(cat.Members["A"], []int{1, 3}) {
		t.Errorf("Expected A members [1 3], got %v", cat.Members["A"])
	}
	if !reflect.DeepEqual(cat.Members["B"], []int{0}) {
		t.Errorf("Expected B members [0], got %v", cat.Members["B"])
	}
	if _, ok := cat.Members["C"]; ok {
		t.Error("Expected trailing separator to leave a name untagged")
	}
}

func TestFuse(t *testing.T) {
	log, _ := test.NewNullLogger()
	c := NewCollection(
		NewRect("A_cell1", 0, 0, 4, 4),
		NewRect("A_cell2", 10, 0, 4, 4),
		NewRect("B_cell1", 20, 20, 3, 3),
		NewRect("lonely", 0, 0, 1, 1),
	)
	c.Get(0).Color.R = 200

	fused, cat, err := Fuse(c, "_", log)
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}
	if len(cat.Tags) != 2 {
		t.Fatalf("Expected 2 tags, got %d", len(cat.Tags))
	}
	if fused.Len() != 2 {
		t.Fatalf("Expected 2 fused regions, got %d", fused.Len())
	}

	a := fused.Get(0)
	if a.Name != "A" {
		t.Errorf("Expected name A, got %q", a.Name)
	}
	if got := a.Area(); got != 32 {
		t.Errorf("Expected union area 32, got %d", got)
	}
	if a.Bounds().Dx() != 14 {
		t.Errorf("Expected union width 14, got %d", a.Bounds().Dx())
	}
	if a.Color.R != 200 {
		t.Errorf("Expected first member color, got %v", a.Color)
	}

	b := fused.Get(1)
	if b.Name != "B" || b.Kind != KindPolygon || b.Area() != 9 {
		t.Errorf("Expected single member B kept as a 9 pixel polygon, got %q %v %d", b.Name, b.Kind, b.Area())
	}
	if c.Get(2).Name != "B_cell1" {
		t.Error("Expected Fuse to leave the input untouched")
	}
}
