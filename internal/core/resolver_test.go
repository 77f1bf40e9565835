package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"metacore/pkg/domain"
)

func TestComputeModifiersSparseColumn(t *testing.T) {
	raw := map[int]string{1: "A", 2: "A", 3: "A", 4: "B", 5: "B", 6: "A"}
	def, modifiers, err := ComputeModifiers(raw, 6)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if def != "A" {
		t.Fatalf("expected default A, got %q", def)
	}
	if diff := cmp.Diff([]domain.Modifier{{Value: "B", Samples: "4-5"}}, modifiers); diff != "" {
		t.Fatalf("modifiers mismatch (-want +got):\n%s", diff)
	}

	r, err := NewResolver(Column{Name: "c", DefaultValue: def, Modifiers: modifiers, SampleCount: 6})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	for i, want := range map[int]string{4: "B", 6: "A", 1: "A"} {
		got, err := r.Resolve(i)
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("resolve %d: want %q got %q", i, want, got)
		}
	}
}

func TestComputeModifiersTieBreakFirstSeen(t *testing.T) {
	def, modifiers, err := ComputeModifiers(map[int]string{4: "X", 2: "Y", 3: "Y", 1: "X"}, 4)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if def != "X" {
		t.Fatalf("tie should go to the value at the lowest index, got %q", def)
	}
	if diff := cmp.Diff([]domain.Modifier{{Value: "Y", Samples: "2-3"}}, modifiers); diff != "" {
		t.Fatalf("modifiers mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeModifiersOrdersByFirstAppearance(t *testing.T) {
	values := []string{"C", "A", "A", "A", "B", "", "C", "not applicable"}
	def, modifiers, err := ComputeColumnValues(values)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	want := []domain.Modifier{
		{Value: "C", Samples: "1,7"},
		{Value: "B", Samples: "5"},
		{Value: "not applicable", Samples: "8"},
	}
	if def != "A" {
		t.Fatalf("expected default A, got %q", def)
	}
	if diff := cmp.Diff(want, modifiers); diff != "" {
		t.Fatalf("modifiers mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeModifiersEdgeCases(t *testing.T) {
	def, modifiers, err := ComputeModifiers(nil, 3)
	if err != nil || def != "" || len(modifiers) != 0 {
		t.Fatalf("empty input: def=%q modifiers=%v err=%v", def, modifiers, err)
	}
	def, modifiers, err = ComputeModifiers(map[int]string{1: "", 2: ""}, 2)
	if err != nil || def != "" || len(modifiers) != 0 {
		t.Fatalf("all-empty input: def=%q modifiers=%v err=%v", def, modifiers, err)
	}
	_, _, err = ComputeModifiers(map[int]string{4: "A"}, 3)
	var oob *domain.SampleIndexOutOfBoundsError
	if !errors.As(err, &oob) || oob.Index != 4 {
		t.Fatalf("expected out-of-bounds error for index 4, got %v", err)
	}
	if _, _, err := ComputeModifiers(map[int]string{0: "A"}, 3); !errors.As(err, &oob) {
		t.Fatalf("expected out-of-bounds error for index 0, got %v", err)
	}
}

func TestComputeResolveRoundTrip(t *testing.T) {
	cases := [][]string{
		{"a"},
		{"a", "b", "a", "b", "b", "c", "c", "c", "c"},
		{"x", "x", "x", "x"},
		{"not available", "1", "2", "1", "not available", "not available"},
	}
	for _, values := range cases {
		def, modifiers, err := ComputeColumnValues(values)
		if err != nil {
			t.Fatalf("compute %v: %v", values, err)
		}
		col := Column{Name: "c", DefaultValue: def, Modifiers: modifiers, SampleCount: len(values)}
		r, err := NewResolver(col)
		if err != nil {
			t.Fatalf("resolver %v: %v", values, err)
		}
		if diff := cmp.Diff(values, r.Values()); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
		for _, m := range modifiers {
			if m.Value == def {
				t.Fatalf("modifier carries the default value %q", def)
			}
		}
	}
}

func TestComputeObservedValuesKeepsBlanks(t *testing.T) {
	values := []string{"", "", "x", "", "y"}
	def, modifiers, err := ComputeObservedValues(values)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if def != "" {
		t.Fatalf("expected blank default, got %q", def)
	}
	want := []domain.Modifier{{Value: "x", Samples: "3"}, {Value: "y", Samples: "5"}}
	if diff := cmp.Diff(want, modifiers); diff != "" {
		t.Fatalf("modifiers mismatch (-want +got):\n%s", diff)
	}
	r, err := NewResolver(Column{Name: "c", DefaultValue: def, Modifiers: modifiers, SampleCount: len(values)})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	if diff := cmp.Diff(values, r.Values()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	def, modifiers, err = ComputeObservedValues([]string{"a", "", "a"})
	if err != nil || def != "a" {
		t.Fatalf("expected default a, got %q %v", def, err)
	}
	if diff := cmp.Diff([]domain.Modifier{{Value: "", Samples: "2"}}, modifiers); diff != "" {
		t.Fatalf("blank modifier mismatch (-want +got):\n%s", diff)
	}
}

func TestResolverRejectsInvalidColumns(t *testing.T) {
	overlap := Column{Name: "c", DefaultValue: "A", SampleCount: 5, Modifiers: []domain.Modifier{
		{Value: "B", Samples: "1-3"},
		{Value: "C", Samples: "3-4"},
	}}
	var conflict *domain.ModifierConflictError
	if _, err := NewResolver(overlap); !errors.As(err, &conflict) || conflict.Sample != 3 {
		t.Fatalf("expected conflict on sample 3, got %v", err)
	}

	outside := Column{Name: "c", DefaultValue: "A", SampleCount: 3, Modifiers: []domain.Modifier{{Value: "B", Samples: "2-4"}}}
	var oob *domain.SampleIndexOutOfBoundsError
	if _, err := NewResolver(outside); !errors.As(err, &oob) {
		t.Fatalf("expected out-of-bounds error, got %v", err)
	}

	malformed := Column{Name: "c", DefaultValue: "A", SampleCount: 3, Modifiers: []domain.Modifier{{Value: "B", Samples: "3-1"}}}
	var invalid *domain.InvalidRangeError
	if _, err := NewResolver(malformed); !errors.As(err, &invalid) {
		t.Fatalf("expected invalid range error, got %v", err)
	}

	r, err := NewResolver(Column{Name: "c", DefaultValue: "A", SampleCount: 2})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	for _, i := range []int{0, 3} {
		if _, err := r.Resolve(i); !errors.As(err, &oob) {
			t.Fatalf("resolve %d: expected out-of-bounds error, got %v", i, err)
		}
	}
	if v, err := Resolve(Column{DefaultValue: "z", SampleCount: 1}, 1); err != nil || v != "z" {
		t.Fatalf("one-off resolve: %q %v", v, err)
	}
}
