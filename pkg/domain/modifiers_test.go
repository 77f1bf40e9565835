package domain

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
)

func TestColumnValueIndexResolvesModifiers(t *testing.T) {
	col := Column{
		Name:         "organism part",
		DefaultValue: "liver",
		SampleCount:  6,
		Modifiers: []Modifier{
			{Value: "heart", Samples: "2-3"},
			{Value: ValueNotAvailable, Samples: "6"},
		},
	}
	idx, err := col.ValueIndex()
	if err != nil {
		t.Fatalf("value index: %v", err)
	}
	want := []string{"liver", "heart", "heart", "liver", "liver", ValueNotAvailable}
	if got := idx.Values(); !slices.Equal(got, want) {
		t.Fatalf("values = %v, want %v", got, want)
	}
	if _, err := idx.Value(7); err == nil {
		t.Fatalf("expected out of bounds error")
	}
}

func TestColumnValidateReportsConflicts(t *testing.T) {
	cases := []struct {
		name string
		col  Column
		want any
	}{
		{
			name: "overlap",
			col: Column{Name: "c", DefaultValue: "A", SampleCount: 5, Modifiers: []Modifier{
				{Value: "B", Samples: "1-3"}, {Value: "C", Samples: "3-4"},
			}},
			want: &ModifierConflictError{},
		},
		{
			name: "default valued modifier",
			col:  Column{Name: "c", DefaultValue: "A", SampleCount: 5, Modifiers: []Modifier{{Value: "A", Samples: "1"}}},
			want: &ModifierConflictError{},
		},
		{
			name: "duplicate value",
			col: Column{Name: "c", DefaultValue: "A", SampleCount: 5, Modifiers: []Modifier{
				{Value: "B", Samples: "1"}, {Value: "B", Samples: "2"},
			}},
			want: &ModifierConflictError{},
		},
		{
			name: "out of range",
			col:  Column{Name: "c", DefaultValue: "A", SampleCount: 2, Modifiers: []Modifier{{Value: "B", Samples: "3"}}},
			want: &SampleIndexOutOfBoundsError{},
		},
		{
			name: "malformed",
			col:  Column{Name: "c", DefaultValue: "A", SampleCount: 2, Modifiers: []Modifier{{Value: "B", Samples: "x"}}},
			want: &InvalidRangeError{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.col.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			switch tc.want.(type) {
			case *ModifierConflictError:
				var target *ModifierConflictError
				if !errors.As(err, &target) {
					t.Fatalf("got %v, want ModifierConflictError", err)
				}
			case *SampleIndexOutOfBoundsError:
				var target *SampleIndexOutOfBoundsError
				if !errors.As(err, &target) {
					t.Fatalf("got %v, want SampleIndexOutOfBoundsError", err)
				}
			case *InvalidRangeError:
				var target *InvalidRangeError
				if !errors.As(err, &target) {
					t.Fatalf("got %v, want InvalidRangeError", err)
				}
			}
		})
	}
}

func TestModifierWireFormat(t *testing.T) {
	payload, err := json.Marshal([]Modifier{{Value: "B", Samples: "4-5"}, {Value: "C", Samples: "1"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `[{"value":"B","samples":"4-5"},{"value":"C","samples":"1"}]` {
		t.Fatalf("unexpected wire form %s", payload)
	}

	var legacy []Modifier
	if err := json.Unmarshal([]byte(`[{"samples":["1-3","5"],"value":"B"},{"samples":7,"value":"C"},{"samples":"9","value":"D"}]`), &legacy); err != nil {
		t.Fatalf("unmarshal legacy: %v", err)
	}
	want := []Modifier{{Value: "B", Samples: "1-3,5"}, {Value: "C", Samples: "7"}, {Value: "D", Samples: "9"}}
	if !slices.Equal(legacy, want) {
		t.Fatalf("legacy decode = %v, want %v", legacy, want)
	}

	var bad Modifier
	if err := json.Unmarshal([]byte(`{"samples":{"a":1},"value":"B"}`), &bad); err == nil {
		t.Fatalf("expected error for object samples")
	}
}

func TestPoolValidate(t *testing.T) {
	pool := Pool{Name: "Pool A", PooledOnlySamples: []int{1, 2}, PooledAndIndependentSamples: []int{3}}
	if err := pool.Validate(3); err != nil {
		t.Fatalf("validate: %v", err)
	}
	var compErr *PoolCompositionError
	if err := pool.Validate(2); !errors.As(err, &compErr) || compErr.Sample != 3 {
		t.Fatalf("expected composition error for sample 3, got %v", err)
	}
	overlap := Pool{Name: "Pool B", PooledOnlySamples: []int{1}, PooledAndIndependentSamples: []int{1}}
	if err := overlap.Validate(3); !errors.As(err, &compErr) {
		t.Fatalf("expected overlap error, got %v", err)
	}
	if got := pool.Members(); !slices.Equal(got, []int{1, 2, 3}) {
		t.Fatalf("members = %v", got)
	}
}
