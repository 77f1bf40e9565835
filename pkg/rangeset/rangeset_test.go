package rangeset

import (
	"errors"
	"math/rand"
	"slices"
	"strings"
	"testing"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		name string
		in   []int
		want string
	}{
		{name: "empty", in: nil, want: ""},
		{name: "single", in: []int{4}, want: "4"},
		{name: "pair becomes run", in: []int{4, 5}, want: "4-5"},
		{name: "mixed", in: []int{1, 2, 3, 5, 7, 8, 9}, want: "1-3,5,7-9"},
		{name: "unsorted with duplicates", in: []int{9, 1, 3, 2, 2, 8, 7, 5}, want: "1-3,5,7-9"},
		{name: "drops non-positive", in: []int{0, -2, 1, 2}, want: "1-2"},
		{name: "singletons", in: []int{10, 1, 5}, want: "1,5,10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Encode(tc.in); got != tc.want {
				t.Fatalf("Encode(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	got, err := Decode("1-3,5,7-9")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []int{1, 2, 3, 5, 7, 8, 9}
	if !slices.Equal(got, want) {
		t.Fatalf("Decode = %v, want %v", got, want)
	}

	got, err = Decode(" 4 , 2-3, 3 ")
	if err != nil {
		t.Fatalf("decode with spaces: %v", err)
	}
	if !slices.Equal(got, []int{2, 3, 4}) {
		t.Fatalf("expected overlapping tokens to collapse, got %v", got)
	}

	empty, err := Decode("")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty set, got %v (%v)", empty, err)
	}
}

func TestDecodeRejectsMalformedTokens(t *testing.T) {
	inputs := []string{"a", "1,,2", "0", "-3", "5-2", "1-", "1-2-3", "3-x", "2097152"}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Decode(in)
			var rangeErr *InvalidRangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("Decode(%q) error = %v, want InvalidRangeError", in, err)
			}
			if rangeErr.Input != in {
				t.Fatalf("error input = %q, want %q", rangeErr.Input, in)
			}
		})
	}
}

func TestRoundTripRandomSets(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := rng.Intn(60)
		set := make([]int, 0, n)
		for j := 0; j < n; j++ {
			set = append(set, 1+rng.Intn(120))
		}
		encoded := Encode(set)
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("decode %q: %v", encoded, err)
		}
		if !slices.Equal(decoded, Normalize(set)) {
			t.Fatalf("round trip mismatch for %v: encoded %q decoded %v", set, encoded, decoded)
		}
		if again := Encode(decoded); again != encoded {
			t.Fatalf("encode not normalizing: %q then %q", encoded, again)
		}
	}
}

func TestEncodeIsMinimal(t *testing.T) {
	encoded := Encode([]int{1, 2, 4, 5, 6, 9, 11, 12})
	if encoded != "1-2,4-6,9,11-12" {
		t.Fatalf("expected maximal runs, got %q", encoded)
	}
	prevHi := -1
	for _, token := range Tokens(encoded) {
		lo, hi, err := parseToken(token)
		if err != nil {
			t.Fatalf("parse %q: %v", token, err)
		}
		if prevHi >= 0 && lo == prevHi+1 {
			t.Fatalf("token %q continues the previous run", token)
		}
		prevHi = hi
	}
}

func TestUnionAndContains(t *testing.T) {
	merged := Union([]int{5, 1}, []int{2, 5, 3})
	if !slices.Equal(merged, []int{1, 2, 3, 5}) {
		t.Fatalf("union = %v", merged)
	}
	if !Contains(merged, 3) || Contains(merged, 4) {
		t.Fatalf("contains mismatch on %v", merged)
	}
	if !Equal([]int{3, 1}, []int{1, 3, 3}) {
		t.Fatalf("expected equal sets")
	}
}

func TestCount(t *testing.T) {
	cases := map[string]int{"": 0, "4": 1, "1-3,5,7-9": 7, "1-3,2": 3}
	for in, want := range cases {
		got, err := Count(in)
		if err != nil {
			t.Fatalf("Count(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Count(%q) = %d, want %d", in, got, want)
		}
	}
	var rangeErr *InvalidRangeError
	if _, err := Count("3-1"); !errors.As(err, &rangeErr) {
		t.Fatalf("expected InvalidRangeError, got %v", err)
	}
}

func TestDecodeMergesRepeatedRanges(t *testing.T) {
	in := strings.TrimSuffix(strings.Repeat("1-1048576,", 64), ",")
	got, err := Decode(in)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != MaxIndex || got[0] != 1 || got[len(got)-1] != MaxIndex {
		t.Fatalf("expected %d merged indices, got %d", MaxIndex, len(got))
	}
	if n, err := Count(in); err != nil || n != MaxIndex {
		t.Fatalf("Count = %d, %v", n, err)
	}

	got, err = Decode("7-9,1-3,2-4,5,10")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !slices.Equal(got, []int{1, 2, 3, 4, 5, 7, 8, 9, 10}) {
		t.Fatalf("unexpected merge %v", got)
	}
}
