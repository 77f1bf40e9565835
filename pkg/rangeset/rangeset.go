// Package rangeset encodes sets of 1-based sample indices as compact,
// comma-separated run lists such as "1-3,5,7-9".
package rangeset

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// MaxIndex bounds the largest index Decode will expand. Sample tables hold
// hundreds to a few thousand samples; anything beyond this is a typo.
const MaxIndex = 1 << 20

// InvalidRangeError reports a malformed token encountered while decoding.
type InvalidRangeError struct {
	Input  string
	Token  string
	Reason string
}

func (e *InvalidRangeError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("invalid range %q: %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("invalid range token %q in %q: %s", e.Token, e.Input, e.Reason)
}

// Encode renders indices as the minimal run-length form. Input order and
// duplicates do not matter; indices below 1 are not representable and are
// dropped. An empty set encodes to "".
func Encode(indices []int) string {
	sorted := Normalize(indices)
	if len(sorted) == 0 {
		return ""
	}
	var b strings.Builder
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(start))
		if prev > start {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(prev))
		}
	}
	for _, v := range sorted[1:] {
		if v == prev+1 {
			prev = v
			continue
		}
		flush()
		start, prev = v, v
	}
	flush()
	return b.String()
}

// Decode expands an encoded range list into a sorted, duplicate-free slice.
// Overlapping tokens are merged before expansion, so the result never holds
// more than MaxIndex entries.
func Decode(s string) ([]int, error) {
	runs, err := decodeRuns(s)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, r := range runs {
		for i := r.lo; i <= r.hi; i++ {
			out = append(out, i)
		}
	}
	return out, nil
}

type run struct{ lo, hi int }

// decodeRuns parses s into sorted, disjoint, non-adjacent runs.
func decodeRuns(s string) ([]run, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var runs []run
	for _, raw := range strings.Split(s, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			return nil, &InvalidRangeError{Input: s, Reason: "empty token"}
		}
		lo, hi, err := parseToken(token)
		if err != nil {
			err.Input = s
			return nil, err
		}
		runs = append(runs, run{lo: lo, hi: hi})
	}
	slices.SortFunc(runs, func(a, b run) int { return a.lo - b.lo })
	merged := runs[:1]
	for _, r := range runs[1:] {
		last := &merged[len(merged)-1]
		if r.lo <= last.hi+1 {
			last.hi = max(last.hi, r.hi)
			continue
		}
		merged = append(merged, r)
	}
	return merged, nil
}

func parseToken(token string) (int, int, *InvalidRangeError) {
	left, right, isRange := strings.Cut(token, "-")
	lo, err := parseIndex(token, left)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := parseIndex(token, right)
	if err != nil {
		return 0, 0, err
	}
	if lo > hi {
		return 0, 0, &InvalidRangeError{Token: token, Reason: "start is greater than end"}
	}
	return lo, hi, nil
}

func parseIndex(token, part string) (int, *InvalidRangeError) {
	part = strings.TrimSpace(part)
	if part == "" {
		return 0, &InvalidRangeError{Token: token, Reason: "missing number"}
	}
	n, err := strconv.Atoi(part)
	if err != nil {
		return 0, &InvalidRangeError{Token: token, Reason: "not an integer"}
	}
	if n < 1 {
		return 0, &InvalidRangeError{Token: token, Reason: "indices must be positive"}
	}
	if n > MaxIndex {
		return 0, &InvalidRangeError{Token: token, Reason: fmt.Sprintf("index exceeds %d", MaxIndex)}
	}
	return n, nil
}

// Normalize returns a sorted copy of indices with duplicates and
// non-positive values removed.
func Normalize(indices []int) []int {
	out := make([]int, 0, len(indices))
	for _, v := range indices {
		if v >= 1 {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Union merges two index sets into one normalized set.
func Union(a, b []int) []int {
	merged := make([]int, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return Normalize(merged)
}

// Contains reports whether the sorted set holds v.
func Contains(sorted []int, v int) bool {
	_, found := slices.BinarySearch(sorted, v)
	return found
}

// Count returns how many distinct indices an encoded string covers without
// expanding it.
func Count(s string) (int, error) {
	runs, err := decodeRuns(s)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range runs {
		n += r.hi - r.lo + 1
	}
	return n, nil
}

// Equal reports whether two normalized sets hold the same indices.
func Equal(a, b []int) bool {
	return slices.Equal(Normalize(a), Normalize(b))
}

// Tokens splits an encoded string into its trimmed tokens.
func Tokens(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
