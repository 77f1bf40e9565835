package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"metacore/pkg/rangeset"
)

// ValueIndex maps every sample of a column to the modifier that claims it.
// Slot i-1 holds the modifier position for sample i, or -1 for the default.
type ValueIndex struct {
	column Column
	slots  []int
}

// Validate checks the modifier invariants: decodable ranges within
// [1, SampleCount], pairwise-disjoint samples, distinct values and no
// modifier carrying the default value.
func (c Column) Validate() error {
	_, err := c.ValueIndex()
	return err
}

// ValueIndex decodes every modifier once and builds the sample reverse index.
func (c Column) ValueIndex() (ValueIndex, error) {
	if c.SampleCount < 0 {
		return ValueIndex{}, fmt.Errorf("column %s: negative sample count %d", c.Name, c.SampleCount)
	}
	slots := make([]int, c.SampleCount)
	for i := range slots {
		slots[i] = -1
	}
	values := make(map[string]int, len(c.Modifiers))
	for pos, m := range c.Modifiers {
		if m.Value == c.DefaultValue {
			return ValueIndex{}, &ModifierConflictError{Column: c.Name, Value: m.Value, Reason: "duplicates the default value"}
		}
		if prev, dup := values[m.Value]; dup {
			return ValueIndex{}, &ModifierConflictError{Column: c.Name, Value: m.Value, Reason: fmt.Sprintf("appears twice (positions %d and %d)", prev, pos)}
		}
		values[m.Value] = pos
		samples, err := rangeset.Decode(m.Samples)
		if err != nil {
			return ValueIndex{}, fmt.Errorf("column %s modifier %q: %w", c.Name, m.Value, err)
		}
		for _, s := range samples {
			if s > c.SampleCount {
				return ValueIndex{}, &SampleIndexOutOfBoundsError{Index: s, SampleCount: c.SampleCount}
			}
			if owner := slots[s-1]; owner >= 0 {
				return ValueIndex{}, &ModifierConflictError{Column: c.Name, Value: c.Modifiers[owner].Value, OtherValue: m.Value, Sample: s}
			}
			slots[s-1] = pos
		}
	}
	return ValueIndex{column: c, slots: slots}, nil
}

// SampleCount returns the number of indexed samples.
func (v ValueIndex) SampleCount() int { return len(v.slots) }

// Value returns the effective value of sample i.
func (v ValueIndex) Value(i int) (string, error) {
	if i < 1 || i > len(v.slots) {
		return "", &SampleIndexOutOfBoundsError{Index: i, SampleCount: len(v.slots)}
	}
	if pos := v.slots[i-1]; pos >= 0 {
		return v.column.Modifiers[pos].Value, nil
	}
	return v.column.DefaultValue, nil
}

// Values returns all effective values; element 0 is sample 1.
func (v ValueIndex) Values() []string {
	out := make([]string, len(v.slots))
	for i, pos := range v.slots {
		if pos >= 0 {
			out[i] = v.column.Modifiers[pos].Value
			continue
		}
		out[i] = v.column.DefaultValue
	}
	return out
}

// UnmarshalJSON accepts the canonical string form of samples as well as a
// list of tokens or a bare number written by older exports.
func (m *Modifier) UnmarshalJSON(data []byte) error {
	var aux struct {
		Value   string          `json:"value"`
		Samples json.RawMessage `json:"samples"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	samples, err := decodeWireSamples(aux.Samples)
	if err != nil {
		return fmt.Errorf("modifier %q: %w", aux.Value, err)
	}
	m.Value = aux.Value
	m.Samples = samples
	return nil
}

func decodeWireSamples(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil {
			return "", err
		}
		tokens := make([]string, 0, len(parts))
		for _, p := range parts {
			tok, err := decodeWireSamples(p)
			if err != nil {
				return "", err
			}
			tokens = append(tokens, tok)
		}
		return strings.Join(tokens, ","), nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("unsupported samples encoding %s", string(raw))
		}
		if _, err := strconv.Atoi(n.String()); err != nil {
			return "", fmt.Errorf("samples %s: %w", n.String(), err)
		}
		return n.String(), nil
	}
}

// Validate checks pool membership against a table of sampleCount samples.
func (p Pool) Validate(sampleCount int) error {
	seen := make(map[int]struct{}, len(p.PooledOnlySamples))
	for _, s := range p.PooledOnlySamples {
		if s < 1 || s > sampleCount {
			return &PoolCompositionError{Pool: p.Name, Sample: s, SampleCount: sampleCount}
		}
		seen[s] = struct{}{}
	}
	for _, s := range p.PooledAndIndependentSamples {
		if s < 1 || s > sampleCount {
			return &PoolCompositionError{Pool: p.Name, Sample: s, SampleCount: sampleCount}
		}
		if _, dup := seen[s]; dup {
			return &PoolCompositionError{Pool: p.Name, Sample: s, SampleCount: sampleCount, Reason: "is both pooled-only and pooled-and-independent"}
		}
	}
	return nil
}
