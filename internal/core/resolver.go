package core

import (
	"fmt"
	"slices"

	"metacore/pkg/domain"
	"metacore/pkg/rangeset"
)

// Resolver answers per-sample lookups for one column from a reverse index
// built once, so lookups never decode modifier ranges again.
type Resolver struct {
	column domain.Column
	index  domain.ValueIndex
}

// NewResolver validates the column and builds its sample index.
func NewResolver(col domain.Column) (*Resolver, error) {
	index, err := col.ValueIndex()
	if err != nil {
		return nil, err
	}
	return &Resolver{column: col, index: index}, nil
}

// Column returns the column the resolver was built from.
func (r *Resolver) Column() domain.Column { return r.column }

// Resolve returns the effective value of sample i.
func (r *Resolver) Resolve(i int) (string, error) {
	return r.index.Value(i)
}

// Values returns every effective value; element 0 is sample 1.
func (r *Resolver) Values() []string {
	return r.index.Values()
}

// Resolve is a one-off lookup. Bulk callers should hold a Resolver instead.
func Resolve(col domain.Column, i int) (string, error) {
	r, err := NewResolver(col)
	if err != nil {
		return "", err
	}
	return r.Resolve(i)
}

// ComputeModifiers derives the default value and minimal modifier list from
// raw per-sample observations. Empty observations are skipped. The most
// frequent value becomes the default; ties go to the value seen first when
// scanning samples in ascending order. Modifiers follow first appearance.
func ComputeModifiers(raw map[int]string, sampleCount int) (string, []domain.Modifier, error) {
	return computeModifiers(raw, sampleCount, true)
}

// ComputeColumnValues is ComputeModifiers over a dense slice where element 0
// is sample 1.
func ComputeColumnValues(values []string) (string, []domain.Modifier, error) {
	return computeModifiers(denseObservations(values), len(values), true)
}

// ComputeObservedValues is ComputeColumnValues for a fully observed column:
// a blank cell is a value of its own, so blank samples resolve back to "".
func ComputeObservedValues(values []string) (string, []domain.Modifier, error) {
	return computeModifiers(denseObservations(values), len(values), false)
}

func denseObservations(values []string) map[int]string {
	raw := make(map[int]string, len(values))
	for i, v := range values {
		raw[i+1] = v
	}
	return raw
}

func computeModifiers(raw map[int]string, sampleCount int, skipEmpty bool) (string, []domain.Modifier, error) {
	if sampleCount < 0 {
		return "", nil, fmt.Errorf("negative sample count %d", sampleCount)
	}
	indices := make([]int, 0, len(raw))
	for i := range raw {
		if i < 1 || i > sampleCount {
			return "", nil, &domain.SampleIndexOutOfBoundsError{Index: i, SampleCount: sampleCount}
		}
		indices = append(indices, i)
	}
	slices.Sort(indices)

	var order []string
	groups := make(map[string][]int)
	for _, i := range indices {
		v := raw[i]
		if v == "" && skipEmpty {
			continue
		}
		if _, seen := groups[v]; !seen {
			order = append(order, v)
		}
		groups[v] = append(groups[v], i)
	}
	if len(order) == 0 {
		return "", nil, nil
	}

	def := order[0]
	for _, v := range order[1:] {
		if len(groups[v]) > len(groups[def]) {
			def = v
		}
	}

	modifiers := make([]domain.Modifier, 0, len(order)-1)
	for _, v := range order {
		if v == def {
			continue
		}
		modifiers = append(modifiers, domain.Modifier{Value: v, Samples: rangeset.Encode(groups[v])})
	}
	return def, modifiers, nil
}
