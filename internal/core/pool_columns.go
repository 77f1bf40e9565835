package core

import (
	"fmt"
	"slices"
	"strings"

	"metacore/pkg/domain"
)

// SyncPoolColumns rebuilds the pool's mirrored columns from the parent
// table's columns: one entry per visible parent column, in position order.
// Entries for removed or hidden columns are dropped. Existing values are
// kept; new entries take the value shared by all pool members, falling back
// to the parent default. The pooled-sample column always mirrors the pool's
// SDRF value and the source-name column the pool name. The returned flag
// reports whether anything differs from pool.Columns.
func SyncPoolColumns(pool domain.Pool, parents []domain.Column, opts PoolExtractOptions) ([]domain.PoolColumn, bool, error) {
	opts = opts.withDefaults()
	ordered := slices.Clone(parents)
	slices.SortStableFunc(ordered, func(a, b domain.Column) int { return a.Position - b.Position })

	existing := make(map[string]domain.PoolColumn, len(pool.Columns))
	for _, pc := range pool.Columns {
		existing[pc.ParentColumnID] = pc
	}
	members := pool.Members()

	out := make([]domain.PoolColumn, 0, len(ordered))
	for _, col := range ordered {
		if col.Hidden {
			continue
		}
		pc, ok := existing[col.ID]
		if !ok {
			seed, err := sharedValue(col, members)
			if err != nil {
				return nil, false, fmt.Errorf("mirror column %s into pool %s: %w", col.Name, pool.Name, err)
			}
			pc = domain.PoolColumn{ParentColumnID: col.ID, Value: seed}
		}
		pc.Name = col.Name
		pc.Type = col.Type
		pc.Position = col.Position
		switch {
		case strings.EqualFold(strings.TrimSpace(col.Name), opts.PooledColumn):
			pc.Value = pool.SDRFValue
		case strings.EqualFold(strings.TrimSpace(col.Name), opts.SourceNameColumn):
			pc.Value = pool.Name
		}
		out = append(out, pc)
	}
	return out, !slices.Equal(out, pool.Columns), nil
}

func sharedValue(col domain.Column, members []int) (string, error) {
	if len(members) == 0 {
		return col.DefaultValue, nil
	}
	index, err := col.ValueIndex()
	if err != nil {
		return "", err
	}
	var shared string
	for n, s := range members {
		if s > index.SampleCount() {
			return col.DefaultValue, nil
		}
		v, err := index.Value(s)
		if err != nil {
			return "", err
		}
		if n == 0 {
			shared = v
			continue
		}
		if v != shared {
			return col.DefaultValue, nil
		}
	}
	return shared, nil
}
