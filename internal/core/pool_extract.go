package core

import (
	"fmt"
	"strings"

	"metacore/pkg/domain"
	"metacore/pkg/rangeset"
)

// Default SDRF header names for the pooling and sample name columns.
const (
	DefaultPooledColumn     = "characteristics[pooled sample]"
	DefaultSourceNameColumn = "source name"
)

// PoolExtractOptions names the columns pooling is read from.
type PoolExtractOptions struct {
	PooledColumn     string
	SourceNameColumn string
	// MarkReference flags a pool synthesized from plain "pooled" markers as a
	// reference pool.
	MarkReference bool
}

func (o PoolExtractOptions) withDefaults() PoolExtractOptions {
	if strings.TrimSpace(o.PooledColumn) == "" {
		o.PooledColumn = DefaultPooledColumn
	}
	if strings.TrimSpace(o.SourceNameColumn) == "" {
		o.SourceNameColumn = DefaultSourceNameColumn
	}
	return o
}

// PoolExtraction is the outcome of reading pooling signals from rows.
type PoolExtraction struct {
	Candidates []domain.Pool
	// Unresolved lists "pool: name" pairs whose source name matched no row.
	Unresolved []string
	// SourceNames holds each sample's source name; element 0 is sample 1.
	SourceNames []string
}

// ExtractPoolCandidates derives candidate pools from a header-first row
// matrix. Data row k is sample k. Rows whose pooled cell starts with "SN="
// declare reference pools; without any, rows marked "pooled" form a single
// synthesized pool.
func ExtractPoolCandidates(rows [][]string, opts PoolExtractOptions) (PoolExtraction, error) {
	opts = opts.withDefaults()
	if len(rows) == 0 {
		return PoolExtraction{}, nil
	}
	header, data := rows[0], rows[1:]
	pooledCol := HeaderIndex(header, opts.PooledColumn)
	sourceCol := HeaderIndex(header, opts.SourceNameColumn)

	names := make([]string, len(data))
	byName := make(map[string][]int)
	if sourceCol >= 0 {
		for i, row := range data {
			name := strings.TrimSpace(cellAt(row, sourceCol))
			names[i] = name
			if name != "" {
				byName[name] = append(byName[name], i+1)
			}
		}
	}
	out := PoolExtraction{SourceNames: names}
	if pooledCol < 0 {
		return out, nil
	}

	var refRows, pooledRows []int
	for i, row := range data {
		v := strings.TrimSpace(cellAt(row, pooledCol))
		switch {
		case strings.HasPrefix(v, domain.ReferencePrefix):
			refRows = append(refRows, i+1)
		case strings.EqualFold(v, domain.PoolMarkerPooled):
			pooledRows = append(pooledRows, i+1)
		}
	}

	if len(refRows) > 0 {
		if sourceCol < 0 {
			return out, fmt.Errorf("column %q not found: required to resolve %s references", opts.SourceNameColumn, domain.ReferencePrefix)
		}
		taken := make(map[string]bool, len(refRows))
		for _, sample := range refRows {
			taken[strings.ToLower(names[sample-1])] = true
		}
		for n, sample := range refRows {
			sdrf := strings.TrimSpace(cellAt(data[sample-1], pooledCol))
			name := names[sample-1]
			if name == "" {
				name = generatedPoolName(taken, n+1)
			}
			pool := domain.Pool{Name: name, IsReference: true, SDRFValue: sdrf}
			for _, member := range splitSourceNames(strings.TrimPrefix(sdrf, domain.ReferencePrefix)) {
				matches, ok := byName[member]
				if !ok {
					out.Unresolved = append(out.Unresolved, name+": "+member)
					continue
				}
				for _, s := range matches {
					if isIndependentMarker(cellAt(data[s-1], pooledCol)) {
						pool.PooledAndIndependentSamples = append(pool.PooledAndIndependentSamples, s)
					} else {
						pool.PooledOnlySamples = append(pool.PooledOnlySamples, s)
					}
				}
			}
			pool.PooledOnlySamples = rangeset.Normalize(pool.PooledOnlySamples)
			pool.PooledAndIndependentSamples = rangeset.Normalize(pool.PooledAndIndependentSamples)
			out.Candidates = append(out.Candidates, pool)
		}
		return out, nil
	}

	if len(pooledRows) > 0 {
		out.Candidates = append(out.Candidates, domain.Pool{
			Name:              "Pool 1",
			PooledOnlySamples: pooledRows,
			IsReference:       opts.MarkReference,
			SDRFValue:         ReferenceSDRFValue(pooledRows, names),
		})
	}
	return out, nil
}

// ReferenceSDRFValue builds "SN=name1,name2,..." from the source names of
// the given samples in ascending sample order. Samples without a name are
// skipped.
func ReferenceSDRFValue(samples []int, sourceNames []string) string {
	parts := make([]string, 0, len(samples))
	for _, s := range rangeset.Normalize(samples) {
		if s > len(sourceNames) || sourceNames[s-1] == "" {
			continue
		}
		parts = append(parts, sourceNames[s-1])
	}
	return domain.ReferencePrefix + strings.Join(parts, ",")
}

// generatedPoolName returns "Pool n", or the first "Pool m" with m > n
// when that name is already taken, and marks the result taken.
func generatedPoolName(taken map[string]bool, n int) string {
	for ; ; n++ {
		name := fmt.Sprintf("Pool %d", n)
		if key := strings.ToLower(name); !taken[key] {
			taken[key] = true
			return name
		}
	}
}

// HeaderIndex finds a header case-insensitively, ignoring surrounding space.
func HeaderIndex(header []string, name string) int {
	want := strings.TrimSpace(name)
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return i
		}
	}
	return -1
}

func isIndependentMarker(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "", domain.PoolMarkerNot, domain.PoolMarkerIndep:
		return true
	default:
		return false
	}
}

func splitSourceNames(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}
