package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"metacore/pkg/domain"
)

func poolColumnParents() []domain.Column {
	return []domain.Column{
		{Base: domain.Base{ID: "c3"}, Name: "characteristics[organism]", Type: "characteristics", Position: 2, DefaultValue: "human", SampleCount: 3,
			Modifiers: []domain.Modifier{{Value: "mouse", Samples: "3"}}},
		{Base: domain.Base{ID: "c1"}, Name: "source name", Type: "special", Position: 0, DefaultValue: "S1", SampleCount: 3,
			Modifiers: []domain.Modifier{{Value: "S2", Samples: "2"}, {Value: "S3", Samples: "3"}}},
		{Base: domain.Base{ID: "c2"}, Name: "characteristics[pooled sample]", Type: "characteristics", Position: 1, DefaultValue: "not pooled", SampleCount: 3},
		{Base: domain.Base{ID: "c4"}, Name: "comment[notes]", Type: "comment", Position: 3, DefaultValue: "n/a", SampleCount: 3, Hidden: true},
	}
}

func TestSyncPoolColumnsMirrorsVisibleColumns(t *testing.T) {
	pool := domain.Pool{Name: "Mix", PooledOnlySamples: []int{3}, SDRFValue: "SN=S3"}
	cols, changed, err := SyncPoolColumns(pool, poolColumnParents(), PoolExtractOptions{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !changed {
		t.Fatalf("expected change for a pool without mirrors")
	}
	want := []domain.PoolColumn{
		{ParentColumnID: "c1", Name: "source name", Type: "special", Position: 0, Value: "Mix"},
		{ParentColumnID: "c2", Name: "characteristics[pooled sample]", Type: "characteristics", Position: 1, Value: "SN=S3"},
		{ParentColumnID: "c3", Name: "characteristics[organism]", Type: "characteristics", Position: 2, Value: "mouse"},
	}
	if diff := cmp.Diff(want, cols); diff != "" {
		t.Fatalf("pool columns mismatch (-want +got):\n%s", diff)
	}

	pool.Columns = cols
	if _, changed, err := SyncPoolColumns(pool, poolColumnParents(), PoolExtractOptions{}); err != nil || changed {
		t.Fatalf("second sync should be stable: changed=%v err=%v", changed, err)
	}
}

func TestSyncPoolColumnsKeepsEditedValuesAndDropsRemoved(t *testing.T) {
	pool := domain.Pool{
		Name:              "Mix",
		PooledOnlySamples: []int{1, 3},
		SDRFValue:         "SN=S1,S3",
		Columns: []domain.PoolColumn{
			{ParentColumnID: "c3", Name: "old name", Position: 9, Value: "edited"},
			{ParentColumnID: "gone", Name: "removed", Value: "x"},
		},
	}
	parents := poolColumnParents()
	parents[0].Name = "characteristics[organism part]"
	cols, changed, err := SyncPoolColumns(pool, parents, PoolExtractOptions{})
	if err != nil || !changed {
		t.Fatalf("sync: changed=%v err=%v", changed, err)
	}
	if len(cols) != 3 {
		t.Fatalf("expected three mirrors, got %+v", cols)
	}
	organism := cols[2]
	if organism.Value != "edited" || organism.Name != "characteristics[organism part]" || organism.Position != 2 {
		t.Fatalf("edited mirror not preserved: %+v", organism)
	}
	for _, c := range cols {
		if c.ParentColumnID == "gone" || c.ParentColumnID == "c4" {
			t.Fatalf("unexpected mirror %+v", c)
		}
	}
}

func TestSyncPoolColumnsSeedsMixedValuesWithDefault(t *testing.T) {
	pool := domain.Pool{Name: "Mix", PooledOnlySamples: []int{1}, PooledAndIndependentSamples: []int{3}}
	cols, _, err := SyncPoolColumns(pool, poolColumnParents()[:1], PoolExtractOptions{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(cols) != 1 || cols[0].Value != "human" {
		t.Fatalf("expected default for mixed members, got %+v", cols)
	}
}
