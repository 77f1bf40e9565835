package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"metacore/pkg/domain"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "meta.db")
	s, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var table domain.Table
	_, err = s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		table, err = tx.CreateTable(domain.Table{Name: "plasma", SampleCount: 3})
		if err != nil {
			return err
		}
		_, err = tx.CreateColumn(domain.Column{
			TableID:      table.ID,
			Name:         "organism",
			DefaultValue: "human",
			Modifiers:    []domain.Modifier{{Value: "mouse", Samples: "2"}},
			SampleCount:  3,
		})
		return err
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	if reopened.Path() != path {
		t.Fatalf("unexpected path %s", reopened.Path())
	}
	got, ok := reopened.GetTable(table.ID)
	if !ok || got.SampleCount != 3 {
		t.Fatalf("table not restored: %+v", got)
	}
	cols := reopened.ListColumns(table.ID)
	if len(cols) != 1 || len(cols[0].Modifiers) != 1 || cols[0].Modifiers[0].Samples != "2" {
		t.Fatalf("column not restored: %+v", cols)
	}
}

func TestFailedTransactionDoesNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.db")
	s, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	_, err = s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateColumn(domain.Column{TableID: "missing", Name: "x"})
		return err
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no persisted buckets, got %d", n)
	}
}
