package core

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"metacore/internal/infra/persistence/memory"
	"metacore/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, err := OpenPersistentStore(StorageConfig{Driver: StorageMemory}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected *memory.Store, got %T", store)
	}
}

func TestOpenPersistentStoreSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "metacore.db")
	cfg := StorageConfig{SQLitePath: path}
	store, err := OpenPersistentStore(cfg, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*sqlite.Store); !ok {
		t.Fatalf("empty driver should select sqlite, got %T", store)
	}

	ctx := WithActor(context.Background(), "alice")
	svc := NewService(store)
	table, _, err := svc.CreateTable(ctx, Table{Name: "persisted"})
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, _, err := svc.ImportTable(ctx, table.ID, sdrfRows()); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := store.(io.Closer).Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenPersistentStore(StorageConfig{Driver: StorageSQLite, SQLitePath: path}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.(io.Closer).Close() }()
	rows, err := NewService(reopened).ResolveTable(ctx, table.ID, false)
	if err != nil {
		t.Fatalf("resolve after reopen: %v", err)
	}
	if len(rows) != len(sdrfRows()) {
		t.Fatalf("expected %d rows after reopen, got %d", len(sdrfRows()), len(rows))
	}
	if pools := reopened.ListPools(table.ID); len(pools) != 1 {
		t.Fatalf("expected pool to survive reopen, got %d", len(pools))
	}
}

func TestOpenPersistentStoreErrors(t *testing.T) {
	if _, err := OpenPersistentStore(StorageConfig{Driver: "bogus"}, nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := OpenPersistentStore(StorageConfig{Driver: StoragePostgres}, nil); err == nil {
		t.Fatalf("expected missing DSN error")
	}
}
