// Package postgres persists the metacore store to a PostgreSQL state table
// with JSONB payloads.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"metacore/internal/infra/persistence/sqlstate"
	"metacore/pkg/domain"
)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/metacore?sslmode=disable"
)

var dialect = sqlstate.Dialect{
	Name:        "postgres",
	CreateTable: `CREATE TABLE IF NOT EXISTS state (bucket TEXT PRIMARY KEY, payload JSONB NOT NULL)`,
	Upsert:      `INSERT INTO state(bucket, payload) VALUES($1, $2) ON CONFLICT(bucket) DO UPDATE SET payload = EXCLUDED.payload`,
}

var (
	openMu  sync.Mutex
	sqlOpen = sql.Open
)

// Store is a snapshotting store backed by Postgres.
type Store struct {
	*sqlstate.Store
}

var _ domain.PersistentStore = (*Store)(nil)

// NewStore connects to dsn (a local default when empty), verifies the
// connection and hydrates from any existing state.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	open := sqlOpen
	openMu.Unlock()

	db, err := open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	state, err := sqlstate.Open(ctx, db, dialect, engine)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: state}, nil
}

// OverrideSQLOpen swaps the connection opener for tests and returns a
// restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
