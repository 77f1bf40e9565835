// Package sqlite persists the metacore store to an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"metacore/internal/infra/persistence/sqlstate"
	"metacore/pkg/domain"
)

const defaultPath = "metacore.db"

var dialect = sqlstate.Dialect{
	Name:        "sqlite",
	CreateTable: `CREATE TABLE IF NOT EXISTS state (bucket TEXT PRIMARY KEY, payload BLOB NOT NULL)`,
	Upsert:      `INSERT INTO state(bucket, payload) VALUES(?, ?) ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`,
}

// Store is a snapshotting store backed by one SQLite file.
type Store struct {
	*sqlstate.Store
	path string
}

var _ domain.PersistentStore = (*Store)(nil)

// NewStore opens or creates the database at path, creating parent
// directories as needed. An empty path uses metacore.db.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("sqlite: create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	state, err := sqlstate.Open(context.Background(), db, dialect, engine)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: state, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }
