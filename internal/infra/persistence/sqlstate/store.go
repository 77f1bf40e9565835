// Package sqlstate mirrors the memory store into a SQL table holding one
// JSON payload per snapshot bucket. The sqlite and postgres backends supply
// the connection and the dialect.
package sqlstate

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sync"

	"metacore/internal/infra/persistence/memory"
	"metacore/pkg/domain"
)

// Dialect holds the backend-specific statements.
type Dialect struct {
	// Name prefixes errors, e.g. "sqlite".
	Name string
	// CreateTable must create `state(bucket, payload)` if it is missing.
	CreateTable string
	// Upsert writes one bucket; it binds bucket then payload.
	Upsert string
}

// Store runs transactions against the embedded memory store and writes the
// buckets that changed after every successful commit.
type Store struct {
	*memory.Store
	db      *sql.DB
	dialect Dialect

	mu      sync.Mutex
	written map[string][]byte
}

var _ domain.PersistentStore = (*Store)(nil)

// Open prepares the state table on db and hydrates a memory store from it.
// On error db is left open for the caller to close.
func Open(ctx context.Context, db *sql.DB, dialect Dialect, engine *domain.RulesEngine) (*Store, error) {
	if _, err := db.ExecContext(ctx, dialect.CreateTable); err != nil {
		return nil, fmt.Errorf("%s: create state table: %w", dialect.Name, err)
	}
	s := &Store{
		Store:   memory.NewStore(engine),
		db:      db,
		dialect: dialect,
		written: make(map[string][]byte, len(memory.Buckets)),
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("%s: select state: %w", s.dialect.Name, err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	found := false
	for rows.Next() {
		var (
			bucket  string
			payload []byte
		)
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("%s: scan state: %w", s.dialect.Name, err)
		}
		if err := snapshot.DecodeBucket(bucket, payload); err != nil {
			return fmt.Errorf("%s: %w", s.dialect.Name, err)
		}
		s.written[bucket] = payload
		found = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s: iterate state: %w", s.dialect.Name, err)
	}
	if found {
		s.ImportState(snapshot)
	}
	return nil
}

// RunInTransaction commits in memory, then flushes changed buckets. The
// flush ignores cancellation once memory has committed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.flush(context.WithoutCancel(ctx)); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Store) flush(ctx context.Context) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buckets, err := s.ExportState().EncodeBuckets()
	if err != nil {
		return fmt.Errorf("%s: %w", s.dialect.Name, err)
	}
	var dirty []string
	for _, bucket := range memory.Buckets {
		if prev, ok := s.written[bucket]; !ok || !bytes.Equal(prev, buckets[bucket]) {
			dirty = append(dirty, bucket)
		}
	}
	if len(dirty) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.dialect.Name, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range dirty {
		if _, err := tx.ExecContext(ctx, s.dialect.Upsert, bucket, buckets[bucket]); err != nil {
			return fmt.Errorf("%s: upsert %s: %w", s.dialect.Name, bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.dialect.Name, err)
	}
	for _, bucket := range dirty {
		s.written[bucket] = buckets[bucket]
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for tests.
func (s *Store) DB() *sql.DB { return s.db }
