// Package memory provides an in-memory implementation of the metacore
// persistence store used for tests and ephemeral environments.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"metacore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Table aliases domain.Table for in-memory persistence operations.
	Table = domain.Table
	// Column aliases domain.Column.
	Column = domain.Column
	// Pool aliases domain.Pool.
	Pool = domain.Pool
	// Permission aliases domain.Permission.
	Permission = domain.Permission
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	tables      map[string]Table
	columns     map[string]Column
	pools       map[string]Pool
	permissions map[domain.PermissionKey]Permission
}

// Snapshot captures a point-in-time clone of the store state. Each field is
// persisted as one bucket by the durable backends.
type Snapshot struct {
	Tables      map[string]Table  `json:"tables"`
	Columns     map[string]Column `json:"columns"`
	Pools       map[string]Pool   `json:"pools"`
	Permissions []Permission      `json:"permissions"`
}

func newMemoryState() memoryState {
	return memoryState{
		tables:      make(map[string]Table),
		columns:     make(map[string]Column),
		pools:       make(map[string]Pool),
		permissions: make(map[domain.PermissionKey]Permission),
	}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		tables:      make(map[string]Table, len(s.tables)),
		columns:     make(map[string]Column, len(s.columns)),
		pools:       make(map[string]Pool, len(s.pools)),
		permissions: make(map[domain.PermissionKey]Permission, len(s.permissions)),
	}
	for k, v := range s.tables {
		out.tables[k] = v
	}
	for k, v := range s.columns {
		out.columns[k] = v.Clone()
	}
	for k, v := range s.pools {
		out.pools[k] = v.Clone()
	}
	for k, v := range s.permissions {
		out.permissions[k] = v
	}
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cp := state.clone()
	perms := make([]Permission, 0, len(cp.permissions))
	for _, p := range cp.permissions {
		perms = append(perms, p)
	}
	sortPermissions(perms)
	return Snapshot{Tables: cp.tables, Columns: cp.columns, Pools: cp.pools, Permissions: perms}
}

// memoryStateFromSnapshot drops orphaned columns and pools whose table no
// longer exists so a hand-edited snapshot cannot resurrect them.
func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Tables {
		state.tables[k] = v
	}
	for k, v := range s.Columns {
		if _, ok := state.tables[v.TableID]; ok {
			state.columns[k] = v.Clone()
		}
	}
	for k, v := range s.Pools {
		if _, ok := state.tables[v.TableID]; ok {
			state.pools[k] = v.Clone()
		}
	}
	for _, p := range s.Permissions {
		state.permissions[p.Key()] = p
	}
	return state
}

func (s memoryState) listTables() []Table {
	out := make([]Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Table) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (s memoryState) listColumns(tableID string) []Column {
	out := make([]Column, 0)
	for _, c := range s.columns {
		if c.TableID == tableID {
			out = append(out, c.Clone())
		}
	}
	slices.SortFunc(out, func(a, b Column) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (s memoryState) listPools(tableID string) []Pool {
	out := make([]Pool, 0)
	for _, p := range s.pools {
		if p.TableID == tableID {
			out = append(out, p.Clone())
		}
	}
	slices.SortFunc(out, func(a, b Pool) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (s memoryState) listPermissions() []Permission {
	out := make([]Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, p)
	}
	sortPermissions(out)
	return out
}

func sortPermissions(perms []Permission) {
	slices.SortFunc(perms, func(a, b Permission) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.ResourceID, b.ResourceID),
			cmp.Compare(a.User, b.User),
		)
	})
}

// Store provides an in-memory transactional store for metadata tables.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListTables() []Table { return v.state.listTables() }

func (v transactionView) ListColumns(tableID string) []Column { return v.state.listColumns(tableID) }

func (v transactionView) ListPools(tableID string) []Pool { return v.state.listPools(tableID) }

func (v transactionView) ListPermissions() []Permission { return v.state.listPermissions() }

func (v transactionView) Permissions() domain.PermissionTable {
	return domain.NewPermissionTable(v.state.listPermissions())
}

func (v transactionView) FindTable(id string) (Table, bool) {
	t, ok := v.state.tables[id]
	return t, ok
}

func (v transactionView) FindColumn(id string) (Column, bool) {
	c, ok := v.state.columns[id]
	if !ok {
		return Column{}, false
	}
	return c.Clone(), true
}

func (v transactionView) FindPool(id string) (Pool, bool) {
	p, ok := v.state.pools[id]
	if !ok {
		return Pool{}, false
	}
	return p.Clone(), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the committed state only when fn succeeds, the context is
// still live and no blocking rule fires.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) FindTable(id string) (Table, bool) {
	return transactionView{state: &tx.state}.FindTable(id)
}

func (tx *transaction) FindColumn(id string) (Column, bool) {
	return transactionView{state: &tx.state}.FindColumn(id)
}

func (tx *transaction) FindPool(id string) (Pool, bool) {
	return transactionView{state: &tx.state}.FindPool(id)
}

func (tx *transaction) ListColumns(tableID string) []Column { return tx.state.listColumns(tableID) }

func (tx *transaction) ListPools(tableID string) []Pool { return tx.state.listPools(tableID) }

func (tx *transaction) Permissions() domain.PermissionTable {
	return domain.NewPermissionTable(tx.state.listPermissions())
}

// CreateTable stores a new table within the transaction.
func (tx *transaction) CreateTable(t Table) (Table, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.tables[t.ID]; exists {
		return Table{}, fmt.Errorf("table %q already exists", t.ID)
	}
	if t.SampleCount < 0 {
		return Table{}, fmt.Errorf("table %q: negative sample count %d", t.Name, t.SampleCount)
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.tables[t.ID] = t
	tx.recordChange(Change{Entity: domain.EntityTable, Action: domain.ActionCreate, After: t})
	return t, nil
}

// UpdateTable mutates a table using the provided mutator function.
func (tx *transaction) UpdateTable(id string, mutator func(*Table) error) (Table, error) {
	current, ok := tx.state.tables[id]
	if !ok {
		return Table{}, domain.ErrNotFound{Entity: domain.EntityTable, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Table{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.tables[id] = current
	tx.recordChange(Change{Entity: domain.EntityTable, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteTable removes a table together with its columns, pools and grants.
func (tx *transaction) DeleteTable(id string) error {
	current, ok := tx.state.tables[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityTable, ID: id}
	}
	for cid, c := range tx.state.columns {
		if c.TableID == id {
			delete(tx.state.columns, cid)
			tx.recordChange(Change{Entity: domain.EntityColumn, Action: domain.ActionDelete, Before: c})
		}
	}
	for pid, p := range tx.state.pools {
		if p.TableID == id {
			delete(tx.state.pools, pid)
			tx.recordChange(Change{Entity: domain.EntityPool, Action: domain.ActionDelete, Before: p})
		}
	}
	for key := range tx.state.permissions {
		if key.Kind == domain.ResourceTable && key.ResourceID == id {
			delete(tx.state.permissions, key)
		}
	}
	delete(tx.state.tables, id)
	tx.recordChange(Change{Entity: domain.EntityTable, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateColumn stores a new column; its table must exist.
func (tx *transaction) CreateColumn(c Column) (Column, error) {
	if _, ok := tx.state.tables[c.TableID]; !ok {
		return Column{}, domain.ErrNotFound{Entity: domain.EntityTable, ID: c.TableID}
	}
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.columns[c.ID]; exists {
		return Column{}, fmt.Errorf("column %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.columns[c.ID] = c.Clone()
	tx.recordChange(Change{Entity: domain.EntityColumn, Action: domain.ActionCreate, After: c.Clone()})
	return c.Clone(), nil
}

// UpdateColumn mutates a column using the provided mutator function.
func (tx *transaction) UpdateColumn(id string, mutator func(*Column) error) (Column, error) {
	current, ok := tx.state.columns[id]
	if !ok {
		return Column{}, domain.ErrNotFound{Entity: domain.EntityColumn, ID: id}
	}
	before := current.Clone()
	current = current.Clone()
	if err := mutator(&current); err != nil {
		return Column{}, err
	}
	current.ID = id
	current.TableID = before.TableID
	current.UpdatedAt = tx.now
	tx.state.columns[id] = current.Clone()
	tx.recordChange(Change{Entity: domain.EntityColumn, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current, nil
}

// DeleteColumn removes a column from the transaction state.
func (tx *transaction) DeleteColumn(id string) error {
	current, ok := tx.state.columns[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityColumn, ID: id}
	}
	delete(tx.state.columns, id)
	tx.recordChange(Change{Entity: domain.EntityColumn, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreatePool stores a new pool; its table must exist.
func (tx *transaction) CreatePool(p Pool) (Pool, error) {
	if _, ok := tx.state.tables[p.TableID]; !ok {
		return Pool{}, domain.ErrNotFound{Entity: domain.EntityTable, ID: p.TableID}
	}
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.pools[p.ID]; exists {
		return Pool{}, fmt.Errorf("pool %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.pools[p.ID] = p.Clone()
	tx.recordChange(Change{Entity: domain.EntityPool, Action: domain.ActionCreate, After: p.Clone()})
	return p.Clone(), nil
}

// UpdatePool mutates a pool using the provided mutator function.
func (tx *transaction) UpdatePool(id string, mutator func(*Pool) error) (Pool, error) {
	current, ok := tx.state.pools[id]
	if !ok {
		return Pool{}, domain.ErrNotFound{Entity: domain.EntityPool, ID: id}
	}
	before := current.Clone()
	current = current.Clone()
	if err := mutator(&current); err != nil {
		return Pool{}, err
	}
	current.ID = id
	current.TableID = before.TableID
	current.UpdatedAt = tx.now
	tx.state.pools[id] = current.Clone()
	tx.recordChange(Change{Entity: domain.EntityPool, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current, nil
}

// DeletePool removes a pool from the transaction state.
func (tx *transaction) DeletePool(id string) error {
	current, ok := tx.state.pools[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityPool, ID: id}
	}
	delete(tx.state.pools, id)
	tx.recordChange(Change{Entity: domain.EntityPool, Action: domain.ActionDelete, Before: current})
	return nil
}

// GrantPermission upserts a permission row.
func (tx *transaction) GrantPermission(p Permission) error {
	if p.User == "" || p.ResourceID == "" {
		return fmt.Errorf("permission requires user and resource id")
	}
	key := p.Key()
	before, existed := tx.state.permissions[key]
	tx.state.permissions[key] = p
	change := Change{Entity: domain.EntityPermission, Action: domain.ActionCreate, After: p}
	if existed {
		change.Action = domain.ActionUpdate
		change.Before = before
	}
	tx.recordChange(change)
	return nil
}

// RevokePermission removes a permission row.
func (tx *transaction) RevokePermission(key domain.PermissionKey) error {
	current, ok := tx.state.permissions[key]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityPermission, ID: key.ResourceID + "/" + key.User}
	}
	delete(tx.state.permissions, key)
	tx.recordChange(Change{Entity: domain.EntityPermission, Action: domain.ActionDelete, Before: current})
	return nil
}

// Read helpers ---------------------------------------------------------------

// GetTable retrieves a table by ID from committed state.
func (s *Store) GetTable(id string) (Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.tables[id]
	return t, ok
}

// ListTables returns all tables from committed state.
func (s *Store) ListTables() []Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listTables()
}

// ListColumns returns the columns of a table ordered by position.
func (s *Store) ListColumns(tableID string) []Column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listColumns(tableID)
}

// ListPools returns the pools of a table ordered by name.
func (s *Store) ListPools(tableID string) []Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listPools(tableID)
}
