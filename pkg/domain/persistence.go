package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateTable(Table) (Table, error)
	UpdateTable(id string, mutator func(*Table) error) (Table, error)
	DeleteTable(id string) error
	CreateColumn(Column) (Column, error)
	UpdateColumn(id string, mutator func(*Column) error) (Column, error)
	DeleteColumn(id string) error
	CreatePool(Pool) (Pool, error)
	UpdatePool(id string, mutator func(*Pool) error) (Pool, error)
	DeletePool(id string) error
	GrantPermission(Permission) error
	RevokePermission(PermissionKey) error
	FindTable(id string) (Table, bool)
	FindColumn(id string) (Column, bool)
	FindPool(id string) (Pool, bool)
	ListColumns(tableID string) []Column
	ListPools(tableID string) []Pool
	Permissions() PermissionTable
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
	FindColumn(id string) (Column, bool)
	FindPool(id string) (Pool, bool)
	ListPermissions() []Permission
	Permissions() PermissionTable
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetTable(id string) (Table, bool)
	ListTables() []Table
	ListColumns(tableID string) []Column
	ListPools(tableID string) []Pool
}
