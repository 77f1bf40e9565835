// Package domain defines the persistent entities, value types, and rule
// evaluation primitives used by metacore.
package domain

import (
	"slices"
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityTable identifies a metadata table record.
	EntityTable EntityType = "table"
	// EntityColumn identifies a metadata column record.
	EntityColumn EntityType = "column"
	// EntityPool identifies a sample pool record.
	EntityPool EntityType = "pool"
	// EntityPermission identifies a permission grant.
	EntityPermission EntityType = "permission"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Cell values with special meaning in imported rows.
const (
	ValueNotApplicable = "not applicable"
	ValueNotAvailable  = "not available"
	PoolMarkerPooled   = "pooled"
	PoolMarkerNot      = "not pooled"
	PoolMarkerIndep    = "independent"
	ReferencePrefix    = "SN="
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Table is a sample-metadata table: a set of columns over SampleCount samples
// plus the pools derived from them.
type Table struct {
	Base
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	SampleCount      int    `json:"sample_count"`
	Owner            Owner  `json:"owner"`
	PooledColumn     string `json:"pooled_column,omitempty"`
	SourceNameColumn string `json:"source_name_column,omitempty"`
}

// Modifier is an exception to a column's default value covering the samples
// in its encoded range set.
type Modifier struct {
	Value   string `json:"value"`
	Samples string `json:"samples"`
}

// Column holds one value per sample, stored as a default plus modifiers.
type Column struct {
	Base
	TableID      string     `json:"table_id"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Position     int        `json:"position"`
	Hidden       bool       `json:"hidden"`
	DefaultValue string     `json:"default_value"`
	Modifiers    []Modifier `json:"modifiers"`
	SampleCount  int        `json:"sample_count"`
}

// Clone returns a deep copy of the column.
func (c Column) Clone() Column {
	cp := c
	cp.Modifiers = slices.Clone(c.Modifiers)
	return cp
}

// PoolColumn mirrors a visible parent column for per-pool display.
type PoolColumn struct {
	ParentColumnID string `json:"parent_column_id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Position       int    `json:"position"`
	Value          string `json:"value"`
}

// Pool groups samples that were physically combined before or during an assay.
type Pool struct {
	Base
	TableID                     string       `json:"table_id"`
	Name                        string       `json:"name"`
	PooledOnlySamples           []int        `json:"pooled_only_samples"`
	PooledAndIndependentSamples []int        `json:"pooled_and_independent_samples"`
	IsReference                 bool         `json:"is_reference"`
	SDRFValue                   string       `json:"sdrf_value"`
	Columns                     []PoolColumn `json:"columns,omitempty"`
}

// Clone returns a deep copy of the pool.
func (p Pool) Clone() Pool {
	cp := p
	cp.PooledOnlySamples = slices.Clone(p.PooledOnlySamples)
	cp.PooledAndIndependentSamples = slices.Clone(p.PooledAndIndependentSamples)
	cp.Columns = slices.Clone(p.Columns)
	return cp
}

// Members returns every sample in the pool in ascending order.
func (p Pool) Members() []int {
	out := make([]int, 0, len(p.PooledOnlySamples)+len(p.PooledAndIndependentSamples))
	out = append(out, p.PooledOnlySamples...)
	out = append(out, p.PooledAndIndependentSamples...)
	slices.Sort(out)
	return slices.Compact(out)
}

// SameComposition reports whether both pools hold identical sample sets.
func (p Pool) SameComposition(other Pool) bool {
	return slices.Equal(p.PooledOnlySamples, other.PooledOnlySamples) &&
		slices.Equal(p.PooledAndIndependentSamples, other.PooledAndIndependentSamples)
}

// NameEquals compares pool names case-insensitively.
func (p Pool) NameEquals(name string) bool {
	return strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name))
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
