package domain

import "fmt"

// OwnerKind enumerates the entities that can own a metadata table.
type OwnerKind string

// Closed set of table owners; permission dispatch switches on these.
const (
	OwnerUser          OwnerKind = "user"
	OwnerLabGroup      OwnerKind = "lab_group"
	OwnerInstrumentJob OwnerKind = "instrument_job"
)

// ParseOwnerKind validates a textual owner kind.
func ParseOwnerKind(s string) (OwnerKind, error) {
	switch k := OwnerKind(s); k {
	case OwnerUser, OwnerLabGroup, OwnerInstrumentJob:
		return k, nil
	default:
		return "", fmt.Errorf("unknown owner kind %q", s)
	}
}

// Owner identifies the entity a table belongs to.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

// ResourceKind tags the kind of resource a permission row refers to.
type ResourceKind string

const (
	ResourceTable         ResourceKind = "metadata_table"
	ResourceLabGroup      ResourceKind = "lab_group"
	ResourceInstrumentJob ResourceKind = "instrument_job"
)

// PermissionLevel orders access capabilities; higher levels imply lower ones.
type PermissionLevel int

const (
	PermissionNone PermissionLevel = iota
	PermissionView
	PermissionEdit
	PermissionAdmin
)

func (l PermissionLevel) String() string {
	switch l {
	case PermissionView:
		return "view"
	case PermissionEdit:
		return "edit"
	case PermissionAdmin:
		return "admin"
	default:
		return "none"
	}
}

// ParsePermissionLevel converts a textual level.
func ParsePermissionLevel(s string) (PermissionLevel, error) {
	switch s {
	case "none":
		return PermissionNone, nil
	case "view":
		return PermissionView, nil
	case "edit":
		return PermissionEdit, nil
	case "admin":
		return PermissionAdmin, nil
	default:
		return PermissionNone, fmt.Errorf("unknown permission level %q", s)
	}
}

// Permission is one row of the shared permission table.
type Permission struct {
	Kind       ResourceKind    `json:"kind"`
	ResourceID string          `json:"resource_id"`
	User       string          `json:"user"`
	Level      PermissionLevel `json:"level"`
}

// Key returns the unique lookup key of the row.
func (p Permission) Key() PermissionKey {
	return PermissionKey{Kind: p.Kind, ResourceID: p.ResourceID, User: p.User}
}

// PermissionKey addresses a permission row.
type PermissionKey struct {
	Kind       ResourceKind
	ResourceID string
	User       string
}

// PermissionTable is the in-memory view of every permission row.
type PermissionTable struct {
	levels map[PermissionKey]PermissionLevel
}

// NewPermissionTable indexes rows by key; later rows win.
func NewPermissionTable(rows []Permission) PermissionTable {
	levels := make(map[PermissionKey]PermissionLevel, len(rows))
	for _, row := range rows {
		levels[row.Key()] = row.Level
	}
	return PermissionTable{levels: levels}
}

// Level returns the granted level, PermissionNone when absent.
func (t PermissionTable) Level(kind ResourceKind, id, user string) PermissionLevel {
	return t.levels[PermissionKey{Kind: kind, ResourceID: id, User: user}]
}

// Resource is the capability surface every access-controlled entity exposes.
type Resource interface {
	CanView(perms PermissionTable, user string) bool
	CanEdit(perms PermissionTable, user string) bool
	CanDelete(perms PermissionTable, user string) bool
}

var _ Resource = Table{}

// AccessLevel combines direct grants on the table with the level inherited
// from its owner.
func (t Table) AccessLevel(perms PermissionTable, user string) PermissionLevel {
	if user == "" {
		return PermissionNone
	}
	level := perms.Level(ResourceTable, t.ID, user)
	var inherited PermissionLevel
	switch t.Owner.Kind {
	case OwnerUser:
		if t.Owner.ID == user {
			inherited = PermissionAdmin
		}
	case OwnerLabGroup:
		inherited = perms.Level(ResourceLabGroup, t.Owner.ID, user)
	case OwnerInstrumentJob:
		// Job staff edit metadata but never delete the job's table.
		inherited = min(perms.Level(ResourceInstrumentJob, t.Owner.ID, user), PermissionEdit)
	}
	return max(level, inherited)
}

// CanView reports whether user may read the table, its columns and pools.
func (t Table) CanView(perms PermissionTable, user string) bool {
	return t.AccessLevel(perms, user) >= PermissionView
}

// CanEdit reports whether user may change values, columns or pools.
func (t Table) CanEdit(perms PermissionTable, user string) bool {
	return t.AccessLevel(perms, user) >= PermissionEdit
}

// CanDelete reports whether user may delete the table.
func (t Table) CanDelete(perms PermissionTable, user string) bool {
	return t.AccessLevel(perms, user) >= PermissionAdmin
}
