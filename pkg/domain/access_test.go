package domain

import "testing"

func TestTableAccessDispatchesOnOwnerKind(t *testing.T) {
	perms := NewPermissionTable([]Permission{
		{Kind: ResourceLabGroup, ResourceID: "lab-1", User: "bea", Level: PermissionAdmin},
		{Kind: ResourceLabGroup, ResourceID: "lab-1", User: "cal", Level: PermissionView},
		{Kind: ResourceInstrumentJob, ResourceID: "job-9", User: "dee", Level: PermissionAdmin},
		{Kind: ResourceTable, ResourceID: "t-user", User: "eli", Level: PermissionEdit},
	})

	userTable := Table{Base: Base{ID: "t-user"}, Owner: Owner{Kind: OwnerUser, ID: "ana"}}
	groupTable := Table{Base: Base{ID: "t-group"}, Owner: Owner{Kind: OwnerLabGroup, ID: "lab-1"}}
	jobTable := Table{Base: Base{ID: "t-job"}, Owner: Owner{Kind: OwnerInstrumentJob, ID: "job-9"}}

	cases := []struct {
		name               string
		table              Table
		user               string
		view, edit, delete bool
	}{
		{"owner user", userTable, "ana", true, true, true},
		{"direct grant", userTable, "eli", true, true, false},
		{"stranger", userTable, "zed", false, false, false},
		{"anonymous", userTable, "", false, false, false},
		{"group admin", groupTable, "bea", true, true, true},
		{"group viewer", groupTable, "cal", true, false, false},
		{"job staff capped at edit", jobTable, "dee", true, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.table.CanView(perms, tc.user); got != tc.view {
				t.Fatalf("CanView = %v, want %v", got, tc.view)
			}
			if got := tc.table.CanEdit(perms, tc.user); got != tc.edit {
				t.Fatalf("CanEdit = %v, want %v", got, tc.edit)
			}
			if got := tc.table.CanDelete(perms, tc.user); got != tc.delete {
				t.Fatalf("CanDelete = %v, want %v", got, tc.delete)
			}
		})
	}
}

func TestParseOwnerKindAndLevel(t *testing.T) {
	if _, err := ParseOwnerKind("lab_group"); err != nil {
		t.Fatalf("parse owner: %v", err)
	}
	if _, err := ParseOwnerKind("project"); err == nil {
		t.Fatalf("expected unknown owner kind error")
	}
	level, err := ParsePermissionLevel("edit")
	if err != nil || level != PermissionEdit || level.String() != "edit" {
		t.Fatalf("parse level: %v %v", level, err)
	}
}
