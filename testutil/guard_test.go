package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		pred func(string) bool
		in   string
		want bool
	}{
		{InternalImportForbidden, "metacore/internal/core", true},
		{InternalImportForbidden, "metacore/pkg/rangeset", false},
		{ThirdPartyImportForbidden, "go.uber.org/zap", true},
		{ThirdPartyImportForbidden, "github.com/spf13/cobra", true},
		{ThirdPartyImportForbidden, "metacore/pkg/domain", false},
		{ThirdPartyImportForbidden, "encoding/json", false},
		{DriverImportForbidden, "modernc.org/sqlite", true},
		{DriverImportForbidden, "github.com/jackc/pgx/v5/stdlib", true},
		{DriverImportForbidden, "github.com/aws/aws-sdk-go-v2/service/s3", true},
		{DriverImportForbidden, "database/sql", true},
		{DriverImportForbidden, "database/sqlx", false},
	}
	for _, c := range cases {
		if got := c.pred(c.in); got != c.want {
			t.Errorf("predicate(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func writePackage(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), []byte("package tmp\nimport _ \"metacore/internal/core\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return dir
}

func TestDirectImportViolations(t *testing.T) {
	dir := writePackage(t, "package tmp\nimport (\n\t\"fmt\"\n\t_ \"metacore/internal/core\"\n)\nfunc X() { fmt.Println(1) }\n")

	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "metacore/internal/core (in x.go)" {
		t.Fatalf("unexpected violations: %v", viols)
	}

	AssertNoDirectImports(t, dir, DriverImportForbidden, "no drivers")
}

func TestDirectImportViolationsMissingDir(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "absent"), InternalImportForbidden); err == nil {
		t.Fatal("expected error for missing dir")
	}
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestFailIfViolations(t *testing.T) {
	r := &recordingFatal{}
	failIfViolations(r, "direct imports", "reason", nil)
	if r.msg != "" {
		t.Fatalf("unexpected failure: %s", r.msg)
	}
	failIfViolations(r, "direct imports", "reason", []string{"a", "b"})
	if r.msg != "forbidden direct imports detected (reason):\na\nb" {
		t.Fatalf("unexpected message %q", r.msg)
	}
}
