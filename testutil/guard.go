// Package testutil holds test helpers that enforce package boundaries:
// pkg/ stays free of internal/ code and of storage or cloud drivers.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// InternalImportForbidden matches any import path containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// ThirdPartyImportForbidden matches paths outside the standard library and
// the metacore module.
func ThirdPartyImportForbidden(path string) bool {
	if path == "metacore" || strings.HasPrefix(path, "metacore/") {
		return false
	}
	first, _, _ := strings.Cut(path, "/")
	return strings.Contains(first, ".")
}

var driverPrefixes = []string{
	"modernc.org/sqlite",
	"github.com/jackc/pgx",
	"github.com/aws/aws-sdk-go-v2",
	"database/sql",
}

// DriverImportForbidden matches database and cloud driver packages.
func DriverImportForbidden(path string) bool {
	for _, p := range driverPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// AssertNoDirectImports parses the non-test .go files in dir and fails if any
// import satisfies forbidden. Build tags are not evaluated.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfViolations(t, "direct imports", reason, viols)
}

// AssertNoTransitiveImports loads pattern with its dependency graph and fails
// if any reachable package satisfies forbidden.
func AssertNoTransitiveImports(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	viols, err := transitiveImportViolations(pattern, forbidden)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	failIfViolations(t, "transitive dependency", reason, viols)
}

// AssertImportedOnlyFrom fails if a package matched by pattern, tests
// included, imports target or one of its subpackages without satisfying
// allowed.
func AssertImportedOnlyFrom(t testing.TB, pattern, target string, allowed func(pkgPath string) bool) {
	t.Helper()
	viols, err := importerViolations(pattern, target, allowed)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	failIfViolations(t, "import of "+target, "only approved packages may import it", viols)
}

func importerViolations(pattern, target string, allowed func(pkgPath string) bool) ([]string, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		if allowed(pkg.PkgPath) {
			continue
		}
		for ip := range pkg.Imports {
			if ip == target || strings.HasPrefix(ip, target+"/") {
				seen[pkg.PkgPath+": "+ip] = struct{}{}
			}
		}
	}
	viols := make([]string, 0, len(seen))
	for v := range seen {
		viols = append(viols, v)
	}
	sort.Strings(viols)
	return viols, nil
}

func transitiveImportViolations(pattern string, forbidden func(path string) bool) ([]string, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	roots, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var viols []string
	var walk func(pkg *packages.Package)
	walk = func(pkg *packages.Package) {
		if seen[pkg.PkgPath] {
			return
		}
		seen[pkg.PkgPath] = true
		if forbidden(pkg.PkgPath) {
			viols = append(viols, pkg.PkgPath)
		}
		for _, dep := range pkg.Imports {
			walk(dep)
		}
	}
	for _, root := range roots {
		for _, dep := range root.Imports {
			walk(dep)
		}
	}
	sort.Strings(viols)
	return viols, nil
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, what, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden %s detected (%s):\n%s", what, reason, strings.Join(viols, "\n"))
	}
}
