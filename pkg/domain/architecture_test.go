package domain

import (
	"testing"

	"metacore/testutil"
)

func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must not depend on implementation packages")
}

func TestDomainStaysDriverFree(t *testing.T) {
	testutil.AssertNoTransitiveImports(t, "metacore/pkg/domain", testutil.DriverImportForbidden, "storage drivers belong in internal/infra")
}
