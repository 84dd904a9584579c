package blob

import (
	"testing"

	"poolcore/testutil"
)

func TestBlobBackendsImportedThroughFactory(t *testing.T) {
	allowed := func(path string) bool {
		return path == "poolcore/internal/blob" || testutil.Under("poolcore/internal/infra/blob")(path)
	}
	testutil.AssertImportBoundary(t, testutil.Under("poolcore/internal/infra/blob"), allowed,
		"select blob backends with blob.Open")
}

func TestPlanStoreBackendsImportedThroughOpen(t *testing.T) {
	backends := func(path string) bool {
		return testutil.Under("poolcore/internal/infra/persistence")(path) && path != "poolcore/internal/infra/persistence"
	}
	allowed := func(path string) bool {
		return path == "poolcore/internal/infra/persistence"
	}
	testutil.AssertImportBoundary(t, backends, allowed, "select plan stores with persistence.Open")
}
