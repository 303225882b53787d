package memory

import (
	"testing"

	"github.com/kilianp07/dockyard/core/store"
	"github.com/kilianp07/dockyard/core/store/storetest"
)

func TestMemoryStoreConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}
