package inmem_test

import (
	"testing"

	"github.com/becomeliminal/nim-memory/memory/store"
	"github.com/becomeliminal/nim-memory/memory/store/inmem"
	"github.com/becomeliminal/nim-memory/memory/store/storetest"
)

// Interface compliance (compile-time assertion)
var _ store.Backend = (*inmem.Backend)(nil)

func TestBackendConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		return inmem.New()
	})
}
