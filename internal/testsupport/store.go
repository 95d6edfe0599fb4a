package testsupport

import (
	"context"
	"testing"

	"posterhelper/internal/config"
	"posterhelper/internal/mappings"
)

// MustOpenMappings opens the mapping store for tests and registers cleanup.
func MustOpenMappings(t testing.TB, cfg *config.Config) *mappings.Store {
	t.Helper()

	store, err := mappings.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("mappings.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
