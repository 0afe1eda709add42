package testsupport

import (
	"path/filepath"
	"testing"

	"placeforge/internal/registry"
)

// OpenRegistry opens a registry store under a fresh temp directory and
// closes it when the test finishes.
func OpenRegistry(t testing.TB) *registry.Store {
	t.Helper()

	store, err := registry.Open(filepath.Join(t.TempDir(), "registry.json"))
	if err != nil {
		t.Fatalf("open registry store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close registry store: %v", err)
		}
	})
	return store
}
