package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the given content, creating parent
// directories as needed.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteSprite drops a placeholder sprite for the item under dir and returns
// its path.
func WriteSprite(t testing.TB, dir, itemID string) string {
	t.Helper()

	path := filepath.Join(dir, itemID+".png")
	WriteFile(t, path, []byte("png-"+itemID))
	return path
}
