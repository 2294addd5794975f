package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"drover/internal/config"
)

// WriteProject materializes a drover.toml with the given content in a
// fresh temp root and loads it.
func WriteProject(t testing.TB, content string) *config.Project {
	t.Helper()
	return WriteProjectAt(t, t.TempDir(), content)
}

// WriteProjectAt writes a drover.toml into root and loads it.
func WriteProjectAt(t testing.TB, root, content string) *config.Project {
	t.Helper()

	if err := os.WriteFile(filepath.Join(root, config.TOMLFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write drover.toml: %v", err)
	}
	project, err := config.Load(root)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return project
}
