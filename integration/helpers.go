//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hochfrequenz/process-eta/internal/loader"
)

// RecordsDir returns the directory holding the YAML record fixtures
func RecordsDir(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(filename), "fixtures", "records")
}

// TempDBPath returns a database path inside a fresh temp directory
func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "processes.db")
}

// TempConfigPath returns a config path inside a fresh temp directory
func TempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.toml")
}

// CopyRecordsToTemp copies the YAML record fixtures into a writable records
// directory. Anything that is not a record file is left behind.
func CopyRecordsToTemp(t *testing.T) string {
	t.Helper()
	files, err := loader.RecordFiles(RecordsDir(t))
	if err != nil {
		t.Fatalf("Failed to list record fixtures: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("No record fixtures found")
	}

	dst := filepath.Join(t.TempDir(), "records")
	if err := os.MkdirAll(dst, 0755); err != nil {
		t.Fatalf("Failed to create records dir: %v", err)
	}

	for _, src := range files {
		data, err := os.ReadFile(src)
		if err != nil {
			t.Fatalf("Failed to read %s: %v", src, err)
		}
		if err := os.WriteFile(filepath.Join(dst, filepath.Base(src)), data, 0644); err != nil {
			t.Fatalf("Failed to copy %s: %v", src, err)
		}
	}

	return dst
}
