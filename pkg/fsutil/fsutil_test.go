package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDirRespectsXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")

	dir, err := DefaultDir()
	if err != nil {
		t.Fatalf("DefaultDir() error: %v", err)
	}
	if dir != filepath.Join("/custom/cache", appName) {
		t.Errorf("DefaultDir() = %q", dir)
	}
}

func TestDefaultDirFallsBackToHome(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")

	dir, err := DefaultDir()
	if err != nil {
		t.Fatalf("DefaultDir() error: %v", err)
	}
	if !strings.Contains(dir, ".cache") || !strings.HasSuffix(dir, appName) {
		t.Errorf("DefaultDir() = %q, want ~/.cache/%s", dir, appName)
	}
}

func TestResolvePath(t *testing.T) {
	path, err := ResolvePath("mask-64x64.png", "/atlases")
	if err != nil {
		t.Fatalf("ResolvePath() error: %v", err)
	}
	if path != "/atlases/mask-64x64.png" {
		t.Errorf("ResolvePath() = %q", path)
	}
}

func TestExistsAndRemove(t *testing.T) {
	dir := t.TempDir()
	name := "mask-32x32.png"

	if Exists(name, dir) {
		t.Error("Exists() = true before file created")
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !Exists(name, dir) {
		t.Error("Exists() = false after file created")
	}

	if err := Remove(path); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if Exists(name, dir) {
		t.Error("Exists() = true after Remove")
	}

	// Removing a missing file is not an error.
	if err := Remove(path); err != nil {
		t.Errorf("Remove(missing) error: %v", err)
	}
}

func TestExistsRejectsDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if Exists("sub", dir) {
		t.Error("Exists() = true for a directory")
	}
}

func TestTempNameUnique(t *testing.T) {
	a := TempName(".png")
	b := TempName(".png")
	if a == b {
		t.Error("TempName() returned duplicate names")
	}
	if !strings.HasPrefix(a, "snap-") || !strings.HasSuffix(a, ".png") {
		t.Errorf("TempName() = %q, want snap-*.png", a)
	}
}
