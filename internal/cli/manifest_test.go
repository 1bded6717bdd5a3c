package cli

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writeTestPNG writes a small gray PNG for manifest tests.
func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func TestManifestFromDir(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "b.png"), 8, 8)
	writeTestPNG(t, filepath.Join(dir, "a.png"), 8, 8)
	writeTestPNG(t, filepath.Join(dir, "c.PNG"), 8, 8)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := manifestFromDir(dir)
	if err != nil {
		t.Fatalf("manifestFromDir() error: %v", err)
	}

	if len(m.Frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(m.Frames))
	}

	// Name order, keys 1..n
	wantFiles := []string{"a.png", "b.png", "c.PNG"}
	for i, f := range m.Frames {
		if f.Key != i+1 {
			t.Errorf("frame %d key = %d, want %d", i, f.Key, i+1)
		}
		if filepath.Base(f.File) != wantFiles[i] {
			t.Errorf("frame %d file = %q, want %q", i, filepath.Base(f.File), wantFiles[i])
		}
	}
}

func TestManifestFromDirEmpty(t *testing.T) {
	if _, err := manifestFromDir(t.TempDir()); err == nil {
		t.Error("manifestFromDir() should reject a directory with no PNGs")
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "open.png"), 8, 8)
	writeTestPNG(t, filepath.Join(dir, "closed.png"), 8, 8)

	path := filepath.Join(dir, "frames.toml")
	content := `clear_key = 9
full_key = 10

[[frames]]
key = 3
file = "open.png"

[[frames]]
key = 7
file = "closed.png"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := loadManifest(path)
	if err != nil {
		t.Fatalf("loadManifest() error: %v", err)
	}

	if m.ClearKey != 9 || m.FullKey != 10 {
		t.Errorf("keys = %d/%d, want 9/10", m.ClearKey, m.FullKey)
	}
	if len(m.Frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(m.Frames))
	}
	if m.Frames[0].Key != 3 || m.Frames[1].Key != 7 {
		t.Errorf("frame keys = %d, %d", m.Frames[0].Key, m.Frames[1].Key)
	}
	// Relative paths resolved against the manifest directory
	if m.Frames[0].File != filepath.Join(dir, "open.png") {
		t.Errorf("frame file = %q, want resolved path", m.Frames[0].File)
	}
}

func TestLoadManifestNoFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.toml")
	if err := os.WriteFile(path, []byte("clear_key = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadManifest(path); err == nil {
		t.Error("loadManifest() should reject a manifest with no frames")
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.toml")
	content := `[[frames]]
key = 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadManifest(path); err == nil {
		t.Error("loadManifest() should reject a frame with no file")
	}
}

func TestLoadFramesDispatch(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "a.png"), 8, 8)

	// Directory source
	m, err := loadFrames(dir)
	if err != nil {
		t.Fatalf("loadFrames(dir) error: %v", err)
	}
	if len(m.Frames) != 1 {
		t.Errorf("got %d frames, want 1", len(m.Frames))
	}

	// Missing source
	if _, err := loadFrames(filepath.Join(dir, "gone")); err == nil {
		t.Error("loadFrames() should fail for a missing source")
	}
}

func TestProbeFrameSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	writeTestPNG(t, path, 24, 16)

	w, h, err := probeFrameSize(path)
	if err != nil {
		t.Fatalf("probeFrameSize() error: %v", err)
	}
	if w != 24 || h != 16 {
		t.Errorf("probeFrameSize() = %dx%d, want 24x16", w, h)
	}

	if _, _, err := probeFrameSize(filepath.Join(dir, "gone.png")); err == nil {
		t.Error("probeFrameSize() should fail for a missing file")
	}
}
