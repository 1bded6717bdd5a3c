package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRunBuildFromDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	frames := t.TempDir()
	writeTestPNG(t, filepath.Join(frames, "a.png"), 8, 8)
	writeTestPNG(t, filepath.Join(frames, "b.png"), 8, 8)
	writeTestPNG(t, filepath.Join(frames, "c.png"), 8, 8)

	atlasDir := t.TempDir()
	c := New(&bytes.Buffer{}, LogInfo)
	ctx := withLogger(context.Background(), c.Logger)

	opts := buildOpts{dir: atlasDir, canvasW: 256, canvasH: 256}
	if err := c.runBuild(ctx, frames, opts); err != nil {
		t.Fatalf("runBuild() error: %v", err)
	}

	// Frame shape probed from the first PNG
	path := filepath.Join(atlasDir, "mask-8x8.png")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("atlas image not written: %v", err)
	}
}

func TestRunBuildDataOnly(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	frames := t.TempDir()
	writeTestPNG(t, filepath.Join(frames, "a.png"), 8, 8)

	atlasDir := t.TempDir()
	c := New(&bytes.Buffer{}, LogInfo)
	ctx := withLogger(context.Background(), c.Logger)

	opts := buildOpts{dir: atlasDir, canvasW: 256, canvasH: 256, dataOnly: true}
	if err := c.runBuild(ctx, frames, opts); err != nil {
		t.Fatalf("runBuild() error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(atlasDir, "mask-8x8.png")); !os.IsNotExist(err) {
		t.Error("data-only build should not write an atlas image")
	}
}

func TestRunBuildMissingSource(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	c := New(&bytes.Buffer{}, LogInfo)
	ctx := withLogger(context.Background(), c.Logger)

	opts := buildOpts{dir: t.TempDir(), canvasW: 256, canvasH: 256}
	if err := c.runBuild(ctx, filepath.Join(t.TempDir(), "gone"), opts); err == nil {
		t.Error("runBuild() should fail for a missing frame source")
	}
}
