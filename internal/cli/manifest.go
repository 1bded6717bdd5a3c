package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest describes the frames to pack into one atlas. It is either loaded
// from a TOML file or synthesized from a directory of PNG files.
type Manifest struct {
	// ClearKey and FullKey designate the hide-all and show-all frame keys.
	ClearKey int `toml:"clear_key"`
	FullKey  int `toml:"full_key"`

	Frames []ManifestFrame `toml:"frames"`
}

// ManifestFrame maps one frame key to its source image file.
type ManifestFrame struct {
	Key  int    `toml:"key"`
	File string `toml:"file"`
}

// loadManifest reads a TOML manifest. Relative frame paths are resolved
// against the manifest's directory.
func loadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Frames) == 0 {
		return nil, fmt.Errorf("manifest %s lists no frames", path)
	}

	base := filepath.Dir(path)
	for i, f := range m.Frames {
		if f.File == "" {
			return nil, fmt.Errorf("manifest %s: frame %d has no file", path, i)
		}
		if !filepath.IsAbs(f.File) {
			m.Frames[i].File = filepath.Join(base, f.File)
		}
	}
	return &m, nil
}

// manifestFromDir synthesizes a manifest from a directory of PNG files.
// Files are taken in name order and keyed 1..n.
func manifestFromDir(dir string) (*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no PNG frames in %s", dir)
	}
	sort.Strings(files)

	m := &Manifest{Frames: make([]ManifestFrame, len(files))}
	for i, name := range files {
		m.Frames[i] = ManifestFrame{Key: i + 1, File: filepath.Join(dir, name)}
	}
	return m, nil
}

// loadFrames resolves the build source: a TOML manifest or a frame directory.
func loadFrames(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("frame source: %w", err)
	}
	if info.IsDir() {
		return manifestFromDir(path)
	}
	return loadManifest(path)
}
