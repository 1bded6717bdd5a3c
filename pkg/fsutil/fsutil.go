// Package fsutil implements the file service used by the atlas builder: path
// resolution against a base directory, existence checks, removal, and random
// unused filenames for renderer snapshots.
//
// All atlas files live under a single base directory. When no directory is
// given, the XDG cache location (~/.cache/maskatlas/) is used, so repeated
// builds with identical shape parameters resolve to the same file
// deterministically.
package fsutil

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// appName is used for the default cache directory.
const appName = "maskatlas"

// DefaultDir returns the default atlas directory using the XDG standard
// (~/.cache/maskatlas/). The directory is not created.
func DefaultDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// ResolvePath joins filename with dir. An empty dir falls back to the
// default atlas directory.
func ResolvePath(filename, dir string) (string, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return "", err
		}
		dir = d
	}
	return filepath.Join(dir, filename), nil
}

// Exists reports whether filename exists inside dir.
// Any stat error (permissions, missing directory) is treated as absent.
func Exists(filename, dir string) bool {
	path, err := ResolvePath(filename, dir)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Remove deletes the file at path. Removing a file that is already gone is
// not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// EnsureDir creates dir (and parents) if it does not exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// TempName generates a random unused filename with the given extension.
// Used for renderer snapshots when the caller supplies no name.
// The extension should include the leading dot (e.g. ".png").
func TempName(ext string) string {
	return "snap-" + uuid.NewString() + ext
}

// TempPath returns a random unused path in the system temp directory.
func TempPath(ext string) string {
	return filepath.Join(os.TempDir(), TempName(ext))
}
