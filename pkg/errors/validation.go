package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateAtlasName validates an atlas name for safety and correctness.
// Atlas names become filenames and storage keys, so the rules are
// intentionally conservative:
//   - No empty names
//   - No control characters or null bytes
//   - No path separators or traversal sequences
//   - Maximum length of 256 characters
func ValidateAtlasName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "atlas name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidName, "atlas name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "atlas name contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"/",    // Path separator
		"\\",   // Backslash (Windows path)
		"\x00", // Null byte
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidName, "atlas name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateFrameSize validates a per-frame width/height pair.
// Frame dimensions must be strictly positive; an upper bound of 4096 guards
// against nonsense values that would overflow the atlas canvas.
func ValidateFrameSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return New(ErrCodeInvalidFrame, "frame dimensions must be positive, got %dx%d", width, height)
	}

	const maxFrameDim = 4096
	if width > maxFrameDim || height > maxFrameDim {
		return New(ErrCodeInvalidFrame, "frame dimensions too large (max %d), got %dx%d", maxFrameDim, width, height)
	}

	return nil
}

// ValidatePath validates a file path for safety.
// It prevents path traversal attacks and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	// Check for null bytes and control characters
	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	// Check for path traversal
	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	// No backslashes (potential Windows path injection)
	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// tableNameRegex matches valid storage table/collection names.
var tableNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidateTableName validates a table or collection name for the keyed-blob
// persistence backends. Names are restricted to identifier-safe characters so
// they can never smuggle statement syntax into a storage command.
func ValidateTableName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "table name cannot be empty")
	}

	if len(name) > 64 {
		return New(ErrCodeInvalidInput, "table name too long (max 64 characters)")
	}

	if !tableNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid table name: %q", name)
	}

	return nil
}
