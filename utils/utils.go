package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotADirectory is returned when an input root exists but is not a directory
	ErrNotADirectory = errors.New("not a directory")
	// ErrDirAccess is returned when an input root cannot be stat'ed
	ErrDirAccess = errors.New("cannot access directory")
)

// CheckDir verifies that path exists and is a directory
func CheckDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrDirAccess, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", path, ErrNotADirectory)
	}
	return nil
}

// TrimExt removes the final extension from a path, keeping its directory
func TrimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// FileStem returns the base name of path without its extension
func FileStem(path string) string {
	return TrimExt(filepath.Base(path))
}

// ThumbPath replaces the extension of path with the thumbnail suffix
// (x/photo.png -> x/photo.sm.jpg)
func ThumbPath(path, suffix string) string {
	return TrimExt(path) + "." + strings.TrimPrefix(suffix, ".")
}

// ReportURL turns an OS path relative to the report root into a slash-separated URL path
func ReportURL(parts ...string) string {
	return filepath.ToSlash(filepath.Join(parts...))
}
