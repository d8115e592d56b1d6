package scanner

import (
	"path/filepath"
	"strings"
)

// extensionSet is a lower-cased, dot-less extension allow-list
type extensionSet map[string]struct{}

func newExtensionSet(extensions []string) extensionSet {
	set := make(extensionSet, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}

// IsImageFile checks if the file extension belongs to the allow-list.
// The comparison is case-insensitive; the path itself is not altered.
func (s extensionSet) IsImageFile(path string) bool {
	_, ok := s[GetFileFormat(path)]
	return ok
}

// GetFileFormat returns the lowercase file extension without the dot
func GetFileFormat(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
