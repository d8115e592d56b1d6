// Package imageprocessor decodes images and compares pairs of them, either
// in-process with a structural+color metric or through the external flip tool.
package imageprocessor

import (
	"errors"
	"image"
)

// ImageLoader is the interface that all image loaders must implement
type ImageLoader interface {
	// CanLoad checks if the loader can handle the given file
	CanLoad(path string) bool

	// LoadImage decodes and returns the image
	LoadImage(path string) (image.Image, error)
}

var (
	// ErrDecode is returned when an image cannot be read or decoded
	ErrDecode = errors.New("image decode failed")
	// ErrEncode is returned when an image cannot be encoded or written
	ErrEncode = errors.New("image encode failed")
	// ErrCompare is returned when the similarity metric cannot be computed
	ErrCompare = errors.New("image comparison failed")
	// ErrFlipSpawn is returned when the flip executable cannot be found or started
	ErrFlipSpawn = errors.New("error running flip")
	// ErrFlipOutput is returned when flip's output cannot be parsed
	ErrFlipOutput = errors.New("error parsing flip output")
	// ErrFlipDiffMissing is returned when flip did not leave a readable diff image
	ErrFlipDiffMissing = errors.New("flip diff image missing")
)
