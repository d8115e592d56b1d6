package imageprocessor

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"gocv.io/x/gocv"
	"golang.org/x/image/webp"
)

// StandardLoader decodes gif, jpeg and png files. It sniffs the content, so a
// file whose extension lies about its format still decodes.
type StandardLoader struct{}

func (l *StandardLoader) CanLoad(path string) bool {
	switch GetFileFormat(path) {
	case FormatGIF, FormatJPEG, FormatPNG:
		return true
	}
	return false
}

func (l *StandardLoader) LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// WebPLoader decodes webp files
type WebPLoader struct{}

func (l *WebPLoader) CanLoad(path string) bool {
	return GetFileFormat(path) == FormatWEBP
}

func (l *WebPLoader) LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return webp.Decode(f)
}

// OpenCVLoader decodes the formats Go has no decoder for in this module
// (tiff, bmp) through OpenCV. They are only indexed when added to the
// extension allow-list.
type OpenCVLoader struct{}

func (l *OpenCVLoader) CanLoad(path string) bool {
	switch GetFileFormat(path) {
	case FormatTIFF, FormatBMP:
		return true
	}
	return false
}

func (l *OpenCVLoader) LoadImage(path string) (image.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("opencv could not read %s", path)
	}
	return mat.ToImage()
}

// ImageLoaderRegistry manages available image loaders
type ImageLoaderRegistry struct {
	loaders []ImageLoader
}

// NewImageLoaderRegistry creates a registry with the default loaders
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	return &ImageLoaderRegistry{
		loaders: []ImageLoader{
			&StandardLoader{},
			&WebPLoader{},
			&OpenCVLoader{},
		},
	}
}

// CanLoadFile checks if any registered loader can handle the given file
func (r *ImageLoaderRegistry) CanLoadFile(path string) bool {
	for _, loader := range r.loaders {
		if loader.CanLoad(path) {
			return true
		}
	}
	return false
}

// LoadImage decodes path with the first loader that accepts it. Any failure
// wraps ErrDecode.
func (r *ImageLoaderRegistry) LoadImage(path string) (image.Image, error) {
	for _, loader := range r.loaders {
		if !loader.CanLoad(path) {
			continue
		}
		img, err := loader.LoadImage(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: no suitable loader found for image: %s", ErrDecode, path)
}

var defaultRegistry = NewImageLoaderRegistry()

// LoadImage decodes an image with the default registry
func LoadImage(path string) (image.Image, error) {
	return defaultRegistry.LoadImage(path)
}

// CanLoad reports whether the default registry has a loader for path
func CanLoad(path string) bool {
	return defaultRegistry.CanLoadFile(path)
}
