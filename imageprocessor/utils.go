package imageprocessor

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
)

const jpegQuality = 90

// EncodeImage writes img to w in the given format
func EncodeImage(w io.Writer, img image.Image, format FormatType) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	case FormatGIF:
		return gif.Encode(w, img, nil)
	default:
		return fmt.Errorf("no encoder for format %s", format)
	}
}

// SaveImage encodes img into path, picking the encoder from the extension.
// The file is truncated if it exists. Failures wrap ErrEncode.
func SaveImage(path string, img image.Image) error {
	return SaveImageAs(path, img, GetFileFormat(path))
}

// SaveImageAs encodes img into path with an explicit format
func SaveImageAs(path string, img image.Image, format FormatType) error {
	if !CanEncode(format) {
		return fmt.Errorf("%w: %s: unsupported output format %s", ErrEncode, path, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}

	encErr := EncodeImage(f, img, format)
	closeErr := f.Close()
	if encErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, path, encErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, path, closeErr)
	}
	return nil
}
