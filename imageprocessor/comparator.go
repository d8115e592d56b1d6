package imageprocessor

import (
	"context"
	"fmt"

	"imdirdiff/config"
	"imdirdiff/types"
)

// ImagePair is one common path resolved against both roots
type ImagePair struct {
	Rel   types.ImagePath
	PathA string
	PathB string
	// DiffDir is where a backend that writes its own diff image must put it
	DiffDir string
}

// Comparator scores a pair of images and produces a diff artifact
type Comparator interface {
	Name() string
	Compare(ctx context.Context, pair ImagePair) (*types.ComparisonOutcome, error)
}

// NewComparator returns the backend selected by the configuration
func NewComparator(cfg config.CompareConfig) (Comparator, error) {
	switch cfg.Backend {
	case config.BackendPixel, "":
		return NewPixelHybrid(), nil
	case config.BackendFlip:
		return NewFlip(cfg.Flip.Executable), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.Backend)
	}
}
