// Package artifacts writes everything the report links to: verbatim copies
// of the compared images, diff images and their thumbnails.
package artifacts

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"imdirdiff/config"
	"imdirdiff/imageprocessor"
	"imdirdiff/logging"
	"imdirdiff/types"
	"imdirdiff/utils"
)

// ErrReportIO is returned when a file under the report root cannot be written
var ErrReportIO = errors.New("report I/O error")

// Side names the input root an image was copied from
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"

	// DiffDirName is the report subdirectory holding diff images
	DiffDirName = "diff"
)

// Store owns the layout of the report root
type Store struct {
	root        string
	thumbHeight int
	thumbSuffix string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store rooted at cfg.Root. Nothing is written until the
// first artifact is saved.
func NewStore(cfg config.ReportConfig) *Store {
	height := cfg.ThumbHeight
	if height <= 0 {
		height = config.DefaultThumbHeight
	}
	suffix := cfg.ThumbSuffix
	if suffix == "" {
		suffix = config.DefaultThumbSuffix
	}

	return &Store{
		root:        cfg.Root,
		thumbHeight: height,
		thumbSuffix: suffix,
		locks:       make(map[string]*sync.Mutex),
	}
}

// Lock serializes writers of rel and of every path sharing its stem
// (x.png and x.jpg both own x.sm.jpg). The returned func releases it.
func (s *Store) Lock(rel types.ImagePath) (unlock func()) {
	key := strings.ToLower(utils.TrimExt(string(rel)))

	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Root returns the report root directory
func (s *Store) Root() string {
	return s.root
}

// ThumbSuffix returns the suffix that replaces an image's extension in its thumbnail name
func (s *Store) ThumbSuffix() string {
	return s.thumbSuffix
}

// CopySource copies src byte for byte to <root>/<side>/<rel> and writes its thumbnail
func (s *Store) CopySource(side Side, rel types.ImagePath, src string) error {
	dst := filepath.Join(s.root, string(side), string(rel))

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("%w: copying %s: %w", ErrReportIO, src, err)
	}

	img, err := imageprocessor.LoadImage(src)
	if err != nil {
		return fmt.Errorf("%w: thumbnail for %s: %w", ErrReportIO, dst, err)
	}
	return s.writeThumbnail(dst, img)
}

// DiffDir creates the directory that receives the diff image for rel
func (s *Store) DiffDir(rel types.ImagePath) (string, error) {
	dir := filepath.Join(s.root, DiffDirName, filepath.Dir(string(rel)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrReportIO, err)
	}
	return dir, nil
}

// SaveDiff persists the diff artifact of a comparison and its thumbnail.
// It returns the location of the diff image relative to the report root,
// slash-separated for use as a link.
func (s *Store) SaveDiff(rel types.ImagePath, outcome *types.ComparisonOutcome) (string, error) {
	if outcome == nil {
		return "", fmt.Errorf("%w: no comparison outcome for %s", ErrReportIO, rel)
	}

	var (
		path string
		img  image.Image
	)

	switch {
	case outcome.Heatmap != nil:
		path = s.HeatmapPath(rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("%w: %w", ErrReportIO, err)
		}
		if err := imageprocessor.SaveImage(path, outcome.Heatmap); err != nil {
			return "", fmt.Errorf("%w: %w", ErrReportIO, err)
		}
		img = outcome.Heatmap

	case outcome.DiffFile != "":
		path = outcome.DiffFile
		loaded, err := imageprocessor.LoadImage(path)
		if err != nil {
			return "", fmt.Errorf("%w: reading diff image: %w", ErrReportIO, err)
		}
		img = loaded

	default:
		return "", fmt.Errorf("%w: comparison of %s produced no diff image", ErrReportIO, rel)
	}

	if err := s.writeThumbnail(path, img); err != nil {
		return "", err
	}

	asset, err := filepath.Rel(s.root, path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReportIO, err)
	}
	return filepath.ToSlash(asset), nil
}

// HeatmapPath is where an in-process diff image for rel is written:
// diff/<rel> when the extension can be encoded, otherwise diff/<rel>.png
// so that x.webp and x.png keep separate diffs.
func (s *Store) HeatmapPath(rel types.ImagePath) string {
	name := string(rel)
	if !imageprocessor.CanEncode(imageprocessor.GetFileFormat(name)) {
		name += ".png"
	}
	return filepath.Join(s.root, DiffDirName, name)
}

func (s *Store) writeThumbnail(path string, img image.Image) error {
	thumb, err := imageprocessor.ResizeToHeight(img, s.thumbHeight)
	if err != nil {
		return fmt.Errorf("%w: thumbnail for %s: %w", ErrReportIO, path, err)
	}

	thumbPath := utils.ThumbPath(path, s.thumbSuffix)
	if err := imageprocessor.SaveImageAs(thumbPath, thumb, imageprocessor.FormatJPEG); err != nil {
		return fmt.Errorf("%w: %w", ErrReportIO, err)
	}

	logging.DebugLog("thumbnail written", "path", thumbPath, "height", s.thumbHeight)
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
