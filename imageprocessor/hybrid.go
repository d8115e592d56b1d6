package imageprocessor

import (
	"context"
	"fmt"
	"image"
	"math"

	"imdirdiff/types"
)

const (
	ssimWindow = 8
	ssimC1     = (0.01 * 255) * (0.01 * 255)
	ssimC2     = (0.03 * 255) * (0.03 * 255)
)

// PixelHybrid compares images in-process: SSIM over the luma channel for
// structure, chroma distance for color.
type PixelHybrid struct {
	loaders *ImageLoaderRegistry
}

// NewPixelHybrid creates the in-process comparator
func NewPixelHybrid() *PixelHybrid {
	return &PixelHybrid{loaders: NewImageLoaderRegistry()}
}

func (p *PixelHybrid) Name() string { return "pixel" }

// Compare decodes both sides of the pair and scores them
func (p *PixelHybrid) Compare(ctx context.Context, pair ImagePair) (*types.ComparisonOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	imgA, err := p.loaders.LoadImage(pair.PathA)
	if err != nil {
		return nil, err
	}
	imgB, err := p.loaders.LoadImage(pair.PathB)
	if err != nil {
		return nil, err
	}

	return CompareImages(imgA, imgB)
}

// CompareImages scores two decoded images. Images of different sizes are
// both drawn at the top-left of a black canvas sized to the larger of each
// dimension, so the uncovered area counts as a difference.
func CompareImages(a, b image.Image) (*types.ComparisonOutcome, error) {
	ba, bb := a.Bounds(), b.Bounds()
	w := max(ba.Dx(), bb.Dx())
	h := max(ba.Dy(), bb.Dy())
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrCompare)
	}

	yccA, err := toYCrCb(flattenRGB(a, w, h))
	if err != nil {
		return nil, err
	}
	yccB, err := toYCrCb(flattenRGB(b, w, h))
	if err != nil {
		return nil, err
	}

	score, diff, err := hybridCompare(yccA, yccB, w, h)
	if err != nil {
		return nil, err
	}

	heatmap, err := renderHeatmap(diff, w, h)
	if err != nil {
		return nil, err
	}

	return &types.ComparisonOutcome{Score: score, Heatmap: heatmap}, nil
}

// hybridCompare scores two interleaved Y/Cr/Cb buffers of w×h pixels.
// Each pixel's difference is the larger of the structural loss of its 8×8
// window (1 - SSIM on Y) and its normalized chroma distance; the score is
// one minus the mean difference. Identical buffers score exactly 1.
func hybridCompare(a, b []byte, w, h int) (float64, []float64, error) {
	n := w * h
	if len(a) != n*3 || len(b) != n*3 {
		return 0, nil, fmt.Errorf("%w: buffer size mismatch (%d, %d for %dx%d)", ErrCompare, len(a), len(b), w, h)
	}

	diff := make([]float64, n)

	for wy := 0; wy < h; wy += ssimWindow {
		for wx := 0; wx < w; wx += ssimWindow {
			loss := 1 - windowSSIM(a, b, w, wx, wy, min(wx+ssimWindow, w), min(wy+ssimWindow, h))
			for y := wy; y < min(wy+ssimWindow, h); y++ {
				for x := wx; x < min(wx+ssimWindow, w); x++ {
					diff[y*w+x] = loss
				}
			}
		}
	}

	var total float64
	for i := 0; i < n; i++ {
		off := i * 3
		dcr := (float64(a[off+1]) - float64(b[off+1])) / 255
		dcb := (float64(a[off+2]) - float64(b[off+2])) / 255
		chroma := math.Sqrt(dcr*dcr+dcb*dcb) / math.Sqrt2

		d := math.Max(diff[i], chroma)
		d = math.Min(math.Max(d, 0), 1)
		diff[i] = d
		total += d
	}

	return 1 - total/float64(n), diff, nil
}

// windowSSIM computes SSIM of the Y channel over [x0,x1)×[y0,y1)
func windowSSIM(a, b []byte, stride, x0, y0, x1, y1 int) float64 {
	count := float64((x1 - x0) * (y1 - y0))

	var sumA, sumB float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			off := (y*stride + x) * 3
			sumA += float64(a[off])
			sumB += float64(b[off])
		}
	}
	meanA, meanB := sumA/count, sumB/count

	var varA, varB, cov float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			off := (y*stride + x) * 3
			da := float64(a[off]) - meanA
			db := float64(b[off]) - meanB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= count
	varB /= count
	cov /= count

	num := (2*meanA*meanB + ssimC1) * (2*cov + ssimC2)
	den := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
	return num / den
}
