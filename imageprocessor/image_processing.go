package imageprocessor

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// flattenRGB copies img onto an opaque w×h canvas anchored at the top-left
// corner. Alpha is dropped, not composited, and any area the image does not
// cover stays black.
func flattenRGB(img image.Image, w, h int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(canvas.Pix); i += 4 {
		canvas.Pix[i] = 0xff
	}

	b := img.Bounds()
	for y := 0; y < b.Dy() && y < h; y++ {
		for x := 0; x < b.Dx() && x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			off := canvas.PixOffset(x, y)
			canvas.Pix[off] = c.R
			canvas.Pix[off+1] = c.G
			canvas.Pix[off+2] = c.B
		}
	}
	return canvas
}

// toYCrCb converts an RGB canvas into interleaved Y, Cr, Cb bytes using OpenCV
func toYCrCb(canvas *image.RGBA) ([]byte, error) {
	bgr, err := gocv.ImageToMatRGB(canvas)
	if err != nil {
		return nil, fmt.Errorf("%w: converting to matrix: %w", ErrCompare, err)
	}
	defer bgr.Close()

	ycc := gocv.NewMat()
	defer ycc.Close()

	gocv.CvtColor(bgr, &ycc, gocv.ColorBGRToYCrCb)
	if ycc.Empty() || ycc.Channels() != 3 {
		return nil, fmt.Errorf("%w: YCrCb conversion produced an empty matrix", ErrCompare)
	}

	return ycc.ToBytes(), nil
}

// renderHeatmap maps per-pixel differences in [0,1] to a JET false-color image
func renderHeatmap(diff []float64, w, h int) (image.Image, error) {
	gray := make([]byte, len(diff))
	for i, d := range diff {
		gray[i] = uint8(math.Round(d * 255))
	}

	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, gray)
	if err != nil {
		return nil, fmt.Errorf("%w: building diff matrix: %w", ErrCompare, err)
	}
	defer src.Close()

	colored := gocv.NewMat()
	defer colored.Close()

	gocv.ApplyColorMap(src, &colored, gocv.ColormapJet)

	img, err := colored.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: converting heat map: %w", ErrCompare, err)
	}
	return img, nil
}

// ResizeToHeight scales img to exactly height pixels, keeping the aspect
// ratio, with bilinear interpolation.
func ResizeToHeight(img image.Image, height int) (image.Image, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: cannot resize an empty image", ErrEncode)
	}
	if height <= 0 {
		return nil, fmt.Errorf("%w: invalid target height %d", ErrEncode, height)
	}

	width := int(math.Round(float64(b.Dx()) * float64(height) / float64(b.Dy())))
	if width < 1 {
		width = 1
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("%w: converting to matrix: %w", ErrEncode, err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	gocv.Resize(src, &dst, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)
	if dst.Empty() {
		return nil, fmt.Errorf("%w: resize produced an empty matrix", ErrEncode)
	}

	out, err := dst.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: converting thumbnail: %w", ErrEncode, err)
	}
	return out, nil
}
