// Package imaging provides the raster primitives the pipeline stages share:
// grayscale/threshold/morphology/edge helpers hand-rolled on top of
// image.Image, plus resize and large-sigma blur delegated to
// disintegration/imaging the way the gpu_dispatcher worker in the retrieved
// pack does (imaging.Fit/imaging.Blur/imaging.Lanczos).
package imaging

import (
	"image"
	"image/color"
)

// Gray is a dense float64 grayscale matrix in [0,255], row-major.
type Gray struct {
	W, H int
	Pix  []float64
}

// NewGray allocates a W x H zeroed matrix.
func NewGray(w, h int) *Gray {
	return &Gray{W: w, H: h, Pix: make([]float64, w*h)}
}

// At returns the value at (x,y); out-of-bounds reads clamp to the edge.
func (g *Gray) At(x, y int) float64 {
	if x < 0 {
		x = 0
	}
	if x >= g.W {
		x = g.W - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= g.H {
		y = g.H - 1
	}
	return g.Pix[y*g.W+x]
}

// Set assigns the value at (x,y).
func (g *Gray) Set(x, y int, v float64) {
	if x < 0 || x >= g.W || y < 0 || y >= g.H {
		return
	}
	g.Pix[y*g.W+x] = v
}

// Clone returns a deep copy.
func (g *Gray) Clone() *Gray {
	out := NewGray(g.W, g.H)
	copy(out.Pix, g.Pix)
	return out
}

// ToGrayscale converts an image.Image to a Gray matrix using ITU-R BT.601
// luma weights.
func ToGrayscale(img image.Image) *Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, gg, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(gg>>8) + 0.114*float64(bb>>8)
			out.Pix[y*w+x] = lum
		}
	}
	return out
}

// ToImage converts a Gray matrix back into a standard grayscale image.
func (g *Gray) ToImage() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, g.W, g.H))
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			v := g.Pix[y*g.W+x]
			out.SetGray(x, y, color.Gray{Y: clampByte(v)})
		}
	}
	return out
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// MeanDiff returns the mean absolute difference between two same-sized
// grayscale matrices, in [0,255]. Panics if sizes differ.
func MeanDiff(a, b *Gray) float64 {
	if a.W != b.W || a.H != b.H {
		panic("imaging: MeanDiff size mismatch")
	}
	var sum float64
	for i := range a.Pix {
		d := a.Pix[i] - b.Pix[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / float64(len(a.Pix))
}

// ChangedRatio returns the fraction of pixels whose absolute difference
// exceeds threshold.
func ChangedRatio(a, b *Gray, threshold float64) float64 {
	if a.W != b.W || a.H != b.H {
		panic("imaging: ChangedRatio size mismatch")
	}
	changed := 0
	for i := range a.Pix {
		d := a.Pix[i] - b.Pix[i]
		if d < 0 {
			d = -d
		}
		if d > threshold {
			changed++
		}
	}
	return float64(changed) / float64(len(a.Pix))
}

// ChangedMask returns a binary mask (true where changed) for the same
// metric ChangedRatio computes, for callers that need the mask shape
// (e.g. playhead-column detection).
func ChangedMask(a, b *Gray, threshold float64) []bool {
	if a.W != b.W || a.H != b.H {
		panic("imaging: ChangedMask size mismatch")
	}
	mask := make([]bool, len(a.Pix))
	for i := range a.Pix {
		d := a.Pix[i] - b.Pix[i]
		if d < 0 {
			d = -d
		}
		mask[i] = d > threshold
	}
	return mask
}
