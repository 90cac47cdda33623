package finalize

import (
	"image"
	"image/color"

	"github.com/scorecap/pipeline/internal/imaging"
)

// toneNormalize implements spec.md §4.8 step 1: grayscale, median-blur(3),
// a 1st/99th-percentile linear stretch, then a gentle gain/bias lift. The
// finalizer keeps pages as a single-channel matrix through pagination and
// only expands back to a 3-channel image at save time.
func toneNormalize(img image.Image) *imaging.Gray {
	gray := imaging.ToGrayscale(img)
	blurred := imaging.MedianBlur(gray, 3)
	lo := imaging.Percentile(blurred.Pix, 1)
	hi := imaging.Percentile(blurred.Pix, 99)
	stretched := imaging.LinearStretch(blurred, lo, hi)
	return gainBias(stretched, 1.06, 6)
}

func gainBias(g *imaging.Gray, alpha, beta float64) *imaging.Gray {
	out := imaging.NewGray(g.W, g.H)
	for i, v := range g.Pix {
		out.Pix[i] = clampFloat(alpha*v+beta, 0, 255)
	}
	return out
}

// contentCrop keeps the bounding box of rows/columns whose adaptive-
// threshold-inverted, opened foreground density exceeds 0.003, padded by
// 1.2% of min(h,w) (spec.md §4.8 step 2).
func contentCrop(g *imaging.Gray) *imaging.Gray {
	w, h := g.W, g.H
	mask := imaging.AdaptiveThresholdMeanInverted(g, 25, 10)
	mask = imaging.Open(mask, w, h, 3)

	rowDensity := imaging.RowDensity(mask, w, h)
	colDensity := columnDensity(mask, w, h)

	minY, maxY := activeRange(rowDensity, 0.003)
	minX, maxX := activeRange(colDensity, 0.003)
	if minY == -1 || minX == -1 {
		return g
	}

	pad := int(0.012 * float64(minInt(w, h)))
	minX, maxX = clampInt(minX-pad, 0, w), clampInt(maxX+pad, 0, w)
	minY, maxY = clampInt(minY-pad, 0, h), clampInt(maxY+pad, 0, h)
	if maxX <= minX || maxY <= minY {
		return g
	}

	out := imaging.NewGray(maxX-minX, maxY-minY)
	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			out.Set(x-minX, y-minY, g.At(x, y))
		}
	}
	return out
}

func columnDensity(mask []bool, w, h int) []float64 {
	density := make([]float64, w)
	for x := 0; x < w; x++ {
		count := 0
		for y := 0; y < h; y++ {
			if mask[y*w+x] {
				count++
			}
		}
		density[x] = float64(count) / float64(h)
	}
	return density
}

func activeRange(density []float64, threshold float64) (int, int) {
	min, max := -1, -1
	for i, d := range density {
		if d > threshold {
			if min == -1 {
				min = i
			}
			max = i
		}
	}
	if min == -1 {
		return -1, -1
	}
	return min, max + 1
}

func grayToImage(g *imaging.Gray) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, g.W, g.H))
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			v := uint8(clampFloat(g.At(x, y), 0, 255))
			out.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
