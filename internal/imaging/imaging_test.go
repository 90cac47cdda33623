package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func scoreLikeImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// vertical bars every 40px, mimicking staff-line density.
			if x%40 < 3 {
				img.SetGray(x, y, color.Gray{Y: 20})
			} else {
				img.SetGray(x, y, color.Gray{Y: 230})
			}
		}
	}
	return img
}

func TestDHashSelfDistanceZero(t *testing.T) {
	img := scoreLikeImage(2000, 1200)
	h1 := DHash(img)
	h2 := DHash(img)
	assert.Equal(t, 0, Hamming(h1, h2))
}

func TestDHashSmallShiftStaysClose(t *testing.T) {
	img := scoreLikeImage(2000, 1200)
	shifted := image.NewGray(image.Rect(0, 0, 2000, 1200))
	for y := 0; y < 1200; y++ {
		for x := 0; x < 2000; x++ {
			shifted.SetGray(x, y, img.GrayAt((x+1)%2000, y))
		}
	}
	h1 := DHash(img)
	h2 := DHash(shifted)
	assert.LessOrEqual(t, Hamming(h1, h2), 8)
}

func TestOtsuThresholdSeparatesBimodal(t *testing.T) {
	g := NewGray(100, 100)
	for i := range g.Pix {
		if i%2 == 0 {
			g.Pix[i] = 20
		} else {
			g.Pix[i] = 230
		}
	}
	th := OtsuThreshold(g)
	assert.Greater(t, th, 20.0)
	assert.Less(t, th, 230.0)
}

func TestChangedRatioIdenticalFramesIsZero(t *testing.T) {
	g := NewGray(50, 50)
	for i := range g.Pix {
		g.Pix[i] = 128
	}
	ratio := ChangedRatio(g, g.Clone(), 22)
	assert.Equal(t, 0.0, ratio)
}

func TestConnectedComponentsFindsSquare(t *testing.T) {
	w, h := 40, 40
	mask := make([]bool, w*h)
	for y := 10; y < 30; y++ {
		for x := 10; x < 30; x++ {
			mask[y*w+x] = true
		}
	}
	comps := ConnectedComponents(mask, w, h)
	assert.Len(t, comps, 1)
	assert.Equal(t, 400, comps[0].Pixels)
}

func TestMinAreaRectAxisAlignedSquare(t *testing.T) {
	pts := []Pt{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	rect := MinAreaRect(pts)
	assert.InDelta(t, 100, rect.Area, 1e-6)
}

func TestPerspectiveTransformIdentityOnRectangle(t *testing.T) {
	src := [4]Pt{{0, 0}, {100, 0}, {100, 100}, {0, 100}}
	dst := [4]Pt{{0, 0}, {100, 0}, {100, 100}, {0, 100}}
	h := PerspectiveTransform(src, dst)
	x, y := h.Apply(50, 50)
	assert.InDelta(t, 50, x, 1e-6)
	assert.InDelta(t, 50, y, 1e-6)
}

func TestRowMeanCorrelationDetectsShift(t *testing.T) {
	a := NewGray(60, 200)
	for y := 0; y < 200; y++ {
		for x := 0; x < 60; x++ {
			a.Set(x, y, float64((y*3)%255))
		}
	}
	b := NewGray(60, 200)
	shiftBy := 15
	for y := 0; y < 200; y++ {
		for x := 0; x < 60; x++ {
			srcY := y - shiftBy
			if srcY < 0 {
				srcY = 0
			}
			b.Set(x, y, a.At(x, srcY))
		}
	}
	lag, _ := RowMeanCorrelation(a, b, 40)
	assert.InDelta(t, shiftBy, lag, 2)
}

func TestApproxPolyDPSimplifiesSquareBoundary(t *testing.T) {
	w, h := 40, 40
	mask := make([]bool, w*h)
	for y := 10; y < 30; y++ {
		for x := 10; x < 30; x++ {
			mask[y*w+x] = true
		}
	}
	comps := ConnectedComponents(mask, w, h)
	approx := ApproxPolyDP(comps[0].Boundary, 0.02*Perimeter(comps[0].Boundary))
	assert.GreaterOrEqual(t, len(approx), 4)
}
