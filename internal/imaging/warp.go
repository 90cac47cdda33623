package imaging

import (
	"image"
	"image/color"
	"math"
)

// Homography is a 3x3 projective transform matrix, row-major.
type Homography [9]float64

// Apply maps a point through the homography.
func (m Homography) Apply(x, y float64) (float64, float64) {
	w := m[6]*x + m[7]*y + m[8]
	if w == 0 {
		w = 1e-9
	}
	ox := (m[0]*x + m[1]*y + m[2]) / w
	oy := (m[3]*x + m[4]*y + m[5]) / w
	return ox, oy
}

// PerspectiveTransform solves for the homography mapping src[i] -> dst[i]
// for four point correspondences, the same 4-point DLT cv2.getPerspectiveTransform
// performs.
func PerspectiveTransform(src, dst [4]Pt) Homography {
	// Build the 8x8 linear system A*h = b for h0..h7 (h8 fixed to 1).
	var a [8][8]float64
	var b [8]float64
	for i := 0; i < 4; i++ {
		sx, sy := src[i].X, src[i].Y
		dx, dy := dst[i].X, dst[i].Y

		a[2*i] = [8]float64{sx, sy, 1, 0, 0, 0, -sx * dx, -sy * dx}
		b[2*i] = dx

		a[2*i+1] = [8]float64{0, 0, 0, sx, sy, 1, -sx * dy, -sy * dy}
		b[2*i+1] = dy
	}
	h := solveLinear8(a, b)
	return Homography{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}
}

func solveLinear8(a [8][8]float64, b [8]float64) [8]float64 {
	n := 8
	// Gaussian elimination with partial pivoting.
	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, n+1)
		copy(aug[i], a[i][:])
		aug[i][n] = b[i]
	}
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]
		if math.Abs(aug[col][col]) < 1e-12 {
			continue
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col] / aug[col][col]
			for c := col; c <= n; c++ {
				aug[r][c] -= factor * aug[col][c]
			}
		}
	}
	var out [8]float64
	for i := 0; i < n; i++ {
		if aug[i][i] != 0 {
			out[i] = aug[i][n] / aug[i][i]
		}
	}
	return out
}

// WarpPerspective samples img through the inverse of the src->dst
// homography into a targetW x targetH output, using bilinear interpolation
// with white-border fill.
func WarpPerspective(img image.Image, srcQuad [4]Pt, targetW, targetH int) *image.RGBA {
	dstQuad := [4]Pt{{0, 0}, {float64(targetW), 0}, {float64(targetW), float64(targetH)}, {0, float64(targetH)}}
	fwd := PerspectiveTransform(dstQuad, srcQuad) // maps output coords -> source coords

	out := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	bounds := img.Bounds()

	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			sx, sy := fwd.Apply(float64(x)+0.5, float64(y)+0.5)
			out.Set(x, y, bilinearSample(img, bounds, sx, sy))
		}
	}
	return out
}

func bilinearSample(img image.Image, bounds image.Rectangle, x, y float64) color.RGBA {
	if x < float64(bounds.Min.X) || x >= float64(bounds.Max.X) || y < float64(bounds.Min.Y) || y >= float64(bounds.Max.Y) {
		return color.RGBA{255, 255, 255, 255}
	}
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 >= bounds.Max.X {
		x1 = bounds.Max.X - 1
	}
	if y1 >= bounds.Max.Y {
		y1 = bounds.Max.Y - 1
	}
	fx, fy := x-float64(x0), y-float64(y0)

	c00 := colorAt(img, x0, y0)
	c10 := colorAt(img, x1, y0)
	c01 := colorAt(img, x0, y1)
	c11 := colorAt(img, x1, y1)

	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }
	mix := func(v00, v10, v01, v11 uint8) uint8 {
		top := lerp(float64(v00), float64(v10), fx)
		bot := lerp(float64(v01), float64(v11), fx)
		return clampByte(lerp(top, bot, fy))
	}
	return color.RGBA{
		R: mix(c00.R, c10.R, c01.R, c11.R),
		G: mix(c00.G, c10.G, c01.G, c11.G),
		B: mix(c00.B, c10.B, c01.B, c11.B),
		A: 255,
	}
}

func colorAt(img image.Image, x, y int) color.RGBA {
	r, g, b, _ := img.At(x, y).RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}
}
