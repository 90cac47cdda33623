package imaging

import "math"

// OtsuThreshold computes the Otsu-optimal binarization threshold in [0,255]
// for a grayscale matrix. Falls back to a fixed threshold (per spec.md
// §4.4's "Otsu (fallback fixed 180)") when the histogram is degenerate.
func OtsuThreshold(g *Gray) float64 {
	var hist [256]int
	for _, v := range g.Pix {
		hist[clampByte(v)]++
	}
	total := len(g.Pix)
	if total == 0 {
		return 180
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumB, wB float64
	var maxVar float64
	threshold := 180.0
	found := false

	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		betweenVar := wB * wF * (mB - mF) * (mB - mF)
		if betweenVar > maxVar {
			maxVar = betweenVar
			threshold = float64(t)
			found = true
		}
	}
	if !found {
		return 180
	}
	return threshold
}

// Binarize returns a mask: true where the pixel is above threshold.
func Binarize(g *Gray, threshold float64) []bool {
	mask := make([]bool, len(g.Pix))
	for i, v := range g.Pix {
		mask[i] = v > threshold
	}
	return mask
}

// BinarizeInverted returns a mask: true where the pixel is at or below
// threshold (the "inverted" binarization the spec asks for before
// morphological opening in structural-XOR comparisons).
func BinarizeInverted(g *Gray, threshold float64) []bool {
	mask := make([]bool, len(g.Pix))
	for i, v := range g.Pix {
		mask[i] = v <= threshold
	}
	return mask
}

// AdaptiveThresholdMeanInverted mirrors OpenCV's ADAPTIVE_THRESH_MEAN_C with
// THRESH_BINARY_INV: a pixel is foreground if it is more than C below the
// local block mean.
func AdaptiveThresholdMeanInverted(g *Gray, blockSize int, c float64) []bool {
	if blockSize%2 == 0 {
		blockSize++
	}
	means := BoxBlur(g, blockSize)
	mask := make([]bool, len(g.Pix))
	for i, v := range g.Pix {
		mask[i] = v < means.Pix[i]-c
	}
	return mask
}

// Canny runs a simplified Canny edge detector: Sobel gradients, magnitude
// + direction, non-maximum suppression, and hysteresis thresholding.
func Canny(g *Gray, low, high float64) []bool {
	gx, gy := Sobel(g)
	w, h := g.W, g.H
	mag := make([]float64, w*h)
	dir := make([]float64, w*h)
	for i := range mag {
		mag[i] = math.Hypot(gx.Pix[i], gy.Pix[i])
		dir[i] = math.Atan2(gy.Pix[i], gx.Pix[i])
	}

	suppressed := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			idx := y*w + x
			angle := dir[idx]*180/math.Pi + 180
			var n1, n2 float64
			switch {
			case angle < 22.5 || angle >= 157.5 && angle < 202.5 || angle >= 337.5:
				n1, n2 = mag[idx-1], mag[idx+1]
			case angle >= 22.5 && angle < 67.5 || angle >= 202.5 && angle < 247.5:
				n1, n2 = mag[idx-w+1], mag[idx+w-1]
			case angle >= 67.5 && angle < 112.5 || angle >= 247.5 && angle < 292.5:
				n1, n2 = mag[idx-w], mag[idx+w]
			default:
				n1, n2 = mag[idx-w-1], mag[idx+w+1]
			}
			if mag[idx] >= n1 && mag[idx] >= n2 {
				suppressed[idx] = mag[idx]
			}
		}
	}

	strong := make([]bool, w*h)
	weak := make([]bool, w*h)
	for i, v := range suppressed {
		if v >= high {
			strong[i] = true
		} else if v >= low {
			weak[i] = true
		}
	}

	// Hysteresis: promote weak pixels connected to a strong one.
	changed := true
	for changed {
		changed = false
		for y := 1; y < h-1; y++ {
			for x := 1; x < w-1; x++ {
				idx := y*w + x
				if !weak[idx] || strong[idx] {
					continue
				}
				if strong[idx-1] || strong[idx+1] || strong[idx-w] || strong[idx+w] ||
					strong[idx-w-1] || strong[idx-w+1] || strong[idx+w-1] || strong[idx+w+1] {
					strong[idx] = true
					weak[idx] = false
					changed = true
				}
			}
		}
	}
	return strong
}
