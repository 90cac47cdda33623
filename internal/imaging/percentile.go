package imaging

import "sort"

// Percentile returns the p-th percentile (0-100) value of a grayscale
// matrix's pixel distribution, used by the Sheet Finalizer's tone-normalize
// linear stretch (1st/99th percentile) and pagination's row-density
// threshold (72nd percentile).
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	idx := int(p / 100 * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// LinearStretch remaps values from [lo, hi] to [0, 255], clamping outliers.
func LinearStretch(g *Gray, lo, hi float64) *Gray {
	out := NewGray(g.W, g.H)
	span := hi - lo
	if span <= 0 {
		span = 1
	}
	for i, v := range g.Pix {
		stretched := (v - lo) / span * 255
		out.Pix[i] = clampFloat(stretched, 0, 255)
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

// RowDensity returns, for each row, the fraction of foreground pixels in a
// binary mask — the input to the finalizer's active-band detection and the
// whitespace-slicing fallback.
func RowDensity(mask []bool, w, h int) []float64 {
	density := make([]float64, h)
	for y := 0; y < h; y++ {
		count := 0
		for x := 0; x < w; x++ {
			if mask[y*w+x] {
				count++
			}
		}
		density[y] = float64(count) / float64(w)
	}
	return density
}
