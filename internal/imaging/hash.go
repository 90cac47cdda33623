package imaging

import (
	"image"
	"math"
	"math/bits"
)

// DHash computes a 64-bit perceptual hash from a 9x8 downsample's
// horizontal gradient signs, per spec.md's glossary definition.
func DHash(img image.Image) uint64 {
	small := ResizeExact(img, 9, 8)
	gray := ToGrayscale(small)

	var hash uint64
	bit := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if gray.At(x, y) > gray.At(x+1, y) {
				hash |= 1 << uint(bit)
			}
			bit++
		}
	}
	return hash
}

// Hamming returns the Hamming distance between two 64-bit hashes.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// RowMeanCorrelation estimates a vertical shift (in rows) of b relative to
// a via normalized cross-correlation of row-mean brightness profiles over
// the central columns (the default "row-mean" shift estimator used by both
// the stitcher and finalizer overlap search).
//
// Returns the best lag (positive means b's content has scrolled down
// relative to a, i.e. a's bottom rows line up with b's top rows after
// removing `lag` rows) and a confidence in [0,1].
func RowMeanCorrelation(a, b *Gray, maxLag int) (lag int, confidence float64) {
	rowMean := func(g *Gray) []float64 {
		colStart := g.W / 12 // central ~84% of columns, matching spec.md §4.6 step 2
		colEnd := g.W - colStart
		means := make([]float64, g.H)
		for y := 0; y < g.H; y++ {
			var sum float64
			for x := colStart; x < colEnd; x++ {
				sum += g.At(x, y)
			}
			means[y] = sum / float64(colEnd-colStart)
		}
		return means
	}

	ma := rowMean(a)
	mb := rowMean(b)

	bestScore := math.Inf(-1)
	bestLag := 0
	for l := -maxLag; l <= maxLag; l++ {
		score, n := 0.0, 0
		for i := 0; i < len(ma); i++ {
			j := i + l
			if j < 0 || j >= len(mb) {
				continue
			}
			score += ma[i] * mb[j]
			n++
		}
		if n == 0 {
			continue
		}
		normalized := score / float64(n)
		if normalized > bestScore {
			bestScore = normalized
			bestLag = l
		}
	}

	// Confidence: peak sharpness relative to the mean score across lags.
	var total, count float64
	for l := -maxLag; l <= maxLag; l++ {
		score, n := 0.0, 0
		for i := 0; i < len(ma); i++ {
			j := i + l
			if j < 0 || j >= len(mb) {
				continue
			}
			score += ma[i] * mb[j]
			n++
		}
		if n > 0 {
			total += score / float64(n)
			count++
		}
	}
	if count == 0 || bestScore <= 0 {
		return bestLag, 0
	}
	mean := total / count
	confidence = clamp01(1 - mean/bestScore)
	return bestLag, confidence
}

// PhaseCorrelation estimates the vertical shift between two same-sized
// grayscale matrices via the normalized cross-power spectrum, using a
// direct (non-FFT) DFT over row-mean profiles since comparison strips are
// small. Returns the estimated lag and a [0,1] confidence (peak strength of
// the correlation surface).
func PhaseCorrelation(a, b *Gray, maxLag int) (lag int, confidence float64) {
	profile := func(g *Gray) []float64 {
		means := make([]float64, g.H)
		for y := 0; y < g.H; y++ {
			var sum float64
			for x := 0; x < g.W; x++ {
				sum += g.At(x, y)
			}
			means[y] = sum / float64(g.W)
		}
		return means
	}

	pa := profile(a)
	pb := profile(b)
	n := len(pa)
	if len(pb) < n {
		n = len(pb)
	}
	pa = pa[:n]
	pb = pb[:n]

	fa := dft(pa)
	fb := dft(pb)

	cross := make([]complex128, n)
	for i := range cross {
		prod := fa[i] * cmplxConj(fb[i])
		mag := cmplxAbs(prod)
		if mag < 1e-9 {
			cross[i] = 0
			continue
		}
		cross[i] = prod / complex(mag, 0)
	}
	corr := idft(cross)

	bestVal := math.Inf(-1)
	bestIdx := 0
	for i, v := range corr {
		re := real(v)
		if re > bestVal {
			bestVal = re
			bestIdx = i
		}
	}
	shift := bestIdx
	if shift > n/2 {
		shift -= n
	}
	if shift > maxLag {
		shift = maxLag
	}
	if shift < -maxLag {
		shift = -maxLag
	}

	// Confidence: normalized peak sharpness of the correlation surface.
	var sum float64
	for _, v := range corr {
		sum += real(v)
	}
	mean := sum / float64(len(corr))
	confidence = clamp01(bestVal - mean)
	return shift, confidence
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func dft(x []float64) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		var re, im float64
		for t := 0; t < n; t++ {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			re += x[t] * math.Cos(angle)
			im += x[t] * math.Sin(angle)
		}
		out[k] = complex(re, im)
	}
	return out
}

func idft(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for t := 0; t < n; t++ {
		var re, im float64
		for k := 0; k < n; k++ {
			angle := 2 * math.Pi * float64(k) * float64(t) / float64(n)
			c := math.Cos(angle)
			s := math.Sin(angle)
			re += real(x[k])*c - imag(x[k])*s
			im += real(x[k])*s + imag(x[k])*c
		}
		out[t] = complex(re/float64(n), im/float64(n))
	}
	return out
}

func cmplxConj(c complex128) complex128 { return complex(real(c), -imag(c)) }
func cmplxAbs(c complex128) float64     { return math.Hypot(real(c), imag(c)) }
