package stitch

import (
	"image"
	"image/color"
	"math"

	"github.com/scorecap/pipeline/internal/imaging"
	"github.com/scorecap/pipeline/pkg/models"
)

const maxSeamRows = 42

// scrollStitch grows a running page buffer by merging each successive
// frame when the overlap score clears the layout's effective threshold,
// flushing and restarting the buffer otherwise (spec.md §4.6's
// scroll-stitching steps).
func scrollStitch(kept []image.Image, overlapThreshold float64, layout models.LayoutHint) []image.Image {
	if len(kept) == 0 {
		return nil
	}
	effThresh := effectiveOverlapThreshold(overlapThreshold, layout)

	var pages []image.Image
	buf := kept[0]
	for i := 1; i < len(kept); i++ {
		next := kept[i]
		bufPad, nextPad := padToSameWidth(buf, next)

		bufGray := imaging.ToGrayscale(bufPad)
		nextGray := imaging.ToGrayscale(nextPad)

		shift, confidence := estimateShift(bufGray, nextGray)
		score, overlap := computeOverlap(bufGray, nextGray, shift, confidence)

		if score >= effThresh {
			buf = mergeOverlap(bufPad, nextPad, overlap)
		} else {
			pages = append(pages, bufPad)
			buf = nextPad
		}
	}
	pages = append(pages, buf)
	return pages
}

func padToSameWidth(a, b image.Image) (image.Image, image.Image) {
	wa, wb := a.Bounds().Dx(), b.Bounds().Dx()
	w := wa
	if wb > w {
		w = wb
	}
	return imaging.PadToWidth(a, w), imaging.PadToWidth(b, w)
}

// estimateShift prefers phase correlation over row-mean correlation when
// it reports meaningfully higher confidence (spec.md §4.6's "prefer phase
// when confidence clears row confidence plus a margin" rule), otherwise
// falls back to row-mean correlation.
func estimateShift(bufGray, nextGray *imaging.Gray) (int, float64) {
	maxLag := bufGray.H
	if nextGray.H > maxLag {
		maxLag = nextGray.H
	}
	rowLag, rowConf := imaging.RowMeanCorrelation(nextGray, bufGray, maxLag)
	phaseLag, phaseConf := imaging.PhaseCorrelation(nextGray, bufGray, maxLag)

	if phaseConf >= math.Max(0.38, rowConf+0.12) {
		return phaseLag, phaseConf
	}
	return rowLag, rowConf
}

// computeOverlap searches a window of candidate overlap heights around
// the shift-implied target and returns the best (score, overlapRows).
func computeOverlap(bufGray, nextGray *imaging.Gray, shift int, confidence float64) (float64, int) {
	h := bufGray.H
	target := h - iabs(shift)
	if target < 1 {
		target = 1
	}
	if target > h {
		target = h
	}

	radiusFrac := 0.10
	if confidence < 0.25 {
		radiusFrac = 0.20
	}
	radius := int(radiusFrac * float64(h))
	lo, hi := target-radius, target+radius
	if lo < 1 {
		lo = 1
	}
	maxOverlap := nextGray.H
	if h < maxOverlap {
		maxOverlap = h
	}
	if hi > maxOverlap {
		hi = maxOverlap
	}
	if lo > hi {
		lo, hi = hi, lo
	}

	marginCols := bufGray.W / 12
	x0, x1 := marginCols, bufGray.W-marginCols
	if x1 <= x0 {
		x0, x1 = 0, bufGray.W
	}

	bestDiff := math.MaxFloat64
	bestOverlap := lo
	for overlap := lo; overlap <= hi; overlap++ {
		diff := stripDiff(bufGray, nextGray, overlap, x0, x1)
		if diff < bestDiff {
			bestDiff = diff
			bestOverlap = overlap
		}
	}

	score := 1 - bestDiff/255
	if confidence < 0.15 && score < 0.78 {
		score *= 0.9
	}
	return score, bestOverlap
}

// stripDiff is the mean abs diff between buf's bottom `overlap` rows and
// next's top `overlap` rows, restricted to the central column band.
func stripDiff(buf, next *imaging.Gray, overlap, x0, x1 int) float64 {
	if overlap <= 0 {
		return 255
	}
	var sum float64
	var n int
	for y := 0; y < overlap; y++ {
		by := buf.H - overlap + y
		ny := y
		if by < 0 || by >= buf.H || ny < 0 || ny >= next.H {
			continue
		}
		for x := x0; x < x1; x++ {
			d := buf.At(x, by) - next.At(x, ny)
			if d < 0 {
				d = -d
			}
			sum += d
			n++
		}
	}
	if n == 0 {
		return 255
	}
	return sum / float64(n)
}

// mergeOverlap appends next below buf, blending the first min(overlap,42)
// overlap rows with a linear 1->0 alpha ramp and taking the rest of the
// overlap band plus next's remainder verbatim from next.
func mergeOverlap(bufImg, nextImg image.Image, overlap int) image.Image {
	bufB, nextB := bufImg.Bounds(), nextImg.Bounds()
	w := bufB.Dx()
	bufH, nextH := bufB.Dy(), nextB.Dy()
	if overlap > bufH {
		overlap = bufH
	}
	if overlap > nextH {
		overlap = nextH
	}
	seam := overlap
	if seam > maxSeamRows {
		seam = maxSeamRows
	}

	newH := bufH + nextH - overlap
	out := image.NewRGBA(image.Rect(0, 0, w, newH))

	for y := 0; y < bufH-overlap; y++ {
		for x := 0; x < w; x++ {
			out.Set(x, y, bufImg.At(bufB.Min.X+x, bufB.Min.Y+y))
		}
	}

	for r := 0; r < overlap; r++ {
		y := bufH - overlap + r
		for x := 0; x < w; x++ {
			var c color.Color
			if r < seam {
				alpha := 1.0 - float64(r)/float64(seam)
				c = blendColor(bufImg.At(bufB.Min.X+x, bufB.Min.Y+bufH-overlap+r), nextImg.At(nextB.Min.X+x, nextB.Min.Y+r), alpha)
			} else {
				c = nextImg.At(nextB.Min.X+x, nextB.Min.Y+r)
			}
			out.Set(x, y, c)
		}
	}

	for y := overlap; y < nextH; y++ {
		outY := bufH - overlap + y
		for x := 0; x < w; x++ {
			out.Set(x, outY, nextImg.At(nextB.Min.X+x, nextB.Min.Y+y))
		}
	}

	return out
}

func blendColor(a, b color.Color, alpha float64) color.RGBA {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return color.RGBA{
		R: blendByte(ar, br, alpha),
		G: blendByte(ag, bg, alpha),
		B: blendByte(ab, bb, alpha),
		A: blendByte(aa, ba, alpha),
	}
}

func blendByte(a, b uint32, alpha float64) uint8 {
	v := alpha*float64(a>>8) + (1-alpha)*float64(b>>8)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

func iabs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
