package finalize

import (
	"math"

	"github.com/scorecap/pipeline/internal/imaging"
)

const whiteSeparatorRows = 12

// dropNearDuplicates removes consecutive frames whose downsized mean
// absolute difference is below 5.8 (spec.md §4.8 step 3).
func dropNearDuplicates(pages []*imaging.Gray) []*imaging.Gray {
	if len(pages) == 0 {
		return pages
	}
	kept := []*imaging.Gray{pages[0]}
	for i := 1; i < len(pages); i++ {
		prev := kept[len(kept)-1]
		cur := pages[i]
		ga := imaging.ToGrayscale(imaging.ResizeFit(prev.ToImage(), 1600, 900))
		gb := imaging.ToGrayscale(imaging.ResizeFit(cur.ToImage(), 1600, 900))
		if ga.W == gb.W && ga.H == gb.H && imaging.MeanDiff(ga, gb) < 5.8 {
			continue
		}
		kept = append(kept, cur)
	}
	return kept
}

// verticalMerge grows a running tall buffer, merging each subsequent page
// when the best overlap's grayscale MAE clears the accept threshold, and
// appending with a white separator otherwise (spec.md §4.8 step 4).
func verticalMerge(pages []*imaging.Gray) *imaging.Gray {
	if len(pages) == 0 {
		return imaging.NewGray(0, 0)
	}
	buf := pages[0]
	for i := 1; i < len(pages); i++ {
		next := pages[i]
		w := maxInt(buf.W, next.W)
		bufPad := padGrayWidth(buf, w)
		nextPad := padGrayWidth(next, w)

		overlap, _, ok := bestOverlap(bufPad, nextPad)
		if ok {
			buf = blendMerge(bufPad, nextPad, overlap)
		} else {
			buf = appendWithSeparator(bufPad, nextPad)
		}
	}
	return buf
}

func padGrayWidth(g *imaging.Gray, w int) *imaging.Gray {
	if g.W >= w {
		return g
	}
	out := imaging.NewGray(w, g.H)
	for i := range out.Pix {
		out.Pix[i] = 255
	}
	offsetX := (w - g.W) / 2
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			out.Set(x+offsetX, y, g.At(x, y))
		}
	}
	return out
}

// bestOverlap searches overlap heights in [max(18,6%h), max(60,34%h)]
// minimizing grayscale MAE, accepting only if the minimum is <=19.5.
func bestOverlap(buf, next *imaging.Gray) (int, float64, bool) {
	h := minInt(buf.H, next.H)
	lo := maxInt(18, int(0.06*float64(h)))
	hi := maxInt(60, int(0.34*float64(h)))
	if hi > h {
		hi = h
	}
	if lo > hi {
		return 0, 0, false
	}

	bestMAE := math.MaxFloat64
	bestOv := lo
	for overlap := lo; overlap <= hi; overlap++ {
		mae := grayStripDiff(buf, next, overlap)
		if mae < bestMAE {
			bestMAE = mae
			bestOv = overlap
		}
	}
	return bestOv, bestMAE, bestMAE <= 19.5
}

func grayStripDiff(buf, next *imaging.Gray, overlap int) float64 {
	var sum float64
	var n int
	for y := 0; y < overlap; y++ {
		by := buf.H - overlap + y
		ny := y
		if by < 0 || by >= buf.H || ny < 0 || ny >= next.H {
			continue
		}
		for x := 0; x < buf.W; x++ {
			d := buf.At(x, by) - next.At(x, ny)
			if d < 0 {
				d = -d
			}
			sum += d
			n++
		}
	}
	if n == 0 {
		return math.MaxFloat64
	}
	return sum / float64(n)
}

func blendMerge(buf, next *imaging.Gray, overlap int) *imaging.Gray {
	newH := buf.H + next.H - overlap
	out := imaging.NewGray(buf.W, newH)
	for y := 0; y < buf.H-overlap; y++ {
		for x := 0; x < buf.W; x++ {
			out.Set(x, y, buf.At(x, y))
		}
	}
	for r := 0; r < overlap; r++ {
		y := buf.H - overlap + r
		alpha := 1.0 - float64(r)/float64(overlap)
		for x := 0; x < buf.W; x++ {
			v := alpha*buf.At(x, buf.H-overlap+r) + (1-alpha)*next.At(x, r)
			out.Set(x, y, v)
		}
	}
	for y := overlap; y < next.H; y++ {
		outY := buf.H - overlap + y
		for x := 0; x < buf.W; x++ {
			out.Set(x, outY, next.At(x, y))
		}
	}
	return out
}

func appendWithSeparator(buf, next *imaging.Gray) *imaging.Gray {
	newH := buf.H + whiteSeparatorRows + next.H
	out := imaging.NewGray(buf.W, newH)
	for i := range out.Pix {
		out.Pix[i] = 255
	}
	for y := 0; y < buf.H; y++ {
		for x := 0; x < buf.W; x++ {
			out.Set(x, y, buf.At(x, y))
		}
	}
	for y := 0; y < next.H; y++ {
		for x := 0; x < next.W; x++ {
			out.Set(x, buf.H+whiteSeparatorRows+y, next.At(x, y))
		}
	}
	return out
}
