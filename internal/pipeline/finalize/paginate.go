package finalize

import (
	"math"

	"github.com/scorecap/pipeline/internal/imaging"
	"github.com/scorecap/pipeline/pkg/models"
)

// bandRange is a [start, end) row span, in the merged image's own rows.
type bandRange struct{ start, end int }

// paginate splits the merged tall image into pages via whitespace-aware
// pagination (spec.md §4.8 step 5): active-band packing first, falling
// back to whitespace slicing when no bands are found or a packed page
// overruns the hard cap.
func paginate(merged *imaging.Gray, opts models.FinalizeOptions) []*imaging.Gray {
	w, h := merged.W, merged.H
	if h == 0 {
		return nil
	}
	pageRatio := opts.PageRatio
	if pageRatio <= 0 {
		pageRatio = 1 / math.Sqrt2
	}
	target := clampInt(int(math.Round(float64(w)/pageRatio)), 900, 2600)

	mask := imaging.AdaptiveThresholdMeanInverted(merged, 25, 10)
	mask = imaging.Open(mask, w, h, 3)
	density := imaging.RowDensity(mask, w, h)

	bandThreshold := clampFloat(imaging.Percentile(density, 72)*0.34, 0.004, 0.03)
	minBandLen := maxInt(6, int(0.004*float64(h)))
	bands := activeBands(density, bandThreshold, minBandLen)

	fillMode := opts.FillMode
	if fillMode == "" {
		fillMode = models.FillBalanced
	}

	var pages []bandRange
	if len(bands) > 0 {
		pages = packBands(bands, target, fillMode)
	}
	if len(bands) == 0 || exceedsCap(pages, target, 1.32) {
		pages = whitespaceSlice(density, target, fillMode, bandThreshold)
	}

	pages = resolveOverlaps(pages, density)
	pages = enforceMinHeight(pages, target, fillMode)
	pages = mergeShortTrailing(pages, target, fillMode)

	// Close the gaps band packing leaves between pages so every merged row
	// lands on exactly one page.
	if len(pages) > 0 {
		pages[0].start = 0
		for i := 1; i < len(pages); i++ {
			pages[i].start = pages[i-1].end
		}
		pages[len(pages)-1].end = h
	}

	var out []*imaging.Gray
	for _, p := range pages {
		out = append(out, cropRows(merged, p.start, p.end))
	}
	return out
}

func activeBands(density []float64, threshold float64, minLen int) []bandRange {
	var bands []bandRange
	start := -1
	for y, d := range density {
		if d > threshold {
			if start == -1 {
				start = y
			}
			continue
		}
		if start != -1 {
			if y-start >= minLen {
				bands = append(bands, bandRange{start, y})
			}
			start = -1
		}
	}
	if start != -1 && len(density)-start >= minLen {
		bands = append(bands, bandRange{start, len(density)})
	}
	return bands
}

// packBands greedily packs consecutive active bands into pages per
// spec.md §4.8 step 5's fill-mode soft/hard/underfill limits.
func packBands(bands []bandRange, target int, fillMode models.FillMode) []bandRange {
	var soft, hard, underfill float64
	switch fillMode {
	case models.FillPerformance:
		soft, hard, underfill = 1.02, 1.10, 0.90
	default:
		soft, hard, underfill = 0.93, 0.93, 0
	}

	var pages []bandRange
	curStart, curEnd := bands[0].start, bands[0].start
	for _, b := range bands {
		if curEnd == curStart {
			curStart, curEnd = b.start, b.end
			if float64(curEnd-curStart) >= soft*float64(target) {
				pages = append(pages, bandRange{curStart, curEnd})
				curStart, curEnd = curEnd, curEnd
			}
			continue
		}

		candHeight := b.end - curStart
		if float64(candHeight) <= hard*float64(target) {
			curEnd = b.end
			if float64(curEnd-curStart) >= soft*float64(target) {
				pages = append(pages, bandRange{curStart, curEnd})
				curStart, curEnd = curEnd, curEnd
			}
			continue
		}

		curHeight := curEnd - curStart
		if fillMode == models.FillPerformance && float64(curHeight) < underfill*float64(target) && float64(candHeight) <= hard*float64(target)*1.0 {
			curEnd = b.end
			continue
		}

		pages = append(pages, bandRange{curStart, curEnd})
		curStart, curEnd = b.start, b.end
	}
	if curEnd > curStart {
		pages = append(pages, bandRange{curStart, curEnd})
	}
	return pages
}

func exceedsCap(pages []bandRange, target int, factor float64) bool {
	for _, p := range pages {
		if float64(p.end-p.start) > factor*float64(target) {
			return true
		}
	}
	return false
}

func resolveOverlaps(pages []bandRange, density []float64) []bandRange {
	for i := 1; i < len(pages); i++ {
		if pages[i].start < pages[i-1].end {
			cut := minDensityRow(density, pages[i].start, pages[i-1].end)
			pages[i-1].end = cut
			pages[i].start = cut
		}
	}
	return pages
}

func minDensityRow(density []float64, lo, hi int) int {
	best := lo
	bestVal := math.MaxFloat64
	for y := lo; y < hi && y < len(density); y++ {
		if density[y] < bestVal {
			bestVal = density[y]
			best = y
		}
	}
	return best
}

// whitespaceSlice is the fallback pagination path: walk a cursor across
// the image, cutting near the target height at the cleanest nearby blank
// row (spec.md §4.8 step 5's whitespace-slicing fallback).
func whitespaceSlice(density []float64, target int, fillMode models.FillMode, blankThreshold float64) []bandRange {
	h := len(density)
	var pages []bandRange
	cursor := 0
	for cursor < h {
		desired := minInt(cursor+target, h)
		cut := findCut(density, cursor, desired, blankThreshold, fillMode, target, h)
		if cut <= cursor {
			cut = desired
		}
		pages = append(pages, bandRange{cursor, cut})
		cursor = cut
	}
	return pages
}

func findCut(density []float64, cursor, desired int, blankThreshold float64, fillMode models.FillMode, target, h int) int {
	window := maxInt(6, target/10)
	lo := maxInt(cursor, desired-window)

	cut := -1
	if fillMode == models.FillPerformance {
		for y := minInt(desired, h-1); y >= lo; y-- {
			if density[y] <= blankThreshold*0.96 {
				cut = y
				break
			}
		}
	} else {
		bestVal := math.MaxFloat64
		for y := lo; y <= desired && y < h; y++ {
			if density[y] < bestVal {
				bestVal = density[y]
				cut = y
			}
		}
	}
	if cut == -1 {
		cut = desired
	}

	if cut < h && density[cut] > blankThreshold*1.25 {
		forwardLimit := minInt(desired+int(0.28*float64(target)), h)
		for y := desired; y < forwardLimit; y++ {
			if density[y] <= blankThreshold {
				cut = y
				break
			}
		}
	}
	if cut > h {
		cut = h
	}
	return cut
}

func enforceMinHeight(pages []bandRange, target int, fillMode models.FillMode) []bandRange {
	minFrac := 0.58
	if fillMode == models.FillPerformance {
		minFrac = 0.74
	}
	minHeight := int(minFrac * float64(target))

	var out []bandRange
	for _, p := range pages {
		if len(out) > 0 && p.end-p.start < minHeight {
			out[len(out)-1].end = p.end
			continue
		}
		out = append(out, p)
	}
	return out
}

// mergeShortTrailing absorbs a too-short final page into its predecessor
// when doing so stays within the fill mode's absorb cap.
func mergeShortTrailing(pages []bandRange, target int, fillMode models.FillMode) []bandRange {
	if len(pages) < 2 {
		return pages
	}
	tailFrac, absorbFrac := 0.22, 1.08
	if fillMode == models.FillPerformance {
		tailFrac, absorbFrac = 0.42, 1.18
	}

	last := pages[len(pages)-1]
	prev := pages[len(pages)-2]
	lastHeight := last.end - last.start
	if float64(lastHeight) < tailFrac*float64(target) && float64(last.end-prev.start) <= absorbFrac*float64(target) {
		merged := bandRange{prev.start, last.end}
		pages = append(pages[:len(pages)-2], merged)
	}
	return pages
}

func cropRows(g *imaging.Gray, start, end int) *imaging.Gray {
	start = clampInt(start, 0, g.H)
	end = clampInt(end, 0, g.H)
	if end <= start {
		end = minInt(start+1, g.H)
	}
	out := imaging.NewGray(g.W, end-start)
	for y := start; y < end; y++ {
		for x := 0; x < g.W; x++ {
			out.Set(x, y-start, g.At(x, y))
		}
	}
	return out
}
