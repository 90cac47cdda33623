package stitch

import (
	"image"
	"math"

	"github.com/scorecap/pipeline/internal/imaging"
	"github.com/scorecap/pipeline/pkg/models"
)

const dhashRingSize = 8

// dedupState carries the running comparison state across frames (spec.md
// §4.6 steps 1-2): the previous kept frame's downsized grayscale, the
// bottom_bar/page_turn dhash ring buffer, and the full_scroll direction
// tracker.
type dedupState struct {
	lastGray  *imaging.Gray
	dhashRing []uint64
	scrollDir int
}

// dedupFrame decides whether fp should be kept against the running state,
// per spec.md §4.6's changed-pixel / structural-XOR / playhead / scroll /
// dhash rejection cascade. It reports only whether to keep the frame; the
// caller keeps its own decoded image for the stitching stages.
func dedupFrame(img image.Image, st *dedupState, layout models.LayoutHint, th thresholds) (keep bool) {
	small := imaging.ResizeFit(img, 1600, 900)
	gray := imaging.ToGrayscale(small)
	blurred := imaging.GaussianBlur(gray, 3)

	if st.lastGray == nil {
		st.lastGray = blurred
		st.recordKept(img, layout)
		return true
	}

	prev := st.lastGray
	cur := blurred
	if cur.W != prev.W || cur.H != prev.H {
		cur = resampleGray(cur, prev.W, prev.H)
	}

	changedRatio := imaging.ChangedRatio(cur, prev, 22)
	structRatio := structuralXORRatio(cur, prev)

	drop := changedRatio < th.Static || structRatio < th.Structure

	if !drop && layout == models.LayoutBottomBar && changedRatio < th.Playhead {
		mask := imaging.ChangedMask(cur, prev, 22)
		if looksLikePlayhead(mask, cur.W, cur.H) {
			drop = true
		}
	}

	if !drop && layout == models.LayoutFullScroll {
		if scrollDrop(cur, prev, th, st) {
			drop = true
		}
	}

	if !drop && (layout == models.LayoutBottomBar || layout == models.LayoutPageTurn) {
		if st.dhashReject(img, th.DHash) {
			drop = true
		}
	}

	if drop {
		return false
	}

	st.lastGray = cur
	st.recordKept(img, layout)
	return true
}

func (st *dedupState) recordKept(img image.Image, layout models.LayoutHint) {
	if layout != models.LayoutBottomBar && layout != models.LayoutPageTurn {
		return
	}
	st.dhashRing = append(st.dhashRing, imaging.DHash(img))
	if len(st.dhashRing) > dhashRingSize {
		st.dhashRing = st.dhashRing[len(st.dhashRing)-dhashRingSize:]
	}
}

func (st *dedupState) dhashReject(img image.Image, threshold int) bool {
	if len(st.dhashRing) == 0 {
		return false
	}
	h := imaging.DHash(img)
	min := -1
	for _, prev := range st.dhashRing {
		d := imaging.Hamming(h, prev)
		if min == -1 || d < min {
			min = d
		}
	}
	return min <= threshold
}

// scrollDrop implements full_scroll's vertical-shift gate: estimate the
// row-mean-correlation shift and reject low-confidence-no-shift frames,
// and reject shifts that jitter against the tracked scroll direction by
// less than 1.8x the minimum shift.
func scrollDrop(cur, prev *imaging.Gray, th thresholds, st *dedupState) bool {
	maxLag := prev.H / 4
	if maxLag < 4 {
		maxLag = 4
	}
	lag, confidence := imaging.RowMeanCorrelation(cur, prev, maxLag)
	if confidence < 0.34 {
		return false
	}
	shift := float64(lag)
	if math.Abs(shift) < th.MinScrollShift {
		return true
	}
	dir := 1
	if shift < 0 {
		dir = -1
	}
	if st.scrollDir != 0 && dir != st.scrollDir && math.Abs(shift) < 1.8*th.MinScrollShift {
		return true
	}
	st.scrollDir = dir
	return false
}

// structuralXORRatio compares adaptive-threshold-inverted, opened masks of
// both frames and returns the fraction of disagreeing pixels.
func structuralXORRatio(a, b *imaging.Gray) float64 {
	maskA := imaging.Open(imaging.AdaptiveThresholdMeanInverted(a, 25, 10), a.W, a.H, 2)
	maskB := imaging.Open(imaging.AdaptiveThresholdMeanInverted(b, 25, 10), b.W, b.H, 2)
	if len(maskA) != len(maskB) {
		return 1
	}
	diff := 0
	for i := range maskA {
		if maskA[i] != maskB[i] {
			diff++
		}
	}
	return float64(diff) / float64(len(maskA))
}

// looksLikePlayhead implements spec.md §4.6's moving-playhead heuristic: a
// tight, tall bounding box of changed pixels (width <=16% of frame width,
// height >=42% of frame height) where, additionally, >=52% of the changed
// pixels are concentrated in a handful of "active" columns (playhead
// sweeps are a thin moving bar, so most of the changed mass sits in the
// few columns the bar crosses; a genuine content change fills the bbox
// width more evenly and fails this concentration check).
func looksLikePlayhead(mask []bool, w, h int) bool {
	minX, minY, maxX, maxY := -1, -1, -1, -1
	total := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask[y*w+x] {
				continue
			}
			total++
			if minX == -1 || x < minX {
				minX = x
			}
			if maxX == -1 || x > maxX {
				maxX = x
			}
			if minY == -1 || y < minY {
				minY = y
			}
			if maxY == -1 || y > maxY {
				maxY = y
			}
		}
	}
	if total == 0 {
		return false
	}
	bboxW := maxX - minX + 1
	bboxH := maxY - minY + 1
	if float64(bboxW) > 0.16*float64(w) {
		return false
	}
	if float64(bboxH) < 0.42*float64(h) {
		return false
	}

	colChanged := make([]int, bboxW)
	for y := minY; y <= maxY; y++ {
		row := y * w
		for x := minX; x <= maxX; x++ {
			if mask[row+x] {
				colChanged[x-minX]++
			}
		}
	}

	activeMass := 0
	for _, c := range colChanged {
		if float64(c) > 0.5*float64(bboxH) {
			activeMass += c
		}
	}

	return float64(activeMass) >= 0.52*float64(total)
}

func resampleGray(g *imaging.Gray, w, h int) *imaging.Gray {
	out := imaging.NewGray(w, h)
	for y := 0; y < h; y++ {
		sy := y * g.H / h
		for x := 0; x < w; x++ {
			sx := x * g.W / w
			out.Set(x, y, g.At(sx, sy))
		}
	}
	return out
}
