package stitch

import (
	"image"
	"image/color"
	"testing"

	"github.com/scorecap/pipeline/internal/imaging"
	"github.com/scorecap/pipeline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, v uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestEffectiveOverlapThresholdMonotonicAndWithinBand(t *testing.T) {
	layout := models.LayoutFullScroll
	band := overlapBands[layout]
	prev := -1.0
	for _, raw := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1.0} {
		v := effectiveOverlapThreshold(raw, layout)
		assert.GreaterOrEqual(t, v, band[0])
		assert.LessOrEqual(t, v, band[1])
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}

func TestEffectiveOverlapThresholdUnknownLayoutFallsBack(t *testing.T) {
	v := effectiveOverlapThreshold(0.5, models.LayoutHint("weird"))
	assert.InDelta(t, 0.775, v, 1e-9)
}

func TestDedupFrameKeepsFirstFrameAlways(t *testing.T) {
	st := &dedupState{}
	th := thresholdsFor(models.LayoutBottomBar, models.DedupNormal)
	img := solidImage(640, 480, 120)
	assert.True(t, dedupFrame(img, st, models.LayoutBottomBar, th))
}

func TestDedupFrameDropsIdenticalSecondFrame(t *testing.T) {
	st := &dedupState{}
	th := thresholdsFor(models.LayoutBottomBar, models.DedupNormal)
	imgA := solidImage(640, 480, 120)
	imgB := solidImage(640, 480, 120)
	assert.True(t, dedupFrame(imgA, st, models.LayoutBottomBar, th))
	assert.False(t, dedupFrame(imgB, st, models.LayoutBottomBar, th))
}

func TestDedupFrameKeepsSubstantiallyDifferentFrame(t *testing.T) {
	st := &dedupState{}
	th := thresholdsFor(models.LayoutBottomBar, models.DedupNormal)
	imgA := solidImage(640, 480, 20)
	imgB := checkerImage(640, 480)
	assert.True(t, dedupFrame(imgA, st, models.LayoutBottomBar, th))
	assert.True(t, dedupFrame(imgB, st, models.LayoutBottomBar, th))
}

func TestDedupFrameRejectsIdenticalFrameUnderEveryLevelAndLayout(t *testing.T) {
	layouts := []models.LayoutHint{models.LayoutBottomBar, models.LayoutFullScroll, models.LayoutPageTurn}
	levels := []models.DedupLevel{models.DedupAggressive, models.DedupNormal, models.DedupSensitive}
	for _, layout := range layouts {
		for _, level := range levels {
			st := &dedupState{}
			th := thresholdsFor(layout, level)
			a := solidImage(320, 240, 100)
			b := solidImage(320, 240, 100)
			assert.True(t, dedupFrame(a, st, layout, th), "layout=%s level=%s first frame", layout, level)
			assert.False(t, dedupFrame(b, st, layout, th), "layout=%s level=%s duplicate frame", layout, level)
		}
	}
}

func checkerImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/16+y/16)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestLooksLikePlayheadAcceptsNarrowTallBox(t *testing.T) {
	w, h := 400, 200
	mask := make([]bool, w*h)
	boxW, boxX := 20, 190
	for y := 10; y < h-10; y++ {
		for x := boxX; x < boxX+boxW; x++ {
			mask[y*w+x] = true
		}
	}
	assert.True(t, looksLikePlayhead(mask, w, h))
}

func TestLooksLikePlayheadRejectsWideBox(t *testing.T) {
	w, h := 400, 200
	mask := make([]bool, w*h)
	for y := 80; y < 120; y++ {
		for x := 0; x < w; x++ {
			mask[y*w+x] = true
		}
	}
	assert.False(t, looksLikePlayhead(mask, w, h))
}

func TestSplitPageTurnSavesTransitionAndFinalFrame(t *testing.T) {
	a := solidImage(300, 300, 30)
	b := solidImage(300, 300, 30)
	c := checkerImage(300, 300)

	pages := splitPageTurn([]image.Image{a, b, c}, 0.5)
	assert.Len(t, pages, 2)
}

func TestPadToSameWidthPadsToMax(t *testing.T) {
	a := solidImage(200, 100, 10)
	b := solidImage(300, 100, 10)
	pa, pb := padToSameWidth(a, b)
	assert.Equal(t, 300, pa.Bounds().Dx())
	assert.Equal(t, 300, pb.Bounds().Dx())
}

func TestMergeOverlapProducesExpectedHeight(t *testing.T) {
	buf := solidImage(200, 150, 80)
	next := solidImage(200, 150, 80)
	merged := mergeOverlap(buf, next, 40)
	assert.Equal(t, 150+150-40, merged.Bounds().Dy())
	assert.Equal(t, 200, merged.Bounds().Dx())
}

func TestStripDiffIdenticalIsZero(t *testing.T) {
	a := imaging.ToGrayscale(solidImage(100, 100, 50))
	b := imaging.ToGrayscale(solidImage(100, 100, 50))
	d := stripDiff(a, b, 30, 0, 100)
	assert.Equal(t, 0.0, d)
}

// A single frame passes through scrollStitch unchanged: one page, same
// dimensions as the input, per spec.md §8's stitching idempotence property.
func TestScrollStitchSingleFrameIsIdempotent(t *testing.T) {
	a := solidImage(200, 150, 90)
	pages := scrollStitch([]image.Image{a}, 0.5, models.LayoutFullScroll)
	assert.Len(t, pages, 1)
	assert.Equal(t, a.Bounds().Dx(), pages[0].Bounds().Dx())
	assert.Equal(t, a.Bounds().Dy(), pages[0].Bounds().Dy())
}

// Two frames with full overlap (identical content) merge into a single
// page whose height is h(A) + h(B) - overlap, not a flush-and-restart.
func TestScrollStitchMergesFullyOverlappingFrames(t *testing.T) {
	a := solidImage(200, 150, 90)
	b := solidImage(200, 150, 90)
	pages := scrollStitch([]image.Image{a, b}, 0.5, models.LayoutFullScroll)
	require.Len(t, pages, 1)
	assert.Less(t, pages[0].Bounds().Dy(), 300)
	assert.Equal(t, 200, pages[0].Bounds().Dx())
}
