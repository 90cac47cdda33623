package detect

import (
	"github.com/scorecap/pipeline/internal/imaging"
	"github.com/scorecap/pipeline/pkg/models"
)

// selectBest scores every candidate and returns the highest-scoring
// region (spec.md §4.4's weighted-sum candidate scoring, clamped to
// [0,1]). The weights below are an Open Question decision recorded in
// DESIGN.md: spec.md names the score components but not their weights.
func selectBest(cands []candidate, g *imaging.Gray, profile models.LayoutProfile, prev *models.Region, layout models.LayoutHint) (models.Region, float64) {
	var best models.Region
	bestScore := -1.0

	for _, c := range cands {
		score := scoreCandidate(c, g, profile, prev, layout)
		if score > bestScore {
			bestScore = score
			best = c.region
		}
	}
	if bestScore < 0 {
		bestScore = 0
	}
	return best, bestScore
}

func scoreCandidate(c candidate, g *imaging.Gray, profile models.LayoutProfile, prev *models.Region, layout models.LayoutHint) float64 {
	areaScore := clamp01(1 - abs(c.areaRatio-profile.AreaTarget)/profile.AreaTolerance)

	aspectTarget := profile.AspectTargetFullPage
	if layout == models.LayoutBottomBar {
		aspectTarget = profile.AspectTargetStrip
	}
	aspectScore := clamp01(1 - abs(c.aspect-aspectTarget)/aspectTarget)

	lineScore := lineDensityScore(g, c.region)
	brightnessScore := brightnessScoreFor(g, c.region)

	temporalIoU := 0.0
	if prev != nil {
		temporalIoU = iou(c.region, *prev)
	}

	x0, y0, x1, y1 := regionBBox(c.region)
	vCenter := ((y0 + y1) / 2) / float64(g.H)
	vCenterScore := clamp01(1 - abs(vCenter-profile.VerticalCenterTarget)/profile.VerticalCenterTol)

	boundaryPenalty := 0.0
	const edgeTol = 2.0
	if x0 <= edgeTol {
		boundaryPenalty += 0.05
	}
	if y0 <= edgeTol {
		boundaryPenalty += 0.05
	}
	if x1 >= float64(g.W)-edgeTol {
		boundaryPenalty += 0.05
	}
	if y1 >= float64(g.H)-edgeTol {
		boundaryPenalty += 0.05
	}

	layoutBonus := 0.0
	if layout == models.LayoutBottomBar {
		if c.aspect > 2.0 {
			layoutBonus = 0.1
		}
	} else if c.aspect < 1.0 {
		layoutBonus = 0.1
	}

	bottomBiasBonus := 0.0
	if profile.BottomBias && vCenter > 0.6 {
		bottomBiasBonus = 0.05
	}

	score := 0.22*areaScore + 0.16*aspectScore + 0.14*lineScore + 0.12*brightnessScore +
		0.14*temporalIoU + 0.10*vCenterScore - boundaryPenalty + layoutBonus + bottomBiasBonus

	return clamp01(score)
}

// lineDensityScore approximates spec.md §4.4's "horizontal-line-density"
// component: an adaptive-threshold-inverted mask opened by a kernel of
// length w/12, averaged over rows within the candidate's bounding box.
func lineDensityScore(g *imaging.Gray, region models.Region) float64 {
	minX, minY, maxX, maxY := boundsInt(region, g.W, g.H)
	w, h := maxX-minX, maxY-minY
	if w <= 2 || h <= 2 {
		return 0
	}

	sub := imaging.NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sub.Set(x, y, g.At(minX+x, minY+y))
		}
	}

	kernel := w / 12
	if kernel < 1 {
		kernel = 1
	}
	mask := imaging.AdaptiveThresholdMeanInverted(sub, 25, 10)
	mask = imaging.Open(mask, w, h, kernel)
	density := imaging.RowDensity(mask, w, h)
	return clamp01(meanOf(density))
}

func brightnessScoreFor(g *imaging.Gray, region models.Region) float64 {
	minX, minY, maxX, maxY := boundsInt(region, g.W, g.H)
	if maxX <= minX || maxY <= minY {
		return 0
	}
	var sum float64
	var n int
	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			sum += g.At(x, y) / 255.0
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return clamp01(1 - abs(mean-0.78)/0.78)
}

func boundsInt(r models.Region, w, h int) (minX, minY, maxX, maxY int) {
	x0, y0, x1, y1 := regionBBox(r)
	minX, minY = int(x0), int(y0)
	maxX, maxY = int(x1), int(y1)
	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > w {
		maxX = w
	}
	if maxY > h {
		maxY = h
	}
	return
}

func meanOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
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

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
