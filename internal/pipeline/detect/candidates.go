package detect

import (
	"github.com/scorecap/pipeline/internal/imaging"
	"github.com/scorecap/pipeline/pkg/models"
)

// candidate is one proposed score-content region plus the shape metrics
// the scoring pass needs.
type candidate struct {
	region    models.Region
	areaRatio float64
	aspect    float64
}

// generateCandidates runs the edge-map contour pass plus a layout-specific
// synthetic candidate, per spec.md §4.4 steps 1-3.
func generateCandidates(g *imaging.Gray, layout models.LayoutHint, profile models.LayoutProfile) []candidate {
	w, h := g.W, g.H
	if w == 0 || h == 0 {
		return nil
	}

	blurred := imaging.GaussianBlur(g, 5)
	edges := imaging.Canny(blurred, 40, 140)
	edges = imaging.Dilate(edges, w, h, 3)

	minAreaRatio := profile.AreaTarget - profile.AreaTolerance
	if minAreaRatio < 0.02 {
		minAreaRatio = 0.02
	}

	var cands []candidate
	for _, comp := range imaging.ConnectedComponents(edges, w, h) {
		area := float64(comp.Pixels)
		areaRatio := area / float64(w*h)
		if areaRatio < minAreaRatio || areaRatio > 0.995 {
			continue
		}

		perim := imaging.Perimeter(comp.Boundary)
		if perim <= 0 {
			continue
		}
		poly := dedupPoints(imaging.ApproxPolyDP(comp.Boundary, 0.02*perim))

		if quad, ok := quadFrom(poly); ok {
			region := models.OrderPoints(quad)
			cands = append(cands, candidate{region: region, areaRatio: areaRatio, aspect: regionAspect(region)})
			continue
		}

		rect := imaging.MinAreaRect(comp.Boundary)
		boxArea := rect.Width * rect.Height
		if boxArea <= 0 {
			continue
		}
		fillRatio := area / boxArea
		aspect := rectAspect(rect)
		if fillRatio > 0.35 && fillRatio < 1.2 && aspect > 0.45 && aspect < 3.0 {
			region := models.OrderPoints(toModelQuad(rect.Corners))
			cands = append(cands, candidate{region: region, areaRatio: areaRatio, aspect: aspect})
		}
	}

	if layout == models.LayoutBottomBar {
		if band, ok := bottomBarBand(g); ok {
			cands = append(cands, band)
		}
	} else {
		if synth, ok := otsuCandidate(g); ok {
			cands = append(cands, synth)
		}
	}

	return cands
}

// bottomBarBand finds the longest run of rows in the lower 55% of the
// frame whose smoothed row-mean brightness exceeds 0.54, per spec.md
// §4.4 step 3.
func bottomBarBand(g *imaging.Gray) (candidate, bool) {
	w, h := g.W, g.H
	rowMeans := make([]float64, h)
	for y := 0; y < h; y++ {
		var sum float64
		for x := 0; x < w; x++ {
			sum += g.At(x, y)
		}
		rowMeans[y] = sum / float64(w) / 255.0
	}

	smoothed := smooth1D(rowMeans, 5)

	lowerStart := int(float64(h) * 0.45) // lower 55% begins here
	bestStart, bestEnd, curStart := -1, -1, -1
	for y := lowerStart; y < h; y++ {
		if smoothed[y] > 0.54 {
			if curStart == -1 {
				curStart = y
			}
			if y-curStart > bestEnd-bestStart {
				bestStart, bestEnd = curStart, y
			}
		} else {
			curStart = -1
		}
	}
	if bestStart == -1 {
		return candidate{}, false
	}

	fw, fh := float64(w), float64(h)
	region := models.Region{
		{X: 0, Y: float64(bestStart)}, {X: fw, Y: float64(bestStart)},
		{X: fw, Y: float64(bestEnd)}, {X: 0, Y: float64(bestEnd)},
	}
	areaRatio := float64(bestEnd-bestStart) / fh
	denom := bestEnd - bestStart
	if denom < 1 {
		denom = 1
	}
	aspect := fw / float64(denom)
	return candidate{region: region, areaRatio: areaRatio, aspect: aspect}, true
}

// otsuCandidate thresholds the whole frame and keeps the largest
// closed contour within the accepted area/aspect band, per spec.md §4.4
// step 3's non-bottom_bar synthetic candidate.
func otsuCandidate(g *imaging.Gray) (candidate, bool) {
	w, h := g.W, g.H
	threshold := imaging.OtsuThreshold(g)
	mask := imaging.Binarize(g, threshold)
	mask = imaging.Close(mask, w, h, 11)

	comps := imaging.ConnectedComponents(mask, w, h)
	var largest *imaging.Component
	for i := range comps {
		if largest == nil || comps[i].Pixels > largest.Pixels {
			largest = &comps[i]
		}
	}
	if largest == nil {
		return candidate{}, false
	}

	areaRatio := float64(largest.Pixels) / float64(w*h)
	if areaRatio <= 0.28 || areaRatio >= 0.99 {
		return candidate{}, false
	}
	rect := imaging.MinAreaRect(largest.Boundary)
	aspect := rectAspect(rect)
	if aspect <= 0.7 || aspect >= 2.8 {
		return candidate{}, false
	}
	region := models.OrderPoints(toModelQuad(rect.Corners))
	return candidate{region: region, areaRatio: areaRatio, aspect: aspect}, true
}

func smooth1D(v []float64, window int) []float64 {
	out := make([]float64, len(v))
	half := window / 2
	for i := range v {
		var sum float64
		var n int
		for j := i - half; j <= i+half; j++ {
			if j >= 0 && j < len(v) {
				sum += v[j]
				n++
			}
		}
		out[i] = sum / float64(n)
	}
	return out
}

func dedupPoints(pts []imaging.Pt) []imaging.Pt {
	var out []imaging.Pt
	for _, p := range pts {
		if len(out) == 0 || out[len(out)-1].X != p.X || out[len(out)-1].Y != p.Y {
			out = append(out, p)
		}
	}
	if len(out) > 1 && out[0].X == out[len(out)-1].X && out[0].Y == out[len(out)-1].Y {
		out = out[:len(out)-1]
	}
	return out
}

func quadFrom(poly []imaging.Pt) ([4]models.Point, bool) {
	if len(poly) != 4 {
		return [4]models.Point{}, false
	}
	var out [4]models.Point
	for i, p := range poly {
		out[i] = models.Point{X: p.X, Y: p.Y}
	}
	return out, true
}

func toModelQuad(corners [4]imaging.Pt) [4]models.Point {
	var out [4]models.Point
	for i, p := range corners {
		out[i] = models.Point{X: p.X, Y: p.Y}
	}
	return out
}

func regionAspect(r models.Region) float64 {
	x0, y0, x1, y1 := regionBBox(r)
	h := y1 - y0
	if h <= 0 {
		return 0
	}
	return (x1 - x0) / h
}

func rectAspect(r imaging.RotatedRect) float64 {
	if r.Height <= 0 {
		return 0
	}
	if r.Width < r.Height {
		return r.Height / r.Width
	}
	return r.Width / r.Height
}
