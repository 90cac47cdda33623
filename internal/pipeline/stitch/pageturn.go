package stitch

import (
	"image"
	"math"

	"github.com/scorecap/pipeline/internal/imaging"
)

// splitPageTurn walks the kept page_turn frames and starts a new page
// whenever similarity against the previous frame drops below threshold,
// saving the previous frame at each transition plus the final frame
// (spec.md §4.6's page-splitting rule).
func splitPageTurn(kept []image.Image, overlapThreshold float64) []image.Image {
	if len(kept) == 0 {
		return nil
	}
	threshold := math.Max(0.88, math.Min(0.98, 1-0.25*overlapThreshold))

	var pages []image.Image
	prevImg := kept[0]
	prevGray := imaging.ToGrayscale(prevImg)

	for i := 1; i < len(kept); i++ {
		img := kept[i]
		gray := imaging.ToGrayscale(img)
		cmpGray := gray
		if cmpGray.W != prevGray.W || cmpGray.H != prevGray.H {
			cmpGray = resampleGray(cmpGray, prevGray.W, prevGray.H)
		}
		sim := 1 - imaging.MeanDiff(cmpGray, prevGray)/255

		if sim < threshold {
			pages = append(pages, prevImg)
		}
		prevImg, prevGray = img, gray
	}
	pages = append(pages, prevImg)
	return pages
}

// similarityFor exposes the frame-similarity metric used above for
// package-level testing.
func similarityFor(a, b image.Image) float64 {
	ga := imaging.ToGrayscale(a)
	gb := imaging.ToGrayscale(b)
	if ga.W != gb.W || ga.H != gb.H {
		gb = resampleGray(gb, ga.W, ga.H)
	}
	return 1 - imaging.MeanDiff(ga, gb)/255
}
