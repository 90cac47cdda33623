package finalize

import "github.com/scorecap/pipeline/internal/imaging"

// frame adds print margins around a finalized page (spec.md §4.8 step 6):
// horizontal margin on each side, an asymmetric top/bottom margin (extra
// bottom to avoid clipping the last staff), and extends the canvas
// downward (never centered, never cropping content) when the framed
// aspect is still wider than the target page ratio.
func frame(g *imaging.Gray, pageRatio float64) *imaging.Gray {
	w, h := g.W, g.H
	hMargin := maxInt(10, int(0.015*float64(w)))
	topMargin := maxInt(14, int(0.026*float64(h)))
	bottomMargin := maxInt(24, int(0.056*float64(h)))

	contentW := w + 2*hMargin
	contentH := h + topMargin + bottomMargin

	finalH := contentH
	if pageRatio > 0 && float64(contentW)/float64(contentH) > pageRatio {
		targetH := int(float64(contentW) / pageRatio)
		if targetH > finalH {
			finalH = targetH
		}
	}

	out := imaging.NewGray(contentW, finalH)
	for i := range out.Pix {
		out.Pix[i] = 255
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(x+hMargin, y+topMargin, g.At(x, y))
		}
	}
	return out
}
