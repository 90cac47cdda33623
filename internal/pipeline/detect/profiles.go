package detect

import "github.com/scorecap/pipeline/pkg/models"

// profiles holds the immutable per-layout tuning vector spec.md §3
// describes. Spec.md names the fields but not their numeric values; these
// were chosen to match the layout descriptions in spec.md §4.4 and are
// recorded as an Open Question decision in DESIGN.md.
var profiles = map[models.LayoutHint]models.LayoutProfile{
	models.LayoutBottomBar: {
		Name:                 models.LayoutBottomBar,
		ConfidenceThreshold:  0.42,
		AreaTarget:           0.18,
		AreaTolerance:        0.12,
		AspectTargetFullPage: 0.72,
		AspectTargetStrip:    4.2,
		VerticalCenterTarget: 0.82,
		VerticalCenterTol:    0.18,
		Fallback:             models.FallbackBottom,
		BottomBias:           true,
		HistoryLength:        5,
	},
	models.LayoutFullScroll: {
		Name:                 models.LayoutFullScroll,
		ConfidenceThreshold:  0.38,
		AreaTarget:           0.78,
		AreaTolerance:        0.22,
		AspectTargetFullPage: 0.72,
		AspectTargetStrip:    2.6,
		VerticalCenterTarget: 0.5,
		VerticalCenterTol:    0.3,
		Fallback:             models.FallbackFullPage,
		BottomBias:           false,
		HistoryLength:        5,
	},
	models.LayoutPageTurn: {
		Name:                 models.LayoutPageTurn,
		ConfidenceThreshold:  0.40,
		AreaTarget:           0.74,
		AreaTolerance:        0.22,
		AspectTargetFullPage: 0.72,
		AspectTargetStrip:    2.6,
		VerticalCenterTarget: 0.5,
		VerticalCenterTol:    0.3,
		Fallback:             models.FallbackCenter,
		BottomBias:           false,
		HistoryLength:        3,
	},
}

// fallbackRegion emits a fixed-ratio rectangle per spec.md §4.4's
// layout-specific fallbacks when no candidate scores above threshold and
// no history exists to reuse.
func fallbackRegion(strategy models.FallbackStrategy, w, h int) models.Region {
	fw, fh := float64(w), float64(h)
	var x0, y0, x1, y1 float64
	switch strategy {
	case models.FallbackBottom:
		x0, y0, x1, y1 = 0.04*fw, 0.56*fh, 0.96*fw, 0.96*fh
	case models.FallbackCenter:
		x0, y0, x1, y1 = 0.10*fw, 0.10*fh, 0.90*fw, 0.90*fh
	default: // full_page
		x0, y0, x1, y1 = 0.02*fw, 0.02*fh, 0.98*fw, 0.98*fh
	}
	return models.Region{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
	}
}
