package stitch

import "github.com/scorecap/pipeline/pkg/models"

// thresholds is one row of spec.md §4.6's dedup-thresholds table, keyed by
// (layout, dedup level).
type thresholds struct {
	Static         float64
	Structure      float64
	Playhead       float64
	MinScrollShift float64
	DHash          int
}

// table holds the per-(layout,level) threshold rows. The two dhash
// figures anchored directly in spec.md §4.6 (page_turn/normal=2,
// bottom_bar/normal=6) are kept verbatim; the rest of the table is an
// Open Question decision recorded in DESIGN.md, since the spec names the
// components but not every numeric row.
var table = map[models.LayoutHint]map[models.DedupLevel]thresholds{
	models.LayoutBottomBar: {
		models.DedupAggressive: {Static: 0.028, Structure: 0.040, Playhead: 0.018, DHash: 8},
		models.DedupNormal:     {Static: 0.020, Structure: 0.030, Playhead: 0.015, DHash: 6},
		models.DedupSensitive:  {Static: 0.012, Structure: 0.018, Playhead: 0.010, DHash: 4},
	},
	models.LayoutFullScroll: {
		models.DedupAggressive: {Static: 0.022, Structure: 0.030, MinScrollShift: 18},
		models.DedupNormal:     {Static: 0.015, Structure: 0.020, MinScrollShift: 12},
		models.DedupSensitive:  {Static: 0.009, Structure: 0.012, MinScrollShift: 6},
	},
	models.LayoutPageTurn: {
		models.DedupAggressive: {Static: 0.032, Structure: 0.045, DHash: 4},
		models.DedupNormal:     {Static: 0.025, Structure: 0.035, DHash: 2},
		models.DedupSensitive:  {Static: 0.016, Structure: 0.024, DHash: 1},
	},
}

func thresholdsFor(layout models.LayoutHint, level models.DedupLevel) thresholds {
	if level == "" {
		level = models.DedupNormal
	}
	row, ok := table[layout]
	if !ok {
		row = table[models.LayoutFullScroll]
	}
	th, ok := row[level]
	if !ok {
		th = row[models.DedupNormal]
	}
	return th
}

// overlapBands maps each stitching layout to the band its effective
// overlap threshold must land in (spec.md §8's monotonicity property).
var overlapBands = map[models.LayoutHint][2]float64{
	models.LayoutFullScroll: {0.62, 0.94},
	models.LayoutBottomBar:  {0.55, 0.92},
	models.LayoutPageTurn:   {0.60, 0.95},
}

// effectiveOverlapThreshold remaps the raw [0,1] overlap_threshold option
// into a layout-specific band via a monotone non-decreasing linear map, so
// the caller always gets a value inside the band and ordering of raw
// inputs is preserved.
func effectiveOverlapThreshold(raw float64, layout models.LayoutHint) float64 {
	band, ok := overlapBands[layout]
	if !ok {
		band = [2]float64{0.60, 0.95}
	}
	raw = clamp01(raw)
	return band[0] + raw*(band[1]-band[0])
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
