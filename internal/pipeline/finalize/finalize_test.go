package finalize

import (
	"testing"

	"github.com/scorecap/pipeline/internal/imaging"
	"github.com/scorecap/pipeline/pkg/models"
	"github.com/stretchr/testify/assert"
)

func solidGray(w, h int, v float64) *imaging.Gray {
	g := imaging.NewGray(w, h)
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestDropNearDuplicatesKeepsFirstAndDropsIdentical(t *testing.T) {
	a := solidGray(200, 200, 100)
	b := solidGray(200, 200, 100)
	kept := dropNearDuplicates([]*imaging.Gray{a, b})
	assert.Len(t, kept, 1)
}

func TestDropNearDuplicatesKeepsDistinctFrames(t *testing.T) {
	a := solidGray(200, 200, 10)
	b := solidGray(200, 200, 240)
	kept := dropNearDuplicates([]*imaging.Gray{a, b})
	assert.Len(t, kept, 2)
}

func TestPadGrayWidthPadsToTarget(t *testing.T) {
	g := solidGray(100, 50, 10)
	out := padGrayWidth(g, 150)
	assert.Equal(t, 150, out.W)
	assert.Equal(t, 50, out.H)
}

func TestGainBiasClampsToByteRange(t *testing.T) {
	g := solidGray(2, 2, 250)
	out := gainBias(g, 1.06, 6)
	for _, v := range out.Pix {
		assert.LessOrEqual(t, v, 255.0)
	}
}

func TestActiveBandsFindsContiguousRunAboveThreshold(t *testing.T) {
	density := make([]float64, 100)
	for y := 20; y < 60; y++ {
		density[y] = 0.5
	}
	bands := activeBands(density, 0.1, 6)
	assert.Len(t, bands, 1)
	assert.Equal(t, 20, bands[0].start)
	assert.Equal(t, 60, bands[0].end)
}

func TestActiveBandsDropsRunsShorterThanMinLen(t *testing.T) {
	density := make([]float64, 100)
	density[10] = 0.5
	density[11] = 0.5
	bands := activeBands(density, 0.1, 6)
	assert.Empty(t, bands)
}

func TestPaginateRowCoverageMatchesMergedHeight(t *testing.T) {
	merged := imaging.NewGray(400, 3000)
	for y := 0; y < 3000; y++ {
		for x := 0; x < 400; x++ {
			v := 250.0
			if y%50 < 20 {
				v = 10
			}
			merged.Set(x, y, v)
		}
	}
	opts := models.FinalizeOptions{FillMode: models.FillBalanced, PageRatio: 1 / 1.414}
	pages := paginate(merged, opts)
	if assert.NotEmpty(t, pages) {
		var sum int
		for _, p := range pages {
			sum += p.H
		}
		assert.Equal(t, 3000, sum)
	}
}

func TestFrameAddsMarginsWithoutCroppingContent(t *testing.T) {
	g := solidGray(300, 400, 200)
	framed := frame(g, 1/1.414)
	assert.Greater(t, framed.W, g.W)
	assert.Greater(t, framed.H, g.H)
}

func TestMinDensityRowPicksLowestInRange(t *testing.T) {
	density := []float64{0.5, 0.5, 0.1, 0.5, 0.5}
	row := minDensityRow(density, 0, 5)
	assert.Equal(t, 2, row)
}
