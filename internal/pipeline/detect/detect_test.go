package detect

import (
	"context"
	"testing"

	"github.com/scorecap/pipeline/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestRunManualModeReturnsOrderedROIWithConfidenceOne(t *testing.T) {
	d := New()
	job := &models.Job{
		Source: models.Source{Kind: models.SourceLocalFile},
		Options: models.JobOptions{
			Detect: models.DetectOptions{
				Mode: models.DetectModeManual,
				ROI: []models.Point{
					{X: 100, Y: 150}, {X: 1180, Y: 150}, {X: 1180, Y: 600}, {X: 100, Y: 600},
				},
			},
		},
	}

	res, err := d.Run(context.Background(), job, []string{"a.png", "b.png"})
	assert.NoError(t, err)
	assert.Len(t, res.Detections, 2)
	for _, det := range res.Detections {
		assert.Equal(t, 1.0, det.Confidence)
		assert.Equal(t, 100.0, det.Region[0].X)
		assert.Equal(t, 150.0, det.Region[0].Y)
	}
}

func TestRunManualModeRejectsWrongPointCount(t *testing.T) {
	d := New()
	job := &models.Job{
		Options: models.JobOptions{
			Detect: models.DetectOptions{Mode: models.DetectModeManual, ROI: []models.Point{{X: 1, Y: 1}}},
		},
	}
	_, err := d.Run(context.Background(), job, []string{"a.png"})
	assert.Error(t, err)
}

func TestMedianRegionComponentWise(t *testing.T) {
	history := []models.Region{
		{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
		{{X: 2, Y: 0}, {X: 12, Y: 0}, {X: 12, Y: 10}, {X: 2, Y: 10}},
		{{X: 4, Y: 0}, {X: 14, Y: 0}, {X: 14, Y: 10}, {X: 4, Y: 10}},
	}
	median := medianRegion(history)
	assert.Equal(t, 2.0, median[0].X)
	assert.Equal(t, 12.0, median[1].X)
}

func TestIoUSelfIsOne(t *testing.T) {
	r := models.Region{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	assert.InDelta(t, 1.0, iou(r, r), 1e-9)
}

func TestIoUDisjointIsZero(t *testing.T) {
	a := models.Region{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	b := models.Region{{X: 100, Y: 100}, {X: 110, Y: 100}, {X: 110, Y: 110}, {X: 100, Y: 110}}
	assert.Equal(t, 0.0, iou(a, b))
}

func TestFallbackRegionBottomRatiosMatchSpec(t *testing.T) {
	r := fallbackRegion(models.FallbackBottom, 1000, 1000)
	assert.InDelta(t, 40, r[0].X, 1e-9)
	assert.InDelta(t, 560, r[0].Y, 1e-9)
	assert.InDelta(t, 960, r[2].X, 1e-9)
	assert.InDelta(t, 960, r[2].Y, 1e-9)
}
