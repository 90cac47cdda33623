package export

import (
	"image"
	"testing"

	"github.com/scorecap/pipeline/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestHasFormatFindsRequestedFormat(t *testing.T) {
	formats := []models.ExportFormat{models.FormatPNG, models.FormatPDF}
	assert.True(t, hasFormat(formats, models.FormatPDF))
	assert.False(t, hasFormat(formats, models.FormatJPG))
}

func TestDownscaleLongEdgeLeavesSmallImageUntouched(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 800, 600))
	out := downscaleLongEdge(img, 2400)
	assert.Equal(t, 800, out.Bounds().Dx())
}

func TestDownscaleLongEdgeShrinksOversizedImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4800, 1200))
	out := downscaleLongEdge(img, 2400)
	assert.Equal(t, 2400, out.Bounds().Dx())
	assert.Equal(t, 600, out.Bounds().Dy())
}

func TestRawFramePathsMissingKeyReturnsFalse(t *testing.T) {
	job := &models.Job{Result: map[string]any{}}
	_, ok := rawFramePaths(job)
	assert.False(t, ok)
}

func TestRawFramePathsReturnsStoredSlice(t *testing.T) {
	job := &models.Job{Result: map[string]any{"raw_frames": []string{"a.png", "b.png"}}}
	paths, ok := rawFramePaths(job)
	assert.True(t, ok)
	assert.Len(t, paths, 2)
}
