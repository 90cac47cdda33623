package jobstore

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/scorecap/pipeline/internal/apperr"
	"github.com/scorecap/pipeline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePage(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestReviewExportRejectsJobNotDone(t *testing.T) {
	job := &models.Job{ID: "j1", Status: models.JobStatusRunning}
	_, err := ReviewExport(job, []int{0}, []models.ExportFormat{models.FormatPNG})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
}

func TestReviewExportRejectsMissingPages(t *testing.T) {
	job := &models.Job{ID: "j1", Status: models.JobStatusDone, Result: map[string]any{}}
	_, err := ReviewExport(job, []int{0}, []models.ExportFormat{models.FormatPNG})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestReviewExportRejectsOutOfRangeIndex(t *testing.T) {
	dir := t.TempDir()
	pagePath := filepath.Join(dir, "page_0000.png")
	writePage(t, pagePath)

	job := &models.Job{
		ID:          "j1",
		Status:      models.JobStatusDone,
		ArtifactDir: dir,
		Result:      map[string]any{"pages": []string{pagePath}},
	}
	_, err := ReviewExport(job, []int{5}, []models.ExportFormat{models.FormatPNG})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
}

func TestReviewExportWritesRequestedFormats(t *testing.T) {
	dir := t.TempDir()
	pagePath := filepath.Join(dir, "page_0000.png")
	writePage(t, pagePath)

	job := &models.Job{
		ID:          "j1",
		Status:      models.JobStatusDone,
		ArtifactDir: dir,
		Result:      map[string]any{"pages": []string{pagePath}},
	}
	res, err := ReviewExport(job, []int{0}, []models.ExportFormat{models.FormatPNG, models.FormatJPG})
	require.NoError(t, err)
	assert.Len(t, res.Files, 2)
	for _, f := range res.Files {
		_, statErr := os.Stat(f)
		assert.NoError(t, statErr)
	}
}

func TestReviewExportOverwritesStaleOutput(t *testing.T) {
	dir := t.TempDir()
	pagePath := filepath.Join(dir, "page_0000.png")
	writePage(t, pagePath)

	job := &models.Job{
		ID:          "j1",
		Status:      models.JobStatusDone,
		ArtifactDir: dir,
		Result:      map[string]any{"pages": []string{pagePath}},
	}
	_, err := ReviewExport(job, []int{0}, []models.ExportFormat{models.FormatPNG})
	require.NoError(t, err)
	res, err := ReviewExport(job, []int{0}, []models.ExportFormat{models.FormatPNG})
	require.NoError(t, err)
	assert.Len(t, res.Files, 1)
}

func TestCropCaptureAppendsLogLine(t *testing.T) {
	dir := t.TempDir()
	pagePath := filepath.Join(dir, "page_0000.png")
	writePage(t, pagePath)

	store := NewStore()
	job := &models.Job{ID: "j1", ArtifactDir: dir}
	store.Put(job)

	points := []models.Point{{X: 0, Y: 0}, {X: 30, Y: 0}, {X: 30, Y: 30}, {X: 0, Y: 30}}
	_, err := CropCapture(store, job, pagePath, points)
	require.NoError(t, err)

	snap, ok := store.Snapshot("j1")
	require.True(t, ok)
	found := false
	for _, line := range snap.LogTail {
		if line == "capture crop saved: page_0000.png (30x30)" {
			found = true
		}
	}
	assert.True(t, found)
}
