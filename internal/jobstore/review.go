// review.go wires the two review-surface operations spec.md §6 exposes on
// a finished job: re-exporting a page subset, and cropping a capture in
// place (delegating to internal/pipeline/recrop).
package jobstore

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/scorecap/pipeline/internal/apperr"
	"github.com/scorecap/pipeline/internal/pipeline/recrop"
	"github.com/scorecap/pipeline/pkg/models"
)

const reviewJPEGQuality = 95

// ReviewExportResult is the set of paths written by a review-export call.
type ReviewExportResult struct {
	Files []string
}

// ReviewExport re-writes a subset of a finished job's finalized pages in
// the requested image formats (png and jpg; a pdf entry in formats is
// skipped and writes no file) under <ArtifactDir>/export/review, removing any
// previous output for that page/format pair before re-writing it (spec.md
// §9: "On review-export, the target image and PDF are removed before
// re-writing").
func ReviewExport(job *models.Job, pageIndices []int, formats []models.ExportFormat) (ReviewExportResult, error) {
	if job.Status != models.JobStatusDone {
		return ReviewExportResult{}, apperr.Conflict("job %s is not done (status %s)", job.ID, job.Status)
	}
	pagesAny, ok := job.Result["pages"]
	if !ok {
		return ReviewExportResult{}, apperr.NotFound("job %s has no finalized pages", job.ID)
	}
	pages, ok := pagesAny.([]string)
	if !ok || len(pages) == 0 {
		return ReviewExportResult{}, apperr.NotFound("job %s has no finalized pages", job.ID)
	}
	if len(pageIndices) == 0 {
		return ReviewExportResult{}, apperr.InvalidInput("review-export requires at least one page index")
	}
	if len(formats) == 0 {
		formats = []models.ExportFormat{models.FormatPNG}
	}

	reviewDir := filepath.Join(job.ArtifactDir, "export", "review")
	if err := os.MkdirAll(reviewDir, 0o755); err != nil {
		return ReviewExportResult{}, fmt.Errorf("create review export dir: %w", err)
	}

	var written []string
	for _, idx := range pageIndices {
		if idx < 0 || idx >= len(pages) {
			return ReviewExportResult{}, apperr.InvalidInput("page index %d out of range (job has %d pages)", idx, len(pages))
		}
		img, err := loadReviewImage(pages[idx])
		if err != nil {
			return ReviewExportResult{}, fmt.Errorf("load page %d: %w", idx, err)
		}
		for _, f := range formats {
			var ext string
			switch f {
			case models.FormatPNG:
				ext = "png"
			case models.FormatJPG:
				ext = "jpg"
			default:
				continue
			}
			out := filepath.Join(reviewDir, fmt.Sprintf("page_%04d.%s", idx, ext))
			if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
				return ReviewExportResult{}, fmt.Errorf("remove stale %s: %w", out, err)
			}
			if f == models.FormatPNG {
				err = saveReviewPNG(out, img)
			} else {
				err = saveReviewJPEG(out, img, reviewJPEGQuality)
			}
			if err != nil {
				return ReviewExportResult{}, fmt.Errorf("write %s: %w", out, err)
			}
			written = append(written, out)
		}
	}

	return ReviewExportResult{Files: written}, nil
}

// CropCapture delegates to internal/pipeline/recrop, enforcing that the
// target path lies inside the job's artifact directory, and appends the
// resulting log line a caller can surface to the job's activity log
// (spec.md's end-to-end capture-crop scenario).
func CropCapture(store *Store, job *models.Job, imgPath string, points []models.Point) (recrop.Result, error) {
	res, err := recrop.Crop(job.ArtifactDir, imgPath, points)
	if err != nil {
		return recrop.Result{}, err
	}
	store.AppendLog(job.ID, fmt.Sprintf("capture crop saved: %s (%dx%d)", filepath.Base(res.Path), res.Width, res.Height))
	return res, nil
}

func loadReviewImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func saveReviewPNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func saveReviewJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: quality})
}
