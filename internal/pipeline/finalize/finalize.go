// Package finalize implements the Sheet Finalizer (spec.md §4.8): tone
// normalization, optional content crop, near-duplicate dropping, vertical
// sheet merge, whitespace-aware pagination, and print-margin framing.
package finalize

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/scorecap/pipeline/internal/imaging"
	"github.com/scorecap/pipeline/internal/pipeline/upscale"
	"github.com/scorecap/pipeline/pkg/models"
)

// Result is the finalizer's output.
type Result struct {
	Dir           string
	Pages         []string
	CompleteSheet string
}

// Finalizer assembles print-ready pages from upscaled frames.
type Finalizer struct{}

// New constructs a Finalizer.
func New() *Finalizer { return &Finalizer{} }

// Run applies tone-normalize/content-crop per frame, then merges and
// paginates the sequence into <job.ArtifactDir>/finalized.
func (f *Finalizer) Run(ctx context.Context, job *models.Job, in upscale.Result) (Result, error) {
	outDir := filepath.Join(job.ArtifactDir, "finalized")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create finalized dir: %w", err)
	}

	opts := job.Options.Finalize

	var normalized []*imaging.Gray
	for _, fp := range in.Pages {
		img, err := loadImage(fp)
		if err != nil {
			return Result{}, fmt.Errorf("load %s: %w", fp, err)
		}
		g := toneNormalize(img)
		if opts.ContentCrop {
			g = contentCrop(g)
		}
		normalized = append(normalized, g)
	}

	contributing := len(normalized)
	normalized = dropNearDuplicates(normalized)
	if len(normalized) == 0 {
		return Result{Dir: outDir}, nil
	}

	merged := verticalMerge(normalized)

	var completePath string
	if contributing >= 2 && hasFormat(job.Options.Export.Formats, models.FormatPNG) {
		completePath = filepath.Join(outDir, "sheet_complete.png")
		if err := savePNG(completePath, grayToImage(merged)); err != nil {
			return Result{}, fmt.Errorf("save complete sheet: %w", err)
		}
	}

	pages := paginate(merged, opts)

	var out []string
	for i, p := range pages {
		framed := frame(p, opts.PageRatio)
		path := filepath.Join(outDir, fmt.Sprintf("finalized_%04d.png", i))
		if err := savePNG(path, grayToImage(framed)); err != nil {
			return Result{}, fmt.Errorf("save page %d: %w", i, err)
		}
		out = append(out, path)
	}

	return Result{Dir: outDir, Pages: out, CompleteSheet: completePath}, nil
}

func hasFormat(formats []models.ExportFormat, f models.ExportFormat) bool {
	for _, x := range formats {
		if x == f {
			return true
		}
	}
	return false
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
