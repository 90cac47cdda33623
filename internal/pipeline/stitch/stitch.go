// Package stitch implements the Temporal Dedup & Vertical Stitcher
// (spec.md §4.6): drop near-duplicate rectified frames, then either split
// page_turn frames at transitions or grow a scrolling page buffer across
// full_scroll/bottom_bar frames via overlap search and seam blending.
package stitch

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/scorecap/pipeline/internal/pipeline/rectify"
	"github.com/scorecap/pipeline/pkg/models"
)

// Result is the stitcher's output: the assembled page images on disk.
type Result struct {
	Dir   string
	Pages []string
}

// Stitcher runs temporal dedup followed by vertical stitching or
// page-turn splitting.
type Stitcher struct{}

// New constructs a Stitcher.
func New() *Stitcher { return &Stitcher{} }

// Run dedups rect.Frames, then assembles pages per the job's resolved
// layout, writing them to <job.ArtifactDir>/pages.
func (s *Stitcher) Run(ctx context.Context, job *models.Job, rect rectify.Result) (Result, error) {
	outDir := filepath.Join(job.ArtifactDir, "pages")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create pages dir: %w", err)
	}

	layout := models.ResolveLayout(job.Options.Stitch.LayoutHint, job.Options.Detect.PreferBottom, job.Source.Kind)
	level := job.Options.Stitch.DedupLevel
	th := thresholdsFor(layout, level)

	kept, err := dedupFrames(rect.Frames, layout, th)
	if err != nil {
		return Result{}, err
	}
	if len(kept) == 0 {
		return Result{Dir: outDir}, nil
	}

	var pages []image.Image
	switch {
	case layout == models.LayoutPageTurn:
		pages = splitPageTurn(kept, job.Options.Stitch.OverlapThreshold)
	case job.Options.Stitch.Enable:
		pages = scrollStitch(kept, job.Options.Stitch.OverlapThreshold, layout)
	default:
		pages = kept
	}

	var out []string
	for i, p := range pages {
		path := filepath.Join(outDir, fmt.Sprintf("page_%04d.png", i))
		if err := savePNG(path, p); err != nil {
			return Result{}, fmt.Errorf("save page %d: %w", i, err)
		}
		out = append(out, path)
	}

	return Result{Dir: outDir, Pages: out}, nil
}

// dedupFrames loads each frame in order and runs the dedup cascade,
// returning the kept images (already decoded, since the downstream
// stitching stages need them again).
func dedupFrames(framePaths []string, layout models.LayoutHint, th thresholds) ([]image.Image, error) {
	st := &dedupState{}
	var kept []image.Image
	for _, fp := range framePaths {
		img, err := loadImage(fp)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", fp, err)
		}
		if dedupFrame(img, st, layout, th) {
			kept = append(kept, img)
		}
	}
	return kept, nil
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
