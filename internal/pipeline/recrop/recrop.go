// Package recrop implements the Review Recrop operation (spec.md §4.10):
// crop an already-emitted page in place to a user-supplied 4-point
// polygon, after verifying the target path resolves inside the job's
// artifact root.
package recrop

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/scorecap/pipeline/internal/apperr"
	"github.com/scorecap/pipeline/pkg/models"
)

// Result describes the crop that was applied.
type Result struct {
	Path   string
	Width  int
	Height int
}

// Crop clips points to imgPath's bounds, takes their bounding box, and
// rewrites imgPath in place with the cropped content. artifactRoot is the
// job's artifact directory; imgPath must resolve inside it (symlinks
// resolved first) or Crop returns an InvalidInput error.
func Crop(artifactRoot, imgPath string, points []models.Point) (Result, error) {
	if len(points) != 4 {
		return Result{}, apperr.InvalidInput("capture-crop requires exactly 4 points, got %d", len(points))
	}

	resolvedRoot, err := filepath.EvalSymlinks(artifactRoot)
	if err != nil {
		return Result{}, fmt.Errorf("resolve artifact root: %w", err)
	}
	resolvedPath, err := filepath.EvalSymlinks(imgPath)
	if err != nil {
		return Result{}, apperr.InvalidInput("resolve image path: %v", err)
	}
	rel, err := filepath.Rel(resolvedRoot, resolvedPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return Result{}, apperr.InvalidInput("capture-crop path escapes artifact root")
	}

	f, err := os.Open(resolvedPath)
	if err != nil {
		return Result{}, apperr.InvalidInput("open image: %v", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return Result{}, apperr.InvalidInput("decode image: %v", err)
	}

	bounds := img.Bounds()
	minX, minY, maxX, maxY := clippedBBox(points, bounds)
	w, h := maxX-minX, maxY-minY
	if w < 16 || h < 16 {
		return Result{}, apperr.InvalidInput("capture-crop region too small: %dx%d (min 16x16)", w, h)
	}

	cropped := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cropped.Set(x, y, img.At(bounds.Min.X+minX+x, bounds.Min.Y+minY+y))
		}
	}

	out, err := os.Create(resolvedPath)
	if err != nil {
		return Result{}, fmt.Errorf("open for rewrite: %w", err)
	}
	defer out.Close()
	if err := png.Encode(out, cropped); err != nil {
		return Result{}, fmt.Errorf("encode cropped image: %w", err)
	}

	return Result{Path: imgPath, Width: w, Height: h}, nil
}

// clippedBBox clips points to bounds and returns the bounding box, in
// image-local (0-based) coordinates.
func clippedBBox(points []models.Point, bounds image.Rectangle) (minX, minY, maxX, maxY int) {
	w, h := bounds.Dx(), bounds.Dy()
	minX, minY = w, h
	maxX, maxY = 0, 0
	for _, p := range points {
		x := clampInt(int(p.X), 0, w)
		y := clampInt(int(p.Y), 0, h)
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	return
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
