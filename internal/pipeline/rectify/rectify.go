// Package rectify implements the Rectifier (spec.md §4.5): perspective
// warp of each detected region to a flat rectangle, with an optional
// CLAHE contrast-normalize + unsharp mask enhancement pass. Grounded on
// the internal/imaging primitives (warp.go, clahe.go, convolve.go) built
// for this repo, since no CV library exists anywhere in the example pack.
package rectify

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/scorecap/pipeline/internal/imaging"
	"github.com/scorecap/pipeline/internal/pipeline/detect"
	"github.com/scorecap/pipeline/pkg/models"
)

// Result is the rectifier's output.
type Result struct {
	Dir    string
	Frames []string
}

// Rectifier warps each detected frame region to a flat rectangle.
type Rectifier struct{}

// New constructs a Rectifier.
func New() *Rectifier { return &Rectifier{} }

// Run warps every detection with a non-degenerate region into
// <job.ArtifactDir>/rectified.
func (r *Rectifier) Run(ctx context.Context, job *models.Job, det detect.Result) (Result, error) {
	outDir := filepath.Join(job.ArtifactDir, "rectified")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create rectified dir: %w", err)
	}

	autoEnhance := job.Options.Rectify.AutoEnhance
	var out []string
	seq := 0

	for _, d := range det.Detections {
		img, err := loadImage(d.FramePath)
		if err != nil {
			return Result{}, fmt.Errorf("load %s: %w", d.FramePath, err)
		}

		region := d.Region
		if len(job.Options.Rectify.Override) == 4 {
			region, _ = models.RegionFromPoints(job.Options.Rectify.Override)
		}

		targetW, targetH := targetSize(region)
		if targetW <= 1 || targetH <= 1 {
			continue
		}

		quad := [4]imaging.Pt{
			{X: region[0].X, Y: region[0].Y},
			{X: region[1].X, Y: region[1].Y},
			{X: region[2].X, Y: region[2].Y},
			{X: region[3].X, Y: region[3].Y},
		}
		warped := imaging.WarpPerspective(img, quad, targetW, targetH)

		var final image.Image = warped
		if autoEnhance {
			final = enhance(warped)
		}

		outPath := filepath.Join(outDir, fmt.Sprintf("sheet_%05d.png", seq))
		if err := savePNG(outPath, final); err != nil {
			return Result{}, fmt.Errorf("save rectified frame: %w", err)
		}
		out = append(out, outPath)
		seq++
	}

	return Result{Dir: outDir, Frames: out}, nil
}

// targetSize computes max(top_width, bottom_width) x max(left_height,
// right_height), per spec.md §4.5.
func targetSize(region models.Region) (int, int) {
	tl, tr, br, bl := region[0], region[1], region[2], region[3]
	topWidth := dist(tl, tr)
	bottomWidth := dist(bl, br)
	leftHeight := dist(tl, bl)
	rightHeight := dist(tr, br)
	w := math.Max(topWidth, bottomWidth)
	h := math.Max(leftHeight, rightHeight)
	return int(math.Round(w)), int(math.Round(h))
}

func dist(a, b models.Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// enhance applies CLAHE to the luma channel and a gentle unsharp mask, per
// spec.md §4.5's auto-enhance step. Lab conversion is approximated by
// scaling each channel by the luma ratio before/after CLAHE, since the
// pack carries no color-space conversion library.
func enhance(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	gray := imaging.ToGrayscale(img)
	claheResult := imaging.CLAHE(gray, 2.0, 8, 8)

	out := image.NewRGBA(bounds)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			origL := gray.At(x, y)
			newL := claheResult.At(x, y)
			scale := 1.0
			if origL > 1 {
				scale = newL / origL
			}
			out.SetRGBA(bounds.Min.X+x, bounds.Min.Y+y, rgbaClamp(
				float64(r>>8)*scale, float64(g>>8)*scale, float64(b>>8)*scale, float64(a>>8)))
		}
	}

	return unsharpMask(out, 1.6, -0.6)
}

// unsharpMask implements `posCoeff*img + negCoeff*blur(img)` per-channel
// (negCoeff is passed negative, e.g. 1.6*img - 0.6*blur),
// matching spec.md §4.5's unsharp coefficients.
func unsharpMask(img image.Image, posCoeff, negCoeff float64) image.Image {
	bounds := img.Bounds()
	blurred := imaging.BlurSigma(img, 1.0)
	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r1, g1, b1, a1 := img.At(x, y).RGBA()
			r2, g2, b2, _ := blurred.At(x, y).RGBA()
			out.SetRGBA(x, y, rgbaClamp(
				posCoeff*float64(r1>>8)+negCoeff*float64(r2>>8),
				posCoeff*float64(g1>>8)+negCoeff*float64(g2>>8),
				posCoeff*float64(b1>>8)+negCoeff*float64(b2>>8),
				float64(a1>>8)))
		}
	}
	return out
}

func rgbaClamp(r, g, b, a float64) color.RGBA {
	return color.RGBA{R: clampByte(r), G: clampByte(g), B: clampByte(b), A: clampByte(a)}
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
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
