package upscale

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/scorecap/pipeline/internal/accel"
	"github.com/scorecap/pipeline/internal/config"
	"github.com/scorecap/pipeline/internal/ffmpegw"
	"github.com/scorecap/pipeline/internal/pipeline/stitch"
	"github.com/scorecap/pipeline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineChainPrefersNeuralThenGPUThenHWThenCPU(t *testing.T) {
	snap := models.RuntimeAcceleration{
		NeuralSRAvailable: true,
		ResizeBackend:     models.ResizeGPUDirectA,
		HWScalerAvailable: true,
	}
	chain := engineChain(snap, false)
	assert.Equal(t, []engine{engineNeural, engineGPUDirect, engineHWScaler, engineCPU}, chain)
}

func TestEngineChainGPUOnlyDropsHWAndCPU(t *testing.T) {
	snap := models.RuntimeAcceleration{ResizeBackend: models.ResizeGPUDirectA, HWScalerAvailable: true}
	chain := engineChain(snap, true)
	assert.Equal(t, []engine{engineGPUDirect}, chain)
}

func TestEngineChainGPUOnlyWithNoGPUIsEmpty(t *testing.T) {
	snap := models.RuntimeAcceleration{ResizeBackend: models.ResizeCPU, HWScalerAvailable: true}
	chain := engineChain(snap, true)
	assert.Empty(t, chain)
}

func TestEngineChainCPUFallbackAlwaysPresent(t *testing.T) {
	snap := models.RuntimeAcceleration{ResizeBackend: models.ResizeCPU}
	chain := engineChain(snap, false)
	assert.Equal(t, []engine{engineCPU}, chain)
}

func TestPostSharpenPreservesDimensions(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 40, 30))
	out := postSharpen(img)
	assert.Equal(t, 40, out.Bounds().Dx())
	assert.Equal(t, 30, out.Bounds().Dy())
}

func gradientImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), uint8((x + y) % 256), 255})
		}
	}
	return img
}

func writePage(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, gradientImage(w, h)))
}

func newTestUpscaler(t *testing.T, sharpen bool) (*Upscaler, *models.Job) {
	t.Helper()
	cfg := config.AccelConfig{
		HWAccelPreference:   "auto",
		GPUResizePreference: "auto",
		UpscaleEngine:       "auto",
		SharpenPostUpscale:  sharpen,
	}
	ff := ffmpegw.New("ffmpeg-not-installed", "ffprobe-not-installed")
	ac := accel.New(cfg, "ffmpeg-not-installed")
	u := New(ff, ac, cfg)

	dir := t.TempDir()
	job := &models.Job{
		ID:          "j1",
		ArtifactDir: dir,
		Options:     models.JobOptions{Upscale: models.UpscaleOptions{Enable: true, Scale: 1.0}},
	}
	return u, job
}

// With a missing ffmpeg binary, the accel probe falls back to a pure-CPU
// resize backend, so Run only ever exercises engineCPU here - deterministic
// without any subprocess dependency.
func TestRunGatesPostSharpenOnConfig(t *testing.T) {
	pagePath := filepath.Join(t.TempDir(), "page_0000.png")
	writePage(t, pagePath, 64, 48)

	uSharp, jobSharp := newTestUpscaler(t, true)
	resSharp, err := uSharp.Run(context.Background(), jobSharp, stitch.Result{Pages: []string{pagePath}})
	require.NoError(t, err)

	uPlain, jobPlain := newTestUpscaler(t, false)
	resPlain, err := uPlain.Run(context.Background(), jobPlain, stitch.Result{Pages: []string{pagePath}})
	require.NoError(t, err)

	sharpImg, err := loadImage(resSharp.Pages[0])
	require.NoError(t, err)
	plainImg, err := loadImage(resPlain.Pages[0])
	require.NoError(t, err)

	differs := false
	b := sharpImg.Bounds()
	for y := b.Min.Y; y < b.Max.Y && !differs; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if sharpImg.At(x, y) != plainImg.At(x, y) {
				differs = true
				break
			}
		}
	}
	assert.True(t, differs, "SharpenPostUpscale=true must change output pixels relative to false")
}

func TestRunNeuralMissingConfigReturnsError(t *testing.T) {
	u, _ := newTestUpscaler(t, false)
	err := u.runNeural(context.Background(), "in.png", "out.png", 100, 100)
	require.Error(t, err)
}
