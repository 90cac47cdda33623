package imaging

import (
	"image"
	"image/color"

	dimg "github.com/disintegration/imaging"
)

var whiteColor = color.RGBA{255, 255, 255, 255}

// ResizeFit downsizes img so it fits within maxW x maxH, preserving aspect
// ratio, used by the dedup/stitch stages to cap comparison resolution to
// <=1600x900 before pixel-diff work.
func ResizeFit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return img
	}
	return dimg.Fit(img, maxW, maxH, dimg.Lanczos)
}

// ResizeExact resizes to an exact target size. Area-like (Box) filtering is
// used when shrinking; Lanczos is used when enlarging, mirroring the
// upscaler's engine-specific interpolation choice (spec.md §4.7).
func ResizeExact(img image.Image, targetW, targetH int) image.Image {
	b := img.Bounds()
	if targetW <= b.Dx() && targetH <= b.Dy() {
		return dimg.Resize(img, targetW, targetH, dimg.Box)
	}
	return dimg.Resize(img, targetW, targetH, dimg.Lanczos)
}

// BlurSigma applies a Gaussian blur parameterized by sigma (not a fixed
// kernel size), used for the unsharp-mask and CLAHE pre/post blurs that the
// spec expresses as sigma rather than a kernel width.
func BlurSigma(img image.Image, sigma float64) image.Image {
	return dimg.Blur(img, sigma)
}

// AdjustGainBias applies img' = alpha*img + beta, matching the Sheet
// Finalizer's tone-normalize gain/bias step (alpha=1.06, beta=6).
func AdjustGainBias(img image.Image, alpha, beta float64) image.Image {
	apply := func(v uint8) uint8 {
		x := alpha*float64(v) + beta
		if x < 0 {
			return 0
		}
		if x > 255 {
			return 255
		}
		return uint8(x)
	}
	return dimg.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: apply(c.R), G: apply(c.G), B: apply(c.B), A: c.A}
	})
}

// PadToWidth pads img to targetW with centered white padding, used by both
// the stitcher and the sheet finalizer before vertical merge.
func PadToWidth(img image.Image, targetW int) image.Image {
	b := img.Bounds()
	if b.Dx() >= targetW {
		return img
	}
	canvas := dimg.New(targetW, b.Dy(), whiteColor)
	offsetX := (targetW - b.Dx()) / 2
	return dimg.Paste(canvas, img, image.Pt(offsetX, 0))
}
