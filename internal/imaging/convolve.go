package imaging

import "math"

// GaussianKernel1D returns a normalized 1D Gaussian kernel of the given odd
// size, with sigma derived from size the way OpenCV's getGaussianKernel
// does for small fixed kernels (sigma = 0.3*((size-1)*0.5-1)+0.8).
func GaussianKernel1D(size int) []float64 {
	if size%2 == 0 {
		size++
	}
	sigma := 0.3*((float64(size)-1)*0.5-1) + 0.8
	radius := size / 2
	kernel := make([]float64, size)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// GaussianBlur applies a separable Gaussian blur with a kernel of the given
// odd size (e.g. 3 or 5), matching the fixed-kernel blurs spec'd for edge
// detection and dedup pre-processing.
func GaussianBlur(g *Gray, size int) *Gray {
	kernel := GaussianKernel1D(size)
	return convolveSeparable(g, kernel)
}

// BoxBlur applies a normalized box blur of the given odd size.
func BoxBlur(g *Gray, size int) *Gray {
	if size%2 == 0 {
		size++
	}
	kernel := make([]float64, size)
	for i := range kernel {
		kernel[i] = 1.0 / float64(size)
	}
	return convolveSeparable(g, kernel)
}

// MedianBlur applies a square median filter of the given odd size, used by
// the Sheet Finalizer's tone-normalize step.
func MedianBlur(g *Gray, size int) *Gray {
	if size%2 == 0 {
		size++
	}
	radius := size / 2
	out := NewGray(g.W, g.H)
	window := make([]float64, 0, size*size)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			window = window[:0]
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					window = append(window, g.At(x+dx, y+dy))
				}
			}
			out.Set(x, y, median(window))
		}
	}
	return out
}

func median(vals []float64) float64 {
	// small windows; insertion sort is fine and allocation-free.
	for i := 1; i < len(vals); i++ {
		v := vals[i]
		j := i - 1
		for j >= 0 && vals[j] > v {
			vals[j+1] = vals[j]
			j--
		}
		vals[j+1] = v
	}
	return vals[len(vals)/2]
}

func convolveSeparable(g *Gray, kernel []float64) *Gray {
	radius := len(kernel) / 2
	tmp := NewGray(g.W, g.H)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += g.At(x+k, y) * kernel[k+radius]
			}
			tmp.Set(x, y, sum)
		}
	}
	out := NewGray(g.W, g.H)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += tmp.At(x, y+k) * kernel[k+radius]
			}
			out.Set(x, y, sum)
		}
	}
	return out
}

// Sobel returns the horizontal and vertical gradient matrices.
func Sobel(g *Gray) (gx, gy *Gray) {
	kx := [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	ky := [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}
	gx = NewGray(g.W, g.H)
	gy = NewGray(g.W, g.H)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			var sx, sy float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					v := g.At(x+dx, y+dy)
					sx += v * kx[dy+1][dx+1]
					sy += v * ky[dy+1][dx+1]
				}
			}
			gx.Set(x, y, sx)
			gy.Set(x, y, sy)
		}
	}
	return gx, gy
}

// Dilate applies a square structuring element of the given odd size.
func Dilate(mask []bool, w, h, size int) []bool {
	return morph(mask, w, h, size, true)
}

// Erode applies a square structuring element of the given odd size.
func Erode(mask []bool, w, h, size int) []bool {
	return morph(mask, w, h, size, false)
}

// Open performs erosion followed by dilation, used to clean scattered
// changed-pixel noise before structural-XOR comparison.
func Open(mask []bool, w, h, size int) []bool {
	return Dilate(Erode(mask, w, h, size), w, h, size)
}

// Close performs dilation followed by erosion, used to bridge gaps in the
// region detector's Otsu-threshold synthetic candidate.
func Close(mask []bool, w, h, size int) []bool {
	return Erode(Dilate(mask, w, h, size), w, h, size)
}

func morph(mask []bool, w, h, size int, dilate bool) []bool {
	if size%2 == 0 {
		size++
	}
	radius := size / 2
	out := make([]bool, len(mask))
	at := func(x, y int) bool {
		if x < 0 || x >= w || y < 0 || y >= h {
			return false
		}
		return mask[y*w+x]
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			found := !dilate
			for dy := -radius; dy <= radius && found == !dilate; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					v := at(x+dx, y+dy)
					if dilate && v {
						found = true
						break
					}
					if !dilate && !v {
						found = false
						break
					}
				}
			}
			out[y*w+x] = found
		}
	}
	return out
}
