package imaging

import "math"

// CLAHE applies contrast-limited adaptive histogram equalization on a
// grayscale matrix, tiled into tilesX x tilesY blocks with the given clip
// limit, matching cv2.createCLAHE(clipLimit, tileGridSize) used on the L
// channel of Lab during rectification auto-enhance.
func CLAHE(g *Gray, clipLimit float64, tilesX, tilesY int) *Gray {
	tileW := (g.W + tilesX - 1) / tilesX
	tileH := (g.H + tilesY - 1) / tilesY

	// Build equalization maps per tile.
	maps := make([][256]float64, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1 := min(x0+tileW, g.W)
			y1 := min(y0+tileH, g.H)

			var hist [256]int
			count := 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[clampByte(g.At(x, y))]++
					count++
				}
			}
			clipped := clipHistogram(hist, clipLimit, count)
			maps[ty*tilesX+tx] = buildCDF(clipped, count)
		}
	}

	out := NewGray(g.W, g.H)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			// Bilinear interpolation between the four nearest tile centers.
			tfx := float64(x)/float64(tileW) - 0.5
			tfy := float64(y)/float64(tileH) - 0.5
			tx0 := int(math.Floor(tfx))
			ty0 := int(math.Floor(tfy))
			fx := tfx - float64(tx0)
			fy := tfy - float64(ty0)

			clamp := func(v, lo, hi int) int {
				if v < lo {
					return lo
				}
				if v > hi {
					return hi
				}
				return v
			}
			tx0c := clamp(tx0, 0, tilesX-1)
			tx1c := clamp(tx0+1, 0, tilesX-1)
			ty0c := clamp(ty0, 0, tilesY-1)
			ty1c := clamp(ty0+1, 0, tilesY-1)

			v := clampByte(g.At(x, y))
			m00 := maps[ty0c*tilesX+tx0c][v]
			m10 := maps[ty0c*tilesX+tx1c][v]
			m01 := maps[ty1c*tilesX+tx0c][v]
			m11 := maps[ty1c*tilesX+tx1c][v]

			top := m00 + (m10-m00)*fx
			bot := m01 + (m11-m01)*fx
			out.Set(x, y, top+(bot-top)*fy)
		}
	}
	return out
}

func clipHistogram(hist [256]int, clipLimit float64, count int) [256]int {
	limit := int(clipLimit * float64(count) / 256.0)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i, c := range hist {
		if c > limit {
			excess += c - limit
			hist[i] = limit
		}
	}
	redistribute := excess / 256
	for i := range hist {
		hist[i] += redistribute
	}
	return hist
}

func buildCDF(hist [256]int, count int) [256]float64 {
	var cdf [256]float64
	var cumulative int
	for i, c := range hist {
		cumulative += c
		if count > 0 {
			cdf[i] = 255.0 * float64(cumulative) / float64(count)
		}
	}
	return cdf
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
