package terrain

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrInvalidRaster is returned when a height source has zero dimensions or a
// non-positive world extent.
var ErrInvalidRaster = errors.New("invalid raster")

// Raster is the decoded height source supplied by the host. Image decoding is
// deliberately outside this module; anything that can answer per-pixel height
// works.
type Raster interface {
	Width() int
	Height() int
	// At returns the height at pixel (x, y). Called only with in-range
	// indices during HeightField initialization.
	At(x, y int) float64
}

// HeightField samples surface elevation over a world-aligned raster. Lookups
// use nearest-pixel sampling clamped to the grid edges, so out-of-range
// positions degrade to the boundary height instead of failing.
type HeightField struct {
	worldSize r2.Vec
	offset    r2.Vec
	sizeX     uint32
	sizeY     uint32
	pixels    []float64
}

// Initialize copies the raster into the field and records its world geometry.
// worldSize is the raster's extent in meters and must be positive on both
// axes, origin the world position of pixel (0, 0).
func (h *HeightField) Initialize(src Raster, worldSize, origin r2.Vec) error {
	if src == nil {
		return ErrInvalidRaster
	}
	if worldSize.X <= 0 || worldSize.Y <= 0 {
		return ErrInvalidRaster
	}
	w, ht := src.Width(), src.Height()
	if w <= 0 || ht <= 0 {
		return ErrInvalidRaster
	}
	pixels := make([]float64, w*ht)
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			pixels[y*w+x] = src.At(x, y)
		}
	}
	h.worldSize = worldSize
	h.offset = origin
	h.sizeX = uint32(w)
	h.sizeY = uint32(ht)
	h.pixels = pixels
	return nil
}

// GetHeight returns the surface height at a world 2D position. Positions
// outside the raster clamp to the nearest edge pixel. A cleared or
// uninitialized field returns 0.
func (h *HeightField) GetHeight(pos r2.Vec) float64 {
	if len(h.pixels) == 0 {
		return 0
	}
	ppwX := h.worldSize.X / float64(h.sizeX) // world meters per pixel
	ppwY := h.worldSize.Y / float64(h.sizeY)
	px := clampIndex(int((pos.X-h.offset.X)/ppwX), int(h.sizeX))
	py := clampIndex(int((pos.Y-h.offset.Y)/ppwY), int(h.sizeY))
	return h.pixels[py*int(h.sizeX)+px]
}

// Clear releases the pixel buffer. Subsequent GetHeight calls return 0.
func (h *HeightField) Clear() {
	h.pixels = nil
	h.sizeX = 0
	h.sizeY = 0
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
