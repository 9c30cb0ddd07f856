// Package raster provides height sources for terrain.HeightField. Hosts that
// decode real imagery wrap the pixels in a Grid; tests and headless setups can
// use the procedural Simplex source.
package raster

import "fmt"

// Grid is an in-memory height raster, row-major with y*width+x indexing.
type Grid struct {
	width  int
	height int
	pixels []float64
}

// NewGrid wraps a pixel buffer. len(pixels) must equal width*height.
func NewGrid(width, height int, pixels []float64) (*Grid, error) {
	if len(pixels) != width*height {
		return nil, fmt.Errorf("raster: %d pixels for %dx%d grid", len(pixels), width, height)
	}
	return &Grid{width: width, height: height, pixels: pixels}, nil
}

// Uniform returns a flat grid at a constant height.
func Uniform(width, height int, value float64) *Grid {
	pixels := make([]float64, width*height)
	for i := range pixels {
		pixels[i] = value
	}
	return &Grid{width: width, height: height, pixels: pixels}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) At(x, y int) float64 {
	return g.pixels[y*g.width+x]
}
