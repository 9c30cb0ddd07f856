package raster

import opensimplex "github.com/ojrac/opensimplex-go"

// Simplex is a procedural height source backed by OpenSimplex noise. The same
// seed and parameters always produce the same raster.
type Simplex struct {
	width     int
	height    int
	noise     opensimplex.Noise
	base      float64
	amplitude float64
	frequency float64
}

// NewSimplex builds a width x height noise raster. base is the mean height,
// amplitude the peak deviation, frequency the noise scale per pixel.
func NewSimplex(width, height int, seed int64, base, amplitude, frequency float64) *Simplex {
	return &Simplex{
		width:     width,
		height:    height,
		noise:     opensimplex.New(seed),
		base:      base,
		amplitude: amplitude,
		frequency: frequency,
	}
}

func (s *Simplex) Width() int  { return s.width }
func (s *Simplex) Height() int { return s.height }

func (s *Simplex) At(x, y int) float64 {
	n := s.noise.Eval2(float64(x)*s.frequency, float64(y)*s.frequency)
	return s.base + s.amplitude*n
}
