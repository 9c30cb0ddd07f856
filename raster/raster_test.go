package raster

import "testing"

func TestNewGrid_RejectsMismatchedBuffer(t *testing.T) {
	if _, err := NewGrid(3, 3, make([]float64, 8)); err == nil {
		t.Fatalf("expected error for 8 pixels on a 3x3 grid")
	}
}

func TestGrid_At(t *testing.T) {
	g, err := NewGrid(2, 2, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("new grid: %v", err)
	}
	if g.At(0, 0) != 1 || g.At(1, 0) != 2 || g.At(0, 1) != 3 || g.At(1, 1) != 4 {
		t.Fatalf("row-major indexing broken")
	}
}

func TestUniform_IsFlat(t *testing.T) {
	g := Uniform(4, 3, 2.5)
	if g.Width() != 4 || g.Height() != 3 {
		t.Fatalf("dims = %dx%d, want 4x3", g.Width(), g.Height())
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			if g.At(x, y) != 2.5 {
				t.Fatalf("At(%d,%d) = %g, want 2.5", x, y, g.At(x, y))
			}
		}
	}
}

func TestSimplex_DeterministicPerSeed(t *testing.T) {
	a := NewSimplex(16, 16, 42, 10, 2, 0.1)
	b := NewSimplex(16, 16, 42, 10, 2, 0.1)
	other := NewSimplex(16, 16, 7, 10, 2, 0.1)

	differs := false
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if a.At(x, y) != b.At(x, y) {
				t.Fatalf("same seed differs at (%d,%d)", x, y)
			}
			if a.At(x, y) != other.At(x, y) {
				differs = true
			}
		}
	}
	if !differs {
		t.Fatalf("different seeds produced identical rasters")
	}
}

func TestSimplex_StaysWithinAmplitude(t *testing.T) {
	s := NewSimplex(32, 32, 1, 5, 1, 0.2)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			h := s.At(x, y)
			if h < 4-1e-9 || h > 6+1e-9 {
				t.Fatalf("At(%d,%d) = %g outside base±amplitude", x, y, h)
			}
		}
	}
}
