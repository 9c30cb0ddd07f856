package terrain

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

// gridRaster is a minimal in-test height source.
type gridRaster struct {
	w, h int
	pix  []float64
}

func (g gridRaster) Width() int          { return g.w }
func (g gridRaster) Height() int         { return g.h }
func (g gridRaster) At(x, y int) float64 { return g.pix[y*g.w+x] }

func flatRaster(w, h int, v float64) gridRaster {
	pix := make([]float64, w*h)
	for i := range pix {
		pix[i] = v
	}
	return gridRaster{w: w, h: h, pix: pix}
}

func TestHeightField_InitializeRejectsInvalidRaster(t *testing.T) {
	var hf HeightField
	if err := hf.Initialize(nil, r2.Vec{X: 10, Y: 10}, r2.Vec{}); !errors.Is(err, ErrInvalidRaster) {
		t.Fatalf("nil raster err = %v, want ErrInvalidRaster", err)
	}
	if err := hf.Initialize(gridRaster{w: 0, h: 4}, r2.Vec{X: 10, Y: 10}, r2.Vec{}); !errors.Is(err, ErrInvalidRaster) {
		t.Fatalf("zero-width raster err = %v, want ErrInvalidRaster", err)
	}
}

func TestHeightField_InitializeRejectsNonPositiveWorldSize(t *testing.T) {
	var hf HeightField
	if err := hf.Initialize(flatRaster(4, 4, 1), r2.Vec{X: 0, Y: 10}, r2.Vec{}); !errors.Is(err, ErrInvalidRaster) {
		t.Fatalf("zero-width world err = %v, want ErrInvalidRaster", err)
	}
	if err := hf.Initialize(flatRaster(4, 4, 1), r2.Vec{X: 10, Y: -5}, r2.Vec{}); !errors.Is(err, ErrInvalidRaster) {
		t.Fatalf("negative-height world err = %v, want ErrInvalidRaster", err)
	}
	// The field stays unusable, not half-initialized.
	if got := hf.GetHeight(r2.Vec{X: 1, Y: 1}); got != 0 {
		t.Fatalf("rejected initialize left height = %g, want sentinel 0", got)
	}
}

func TestHeightField_GetHeightSamplesNearestPixel(t *testing.T) {
	// 2x2 raster over a 10x10 world: each pixel covers 5x5 m.
	src := gridRaster{w: 2, h: 2, pix: []float64{1, 2, 3, 4}}
	var hf HeightField
	if err := hf.Initialize(src, r2.Vec{X: 10, Y: 10}, r2.Vec{}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	cases := []struct {
		pos  r2.Vec
		want float64
	}{
		{r2.Vec{X: 2, Y: 2}, 1},
		{r2.Vec{X: 7, Y: 2}, 2},
		{r2.Vec{X: 2, Y: 7}, 3},
		{r2.Vec{X: 7, Y: 7}, 4},
	}
	for _, c := range cases {
		if got := hf.GetHeight(c.pos); got != c.want {
			t.Fatalf("GetHeight(%+v) = %g, want %g", c.pos, got, c.want)
		}
	}
}

func TestHeightField_GetHeightClampsOutOfRange(t *testing.T) {
	src := gridRaster{w: 2, h: 2, pix: []float64{1, 2, 3, 4}}
	var hf HeightField
	if err := hf.Initialize(src, r2.Vec{X: 10, Y: 10}, r2.Vec{}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if got := hf.GetHeight(r2.Vec{X: -100, Y: -100}); got != 1 {
		t.Fatalf("below-origin lookup = %g, want edge pixel 1", got)
	}
	if got := hf.GetHeight(r2.Vec{X: 100, Y: 100}); got != 4 {
		t.Fatalf("beyond-extent lookup = %g, want edge pixel 4", got)
	}
}

func TestHeightField_GetHeightHonorsOffset(t *testing.T) {
	src := gridRaster{w: 2, h: 1, pix: []float64{5, 9}}
	var hf HeightField
	if err := hf.Initialize(src, r2.Vec{X: 2, Y: 1}, r2.Vec{X: 100, Y: 100}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got := hf.GetHeight(r2.Vec{X: 100.5, Y: 100.5}); got != 5 {
		t.Fatalf("offset lookup = %g, want 5", got)
	}
	if got := hf.GetHeight(r2.Vec{X: 101.5, Y: 100.5}); got != 9 {
		t.Fatalf("offset lookup = %g, want 9", got)
	}
}

func TestHeightField_ClearReturnsZero(t *testing.T) {
	var hf HeightField
	if err := hf.Initialize(flatRaster(4, 4, 7), r2.Vec{X: 4, Y: 4}, r2.Vec{}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got := hf.GetHeight(r2.Vec{X: 1, Y: 1}); got != 7 {
		t.Fatalf("pre-clear height = %g, want 7", got)
	}
	hf.Clear()
	if got := hf.GetHeight(r2.Vec{X: 1, Y: 1}); got != 0 {
		t.Fatalf("post-clear height = %g, want 0", got)
	}
}
