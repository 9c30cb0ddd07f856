package terrain

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// DenseTile holds the granules of one fixed-size square region. Origin is the
// tile's min corner in world space; every particle lies within
// [Origin, Origin+tileSize) in X/Y.
type DenseTile struct {
	Origin    r3.Vec
	Particles []Particle
}

// InitializeTile seeds the tile by sampling a regular grid with the given
// spacing across [origin, end) in X/Y. Each grid column gets one particle at
// the height-field surface minus depth. The grid is deterministic: identical
// inputs produce identical particle sets.
func (t *DenseTile) InitializeTile(spacing, depth, radius float64, origin, end r3.Vec, hf *HeightField) {
	t.Origin = origin
	if spacing <= 0 {
		t.Particles = nil
		return
	}
	nx := gridSteps(origin.X, end.X, spacing)
	ny := gridSteps(origin.Y, end.Y, spacing)
	t.Particles = make([]Particle, 0, nx*ny)
	for iy := 0; iy < ny; iy++ {
		y := origin.Y + float64(iy)*spacing
		for ix := 0; ix < nx; ix++ {
			x := origin.X + float64(ix)*spacing
			h := hf.GetHeight(r2.Vec{X: x, Y: y})
			t.Particles = append(t.Particles, Particle{
				Position: r3.Vec{X: x, Y: y, Z: h - depth},
				Radius:   radius,
			})
		}
	}
}

// gridSteps counts grid points in [start, end) at the given spacing. The
// epsilon keeps a point that lands on `end` through float drift from being
// counted.
func gridSteps(start, end, spacing float64) int {
	span := end - start
	if span <= 0 {
		return 0
	}
	return int((span-1e-9)/spacing) + 1
}

// ParticlesInRadius returns pointers to every particle within radius of
// center (3D distance). The pointers alias tile storage and stay valid only
// until the tile is next mutated or reloaded.
func (t *DenseTile) ParticlesInRadius(center r3.Vec, radius float64) []*Particle {
	r2sq := radius * radius
	var out []*Particle
	for i := range t.Particles {
		d := r3.Sub(t.Particles[i].Position, center)
		if r3.Dot(d, d) <= r2sq {
			out = append(out, &t.Particles[i])
		}
	}
	return out
}

// String emits the tile wire format: an "OriginX OriginY OriginZ" line
// followed by one particle line per particle in stored order. No count
// prefix; consumers read to end of block.
func (t *DenseTile) String() string {
	var b strings.Builder
	b.Grow(32 + len(t.Particles)*48)
	line := make([]byte, 0, 64)
	line = appendFloat(line, t.Origin.X)
	line = append(line, ' ')
	line = appendFloat(line, t.Origin.Y)
	line = append(line, ' ')
	line = appendFloat(line, t.Origin.Z)
	line = append(line, '\n')
	b.Write(line)
	for _, p := range t.Particles {
		b.WriteString(p.String())
	}
	return b.String()
}

// ModifyDataFromString parses the inverse of String, replacing the tile's
// particle set. Malformed particle lines are skipped and reported through the
// returned error (wrapping ErrMalformedRecord); parseable lines still apply.
// A malformed origin line aborts without touching the tile.
func (t *DenseTile) ModifyDataFromString(data string) error {
	lines := strings.Split(data, "\n")
	idx := 0
	for idx < len(lines) && strings.TrimSpace(lines[idx]) == "" {
		idx++
	}
	if idx == len(lines) {
		return fmt.Errorf("empty tile block: %w", ErrMalformedRecord)
	}
	origin, err := parseOriginLine(lines[idx])
	if err != nil {
		return err
	}
	idx++

	particles := make([]Particle, 0, len(lines)-idx)
	malformed := 0
	for ; idx < len(lines); idx++ {
		if strings.TrimSpace(lines[idx]) == "" {
			continue
		}
		p, err := ParseParticle(lines[idx])
		if err != nil {
			malformed++
			continue
		}
		particles = append(particles, p)
	}

	t.Origin = origin
	t.Particles = particles
	if malformed > 0 {
		return fmt.Errorf("skipped %d particle lines: %w", malformed, ErrMalformedRecord)
	}
	return nil
}

func parseOriginLine(line string) (r3.Vec, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return r3.Vec{}, fmt.Errorf("origin line has %d tokens, want 3: %w", len(fields), ErrMalformedRecord)
	}
	var vals [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return r3.Vec{}, fmt.Errorf("origin token %q: %w", f, ErrMalformedRecord)
		}
		vals[i] = v
	}
	return r3.Vec{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
