// Package terrain implements a sparse, tiled cache of deformable-ground
// particles. Tiles are seeded lazily from a coarse height field, queried by
// radius for force application, and streamed in and out of memory around a
// moving reference position.
package terrain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultParticleRadius is the seeded granule radius in meters.
const DefaultParticleRadius = 0.02

// ErrMalformedRecord marks a persisted tile or particle line that does not
// parse into the expected token count/types. Callers skip the affected record
// and keep going.
var ErrMalformedRecord = errors.New("malformed record")

// Particle is a point of terrain material with a contact radius.
// Position is in world meters.
type Particle struct {
	Position r3.Vec
	Radius   float64
}

// floatPrecision is the decimal precision of the text wire format. Round
// trips preserve values to this precision, not exact bits.
const floatPrecision = 6

func appendFloat(b []byte, v float64) []byte {
	return strconv.AppendFloat(b, v, 'f', floatPrecision, 64)
}

// String formats the particle as "X Y Z Radius\n", four space-separated
// floating-point tokens. This is the on-disk wire format; do not change it.
func (p Particle) String() string {
	b := make([]byte, 0, 64)
	b = appendFloat(b, p.Position.X)
	b = append(b, ' ')
	b = appendFloat(b, p.Position.Y)
	b = append(b, ' ')
	b = appendFloat(b, p.Position.Z)
	b = append(b, ' ')
	b = appendFloat(b, p.Radius)
	b = append(b, '\n')
	return string(b)
}

// ParseParticle parses one "X Y Z Radius" line.
func ParseParticle(line string) (Particle, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return Particle{}, fmt.Errorf("particle line has %d tokens, want 4: %w", len(fields), ErrMalformedRecord)
	}
	vals := make([]float64, 4)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Particle{}, fmt.Errorf("particle token %q: %w", f, ErrMalformedRecord)
		}
		vals[i] = v
	}
	return Particle{
		Position: r3.Vec{X: vals[0], Y: vals[1], Z: vals[2]},
		Radius:   vals[3],
	}, nil
}
