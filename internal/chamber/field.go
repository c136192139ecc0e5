package chamber

import (
	"fmt"
	"math/rand"

	"github.com/aquilax/go-perlin"
)

// FieldSampler produces the field magnitude of the chamber at (row, col).
// Build calls Sample exactly once per chamber, in row-major order.
type FieldSampler interface {
	Sample(row, col int) float64
}

// NormalSampler draws independent fields from N(0, Stddev^2).
type NormalSampler struct {
	rng    *rand.Rand
	stddev float64
}

func NewNormalSampler(rng *rand.Rand, stddev float64) *NormalSampler {
	return &NormalSampler{rng: rng, stddev: stddev}
}

func (s *NormalSampler) Sample(_, _ int) float64 {
	return s.rng.NormFloat64() * s.stddev
}

// Perlin noise defaults: persistence, frequency multiplier and octaves.
const (
	perlinAlpha   = 2.0
	perlinBeta    = 2.0
	perlinOctaves = 3
	perlinScale   = 0.35
)

// PerlinSampler yields spatially coherent fields: neighbouring chambers get
// similar magnitudes. The noise is seeded once from the shared rng.
type PerlinSampler struct {
	noise  *perlin.Perlin
	stddev float64
	scale  float64
}

func NewPerlinSampler(rng *rand.Rand, stddev float64) *PerlinSampler {
	return &PerlinSampler{
		noise:  perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, rng.Int63()),
		stddev: stddev,
		scale:  perlinScale,
	}
}

func (s *PerlinSampler) Sample(row, col int) float64 {
	// Offset by half a cell so integer lattice points, where noise is zero,
	// are never hit.
	x := (float64(col) + 0.5) * s.scale
	y := (float64(row) + 0.5) * s.scale
	return 2 * s.stddev * s.noise.Noise2D(x, y)
}

// Sampler names accepted by NewSampler.
const (
	SamplerNormal = "normal"
	SamplerPerlin = "perlin"
)

// NewSampler returns the sampler registered under name.
func NewSampler(name string, rng *rand.Rand, stddev float64) (FieldSampler, error) {
	switch name {
	case "", SamplerNormal:
		return NewNormalSampler(rng, stddev), nil
	case SamplerPerlin:
		return NewPerlinSampler(rng, stddev), nil
	default:
		return nil, &UnknownSamplerError{Name: name}
	}
}

// UnknownSamplerError is returned for an unregistered sampler name.
type UnknownSamplerError struct {
	Name string
}

func (e *UnknownSamplerError) Error() string {
	return fmt.Sprintf("chamber: unknown field sampler %q", e.Name)
}

func (e *UnknownSamplerError) Unwrap() error { return ErrInvalidConfig }
