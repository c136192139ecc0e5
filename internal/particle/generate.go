package particle

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/bubblechamber/internal/chamber"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrInvalidParams indicates generation parameters that cannot spawn a
// particle strictly inside its chamber with positive speed.
var ErrInvalidParams = errors.New("particle: invalid generation parameters")

const (
	DefaultMargin   = 0.05
	DefaultSpeedMin = 20.0
	DefaultSpeedMax = 80.0
)

// Params controls spawning. Margin is the fraction of the chamber extent
// kept clear on every side.
type Params struct {
	Margin   float64
	SpeedMin float64
	SpeedMax float64
}

func DefaultParams() Params {
	return Params{
		Margin:   DefaultMargin,
		SpeedMin: DefaultSpeedMin,
		SpeedMax: DefaultSpeedMax,
	}
}

func (p Params) Validate() error {
	if math.IsNaN(p.Margin) || p.Margin < 0 || p.Margin >= 0.5 {
		return fmt.Errorf("%w: margin must be in [0, 0.5), got %v", ErrInvalidParams, p.Margin)
	}
	if !(p.SpeedMin > 0) || math.IsInf(p.SpeedMin, 0) {
		return fmt.Errorf("%w: min speed must be positive, got %v", ErrInvalidParams, p.SpeedMin)
	}
	if !(p.SpeedMax >= p.SpeedMin) || math.IsInf(p.SpeedMax, 0) {
		return fmt.Errorf("%w: max speed %v below min speed %v", ErrInvalidParams, p.SpeedMax, p.SpeedMin)
	}
	return nil
}

// Generate spawns one particle per chamber in row-major order, so particle
// i*cols+j belongs to chamber [i][j]. rng is consumed sequentially (x, y,
// heading, speed per particle) and is never reseeded; seeding it once before
// the call makes the output reproducible.
func Generate(grid *chamber.Grid, rng *rand.Rand, params Params) ([]Particle, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	particles := make([]Particle, 0, grid.Len())
	for idx := 0; idx < grid.Len(); idx++ {
		c := grid.Index(idx)
		particles = append(particles, spawn(c, idx, rng, params))
	}
	return particles, nil
}

func spawn(c chamber.Chamber, idx int, rng *rand.Rand, params Params) Particle {
	x := interior(float64(c.X), float64(c.Width), params.Margin, rng.Float64())
	y := interior(float64(c.Y), float64(c.Height), params.Margin, rng.Float64())

	heading := rng.Float64() * 2 * math.Pi
	speed := params.SpeedMin + rng.Float64()*(params.SpeedMax-params.SpeedMin)

	return Particle{
		Spawn:    r2.Vec{X: x, Y: y},
		Position: r2.Vec{X: x, Y: y},
		Velocity: r2.Vec{X: speed * math.Cos(heading), Y: speed * math.Sin(heading)},
		Dirty:    true,
		Fate:     Moving,
		Origin:   idx,
		Trail:    make([]r2.Vec, 0, 64),
	}
}

// interior maps u in [0, 1) onto the open span (start, start+size) shrunk by
// margin on both ends.
func interior(start, size, margin, u float64) float64 {
	inset := size * margin
	if inset == 0 {
		// Keep off the lower boundary even without a margin.
		inset = math.Min(size*1e-3, 0.5)
	}
	return start + inset + u*(size-2*inset)
}
