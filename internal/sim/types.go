package sim

import (
	"errors"

	"github.com/san-kum/bubblechamber/internal/chamber"
	"github.com/san-kum/bubblechamber/internal/particle"
)

const (
	DefaultDt            = 0.02
	DefaultSettleEpsilon = 0.1
)

var (
	// ErrNotStarted is returned by Step before Start has been called.
	ErrNotStarted = errors.New("sim: step called before start")

	// ErrParticleCount indicates a particle set that does not map 1:1 onto
	// the grid's chambers.
	ErrParticleCount = errors.New("sim: particle count does not match chamber count")

	// ErrInvalidConfig indicates a non-positive time step or settle epsilon.
	ErrInvalidConfig = errors.New("sim: invalid configuration")
)

// View is the read-only surface renderers and metrics consume.
type View interface {
	StepCount() int
	Grid() *chamber.Grid
	Particles() []particle.Particle
	ActiveCount() int
	Active() bool
}

// Renderer receives the simulation state once per step and once after the
// run. Implementations must not retain or mutate particle trails.
type Renderer interface {
	Render(v View) error
	Finalize(v View) error
}

// GridDrawer is implemented by renderers that can draw chamber boundaries
// before the first step.
type GridDrawer interface {
	DrawGrid(width, height, rows, cols int) error
}

// Observer is notified after every step.
type Observer interface {
	OnStep(v View)
}

type Config struct {
	Dt            float64
	SettleEpsilon float64
}

func DefaultConfig() Config {
	return Config{
		Dt:            DefaultDt,
		SettleEpsilon: DefaultSettleEpsilon,
	}
}
