package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/bubblechamber/internal/chamber"
	"github.com/san-kum/bubblechamber/internal/particle"
	"gonum.org/v1/gonum/spatial/r2"
)

// Simulation advances the particles of one run through a fixed grid.
//
// Particles are processed in index order. No particle influences another, so
// a different order would only change floating-point rounding in shared
// accumulators, never which particles settle or where.
type Simulation struct {
	grid      *chamber.Grid
	particles []particle.Particle
	cfg       Config
	steps     int
	active    int
	started   bool
	observers []Observer
}

// New takes ownership of particles; particle i*cols+j must belong to chamber
// [i][j].
func New(grid *chamber.Grid, particles []particle.Particle, cfg Config) (*Simulation, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if grid == nil {
		return nil, fmt.Errorf("%w: nil grid", ErrInvalidConfig)
	}
	if len(particles) != grid.Len() {
		return nil, fmt.Errorf("%w: %d particles for %d chambers", ErrParticleCount, len(particles), grid.Len())
	}

	s := &Simulation{
		grid:      grid,
		particles: particles,
		cfg:       cfg,
		observers: make([]Observer, 0),
	}
	s.active = s.countActive()
	return s, nil
}

func validateConfig(cfg Config) error {
	if !(cfg.Dt > 0) || math.IsInf(cfg.Dt, 0) {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalidConfig, cfg.Dt)
	}
	if !(cfg.SettleEpsilon > 0) || math.IsInf(cfg.SettleEpsilon, 0) {
		return fmt.Errorf("%w: settle epsilon must be positive, got %f", ErrInvalidConfig, cfg.SettleEpsilon)
	}
	return nil
}

func (s *Simulation) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Start resets the step counter. Calling it again before stepping is a no-op
// in effect.
func (s *Simulation) Start() {
	s.steps = 0
	s.active = s.countActive()
	s.started = true
}

// Step advances every active particle by one time step and reports whether
// any particle is still active. The caller decides whether to keep stepping;
// a frictionless particle on a closed orbit never settles.
func (s *Simulation) Step() (bool, error) {
	if !s.started {
		return false, ErrNotStarted
	}

	for i := range s.particles {
		p := &s.particles[i]
		if !p.Dirty {
			continue
		}
		s.advance(p)
	}

	s.steps++
	s.active = s.countActive()

	for _, obs := range s.observers {
		obs.OnStep(s)
	}

	return s.active > 0, nil
}

func (s *Simulation) advance(p *particle.Particle) {
	dt := s.cfg.Dt
	c := s.grid.Locate(p.Position)

	// Magnetic force is perpendicular to velocity: turn without changing speed.
	v := r2.Rotate(p.Velocity, c.Field*dt, r2.Vec{})
	v = r2.Scale(math.Exp(-c.Friction*dt), v)

	p.Velocity = v
	p.Position = r2.Add(p.Position, r2.Scale(dt, v))
	p.Trail = append(p.Trail, p.Position)

	switch {
	case r2.Norm(v) < s.cfg.SettleEpsilon:
		p.Settle(particle.Settled)
	case !s.grid.InCanvas(p.Position):
		p.Settle(particle.Exited)
	}
}

func (s *Simulation) countActive() int {
	n := 0
	for i := range s.particles {
		if s.particles[i].Dirty {
			n++
		}
	}
	return n
}

func (s *Simulation) StepCount() int      { return s.steps }
func (s *Simulation) Grid() *chamber.Grid { return s.grid }
func (s *Simulation) ActiveCount() int    { return s.active }
func (s *Simulation) Active() bool        { return s.active > 0 }
func (s *Simulation) Config() Config      { return s.cfg }
func (s *Simulation) Len() int            { return len(s.particles) }

// Particles returns value copies of the particles. Trails share storage with
// the engine but are only ever appended to, so the copies stay consistent.
func (s *Simulation) Particles() []particle.Particle {
	out := make([]particle.Particle, len(s.particles))
	copy(out, s.particles)
	return out
}

// Particle returns a copy of particle i.
func (s *Simulation) Particle(i int) particle.Particle {
	return s.particles[i]
}
