package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"time"

	"github.com/san-kum/bubblechamber/internal/chamber"
	"github.com/san-kum/bubblechamber/internal/config"
	"github.com/san-kum/bubblechamber/internal/metrics"
	"github.com/san-kum/bubblechamber/internal/particle"
	"github.com/san-kum/bubblechamber/internal/sim"
)

var ErrFinished = errors.New("experiment: run already finished")

type Result struct {
	Seed    int64
	Steps   int
	Elapsed time.Duration
	// Truncated is set when MaxSteps stopped the run with particles still
	// moving.
	Truncated bool
	Activity  []int
	Metrics   map[string]float64
}

// StepsPerSecond is the simulation throughput including rendering.
func (r *Result) StepsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Steps) / r.Elapsed.Seconds()
}

type Option func(*Experiment)

// WithLogger sets the diagnostic sink. The default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(e *Experiment) { e.log = l }
}

// WithVerbose logs every chamber and its particle after generation.
func WithVerbose(v bool) Option {
	return func(e *Experiment) { e.verbose = v }
}

func WithRenderers(rs ...sim.Renderer) Option {
	return func(e *Experiment) { e.renderers = append(e.renderers, rs...) }
}

func WithMetrics(ms ...metrics.Metric) Option {
	return func(e *Experiment) { e.metrics = append(e.metrics, ms...) }
}

// Experiment is one artwork run: a grid, its particles and the renderers
// watching them.
type Experiment struct {
	cfg       config.Config
	log       *log.Logger
	verbose   bool
	sim       *sim.Simulation
	renderers []sim.Renderer
	metrics   []metrics.Metric
	activity  []int
	begun     bool
	finished  bool
	start     time.Time
}

// New builds the grid and particles from cfg. The random source is seeded
// once from cfg.Seed and consumed by field sampling and then by particle
// generation.
func New(cfg config.Config, opts ...Option) (*Experiment, error) {
	e := &Experiment{
		cfg: cfg,
		log: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	sampler, err := chamber.NewSampler(cfg.Sampler, rng, cfg.FieldStddev)
	if err != nil {
		return nil, err
	}
	grid, err := chamber.Build(cfg.GridSpec(), sampler)
	if err != nil {
		return nil, fmt.Errorf("build grid: %w", err)
	}
	particles, err := particle.Generate(grid, rng, cfg.ParticleParams())
	if err != nil {
		return nil, fmt.Errorf("generate particles: %w", err)
	}

	if e.verbose {
		for i := 0; i < grid.Rows(); i++ {
			for j := 0; j < grid.Cols(); j++ {
				e.log.Printf("[%d][%d] %v - %v", i, j, grid.At(i, j), particles[i*grid.Cols()+j])
			}
		}
	}

	s, err := sim.New(grid, particles, cfg.SimConfig())
	if err != nil {
		return nil, err
	}
	e.sim = s
	e.activity = make([]int, 0, 256)
	return e, nil
}

func (e *Experiment) Simulation() *sim.Simulation { return e.sim }
func (e *Experiment) Config() config.Config       { return e.cfg }
func (e *Experiment) Activity() []int             { return e.activity }

// Begin starts the simulation and hands the grid outline to renderers that
// draw it.
func (e *Experiment) Begin() error {
	if e.finished {
		return ErrFinished
	}
	if e.begun {
		return nil
	}
	for _, m := range e.metrics {
		m.Reset()
	}
	e.sim.Start()
	if e.cfg.ShowGrid {
		g := e.sim.Grid()
		for _, r := range e.renderers {
			if gd, ok := r.(sim.GridDrawer); ok {
				if err := gd.DrawGrid(g.Width(), g.Height(), g.Rows(), g.Cols()); err != nil {
					return fmt.Errorf("draw grid: %w", err)
				}
			}
		}
	}
	e.begun = true
	e.start = time.Now()
	e.log.Printf("started %dx%d grid on %s canvas, seed %d", e.cfg.Rows, e.cfg.Cols, e.cfg.Size(), e.cfg.Seed)
	return nil
}

// Advance runs one step followed by one render of every renderer and reports
// whether any particle is still active.
func (e *Experiment) Advance() (bool, error) {
	if e.finished {
		return false, ErrFinished
	}
	if !e.begun {
		if err := e.Begin(); err != nil {
			return false, err
		}
	}

	active, err := e.sim.Step()
	if err != nil {
		return false, err
	}
	e.activity = append(e.activity, e.sim.ActiveCount())

	for _, m := range e.metrics {
		m.Observe(e.sim)
	}
	for _, r := range e.renderers {
		if err := r.Render(e.sim); err != nil {
			return false, fmt.Errorf("render step %d: %w", e.sim.StepCount(), err)
		}
	}
	return active, nil
}

// Finish finalizes every renderer and collects the result.
func (e *Experiment) Finish() (*Result, error) {
	if e.finished {
		return nil, ErrFinished
	}
	e.finished = true

	for _, r := range e.renderers {
		if err := r.Finalize(e.sim); err != nil {
			return nil, fmt.Errorf("finalize: %w", err)
		}
	}

	result := &Result{
		Seed:      e.cfg.Seed,
		Steps:     e.sim.StepCount(),
		Truncated: e.sim.Active(),
		Activity:  e.activity,
		Metrics:   make(map[string]float64, len(e.metrics)),
	}
	if !e.start.IsZero() {
		result.Elapsed = time.Since(e.start)
	}
	for _, m := range e.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	e.log.Printf("finished after %d steps in %v (%.0f steps/s)", result.Steps, result.Elapsed, result.StepsPerSecond())
	return result, nil
}

// Execute steps until no particle is active, then finalizes. With MaxSteps
// set it stops early instead, leaving Result.Truncated set; without it a
// frictionless closed orbit runs until ctx is canceled. ctx is only checked
// between steps.
func (e *Experiment) Execute(ctx context.Context) (*Result, error) {
	if err := e.Begin(); err != nil {
		return nil, err
	}

	for active := e.sim.Active(); active; {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("run canceled at step %d: %w", e.sim.StepCount(), ctx.Err())
		default:
		}

		if e.cfg.MaxSteps > 0 && e.sim.StepCount() >= e.cfg.MaxSteps {
			e.log.Printf("step cap %d reached with %d particles active", e.cfg.MaxSteps, e.sim.ActiveCount())
			break
		}

		var err error
		active, err = e.Advance()
		if err != nil {
			return nil, err
		}
	}

	return e.Finish()
}
