package experiment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/san-kum/bubblechamber/internal/config"
	"github.com/san-kum/bubblechamber/internal/metrics"
	"github.com/san-kum/bubblechamber/internal/sim"
)

var ErrNoRuns = errors.New("experiment: ensemble needs at least one run")

// RendererFactory builds the renderers of run idx; renderers are never shared
// between runs.
type RendererFactory func(idx int, seed int64) ([]sim.Renderer, error)

// Ensemble renders numRuns variations of one config with consecutive seeds.
// Runs share nothing, so they execute concurrently. opts are applied to every
// run and must not carry renderers or metrics; those are created per run.
type Ensemble struct {
	base      config.Config
	numRuns   int
	seedStart int64
	renderers RendererFactory
	opts      []Option
}

func NewEnsemble(base config.Config, numRuns int, seedStart int64, renderers RendererFactory, opts ...Option) *Ensemble {
	return &Ensemble{base: base, numRuns: numRuns, seedStart: seedStart, renderers: renderers, opts: opts}
}

// Run returns one result per run in seed order, or the first error.
func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	if e.numRuns <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrNoRuns, e.numRuns)
	}
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = e.runOne(ctx, idx)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

func (e *Ensemble) runOne(ctx context.Context, idx int) (*Result, error) {
	cfg := e.base
	cfg.Seed = e.seedStart + int64(idx)

	opts := append([]Option{WithMetrics(metrics.Defaults()...)}, e.opts...)
	if e.renderers != nil {
		rs, err := e.renderers(idx, cfg.Seed)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithRenderers(rs...))
	}

	exp, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return exp.Execute(ctx)
}
