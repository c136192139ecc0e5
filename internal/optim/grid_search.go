// Package optim sweeps config parameters over a grid of values and ranks the
// resulting runs by one of their metrics.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/bubblechamber/internal/config"
	"github.com/san-kum/bubblechamber/internal/experiment"
	"github.com/san-kum/bubblechamber/internal/metrics"
)

var (
	ErrUnknownParam  = errors.New("optim: unknown parameter")
	ErrUnknownMetric = errors.New("optim: unknown metric")
	ErrEmptyGrid     = errors.New("optim: empty search grid")
)

// Setter writes one swept value into a config.
type Setter func(c *config.Config, v float64)

// Params lists the config fields a search can vary, keyed by their yaml name.
var Params = map[string]Setter{
	"magnet_stddev":   func(c *config.Config, v float64) { c.FieldStddev = v },
	"friction_lambda": func(c *config.Config, v float64) { c.FrictionLambda = v },
	"dt":              func(c *config.Config, v float64) { c.Sim.Dt = v },
	"settle_epsilon":  func(c *config.Config, v float64) { c.Sim.SettleEpsilon = v },
	"margin":          func(c *config.Config, v float64) { c.Particles.Margin = v },
	"speed_min":       func(c *config.Config, v float64) { c.Particles.SpeedMin = v },
	"speed_max":       func(c *config.Config, v float64) { c.Particles.SpeedMax = v },
}

func ParamNames() []string {
	names := make([]string, 0, len(Params))
	for name := range Params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Goal int

const (
	Minimize Goal = iota
	Maximize
)

// Trial is one point of the grid. Skipped holds the validation error of a
// combination that was never run.
type Trial struct {
	Params  map[string]float64
	Value   float64
	Result  *experiment.Result
	Skipped error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	goal       Goal
}

func NewGridSearch(params []string, ranges [][]float64, goal Goal) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("%w: %d parameters, %d ranges", ErrEmptyGrid, len(params), len(ranges))
	}
	for i, name := range params {
		if _, ok := Params[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParam, name)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("%w: no values for %s", ErrEmptyGrid, name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges, goal: goal}, nil
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search runs every grid point with base's seed, so trials differ only in the
// swept parameters. It returns the best trial and all trials in grid order.
// Combinations that fail validation are skipped; run errors abort.
func (g *GridSearch) Search(ctx context.Context, base config.Config, metricName string) (Trial, []Trial, error) {
	if !knownMetric(metricName) {
		return Trial{}, nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metricName)
	}

	trials := make([]Trial, 0, g.Size())
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), base, metricName, &trials); err != nil {
		return Trial{}, nil, err
	}

	best := -1
	bestVal := math.Inf(1)
	if g.goal == Maximize {
		bestVal = math.Inf(-1)
	}
	for i, t := range trials {
		if t.Skipped != nil {
			continue
		}
		if (g.goal == Minimize && t.Value < bestVal) || (g.goal == Maximize && t.Value > bestVal) {
			best, bestVal = i, t.Value
		}
	}
	if best < 0 {
		return Trial{}, trials, fmt.Errorf("%w: every combination was invalid", ErrEmptyGrid)
	}
	return trials[best], trials, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base config.Config,
	metricName string,
	trials *[]Trial,
) error {
	if depth == len(g.paramNames) {
		t, err := runTrial(ctx, current, base, metricName)
		if err != nil {
			return err
		}
		*trials = append(*trials, t)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, base, metricName, trials); err != nil {
			return err
		}
	}
	return nil
}

func runTrial(ctx context.Context, params map[string]float64, base config.Config, metricName string) (Trial, error) {
	cfg := base
	for name, v := range params {
		Params[name](&cfg, v)
	}
	t := Trial{Params: params}
	if err := cfg.Validate(); err != nil {
		t.Skipped = err
		return t, nil
	}

	exp, err := experiment.New(cfg, experiment.WithMetrics(metrics.Defaults()...))
	if err != nil {
		return t, err
	}
	result, err := exp.Execute(ctx)
	if err != nil {
		return t, err
	}
	t.Result = result
	t.Value = result.Metrics[metricName]
	return t, nil
}

func knownMetric(name string) bool {
	for _, m := range metrics.Defaults() {
		if m.Name() == name {
			return true
		}
	}
	return false
}

// MaxValues bounds the number of values one range may expand to.
const MaxValues = 10000

// ParseValues reads either a comma separated list ("0.5,1,2") or an
// inclusive range "start:stop:step".
func ParseValues(s string) ([]float64, error) {
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		var bounds [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("parse range %q: %w", s, err)
			}
			bounds[i] = v
		}
		start, stop, step := bounds[0], bounds[1], bounds[2]
		for _, b := range bounds {
			if math.IsNaN(b) || math.IsInf(b, 0) {
				return nil, fmt.Errorf("%w: non-finite bound in %q", ErrEmptyGrid, s)
			}
		}
		if !(step > 0) || stop < start {
			return nil, fmt.Errorf("%w: bad range %q", ErrEmptyGrid, s)
		}
		count := math.Floor((stop-start)/step+1e-9) + 1
		if !(count <= MaxValues) {
			return nil, fmt.Errorf("%w: range %q has more than %d values", ErrEmptyGrid, s, MaxValues)
		}
		values := make([]float64, int(count))
		for i := range values {
			values[i] = start + float64(i)*step
		}
		return values, nil
	}

	var values []float64
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("parse value %q: %w", p, err)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no values in %q", ErrEmptyGrid, s)
	}
	return values, nil
}
