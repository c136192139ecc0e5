package experiment

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/bubblechamber/internal/config"
	"github.com/san-kum/bubblechamber/internal/metrics"
	"github.com/san-kum/bubblechamber/internal/sim"
)

type recordingRenderer struct {
	gridCalls int
	frames    int
	finalized int
	lastStep  int
}

func (r *recordingRenderer) DrawGrid(width, height, rows, cols int) error {
	r.gridCalls++
	return nil
}

func (r *recordingRenderer) Render(v sim.View) error {
	r.frames++
	r.lastStep = v.StepCount()
	return nil
}

func (r *recordingRenderer) Finalize(v sim.View) error {
	r.finalized++
	return nil
}

func scenarioConfig() config.Config {
	cfg := *config.DefaultConfig()
	cfg.Width, cfg.Height = 100, 100
	cfg.Rows, cfg.Cols = 2, 2
	cfg.FieldStddev = 0
	cfg.FrictionLambda = 1.0
	cfg.Seed = 17
	return cfg
}

func TestExecuteSettlesScenario(t *testing.T) {
	cfg := scenarioConfig()
	r := &recordingRenderer{}

	exp, err := New(cfg, WithRenderers(r), WithMetrics(metrics.Defaults()...))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if n := exp.Simulation().Len(); n != 4 {
		t.Fatalf("expected 4 particles, got %d", n)
	}

	result, err := exp.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	bound := int(math.Ceil(math.Log(cfg.Particles.SpeedMax/cfg.Sim.SettleEpsilon)/(cfg.FrictionLambda*cfg.Sim.Dt))) + 1
	if result.Steps == 0 || result.Steps > bound {
		t.Errorf("expected 1..%d steps, got %d", bound, result.Steps)
	}
	if result.Truncated {
		t.Error("run should not be truncated")
	}
	if r.frames != result.Steps || r.lastStep != result.Steps {
		t.Errorf("renderer saw %d frames (last step %d) for %d steps", r.frames, r.lastStep, result.Steps)
	}
	if r.finalized != 1 {
		t.Errorf("expected one finalize, got %d", r.finalized)
	}
	if r.gridCalls != 0 {
		t.Error("grid drawn although disabled")
	}
	if len(result.Activity) != result.Steps || result.Activity[len(result.Activity)-1] != 0 {
		t.Errorf("activity should end at zero: %v", result.Activity)
	}
	if got := result.Metrics["settled"] + result.Metrics["exited"]; got != 4 {
		t.Errorf("expected 4 settled or exited particles, got %v", got)
	}
	if result.Metrics["active_fraction"] != 0 {
		t.Errorf("expected no active particles, got fraction %v", result.Metrics["active_fraction"])
	}
}

func TestExecuteDeterministic(t *testing.T) {
	cfg := *config.DefaultConfig()
	cfg.Seed = 99
	cfg.Rows, cfg.Cols = 4, 4

	run := func() *Result {
		exp, err := New(cfg, WithMetrics(metrics.Defaults()...))
		if err != nil {
			t.Fatal(err)
		}
		res, err := exp.Execute(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	a, b := run(), run()
	if a.Steps != b.Steps {
		t.Fatalf("steps differ: %d vs %d", a.Steps, b.Steps)
	}
	for i := range a.Activity {
		if a.Activity[i] != b.Activity[i] {
			t.Fatalf("activity differs at step %d", i+1)
		}
	}
	for name, v := range a.Metrics {
		if b.Metrics[name] != v {
			t.Errorf("metric %s differs: %v vs %v", name, v, b.Metrics[name])
		}
	}
}

func TestExecuteDrawsGrid(t *testing.T) {
	cfg := scenarioConfig()
	cfg.ShowGrid = true
	r := &recordingRenderer{}

	exp, err := New(cfg, WithRenderers(r))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := exp.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.gridCalls != 1 {
		t.Errorf("expected one grid call, got %d", r.gridCalls)
	}
}

func TestExecuteMaxSteps(t *testing.T) {
	cfg := scenarioConfig()
	cfg.FrictionLambda = 0
	cfg.FieldStddev = 3
	cfg.MaxSteps = 25
	cfg.Width, cfg.Height = 2000, 2000
	cfg.Particles.SpeedMin, cfg.Particles.SpeedMax = 1, 2
	r := &recordingRenderer{}

	exp, err := New(cfg, WithRenderers(r))
	if err != nil {
		t.Fatal(err)
	}
	res, err := exp.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Steps != 25 || !res.Truncated {
		t.Errorf("expected truncated run of 25 steps, got %d (truncated=%v)", res.Steps, res.Truncated)
	}
	if r.finalized != 1 {
		t.Error("truncated run should still finalize")
	}
}

func TestExecuteCanceled(t *testing.T) {
	cfg := scenarioConfig()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exp, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := exp.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Rows = 0
	if _, err := New(cfg); err == nil {
		t.Error("expected error for zero rows")
	}

	cfg = scenarioConfig()
	cfg.Sampler = "bogus"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for unknown sampler")
	}
}

type failingRenderer struct{ recordingRenderer }

func (f *failingRenderer) Render(v sim.View) error { return errors.New("canvas gone") }

func TestRenderErrorIsFatal(t *testing.T) {
	exp, err := New(scenarioConfig(), WithRenderers(&failingRenderer{}))
	if err != nil {
		t.Fatal(err)
	}
	_, err = exp.Execute(context.Background())
	if err == nil || !strings.Contains(err.Error(), "canvas gone") {
		t.Errorf("expected render error, got %v", err)
	}
}

func TestStepwiseAPI(t *testing.T) {
	exp, err := New(scenarioConfig())
	if err != nil {
		t.Fatal(err)
	}

	active := true
	for active {
		if active, err = exp.Advance(); err != nil {
			t.Fatal(err)
		}
	}
	res, err := exp.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if res.Steps != len(exp.Activity()) {
		t.Errorf("steps %d, activity %d", res.Steps, len(exp.Activity()))
	}

	if _, err := exp.Advance(); !errors.Is(err, ErrFinished) {
		t.Errorf("expected ErrFinished, got %v", err)
	}
	if _, err := exp.Finish(); !errors.Is(err, ErrFinished) {
		t.Errorf("expected ErrFinished, got %v", err)
	}
}

func TestVerboseLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	exp, err := New(scenarioConfig(), WithLogger(logger), WithVerbose(true))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(buf.String(), "chamber["); got != 4 {
		t.Errorf("expected 4 chamber lines, got %d:\n%s", got, buf.String())
	}
	if _, err := exp.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "finished after") {
		t.Error("missing summary log line")
	}
}
