package storage

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/bubblechamber/internal/chamber"
	"github.com/san-kum/bubblechamber/internal/config"
	"github.com/san-kum/bubblechamber/internal/particle"
	"github.com/san-kum/bubblechamber/internal/sim"
)

func smallRun(t *testing.T) (*sim.Simulation, []int) {
	t.Helper()
	rng := rand.New(rand.NewSource(8))
	g, err := chamber.New(60, 60, 2, 2, 1.0, 2.0, rng)
	if err != nil {
		t.Fatal(err)
	}
	ps, err := particle.Generate(g, rng, particle.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	s, err := sim.New(g, ps, sim.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	activity := make([]int, 0)
	for i := 0; i < 10; i++ {
		s.Step()
		activity = append(activity, s.ActiveCount())
	}
	return s, activity
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	s, activity := smallRun(t)
	meta := RunMetadata{
		Seed:     42,
		Config:   *config.DefaultConfig(),
		Steps:    s.StepCount(),
		Elapsed:  3 * time.Millisecond,
		Artifact: "out/cloudscript.svg",
		Metrics:  map[string]float64{"settled": 2},
	}

	runID, err := st.Save(meta, activity, s)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Fatal("expected non-empty run id")
	}

	loaded, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.ID != runID || loaded.Seed != 42 || loaded.Steps != 10 {
		t.Errorf("unexpected metadata %+v", loaded)
	}
	if loaded.Config != *config.DefaultConfig() {
		t.Errorf("config mismatch: %+v", loaded.Config)
	}
	if loaded.Metrics["settled"] != 2 || loaded.Elapsed != 3*time.Millisecond {
		t.Errorf("unexpected metrics/elapsed: %+v", loaded)
	}

	gotActivity, err := st.LoadActivity(runID)
	if err != nil {
		t.Fatalf("load activity failed: %v", err)
	}
	if len(gotActivity) != len(activity) {
		t.Fatalf("expected %d activity rows, got %d", len(activity), len(gotActivity))
	}
	for i := range activity {
		if activity[i] != gotActivity[i] {
			t.Errorf("activity[%d] = %d, want %d", i, gotActivity[i], activity[i])
		}
	}

	trails, err := st.LoadTrails(runID)
	if err != nil {
		t.Fatalf("load trails failed: %v", err)
	}
	ps := s.Particles()
	if len(trails) != len(ps) {
		t.Fatalf("expected %d trails, got %d", len(ps), len(trails))
	}
	for i, p := range ps {
		if len(trails[i]) != len(p.Trail)+1 {
			t.Errorf("trail %d: %d points, want %d", i, len(trails[i]), len(p.Trail)+1)
			continue
		}
		if math.Abs(trails[i][0].X-p.Spawn.X) > 1e-4 || math.Abs(trails[i][0].Y-p.Spawn.Y) > 1e-4 {
			t.Errorf("trail %d starts at %v, want spawn %v", i, trails[i][0], p.Spawn)
		}
	}
}

func TestStoreSameSecondRuns(t *testing.T) {
	st := New(t.TempDir())
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	a, err := st.Save(RunMetadata{Seed: 1, Timestamp: ts}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := st.Save(RunMetadata{Seed: 1, Timestamp: ts}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("expected distinct ids, both %s", a)
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		meta := RunMetadata{Seed: int64(i), Timestamp: base.Add(time.Duration(2-i) * time.Minute)}
		if _, err := st.Save(meta, []int{1}, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(tmpDir, "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].Seed != 2 || runs[2].Seed != 0 {
		t.Errorf("runs not sorted oldest first: %v %v %v", runs[0].Seed, runs[1].Seed, runs[2].Seed)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("nope"); err == nil {
		t.Error("expected error for missing run")
	}
	if _, err := st.LoadActivity("nope"); err == nil {
		t.Error("expected error for missing activity")
	}
}
