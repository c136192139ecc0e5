package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/bubblechamber/internal/chamber"
	"github.com/san-kum/bubblechamber/internal/particle"
	"gonum.org/v1/gonum/spatial/r2"
)

type fakeView struct {
	grid      *chamber.Grid
	particles []particle.Particle
}

func (f *fakeView) StepCount() int                 { return 0 }
func (f *fakeView) Grid() *chamber.Grid            { return f.grid }
func (f *fakeView) Particles() []particle.Particle { return f.particles }
func (f *fakeView) Active() bool                   { return f.ActiveCount() > 0 }
func (f *fakeView) ActiveCount() int {
	n := 0
	for _, p := range f.particles {
		if p.Dirty {
			n++
		}
	}
	return n
}

type zero struct{}

func (zero) Sample(_, _ int) float64 { return 0 }

func newView(t *testing.T) *fakeView {
	t.Helper()
	g, err := chamber.Build(chamber.Spec{Width: 40, Height: 40, Rows: 2, Cols: 2}, zero{})
	if err != nil {
		t.Fatal(err)
	}
	return &fakeView{
		grid: g,
		particles: []particle.Particle{
			{Dirty: true, Velocity: r2.Vec{X: 3, Y: 4}, Trail: make([]r2.Vec, 2)},
			{Dirty: true, Velocity: r2.Vec{X: 1}, Trail: make([]r2.Vec, 4)},
			{Fate: particle.Settled, Trail: make([]r2.Vec, 6)},
			{Fate: particle.Exited, Velocity: r2.Vec{X: 100}, Trail: make([]r2.Vec, 8)},
		},
	}
}

func TestDefaultMetrics(t *testing.T) {
	v := newView(t)
	want := map[string]float64{
		"active_fraction":   0.5,
		"settled":           1,
		"exited":            1,
		"mean_trail_length": 5,
		"mean_speed":        3,
	}

	for _, m := range Defaults() {
		m.Observe(v)
		expected, ok := want[m.Name()]
		if !ok {
			t.Errorf("unexpected metric %s", m.Name())
			continue
		}
		if math.Abs(m.Value()-expected) > 1e-12 {
			t.Errorf("%s = %v, want %v", m.Name(), m.Value(), expected)
		}
	}
}

func TestMeanSpeedAccumulates(t *testing.T) {
	v := newView(t)
	m := NewMeanSpeed()

	m.Observe(v)
	v.particles[0].Velocity = r2.Vec{X: 9}
	m.Observe(v)

	if got := m.Value(); math.Abs(got-(5+1+9+1)/4.0) > 1e-12 {
		t.Errorf("mean speed %v", got)
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("reset should clear samples")
	}
}

func TestResetValues(t *testing.T) {
	v := newView(t)
	for _, m := range Defaults() {
		m.Observe(v)
		m.Reset()
	}

	a := NewActiveFraction()
	if a.Value() != 1 {
		t.Errorf("active fraction starts at 1, got %v", a.Value())
	}
}
