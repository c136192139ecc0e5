package metrics

import (
	"github.com/san-kum/bubblechamber/internal/particle"
	"github.com/san-kum/bubblechamber/internal/sim"
)

// Metric accumulates a summary value from per-step observations.
type Metric interface {
	Name() string
	Observe(v sim.View)
	Value() float64
	Reset()
}

// Defaults returns the metrics recorded for every run.
func Defaults() []Metric {
	return []Metric{
		NewActiveFraction(),
		NewFateCount("settled", particle.Settled),
		NewFateCount("exited", particle.Exited),
		NewMeanTrailLength(),
		NewMeanSpeed(),
	}
}

// ActiveFraction is the share of particles still moving at the last step.
type ActiveFraction struct {
	name  string
	value float64
}

func NewActiveFraction() *ActiveFraction {
	return &ActiveFraction{name: "active_fraction", value: 1}
}

func (a *ActiveFraction) Name() string { return a.name }

func (a *ActiveFraction) Observe(v sim.View) {
	n := v.Grid().Len()
	if n == 0 {
		a.value = 0
		return
	}
	a.value = float64(v.ActiveCount()) / float64(n)
}

func (a *ActiveFraction) Value() float64 { return a.value }
func (a *ActiveFraction) Reset()         { a.value = 1 }

// FateCount counts particles that ended with a given fate.
type FateCount struct {
	name  string
	fate  particle.Fate
	count int
}

func NewFateCount(name string, fate particle.Fate) *FateCount {
	return &FateCount{name: name, fate: fate}
}

func (f *FateCount) Name() string { return f.name }

func (f *FateCount) Observe(v sim.View) {
	f.count = 0
	for _, p := range v.Particles() {
		if p.Fate == f.fate {
			f.count++
		}
	}
}

func (f *FateCount) Value() float64 { return float64(f.count) }
func (f *FateCount) Reset()         { f.count = 0 }

// MeanTrailLength is the average number of trail points per particle.
type MeanTrailLength struct {
	name  string
	value float64
}

func NewMeanTrailLength() *MeanTrailLength {
	return &MeanTrailLength{name: "mean_trail_length"}
}

func (m *MeanTrailLength) Name() string { return m.name }

func (m *MeanTrailLength) Observe(v sim.View) {
	ps := v.Particles()
	if len(ps) == 0 {
		m.value = 0
		return
	}
	total := 0
	for _, p := range ps {
		total += len(p.Trail)
	}
	m.value = float64(total) / float64(len(ps))
}

func (m *MeanTrailLength) Value() float64 { return m.value }
func (m *MeanTrailLength) Reset()         { m.value = 0 }

// MeanSpeed averages the speed of active particles over every observed step.
type MeanSpeed struct {
	name    string
	total   float64
	samples int
}

func NewMeanSpeed() *MeanSpeed {
	return &MeanSpeed{name: "mean_speed"}
}

func (m *MeanSpeed) Name() string { return m.name }

func (m *MeanSpeed) Observe(v sim.View) {
	for _, p := range v.Particles() {
		if !p.Dirty {
			continue
		}
		m.total += p.Speed()
		m.samples++
	}
}

func (m *MeanSpeed) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.total / float64(m.samples)
}

func (m *MeanSpeed) Reset() {
	m.total = 0
	m.samples = 0
}
