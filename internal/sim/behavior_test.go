package sim

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/bubblechamber/internal/chamber"
	"github.com/san-kum/bubblechamber/internal/particle"
	"gonum.org/v1/gonum/spatial/r2"
)

func buildGrid(width, height, rows, cols int, field, friction float64) *chamber.Grid {
	g, err := chamber.Build(chamber.Spec{
		Width: width, Height: height, Rows: rows, Cols: cols,
		FieldStddev: math.Abs(field), FrictionLambda: friction,
	}, constField(field))
	Expect(err).NotTo(HaveOccurred())
	return g
}

func started(g *chamber.Grid, ps []particle.Particle, cfg Config) *Simulation {
	s, err := New(g, ps, cfg)
	Expect(err).NotTo(HaveOccurred())
	s.Start()
	return s
}

// settleBound is the number of steps after which pure exponential decay
// from speed v0 must have dropped below eps, plus one for rounding.
func settleBound(v0, eps, lambda, dt float64) int {
	return int(math.Ceil(math.Log(v0/eps)/(lambda*dt))) + 1
}

var _ = Describe("Simulation", func() {
	cfg := Config{Dt: 0.02, SettleEpsilon: 0.1}

	Context("with no field and positive friction", func() {
		It("strictly slows a particle every step until it settles", func() {
			g := buildGrid(1000, 1000, 1, 1, 0, 2.0)
			s := started(g, single(r2.Vec{X: 500, Y: 500}, r2.Vec{X: 30, Y: -40}), cfg)

			bound := settleBound(50, cfg.SettleEpsilon, 2.0, cfg.Dt)
			p0 := s.Particle(0)
			prev := p0.Speed()
			steps := 0
			for s.Active() {
				Expect(steps).To(BeNumerically("<", bound))
				_, err := s.Step()
				Expect(err).NotTo(HaveOccurred())
				steps++

				p := s.Particle(0)
				speed := p.Speed()
				Expect(speed).To(BeNumerically("<", prev))
				prev = speed
			}

			p := s.Particle(0)
			Expect(p.Dirty).To(BeFalse())
			Expect(p.Fate).To(Equal(particle.Settled))
			Expect(p.Trail).To(HaveLen(steps))
		})

		It("keeps the heading fixed", func() {
			g := buildGrid(1000, 1000, 1, 1, 0, 1.0)
			s := started(g, single(r2.Vec{X: 500, Y: 500}, r2.Vec{X: 3, Y: 4}), cfg)
			for i := 0; i < 20; i++ {
				s.Step()
			}
			p0 := s.Particle(0)
			Expect(p0.Heading()).To(BeNumerically("~", math.Atan2(4, 3), 1e-12))
		})
	})

	Context("with a field and no friction", func() {
		It("preserves speed while turning every step", func() {
			g := buildGrid(1000, 1000, 1, 1, 1.5, 0)
			s := started(g, single(r2.Vec{X: 500, Y: 500}, r2.Vec{X: 20}), cfg)

			p0 := s.Particle(0)
			prevHeading := p0.Heading()
			for i := 0; i < 500; i++ {
				active, err := s.Step()
				Expect(err).NotTo(HaveOccurred())
				Expect(active).To(BeTrue())

				p := s.Particle(0)
				Expect(p.Speed()).To(BeNumerically("~", 20, 1e-9))
				Expect(p.Heading()).NotTo(Equal(prevHeading))
				prevHeading = p.Heading()
			}
		})

		It("curves in the direction of the field sign", func() {
			pos := buildGrid(1000, 1000, 1, 1, 2, 0)
			neg := buildGrid(1000, 1000, 1, 1, -2, 0)
			a := started(pos, single(r2.Vec{X: 500, Y: 500}, r2.Vec{X: 10}), cfg)
			b := started(neg, single(r2.Vec{X: 500, Y: 500}, r2.Vec{X: 10}), cfg)

			a.Step()
			b.Step()
			Expect(a.Particle(0).Velocity.Y).To(BeNumerically(">", 0))
			Expect(b.Particle(0).Velocity.Y).To(BeNumerically("<", 0))
			Expect(a.Particle(0).Velocity.Y).To(BeNumerically("~", -b.Particle(0).Velocity.Y, 1e-12))
		})

		It("stays active on a closed orbit", func() {
			g := buildGrid(400, 400, 1, 1, 2, 0)
			s := started(g, single(r2.Vec{X: 200, Y: 200}, r2.Vec{X: 10}), cfg)
			for i := 0; i < 5000; i++ {
				s.Step()
			}
			Expect(s.Active()).To(BeTrue())
		})
	})

	Context("when a particle leaves the canvas", func() {
		It("becomes inactive on that same step", func() {
			g := buildGrid(100, 100, 1, 1, 0, 0.1)
			s := started(g, single(r2.Vec{X: 99, Y: 50}, r2.Vec{X: 100}), cfg)

			active, err := s.Step()
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeFalse())

			p := s.Particle(0)
			Expect(p.Position.X).To(BeNumerically(">", 100))
			Expect(p.Fate).To(Equal(particle.Exited))
			Expect(s.ActiveCount()).To(BeZero())

			s.Step()
			Expect(s.Particle(0).Trail).To(HaveLen(1))
		})
	})

	Context("for a 2x2 grid over a 100x100 canvas with no field", func() {
		It("settles all four particles within a bounded number of steps", func() {
			rng := rand.New(rand.NewSource(2024))
			g, err := chamber.New(100, 100, 2, 2, 0, 1.0, rng)
			Expect(err).NotTo(HaveOccurred())

			params := particle.DefaultParams()
			ps, err := particle.Generate(g, rng, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(ps).To(HaveLen(4))

			s := started(g, ps, cfg)
			bound := settleBound(params.SpeedMax, cfg.SettleEpsilon, 1.0, cfg.Dt)
			for s.Active() {
				Expect(s.StepCount()).To(BeNumerically("<", bound))
				_, err := s.Step()
				Expect(err).NotTo(HaveOccurred())
			}

			for _, p := range s.Particles() {
				Expect(p.Dirty).To(BeFalse())
				Expect(p.Fate).NotTo(Equal(particle.Moving))
			}
		})
	})
})
