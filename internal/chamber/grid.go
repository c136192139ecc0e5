package chamber

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"
)

// Chamber is a single cell of the grid. Bounds is half-open on the max side
// except along the canvas edge, where the last row and column absorb the
// remainder of the integer partition.
type Chamber struct {
	Row, Col int
	X, Y     int
	Width    int
	Height   int
	Field    float64
	Friction float64
}

// Bounds returns the chamber rectangle in canvas coordinates.
func (c Chamber) Bounds() r2.Box {
	return r2.Box{
		Min: r2.Vec{X: float64(c.X), Y: float64(c.Y)},
		Max: r2.Vec{X: float64(c.X + c.Width), Y: float64(c.Y + c.Height)},
	}
}

// Contains reports whether p lies in the half-open rectangle of the chamber.
func (c Chamber) Contains(p r2.Vec) bool {
	b := c.Bounds()
	return p.X >= b.Min.X && p.X < b.Max.X && p.Y >= b.Min.Y && p.Y < b.Max.Y
}

// Area returns the chamber area in square pixels.
func (c Chamber) Area() int { return c.Width * c.Height }

func (c Chamber) String() string {
	return fmt.Sprintf("chamber[%d][%d] (%d,%d %dx%d) field=%.4f", c.Row, c.Col, c.X, c.Y, c.Width, c.Height, c.Field)
}

// Spec describes the grid to build.
type Spec struct {
	Width, Height  int
	Rows, Cols     int
	FieldStddev    float64
	FrictionLambda float64
}

func (s Spec) validate() error {
	if s.Rows <= 0 {
		return fmt.Errorf("%w: rows must be positive, got %d", ErrInvalidConfig, s.Rows)
	}
	if s.Cols <= 0 {
		return fmt.Errorf("%w: cols must be positive, got %d", ErrInvalidConfig, s.Cols)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: canvas must be positive, got %dx%d", ErrInvalidConfig, s.Width, s.Height)
	}
	if s.Cols > s.Width || s.Rows > s.Height {
		return fmt.Errorf("%w: %dx%d grid does not fit a %dx%d canvas", ErrInvalidConfig, s.Rows, s.Cols, s.Width, s.Height)
	}
	if math.IsNaN(s.FieldStddev) || math.IsInf(s.FieldStddev, 0) || s.FieldStddev < 0 {
		return fmt.Errorf("%w: field stddev must be finite and non-negative, got %v", ErrInvalidConfig, s.FieldStddev)
	}
	if math.IsNaN(s.FrictionLambda) || math.IsInf(s.FrictionLambda, 0) || s.FrictionLambda < 0 {
		return fmt.Errorf("%w: friction lambda must be finite and non-negative, got %v", ErrInvalidConfig, s.FrictionLambda)
	}
	return nil
}

// Grid is the full rows x cols arrangement of chambers, stored row-major.
type Grid struct {
	width, height int
	rows, cols    int
	cellW, cellH  int
	friction      float64
	chambers      []Chamber
}

// New builds a grid whose fields are drawn from N(0, fieldStddev^2) using rng.
func New(width, height, rows, cols int, fieldStddev, frictionLambda float64, rng *rand.Rand) (*Grid, error) {
	spec := Spec{
		Width:          width,
		Height:         height,
		Rows:           rows,
		Cols:           cols,
		FieldStddev:    fieldStddev,
		FrictionLambda: frictionLambda,
	}
	return Build(spec, NewNormalSampler(rng, fieldStddev))
}

// Build validates spec and samples one field per chamber in row-major order.
// Nothing is drawn from the sampler when validation fails.
func Build(spec Spec, sampler FieldSampler) (*Grid, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if sampler == nil {
		return nil, fmt.Errorf("%w: nil field sampler", ErrInvalidConfig)
	}

	g := &Grid{
		width:    spec.Width,
		height:   spec.Height,
		rows:     spec.Rows,
		cols:     spec.Cols,
		cellW:    spec.Width / spec.Cols,
		cellH:    spec.Height / spec.Rows,
		friction: spec.FrictionLambda,
		chambers: make([]Chamber, 0, spec.Rows*spec.Cols),
	}

	for i := 0; i < g.rows; i++ {
		y := i * g.cellH
		h := g.cellH
		if i == g.rows-1 {
			h = g.height - y
		}
		for j := 0; j < g.cols; j++ {
			x := j * g.cellW
			w := g.cellW
			if j == g.cols-1 {
				w = g.width - x
			}
			g.chambers = append(g.chambers, Chamber{
				Row:      i,
				Col:      j,
				X:        x,
				Y:        y,
				Width:    w,
				Height:   h,
				Field:    sampler.Sample(i, j),
				Friction: g.friction,
			})
		}
	}

	return g, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }
func (g *Grid) Rows() int   { return g.rows }
func (g *Grid) Cols() int   { return g.cols }
func (g *Grid) Len() int    { return len(g.chambers) }

// Friction returns the decay constant shared by every chamber.
func (g *Grid) Friction() float64 { return g.friction }

// At returns the chamber at row i, column j.
func (g *Grid) At(i, j int) Chamber {
	return g.chambers[i*g.cols+j]
}

// Index returns the chamber at row-major index idx.
func (g *Grid) Index(idx int) Chamber {
	return g.chambers[idx]
}

// Chambers returns a copy of all chambers in row-major order.
func (g *Grid) Chambers() []Chamber {
	out := make([]Chamber, len(g.chambers))
	copy(out, g.chambers)
	return out
}

// Each calls fn for every chamber in row-major order.
func (g *Grid) Each(fn func(c Chamber)) {
	for _, c := range g.chambers {
		fn(c)
	}
}

// Bounds returns the canvas rectangle.
func (g *Grid) Bounds() r2.Box {
	return r2.Box{Max: r2.Vec{X: float64(g.width), Y: float64(g.height)}}
}

// InCanvas reports whether p lies inside the closed canvas rectangle.
func (g *Grid) InCanvas(p r2.Vec) bool {
	return p.X >= 0 && p.X <= float64(g.width) && p.Y >= 0 && p.Y <= float64(g.height)
}

// Locate returns the chamber containing p. Positions outside the canvas are
// clamped to the nearest edge chamber.
func (g *Grid) Locate(p r2.Vec) Chamber {
	return g.At(g.cell(p.Y, g.cellH, g.rows), g.cell(p.X, g.cellW, g.cols))
}

func (g *Grid) cell(v float64, size, n int) int {
	if !(v > 0) {
		return 0
	}
	f := math.Floor(v / float64(size))
	if f >= float64(n) {
		return n - 1
	}
	return int(f)
}
