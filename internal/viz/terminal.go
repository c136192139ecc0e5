package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/bubblechamber/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
)

// TerminalRenderer paints trails onto a braille canvas as the run advances.
// Only trail points added since the previous Render are drawn.
type TerminalRenderer struct {
	trails   *Canvas
	grid     *Canvas
	proj     Projection
	ready    bool
	drawn    []int
	frames   int
	finished bool
}

// NewTerminalRenderer creates a renderer with a canvas of cols x rows
// characters.
func NewTerminalRenderer(cols, rows int) *TerminalRenderer {
	return &TerminalRenderer{
		trails: NewCanvas(cols, rows),
		grid:   NewCanvas(cols, rows),
	}
}

func (t *TerminalRenderer) setup(width, height int) {
	if t.ready {
		return
	}
	t.proj = NewProjection(t.trails, width, height)
	t.ready = true
}

// DrawGrid outlines the chamber partition. Boundaries follow the same integer
// split as the grid, so the last row and column may be wider.
func (t *TerminalRenderer) DrawGrid(width, height, rows, cols int) error {
	t.setup(width, height)
	cw, ch := width/cols, height/rows
	line := func(x0, y0, x1, y1 float64) {
		ax, ay, ok0 := t.proj.Dot(x0, y0)
		bx, by, ok1 := t.proj.Dot(x1, y1)
		if ok0 && ok1 {
			t.grid.DrawLine(ax, ay, bx, by)
		}
	}
	w, h := float64(width), float64(height)
	for j := 0; j <= cols; j++ {
		x := float64(j * cw)
		if j == cols {
			x = w
		}
		line(x, 0, x, h)
	}
	for i := 0; i <= rows; i++ {
		y := float64(i * ch)
		if i == rows {
			y = h
		}
		line(0, y, w, y)
	}
	return nil
}

func (t *TerminalRenderer) Render(v sim.View) error {
	g := v.Grid()
	t.setup(g.Width(), g.Height())
	particles := v.Particles()
	if t.drawn == nil {
		t.drawn = make([]int, len(particles))
	}
	for i, p := range particles {
		trail := p.Trail
		for k := t.drawn[i]; k < len(trail); k++ {
			prev := p.Spawn
			if k > 0 {
				prev = trail[k-1]
			}
			ax, ay, ok0 := t.proj.Dot(prev.X, prev.Y)
			bx, by, ok1 := t.proj.Dot(trail[k].X, trail[k].Y)
			switch {
			case ok0 && ok1:
				t.trails.DrawLine(ax, ay, bx, by)
			case ok0:
				t.trails.Set(ax, ay)
			}
		}
		t.drawn[i] = len(trail)
	}
	t.frames++
	return nil
}

func (t *TerminalRenderer) Finalize(v sim.View) error {
	t.finished = true
	return nil
}

func (t *TerminalRenderer) Frames() int    { return t.frames }
func (t *TerminalRenderer) Finished() bool { return t.finished }

// Canvas returns the trail layer.
func (t *TerminalRenderer) Canvas() *Canvas { return t.trails }

// View composes the grid and trail layers. Cells holding any trail dot take
// the trail style; cells with only grid dots take the grid style.
func (t *TerminalRenderer) View(trail, grid lipgloss.Style) string {
	var b strings.Builder
	for i := range t.trails.Grid {
		for j, r := range t.trails.Grid[i] {
			g := t.grid.Grid[i][j]
			switch {
			case r != brailleBlank:
				b.WriteString(trail.Render(string(r | g)))
			case g != brailleBlank:
				b.WriteString(grid.Render(string(g)))
			default:
				b.WriteRune(r)
			}
		}
		if i < len(t.trails.Grid)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// PlotTrails draws stored trails of a width x height canvas onto a fresh
// cols x rows braille canvas.
func PlotTrails(cols, rows, width, height int, trails [][]r2.Vec) string {
	c := NewCanvas(cols, rows)
	proj := NewProjection(c, width, height)
	for _, trail := range trails {
		for k := 1; k < len(trail); k++ {
			ax, ay, ok0 := proj.Dot(trail[k-1].X, trail[k-1].Y)
			bx, by, ok1 := proj.Dot(trail[k].X, trail[k].Y)
			if ok0 && ok1 {
				c.DrawLine(ax, ay, bx, by)
			}
		}
	}
	return c.String()
}
