package export

import (
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
	"github.com/san-kum/bubblechamber/internal/particle"
	"github.com/san-kum/bubblechamber/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	DefaultScale       = 10
	DefaultStrokeWidth = 0.8
	DefaultSegments    = 8
)

type SVGOptions struct {
	// Scale is the number of user units per pixel; svgo only takes integer
	// coordinates, so trails are drawn at this resolution and the viewBox maps
	// them back onto the canvas.
	Scale       int
	StrokeWidth float64
	// Segments is how many pieces a trail is split into to fade it from tail
	// to head.
	Segments   int
	FieldScale float64
	Palette    Palette
	Title      string
}

func DefaultSVGOptions() SVGOptions {
	return SVGOptions{
		Scale:       DefaultScale,
		StrokeWidth: DefaultStrokeWidth,
		Segments:    DefaultSegments,
		FieldScale:  1,
		Palette:     PaletteInk,
		Title:       "bubble chamber",
	}
}

type gridLines struct {
	width, height, rows, cols int
}

// SVGRenderer writes the whole document to its writer on Finalize. Per-frame
// calls only count frames: every trail is append-only, so the final state
// already holds the complete drawing.
type SVGRenderer struct {
	out       *errWriter
	opts      SVGOptions
	grid      *gridLines
	frames    int
	finalized bool
}

func NewSVGRenderer(w io.Writer, opts SVGOptions) *SVGRenderer {
	if opts.Scale <= 0 {
		opts.Scale = DefaultScale
	}
	if opts.Segments <= 0 {
		opts.Segments = DefaultSegments
	}
	if opts.StrokeWidth <= 0 {
		opts.StrokeWidth = DefaultStrokeWidth
	}
	return &SVGRenderer{out: &errWriter{w: w}, opts: opts}
}

func (r *SVGRenderer) DrawGrid(width, height, rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("export: grid needs positive rows and cols, got %dx%d", rows, cols)
	}
	r.grid = &gridLines{width: width, height: height, rows: rows, cols: cols}
	return nil
}

func (r *SVGRenderer) Render(_ sim.View) error {
	r.frames++
	return nil
}

func (r *SVGRenderer) Frames() int { return r.frames }

func (r *SVGRenderer) Finalize(v sim.View) error {
	if r.finalized {
		return fmt.Errorf("export: svg already finalized")
	}
	r.finalized = true

	g := v.Grid()
	s := r.opts.Scale
	w, h := g.Width(), g.Height()

	canvas := svg.New(r.out)
	canvas.Startview(w, h, 0, 0, w*s, h*s)
	if r.opts.Title != "" {
		canvas.Title(r.opts.Title)
	}
	canvas.Rect(0, 0, w*s, h*s, "fill:"+r.opts.Palette.Background)

	if r.grid != nil {
		r.drawGrid(canvas)
	}

	canvas.Gstyle(fmt.Sprintf("fill:none;stroke-width:%.2f;stroke-linecap:round;stroke-linejoin:round",
		r.opts.StrokeWidth*float64(s)))
	for _, p := range v.Particles() {
		field := g.Index(p.Origin).Field
		r.drawTrail(canvas, p, r.opts.Palette.TrailColor(field, r.opts.FieldScale).Hex())
	}
	canvas.Gend()
	canvas.End()

	return r.out.err
}

func (r *SVGRenderer) drawGrid(canvas *svg.SVG) {
	s := r.opts.Scale
	gl := r.grid
	style := fmt.Sprintf("stroke:%s;stroke-width:%d", r.opts.Palette.GridColor, s/2+1)

	cellW := gl.width / gl.cols
	cellH := gl.height / gl.rows
	for j := 1; j < gl.cols; j++ {
		x := j * cellW * s
		canvas.Line(x, 0, x, gl.height*s, style)
	}
	for i := 1; i < gl.rows; i++ {
		y := i * cellH * s
		canvas.Line(0, y, gl.width*s, y, style)
	}
	canvas.Rect(0, 0, gl.width*s, gl.height*s, "fill:none;"+style)
}

// drawTrail splits the path into segments of rising opacity, so the head of
// each track is the most visible part.
func (r *SVGRenderer) drawTrail(canvas *svg.SVG, p particle.Particle, hex string) {
	points := p.Path()
	if len(points) < 2 {
		return
	}

	segs := r.opts.Segments
	if segs > len(points)-1 {
		segs = len(points) - 1
	}
	minOp := r.opts.Palette.MinOpacity

	for k := 0; k < segs; k++ {
		from := k * (len(points) - 1) / segs
		to := (k + 1) * (len(points) - 1) / segs
		xs, ys := r.scaled(points[from : to+1])
		opacity := minOp + (1-minOp)*float64(k+1)/float64(segs)
		canvas.Polyline(xs, ys, fmt.Sprintf("stroke:%s;stroke-opacity:%.3f", hex, opacity))
	}
}

func (r *SVGRenderer) scaled(points []r2.Vec) ([]int, []int) {
	s := float64(r.opts.Scale)
	xs := make([]int, len(points))
	ys := make([]int, len(points))
	for i, pt := range points {
		xs[i] = int(math.Round(pt.X * s))
		ys[i] = int(math.Round(pt.Y * s))
	}
	return xs, ys
}

// errWriter keeps the first write error; svgo does not report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
