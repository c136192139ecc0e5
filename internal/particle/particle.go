// Package particle defines the moving particles of a bubble chamber run and
// spawns one per chamber.
package particle

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Fate records why a particle stopped moving.
type Fate int

const (
	Moving Fate = iota
	Settled
	Exited
)

func (f Fate) String() string {
	switch f {
	case Moving:
		return "moving"
	case Settled:
		return "settled"
	case Exited:
		return "exited"
	default:
		return fmt.Sprintf("fate(%d)", int(f))
	}
}

// Particle is a single drifting charge. Dirty is true while it still moves.
// Trail is append-only, so a copied Particle keeps a stable view of the path
// up to the moment of the copy.
type Particle struct {
	Spawn    r2.Vec
	Position r2.Vec
	Velocity r2.Vec
	Dirty    bool
	Fate     Fate
	// Origin is the row-major index of the spawn chamber. It is only used
	// for styling; the field acting on the particle is looked up by position.
	Origin int
	Trail  []r2.Vec
}

// Speed returns the velocity magnitude.
func (p *Particle) Speed() float64 { return r2.Norm(p.Velocity) }

// Heading returns the direction of travel in radians.
func (p *Particle) Heading() float64 {
	return math.Atan2(p.Velocity.Y, p.Velocity.X)
}

// Settle marks the particle inactive with the given fate.
func (p *Particle) Settle(f Fate) {
	p.Dirty = false
	p.Fate = f
}

// Path returns the spawn point followed by the trail.
func (p *Particle) Path() []r2.Vec {
	path := make([]r2.Vec, 0, len(p.Trail)+1)
	path = append(path, p.Spawn)
	return append(path, p.Trail...)
}

func (p Particle) String() string {
	return fmt.Sprintf("particle(pos=%.2f,%.2f vel=%.2f,%.2f %s trail=%d)",
		p.Position.X, p.Position.Y, p.Velocity.X, p.Velocity.Y, p.Fate, len(p.Trail))
}
