// Package chamber partitions a canvas into a grid of bubble chambers.
//
// Each [Chamber] is an immutable cell carrying its own magnetic field
// magnitude, sampled once when the [Grid] is built:
//
//   - [Grid]: row-major arrangement of chambers tiling the canvas
//   - [FieldSampler]: source of per-chamber field magnitudes
//   - [NormalSampler]: zero-mean normal fields (the default)
//   - [PerlinSampler]: spatially coherent fields from Perlin noise
//
// # Example
//
//	rng := rand.New(rand.NewSource(seed))
//	grid, err := chamber.New(500, 500, 10, 10, 2.0, 2.0, rng)
//	if err != nil {
//	    return err
//	}
//	c := grid.Locate(r2.Vec{X: 120, Y: 40})
//
// A grid is never mutated after construction and may be read from any
// number of goroutines.
package chamber
