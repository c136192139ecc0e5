// Package viz draws a bubble chamber run in the terminal while it settles.
//
// The view is a Bubble Tea program:
//
//   - [Canvas]: Braille-based pixel canvas, 2x4 dots per character
//   - [TerminalRenderer]: a sim.Renderer painting trails onto a Canvas
//   - [Model]: the Bubble Tea model stepping an experiment on every tick
//   - Themes matching the SVG palettes
//
// # Key Bindings
//
//	Space - Pause/Resume
//	+/-   - More/fewer steps per frame
//	T     - Cycle color themes
//	Q     - Abort the run
//
// The run finishes by itself once every particle has settled or left the
// canvas; the program then exits and the caller writes the artifact.
package viz
