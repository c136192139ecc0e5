package export

import (
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette styles the SVG output. Trail hues are derived from the field of the
// particle's spawn chamber: positive fields rotate the base hue one way,
// negative fields the other.
type Palette struct {
	Name       string
	Background string
	GridColor  string
	BaseHue    float64
	HueSpread  float64
	Saturation float64
	Value      float64
	MinOpacity float64
}

var (
	PaletteInk = Palette{
		Name:       "ink",
		Background: "#fbf8f1",
		GridColor:  "#c9c2b3",
		BaseHue:    215,
		HueSpread:  70,
		Saturation: 0.55,
		Value:      0.35,
		MinOpacity: 0.08,
	}

	PaletteNeon = Palette{
		Name:       "neon",
		Background: "#0a0a0a",
		GridColor:  "#222233",
		BaseHue:    300,
		HueSpread:  120,
		Saturation: 0.9,
		Value:      1.0,
		MinOpacity: 0.05,
	}

	PaletteBlueprint = Palette{
		Name:       "blueprint",
		Background: "#0b2a4a",
		GridColor:  "#2f5d8a",
		BaseHue:    195,
		HueSpread:  25,
		Saturation: 0.25,
		Value:      0.95,
		MinOpacity: 0.1,
	}

	PaletteEmber = Palette{
		Name:       "ember",
		Background: "#1b1010",
		GridColor:  "#3a2424",
		BaseHue:    25,
		HueSpread:  30,
		Saturation: 0.85,
		Value:      0.95,
		MinOpacity: 0.06,
	}

	Palettes = map[string]Palette{
		PaletteInk.Name:       PaletteInk,
		PaletteNeon.Name:      PaletteNeon,
		PaletteBlueprint.Name: PaletteBlueprint,
		PaletteEmber.Name:     PaletteEmber,
	}
)

// GetPalette returns the named palette, falling back to ink.
func GetPalette(name string) Palette {
	if p, ok := Palettes[name]; ok {
		return p
	}
	return PaletteInk
}

func PaletteNames() []string {
	names := make([]string, 0, len(Palettes))
	for name := range Palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TrailColor maps a field magnitude to a stroke color. fieldScale is the
// magnitude that gets most of the hue spread, usually the field stddev.
func (p Palette) TrailColor(field, fieldScale float64) colorful.Color {
	if fieldScale <= 0 {
		fieldScale = 1
	}
	hue := p.BaseHue + p.HueSpread*math.Tanh(field/fieldScale)
	hue = math.Mod(hue, 360)
	if hue < 0 {
		hue += 360
	}
	return colorful.Hsv(hue, p.Saturation, p.Value)
}
