package export

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestGetPalette(t *testing.T) {
	g := NewWithT(t)

	g.Expect(GetPalette("neon").Name).To(Equal("neon"))
	g.Expect(GetPalette("no-such-palette")).To(Equal(PaletteInk))
	g.Expect(PaletteNames()).To(ConsistOf("ink", "neon", "blueprint", "ember"))
	g.Expect(PaletteNames()).To(BeEquivalentTo([]string{"blueprint", "ember", "ink", "neon"}))
}

func TestTrailColorFollowsFieldSign(t *testing.T) {
	g := NewWithT(t)
	p := PaletteInk

	hPos, _, _ := p.TrailColor(2, 2).Hsv()
	hNeg, _, _ := p.TrailColor(-2, 2).Hsv()
	hZero, _, _ := p.TrailColor(0, 2).Hsv()

	g.Expect(hZero).To(BeNumerically("~", p.BaseHue, 0.5))
	g.Expect(hPos).To(BeNumerically(">", hZero))
	g.Expect(hNeg).To(BeNumerically("<", hZero))
	g.Expect(p.TrailColor(1, 0).Hex()).To(Equal(p.TrailColor(1, 1).Hex()))
}

func TestTrailColorWrapsHue(t *testing.T) {
	g := NewWithT(t)
	p := PaletteEmber

	h, _, _ := p.TrailColor(-100, 1).Hsv()
	g.Expect(h).To(BeNumerically(">=", 0))
	g.Expect(h).To(BeNumerically("<", 360))
}
