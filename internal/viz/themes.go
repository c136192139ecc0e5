package viz

import "github.com/charmbracelet/lipgloss"

// Theme defines the color scheme for the live view. Theme names match the
// SVG palettes so one --theme flag drives both outputs.
type Theme struct {
	Name    string
	Trail   lipgloss.Color
	Grid    lipgloss.Color
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
}

var (
	ThemeInk = Theme{
		Name:    "ink",
		Trail:   lipgloss.Color("#e8e2d4"),
		Grid:    lipgloss.Color("#5a554c"),
		Primary: lipgloss.Color("#c9c2b3"),
		Accent:  lipgloss.Color("#d08770"),
		Text:    lipgloss.Color("#f4f0e6"),
		Muted:   lipgloss.Color("#7a7468"),
		Success: lipgloss.Color("#a3be8c"),
		Warning: lipgloss.Color("#ebcb8b"),
	}

	ThemeNeon = Theme{
		Name:    "neon",
		Trail:   lipgloss.Color("#ff00ff"),
		Grid:    lipgloss.Color("#222233"),
		Primary: lipgloss.Color("#00ffff"),
		Accent:  lipgloss.Color("#ffff00"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#666666"),
		Success: lipgloss.Color("#00ff88"),
		Warning: lipgloss.Color("#ff8800"),
	}

	ThemeBlueprint = Theme{
		Name:    "blueprint",
		Trail:   lipgloss.Color("#e0f0ff"),
		Grid:    lipgloss.Color("#2f5d8a"),
		Primary: lipgloss.Color("#00a8cc"),
		Accent:  lipgloss.Color("#ffd700"),
		Text:    lipgloss.Color("#e0f0ff"),
		Muted:   lipgloss.Color("#4488aa"),
		Success: lipgloss.Color("#00ff88"),
		Warning: lipgloss.Color("#ffcc00"),
	}

	ThemeEmber = Theme{
		Name:    "ember",
		Trail:   lipgloss.Color("#ff9f43"),
		Grid:    lipgloss.Color("#3a2424"),
		Primary: lipgloss.Color("#ff6b6b"),
		Accent:  lipgloss.Color("#feca57"),
		Text:    lipgloss.Color("#fff5f5"),
		Muted:   lipgloss.Color("#8b6b8c"),
		Success: lipgloss.Color("#5fd068"),
		Warning: lipgloss.Color("#ffc048"),
	}

	Themes = []Theme{
		ThemeInk,
		ThemeNeon,
		ThemeBlueprint,
		ThemeEmber,
	}
)

// GetTheme returns a theme by name, falling back to ink.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeInk
}

// NextTheme returns the theme after t in Themes, wrapping around.
func NextTheme(t Theme) Theme {
	for i, th := range Themes {
		if th.Name == t.Name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
