package config

import "sort"

var Presets = map[string]*Config{
	"cloudscript": {
		Width: 500, Height: 500, Rows: 10, Cols: 10,
		FieldStddev: 2.0, FrictionLambda: 2.0, Sampler: "normal",
	},
	"calm": {
		Width: 600, Height: 400, Rows: 4, Cols: 6,
		FieldStddev: 0.5, FrictionLambda: 1.0, Sampler: "normal",
	},
	"storm": {
		Width: 800, Height: 800, Rows: 16, Cols: 16,
		FieldStddev: 6.0, FrictionLambda: 1.5, Sampler: "normal", ShowGrid: true,
	},
	"drift": {
		Width: 800, Height: 500, Rows: 5, Cols: 8,
		FieldStddev: 3.0, FrictionLambda: 0.8, Sampler: "perlin",
	},
	"spirals": {
		Width: 500, Height: 500, Rows: 3, Cols: 3,
		FieldStddev: 4.0, FrictionLambda: 0.3, Sampler: "normal",
	},
}

// GetPreset returns a full config for the named preset, or nil. Fields a
// preset leaves unset keep their defaults.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = p.Width, p.Height
	cfg.Rows, cfg.Cols = p.Rows, p.Cols
	cfg.FieldStddev = p.FieldStddev
	cfg.FrictionLambda = p.FrictionLambda
	cfg.Sampler = p.Sampler
	cfg.ShowGrid = p.ShowGrid
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
