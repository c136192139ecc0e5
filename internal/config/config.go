package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/san-kum/bubblechamber/internal/chamber"
	"github.com/san-kum/bubblechamber/internal/particle"
	"github.com/san-kum/bubblechamber/internal/sim"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWidth          = 500
	DefaultHeight         = 500
	DefaultRows           = 10
	DefaultCols           = 10
	DefaultFieldStddev    = 2.0
	DefaultFrictionLambda = 2.0
	DefaultSampler        = chamber.SamplerNormal
	DefaultTheme          = "ink"
)

var ErrInvalidSize = errors.New("config: invalid size")

type Config struct {
	Width          int     `yaml:"width" env:"BUBBLECHAMBER_WIDTH"`
	Height         int     `yaml:"height" env:"BUBBLECHAMBER_HEIGHT"`
	Rows           int     `yaml:"rows" env:"BUBBLECHAMBER_ROWS"`
	Cols           int     `yaml:"cols" env:"BUBBLECHAMBER_COLS"`
	FieldStddev    float64 `yaml:"magnet_stddev" env:"BUBBLECHAMBER_MAGNET_STDDEV"`
	FrictionLambda float64 `yaml:"friction_lambda" env:"BUBBLECHAMBER_FRICTION_LAMBDA"`
	Sampler        string  `yaml:"sampler" env:"BUBBLECHAMBER_SAMPLER"`
	Seed           int64   `yaml:"seed" env:"BUBBLECHAMBER_SEED"`
	ShowGrid       bool    `yaml:"grid" env:"BUBBLECHAMBER_GRID"`
	MaxSteps       int     `yaml:"max_steps" env:"BUBBLECHAMBER_MAX_STEPS"`
	Theme          string  `yaml:"theme" env:"BUBBLECHAMBER_THEME"`

	Sim       SimConfig      `yaml:"sim"`
	Particles ParticleConfig `yaml:"particles"`
}

type SimConfig struct {
	Dt            float64 `yaml:"dt" env:"BUBBLECHAMBER_DT"`
	SettleEpsilon float64 `yaml:"settle_epsilon" env:"BUBBLECHAMBER_SETTLE_EPSILON"`
}

type ParticleConfig struct {
	Margin   float64 `yaml:"margin" env:"BUBBLECHAMBER_MARGIN"`
	SpeedMin float64 `yaml:"speed_min" env:"BUBBLECHAMBER_SPEED_MIN"`
	SpeedMax float64 `yaml:"speed_max" env:"BUBBLECHAMBER_SPEED_MAX"`
}

func DefaultConfig() *Config {
	return &Config{
		Width:          DefaultWidth,
		Height:         DefaultHeight,
		Rows:           DefaultRows,
		Cols:           DefaultCols,
		FieldStddev:    DefaultFieldStddev,
		FrictionLambda: DefaultFrictionLambda,
		Sampler:        DefaultSampler,
		Theme:          DefaultTheme,
		Sim: SimConfig{
			Dt:            sim.DefaultDt,
			SettleEpsilon: sim.DefaultSettleEpsilon,
		},
		Particles: ParticleConfig{
			Margin:   particle.DefaultMargin,
			SpeedMin: particle.DefaultSpeedMin,
			SpeedMax: particle.DefaultSpeedMax,
		},
	}
}

// Load reads a yaml file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides fields from BUBBLECHAMBER_* variables. Unset variables
// leave the current values alone.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the values the engine would otherwise reject later, so the
// CLI can fail before creating any output.
func (c *Config) Validate() error {
	spec := c.GridSpec()
	if _, err := chamber.Build(spec, zeroField{}); err != nil {
		return err
	}
	if err := c.ParticleParams().Validate(); err != nil {
		return err
	}
	if !(c.Sim.Dt > 0) || !(c.Sim.SettleEpsilon > 0) {
		return fmt.Errorf("%w: dt and settle epsilon must be positive", sim.ErrInvalidConfig)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("config: max steps must not be negative, got %d", c.MaxSteps)
	}
	switch c.Sampler {
	case "", chamber.SamplerNormal, chamber.SamplerPerlin:
	default:
		return &chamber.UnknownSamplerError{Name: c.Sampler}
	}
	return nil
}

type zeroField struct{}

func (zeroField) Sample(_, _ int) float64 { return 0 }

func (c *Config) GridSpec() chamber.Spec {
	return chamber.Spec{
		Width:          c.Width,
		Height:         c.Height,
		Rows:           c.Rows,
		Cols:           c.Cols,
		FieldStddev:    c.FieldStddev,
		FrictionLambda: c.FrictionLambda,
	}
}

func (c *Config) ParticleParams() particle.Params {
	return particle.Params{
		Margin:   c.Particles.Margin,
		SpeedMin: c.Particles.SpeedMin,
		SpeedMax: c.Particles.SpeedMax,
	}
}

func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		Dt:            c.Sim.Dt,
		SettleEpsilon: c.Sim.SettleEpsilon,
	}
}

// Size formats the canvas as WIDTHxHEIGHT.
func (c *Config) Size() string {
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}

// ParseSize parses WIDTHxHEIGHT, e.g. "500x500".
func ParseSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q, want WIDTHxHEIGHT", ErrInvalidSize, s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: width %q", ErrInvalidSize, w)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: height %q", ErrInvalidSize, h)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: %q must be positive", ErrInvalidSize, s)
	}
	return width, height, nil
}
