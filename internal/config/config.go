// Package config loads planner configuration from YAML files and
// environment variables. Precedence is defaults, then file, then
// environment; command-line flags are applied last by the CLIs.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/beam-planner/core"
)

// Config is the root configuration structure.
type Config struct {
	Profile ProfileConfig `yaml:"profile"`
	Solver  SolverConfig  `yaml:"solver"`
	Metrics MetricsConfig `yaml:"metrics"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`
}

// ProfileConfig configures the beam profile shared by every satellite.
type ProfileConfig struct {
	MaxBeams         int     `yaml:"max_beams"`
	Colors           int     `yaml:"colors"`
	ConeDeg          float64 `yaml:"cone_deg"`
	MinSeparationDeg float64 `yaml:"min_separation_deg"`
}

// SolverConfig configures the planning run itself.
type SolverConfig struct {
	Budget              time.Duration `yaml:"budget"`               // wall-clock limit, 0 means unlimited
	Workers             int           `yaml:"workers"`              // 0 means NumCPU
	CellDeg             float64       `yaml:"cell_deg"`             // candidate index cell size
	ExhaustiveThreshold int           `yaml:"exhaustive_threshold"` // fleet size below which the index is skipped
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // e.g. ":9090"
}

// HistoryConfig configures the run history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // SQLite database file
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// Default returns the configuration used when no file or overrides are
// present.
func Default() *Config {
	profile := core.DefaultBeamProfile()
	return &Config{
		Profile: ProfileConfig{
			MaxBeams:         profile.MaxBeams,
			Colors:           profile.Colors,
			ConeDeg:          profile.ConeDeg,
			MinSeparationDeg: profile.MinSeparationDeg,
		},
		Solver: SolverConfig{
			Budget:              5 * time.Second,
			Workers:             0,
			CellDeg:             core.DefaultCellDeg,
			ExhaustiveThreshold: core.DefaultExhaustiveThreshold,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "beamplan.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected so
// typos surface instead of silently falling back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides configuration from BEAMPLAN_* environment variables.
// Malformed values are ignored in favor of the current setting.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BEAMPLAN_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			c.Solver.Budget = d
		}
	}
	if v := os.Getenv("BEAMPLAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Solver.Workers = n
		}
	}
	if v := os.Getenv("BEAMPLAN_CELL_DEG"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Solver.CellDeg = f
		}
	}
	if v := os.Getenv("BEAMPLAN_EXHAUSTIVE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Solver.ExhaustiveThreshold = n
		}
	}

	if v := os.Getenv("BEAMPLAN_MAX_BEAMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Profile.MaxBeams = n
		}
	}
	if v := os.Getenv("BEAMPLAN_COLORS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Profile.Colors = n
		}
	}
	if v := os.Getenv("BEAMPLAN_CONE_DEG"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Profile.ConeDeg = f
		}
	}
	if v := os.Getenv("BEAMPLAN_MIN_SEPARATION_DEG"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Profile.MinSeparationDeg = f
		}
	}

	if v := os.Getenv("BEAMPLAN_METRICS_ADDR"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Listen = v
	}
	if v := os.Getenv("BEAMPLAN_HISTORY_PATH"); v != "" {
		c.History.Enabled = true
		c.History.Path = v
	}

	if v := os.Getenv("BEAMPLAN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BEAMPLAN_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Validate checks the configuration for values the planner would reject.
func (c *Config) Validate() error {
	if err := c.BeamProfile().Validate(); err != nil {
		return err
	}
	if c.Solver.Budget < 0 {
		return fmt.Errorf("solver.budget must not be negative, got %s", c.Solver.Budget)
	}
	if c.Solver.Workers < 0 {
		return fmt.Errorf("solver.workers must not be negative, got %d", c.Solver.Workers)
	}
	if c.Solver.CellDeg <= 0 {
		return fmt.Errorf("solver.cell_deg must be positive, got %g", c.Solver.CellDeg)
	}
	if c.Solver.ExhaustiveThreshold < 0 {
		return fmt.Errorf("solver.exhaustive_threshold must not be negative, got %d", c.Solver.ExhaustiveThreshold)
	}
	if c.History.Enabled && c.History.Path == "" {
		return errors.New("history.path must be set when history is enabled")
	}
	return nil
}

// BeamProfile converts the profile section into the engine's type.
func (c *Config) BeamProfile() core.BeamProfile {
	return core.BeamProfile{
		MaxBeams:         c.Profile.MaxBeams,
		Colors:           c.Profile.Colors,
		ConeDeg:          c.Profile.ConeDeg,
		MinSeparationDeg: c.Profile.MinSeparationDeg,
	}
}
