package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beamplan.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	profile := cfg.BeamProfile()
	if profile.MaxBeams != 32 || profile.Colors != 4 {
		t.Fatalf("default profile = %+v, want 32 beams / 4 colors", profile)
	}
	if profile.ConeDeg != 45 || profile.MinSeparationDeg != 10 {
		t.Fatalf("default profile angles = %+v, want 45/10", profile)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
solver:
  budget: 250ms
  workers: 2
profile:
  max_beams: 16
metrics:
  enabled: true
  listen: ":9191"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Solver.Budget != 250*time.Millisecond {
		t.Fatalf("budget = %s, want 250ms", cfg.Solver.Budget)
	}
	if cfg.Solver.Workers != 2 {
		t.Fatalf("workers = %d, want 2", cfg.Solver.Workers)
	}
	if cfg.Profile.MaxBeams != 16 {
		t.Fatalf("max_beams = %d, want 16", cfg.Profile.MaxBeams)
	}
	if cfg.Profile.Colors != 4 {
		t.Fatalf("colors = %d, want default 4 to survive partial profile override", cfg.Profile.Colors)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != ":9191" {
		t.Fatalf("metrics = %+v, want enabled on :9191", cfg.Metrics)
	}
	if !cfg.History.Enabled || cfg.History.Path != "beamplan.db" {
		t.Fatalf("history = %+v, want default enabled beamplan.db", cfg.History)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, `
solver:
  budgett: 5s
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a config with a misspelled key")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero colors", "profile:\n  colors: 0\n"},
		{"too many colors", "profile:\n  colors: 9\n"},
		{"negative workers", "solver:\n  workers: -1\n"},
		{"zero cell", "solver:\n  cell_deg: 0\n"},
		{"history without path", "history:\n  enabled: true\n  path: \"\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfigFile(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Fatalf("Load accepted invalid config:\n%s", tc.yaml)
			}
		})
	}
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	path := writeConfigFile(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load empty file: %v", err)
	}
	if cfg.Solver.Budget != Default().Solver.Budget {
		t.Fatalf("budget = %s, want default %s", cfg.Solver.Budget, Default().Solver.Budget)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load of a missing file succeeded")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("BEAMPLAN_BUDGET", "1200ms")
	t.Setenv("BEAMPLAN_WORKERS", "8")
	t.Setenv("BEAMPLAN_MAX_BEAMS", "24")
	t.Setenv("BEAMPLAN_METRICS_ADDR", ":7070")
	t.Setenv("BEAMPLAN_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Solver.Budget != 1200*time.Millisecond {
		t.Fatalf("budget = %s, want 1.2s", cfg.Solver.Budget)
	}
	if cfg.Solver.Workers != 8 {
		t.Fatalf("workers = %d, want 8", cfg.Solver.Workers)
	}
	if cfg.Profile.MaxBeams != 24 {
		t.Fatalf("max_beams = %d, want 24", cfg.Profile.MaxBeams)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != ":7070" {
		t.Fatalf("metrics = %+v, want enabled on :7070", cfg.Metrics)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestApplyEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("BEAMPLAN_BUDGET", "soon")
	t.Setenv("BEAMPLAN_WORKERS", "many")
	t.Setenv("BEAMPLAN_CONE_DEG", "-45")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Solver.Budget != 5*time.Second {
		t.Fatalf("budget = %s, want default 5s", cfg.Solver.Budget)
	}
	if cfg.Solver.Workers != 0 {
		t.Fatalf("workers = %d, want default 0", cfg.Solver.Workers)
	}
	if cfg.Profile.ConeDeg != 45 {
		t.Fatalf("cone = %g, want default 45", cfg.Profile.ConeDeg)
	}
}
