package routing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeFillsZeroValues(t *testing.T) {
	got := Config{}.normalize()
	want := DefaultConfig()
	if got != want {
		t.Errorf("normalize(zero) = %+v, want defaults %+v", got, want)
	}
}

func TestNormalizeKeepsExplicitTransitivityZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TransitivityFactor = 0
	if got := cfg.normalize().TransitivityFactor; got != 0 {
		t.Errorf("explicit zero transitivity replaced with %v", got)
	}
}

func TestValidateRejectsUnknownPolicies(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Bump = "boosted" },
		func(c *Config) { c.Hold = "never" },
		func(c *Config) { c.Rounding = "banker" },
		func(c *Config) { c.Decay = "sometimes" },
	}
	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: invalid policy accepted", i)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("defaults rejected: %v", err)
	}
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	doc := []byte("init_replicas: 4\nhold_policy: final-handover\naging_factor: 0.95\n")
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.InitReplicas != 4 || cfg.Hold != HoldHandover || cfg.AgingFactor != 0.95 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	// Unspecified fields keep their defaults.
	def := DefaultConfig()
	if cfg.Alpha != def.Alpha || cfg.WindowInterval != def.WindowInterval || cfg.Rounding != def.Rounding {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("hold_policy: [not, a, string]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed yaml accepted")
	}
}
