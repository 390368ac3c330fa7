package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Controller.PeriodSeconds != 604800 {
		t.Errorf("period = %d, want a week", cfg.Controller.PeriodSeconds)
	}
	if cfg.Controller.VoteDelay != 2 {
		t.Errorf("vote delay = %d, want 2", cfg.Controller.VoteDelay)
	}
	if cfg.Server.Port != 37711 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gauged.yaml")
	data := `
server:
  port: 4000
controller:
  owner: alice
  period_seconds: 3600
escrow:
  provider: static
  locks:
    bob:
      unlock_period: 66
      slope_num: "60606061"
      slope_den: "4"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Controller.Owner != "alice" || cfg.Controller.PeriodSeconds != 3600 {
		t.Errorf("controller = %+v", cfg.Controller)
	}
	// Unset fields keep their defaults.
	if cfg.Controller.VoteDelay != 2 {
		t.Errorf("vote delay = %d, want default 2", cfg.Controller.VoteDelay)
	}
	l, ok := cfg.Escrow.Locks["bob"]
	if !ok || l.UnlockPeriod != 66 || l.SlopeNum != "60606061" {
		t.Errorf("lock = %+v", l)
	}
	if cfg.ListenAddr() != "127.0.0.1:4000" {
		t.Errorf("addr = %s", cfg.ListenAddr())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 37711 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GAUGED_PORT", "5000")
	t.Setenv("GAUGED_OWNER", "carol")
	t.Setenv("GAUGED_ESCROW_URL", "http://escrow:9999")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Controller.Owner != "carol" {
		t.Errorf("owner = %s", cfg.Controller.Owner)
	}
	if cfg.Escrow.Provider != "http" || cfg.Escrow.URL != "http://escrow:9999" {
		t.Errorf("escrow = %+v", cfg.Escrow)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Controller.PeriodSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero period accepted")
	}

	cfg = Default()
	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("out-of-range port accepted")
	}

	cfg = Default()
	cfg.Escrow.Provider = "smoke-signals"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown provider accepted")
	}
}
