package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8478 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8478)
	}
	if cfg.Store.Path != "crossroads.db" {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, "crossroads.db")
	}
	if cfg.Balance.MinScore != 0.6 {
		t.Errorf("Balance.MinScore = %v, want 0.6", cfg.Balance.MinScore)
	}
	if cfg.Balance.MaxAttempts != 3 {
		t.Errorf("Balance.MaxAttempts = %d, want 3", cfg.Balance.MaxAttempts)
	}
	if cfg.Balance.Population != 100 {
		t.Errorf("Balance.Population = %d, want 100", cfg.Balance.Population)
	}
	if cfg.Voting.ExpectedEligibleUsers != 1000 {
		t.Errorf("Voting.ExpectedEligibleUsers = %d, want 1000", cfg.Voting.ExpectedEligibleUsers)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	raw := `
[api]
host = "0.0.0.0"
port = 9000

[store]
path = "/var/lib/crossroads/votes.db"

[voting]
expected_eligible_users = 250
scenario_ttl = "12h"
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.Host != "0.0.0.0" || cfg.API.Port != 9000 {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Store.Path != "/var/lib/crossroads/votes.db" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if cfg.Voting.ExpectedEligibleUsers != 250 {
		t.Errorf("eligible users = %d, want 250", cfg.Voting.ExpectedEligibleUsers)
	}
	if got := cfg.Voting.ScenarioTTLDuration(); got != 12*time.Hour {
		t.Errorf("ttl = %v, want 12h", got)
	}
	// Untouched sections keep defaults.
	if cfg.Balance.MaxAttempts != 3 {
		t.Errorf("Balance.MaxAttempts = %d, want default 3", cfg.Balance.MaxAttempts)
	}
}

func TestScenarioTTLDuration_Malformed(t *testing.T) {
	v := VotingConfig{ScenarioTTL: "soon"}
	if got := v.ScenarioTTLDuration(); got != 24*time.Hour {
		t.Errorf("ttl = %v, want 24h fallback", got)
	}
}
