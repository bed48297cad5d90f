// Package daemon holds the service configuration, TOML-loaded with defaults.
package daemon

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the crossroads daemon configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Store   StoreConfig   `toml:"store"`
	Balance BalanceConfig `toml:"balance"`
	Voting  VotingConfig  `toml:"voting"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// StoreConfig controls the sqlite backing store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// BalanceConfig controls the authoring-time balancing loop.
type BalanceConfig struct {
	MinScore    float64 `toml:"min_score"`
	MaxAttempts int     `toml:"max_attempts"`
	Population  int     `toml:"population"`
}

// VotingConfig controls live-vote behavior.
type VotingConfig struct {
	ExpectedEligibleUsers int    `toml:"expected_eligible_users"`
	ScenarioTTL           string `toml:"scenario_ttl"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8478,
			Metrics: true,
		},
		Store: StoreConfig{
			Path: "crossroads.db",
		},
		Balance: BalanceConfig{
			MinScore:    0.6,
			MaxAttempts: 3,
			Population:  100,
		},
		Voting: VotingConfig{
			ExpectedEligibleUsers: 1000,
			ScenarioTTL:           "24h",
		},
	}
}

// Load reads a TOML config file over the defaults. A missing file is not an
// error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ScenarioTTLDuration parses the configured scenario lifetime, falling back
// to 24h on a malformed value.
func (c VotingConfig) ScenarioTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.ScenarioTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}
