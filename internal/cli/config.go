package cli

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML config file for threshold tuning.
// Explicit flags override config values, which override defaults.
type Config struct {
	// HealthyWithin is the maximum heartbeat age still considered healthy.
	HealthyWithin time.Duration `yaml:"healthy_within"`
	// StaleAfter is the heartbeat age past which a session is stale.
	StaleAfter time.Duration `yaml:"stale_after"`
}

// LoadConfig reads a YAML config file. Unknown fields are rejected so
// typos fail loudly.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.HealthyWithin < 0 || cfg.StaleAfter < 0 {
		return nil, fmt.Errorf("config thresholds must be non-negative")
	}
	if cfg.HealthyWithin > 0 && cfg.StaleAfter > 0 && cfg.StaleAfter <= cfg.HealthyWithin {
		return nil, fmt.Errorf("stale_after must exceed healthy_within")
	}

	return &cfg, nil
}
