package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the service configuration. Unset fields fall back to the
// defaults applied by Load.
type Config struct {
	ListenAddress   string `toml:"ListenAddress"`
	DataDir         string `toml:"DataDir"`
	Environment     string `toml:"Environment"`
	TreasuryAccount string `toml:"TreasuryAccount"`

	// VotingPeriodSeconds overrides the governance voting window.
	VotingPeriodSeconds int64 `toml:"VotingPeriodSeconds"`

	// APIKeys maps key identifiers to shared HMAC secrets. Empty means
	// authentication is disabled.
	APIKeys map[string]string `toml:"APIKeys"`

	// AuthSkewSeconds bounds the accepted clock drift for signed requests.
	AuthSkewSeconds int64 `toml:"AuthSkewSeconds"`
}

const (
	defaultListenAddress   = ":8080"
	defaultEnvironment     = "dev"
	defaultAuthSkewSeconds = 300
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration from path. A missing file yields the
// defaults; a present but malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		cfg.applyDefaults()
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyDefaults()
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = defaultListenAddress
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = defaultEnvironment
	}
	if c.AuthSkewSeconds <= 0 {
		c.AuthSkewSeconds = defaultAuthSkewSeconds
	}
	if c.APIKeys == nil {
		c.APIKeys = map[string]string{}
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.VotingPeriodSeconds < 0 {
		return fmt.Errorf("config: VotingPeriodSeconds must not be negative")
	}
	for key, secret := range c.APIKeys {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("config: APIKeys contains an empty key id")
		}
		if strings.TrimSpace(secret) == "" {
			return fmt.Errorf("config: APIKeys[%s] has an empty secret", key)
		}
	}
	return nil
}
