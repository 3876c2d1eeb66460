// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "500ms" or "3s".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"3s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the master configuration for a Parley process.
type Config struct {
	// Identity is the person ID this process acts as.
	Identity string `yaml:"identity"`

	// Store configures the object store backend.
	Store StoreConfig `yaml:"store"`

	// Establish configures the channel establishment retry policy.
	Establish EstablishConfig `yaml:"establish"`

	// Trust configures the communication trust thresholds.
	Trust TrustConfig `yaml:"trust"`

	// Contacts configures the contact coordinator.
	Contacts ContactsConfig `yaml:"contacts"`
}

// StoreConfig configures the object store backend.
type StoreConfig struct {
	// Backend selects the store implementation: "memory" or "file".
	// Default: memory.
	Backend string `yaml:"backend"`

	// Path is the root directory for the file backend. Ignored for
	// the memory backend.
	Path string `yaml:"path"`
}

// EstablishConfig configures channel establishment.
type EstablishConfig struct {
	// MaxAttempts is the total number of join-or-create rounds.
	// Default: 3.
	MaxAttempts int `yaml:"max_attempts"`

	// RetryDelay is the pause between rounds after a creation
	// conflict. Default: 3s.
	RetryDelay Duration `yaml:"retry_delay"`
}

// TrustConfig configures the trust gate thresholds. Levels must be
// strictly exceeded for the capability to be granted.
type TrustConfig struct {
	// MessageThreshold gates messaging. Default: 0.3.
	MessageThreshold float64 `yaml:"message_threshold"`

	// SyncThreshold gates content sync. Default: 0.7.
	SyncThreshold float64 `yaml:"sync_threshold"`
}

// ContactsConfig configures the contact coordinator.
type ContactsConfig struct {
	// ItemTimeout bounds each per-contact lookup during listing.
	// Default: 3s.
	ItemTimeout Duration `yaml:"item_timeout"`

	// BaselineFile is the path to the JSONC permission baseline.
	// Empty means the all-deny baseline.
	BaselineFile string `yaml:"baseline_file"`
}

// Default returns the default configuration. These defaults exist to
// give every field a sensible zero state before the file is merged in,
// not as a substitute for the file — the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Store: StoreConfig{
			Backend: "memory",
			Path:    filepath.Join(homeDir, ".local", "share", "parley", "objects"),
		},
		Establish: EstablishConfig{
			MaxAttempts: 3,
			RetryDelay:  Duration(3 * time.Second),
		},
		Trust: TrustConfig{
			MessageThreshold: 0.3,
			SyncThreshold:    0.7,
		},
		Contacts: ContactsConfig{
			ItemTimeout: Duration(3 * time.Second),
		},
	}
}

// Load loads configuration from the PARLEY_CONFIG environment
// variable. This is the only way to load configuration without an
// explicit path; if PARLEY_CONFIG is not set, this fails rather than
// guessing.
func Load() (*Config, error) {
	configPath := os.Getenv("PARLEY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PARLEY_CONFIG environment variable not set; " +
			"set it to the path of your parley.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The file is
// the single source of truth: environment variables do not override
// its values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "file":
	default:
		return fmt.Errorf("unknown store backend %q (want memory or file)", c.Store.Backend)
	}
	if c.Store.Backend == "file" && c.Store.Path == "" {
		return fmt.Errorf("file store backend requires store.path")
	}
	if c.Establish.MaxAttempts < 1 {
		return fmt.Errorf("establish.max_attempts must be at least 1, got %d", c.Establish.MaxAttempts)
	}
	if c.Establish.RetryDelay < 0 {
		return fmt.Errorf("establish.retry_delay must not be negative")
	}
	for name, level := range map[string]float64{
		"trust.message_threshold": c.Trust.MessageThreshold,
		"trust.sync_threshold":    c.Trust.SyncThreshold,
	} {
		if level < 0 || level > 1 {
			return fmt.Errorf("%s must be in [0,1], got %g", name, level)
		}
	}
	if c.Contacts.ItemTimeout <= 0 {
		return fmt.Errorf("contacts.item_timeout must be positive")
	}
	return nil
}
