// Package config holds process settings and the durable key-value store backing
// storage roots, grants and user preferences.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Settings holds startup configuration read from SAFOPS_* environment variables.
type Settings struct {
	// ConfigPath is the YAML file backing the persisted store. Empty keeps it in memory.
	ConfigPath string `envconfig:"CONFIG_PATH" default:""`
	// Workers bounds concurrent background file operations.
	Workers  int    `envconfig:"WORKERS" default:"4"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"warn"`
	// StrictRootCheck fails a grant on a wrong root instead of asking again.
	StrictRootCheck bool `envconfig:"STRICT_ROOT_CHECK" default:"false"`
	// ScopedRemovable is set on platforms where removable media needs a tree grant.
	ScopedRemovable bool `envconfig:"SCOPED_REMOVABLE" default:"true"`
	// DocumentTrees is set on platforms that can open document trees at all.
	DocumentTrees bool `envconfig:"DOCUMENT_TREES" default:"true"`
}

// LoadSettings loads settings from the environment.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("safops", &s); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if s.Workers < 1 {
		s.Workers = 1
	}
	return &s, nil
}

// LoadSettingsOrDefault loads settings from the environment or returns defaults.
func LoadSettingsOrDefault() *Settings {
	s, err := LoadSettings()
	if err != nil {
		return DefaultSettings()
	}
	return s
}

// DefaultSettings returns the default settings.
func DefaultSettings() *Settings {
	return &Settings{
		Workers:         4,
		LogLevel:        "warn",
		ScopedRemovable: true,
		DocumentTrees:   true,
	}
}
