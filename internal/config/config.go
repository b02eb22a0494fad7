// Package config loads optional CLI defaults from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds defaults applied before flag parsing. Flags override every
// field.
type Config struct {
	Backend    string `yaml:"backend"`     // "native" or "cli"
	JSON       bool   `yaml:"json"`        // print snapshots as JSON
	DebounceMS int    `yaml:"debounce_ms"` // watch mode settle delay
}

// Path returns the config file location under the user config directory.
func Path() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "gitstatus-go", "config.yaml"), nil
}

// Load reads the user config file. A missing file, or a machine without a
// user config directory, yields zero-value defaults.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file from an explicit path. Only malformed
// content is an error; absence is not.
func LoadFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
