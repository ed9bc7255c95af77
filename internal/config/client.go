package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ClientConfig is the timer's TOML file. Empty fields take defaults.
type ClientConfig struct {
	Server ClientServerConfig `toml:"server"`
	State  ClientStateConfig  `toml:"state"`
}

type ClientServerConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api-key"`
}

type ClientStateConfig struct {
	Dir string `toml:"dir"`
}

// DefaultServerURL is used when no server URL is configured.
const DefaultServerURL = "http://localhost:8080"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultClientConfigPath returns the default TOML config path.
func DefaultClientConfigPath() string {
	return filepath.Join(XDGConfigHome(), "freelift", "timer.toml")
}

// DefaultStateDir returns where the timer keeps its pending-close database.
func DefaultStateDir() string {
	return filepath.Join(XDGDataHome(), "freelift")
}

// LoadClient reads a TOML config from the given path. Missing file is not an error.
func LoadClient(path string) (ClientConfig, error) {
	var cfg ClientConfig
	if path == "" {
		return cfg, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return ClientConfig{}, fmt.Errorf("failed to decode config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return ClientConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}

	if cfg.Server.URL == "" {
		cfg.Server.URL = DefaultServerURL
	}
	if cfg.State.Dir == "" {
		cfg.State.Dir = DefaultStateDir()
	}
	return cfg, nil
}
