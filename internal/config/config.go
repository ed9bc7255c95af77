package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Stats     StatsConfig     `yaml:"stats"`
	MCP       MCPConfig       `yaml:"mcp"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MigrationsPath string `yaml:"migrations_path"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// StatsConfig controls how calendar days are counted for streaks.
type StatsConfig struct {
	Timezone string `yaml:"timezone"`
}

type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Location returns the streak time zone, UTC when unset.
func (s StatsConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("stats.timezone: %w", err)
	}
	return loc, nil
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A .env file next to the config file is loaded first; variables already set
// in the environment win over it.
// Env vars use the prefix FREELIFT_ and underscore-separated paths:
//
//	FREELIFT_SERVER_HOST, FREELIFT_SERVER_PORT, FREELIFT_SERVER_MIGRATIONS_PATH,
//	FREELIFT_DB_DRIVER, FREELIFT_DB_HOST, FREELIFT_DB_PORT, FREELIFT_DB_NAME,
//	FREELIFT_DB_USER, FREELIFT_DB_PASSWORD, FREELIFT_DB_SSLMODE,
//	FREELIFT_TAILSCALE_ENABLED, FREELIFT_TAILSCALE_HOSTNAME, FREELIFT_TAILSCALE_STATE_DIR,
//	FREELIFT_STATS_TIMEZONE, FREELIFT_MCP_ENABLED, FREELIFT_AUTH_API_KEY
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("FREELIFT_SERVER_HOST", &cfg.Server.Host)
	setInt("FREELIFT_SERVER_PORT", &cfg.Server.Port)
	setString("FREELIFT_SERVER_MIGRATIONS_PATH", &cfg.Server.MigrationsPath)
	setString("FREELIFT_DB_DRIVER", &cfg.Database.Driver)
	setString("FREELIFT_DB_HOST", &cfg.Database.Host)
	setInt("FREELIFT_DB_PORT", &cfg.Database.Port)
	setString("FREELIFT_DB_NAME", &cfg.Database.Name)
	setString("FREELIFT_DB_USER", &cfg.Database.User)
	setString("FREELIFT_DB_PASSWORD", &cfg.Database.Password)
	setString("FREELIFT_DB_SSLMODE", &cfg.Database.SSLMode)
	setBool("FREELIFT_TAILSCALE_ENABLED", &cfg.Tailscale.Enabled)
	setString("FREELIFT_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	setString("FREELIFT_TAILSCALE_STATE_DIR", &cfg.Tailscale.StateDir)
	setString("FREELIFT_STATS_TIMEZONE", &cfg.Stats.Timezone)
	setBool("FREELIFT_MCP_ENABLED", &cfg.MCP.Enabled)
	setString("FREELIFT_AUTH_API_KEY", &cfg.Auth.APIKey)
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Server.MigrationsPath == "" {
		c.Server.MigrationsPath = "migrations"
	}
	if c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = "freelift"
	}
	if c.Tailscale.StateDir == "" {
		c.Tailscale.StateDir = filepath.Join(XDGDataHome(), "freelift", "tsnet")
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Database.Driver)
	}
	if _, err := c.Stats.Location(); err != nil {
		return err
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	return nil
}
