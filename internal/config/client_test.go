package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadClientMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "timer.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.URL != DefaultServerURL {
		t.Errorf("url = %q, want %q", cfg.Server.URL, DefaultServerURL)
	}
	if cfg.State.Dir != "/data/freelift" {
		t.Errorf("state dir = %q, want /data/freelift", cfg.State.Dir)
	}
}

func TestLoadClientFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timer.toml")
	content := "[server]\nurl = \"https://freelift.tail1234.ts.net\"\napi-key = \"k\"\n\n[state]\ndir = \"/tmp/fl\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.URL != "https://freelift.tail1234.ts.net" || cfg.Server.APIKey != "k" || cfg.State.Dir != "/tmp/fl" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadClientBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timer.toml")
	if err := os.WriteFile(path, []byte("[server\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadClient(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestXDGFallbacks(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/lift")
	if got := XDGConfigHome(); got != "/home/lift/.config" {
		t.Errorf("XDGConfigHome() = %q", got)
	}
	if got := DefaultClientConfigPath(); got != "/home/lift/.config/freelift/timer.toml" {
		t.Errorf("DefaultClientConfigPath() = %q", got)
	}
}
