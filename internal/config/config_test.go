package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, home, data string) {
	t.Helper()
	cfgDir := filepath.Join(home, ".config", "cmp")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "default.json"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"http_addr":":9090","price_timeout":"3s","price_workers":4}`)
	// Override HOME so LoadConfig reads our temp file.
	t.Setenv("HOME", dir)
	t.Setenv(EnvPath, "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.PriceTimeout.Std() != 3*time.Second {
		t.Errorf("PriceTimeout = %v, want 3s", cfg.PriceTimeout.Std())
	}
	if cfg.PriceWorkers != 4 {
		t.Errorf("PriceWorkers = %d, want 4", cfg.PriceWorkers)
	}
	// Non-overridden fields keep defaults.
	if cfg.APIPrefix != "/api" {
		t.Errorf("APIPrefix = %q, want default %q", cfg.APIPrefix, "/api")
	}
	if cfg.ClientTTL.Std() != 30*time.Minute {
		t.Errorf("ClientTTL = %v, want default 30m", cfg.ClientTTL.Std())
	}
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmp.json")
	if err := os.WriteFile(path, []byte(`{"default_provider":"aws"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvPath, path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DefaultProvider != "aws" {
		t.Errorf("DefaultProvider = %q, want %q", cfg.DefaultProvider, "aws")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvPath, "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != Default() {
		t.Errorf("LoadConfig without a file = %+v, want defaults", cfg)
	}
}

func TestResolveDBPath(t *testing.T) {
	cfg := Config{DBPath: "~/data/cmp.db"}
	got := cfg.ResolveDBPath()
	if strings.HasPrefix(got, "~") {
		t.Errorf("ResolveDBPath still starts with ~: %s", got)
	}
	home, _ := os.UserHomeDir()
	want := filepath.Join(home, "data", "cmp.db")
	if got != want {
		t.Errorf("ResolveDBPath = %q, want %q", got, want)
	}
	if got := (Config{DBPath: ":memory:"}).ResolveDBPath(); got != ":memory:" {
		t.Errorf("ResolveDBPath(:memory:) = %q", got)
	}
}

func TestLoadConfigBadJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "{bad json")
	t.Setenv("HOME", dir)
	t.Setenv(EnvPath, "")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected error for bad JSON")
	}
}

func TestLoadConfigBadDuration(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"price_timeout":8}`)
	t.Setenv("HOME", dir)
	t.Setenv(EnvPath, "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for a numeric duration")
	}
}

func TestDurationRoundTrip(t *testing.T) {
	data, err := json.Marshal(Default())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"price_timeout":"8s"`) {
		t.Errorf("marshaled config = %s, want price_timeout as a duration string", data)
	}
}
