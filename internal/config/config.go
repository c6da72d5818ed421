package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnvPath overrides the default config file location.
const EnvPath = "CMP_CONFIG"

// Duration is a time.Duration read from a Go duration string.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"8s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	HTTPAddr        string   `json:"http_addr"`
	APIPrefix       string   `json:"api_prefix"`
	DBPath          string   `json:"db_path"`
	LogLevel        string   `json:"log_level"`
	LogFormat       string   `json:"log_format"`
	JWTSecret       string   `json:"jwt_secret"`
	AccessTokenTTL  Duration `json:"access_token_ttl"`
	RefreshTokenTTL Duration `json:"refresh_token_ttl"`
	CredentialKey   string   `json:"credential_key"`
	PriceWorkers    int      `json:"price_workers"`
	PriceTimeout    Duration `json:"price_timeout"`
	PriceRetries    int      `json:"price_retries"`
	PriceBackoff    Duration `json:"price_backoff"`
	ClientTTL       Duration `json:"client_ttl"`
	DefaultProvider string   `json:"default_provider"`
}

func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		APIPrefix:       "/api",
		DBPath:          "~/.local/share/cmp/cmp.db",
		LogLevel:        "info",
		LogFormat:       "console",
		AccessTokenTTL:  Duration(2 * time.Hour),
		RefreshTokenTTL: Duration(7 * 24 * time.Hour),
		PriceWorkers:    10,
		PriceTimeout:    Duration(8 * time.Second),
		PriceRetries:    1,
		PriceBackoff:    Duration(200 * time.Millisecond),
		ClientTTL:       Duration(30 * time.Minute),
		DefaultProvider: "aliyun",
	}
}

// Path returns the config file location.
func Path() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "cmp", "default.json"), nil
}

func LoadConfig() (Config, error) {
	cfg := Default()

	path, err := Path()
	if err != nil {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ResolveDBPath expands a leading ~/ in DBPath.
func (c Config) ResolveDBPath() string {
	return expandHome(c.DBPath)
}

func expandHome(p string) string {
	if len(p) > 1 && p[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
