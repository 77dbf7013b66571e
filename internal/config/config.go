// Package config loads server configuration from a YAML file layered
// with environment overrides, grounded on ashureev-shsh-labs' and
// codeready-toolchain-tarsy's direct use of godotenv for local .env
// loading plus a typed config struct, generalized with a YAML base
// (as longregen-alicia's dependency surface implies via yaml.v3).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full set of tunables for one server instance.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`

	AuthSigningKey string        `yaml:"auth_signing_key"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	RefreshTTL     time.Duration `yaml:"refresh_ttl"`

	PresenceWindow time.Duration `yaml:"presence_window"`
	EditWindow     time.Duration `yaml:"edit_window"`

	FrameFaultRatePerSec float64 `yaml:"frame_fault_rate_per_sec"`
	FrameFaultBurst      int     `yaml:"frame_fault_burst"`

	SendQueueSize  int `yaml:"send_queue_size"`
	MaxFrameBytes  int `yaml:"max_frame_bytes"`
}

// Default returns the configuration spec.md's §3/§5 constants imply.
func Default() Config {
	return Config{
		ListenAddr:           ":8080",
		PostgresDSN:          "postgres://localhost:5432/chatcore?sslmode=disable",
		RedisAddr:            "localhost:6379",
		AccessTokenTTL:       15 * time.Minute,
		RefreshTTL:           30 * 24 * time.Hour,
		PresenceWindow:       30 * time.Second,
		EditWindow:           5 * time.Minute,
		FrameFaultRatePerSec: 2,
		FrameFaultBurst:      5,
		SendQueueSize:        256,
		MaxFrameBytes:        64 * 1024,
	}
}

// Load reads path (if it exists) over the defaults, then applies
// CHATCORE_-prefixed environment overrides loaded via godotenv/os.Getenv.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// .env is optional; missing file is not an error (mirrors
	// ashureev-shsh-labs' local-dev convenience loading).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if cfg.AuthSigningKey == "" {
		return cfg, fmt.Errorf("config: auth_signing_key (or CHATCORE_AUTH_SIGNING_KEY) is required")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHATCORE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CHATCORE_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("CHATCORE_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("CHATCORE_AUTH_SIGNING_KEY"); v != "" {
		cfg.AuthSigningKey = v
	}
}
