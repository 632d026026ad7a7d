// Package config assembles the process configuration from defaults, an
// optional YAML file, and environment variables, in that order. The result
// is an explicit struct threaded into the server at startup; nothing in
// this package is a global.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string

	// SessionIdleTTL is how long a session may stay inactive.
	SessionIdleTTL time.Duration
	// SessionAbsoluteTTL caps a session's total lifetime.
	SessionAbsoluteTTL time.Duration
	// SweepInterval is the cadence of the expiry sweeper.
	SweepInterval time.Duration

	// RateLimitAuth is the per-address request budget for auth-style
	// endpoints within RateLimitWindow.
	RateLimitAuth int
	// RateLimitGeneration is the per-address budget for generation
	// endpoints within RateLimitWindow.
	RateLimitGeneration int
	// RateLimitWindow is the sliding window both limits share.
	RateLimitWindow time.Duration

	// EncryptionKey is an optional base64 secret the key-store master key
	// is derived from. Empty means a fresh key is generated at startup.
	EncryptionKey string
	// AuditLogPath is the audit sink. Empty means stdout; otherwise a
	// rotating file at this path.
	AuditLogPath string

	// PublicPaths are path prefixes exempt from the session contract.
	// "/" is matched exactly, everything else by prefix.
	PublicPaths []string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:              ":8080",
		SessionIdleTTL:      30 * time.Minute,
		SessionAbsoluteTTL:  24 * time.Hour,
		SweepInterval:       1 * time.Hour,
		RateLimitAuth:       100,
		RateLimitGeneration: 20,
		RateLimitWindow:     60 * time.Second,
		PublicPaths: []string{
			"/",
			"/health",
			"/api/v1/openapi.yaml",
			"/api/v1/docs",
			"/api/v1/redoc",
		},
	}
}

// fileConfig mirrors Config for the YAML overlay; pointer fields
// distinguish "absent" from "zero".
type fileConfig struct {
	Listen              *string  `yaml:"listen"`
	SessionIdleTTL      *int     `yaml:"session_idle_ttl_seconds"`
	SessionAbsoluteTTL  *int     `yaml:"session_absolute_ttl_seconds"`
	SweepInterval       *int     `yaml:"session_sweep_interval_seconds"`
	RateLimitAuth       *int     `yaml:"rate_limit_auth"`
	RateLimitGeneration *int     `yaml:"rate_limit_generation"`
	RateLimitWindow     *int     `yaml:"rate_limit_window_seconds"`
	AuditLogPath        *string  `yaml:"audit_log_path"`
	PublicPaths         []string `yaml:"public_paths"`
}

// Load builds the configuration: defaults, then the YAML file at path (if
// non-empty), then environment variables. Later layers win.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fc.Listen != nil {
		c.Listen = *fc.Listen
	}
	if fc.SessionIdleTTL != nil {
		c.SessionIdleTTL = time.Duration(*fc.SessionIdleTTL) * time.Second
	}
	if fc.SessionAbsoluteTTL != nil {
		c.SessionAbsoluteTTL = time.Duration(*fc.SessionAbsoluteTTL) * time.Second
	}
	if fc.SweepInterval != nil {
		c.SweepInterval = time.Duration(*fc.SweepInterval) * time.Second
	}
	if fc.RateLimitAuth != nil {
		c.RateLimitAuth = *fc.RateLimitAuth
	}
	if fc.RateLimitGeneration != nil {
		c.RateLimitGeneration = *fc.RateLimitGeneration
	}
	if fc.RateLimitWindow != nil {
		c.RateLimitWindow = time.Duration(*fc.RateLimitWindow) * time.Second
	}
	if fc.AuditLogPath != nil {
		c.AuditLogPath = *fc.AuditLogPath
	}
	if len(fc.PublicPaths) > 0 {
		c.PublicPaths = fc.PublicPaths
	}
	return nil
}

func (c *Config) applyEnv() error {
	if err := envSeconds("SESSION_IDLE_TTL_SECONDS", &c.SessionIdleTTL); err != nil {
		return err
	}
	if err := envSeconds("SESSION_ABSOLUTE_TTL_SECONDS", &c.SessionAbsoluteTTL); err != nil {
		return err
	}
	if err := envSeconds("SESSION_SWEEP_INTERVAL_SECONDS", &c.SweepInterval); err != nil {
		return err
	}
	if err := envInt("RATE_LIMIT_AUTH", &c.RateLimitAuth); err != nil {
		return err
	}
	if err := envInt("RATE_LIMIT_GENERATION", &c.RateLimitGeneration); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("ENCRYPTION_KEY"); ok {
		c.EncryptionKey = v
	}
	if v, ok := os.LookupEnv("AUDIT_LOG_PATH"); ok {
		c.AuditLogPath = v
	}
	return nil
}

func envSeconds(name string, dst *time.Duration) error {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return fmt.Errorf("invalid %s: %q", name, v)
	}
	*dst = time.Duration(secs) * time.Second
	return nil
}

func envInt(name string, dst *int) error {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid %s: %q", name, v)
	}
	*dst = n
	return nil
}
