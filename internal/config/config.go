package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the agentmail server.
// Precedence: environment variables > config file > defaults.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Archive   ArchiveConfig   `toml:"archive"`
	Search    SearchConfig    `toml:"search"`
	Server    ServerConfig    `toml:"server"`
	Transport TransportConfig `toml:"transport"`
	Auth      AuthConfig      `toml:"auth"`
	Log       LogConfig       `toml:"log"`
	Health    HealthConfig    `toml:"health"`
}

// StoreConfig holds the embedded relational store's location.
type StoreConfig struct {
	DatabasePath string `toml:"database_path"` // SQLite file path, or ":memory:"
}

// ArchiveConfig holds the write-behind content-addressed archive's settings.
type ArchiveConfig struct {
	Root          string `toml:"root"`           // Git-backed archive repository root.
	QueueCapacity int    `toml:"queue_capacity"` // Bounded write-behind queue depth.
	BatchCap      int    `toml:"batch_cap"`      // Max records per commit batch.
	FlushInterval int    `toml:"flush_interval_ms"`
}

// FlushIntervalDuration converts FlushInterval to a time.Duration.
func (a ArchiveConfig) FlushIntervalDuration() time.Duration {
	return time.Duration(a.FlushInterval) * time.Millisecond
}

// SearchConfig holds search-index settings.
type SearchConfig struct {
	IndexRoot       string `toml:"index_root"`
	QualityEmbedder string `toml:"quality_embedder"` // "", "genai" — optional quality-tier backend.
	GenAIAPIKey     string `toml:"genai_api_key"`
}

// ServerConfig holds MCP server metadata.
type ServerConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// TransportConfig holds transport-related settings.
type TransportConfig struct {
	// Mode selects the transport: "stdio" (default) or "http".
	Mode string `toml:"mode"`
	// Port is the HTTP listen port (default: 8765). Only used when Mode is "http".
	Port int `toml:"port"`
	// Host is the HTTP listen address (default: "127.0.0.1"). Only used when Mode is "http".
	Host string `toml:"host"`
	// Path is the JSON-RPC endpoint path (default: "/mcp/").
	Path string `toml:"path"`
	// CORSOrigins is a comma-separated list of allowed CORS origins (default: "*").
	CORSOrigins string `toml:"cors_origins"`
}

// AuthConfig holds HTTP-mode authentication and rate-limiting settings.
type AuthConfig struct {
	BearerToken string `toml:"bearer_token"`
	JWTEnabled  bool   `toml:"jwt_enabled"`
	JWTJWKSURL  string `toml:"jwt_jwks_url"`
	// RateLimitRPS is the per-principal token-bucket refill rate. 0 disables limiting.
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// HealthConfig holds startup-probe and readiness settings.
type HealthConfig struct {
	IntegrityCheckOnStartup bool `toml:"integrity_check_on_startup"`
}

// Load creates a Config by reading from a TOML config file and environment
// variables. Precedence: environment variables > config file > defaults.
//
// Config file search order (first found wins):
//  1. Path passed via configPath parameter (agentmaild's first command-line argument)
//  2. AGENTMAIL_CONFIG environment variable
//  3. ./agentmail.toml (current directory)
//  4. ~/.config/agentmail/agentmail.toml (XDG-style)
//
// All fields are optional in the config file. Environment variables always
// override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{
			DatabasePath: "agentmail.db",
		},
		Archive: ArchiveConfig{
			Root:          "archive",
			QueueCapacity: 1024,
			BatchCap:      64,
			FlushInterval: 500,
		},
		Search: SearchConfig{
			IndexRoot: "index",
		},
		Server: ServerConfig{
			Name:    "agentmail",
			Version: "0.1.0",
		},
		Transport: TransportConfig{
			Mode:        "stdio",
			Port:        8765,
			Host:        "127.0.0.1",
			Path:        "/mcp/",
			CORSOrigins: "*",
		},
		Auth: AuthConfig{
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Log: LogConfig{
			Level: "info",
		},
		Health: HealthConfig{
			IntegrityCheckOnStartup: true,
		},
	}

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile finds and parses the TOML config file. If no file is found,
// this is a no-op (config file is optional).
func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil // no config file found; rely on defaults + env
	}

	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	return nil
}

// resolveConfigPath determines which config file to use. Returns empty string
// if no config file is found (config file is optional).
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit // caller wants this file; let DecodeFile report if missing
	}

	if p := os.Getenv("AGENTMAIL_CONFIG"); p != "" {
		return p
	}

	if _, err := os.Stat("agentmail.toml"); err == nil {
		return "agentmail.toml"
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/agentmail/agentmail.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnv overlays environment variables on top of existing config values.
// An env var only takes effect if it is non-empty.
func (c *Config) applyEnv() {
	envOverride("AGENTMAIL_DATABASE_PATH", &c.Store.DatabasePath)
	envOverride("AGENTMAIL_ARCHIVE_ROOT", &c.Archive.Root)
	envOverride("AGENTMAIL_INDEX_ROOT", &c.Search.IndexRoot)
	envOverride("AGENTMAIL_QUALITY_EMBEDDER", &c.Search.QualityEmbedder)
	envOverride("AGENTMAIL_GENAI_API_KEY", &c.Search.GenAIAPIKey)

	envOverride("AGENTMAIL_TRANSPORT", &c.Transport.Mode)
	envOverride("AGENTMAIL_HOST", &c.Transport.Host)
	envOverride("AGENTMAIL_PATH", &c.Transport.Path)
	envOverride("AGENTMAIL_CORS_ORIGINS", &c.Transport.CORSOrigins)
	if v := os.Getenv("AGENTMAIL_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			c.Transport.Port = port
		}
	}

	envOverride("AGENTMAIL_BEARER_TOKEN", &c.Auth.BearerToken)
	envOverride("AGENTMAIL_JWT_JWKS_URL", &c.Auth.JWTJWKSURL)
	if v := os.Getenv("AGENTMAIL_JWT_ENABLED"); v != "" {
		c.Auth.JWTEnabled = (v == "true" || v == "1")
	}
	if v := os.Getenv("AGENTMAIL_RATE_LIMIT_RPS"); v != "" {
		var rps float64
		if _, err := fmt.Sscanf(v, "%f", &rps); err == nil && rps >= 0 {
			c.Auth.RateLimitRPS = rps
		}
	}

	envOverride("AGENTMAIL_LOG_LEVEL", &c.Log.Level)

	if v := os.Getenv("AGENTMAIL_INTEGRITY_CHECK_ON_STARTUP"); v != "" {
		c.Health.IntegrityCheckOnStartup = (v == "true" || v == "1")
	}
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	switch c.Transport.Mode {
	case "stdio":
		// Stdio mode has no HTTP auth layer; trust the local process launcher.
	case "http":
		if c.Auth.BearerToken == "" && !c.Auth.JWTEnabled {
			return fmt.Errorf("HTTP mode requires either auth.bearer_token or auth.jwt_enabled: set one in config file or AGENTMAIL_BEARER_TOKEN / AGENTMAIL_JWT_ENABLED")
		}
		if c.Auth.JWTEnabled && c.Auth.JWTJWKSURL == "" {
			return fmt.Errorf("auth.jwt_jwks_url is required when auth.jwt_enabled is true")
		}
	default:
		return fmt.Errorf("invalid transport mode: %q (must be \"stdio\" or \"http\")", c.Transport.Mode)
	}

	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path must not be empty")
	}

	return nil
}

// envOverride sets *dst to the value of the named env var, if it is non-empty.
func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
