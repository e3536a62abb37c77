// Package config loads service configuration from an optional file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "STATIONPLAN_"

type Config struct {
	Server   ServerConfig   `json:"server"`
	Store    StoreConfig    `json:"store"`
	Redis    RedisConfig    `json:"redis"`
	Auth     AuthConfig     `json:"auth"`
	Limits   LimitsConfig   `json:"limits"`
	Webhooks WebhooksConfig `json:"webhooks"`
	Logging  LoggingConfig  `json:"logging"`
}

type ServerConfig struct {
	Addr                string  `json:"addr"`
	ReadHeaderTimeoutMs int     `json:"readHeaderTimeoutMs"`
	RateRPS             float64 `json:"rateRPS"`
	RateBurst           int     `json:"rateBurst"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadHeaderTimeoutMs == 0 {
		c.ReadHeaderTimeoutMs = 5000
	}
	if c.RateRPS > 0 && c.RateBurst == 0 {
		c.RateBurst = int(c.RateRPS) + 1
	}
}

func (c ServerConfig) Validate() error {
	if c.ReadHeaderTimeoutMs < 0 {
		return errors.New("server.readHeaderTimeoutMs must be >= 0")
	}
	if c.RateRPS < 0 || c.RateBurst < 0 {
		return errors.New("server.rateRPS and server.rateBurst must be >= 0")
	}
	return nil
}

// StoreConfig selects Postgres when DatabaseURL is set, memory otherwise.
type StoreConfig struct {
	DatabaseURL string `json:"databaseURL"`
	Migrate     *bool  `json:"migrate"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Migrate == nil {
		on := true
		c.Migrate = &on
	}
}

func (c StoreConfig) ShouldMigrate() bool { return c.Migrate == nil || *c.Migrate }

type RedisConfig struct {
	URL string `json:"url"`
}

type AuthConfig struct {
	Mode        string `json:"mode"`
	HMACSecret  string `json:"hmacSecret"`
	JWKSURL     string `json:"jwksURL"`
	TenantClaim string `json:"tenantClaim"`
	RoleClaim   string `json:"roleClaim"`
}

func (c *AuthConfig) SetDefaults() {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = "dev"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant"
	}
	if c.RoleClaim == "" {
		c.RoleClaim = "role"
	}
}

func (c AuthConfig) Validate() error {
	switch c.Mode {
	case "dev":
	case "hmac":
		if c.HMACSecret == "" {
			return errors.New("auth.hmacSecret is required in hmac mode")
		}
	case "jwks":
		if c.JWKSURL == "" {
			return errors.New("auth.jwksURL is required in jwks mode")
		}
	default:
		return fmt.Errorf("unknown auth mode %s", c.Mode)
	}
	return nil
}

// LimitsConfig bounds request sizes. The cost index closure is cubic in
// MaxStations.
type LimitsConfig struct {
	MaxStations    int `json:"maxStations"`
	MaxTasks       int `json:"maxTasks"`
	MaxConnections int `json:"maxConnections"`
}

func (c *LimitsConfig) SetDefaults() {
	if c.MaxStations == 0 {
		c.MaxStations = 500
	}
	if c.MaxTasks == 0 {
		c.MaxTasks = 5000
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = 20000
	}
}

func (c LimitsConfig) Validate() error {
	if c.MaxStations < 0 || c.MaxTasks < 0 || c.MaxConnections < 0 {
		return errors.New("limits must be >= 0")
	}
	return nil
}

type WebhooksConfig struct {
	MaxAttempts    int `json:"maxAttempts"`
	PollIntervalMs int `json:"pollIntervalMs"`
	TimeoutMs      int `json:"timeoutMs"`
}

func (c *WebhooksConfig) SetDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 8
	}
	if c.PollIntervalMs == 0 {
		c.PollIntervalMs = 1000
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = 5000
	}
}

func (c WebhooksConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("webhooks.maxAttempts must be >= 1")
	}
	if c.PollIntervalMs < 1 || c.TimeoutMs < 1 {
		return errors.New("webhooks intervals must be > 0")
	}
	return nil
}

type LoggingConfig struct {
	Level string `json:"level"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

func (c LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("unknown logging level %s", c.Level)
}

// Load reads path (YAML or JSON, optional), then STATIONPLAN_ variables with
// "__" as the nesting delimiter, then the plain variables older deployments set.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, "__", func(s string) string { return envKey(k, s) }), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.applyLegacyEnv(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps STATIONPLAN_SERVER__RATE_RPS to server.raterps, or to the key
// already loaded from the file (server.rateRPS) so the variable overrides it.
func envKey(k *koanf.Koanf, s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	parts := strings.Split(s, "__")
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.ReplaceAll(p, "_", ""))
	}
	key := strings.Join(parts, ".")
	for _, existing := range k.Keys() {
		if strings.EqualFold(existing, key) {
			return existing
		}
	}
	return key
}

func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Store.SetDefaults()
	c.Auth.SetDefaults()
	c.Limits.SetDefaults()
	c.Webhooks.SetDefaults()
	c.Logging.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if err := c.Webhooks.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

func (c *Config) applyLegacyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.DatabaseURL = v
	}
	if v := os.Getenv("DB_MIGRATE"); v != "" {
		on := v != "false"
		c.Store.Migrate = &on
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("AUTH_MODE"); v != "" {
		c.Auth.Mode = v
	}
	if v := os.Getenv("AUTH_HMAC_SECRET"); v != "" {
		c.Auth.HMACSecret = v
	}
	if v := os.Getenv("AUTH_JWKS_URL"); v != "" {
		c.Auth.JWKSURL = v
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_RPS: %w", err)
		}
		c.Server.RateRPS = f
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_BURST: %w", err)
		}
		c.Server.RateBurst = n
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WEBHOOK_MAX_ATTEMPTS: %w", err)
		}
		c.Webhooks.MaxAttempts = n
	}
	return nil
}
