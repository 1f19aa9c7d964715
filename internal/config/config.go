package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/jdelaire/pollbot/core"
	"github.com/jdelaire/pollbot/internal/keychain"
)

const (
	envPrefix = "POLLBOT_"

	defaultTimeout    = 30
	defaultRetryDelay = 3 * time.Second
	defaultLogLevel   = "info"
	defaultLogFormat  = "text"
	maxLimit          = 100
)

// EnvFile is loaded into the process environment by Load when it exists.
var EnvFile = ".env"

// Config is the bot configuration, corresponding to pollbot.yml.
type Config struct {
	Token           string        `yaml:"token,omitempty" koanf:"token"`
	KeychainAccount string        `yaml:"keychain_account,omitempty" koanf:"keychain_account"`
	BaseURL         string        `yaml:"base_url,omitempty" koanf:"base_url"`
	Limit           int           `yaml:"limit" koanf:"limit"`
	Timeout         int           `yaml:"timeout" koanf:"timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout" koanf:"handler_timeout"`
	RetryDelay      time.Duration `yaml:"retry_delay" koanf:"retry_delay"`
	AllowedChats    []int64       `yaml:"allowed_chats" koanf:"allowed_chats"`
	LogLevel        string        `yaml:"log_level" koanf:"log_level"`
	LogFormat       string        `yaml:"log_format" koanf:"log_format"`
	Sentry          SentryConfig  `yaml:"sentry" koanf:"sentry"`
}

// SentryConfig holds error tracking settings. An empty DSN disables it.
type SentryConfig struct {
	DSN         string `yaml:"dsn" koanf:"dsn"`
	Environment string `yaml:"environment" koanf:"environment"`
	Release     string `yaml:"release" koanf:"release"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Limit:        core.DefaultLimit,
		Timeout:      defaultTimeout,
		RetryDelay:   defaultRetryDelay,
		AllowedChats: []int64{},
		LogLevel:     defaultLogLevel,
		LogFormat:    defaultLogFormat,
		Sentry: SentryConfig{
			Environment: "production",
		},
	}
}

// Load reads EnvFile (if present), then the YAML file at path (if present),
// then POLLBOT_* environment overrides. POLLBOT_SENTRY_DSN maps to
// sentry.dsn.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(EnvFile); err == nil {
		if err := godotenv.Load(EnvFile); err != nil {
			return nil, fmt.Errorf("reading env file %s: %w", EnvFile, err)
		}
	}

	k := koanf.New(".")
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if rest, ok := strings.CutPrefix(key, "sentry_"); ok {
		return "sentry." + rest
	}
	return key
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Token == "" && c.KeychainAccount == "" {
		return fmt.Errorf("token or keychain_account is required")
	}
	if c.Limit < 1 || c.Limit > maxLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", maxLimit, c.Limit)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	if c.HandlerTimeout < 0 {
		return fmt.Errorf("handler_timeout must be non-negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must be non-negative")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: must be text or json", c.LogFormat)
	}
	return nil
}

// ResolveToken returns the configured token, falling back to the keychain
// entry named by KeychainAccount.
func (c *Config) ResolveToken() (string, error) {
	if c.Token != "" {
		return c.Token, nil
	}
	if c.KeychainAccount == "" {
		return "", errors.New("no token configured")
	}
	token, err := keychain.Get(c.KeychainAccount)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("keychain account %q holds an empty token", c.KeychainAccount)
	}
	return token, nil
}
