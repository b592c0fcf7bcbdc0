// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the Möbius bot.
// It handles loading and parsing the YAML configuration file and provides
// structured access to application settings: the Telegram token, provider
// API keys and default models, the status API, and debug/logging switches.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Telegram holds the bot token and update-loop settings.
	Telegram TelegramConfig `yaml:"telegram" json:"-"`

	// DatabasePath is the sqlite file backing the user property store.
	DatabasePath string `yaml:"database-path" json:"database-path"`

	// Providers configures each LLM vendor. The map key is the provider
	// name used throughout routing: groq, gemini, openai, anthropic.
	Providers map[string]ProviderConfig `yaml:"providers" json:"providers"`

	// StatusAPI configures the optional gin status/health server.
	StatusAPI StatusAPIConfig `yaml:"status-api" json:"status-api"`

	// AlertCheckIntervalSeconds is how often stored price alerts are
	// evaluated against fresh quotes. Zero disables the checker.
	AlertCheckIntervalSeconds int `yaml:"alert-check-interval-seconds" json:"alert-check-interval-seconds"`

	// Debug enables or disables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether logs go to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsDir is the directory for rotating log files.
	LogsDir string `yaml:"logs-dir" json:"logs-dir"`

	// mu guards the hot-reloadable fields (Providers, the status API
	// secret, Debug) against concurrent reads during ApplyReload.
	mu sync.RWMutex
}

// TelegramConfig holds Telegram transport settings.
type TelegramConfig struct {
	// Token is the bot API token. Overridable via TELEGRAM_BOT_TOKEN.
	Token string `yaml:"token" json:"-"`
	// UpdateTimeout is the long-poll timeout in seconds.
	UpdateTimeout int `yaml:"update-timeout" json:"update-timeout"`
}

// ProviderConfig holds a single LLM vendor's server-side settings.
type ProviderConfig struct {
	// APIKey is the server default key, used when a user has not stored
	// their own. Overridable via <PROVIDER>_API_KEY.
	APIKey string `yaml:"api-key" json:"-"`
	// BaseURL overrides the vendor endpoint, mainly for tests.
	BaseURL string `yaml:"base-url" json:"base-url"`
	// DefaultModel is used when the user has no stored model preference.
	DefaultModel string `yaml:"default-model" json:"default-model"`
}

// StatusAPIConfig configures the status/health HTTP server.
type StatusAPIConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Host    string `yaml:"host" json:"-"`
	Port    int    `yaml:"port" json:"-"`
	// SecretKey is the management key (plaintext or bcrypt hashed).
	// Plaintext values are hashed on load.
	SecretKey string `yaml:"secret-key" json:"-"`
}

// envKeyOverrides maps provider names to the environment variables that
// override their server keys.
var envKeyOverrides = map[string]string{
	"groq":      "GROQ_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// LoadConfig reads YAML from configFile, applies defaults and environment
// overrides, and hashes a plaintext status-API secret key.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	// Set defaults before unmarshal so that absent keys keep defaults.
	cfg.DatabasePath = "mobius.db"
	cfg.LogsDir = "logs"
	cfg.Telegram.UpdateTimeout = 30
	cfg.AlertCheckIntervalSeconds = 60
	cfg.StatusAPI.Host = "127.0.0.1"
	cfg.StatusAPI.Port = 8787

	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	// Hash the management key if plaintext is detected.
	if cfg.StatusAPI.SecretKey != "" && !looksLikeBcrypt(cfg.StatusAPI.SecretKey) {
		hashed, errHash := hashSecret(cfg.StatusAPI.SecretKey)
		if errHash != nil {
			return nil, fmt.Errorf("failed to hash status api key: %w", errHash)
		}
		cfg.StatusAPI.SecretKey = hashed
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := map[string]string{
		"groq":      "llama-3.1-8b-instant",
		"gemini":    "gemini-2.0-flash",
		"openai":    "gpt-4o-mini",
		"anthropic": "claude-3-5-haiku-latest",
	}
	for provider, model := range defaults {
		pc := c.Providers[provider]
		if pc.DefaultModel == "" {
			pc.DefaultModel = model
		}
		c.Providers[provider] = pc
	}
}

func (c *Config) applyEnvOverrides() {
	if token := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")); token != "" {
		c.Telegram.Token = token
	}
	for provider, envKey := range envKeyOverrides {
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			pc := c.Providers[provider]
			pc.APIKey = v
			c.Providers[provider] = pc
		}
	}
}

// ProviderKey returns the server-side default key for a provider, or "".
func (c *Config) ProviderKey(provider string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Providers[provider].APIKey
}

// DefaultModel returns the configured default model for a provider.
func (c *Config) DefaultModel(provider string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Providers[provider].DefaultModel
}

// CheckSecretKey compares a presented management key against the stored
// bcrypt hash. An empty configured key rejects everything.
func (c *Config) CheckSecretKey(presented string) bool {
	c.mu.RLock()
	stored := c.StatusAPI.SecretKey
	c.mu.RUnlock()
	if stored == "" || presented == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented)) == nil
}

// ApplyReload copies the hot-reloadable fields from a freshly loaded
// config into the live one. Provider keys and models, the status API
// secret, and the debug flag take effect immediately; everything else
// (Telegram token, database path, listen address) needs a restart.
func (c *Config) ApplyReload(fresh *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Providers = fresh.Providers
	c.StatusAPI.SecretKey = fresh.StatusAPI.SecretKey
	c.Debug = fresh.Debug
}

// looksLikeBcrypt returns true if the provided string appears to be a bcrypt hash.
func looksLikeBcrypt(s string) bool {
	return len(s) > 4 && (s[:4] == "$2a$" || s[:4] == "$2b$" || s[:4] == "$2y$")
}

// hashSecret hashes the given secret using bcrypt.
func hashSecret(secret string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}
