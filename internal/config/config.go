// Package config loads genport configuration from YAML with environment
// fallbacks for credentials and endpoints.
package config

import (
	"time"

	"genport/internal/provider"
	"genport/internal/vfs"
)

// Config is the root configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sandbox  bool           `yaml:"sandbox"`
	SSH      SSHConfig      `yaml:"ssh"`
}

// ProviderConfig selects and configures the generation backend.
type ProviderConfig struct {
	AuthType    string        `yaml:"auth_type"` // gemini-api-key | openai | ollama
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	OrgID       string        `yaml:"org_id"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int32         `yaml:"max_tokens"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// LoggingConfig controls the file logger.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Enabled bool   `yaml:"enabled"`
}

// SSHConfig points the workspace at a remote SFTP-backed store. An empty
// Host means the workspace is local.
type SSHConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	KeyPath       string `yaml:"key_path"`
	KeyPassphrase string `yaml:"key_passphrase"`
	Password      string `yaml:"password"`
	Root          string `yaml:"root"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			AuthType: string(provider.AuthGeminiAPIKey),
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// SFTPConfig converts the ssh block for the remote handle store. Unset
// fields keep the store defaults.
func (c *Config) SFTPConfig() *vfs.SFTPConfig {
	sc := vfs.DefaultSFTPConfig()
	sc.Host = c.SSH.Host
	if c.SSH.Port != 0 {
		sc.Port = c.SSH.Port
	}
	if c.SSH.User != "" {
		sc.User = c.SSH.User
	}
	if c.SSH.KeyPath != "" {
		sc.KeyPath = c.SSH.KeyPath
	}
	sc.KeyPassphrase = c.SSH.KeyPassphrase
	sc.Password = c.SSH.Password
	if c.SSH.Root != "" {
		sc.Root = c.SSH.Root
	}
	return sc
}

// FactoryConfig converts the provider block for the generator factory.
func (c *Config) FactoryConfig() provider.FactoryConfig {
	return provider.FactoryConfig{
		AuthType:    provider.AuthType(c.Provider.AuthType),
		Model:       c.Provider.Model,
		APIKey:      c.Provider.APIKey,
		OrgID:       c.Provider.OrgID,
		BaseURL:     c.Provider.BaseURL,
		Temperature: c.Provider.Temperature,
		MaxTokens:   c.Provider.MaxTokens,
	}
}
