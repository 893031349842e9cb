package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the relay gateway
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Transport TransportConfig           `yaml:"transport"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Fallbacks map[string][]string       `yaml:"fallbacks,omitempty"`
	Chat      ChatConfig                `yaml:"chat"`
	Speech    SpeechConfig              `yaml:"speech"`
	RateLimit RateLimitConfig           `yaml:"ratelimit"`
	Redis     RedisConfig               `yaml:"redis,omitempty"`
	Channels  ChannelsConfig            `yaml:"channels,omitempty"`
	Logging   LoggingConfig             `yaml:"logging,omitempty"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// TransportConfig defines the chat-transport session settings
type TransportConfig struct {
	URL             string `yaml:"url"`
	CredentialsPath string `yaml:"credentials_path"`
	ReconnectDelay  string `yaml:"reconnect_delay,omitempty"`
	PairingTimeout  string `yaml:"pairing_timeout,omitempty"`
}

// GetReconnectDelay returns the reconnect delay as a time.Duration
func (t *TransportConfig) GetReconnectDelay() time.Duration {
	if t.ReconnectDelay == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(t.ReconnectDelay)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetPairingTimeout returns the pairing challenge lifetime
func (t *TransportConfig) GetPairingTimeout() time.Duration {
	if t.PairingTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(t.PairingTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ProviderConfig defines a third-party provider endpoint
type ProviderConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Endpoint    string            `yaml:"endpoint"`
	Method      string            `yaml:"method,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Params      map[string]string `yaml:"params,omitempty"`
	APIKey      string            `yaml:"api_key,omitempty"`
	Timeout     string            `yaml:"timeout,omitempty"`
}

// GetTimeout returns the per-call timeout for this provider
func (p *ProviderConfig) GetTimeout() time.Duration {
	if p.Timeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// EngineConfig defines an AI chat engine
type EngineConfig struct {
	Name   string   `yaml:"name"`
	Type   string   `yaml:"type"`
	URL    string   `yaml:"url,omitempty"`
	APIKey string   `yaml:"api_key,omitempty"`
	Models []string `yaml:"models,omitempty"`
}

// ChatConfig defines the AI chat engines and the default model
type ChatConfig struct {
	Engines      []EngineConfig `yaml:"engines"`
	DefaultModel string         `yaml:"default_model"`
	Timeout      string         `yaml:"timeout,omitempty"`
}

// GetTimeout returns the generative-call timeout
func (c *ChatConfig) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SpeechConfig defines the speech synthesis provider
type SpeechConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Endpoint     string `yaml:"endpoint"`
	Voice        string `yaml:"voice,omitempty"`
	MaxTextChars int    `yaml:"max_text_chars,omitempty"`
}

// RateLimitConfig defines per-provider request budgets
type RateLimitConfig struct {
	MaxRequests int                      `yaml:"max_requests"`
	Window      string                   `yaml:"window"`
	Overrides   map[string]RateLimitRule `yaml:"overrides,omitempty"`
}

// RateLimitRule is a per-provider budget override
type RateLimitRule struct {
	MaxRequests int    `yaml:"max_requests"`
	Window      string `yaml:"window"`
}

// GetWindow returns the default window as a time.Duration
func (r *RateLimitConfig) GetWindow() time.Duration {
	if r.Window == "" {
		return time.Minute
	}
	d, err := time.ParseDuration(r.Window)
	if err != nil {
		return time.Minute
	}
	return d
}

// Budget returns the (max, window) pair for a provider key
func (r *RateLimitConfig) Budget(key string) (int, time.Duration) {
	if rule, ok := r.Overrides[key]; ok {
		w, err := time.ParseDuration(rule.Window)
		if err != nil || w <= 0 {
			w = r.GetWindow()
		}
		max := rule.MaxRequests
		if max <= 0 {
			max = r.MaxRequests
		}
		return max, w
	}
	return r.MaxRequests, r.GetWindow()
}

// RedisConfig defines optional redis settings for the profile store
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// ChannelsConfig defines secondary inbound channels
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig defines Telegram channel settings
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for required fields
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Transport.URL == "" {
		return fmt.Errorf("transport url is required")
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = 10
	}
	for name, p := range c.Providers {
		if p.Enabled && p.Endpoint == "" {
			return fmt.Errorf("provider %s is enabled but has no endpoint", name)
		}
	}
	for capability, chain := range c.Fallbacks {
		for _, member := range chain {
			if _, ok := c.Providers[member]; !ok {
				return fmt.Errorf("fallback chain %s references unknown provider %s", capability, member)
			}
		}
	}
	if len(c.Chat.Engines) > 0 && c.Chat.DefaultModel == "" {
		c.Chat.DefaultModel = firstModel(c.Chat.Engines)
	}
	return nil
}

func firstModel(engines []EngineConfig) string {
	for _, e := range engines {
		if len(e.Models) > 0 {
			return e.Models[0]
		}
	}
	return ""
}

// EnabledProviders returns the names of all enabled providers
func (c *Config) EnabledProviders() []string {
	names := make([]string, 0, len(c.Providers))
	for name, p := range c.Providers {
		if p.Enabled {
			names = append(names, name)
		}
	}
	return names
}
