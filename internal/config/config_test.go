package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	yaml := []byte(`
server:
  port: 18900
  host: localhost
transport:
  url: wss://localhost:18901/session
  credentials_path: /tmp/relay-creds.json
providers:
  weather:
    enabled: true
    endpoint: https://api.example.com/weather
    params:
      location: q
ratelimit:
  max_requests: 5
  window: 1m
chat:
  engines:
    - name: local
      type: ollama
      url: http://localhost:11434
      models: [test-model]
`)
	f, _ := os.CreateTemp("", "config-*.yaml")
	f.Write(yaml)
	f.Close()
	defer os.Remove(f.Name())

	cfg, err := Load(f.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 18900 {
		t.Errorf("Expected port 18900, got %d", cfg.Server.Port)
	}
	if !cfg.Providers["weather"].Enabled {
		t.Error("Expected weather provider enabled")
	}
	if cfg.Providers["weather"].Params["location"] != "q" {
		t.Errorf("Expected param map to survive load, got %v", cfg.Providers["weather"].Params)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Server:    ServerConfig{Port: 18900, Host: "localhost"},
		Transport: TransportConfig{URL: "wss://localhost:18901/session"},
		Chat:      ChatConfig{Engines: []EngineConfig{{Name: "local", Type: "ollama", URL: "http://localhost:11434", Models: []string{"test"}}}},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
	if cfg.Chat.DefaultModel != "test" {
		t.Errorf("Expected default model filled from engines, got %s", cfg.Chat.DefaultModel)
	}
}

func TestValidateInvalidPort(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: -1}}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for invalid port")
	}
}

func TestValidateEnabledProviderWithoutEndpoint(t *testing.T) {
	cfg := &Config{
		Server:    ServerConfig{Port: 18900},
		Transport: TransportConfig{URL: "wss://localhost:18901/session"},
		Providers: map[string]ProviderConfig{"search": {Enabled: true}},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for enabled provider without endpoint")
	}
}

func TestRateLimitBudget(t *testing.T) {
	cfg := RateLimitConfig{
		MaxRequests: 10,
		Window:      "1m",
		Overrides: map[string]RateLimitRule{
			"chat": {MaxRequests: 3, Window: "30s"},
		},
	}
	max, window := cfg.Budget("chat")
	if max != 3 || window != 30*time.Second {
		t.Errorf("Expected override (3, 30s), got (%d, %s)", max, window)
	}
	max, window = cfg.Budget("weather")
	if max != 10 || window != time.Minute {
		t.Errorf("Expected default (10, 1m), got (%d, %s)", max, window)
	}
}

func TestProviderTimeoutDefault(t *testing.T) {
	p := ProviderConfig{}
	if p.GetTimeout() != 10*time.Second {
		t.Errorf("Expected 10s default timeout, got %s", p.GetTimeout())
	}
	p.Timeout = "30s"
	if p.GetTimeout() != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %s", p.GetTimeout())
	}
}
