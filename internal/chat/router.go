package chat

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/relayhub/relay-gateway/internal/config"
)

// Client is the interface for AI chat backends
type Client interface {
	Generate(req *Request) (*Response, error)
	Health() error
}

// Request represents a generation request
type Request struct {
	Prompt string
	Model  string
	UserID string
}

// Response represents a generation response
type Response struct {
	Content    string
	Model      string
	TokensUsed int
}

// Router resolves a model name to the engine that serves it
type Router struct {
	engines      map[string]*Engine
	byModel      map[string]*Engine
	defaultModel string
	mu           sync.RWMutex
}

// Engine is one configured AI backend
type Engine struct {
	Name    string
	Type    string
	URL     string
	Models  []string
	Default string
	Client  Client
}

// NewRouter creates a router from chat configuration
func NewRouter(cfg config.ChatConfig) (*Router, error) {
	r := &Router{
		engines:      make(map[string]*Engine),
		byModel:      make(map[string]*Engine),
		defaultModel: cfg.DefaultModel,
	}

	for _, ec := range cfg.Engines {
		models := ec.Models
		if len(models) == 0 {
			models = []string{"default"}
		}
		client, err := createClient(ec.Type, ec.URL, models[0], ec.APIKey, cfg.GetTimeout())
		if err != nil {
			return nil, fmt.Errorf("engine %s: %w", ec.Name, err)
		}
		e := &Engine{
			Name:    ec.Name,
			Type:    ec.Type,
			URL:     ec.URL,
			Models:  models,
			Default: models[0],
			Client:  client,
		}
		r.engines[ec.Name] = e
		for _, m := range models {
			r.byModel[m] = e
		}
	}

	if r.defaultModel == "" {
		for m := range r.byModel {
			r.defaultModel = m
			break
		}
	}
	if r.defaultModel != "" {
		if _, ok := r.byModel[r.defaultModel]; !ok {
			return nil, fmt.Errorf("default model %s not served by any engine", r.defaultModel)
		}
	}

	return r, nil
}

// Generate routes the request to the engine serving the requested model,
// falling back to the default model when the requested one is unknown.
func (r *Router) Generate(req *Request) (*Response, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if req.Model == "" || r.byModel[req.Model] == nil {
		req.Model = r.defaultModel
	}
	engine, ok := r.byModel[req.Model]
	if !ok {
		return nil, fmt.Errorf("no engine configured for model %s", req.Model)
	}
	return engine.Client.Generate(req)
}

// HasModel reports whether a model is served by any engine
func (r *Router) HasModel(model string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byModel[model]
	return ok
}

// DefaultModel returns the configured default model
func (r *Router) DefaultModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultModel
}

// ListModels returns the sorted flat list of all served models
func (r *Router) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.byModel))
	for m := range r.byModel {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// Health checks all engines
func (r *Router) Health() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make(map[string]error)
	for name, eng := range r.engines {
		results[name] = eng.Client.Health()
	}
	return results
}

func createClient(typ, baseURL, defaultModel, apiKey string, timeout time.Duration) (Client, error) {
	switch typ {
	case "ollama":
		return NewOllamaClient(&OllamaConfig{URL: baseURL, DefaultModel: defaultModel, Timeout: timeout})
	case "openai-compatible", "openai", "openrouter", "vllm":
		return NewOpenAIClient(&OpenAIConfig{BaseURL: baseURL, APIKey: apiKey, Model: defaultModel, Timeout: timeout})
	default:
		return nil, fmt.Errorf("unsupported engine type: %s", typ)
	}
}
