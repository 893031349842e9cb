package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/relayhub/relay-gateway/internal/config"
	"github.com/relayhub/relay-gateway/internal/metrics"
	"github.com/relayhub/relay-gateway/internal/ratelimit"
)

// Failure classes. Disabled and rate-limited fail fast and never consult
// a fallback chain; only request failures are fallback-eligible.
var (
	ErrDisabled      = errors.New("provider disabled")
	ErrRateLimited   = errors.New("provider rate limited")
	ErrRequestFailed = errors.New("provider request failed")
)

// Result is the canonical envelope every adapter produces regardless of the
// provider's native response shape.
type Result struct {
	Success   bool
	Payload   string
	Err       error
	RawStatus int
}

// Provider is one registered third-party endpoint
type Provider struct {
	Name string
	cfg  config.ProviderConfig
}

// Registry owns provider configuration, the fallback chains, and the
// shared rate limiter.
type Registry struct {
	providers map[string]*Provider
	chains    map[string][]string
	limiter   *ratelimit.Limiter
	budgets   config.RateLimitConfig
	client    *http.Client
	logger    *slog.Logger
}

// NewRegistry creates a registry from provider configuration
func NewRegistry(providers map[string]config.ProviderConfig, budgets config.RateLimitConfig, limiter *ratelimit.Limiter, logger *slog.Logger) *Registry {
	r := &Registry{
		providers: make(map[string]*Provider),
		chains:    make(map[string][]string),
		limiter:   limiter,
		budgets:   budgets,
		client:    &http.Client{},
		logger:    logger,
	}
	for name, cfg := range providers {
		r.providers[name] = &Provider{Name: name, cfg: cfg}
	}
	return r
}

// RegisterChain declares the ordered provider list for a logical capability
func (r *Registry) RegisterChain(capability string, providers ...string) {
	r.chains[capability] = providers
}

// Enabled reports whether a provider exists and is enabled
func (r *Registry) Enabled(name string) bool {
	p, ok := r.providers[name]
	return ok && p.cfg.Enabled
}

// Names returns all registered provider names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Call invokes a single provider with canonical parameters. The provider's
// own rate budget is checked first; an absent or disabled provider fails
// without any network activity.
func (r *Registry) Call(ctx context.Context, name string, params map[string]string) Result {
	p, ok := r.providers[name]
	if !ok || !p.cfg.Enabled {
		metrics.ProviderRequests.WithLabelValues(name, "disabled").Inc()
		return Result{Err: fmt.Errorf("%s: %w", name, ErrDisabled)}
	}

	max, window := r.budgets.Budget(name)
	if !r.limiter.Allow(name, max, window) {
		metrics.ProviderRequests.WithLabelValues(name, "rate_limited").Inc()
		return Result{Err: fmt.Errorf("%s: %w", name, ErrRateLimited)}
	}

	start := time.Now()
	res := r.doRequest(ctx, p, params)
	metrics.ProviderLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

	outcome := "success"
	if !res.Success {
		outcome = "request_failed"
	}
	metrics.ProviderRequests.WithLabelValues(name, outcome).Inc()
	return res
}

// CallCapability walks the fallback chain for a capability. Disabled and
// rate-limited results from the primary end the chain immediately; request
// failures move on to the alternate with the same canonical parameters.
func (r *Registry) CallCapability(ctx context.Context, capability string, params map[string]string) Result {
	chain, ok := r.chains[capability]
	if !ok || len(chain) == 0 {
		return Result{Err: fmt.Errorf("%s: %w", capability, ErrDisabled)}
	}

	var last Result
	for i, name := range chain {
		res := r.Call(ctx, name, params)
		if res.Success {
			return res
		}
		if errors.Is(res.Err, ErrDisabled) || errors.Is(res.Err, ErrRateLimited) {
			return res
		}
		last = res
		if i+1 < len(chain) {
			r.logger.Warn("provider failed, trying fallback",
				"capability", capability, "provider", name, "error", res.Err)
		}
	}
	return last
}

func (r *Registry) doRequest(ctx context.Context, p *Provider, params map[string]string) Result {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.GetTimeout())
	defer cancel()

	method := strings.ToUpper(p.cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	var req *http.Request
	var err error
	if method == http.MethodPost {
		body, merr := json.Marshal(mapParams(p.cfg.Params, params))
		if merr != nil {
			return Result{Err: fmt.Errorf("%s: %w: %v", p.Name, ErrRequestFailed, merr)}
		}
		req, err = http.NewRequestWithContext(ctx, method, p.cfg.Endpoint, strings.NewReader(string(body)))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		endpoint := p.cfg.Endpoint
		q := url.Values{}
		for canonical, value := range mapParams(p.cfg.Params, params) {
			q.Set(canonical, value)
		}
		if encoded := q.Encode(); encoded != "" {
			sep := "?"
			if strings.Contains(endpoint, "?") {
				sep = "&"
			}
			endpoint = endpoint + sep + encoded
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return Result{Err: fmt.Errorf("%s: %w: %v", p.Name, ErrRequestFailed, err)}
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		// covers transport errors and timeouts alike
		return Result{Err: fmt.Errorf("%s: %w: %v", p.Name, ErrRequestFailed, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Err: fmt.Errorf("%s: %w: %v", p.Name, ErrRequestFailed, err), RawStatus: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{
			Err:       fmt.Errorf("%s: %w: status %d", p.Name, ErrRequestFailed, resp.StatusCode),
			RawStatus: resp.StatusCode,
		}
	}

	return Result{
		Success:   true,
		Payload:   ExtractPayload(body),
		RawStatus: resp.StatusCode,
	}
}

// mapParams renames canonical parameters to the provider-specific names
// declared in the config. Unmapped parameters pass through unchanged.
func mapParams(mapping map[string]string, params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for canonical, value := range params {
		name := canonical
		if mapped, ok := mapping[canonical]; ok {
			name = mapped
		}
		out[name] = value
	}
	return out
}
