package provider

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/relayhub/relay-gateway/internal/config"
)

const healthHistorySize = 10

// CheckResult is one reachability probe outcome
type CheckResult struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// ProviderHealth is the rolling reachability state for one provider
type ProviderHealth struct {
	Name    string        `json:"name"`
	Status  string        `json:"status"`
	History []CheckResult `json:"history"`
}

// HealthChecker periodically probes enabled provider endpoints so the
// status API can report reachability without issuing live calls.
type HealthChecker struct {
	statuses  map[string]*ProviderHealth
	endpoints map[string]string
	interval  time.Duration
	client    *http.Client
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewHealthChecker starts a background checker for all enabled providers
func NewHealthChecker(providers map[string]config.ProviderConfig, interval time.Duration, logger *slog.Logger) *HealthChecker {
	h := &HealthChecker{
		statuses:  make(map[string]*ProviderHealth),
		endpoints: make(map[string]string),
		interval:  interval,
		client:    &http.Client{Timeout: 5 * time.Second},
		logger:    logger,
	}
	for name, cfg := range providers {
		if !cfg.Enabled || cfg.Endpoint == "" {
			continue
		}
		h.endpoints[name] = cfg.Endpoint
		h.statuses[name] = &ProviderHealth{Name: name, Status: "unknown"}
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	go h.run()
	return h
}

func (h *HealthChecker) run() {
	h.performChecks()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.performChecks()
		}
	}
}

func (h *HealthChecker) performChecks() {
	for name, endpoint := range h.endpoints {
		res := h.probe(endpoint)

		h.mu.Lock()
		status := h.statuses[name]
		status.Status = "up"
		if !res.Success {
			status.Status = "down"
		}
		status.History = append(status.History, res)
		if len(status.History) > healthHistorySize {
			status.History = status.History[1:]
		}
		h.mu.Unlock()

		h.logger.Debug("provider health check", "provider", name, "status", status.Status)
	}
}

// probe issues a HEAD request; any response at all counts as reachable
func (h *HealthChecker) probe(endpoint string) CheckResult {
	res := CheckResult{Timestamp: time.Now()}
	req, err := http.NewRequestWithContext(h.ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	resp, err := h.client.Do(req)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	resp.Body.Close()
	res.Success = true
	return res
}

// Status returns a snapshot of all provider health states
func (h *HealthChecker) Status() map[string]ProviderHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]ProviderHealth, len(h.statuses))
	for name, s := range h.statuses {
		copied := *s
		copied.History = append([]CheckResult(nil), s.History...)
		out[name] = copied
	}
	return out
}

// Stop ends the background checks
func (h *HealthChecker) Stop() {
	h.cancel()
}
