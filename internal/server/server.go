package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relayhub/relay-gateway/internal/config"
	"github.com/relayhub/relay-gateway/internal/conversation"
	"github.com/relayhub/relay-gateway/internal/orchestrator"
	"github.com/relayhub/relay-gateway/internal/profile"
	"github.com/relayhub/relay-gateway/internal/provider"
	"github.com/relayhub/relay-gateway/internal/transport"
)

// Server exposes the HTTP API: chat, status, profiles, health, metrics
type Server struct {
	cfg        *config.Config
	orch       *orchestrator.Orchestrator
	session    *transport.Manager
	registry   *provider.Registry
	health     *provider.HealthChecker
	profiles   profile.Store
	contexts   *conversation.Store
	httpServer *http.Server
	startTime  time.Time
	logger     *slog.Logger
}

// ChatRequest is the inbound chat API payload
type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
	Model   string `json:"model,omitempty"`
}

// ChatResponse is the chat API reply
type ChatResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	HasAudio bool   `json:"hasAudio"`
	Model    string `json:"model,omitempty"`
}

// StatusResponse is the aggregated gateway status
type StatusResponse struct {
	Status    string                             `json:"status"`
	Uptime    string                             `json:"uptime"`
	Session   transport.Status                   `json:"session"`
	Providers map[string]bool                    `json:"providers"`
	Health    map[string]provider.ProviderHealth `json:"health,omitempty"`
	Counts    StatusCounts                       `json:"counts"`
	Timestamp string                             `json:"timestamp"`
}

// StatusCounts summarizes the loaded configuration
type StatusCounts struct {
	ProvidersConfigured int `json:"providers_configured"`
	ProvidersEnabled    int `json:"providers_enabled"`
	ActiveContexts      int `json:"active_contexts"`
}

// ProfileUpdateRequest is the profile API payload
type ProfileUpdateRequest struct {
	UserID      string `json:"userId"`
	Preferences struct {
		PreferredModel *string `json:"preferredModel,omitempty"`
		VoiceEnabled   *bool   `json:"voiceEnabled,omitempty"`
	} `json:"preferences"`
}

// New creates the HTTP server
func New(cfg *config.Config, orch *orchestrator.Orchestrator, session *transport.Manager, registry *provider.Registry, health *provider.HealthChecker, profiles profile.Store, contexts *conversation.Store, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		orch:      orch,
		session:   session,
		registry:  registry,
		health:    health,
		profiles:  profiles,
		contexts:  contexts,
		logger:    logger,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/chat", s.chatHandler)
	mux.HandleFunc("/api/status", s.statusHandler)
	mux.HandleFunc("/api/user/profile/", s.profileGetHandler)
	mux.HandleFunc("/api/user/profile", s.profileUpdateHandler)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"uptime": time.Since(s.startTime).String(),
	})
}

// chatHandler accepts an inbound message over HTTP and runs it through the
// same pipeline as transport messages
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Message == "" || req.UserID == "" {
		http.Error(w, "message and userId required", http.StatusBadRequest)
		return
	}

	// an explicit model choice updates the preference before dispatch
	if req.Model != "" {
		p, err := s.profiles.Get(r.Context(), req.UserID)
		if err == nil {
			p.PreferredModel = req.Model
			if err := s.profiles.Save(r.Context(), p); err != nil {
				s.logger.Warn("failed to update preferred model", "user", req.UserID, "error", err)
			}
		}
	}

	reply := s.orch.Handle(r.Context(), req.UserID, req.Message, "")

	writeJSON(w, http.StatusOK, ChatResponse{
		Success:  true,
		Response: reply.Text,
		HasAudio: len(reply.Audio) > 0,
		Model:    reply.Model,
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providers := make(map[string]bool, len(s.cfg.Providers))
	enabled := 0
	for name := range s.cfg.Providers {
		ok := s.registry.Enabled(name)
		providers[name] = ok
		if ok {
			enabled++
		}
	}

	var health map[string]provider.ProviderHealth
	if s.health != nil {
		health = s.health.Status()
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:    "ok",
		Uptime:    time.Since(s.startTime).String(),
		Session:   s.session.Status(),
		Providers: providers,
		Health:    health,
		Counts: StatusCounts{
			ProvidersConfigured: len(s.cfg.Providers),
			ProvidersEnabled:    enabled,
			ActiveContexts:      s.contexts.Users(),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) profileGetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/api/user/profile/")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}

	p, err := s.profiles.Get(r.Context(), userID)
	if err != nil {
		s.logger.Error("profile get failed", "user", userID, "error", err)
		http.Error(w, "Failed to load profile", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) profileUpdateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}

	p, err := s.profiles.Get(r.Context(), req.UserID)
	if err != nil {
		http.Error(w, "Failed to load profile", http.StatusInternalServerError)
		return
	}
	if req.Preferences.PreferredModel != nil {
		p.PreferredModel = *req.Preferences.PreferredModel
	}
	if req.Preferences.VoiceEnabled != nil {
		p.VoiceEnabled = *req.Preferences.VoiceEnabled
	}
	if err := s.profiles.Save(r.Context(), p); err != nil {
		s.logger.Error("profile save failed", "user", req.UserID, "error", err)
		http.Error(w, "Failed to save profile", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
