package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relayhub/relay-gateway/internal/channel"
	"github.com/relayhub/relay-gateway/internal/channel/telegram"
	"github.com/relayhub/relay-gateway/internal/chat"
	"github.com/relayhub/relay-gateway/internal/config"
	"github.com/relayhub/relay-gateway/internal/conversation"
	"github.com/relayhub/relay-gateway/internal/logging"
	"github.com/relayhub/relay-gateway/internal/orchestrator"
	"github.com/relayhub/relay-gateway/internal/profile"
	"github.com/relayhub/relay-gateway/internal/provider"
	"github.com/relayhub/relay-gateway/internal/ratelimit"
	"github.com/relayhub/relay-gateway/internal/scheduler"
	"github.com/relayhub/relay-gateway/internal/server"
	"github.com/relayhub/relay-gateway/internal/transport"
)

const (
	version             = "1.0.0"
	healthCheckInterval = 5 * time.Minute
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the config file")
	flag.Parse()

	logger := logging.WithComponent("main")

	logger.Info("Starting Relay-Gateway", "version", version)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid config", "error", err)
		os.Exit(1)
	}
	logger.Info("Configuration loaded successfully")

	ctx := context.Background()

	// Shared rate limiter and per-user conversation contexts
	limiter := ratelimit.New()
	contexts := conversation.NewStore()

	// Profile store: redis when configured, in-memory otherwise
	var profiles profile.Store
	if cfg.Redis.Enabled {
		redisStore, err := profile.NewRedisStore(cfg.Redis)
		if err != nil {
			logger.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		profiles = redisStore
		logger.Info("Redis profile store connected", "addr", cfg.Redis.Addr)
	} else {
		profiles = profile.NewMemoryStore()
		logger.Info("In-memory profile store initialized")
	}

	// Provider registry and fallback chains
	registry := provider.NewRegistry(cfg.Providers, cfg.RateLimit, limiter, logging.WithComponent("provider"))
	for capability, chain := range cfg.Fallbacks {
		registry.RegisterChain(capability, chain...)
		logger.Info("Fallback chain registered", "capability", capability, "chain", chain)
	}
	if _, ok := cfg.Fallbacks["translate"]; !ok {
		if _, exists := cfg.Providers["translate"]; exists {
			registry.RegisterChain("translate", "translate")
		}
	}

	// Provider reachability checks for the status API
	health := provider.NewHealthChecker(cfg.Providers, healthCheckInterval, logging.WithComponent("health"))

	// Chat engine router
	chatRouter, err := chat.NewRouter(cfg.Chat)
	if err != nil {
		logger.Error("Failed to create chat router", "error", err)
		os.Exit(1)
	}
	for name, err := range chatRouter.Health() {
		if err != nil {
			logger.Error("Chat engine error", "engine", name, "error", err)
		} else {
			logger.Info("Chat engine OK", "engine", name)
		}
	}

	// Speech synthesis
	var speech *provider.SpeechClient
	if cfg.Speech.Enabled {
		speech = provider.NewSpeechClient(cfg.Speech)
		logger.Info("Speech synthesis enabled", "voice", cfg.Speech.Voice)
	}

	// Chat-transport session
	creds := transport.NewFileCredentialStore(cfg.Transport.CredentialsPath)
	session := transport.NewManager(
		cfg.Transport.URL,
		cfg.Transport.GetReconnectDelay(),
		cfg.Transport.GetPairingTimeout(),
		creds,
		logging.WithComponent("transport"),
	)
	session.SetChallengeCallback(func(challenge string) {
		fmt.Printf("\nPairing challenge (scan within %s):\n\n  %s\n\n", cfg.Transport.GetPairingTimeout(), challenge)
	})

	// Orchestrator ties it all together
	orch := orchestrator.New(
		profiles, contexts, registry, chatRouter, speech,
		limiter, cfg.RateLimit, session.Connected,
		logging.WithComponent("orchestrator"),
	)

	session.SetHandler(func(userID, text, mediaRef string) {
		reply := orch.Handle(ctx, userID, text, mediaRef)
		if err := session.Send(userID, reply.Text, reply.Audio); err != nil {
			logger.Error("Failed to send reply", "user", userID, "error", err)
		}
	})

	if err := session.Connect(); err != nil {
		// once established the session reconnects on its own; only a
		// terminal state is fatal
		if errors.Is(err, transport.ErrLoggedOut) {
			logger.Error("Session is logged out, re-pairing required", "error", err)
			os.Exit(1)
		}
		logger.Warn("Initial session connect failed, will retry", "error", err)
		go func() {
			for {
				time.Sleep(cfg.Transport.GetReconnectDelay())
				err := session.Connect()
				if err == nil || errors.Is(err, transport.ErrLoggedOut) {
					return
				}
				logger.Warn("Session connect retry failed", "error", err)
			}
		}()
	}

	// Secondary channels
	adapters := []channel.Adapter{}
	if cfg.Channels.Telegram.Enabled {
		adapters = append(adapters, telegram.New(cfg.Channels.Telegram.Token))
		logger.Info("Telegram adapter initialized")
	}
	for _, adapter := range adapters {
		if !adapter.IsEnabled() {
			continue
		}
		if err := adapter.Start(ctx); err != nil {
			logger.Error("Failed to start adapter", "adapter", adapter.Name(), "error", err)
			continue
		}
		logger.Info("Adapter started", "adapter", adapter.Name())
		go runAdapter(ctx, adapter, orch, logger)
	}

	// Maintenance scheduler
	sched := scheduler.New(limiter, contexts, logging.WithComponent("scheduler"))
	sched.Start()
	logger.Info("Scheduler started")

	// HTTP API
	srv := server.New(cfg, orch, session, registry, health, profiles, contexts, logging.WithComponent("server"))
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Stopping adapters")
	for _, adapter := range adapters {
		if err := adapter.Stop(); err != nil {
			logger.Error("Failed to stop adapter", "adapter", adapter.Name(), "error", err)
		}
	}

	logger.Info("Stopping scheduler")
	sched.Stop()

	logger.Info("Stopping health checks")
	health.Stop()

	logger.Info("Closing session")
	session.Shutdown()

	logger.Info("Stopping HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Shutdown complete")
}

// runAdapter feeds a secondary channel through the same orchestrator
// pipeline as the primary session.
func runAdapter(ctx context.Context, adapter channel.Adapter, orch *orchestrator.Orchestrator, logger *slog.Logger) {
	for msg := range adapter.Incoming() {
		reply := orch.Handle(ctx, msg.UserID, msg.Content, msg.MediaRef)
		resp := &channel.Response{Content: reply.Text, Audio: reply.Audio}
		if err := adapter.SendMessage(msg.UserID, resp); err != nil {
			logger.Error("Failed to send channel reply", "adapter", adapter.Name(), "user", msg.UserID, "error", err)
		}
	}
}
