package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_gateway_provider_requests_total",
			Help: "Total number of provider calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "relay_gateway_provider_latency_seconds",
			Help: "Provider call latency in seconds",
		},
		[]string{"provider"},
	)

	RateLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_gateway_ratelimit_denials_total",
			Help: "Total number of requests denied by the rate limiter",
		},
		[]string{"key"},
	)

	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_gateway_session_transitions_total",
			Help: "Total number of transport session state transitions",
		},
		[]string{"to"},
	)

	ActiveContexts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_gateway_active_contexts",
			Help: "Number of active per-user conversation contexts",
		},
	)

	MessagesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_gateway_messages_handled_total",
			Help: "Total number of inbound messages handled by intent",
		},
		[]string{"intent"},
	)
)
