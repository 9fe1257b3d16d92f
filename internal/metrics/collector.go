// Package metrics provides internal Prometheus metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records the service's Prometheus metrics.
// All Record methods are safe to call on a nil *Collector.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec

	turnsTotal            *prometheus.CounterVec
	stateTransitionsTotal *prometheus.CounterVec
	conversationsActive   prometheus.Gauge
	summariesTotal        *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a collector registered against reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	auto := promauto.With(reg)

	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.httpRequestsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	c.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.providerRequestsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of LLM provider requests",
		},
		[]string{"provider", "model", "status"},
	)
	c.providerRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "LLM provider request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.turnsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_turns_total",
			Help:      "Total number of completed conversation turns",
		},
		[]string{"status"},
	)
	c.stateTransitionsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_state_transitions_total",
			Help:      "Total number of conversation state transitions",
		},
		[]string{"from", "to"},
	)
	c.conversationsActive = auto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversations_active",
			Help:      "Number of conversations currently registered",
		},
	)
	c.summariesTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Total number of generated summaries",
		},
		[]string{"source"}, // provider or fallback
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordProviderRequest records one upstream LLM call.
func (c *Collector) RecordProviderRequest(provider, model, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.providerRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.providerRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordTurn records one orchestrator turn outcome ("ok" or "error").
func (c *Collector) RecordTurn(status string) {
	if c == nil {
		return
	}
	c.turnsTotal.WithLabelValues(status).Inc()
}

// RecordStateTransition records a conversation status change.
func (c *Collector) RecordStateTransition(from, to string) {
	if c == nil {
		return
	}
	c.stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// SetActiveConversations sets the registered-conversation gauge.
func (c *Collector) SetActiveConversations(n int) {
	if c == nil {
		return
	}
	c.conversationsActive.Set(float64(n))
}

// RecordSummary records a summary generation, labeled by its source
// ("provider" when the upstream call succeeded, "fallback" otherwise).
func (c *Collector) RecordSummary(source string) {
	if c == nil {
		return
	}
	c.summariesTotal.WithLabelValues(source).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
