// Package metrics exposes Prometheus instrumentation for calls, turns and
// bookings. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Booking paths.
const (
	PathTag      = "tag"
	PathFallback = "fallback"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	TurnsTotal       *prometheus.CounterVec
	TurnDuration     prometheus.Histogram
	BookingsTotal    *prometheus.CounterVec
	ConflictsTotal   prometheus.Counter
	IntentsTotal     *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
	CallsTotal       *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	CompletionTokens *prometheus.CounterVec
}

// New creates a Metrics instance with every collector registered on a
// private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "meetbot"
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Conversation turns handled, by outcome",
			},
			[]string{"outcome"},
		),
		TurnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "Time spent handling one caller turn",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
			},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_total",
				Help:      "Meetings booked, by detection path",
			},
			[]string{"path"},
		),
		ConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "booking_conflicts_total",
				Help:      "Booking attempts that found the slot taken",
			},
		),
		IntentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intents_total",
				Help:      "Intent tags seen in model replies",
			},
			[]string{"kind", "valid"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Dependency failures, by kind",
			},
			[]string{"kind"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Call sessions held in memory",
			},
		),
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Calls started and ended, by event and disposition",
			},
			[]string{"event", "disposition"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served",
			},
			[]string{"method", "status"},
		),
		CompletionTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "completion_tokens_total",
				Help:      "Tokens consumed by completions",
			},
			[]string{"provider", "direction"},
		),
	}

	registry.MustRegister(
		m.TurnsTotal,
		m.TurnDuration,
		m.BookingsTotal,
		m.ConflictsTotal,
		m.IntentsTotal,
		m.ErrorsTotal,
		m.SessionsActive,
		m.CallsTotal,
		m.HTTPRequests,
		m.CompletionTokens,
	)
	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordTurn records a finished turn.
func (m *Metrics) RecordTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(d.Seconds())
}

// RecordBooking records a committed meeting.
func (m *Metrics) RecordBooking(path string) {
	if m == nil {
		return
	}
	m.BookingsTotal.WithLabelValues(path).Inc()
}

// RecordConflict records a booking that lost its slot.
func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.ConflictsTotal.Inc()
}

// RecordIntent records one intent tag occurrence.
func (m *Metrics) RecordIntent(kind string, valid bool) {
	if m == nil {
		return
	}
	m.IntentsTotal.WithLabelValues(kind, strconv.FormatBool(valid)).Inc()
}

// RecordError records a dependency failure (transcription, completion,
// ledger, telephony).
func (m *Metrics) RecordError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

// SetSessions updates the live session gauge.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// RecordCall records a call lifecycle event ("start", "end", "dial").
func (m *Metrics) RecordCall(event, disposition string) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(event, disposition).Inc()
}

// RecordHTTP records one served request.
func (m *Metrics) RecordHTTP(method string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// RecordTokens records completion token usage.
func (m *Metrics) RecordTokens(provider string, input, output int) {
	if m == nil {
		return
	}
	if input > 0 {
		m.CompletionTokens.WithLabelValues(provider, "input").Add(float64(input))
	}
	if output > 0 {
		m.CompletionTokens.WithLabelValues(provider, "output").Add(float64(output))
	}
}
