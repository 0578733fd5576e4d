// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeranaias/rigrun-stream/internal/render"
)

// Metrics groups the Prometheus instruments for render sessions.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionEvents   *prometheus.CounterVec
	TokensRevealed  prometheus.Counter
	WSMessages      *prometheus.CounterVec
	RenderDuration  prometheus.Histogram
	TokensPerSecond prometheus.Histogram

	gatherer prometheus.Gatherer
}

// NewMetrics registers the instruments on reg. A nil reg uses the default
// registry.
func NewMetrics(reg *prometheus.Registry, namespace string) *Metrics {
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of render sessions started and not yet complete.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Render session events by type.",
		}, []string{"event"}),
		TokensRevealed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_revealed_total",
			Help:      "Tokens handed to render sinks.",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		RenderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_ms",
			Help:      "Active render time of completed sessions in milliseconds.",
			Buckets:   []float64{0, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}),
		TokensPerSecond: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tokens_per_second",
			Help:      "Reveal rate of completed sessions.",
			Buckets:   []float64{10, 25, 50, 100, 200, 500, 1000},
		}),
		gatherer: gatherer,
	}
}

// SessionObserver returns a render.Observer for one session. It tracks
// whether the session started so the active gauge stays balanced when a
// session is skipped before starting or released without completing.
func (m *Metrics) SessionObserver() *SessionObserver {
	return &SessionObserver{m: m}
}

// SessionObserver feeds one session's events into Metrics.
type SessionObserver struct {
	m *Metrics

	mu      sync.Mutex
	started bool
	ended   bool
}

var _ render.Observer = (*SessionObserver)(nil)

// SessionStarted implements render.Observer.
func (o *SessionObserver) SessionStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return
	}
	o.started = true
	o.m.ActiveSessions.Inc()
	o.m.SessionEvents.WithLabelValues("started").Inc()
}

// TokensRevealed implements render.Observer.
func (o *SessionObserver) TokensRevealed(n int) {
	o.m.TokensRevealed.Add(float64(n))
}

// SessionCompleted implements render.Observer.
func (o *SessionObserver) SessionCompleted(metrics render.Metrics) {
	o.m.SessionEvents.WithLabelValues("completed").Inc()
	o.m.RenderDuration.Observe(float64(metrics.ElapsedMs()))
	if metrics.TokensPerSecond > 0 {
		o.m.TokensPerSecond.Observe(metrics.TokensPerSecond)
	}
	o.end()
}

// Release marks an abandoned session as no longer active. It is a no-op
// after completion.
func (o *SessionObserver) Release() {
	o.mu.Lock()
	abandoned := o.started && !o.ended
	o.mu.Unlock()
	if abandoned {
		o.m.SessionEvents.WithLabelValues("abandoned").Inc()
	}
	o.end()
}

func (o *SessionObserver) end() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started && !o.ended {
		o.m.ActiveSessions.Dec()
	}
	o.ended = true
}

// ObserveWSMessage counts a WebSocket message.
func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
