// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jeranaias/rigrun-stream/internal/config"
	"github.com/jeranaias/rigrun-stream/internal/observability"
	"github.com/jeranaias/rigrun-stream/internal/render"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxContentLength caps the content of a single render or analyze request.
	MaxContentLength = 1 << 20

	// MaxRequestBodySize caps HTTP request bodies.
	MaxRequestBodySize = MaxContentLength + 4096

	wsReadLimit    = 2 << 20
	wsReadTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsOutboundSize = 256
)

// ============================================================================
// SERVER STATS
// ============================================================================

// Stats counts server activity since start.
type Stats struct {
	StartTime         time.Time
	Connections       atomic.Int64
	ActiveConnections atomic.Int64
	SessionsStarted   atomic.Int64
	SessionsCompleted atomic.Int64
	TokensSent        atomic.Int64
	AnalyzeRequests   atomic.Int64
}

// StatsResponse is the JSON body of GET /stats.
type StatsResponse struct {
	UptimeSeconds     int64 `json:"uptime_seconds"`
	Connections       int64 `json:"connections"`
	ActiveConnections int64 `json:"active_connections"`
	SessionsStarted   int64 `json:"sessions_started"`
	SessionsCompleted int64 `json:"sessions_completed"`
	TokensSent        int64 `json:"tokens_sent"`
	AnalyzeRequests   int64 `json:"analyze_requests"`
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsResponse {
	return StatsResponse{
		UptimeSeconds:     int64(time.Since(s.StartTime).Seconds()),
		Connections:       s.Connections.Load(),
		ActiveConnections: s.ActiveConnections.Load(),
		SessionsStarted:   s.SessionsStarted.Load(),
		SessionsCompleted: s.SessionsCompleted.Load(),
		TokensSent:        s.TokensSent.Load(),
		AnalyzeRequests:   s.AnalyzeRequests.Load(),
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server serves render sessions over WebSocket.
type Server struct {
	cfg      config.ServerConfig
	speed    render.SpeedConfig
	adaptive bool
	frames   func() render.FrameSource
	metrics  *observability.Metrics
	limiter  *RateLimiter
	logger   *slog.Logger
	upgrader websocket.Upgrader
	stats    *Stats

	// baseCtx parents every request context; Shutdown cancels it so open
	// WebSocket sessions end too.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu         sync.Mutex
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithSpeed sets the speed used when a request names none.
func WithSpeed(cfg render.SpeedConfig) Option {
	return func(s *Server) { s.speed = cfg }
}

// WithAdaptiveSpeed picks the speed from each request's content when the
// request names none.
func WithAdaptiveSpeed() Option {
	return func(s *Server) { s.adaptive = true }
}

// WithFrameInterval sets the tick period of session frame sources.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Server) {
		s.frames = func() render.FrameSource { return render.NewTimerFrames(d) }
	}
}

// WithFrames sets the factory used to create each session's frame source.
func WithFrames(fn func() render.FrameSource) Option {
	return func(s *Server) { s.frames = fn }
}

// WithMetrics wires Prometheus instruments into every session.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRateLimiter replaces the default per-IP limiter. nil disables
// limiting.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a server from cfg.
func New(cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		speed:   render.DefaultSpeed(),
		frames:  func() render.FrameSource { return render.NewTimerFrames(render.DefaultFrameInterval) },
		limiter: DefaultRateLimiter(),
		logger:  slog.Default(),
		stats:   &Stats{StartTime: time.Now()},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics(prometheus.NewRegistry(), "rigrun_stream")
	}
	s.logger = s.logger.With("component", "server")
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Stats returns the live counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Router builds the HTTP handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(SecurityHeadersMiddleware())
	r.Use(LoggingMiddleware(s.logger))
	if s.limiter != nil {
		r.Use(RateLimitMiddleware(s.limiter, s.logger))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})
	r.Post("/v1/analyze", s.handleAnalyze)
	r.Get("/v1/render/ws", s.handleRenderWS)

	return r
}

// Start listens on the configured address and blocks until the server stops.
// It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.baseCtx.Err() != nil {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("server starting", "addr", s.cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. A later Start returns at once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("server shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HTTP HANDLERS
// ============================================================================

// HealthResponse is the JSON body of GET /healthz.
type HealthResponse struct {
	Status            string `json:"status"`
	ActiveConnections int64  `json:"active_connections"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:            "ok",
		ActiveConnections: s.stats.ActiveConnections.Load(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.stats.Snapshot())
}

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	Content string `json:"content"`
}

// AnalyzeResponse lists the segments of the analyzed content together with
// the speed adaptive mode would pick and the resulting token count.
type AnalyzeResponse struct {
	Segments      []render.Segment `json:"segments"`
	Tokens        int              `json:"tokens"`
	AdaptiveSpeed string           `json:"adaptive_speed"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "invalid_request", "request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Content) > MaxContentLength {
		respondError(w, http.StatusRequestEntityTooLarge, "content_too_large", "content exceeds the maximum length")
		return
	}
	s.stats.AnalyzeRequests.Add(1)

	segments := render.Analyze(req.Content)
	respondJSON(w, http.StatusOK, AnalyzeResponse{
		Segments:      segments,
		Tokens:        len(render.Tokenize(segments)),
		AdaptiveSpeed: render.AdaptiveSpeed(req.Content).SpeedConfig().String(),
	})
}

// ============================================================================
// HELPERS
// ============================================================================

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
