// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jeranaias/rigrun-stream/internal/observability"
	"github.com/jeranaias/rigrun-stream/internal/render"
)

// ============================================================================
// WIRE TYPES
// ============================================================================

// Client actions.
const (
	ActionRender = "render"
	ActionAppend = "append"
	ActionFinish = "finish"
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionSkip   = "skip"
	ActionSpeed  = "speed"
)

// Server frame types.
const (
	FrameSession  = "session"
	FrameAppend   = "append"
	FrameMetrics  = "metrics"
	FrameState    = "state"
	FrameComplete = "complete"
	FrameError    = "error"
)

// ClientMessage is one message from a WebSocket client. A message without
// an action but with content is a render request.
type ClientMessage struct {
	Action        string `json:"action,omitempty"`
	Content       string `json:"content,omitempty"`
	Speed         string `json:"speed,omitempty"`
	CustomDelayMs *int   `json:"custom_delay_ms,omitempty"`
	// Growing keeps the session open for append messages until finish.
	Growing bool `json:"growing,omitempty"`
}

// Frame is one message to a WebSocket client.
type Frame struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id,omitempty"`
	Tokens    []WireToken  `json:"tokens,omitempty"`
	Metrics   *WireMetrics `json:"metrics,omitempty"`
	State     string       `json:"state,omitempty"`
	Speed     string       `json:"speed,omitempty"`
	Code      string       `json:"code,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// WireToken is a revealed token. Line breaks are flagged so clients can
// insert a native break instead of literal text.
type WireToken struct {
	Text    string             `json:"text"`
	Break   bool               `json:"break,omitempty"`
	Segment render.SegmentType `json:"segment,omitempty"`
}

// WireMetrics mirrors render.Metrics with a derived progress percentage.
type WireMetrics struct {
	Revealed        int     `json:"revealed"`
	Total           int     `json:"total"`
	Progress        float64 `json:"progress"`
	TokensPerSecond float64 `json:"tokens_per_second"`
	ElapsedMs       int64   `json:"elapsed_ms"`
	Active          bool    `json:"active"`
}

func wireMetrics(m render.Metrics) *WireMetrics {
	return &WireMetrics{
		Revealed:        m.CurrentIndex,
		Total:           m.TotalTokens,
		Progress:        m.Progress(),
		TokensPerSecond: m.TokensPerSecond,
		ElapsedMs:       m.ElapsedMs(),
		Active:          m.IsActive,
	}
}

// ============================================================================
// WEBSOCKET SINK
// ============================================================================

// DefaultMetricsInterval is the minimum spacing of metrics frames.
const DefaultMetricsInterval = 250 * time.Millisecond

// WebSocketSink turns revealed batches into append frames on a channel
// drained by the connection writer. Append blocks while the channel is full
// and gives up once ctx is done.
type WebSocketSink struct {
	ctx       context.Context
	out       chan<- Frame
	sessionID string
	interval  time.Duration

	mu          sync.Mutex
	source      func() render.Metrics
	lastMetrics time.Time
	tokens      int
}

var _ render.Sink = (*WebSocketSink)(nil)

// NewWebSocketSink creates a sink writing frames for sessionID to out.
func NewWebSocketSink(ctx context.Context, out chan<- Frame, sessionID string) *WebSocketSink {
	return &WebSocketSink{
		ctx:       ctx,
		out:       out,
		sessionID: sessionID,
		interval:  DefaultMetricsInterval,
	}
}

// Track makes the sink follow each append frame with a metrics frame from
// source, at most once per metrics interval.
func (w *WebSocketSink) Track(source func() render.Metrics) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.source = source
}

// Append implements render.Sink.
func (w *WebSocketSink) Append(batch []render.Token) {
	if len(batch) == 0 {
		return
	}
	tokens := make([]WireToken, len(batch))
	for i, t := range batch {
		tokens[i] = WireToken{Text: t.Text, Break: t.IsBreak(), Segment: t.Segment}
	}
	if !sendFrame(w.ctx, w.out, Frame{Type: FrameAppend, SessionID: w.sessionID, Tokens: tokens}) {
		return
	}

	w.mu.Lock()
	w.tokens += len(batch)
	source := w.source
	due := source != nil && time.Since(w.lastMetrics) >= w.interval
	if due {
		w.lastMetrics = time.Now()
	}
	w.mu.Unlock()

	if due {
		sendFrame(w.ctx, w.out, Frame{Type: FrameMetrics, SessionID: w.sessionID, Metrics: wireMetrics(source())})
	}
}

// Tokens returns the number of tokens sent.
func (w *WebSocketSink) Tokens() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tokens
}

func sendFrame(ctx context.Context, out chan<- Frame, f Frame) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

// ============================================================================
// CONNECTION
// ============================================================================

// renderConn is the per-connection render state. It owns at most one
// session at a time; a new render request replaces the current one.
type renderConn struct {
	srv    *Server
	ctx    context.Context
	out    chan Frame
	logger *slog.Logger

	mu       sync.Mutex
	session  *render.Session
	observer *observability.SessionObserver
}

func (s *Server) handleRenderWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.stats.Connections.Add(1)
	s.stats.ActiveConnections.Add(1)
	defer s.stats.ActiveConnections.Add(-1)
	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	rc := &renderConn{
		srv:    s,
		ctx:    ctx,
		out:    make(chan Frame, wsOutboundSize),
		logger: s.logger.With("remote", GetClientIP(r)),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		rc.writeLoop(conn, cancel)
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	// Close from the server side unblocks ReadMessage.
	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			rc.tryError("", "invalid_client_message", err.Error())
			continue
		}
		action := msg.Action
		if action == "" {
			action = ActionRender
		}
		s.metrics.ObserveWSMessage("inbound", action)
		rc.handle(action, msg)
	}

	cancel()
	rc.teardown()
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

// writeLoop is the only goroutine writing to conn.
func (rc *renderConn) writeLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-rc.ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cancel()
				return
			}
		case f := <-rc.out:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(f); err != nil {
				rc.logger.Debug("websocket write failed", "error", err)
				cancel()
				return
			}
			rc.srv.metrics.ObserveWSMessage("outbound", f.Type)
			if f.Type == FrameAppend {
				rc.srv.stats.TokensSent.Add(int64(len(f.Tokens)))
			}
		}
	}
}

func (rc *renderConn) handle(action string, msg ClientMessage) {
	switch action {
	case ActionRender:
		rc.start(msg)
		return
	case ActionAppend, ActionFinish, ActionPause, ActionResume, ActionSkip, ActionSpeed:
	default:
		rc.tryError("", "unknown_action", fmt.Sprintf("unknown action %q", action))
		return
	}

	rc.mu.Lock()
	session := rc.session
	rc.mu.Unlock()
	if session == nil {
		rc.tryError("", "no_session", "no render in progress")
		return
	}

	switch action {
	case ActionAppend:
		if len(msg.Content) > MaxContentLength {
			rc.tryError(session.ID(), "content_too_large", "content exceeds the maximum length")
			return
		}
		if err := session.Append(render.TokenizeString(msg.Content)); err != nil {
			rc.tryError(session.ID(), appendErrorCode(err), err.Error())
		}
	case ActionFinish:
		session.Finish()
	case ActionPause:
		session.Pause()
		rc.sendState(session)
	case ActionResume:
		session.Resume()
		rc.sendState(session)
	case ActionSkip:
		session.SkipToEnd()
	case ActionSpeed:
		cfg, err := rc.srv.resolveSpeed(msg)
		if err == nil {
			err = session.SetSpeed(cfg)
		}
		if err != nil {
			rc.tryError(session.ID(), "invalid_speed", err.Error())
			return
		}
		sendFrame(rc.ctx, rc.out, Frame{Type: FrameState, SessionID: session.ID(), State: session.State().String(), Speed: cfg.String()})
	}
}

// start replaces the current session with one rendering msg.Content.
func (rc *renderConn) start(msg ClientMessage) {
	if len(msg.Content) > MaxContentLength {
		rc.tryError("", "content_too_large", "content exceeds the maximum length")
		return
	}
	speed, err := rc.srv.resolveSpeed(msg)
	if err != nil {
		rc.tryError("", "invalid_speed", err.Error())
		return
	}

	id := uuid.NewString()
	sink := NewWebSocketSink(rc.ctx, rc.out, id)
	observer := rc.srv.metrics.SessionObserver()

	opts := []render.Option{
		render.WithID(id),
		render.WithSpeed(speed),
		render.WithFrames(rc.srv.frames()),
		render.WithObserver(observer),
		render.WithLogger(rc.logger),
		render.OnComplete(func(m render.Metrics) {
			rc.srv.stats.SessionsCompleted.Add(1)
			sendFrame(rc.ctx, rc.out, Frame{Type: FrameComplete, SessionID: id, Metrics: wireMetrics(m)})
		}),
	}
	if msg.Growing {
		opts = append(opts, render.Growing())
	}

	session, err := render.NewSession(render.TokenizeString(msg.Content), sink, opts...)
	if err != nil {
		rc.tryError("", "invalid_request", err.Error())
		return
	}
	sink.Track(session.Metrics)

	rc.mu.Lock()
	prev, prevObserver := rc.session, rc.observer
	rc.session, rc.observer = session, observer
	rc.mu.Unlock()
	if prev != nil {
		prev.Destroy()
		prevObserver.Release()
	}

	rc.srv.stats.SessionsStarted.Add(1)
	if !sendFrame(rc.ctx, rc.out, Frame{
		Type:      FrameSession,
		SessionID: id,
		State:     render.StateRunning.String(),
		Speed:     speed.String(),
		Metrics:   wireMetrics(session.Metrics()),
	}) {
		return
	}
	session.Start()
}

func (rc *renderConn) sendState(session *render.Session) {
	sendFrame(rc.ctx, rc.out, Frame{
		Type:      FrameState,
		SessionID: session.ID(),
		State:     session.State().String(),
		Metrics:   wireMetrics(session.Metrics()),
	})
}

// tryError queues an error frame, dropping it when the queue is full so the
// read loop never blocks on a slow client.
func (rc *renderConn) tryError(sessionID, code, detail string) {
	select {
	case rc.out <- Frame{Type: FrameError, SessionID: sessionID, Code: code, Error: detail}:
	default:
		rc.logger.Warn("dropped error frame", "code", code)
	}
}

func (rc *renderConn) teardown() {
	rc.mu.Lock()
	session, observer := rc.session, rc.observer
	rc.session, rc.observer = nil, nil
	rc.mu.Unlock()
	if session != nil {
		session.Destroy()
		observer.Release()
	}
}

// resolveSpeed maps a client speed name to a SpeedConfig. An empty name uses
// the server default.
func (s *Server) resolveSpeed(msg ClientMessage) (render.SpeedConfig, error) {
	name := strings.ToLower(strings.TrimSpace(msg.Speed))
	switch name {
	case "":
		if s.adaptive {
			return render.AdaptiveSpeed(msg.Content).SpeedConfig(), nil
		}
		return s.speed, nil
	case "adaptive":
		return render.AdaptiveSpeed(msg.Content).SpeedConfig(), nil
	case "custom":
		if msg.CustomDelayMs == nil {
			return render.SpeedConfig{}, errors.New("custom speed requires custom_delay_ms")
		}
		if *msg.CustomDelayMs < 0 {
			return render.SpeedConfig{}, render.ErrNegativeDelay
		}
		return render.CustomSpeed(time.Duration(*msg.CustomDelayMs) * time.Millisecond), nil
	}
	preset, err := render.ParseSpeed(name)
	if err != nil {
		return render.SpeedConfig{}, err
	}
	return render.PresetSpeed(preset), nil
}

func appendErrorCode(err error) string {
	switch {
	case errors.Is(err, render.ErrSessionComplete):
		return "session_complete"
	case errors.Is(err, render.ErrNotGrowing):
		return "not_growing"
	default:
		return "append_failed"
	}
}
