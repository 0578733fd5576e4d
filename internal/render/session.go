// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// STATE
// =============================================================================

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateComplete
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Session.
type Option func(*Session)

// WithSpeed sets the initial reveal speed.
func WithSpeed(cfg SpeedConfig) Option {
	return func(s *Session) { s.speed = cfg }
}

// WithFrames sets the frame source driving the tick loop.
func WithFrames(f FrameSource) Option {
	return func(s *Session) {
		s.frames = f
		s.framesSet = true
	}
}

// WithClock sets the monotonic clock. Defaults to the frame source when it
// implements Clock, otherwise the system clock.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithAudio sets the typing cue. Defaults to NopAudio. The caller owns the
// sink and closes it; one sink may serve several sessions.
func WithAudio(a AudioSink) Option {
	return func(s *Session) {
		if a != nil {
			s.audio = a
		}
	}
}

// OnToken registers a callback invoked for every revealed token, in order.
func OnToken(fn func(tok Token, index int)) Option {
	return func(s *Session) { s.onToken = fn }
}

// OnComplete registers a callback invoked exactly once on completion.
func OnComplete(fn func(m Metrics)) Option {
	return func(s *Session) { s.onComplete = fn }
}

// WithObserver attaches an instrumentation observer.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Growing lets the queue be extended with Append until Finish is called.
// An exhausted growing session waits for more tokens instead of completing.
func Growing() Option {
	return func(s *Session) { s.growing = true }
}

// =============================================================================
// SESSION
// =============================================================================

// delivery is one unit of externally visible work: a batch for the sink and
// callbacks, and/or the completion notification.
type delivery struct {
	started  bool
	batch    []Token
	start    int
	complete bool
	metrics  Metrics
}

// Session reveals a token queue over time.
//
// The lifecycle is idle -> running <-> paused -> complete; complete is
// terminal. All methods are safe for concurrent use. Sink writes and
// callbacks run outside the session lock, in reveal order, so callbacks may
// call back into the session. A FrameSource must never invoke its callback
// synchronously from RequestFrame.
type Session struct {
	mu sync.Mutex

	id     string
	tokens []Token
	index  int
	state  State

	growing   bool
	finished  bool
	destroyed bool

	speed SpeedConfig
	delay time.Duration

	frames      FrameSource
	framesSet   bool
	clock       Clock
	cancelFrame func()
	frameGen    uint64

	lastFrame   time.Time
	hasBaseline bool
	accumulator time.Duration

	elapsed       time.Duration
	runningSince  time.Time
	tps           float64
	lastMetricsAt time.Time
	completeFired bool

	outbox   []delivery
	draining bool

	sink          Sink
	audio         AudioSink
	audioDisabled bool
	onToken       func(Token, int)
	onComplete    func(Metrics)
	observer      Observer
	logger        *slog.Logger
}

// NewSession creates an idle session over tokens. Configuration problems
// (nil sink, negative delay, unknown preset, missing frame source) are
// reported here, never mid-stream.
func NewSession(tokens []Token, sink Sink, opts ...Option) (*Session, error) {
	if sink == nil {
		return nil, ErrNilSink
	}

	s := &Session{
		id:     uuid.NewString(),
		tokens: append([]Token(nil), tokens...),
		sink:   sink,
		speed:  DefaultSpeed(),
		audio:  NopAudio{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	delay, err := s.speed.Delay()
	if err != nil {
		return nil, err
	}
	s.delay = delay

	if s.frames == nil {
		if s.framesSet {
			return nil, ErrNoFrameSource
		}
		s.frames = NewTimerFrames(DefaultFrameInterval)
	}
	if s.clock == nil {
		if c, ok := s.frames.(Clock); ok {
			s.clock = c
		} else {
			s.clock = SystemClock()
		}
	}
	s.logger = s.logger.With("component", "render", "session", s.id)

	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start begins revealing. It is a no-op once running, complete or destroyed;
// on a paused session it resumes.
func (s *Session) Start() {
	s.mu.Lock()
	switch {
	case s.destroyed, s.state == StateRunning, s.state == StateComplete:
		s.mu.Unlock()
		return
	case s.state == StatePaused:
		s.mu.Unlock()
		s.Resume()
		return
	}

	now := s.clock.Now()
	s.state = StateRunning
	s.runningSince = now
	s.lastMetricsAt = now
	s.hasBaseline = false
	s.outbox = append(s.outbox, delivery{started: true})
	s.advanceLocked(now)
	s.unlockAndDrain()
}

// Pause stops the tick loop and cancels the pending frame. The fractional
// accumulator is kept so resuming continues smoothly.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return
	}
	s.stopClockLocked(s.clock.Now())
	s.state = StatePaused
	s.cancelFrameLocked()
}

// Resume continues a paused session. Time spent paused does not count toward
// rendering speed.
func (s *Session) Resume() {
	s.mu.Lock()
	if s.destroyed || s.state != StatePaused {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	s.state = StateRunning
	s.runningSince = now
	s.hasBaseline = false
	s.advanceLocked(now)
	s.unlockAndDrain()
}

// Toggle pauses a running session or resumes a paused one.
func (s *Session) Toggle() {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	switch state {
	case StateRunning:
		s.Pause()
	case StatePaused:
		s.Resume()
	}
}

// SetSpeed changes the per-token delay from the next tick on.
func (s *Session) SetSpeed(cfg SpeedConfig) error {
	delay, err := cfg.Delay()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = cfg
	s.delay = delay
	return nil
}

// Speed returns the current speed config.
func (s *Session) Speed() SpeedConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// SkipToEnd reveals every remaining token in one batch and completes the
// session. Later calls are no-ops.
func (s *Session) SkipToEnd() {
	s.mu.Lock()
	if s.destroyed || s.state == StateComplete {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	s.cancelFrameLocked()
	s.revealLocked(len(s.tokens)-s.index, now)
	s.completeLocked(now)
	s.unlockAndDrain()
}

// Destroy cancels any pending frame. The audio sink belongs to the caller
// and is left open. Safe at any point of the lifecycle and idempotent.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	if s.state == StateRunning {
		s.stopClockLocked(s.clock.Now())
		s.state = StatePaused
	}
	s.cancelFrameLocked()
	s.destroyed = true
	s.outbox = nil
	s.mu.Unlock()
}

// =============================================================================
// GROWING INPUT
// =============================================================================

// Append extends the queue of a growing session. A parked session wakes on
// the next frame with a fresh baseline so idle time is not rendered as a burst.
func (s *Session) Append(tokens []Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.growing:
		return ErrNotGrowing
	case s.destroyed, s.state == StateComplete, s.finished:
		return ErrSessionComplete
	}
	if len(tokens) == 0 {
		return nil
	}
	s.tokens = append(s.tokens, tokens...)
	if s.state == StateRunning && s.cancelFrame == nil {
		s.hasBaseline = false
		s.requestFrameLocked()
	}
	return nil
}

// Finish marks the end of input for a growing session. The session
// completes once the remaining queue drains.
func (s *Session) Finish() {
	s.mu.Lock()
	if !s.growing || s.finished || s.state == StateComplete {
		s.mu.Unlock()
		return
	}
	s.finished = true
	if s.state == StateRunning && s.index >= len(s.tokens) {
		s.completeLocked(s.clock.Now())
	}
	s.unlockAndDrain()
}

// =============================================================================
// READS
// =============================================================================

// Metrics returns a snapshot of the session's progress.
func (s *Session) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricsLocked(s.clock.Now())
}

// Progress returns completion in percent.
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateComplete {
		return 100
	}
	return progressOf(s.index, len(s.tokens))
}

// Complete reports whether the session has completed.
func (s *Session) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateComplete
}

// Paused reports whether the session is paused.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StatePaused
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// =============================================================================
// TICK LOOP
// =============================================================================

// tick is one frame callback. gen guards against frames that were cancelled
// after the frame source had already dispatched them.
func (s *Session) tick(gen uint64, now time.Time) {
	s.mu.Lock()
	if gen != s.frameGen || s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.cancelFrame = nil

	var delta time.Duration
	first := !s.hasBaseline
	if !first {
		delta = now.Sub(s.lastFrame)
		if delta < 0 {
			delta = 0
		}
	}
	s.lastFrame = now
	s.hasBaseline = true

	if s.delay == 0 {
		s.revealLocked(len(s.tokens)-s.index, now)
	} else if !first {
		s.accumulator += delta
		if n := int(s.accumulator / s.delay); n > 0 {
			s.accumulator -= time.Duration(n) * s.delay
			s.revealLocked(n, now)
		}
	}

	if now.Sub(s.lastMetricsAt) >= metricsInterval {
		s.updateRateLocked(now)
	}

	s.advanceLocked(now)
	s.unlockAndDrain()
}

// advanceLocked decides what follows a reveal: completion, parking an
// exhausted growing session, or another frame.
func (s *Session) advanceLocked(now time.Time) {
	if s.index < len(s.tokens) {
		s.requestFrameLocked()
		return
	}
	if s.growing && !s.finished {
		s.cancelFrameLocked()
		return
	}
	s.completeLocked(now)
}

// revealLocked queues up to n tokens as one batch.
func (s *Session) revealLocked(n int, now time.Time) {
	if remaining := len(s.tokens) - s.index; n > remaining {
		n = remaining
	}
	if n <= 0 {
		return
	}
	start := s.index
	s.index += n
	s.outbox = append(s.outbox, delivery{batch: s.tokens[start:s.index:s.index], start: start})
}

func (s *Session) completeLocked(now time.Time) {
	if s.state == StateRunning {
		s.stopClockLocked(now)
	}
	s.cancelFrameLocked()
	s.state = StateComplete
	s.updateRateLocked(now)
	if s.completeFired {
		return
	}
	s.completeFired = true
	s.outbox = append(s.outbox, delivery{complete: true, metrics: s.metricsLocked(now)})
}

func (s *Session) requestFrameLocked() {
	if s.cancelFrame != nil {
		return
	}
	s.frameGen++
	gen := s.frameGen
	s.cancelFrame = s.frames.RequestFrame(func(now time.Time) {
		s.tick(gen, now)
	})
}

func (s *Session) cancelFrameLocked() {
	s.frameGen++
	if s.cancelFrame != nil {
		s.cancelFrame()
		s.cancelFrame = nil
	}
}

func (s *Session) stopClockLocked(now time.Time) {
	s.elapsed += now.Sub(s.runningSince)
	s.runningSince = time.Time{}
}

func (s *Session) elapsedLocked(now time.Time) time.Duration {
	if s.state == StateRunning {
		return s.elapsed + now.Sub(s.runningSince)
	}
	return s.elapsed
}

func (s *Session) updateRateLocked(now time.Time) {
	s.lastMetricsAt = now
	if secs := s.elapsedLocked(now).Seconds(); secs > 0 {
		s.tps = float64(s.index) / secs
	}
}

func (s *Session) metricsLocked(now time.Time) Metrics {
	return Metrics{
		CurrentIndex:    s.index,
		TotalTokens:     len(s.tokens),
		TokensPerSecond: s.tps,
		Elapsed:         s.elapsedLocked(now),
		IsActive:        s.state == StateRunning,
	}
}

// =============================================================================
// DELIVERY
// =============================================================================

// unlockAndDrain releases the lock and delivers queued work. Whoever finds
// the outbox idle becomes the drainer; re-entrant or concurrent callers just
// enqueue, which keeps delivery ordered without holding the lock across
// sink writes and callbacks.
func (s *Session) unlockAndDrain() {
	if s.draining || len(s.outbox) == 0 {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.outbox) > 0 {
		d := s.outbox[0]
		s.outbox[0] = delivery{}
		s.outbox = s.outbox[1:]

		var audio AudioSink
		if !s.audioDisabled && len(d.batch) > 0 {
			audio = s.audio
		}
		s.mu.Unlock()

		audioErr := s.deliver(d, audio)

		s.mu.Lock()
		if audioErr != nil && !s.audioDisabled {
			s.audioDisabled = true
			s.logger.Warn("typing sound disabled", "error", audioErr)
		}
	}
	s.draining = false
	s.mu.Unlock()
}

func (s *Session) deliver(d delivery, audio AudioSink) (audioErr error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("render callback panicked", "panic", r)
		}
	}()

	if d.started && s.observer != nil {
		s.observer.SessionStarted()
	}

	if len(d.batch) > 0 {
		s.sink.Append(d.batch)
		if s.observer != nil {
			s.observer.TokensRevealed(len(d.batch))
		}
		if s.onToken != nil {
			for i, tok := range d.batch {
				s.onToken(tok, d.start+i)
			}
		}
		if audio != nil {
			audioErr = playSafely(audio)
		}
	}

	if d.complete {
		s.logger.Debug("render complete",
			"tokens", d.metrics.TotalTokens,
			"elapsed_ms", d.metrics.ElapsedMs(),
			"tokens_per_sec", d.metrics.TokensPerSecond)
		if s.observer != nil {
			s.observer.SessionCompleted(d.metrics)
		}
		if s.onComplete != nil {
			s.onComplete(d.metrics)
		}
	}
	return audioErr
}

// playSafely turns an audio panic into an error so it disables audio
// instead of tearing down the session.
func playSafely(a AudioSink) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audio panic: %v", r)
		}
	}()
	return a.Play()
}
