// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/jeranaias/rigrun-stream/internal/render"
)

// ErrClosed is returned by operations on a closed Controller.
var ErrClosed = errors.New("controller closed")

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the observable state of a Controller.
type Snapshot struct {
	DisplayedContent string
	IsComplete       bool
	ProgressPercent  float64
	TokensPerSecond  float64
	IsPaused         bool
	// InputClosed is set once Finish has been called for this content.
	InputClosed bool
	Metrics     render.Metrics
}

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Controller.
type Option func(*Controller)

// WithSpeed sets the reveal speed of new sessions.
func WithSpeed(cfg render.SpeedConfig) Option {
	return func(c *Controller) { c.speed = cfg }
}

// WithAdaptiveSpeed derives the speed of each new session from its
// initial content.
func WithAdaptiveSpeed() Option {
	return func(c *Controller) { c.adaptive = true }
}

// WithFrames sets the frame source shared by all sessions.
func WithFrames(f render.FrameSource) Option {
	return func(c *Controller) {
		c.frames = f
		c.framesSet = true
	}
}

// WithSink forwards every revealed batch to a presentation sink as well.
func WithSink(s render.Sink) Option {
	return func(c *Controller) { c.sink = s }
}

// WithSessionOptions appends options to every session the controller
// creates (audio, observer, clock).
func WithSessionOptions(opts ...render.Option) Option {
	return func(c *Controller) { c.sessionOpts = append(c.sessionOpts, opts...) }
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller drives render sessions from incoming content.
//
// Content is treated as growing until Finish is called: a session whose
// queue drains waits for more content instead of completing. Content that
// arrives after the session completed (for example after Skip) is appended
// to the displayed content directly.
type Controller struct {
	mu sync.Mutex

	speed       render.SpeedConfig
	adaptive    bool
	frames      render.FrameSource
	framesSet   bool
	sink        render.Sink
	sessionOpts []render.Option
	logger      *slog.Logger

	session   *render.Session
	gen       uint64
	content   string
	displayed strings.Builder
	complete  bool
	inputDone bool
	tail      string
	closed    bool
	decoder   render.SuffixDecoder

	subs    map[int]func(Snapshot)
	nextSub int
}

// NewController creates a controller. Invalid speed settings or a missing
// frame source are reported here.
func NewController(opts ...Option) (*Controller, error) {
	c := &Controller{
		speed:  render.DefaultSpeed(),
		logger: slog.Default(),
		subs:   make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := c.speed.Delay(); err != nil {
		return nil, err
	}
	if c.frames == nil {
		if c.framesSet {
			return nil, render.ErrNoFrameSource
		}
		c.frames = render.NewTimerFrames(render.DefaultFrameInterval)
	}
	c.logger = c.logger.With("component", "stream")
	return c, nil
}

// SetContent sets the full content received so far. Content extending the
// previous content feeds only the new suffix into the running session; any
// other change replaces the session.
func (c *Controller) SetContent(full string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.session != nil && strings.HasPrefix(full, c.content) {
		return c.extendLocked(full[len(c.content):])
	}
	return c.replaceLocked(full)
}

// Feed appends a chunk of upstream output. Chunks may split multi-byte
// characters; the split bytes are held until the rest arrives.
func (c *Controller) Feed(chunk string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	text := c.decoder.Write(chunk)
	if c.session == nil {
		return c.replaceLocked(text)
	}
	return c.extendLocked(text)
}

// Finish marks the end of input. The session completes once everything
// received has been revealed.
func (c *Controller) Finish() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if rest := c.decoder.Flush(); rest != "" {
		if c.session == nil {
			if err := c.replaceLocked(rest); err != nil {
				return err
			}
		} else if err := c.extendLocked(rest); err != nil {
			return err
		}
		c.mu.Lock()
	}

	c.inputDone = true
	s := c.session
	if s == nil {
		c.complete = true
	}
	c.mu.Unlock()

	if s != nil {
		s.Finish()
	}
	c.publishState()
	return nil
}

// Play replaces the content with a complete document and reveals it.
func (c *Controller) Play(content string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.decoder = render.SuffixDecoder{}
	if err := c.replaceLocked(content); err != nil {
		return err
	}
	return c.Finish()
}

// extendLocked feeds suffix into the current session and unlocks c.mu.
func (c *Controller) extendLocked(suffix string) error {
	if suffix == "" {
		c.mu.Unlock()
		return nil
	}
	c.content += suffix

	if c.complete {
		tokens := render.TokenizeString(suffix)
		c.displayed.WriteString(suffix)
		snap, subs, sink := c.snapshotLocked(), c.subscribersLocked(), c.sink
		c.mu.Unlock()
		if sink != nil {
			sink.Append(tokens)
		}
		publish(subs, snap)
		return nil
	}

	err := c.session.Append(render.TokenizeString(suffix))
	if errors.Is(err, render.ErrSessionComplete) {
		// The completion is still being delivered; show the suffix after it.
		c.tail += suffix
		err = nil
	}
	c.mu.Unlock()
	return err
}

// replaceLocked tears down the current session, starts a fresh one over
// content and unlocks c.mu.
func (c *Controller) replaceLocked(content string) error {
	old := c.session
	c.session = nil
	c.gen++
	gen := c.gen
	c.content = content
	c.displayed.Reset()
	c.complete = false
	c.inputDone = false
	c.tail = ""

	speed := c.speed
	if c.adaptive && content != "" {
		speed = render.AdaptiveSpeed(content).SpeedConfig()
	}

	opts := append([]render.Option{
		render.WithSpeed(speed),
		render.WithFrames(c.frames),
		render.WithLogger(c.logger),
		render.OnComplete(func(render.Metrics) { c.completed(gen) }),
		render.Growing(),
	}, c.sessionOpts...)

	s, err := render.NewSession(render.TokenizeString(content), render.SinkFunc(func(batch []render.Token) {
		c.reveal(gen, batch)
	}), opts...)
	if err != nil {
		c.mu.Unlock()
		if old != nil {
			old.Destroy()
		}
		return err
	}
	c.session = s
	c.mu.Unlock()

	if old != nil {
		old.Destroy()
	}
	s.Start()
	return nil
}

// reveal is the sink of session gen.
func (c *Controller) reveal(gen uint64, batch []render.Token) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	for _, tok := range batch {
		c.displayed.WriteString(tok.Text)
	}
	snap, subs, sink := c.snapshotLocked(), c.subscribersLocked(), c.sink
	c.mu.Unlock()

	if sink != nil {
		sink.Append(batch)
	}
	publish(subs, snap)
}

func (c *Controller) completed(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.complete = true
	tail := c.tail
	c.tail = ""
	c.displayed.WriteString(tail)
	snap, subs, sink := c.snapshotLocked(), c.subscribersLocked(), c.sink
	c.mu.Unlock()

	if tail != "" && sink != nil {
		sink.Append(render.TokenizeString(tail))
	}
	publish(subs, snap)
}

// =============================================================================
// CONTROLS
// =============================================================================

// Pause pauses the current session.
func (c *Controller) Pause() {
	if s := c.current(); s != nil {
		s.Pause()
		c.publishState()
	}
}

// Resume resumes the current session.
func (c *Controller) Resume() {
	if s := c.current(); s != nil {
		s.Resume()
		c.publishState()
	}
}

// Toggle pauses a running session or resumes a paused one.
func (c *Controller) Toggle() {
	if s := c.current(); s != nil {
		s.Toggle()
		c.publishState()
	}
}

// Skip reveals everything received so far and completes the session.
func (c *Controller) Skip() {
	if s := c.current(); s != nil {
		s.SkipToEnd()
	}
}

// SetSpeed changes the speed of the current and future sessions.
func (c *Controller) SetSpeed(cfg render.SpeedConfig) error {
	if _, err := cfg.Delay(); err != nil {
		return err
	}
	c.mu.Lock()
	c.speed = cfg
	c.adaptive = false
	s := c.session
	c.mu.Unlock()
	if s != nil {
		return s.SetSpeed(cfg)
	}
	return nil
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to receive a Snapshot after every change. The
// returned func unsubscribes. fn runs on the goroutine delivering frames
// and must not block.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close destroys the current session and drops all subscribers.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	s := c.session
	c.session = nil
	c.subs = make(map[int]func(Snapshot))
	c.mu.Unlock()

	if s != nil {
		s.Destroy()
	}
}

func (c *Controller) current() *render.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) publishState() {
	c.mu.Lock()
	snap, subs := c.snapshotLocked(), c.subscribersLocked()
	c.mu.Unlock()
	publish(subs, snap)
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		DisplayedContent: c.displayed.String(),
		IsComplete:       c.complete,
		InputClosed:      c.inputDone,
	}
	if c.session != nil {
		m := c.session.Metrics()
		snap.Metrics = m
		snap.TokensPerSecond = m.TokensPerSecond
		snap.ProgressPercent = c.session.Progress()
		snap.IsPaused = c.session.Paused()
	} else if c.complete {
		snap.ProgressPercent = 100
	}
	return snap
}

func (c *Controller) subscribersLocked() []func(Snapshot) {
	subs := make([]func(Snapshot), 0, len(c.subs))
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}

func publish(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
