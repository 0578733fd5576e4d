// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/rigrun-stream/internal/model"
)

// DefaultFlushInterval bounds how often revealed content is written back.
const DefaultFlushInterval = 250 * time.Millisecond

// MessageStore persists rendered messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, conversationID string, role model.Role, content string) (*model.Message, error)
	AppendMessageContent(ctx context.Context, id, delta string) error
	UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus) error
}

// statsStore is implemented by stores that keep render statistics.
type statsStore interface {
	FinishMessage(ctx context.Context, id string, status model.MessageStatus, tokens int, elapsed time.Duration) error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithFlushInterval sets the minimum time between content writes.
// Zero writes on every change.
func WithFlushInterval(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d >= 0 {
			r.interval = d
		}
	}
}

// WithRole sets the role of recorded messages. Defaults to assistant.
func WithRole(role model.Role) RecorderOption {
	return func(r *Recorder) { r.role = role }
}

// WithRecorderLogger sets the recorder logger.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// =============================================================================
// RECORDER
// =============================================================================

// Recorder writes a Controller's revealed content into a MessageStore.
//
// The message is created when the recorder starts, grows by throttled
// deltas while content is revealed, and is marked complete once the
// controller has completed with its input closed. A recorder closed
// before that marks the message interrupted.
type Recorder struct {
	store          MessageStore
	conversationID string
	role           model.Role
	interval       time.Duration
	logger         *slog.Logger

	mu     sync.Mutex
	latest Snapshot
	have   bool
	err    error

	wake        chan struct{}
	stop        chan struct{}
	stopOnce    sync.Once
	exited      chan struct{}
	unsubscribe func()

	// owned by run
	message   *model.Message
	persisted string
	lastFlush time.Time
	finished  bool
	messages  []string
}

// NewRecorder creates the message and starts recording c.
func NewRecorder(ctx context.Context, store MessageStore, conversationID string, c *Controller, opts ...RecorderOption) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("recorder: store is nil")
	}
	r := &Recorder{
		store:          store,
		conversationID: conversationID,
		role:           model.RoleAssistant,
		interval:       DefaultFlushInterval,
		logger:         slog.Default(),
		wake:           make(chan struct{}, 1),
		stop:           make(chan struct{}),
		exited:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "recorder", "conversation", conversationID)

	msg, err := store.CreateMessage(ctx, conversationID, r.role, "")
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	r.message = msg
	r.messages = append(r.messages, msg.ID)

	r.observe(c.Snapshot())
	r.unsubscribe = c.Subscribe(r.observe)
	go r.run(ctx)
	return r, nil
}

// MessageID returns the id of the message currently being recorded.
func (r *Recorder) MessageID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[len(r.messages)-1]
}

// MessageIDs returns every message this recorder created, oldest first.
// Replaced content starts a new message.
func (r *Recorder) MessageIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Done is closed when recording ends: the completed message was persisted,
// a store write failed, or the recorder was closed.
func (r *Recorder) Done() <-chan struct{} {
	return r.exited
}

// Err returns the first store error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close stops recording and waits for pending writes. A message that has
// not completed is marked interrupted.
func (r *Recorder) Close() error {
	r.unsubscribe()
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.exited
	return r.Err()
}

// observe is the controller subscription. It never blocks.
func (r *Recorder) observe(snap Snapshot) {
	r.mu.Lock()
	r.latest = snap
	r.have = true
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.exited)

	var tick <-chan time.Time
	if r.interval > 0 {
		t := time.NewTicker(r.interval)
		defer t.Stop()
		tick = t.C
	}

	for !r.finished {
		select {
		case <-ctx.Done():
			r.interrupt(context.WithoutCancel(ctx))
			return
		case <-r.stop:
			r.interrupt(ctx)
			return
		case <-r.wake:
			r.flush(ctx, false)
		case <-tick:
			r.flush(ctx, true)
		}
	}
}

// flush writes the unpersisted suffix. Unless forced or complete, writes are
// throttled to one per interval.
func (r *Recorder) flush(ctx context.Context, force bool) {
	r.mu.Lock()
	snap, ok := r.latest, r.have
	r.mu.Unlock()
	if !ok || r.finished {
		return
	}

	if !strings.HasPrefix(snap.DisplayedContent, r.persisted) {
		r.restart(ctx)
		if r.finished {
			return
		}
	}

	final := snap.IsComplete && snap.InputClosed
	if !force && !final && r.interval > 0 && time.Since(r.lastFlush) < r.interval {
		return
	}

	if delta := snap.DisplayedContent[len(r.persisted):]; delta != "" {
		if err := r.store.AppendMessageContent(ctx, r.message.ID, delta); err != nil {
			r.fail(fmt.Errorf("append message content: %w", err))
			return
		}
		r.persisted = snap.DisplayedContent
	}
	r.lastFlush = time.Now()

	if final {
		r.finish(ctx, model.StatusComplete, snap)
	}
}

// restart closes the current message as interrupted and opens a new one for
// replaced content.
func (r *Recorder) restart(ctx context.Context) {
	if err := r.store.UpdateMessageStatus(ctx, r.message.ID, model.StatusInterrupted); err != nil {
		r.fail(fmt.Errorf("update message status: %w", err))
		return
	}
	msg, err := r.store.CreateMessage(ctx, r.conversationID, r.role, "")
	if err != nil {
		r.fail(fmt.Errorf("create message: %w", err))
		return
	}
	r.logger.Debug("content replaced, recording new message", "previous", r.message.ID, "message", msg.ID)
	r.message = msg
	r.persisted = ""

	r.mu.Lock()
	r.messages = append(r.messages, msg.ID)
	r.mu.Unlock()
}

// interrupt writes what was revealed so far and marks the message
// interrupted.
func (r *Recorder) interrupt(ctx context.Context) {
	r.flush(ctx, true)
	if r.finished {
		return
	}
	r.mu.Lock()
	snap := r.latest
	r.mu.Unlock()
	r.finish(ctx, model.StatusInterrupted, snap)
}

func (r *Recorder) finish(ctx context.Context, status model.MessageStatus, snap Snapshot) {
	r.finished = true

	var err error
	if ss, ok := r.store.(statsStore); ok {
		err = ss.FinishMessage(ctx, r.message.ID, status, snap.Metrics.CurrentIndex, snap.Metrics.Elapsed)
	} else {
		err = r.store.UpdateMessageStatus(ctx, r.message.ID, status)
	}
	if err != nil {
		r.fail(fmt.Errorf("finish message: %w", err))
		return
	}
	r.logger.Debug("message recorded",
		"message", r.message.ID,
		"status", status,
		"bytes", len(r.persisted),
		"tokens", snap.Metrics.CurrentIndex)
}

func (r *Recorder) fail(err error) {
	r.finished = true
	r.logger.Warn("recording stopped", "message", r.message.ID, "error", err)
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}
