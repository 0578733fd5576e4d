// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"sort"
	"sync"
	"time"
)

// =============================================================================
// CLOCK AND FRAME SOURCE
// =============================================================================

// Clock reports monotonic time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the process clock. time.Now carries a monotonic reading.
func SystemClock() Clock { return systemClock{} }

// FrameSource runs a callback "soon", typically once per display frame.
// The returned cancel func removes the request; it is safe to call after
// the callback has run.
type FrameSource interface {
	RequestFrame(fn func(now time.Time)) (cancel func())
}

// DefaultFrameInterval approximates a 60Hz display.
const DefaultFrameInterval = 16 * time.Millisecond

// =============================================================================
// TIMER FRAMES
// =============================================================================

// TimerFrames is a FrameSource backed by time.AfterFunc, for targets with no
// display refresh signal (terminals, servers).
type TimerFrames struct {
	interval time.Duration
}

// NewTimerFrames creates a timer frame source. Non-positive intervals use
// DefaultFrameInterval.
func NewTimerFrames(interval time.Duration) *TimerFrames {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &TimerFrames{interval: interval}
}

// Interval returns the delay between frames.
func (f *TimerFrames) Interval() time.Duration {
	return f.interval
}

// RequestFrame schedules fn after one interval.
func (f *TimerFrames) RequestFrame(fn func(now time.Time)) func() {
	t := time.AfterFunc(f.interval, func() {
		fn(time.Now())
	})
	return func() { t.Stop() }
}

// =============================================================================
// MANUAL FRAMES
// =============================================================================

// ManualFrames is a deterministic Clock and FrameSource. Time only moves
// when Advance is called, which then fires every frame requested so far.
type ManualFrames struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	pending map[int]func(time.Time)
}

// NewManualFrames creates a manual frame source starting at a fixed instant.
func NewManualFrames() *ManualFrames {
	return &ManualFrames{
		now:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		pending: make(map[int]func(time.Time)),
	}
}

// Now returns the manual clock's current time.
func (m *ManualFrames) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// RequestFrame queues fn until the next Advance.
func (m *ManualFrames) RequestFrame(fn func(now time.Time)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.pending[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
	}
}

// Pending returns the number of queued frame requests.
func (m *ManualFrames) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Advance moves the clock forward by d and fires the frames that were
// pending before the call, in request order. Frames requested by those
// callbacks wait for the next Advance. It returns the number fired.
func (m *ManualFrames) Advance(d time.Duration) int {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	ids := make([]int, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(time.Time), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.pending[id])
		delete(m.pending, id)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(now)
	}
	return len(fns)
}

// Run advances by d until no frames are pending or max frames have passed.
// It returns the number of Advance steps taken.
func (m *ManualFrames) Run(d time.Duration, max int) int {
	steps := 0
	for steps < max && m.Pending() > 0 {
		m.Advance(d)
		steps++
	}
	return steps
}
