// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sort"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigrun-stream/internal/render"
)

// =============================================================================
// TEA FRAMES
// =============================================================================

// FrameMsg is delivered once per frame interval while the view is ticking.
type FrameMsg struct {
	Time time.Time
}

// TeaFrames is a render.FrameSource fed by Bubble Tea ticks. Requests
// queue until Fire is called from Update.
type TeaFrames struct {
	interval time.Duration

	mu      sync.Mutex
	nextID  int
	pending map[int]func(time.Time)
}

// NewTeaFrames creates a frame source ticking every interval. Non-positive
// intervals use render.DefaultFrameInterval.
func NewTeaFrames(interval time.Duration) *TeaFrames {
	if interval <= 0 {
		interval = render.DefaultFrameInterval
	}
	return &TeaFrames{
		interval: interval,
		pending:  make(map[int]func(time.Time)),
	}
}

// Interval returns the tick interval.
func (f *TeaFrames) Interval() time.Duration {
	return f.interval
}

// RequestFrame queues fn for the next Fire.
func (f *TeaFrames) RequestFrame(fn func(now time.Time)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.pending[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.pending, id)
		f.mu.Unlock()
	}
}

// Pending returns the number of queued requests.
func (f *TeaFrames) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Fire runs the requests queued before the call, in request order.
func (f *TeaFrames) Fire(now time.Time) int {
	f.mu.Lock()
	ids := make([]int, 0, len(f.pending))
	for id := range f.pending {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(time.Time), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, f.pending[id])
		delete(f.pending, id)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(now)
	}
	return len(fns)
}

// Tick returns a command delivering the next FrameMsg.
func (f *TeaFrames) Tick() tea.Cmd {
	return tea.Tick(f.interval, func(t time.Time) tea.Msg {
		return FrameMsg{Time: t}
	})
}
