// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"io"
	"sync"

	"golang.org/x/time/rate"
)

// AudioSink plays a short typing cue. A Session calls Play once per revealed
// batch; the first error disables audio for the rest of the session.
type AudioSink interface {
	Play() error
	Close() error
}

// NopAudio is the silent default.
type NopAudio struct{}

// Play does nothing.
func (NopAudio) Play() error { return nil }

// Close does nothing.
func (NopAudio) Close() error { return nil }

// BellAudio writes the terminal bell, throttled to a maximum rate.
type BellAudio struct {
	mu      sync.Mutex
	w       io.Writer
	limiter *rate.Limiter
	clock   Clock
	closed  bool
}

// NewBellAudio creates a bell cue limited to perSecond plays per second.
func NewBellAudio(w io.Writer, perSecond float64, clock Clock) *BellAudio {
	if perSecond <= 0 {
		perSecond = 20
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &BellAudio{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		clock:   clock,
	}
}

// Play rings the bell unless throttled or closed.
func (b *BellAudio) Play() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || !b.limiter.AllowN(b.clock.Now(), 1) {
		return nil
	}
	_, err := b.w.Write([]byte{'\a'})
	return err
}

// Close stops further playback.
func (b *BellAudio) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
