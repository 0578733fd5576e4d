// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"io"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
)

// =============================================================================
// TERMINAL SINK
// =============================================================================

// TerminalSink appends revealed tokens to a terminal. It tracks the display
// column with go-runewidth so soft wrapping respects wide characters, and
// renders reasoning segments faint when the terminal supports it.
type TerminalSink struct {
	mu        sync.Mutex
	out       *termenv.Output
	width     int
	col       int
	lineBreak string
	faint     bool
}

// TerminalOption configures a TerminalSink.
type TerminalOption func(*TerminalSink)

// WithWrapWidth soft-wraps output at width columns. Zero disables wrapping.
func WithWrapWidth(width int) TerminalOption {
	return func(t *TerminalSink) {
		if width > 0 {
			t.width = width
		}
	}
}

// WithLineBreak sets the sequence written for hard breaks ("\r\n" in raw mode).
func WithLineBreak(lb string) TerminalOption {
	return func(t *TerminalSink) {
		if lb != "" {
			t.lineBreak = lb
		}
	}
}

// WithColorProfile forces a termenv color profile.
func WithColorProfile(p termenv.Profile) TerminalOption {
	return func(t *TerminalSink) {
		t.out = termenv.NewOutput(t.out.Writer(), termenv.WithProfile(p))
	}
}

// WithoutFaintReasoning renders reasoning segments like prose.
func WithoutFaintReasoning() TerminalOption {
	return func(t *TerminalSink) { t.faint = false }
}

// NewTerminalSink creates a sink writing to w.
func NewTerminalSink(w io.Writer, opts ...TerminalOption) *TerminalSink {
	t := &TerminalSink{
		out:       termenv.NewOutput(w),
		lineBreak: "\n",
		faint:     true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Append renders the batch with a single write.
func (t *TerminalSink) Append(batch []Token) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sb strings.Builder
	for _, tok := range batch {
		if tok.IsBreak() {
			sb.WriteString(t.lineBreak)
			t.col = 0
			continue
		}
		text := t.layout(tok.Text)
		if t.faint && tok.Segment == SegmentReasoning {
			text = t.out.String(text).Faint().String()
		}
		sb.WriteString(text)
	}
	if sb.Len() > 0 {
		_, _ = t.out.WriteString(sb.String())
	}
}

// Column returns the current display column.
func (t *TerminalSink) Column() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.col
}

// layout rewrites embedded newlines and inserts soft wraps.
func (t *TerminalSink) layout(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch r {
		case '\n':
			sb.WriteString(t.lineBreak)
			t.col = 0
			continue
		case '\r':
			continue
		}
		w := runewidth.RuneWidth(r)
		if t.width > 0 && t.col+w > t.width {
			sb.WriteString(t.lineBreak)
			t.col = 0
		}
		sb.WriteRune(r)
		t.col += w
	}
	return sb.String()
}
