// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"io"
	"strings"
	"sync"
)

// =============================================================================
// SINK INTERFACE
// =============================================================================

// Sink is an append-only presentation target. Append receives one batch per
// frame, in reveal order; a skip delivers every remaining token in a single
// call. Sinks never re-render previously appended content.
type Sink interface {
	Append(batch []Token)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(batch []Token)

// Append calls f(batch).
func (f SinkFunc) Append(batch []Token) { f(batch) }

// MultiSink fans each batch out to several sinks in order.
type MultiSink []Sink

// Append forwards the batch to every sink.
func (m MultiSink) Append(batch []Token) {
	for _, s := range m {
		if s != nil {
			s.Append(batch)
		}
	}
}

// =============================================================================
// BUFFER SINK
// =============================================================================

// BufferSink accumulates revealed text in memory. Safe for concurrent use.
type BufferSink struct {
	mu      sync.Mutex
	buf     strings.Builder
	batches int
	tokens  int
}

// NewBufferSink creates an empty buffer sink.
func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

// Append writes the batch text to the buffer.
func (b *BufferSink) Append(batch []Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range batch {
		b.buf.WriteString(t.Text)
	}
	b.batches++
	b.tokens += len(batch)
}

// String returns everything revealed so far.
func (b *BufferSink) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Batches returns the number of Append calls received.
func (b *BufferSink) Batches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batches
}

// Tokens returns the number of tokens received.
func (b *BufferSink) Tokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Reset clears the buffer.
func (b *BufferSink) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
	b.batches = 0
	b.tokens = 0
}

// =============================================================================
// WRITER SINK
// =============================================================================

// WriterSink writes each batch to an io.Writer in a single Write call.
// Break tokens and newlines embedded in text are written as lineBreak.
// After the first write error the sink stops writing and reports the error
// from Err.
type WriterSink struct {
	mu        sync.Mutex
	w         io.Writer
	lineBreak string
	breaks    *strings.Replacer
	err       error
}

// NewWriterSink creates a writer sink. An empty lineBreak means "\n".
func NewWriterSink(w io.Writer, lineBreak string) *WriterSink {
	if lineBreak == "" {
		lineBreak = "\n"
	}
	return &WriterSink{
		w:         w,
		lineBreak: lineBreak,
		breaks:    strings.NewReplacer("\r\n", lineBreak, "\n", lineBreak),
	}
}

// Append writes the batch.
func (s *WriterSink) Append(batch []Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil || len(batch) == 0 {
		return
	}
	var sb strings.Builder
	for _, t := range batch {
		if t.IsBreak() {
			sb.WriteString(s.lineBreak)
			continue
		}
		_, _ = s.breaks.WriteString(&sb, t.Text)
	}
	_, s.err = io.WriteString(s.w, sb.String())
}

// Err returns the first write error, if any.
func (s *WriterSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
