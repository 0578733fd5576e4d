// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render implements the stream rendering engine.
//
// Raw assistant output flows through four stages:
//
//	content -> Analyze -> []Segment -> Tokenize -> []Token -> Session -> Sink
//
// Analyze classifies text into typed segments (prose, code, tables, lists,
// headings, reasoning blocks, blank lines) and assigns each a render mode.
// Tokenize splits segments into atomic reveal units according to that mode.
// A Session reveals the tokens over time on a monotonic clock, batching every
// frame's worth of tokens into a single Sink append.
//
// # Scheduling
//
// A Session never owns a goroutine. It asks a FrameSource for "run this
// soon" callbacks and measures the real time between them, carrying the
// fractional remainder forward so long-run speed stays accurate under jitter:
//
//	frames := render.NewTimerFrames(16 * time.Millisecond)
//	s, err := render.NewSession(tokens, sink,
//		render.WithSpeed(render.PresetSpeed(render.SpeedFast)),
//		render.WithFrames(frames),
//	)
//	s.Start()
//
// Pause and Destroy cancel the pending frame synchronously; no callback fires
// into a paused or destroyed session.
//
// # Round trip
//
// Segments partition their input and tokens partition their segment, so
// concatenating every token reproduces the original content byte for byte.
package render
