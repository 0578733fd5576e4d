// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the render engine over HTTP and WebSocket.
//
// Endpoints:
//   - GET  /v1/render/ws - Stream a render session as JSON frames
//   - POST /v1/analyze   - Segment content and return the segments
//   - GET  /healthz      - Health check
//   - GET  /stats        - Connection and session counters
//   - GET  /metrics      - Prometheus metrics
//
// A WebSocket client sends a render request:
//
//	{"content": "# Title\nbody", "speed": "fast"}
//
// and receives append frames in reveal order, periodic metrics frames and a
// final complete frame:
//
//	{"type":"append","session_id":"...","tokens":[{"text":"T"},{"text":"\n","break":true}]}
//	{"type":"metrics","session_id":"...","metrics":{"revealed":12,"total":40,...}}
//	{"type":"complete","session_id":"...","metrics":{...}}
//
// Control messages pause, resume or skip the current session, or change its
// speed:
//
//	{"action": "pause"}
//	{"action": "speed", "speed": "custom", "custom_delay_ms": 30}
package server
