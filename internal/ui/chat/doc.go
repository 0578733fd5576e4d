// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea stream view.
//
// StreamView owns a stream.Controller whose sessions are driven by
// TeaFrames: frame requests are queued and fired from the Update loop on
// every tick, so sink writes and view updates happen on the same goroutine
// as rendering.
package chat
