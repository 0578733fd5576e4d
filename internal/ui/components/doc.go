// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides presentation pieces for revealed content:
// an animated code block with syntax highlighting, a tokenized message
// that styles content per segment while it streams, and a status line
// with render metrics.
package components
