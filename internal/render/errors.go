// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "errors"

var (
	ErrNilSink         = errors.New("render sink is nil")
	ErrNegativeDelay   = errors.New("per-token delay must not be negative")
	ErrUnknownSpeed    = errors.New("unknown speed preset")
	ErrNoFrameSource   = errors.New("no frame source available")
	ErrSessionComplete = errors.New("session already complete")
	ErrNotGrowing      = errors.New("session does not accept appended tokens")
)
