// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigrun-stream/internal/render"
)

// =============================================================================
// CONTENT MESSAGES
// =============================================================================

// ContentMsg sets the full content received so far.
type ContentMsg struct {
	Content string
}

// ChunkMsg delivers one upstream chunk.
type ChunkMsg struct {
	Text string
}

// EndMsg signals that upstream content is complete.
type EndMsg struct{}

// SpeedMsg changes the reveal speed, e.g. after a config reload.
type SpeedMsg struct {
	Speed render.SpeedConfig
}

// ErrMsg reports an upstream failure. The view shows it and stops waiting
// for content.
type ErrMsg struct {
	Err error
}

// WaitForChunk reads the next chunk from ch. A closed channel yields EndMsg.
func WaitForChunk(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		chunk, ok := <-ch
		if !ok {
			return EndMsg{}
		}
		return ChunkMsg{Text: chunk}
	}
}
