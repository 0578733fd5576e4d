// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE STATUS
// =============================================================================

// MessageStatus tracks whether a persisted message is still being revealed.
type MessageStatus string

const (
	StatusStreaming   MessageStatus = "streaming"
	StatusComplete    MessageStatus = "complete"
	StatusInterrupted MessageStatus = "interrupted"
)

// Valid reports whether s is a known status.
func (s MessageStatus) Valid() bool {
	switch s {
	case StatusStreaming, StatusComplete, StatusInterrupted:
		return true
	}
	return false
}

// Terminal reports whether no further content can be appended.
func (s MessageStatus) Terminal() bool {
	return s == StatusComplete || s == StatusInterrupted
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Role           Role          `json:"role"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	Timestamp      time.Time     `json:"timestamp"`

	// Render statistics, set on completion.
	TokenCount   int           `json:"token_count,omitempty"`
	Elapsed      time.Duration `json:"elapsed_ns,omitempty"`
	TokensPerSec float64       `json:"tokens_per_sec,omitempty"`
}

// NewMessage creates a message with a generated ID. Assistant messages
// start streaming; everything else is complete on creation.
func NewMessage(role Role, content string) *Message {
	status := StatusComplete
	if role == RoleAssistant {
		status = StatusStreaming
	}
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Status:    status,
		Timestamp: time.Now(),
	}
}

// IsStreaming reports whether the message is still receiving content.
func (m *Message) IsStreaming() bool {
	return m.Status == StatusStreaming
}

// AppendContent appends revealed text to a streaming message.
func (m *Message) AppendContent(delta string) {
	if m.IsStreaming() {
		m.Content += delta
	}
}

// Complete marks the message complete and records render statistics.
func (m *Message) Complete(tokens int, elapsed time.Duration) {
	m.Status = StatusComplete
	m.TokenCount = tokens
	m.Elapsed = elapsed
	if elapsed > 0 {
		m.TokensPerSec = float64(tokens) / elapsed.Seconds()
	}
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	if maxLen < 4 || utf8.RuneCountInString(m.Content) <= maxLen {
		return m.Content
	}
	runes := []rune(m.Content)
	return string(runes[:maxLen-3]) + "..."
}

// FormatStats returns a one-line summary like "2.5s | 128 tokens | 51.2 tok/s".
func (m *Message) FormatStats() string {
	if m.Elapsed == 0 {
		return ""
	}
	return fmt.Sprintf("%s | %d tokens | %.1f tok/s",
		formatDuration(m.Elapsed), m.TokenCount, m.TokensPerSec)
}

// formatDuration formats short durations in milliseconds, longer ones in seconds.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
