// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "time"

// =============================================================================
// SEGMENT TYPES
// =============================================================================

// SegmentType classifies a run of content.
type SegmentType string

const (
	SegmentText      SegmentType = "text"
	SegmentCode      SegmentType = "code"
	SegmentReasoning SegmentType = "reasoning"
	SegmentTable     SegmentType = "table"
	SegmentList      SegmentType = "list"
	SegmentHeading   SegmentType = "heading"
	SegmentNewline   SegmentType = "newline"
)

// segmentOrder is the fixed enumeration order used for deterministic tie
// breaking in AdaptiveSpeed.
var segmentOrder = []SegmentType{
	SegmentText,
	SegmentCode,
	SegmentReasoning,
	SegmentTable,
	SegmentList,
	SegmentHeading,
	SegmentNewline,
}

// String returns the string representation of the segment type.
func (t SegmentType) String() string {
	return string(t)
}

// CanonicalMode returns the render mode a segment of this type uses.
func (t SegmentType) CanonicalMode() RenderMode {
	switch t {
	case SegmentCode:
		return ModeLine
	case SegmentTable, SegmentNewline:
		return ModeInstant
	case SegmentList, SegmentHeading:
		return ModeToken
	default:
		return ModeCharacter
	}
}

// =============================================================================
// RENDER MODES
// =============================================================================

// RenderMode is the granularity and pacing strategy applied to a segment.
type RenderMode string

const (
	ModeCharacter RenderMode = "character"
	ModeToken     RenderMode = "token"
	ModeLine      RenderMode = "line"
	ModeInstant   RenderMode = "instant"
)

// Default inter-unit delays per render mode.
const (
	CharacterDelay = 16 * time.Millisecond
	TokenDelay     = 8 * time.Millisecond
	LineDelay      = 30 * time.Millisecond
	InstantDelay   = time.Duration(0)

	// ReasoningDelay paces "thinking" output slightly faster than prose.
	ReasoningDelay = CharacterDelay * 3 / 4
)

// String returns the string representation of the render mode.
func (m RenderMode) String() string {
	return string(m)
}

// DefaultDelay returns the default delay between units for the mode.
func (m RenderMode) DefaultDelay() time.Duration {
	switch m {
	case ModeToken:
		return TokenDelay
	case ModeLine:
		return LineDelay
	case ModeInstant:
		return InstantDelay
	default:
		return CharacterDelay
	}
}

// =============================================================================
// SEGMENT
// =============================================================================

// Segment is a maximal run of content sharing one classification.
// Segments partition the analyzed input: concatenating Content in order
// reconstructs it exactly.
type Segment struct {
	Type    SegmentType   `json:"type"`
	Content string        `json:"content"`
	Mode    RenderMode    `json:"render_mode"`
	Delay   time.Duration `json:"delay"`

	// Language is the fence info string of a code segment.
	Language string `json:"language,omitempty"`

	// Depth is the heading level or the list nesting depth.
	Depth int `json:"depth,omitempty"`

	// HasFormatting is set on text containing inline markdown characters.
	HasFormatting bool `json:"has_formatting,omitempty"`
}

func newSegment(t SegmentType, content string) Segment {
	mode := t.CanonicalMode()
	delay := mode.DefaultDelay()
	if t == SegmentReasoning {
		delay = ReasoningDelay
	}
	return Segment{
		Type:    t,
		Content: content,
		Mode:    mode,
		Delay:   delay,
	}
}
