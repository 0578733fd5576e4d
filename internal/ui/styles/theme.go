// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrun-stream/internal/render"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds the styles used to present revealed content.
type Theme struct {
	IsDark bool

	// ==========================================================================
	// SEGMENT STYLES
	// ==========================================================================

	Text      lipgloss.Style
	Heading   lipgloss.Style
	List      lipgloss.Style
	Table     lipgloss.Style
	Reasoning lipgloss.Style

	// ==========================================================================
	// CODE BLOCK STYLES
	// ==========================================================================

	CodeBlock  lipgloss.Style
	CodeBadge  lipgloss.Style
	LineNumber lipgloss.Style
	Cursor     lipgloss.Style

	// ==========================================================================
	// STATUS STYLES
	// ==========================================================================

	Running  lipgloss.Style
	Paused   lipgloss.Style
	Complete lipgloss.Style
	Metrics  lipgloss.Style
	Help     lipgloss.Style
	Error    lipgloss.Style
}

// NewTheme builds a theme. "auto" asks the terminal for its background.
func NewTheme(name string) (*Theme, error) {
	var dark bool
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ThemeAuto:
		dark = lipgloss.HasDarkBackground()
	case ThemeDark:
		dark = true
	case ThemeLight:
		dark = false
	default:
		return nil, fmt.Errorf("unknown theme %q (use auto, dark or light)", name)
	}
	lipgloss.SetHasDarkBackground(dark)
	return newTheme(dark), nil
}

// DefaultTheme returns the dark theme without touching terminal state.
func DefaultTheme() *Theme {
	return newTheme(true)
}

func newTheme(dark bool) *Theme {
	return &Theme{
		IsDark: dark,

		Text:      lipgloss.NewStyle().Foreground(TextPrimary),
		Heading:   lipgloss.NewStyle().Foreground(Purple).Bold(true),
		List:      lipgloss.NewStyle().Foreground(TextPrimary),
		Table:     lipgloss.NewStyle().Foreground(TextSecondary),
		Reasoning: lipgloss.NewStyle().Foreground(TextMuted).Italic(true),

		CodeBlock: lipgloss.NewStyle().
			Background(SurfaceDim).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Overlay).
			Padding(0, 1),
		CodeBadge: lipgloss.NewStyle().
			Foreground(TextMuted).
			Background(OverlayDim).
			Padding(0, 1).
			Bold(true),
		LineNumber: lipgloss.NewStyle().
			Foreground(TextMuted).
			Width(4).
			Align(lipgloss.Right).
			MarginRight(1),
		Cursor: lipgloss.NewStyle().Foreground(Cyan).Bold(true),

		Running:  lipgloss.NewStyle().Foreground(Purple).Bold(true),
		Paused:   lipgloss.NewStyle().Foreground(Amber).Bold(true),
		Complete: lipgloss.NewStyle().Foreground(Emerald).Bold(true),
		Metrics:  lipgloss.NewStyle().Foreground(Cyan),
		Help:     lipgloss.NewStyle().Foreground(TextMuted),
		Error:    lipgloss.NewStyle().Foreground(Rose).Bold(true),
	}
}

// Segment returns the style for content of segment type st.
func (t *Theme) Segment(st render.SegmentType) lipgloss.Style {
	switch st {
	case render.SegmentHeading:
		return t.Heading
	case render.SegmentList:
		return t.List
	case render.SegmentTable:
		return t.Table
	case render.SegmentReasoning:
		return t.Reasoning
	default:
		return t.Text
	}
}

// Status returns the label and style for a session state.
func (t *Theme) Status(state render.State) (string, lipgloss.Style) {
	switch state {
	case render.StatePaused:
		return "PAUSED", t.Paused
	case render.StateComplete:
		return "DONE", t.Complete
	case render.StateRunning:
		return "STREAMING", t.Running
	default:
		return "READY", t.Help
	}
}
