// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrun-stream/internal/render"
	"github.com/jeranaias/rigrun-stream/internal/ui/styles"
)

// =============================================================================
// STATUS LINE
// =============================================================================

// StreamStatus is the data shown in the status line.
type StreamStatus struct {
	State           render.State
	Progress        float64
	TokensPerSecond float64
	Elapsed         time.Duration
	Revealed        int
	Total           int
	Speed           string
	Waiting         bool
}

// StatusFromMetrics builds a status from session metrics.
func StatusFromMetrics(state render.State, m render.Metrics, speed string) StreamStatus {
	return StreamStatus{
		State:           state,
		Progress:        m.Progress(),
		TokensPerSecond: m.TokensPerSecond,
		Elapsed:         m.Elapsed,
		Revealed:        m.CurrentIndex,
		Total:           m.TotalTokens,
		Speed:           speed,
	}
}

// RenderStatusLine renders a single-line status:
//
//	STREAMING | 42% [####------] | 120/284 | 38.2 tok/s | 1.2s | fast
//
// bar replaces the plain progress bar when non-empty.
func RenderStatusLine(theme *styles.Theme, s StreamStatus, bar string, width int) string {
	label, labelStyle := theme.Status(s.State)
	if s.Waiting && s.State == render.StateRunning {
		label = "WAITING"
	}

	if bar == "" {
		bar = "[" + styles.RenderProgressBar(10, s.Progress) + "]"
	}

	parts := []string{
		labelStyle.Render(label),
		theme.Metrics.Render(fmt.Sprintf("%3.0f%%", s.Progress)) + " " + bar,
		theme.Help.Render(fmt.Sprintf("%d/%d", s.Revealed, s.Total)),
		theme.Metrics.Render(styles.FormatRate(s.TokensPerSecond)),
		theme.Help.Render(styles.FormatElapsed(s.Elapsed)),
	}
	if s.Speed != "" {
		parts = append(parts, theme.Help.Render(s.Speed))
	}

	sep := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")
	line := strings.Join(parts, sep)
	if width > 0 && lipgloss.Width(line) > width {
		// Drop trailing parts until the line fits.
		for len(parts) > 2 && lipgloss.Width(line) > width {
			parts = parts[:len(parts)-1]
			line = strings.Join(parts, sep)
		}
	}
	return line
}
