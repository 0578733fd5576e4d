// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-stream/internal/render"
)

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		percent float64
		want    string
	}{
		{"empty", 10, 0, "----------"},
		{"full", 10, 100, "##########"},
		{"half", 10, 50, "#####-----"},
		{"partial cell", 4, 40, "#:--"},
		{"clamped high", 4, 250, "####"},
		{"clamped low", 4, -5, "----"},
		{"zero width", 0, 50, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderProgressBar(tt.width, tt.percent)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFormatRate(t *testing.T) {
	require.Equal(t, "-- tok/s", FormatRate(0))
	require.Equal(t, "42.5 tok/s", FormatRate(42.5))
}

func TestFormatElapsed(t *testing.T) {
	require.Equal(t, "250ms", FormatElapsed(250*time.Millisecond))
	require.Equal(t, "2.5s", FormatElapsed(2500*time.Millisecond))
	require.Equal(t, "1m05s", FormatElapsed(65*time.Second))
}

func TestNewTheme(t *testing.T) {
	dark, err := NewTheme("dark")
	require.NoError(t, err)
	require.True(t, dark.IsDark)

	light, err := NewTheme(" Light ")
	require.NoError(t, err)
	require.False(t, light.IsDark)

	_, err = NewTheme("solarized")
	require.Error(t, err)
}

func TestTheme_StatusLabels(t *testing.T) {
	theme := DefaultTheme()

	label, _ := theme.Status(render.StateRunning)
	require.Equal(t, "STREAMING", label)
	label, _ = theme.Status(render.StatePaused)
	require.Equal(t, "PAUSED", label)
	label, _ = theme.Status(render.StateComplete)
	require.Equal(t, "DONE", label)
	label, _ = theme.Status(render.StateIdle)
	require.Equal(t, "READY", label)
}

func TestTheme_SegmentStyles(t *testing.T) {
	theme := DefaultTheme()
	require.True(t, theme.Segment(render.SegmentHeading).GetBold())
	require.True(t, theme.Segment(render.SegmentReasoning).GetItalic())
	require.False(t, theme.Segment(render.SegmentText).GetBold())
}
