// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-stream/internal/logging"
	"github.com/jeranaias/rigrun-stream/internal/render"
	"github.com/jeranaias/rigrun-stream/internal/stream"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestTeaFrames_FiresPendingInOrder(t *testing.T) {
	frames := NewTeaFrames(0)
	require.Equal(t, render.DefaultFrameInterval, frames.Interval())

	var order []int
	frames.RequestFrame(func(time.Time) { order = append(order, 1) })
	cancel := frames.RequestFrame(func(time.Time) { order = append(order, 2) })
	frames.RequestFrame(func(time.Time) {
		order = append(order, 3)
		frames.RequestFrame(func(time.Time) { order = append(order, 4) })
	})
	cancel()

	require.Equal(t, 2, frames.Fire(time.Now()))
	require.Equal(t, []int{1, 3}, order)
	require.Equal(t, 1, frames.Pending())

	frames.Fire(time.Now())
	require.Equal(t, []int{1, 3, 4}, order)
}

func TestTeaFrames_TickDeliversFrameMsg(t *testing.T) {
	frames := NewTeaFrames(time.Millisecond)
	msg := frames.Tick()()
	_, ok := msg.(FrameMsg)
	require.True(t, ok)
}

// harness drives a StreamView without a Bubble Tea program.
type harness struct {
	t    *testing.T
	view StreamView
	now  time.Time
	cmd  tea.Cmd
}

func newViewHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	v, err := NewStreamView(cfg)
	require.NoError(t, err)
	t.Cleanup(v.Controller().Close)
	h := &harness{t: t, view: v, now: time.Now()}
	h.send(tea.WindowSizeMsg{Width: 80, Height: 24})
	return h
}

func (h *harness) send(msg tea.Msg) {
	m, cmd := h.view.Update(msg)
	h.view = m.(StreamView)
	h.cmd = cmd
}

func (h *harness) key(s string) {
	switch s {
	case " ":
		h.send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	case "enter":
		h.send(tea.KeyMsg{Type: tea.KeyEnter})
	default:
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	}
}

// run delivers frames until the view stops ticking or max frames pass.
func (h *harness) run(max int) {
	for i := 0; i < max && h.view.ticking; i++ {
		h.now = h.now.Add(16 * time.Millisecond)
		h.send(FrameMsg{Time: h.now})
	}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestStreamView_RevealsContent(t *testing.T) {
	h := newViewHarness(t, Config{
		Speed:       render.PresetSpeed(render.SpeedFast),
		ShowMetrics: true,
	})

	h.send(ContentMsg{Content: "hello streaming world"})
	require.True(t, h.view.ticking)
	h.send(EndMsg{})
	h.run(1000)

	snap := h.view.Controller().Snapshot()
	require.True(t, snap.IsComplete)
	require.Equal(t, "hello streaming world", snap.DisplayedContent)

	out := h.view.View()
	require.Contains(t, out, "hello streaming world")
	require.Contains(t, out, "DONE")
	require.False(t, h.view.ticking, "ticking stops once complete")
}

func TestStreamView_ChunksFromSource(t *testing.T) {
	source := make(chan string, 3)
	source <- "one "
	source <- "two"
	close(source)

	h := newViewHarness(t, Config{Speed: render.PresetSpeed(render.SpeedInstant), Source: source})

	h.send(WaitForChunk(source)())
	h.send(WaitForChunk(source)())
	h.send(WaitForChunk(source)())
	require.True(t, h.view.ended)
	h.run(100)

	require.Equal(t, "one two", h.view.Controller().Snapshot().DisplayedContent)
	require.True(t, h.view.Controller().Snapshot().IsComplete)
}

func TestStreamView_PauseAndSkipKeys(t *testing.T) {
	h := newViewHarness(t, Config{Speed: render.PresetSpeed(render.SpeedSlow), ShowMetrics: true})

	h.send(ContentMsg{Content: "a fairly long line of content to reveal slowly"})
	h.run(3)

	h.key(" ")
	require.True(t, h.view.Controller().Snapshot().IsPaused)
	require.Contains(t, h.view.View(), "PAUSED")

	h.key("p")
	require.False(t, h.view.Controller().Snapshot().IsPaused)

	h.key("s")
	snap := h.view.Controller().Snapshot()
	require.True(t, snap.IsComplete)
	require.Equal(t, "a fairly long line of content to reveal slowly", snap.DisplayedContent)
}

func TestStreamView_SpeedKeys(t *testing.T) {
	h := newViewHarness(t, Config{Speed: render.PresetSpeed(render.SpeedNormal)})

	h.key("+")
	require.Equal(t, "fast", h.view.speedLabel())
	h.key("+")
	h.key("+")
	require.Equal(t, "instant", h.view.speedLabel())
	h.key("-")
	require.Equal(t, "fast", h.view.speedLabel())

	h.send(SpeedMsg{Speed: render.CustomSpeed(5 * time.Millisecond)})
	require.Equal(t, "custom(5ms)", h.view.speedLabel())
	h.key("-")
	require.Equal(t, "slow", h.view.speedLabel())
}

func TestStreamView_AdaptiveLabel(t *testing.T) {
	h := newViewHarness(t, Config{Adaptive: true})
	require.Equal(t, "adaptive", h.view.speedLabel())
}

func TestStreamView_QuitKey(t *testing.T) {
	h := newViewHarness(t, Config{})
	h.send(ContentMsg{Content: "abc"})
	h.key("q")
	require.True(t, isQuit(h.cmd))
	require.ErrorIs(t, h.view.Controller().SetContent("abcd"), stream.ErrClosed)
}

func TestStreamView_ExitOnComplete(t *testing.T) {
	h := newViewHarness(t, Config{Speed: render.PresetSpeed(render.SpeedInstant), ExitOnComplete: true})

	h.send(ContentMsg{Content: "done quickly"})
	h.send(EndMsg{})
	h.now = h.now.Add(16 * time.Millisecond)
	h.send(FrameMsg{Time: h.now})

	require.True(t, isQuit(h.cmd))
	require.Contains(t, h.view.View(), "done quickly")
}

func TestStreamView_ErrMsg(t *testing.T) {
	h := newViewHarness(t, Config{})
	h.send(ErrMsg{Err: errors.New("upstream reset")})

	require.Error(t, h.view.Err())
	require.Contains(t, h.view.View(), "upstream reset")
	require.True(t, h.view.Controller().Snapshot().IsComplete)
}

func TestStreamView_BadSpeed(t *testing.T) {
	_, err := NewStreamView(Config{Speed: render.CustomSpeed(-time.Second)})
	require.ErrorIs(t, err, render.ErrNegativeDelay)
}

func TestKeyMap_Help(t *testing.T) {
	keys := DefaultKeyMap()
	require.Len(t, keys.ShortHelp(), 6)
	require.Len(t, keys.FullHelp(), 3)
}
