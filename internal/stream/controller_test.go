// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-stream/internal/logging"
	"github.com/jeranaias/rigrun-stream/internal/render"
)

const frame = 16 * time.Millisecond

func newTestController(t *testing.T, opts ...Option) (*Controller, *render.ManualFrames) {
	t.Helper()
	frames := render.NewManualFrames()
	base := []Option{
		WithFrames(frames),
		WithSpeed(render.PresetSpeed(render.SpeedNormal)),
		WithLogger(logging.Discard()),
	}
	c, err := NewController(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, frames
}

type snapshotLog struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (l *snapshotLog) record(s Snapshot) {
	l.mu.Lock()
	l.snaps = append(l.snaps, s)
	l.mu.Unlock()
}

func (l *snapshotLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.snaps)
}

func (l *snapshotLog) last() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snaps[len(l.snaps)-1]
}

func TestController_PlayRevealsEverything(t *testing.T) {
	c, frames := newTestController(t)

	require.NoError(t, c.Play("hello world"))
	require.False(t, c.Snapshot().IsComplete)

	frames.Run(frame, 1000)

	snap := c.Snapshot()
	require.Equal(t, "hello world", snap.DisplayedContent)
	require.True(t, snap.IsComplete)
	require.True(t, snap.InputClosed)
	require.Equal(t, 100.0, snap.ProgressPercent)
	require.False(t, snap.IsPaused)
}

func TestController_SetContentExtendsRunningSession(t *testing.T) {
	c, frames := newTestController(t)

	require.NoError(t, c.SetContent("hello"))
	frames.Run(frame, 1000)
	snap := c.Snapshot()
	require.Equal(t, "hello", snap.DisplayedContent)
	require.False(t, snap.IsComplete, "growing content waits for more")

	require.NoError(t, c.SetContent("hello world"))
	frames.Run(frame, 1000)
	require.Equal(t, "hello world", c.Snapshot().DisplayedContent)
	require.False(t, c.Snapshot().IsComplete)

	require.NoError(t, c.Finish())
	snap = c.Snapshot()
	require.True(t, snap.IsComplete)
	require.Equal(t, "hello world", snap.DisplayedContent)
}

func TestController_SetContentSameContentIsNoop(t *testing.T) {
	c, frames := newTestController(t)

	require.NoError(t, c.SetContent("abc"))
	frames.Run(frame, 1000)
	require.NoError(t, c.SetContent("abc"))
	require.Zero(t, frames.Pending())
	require.Equal(t, "abc", c.Snapshot().DisplayedContent)
}

func TestController_SetContentReplaces(t *testing.T) {
	c, frames := newTestController(t)

	require.NoError(t, c.SetContent("first answer"))
	frames.Run(frame, 1000)
	require.Equal(t, "first answer", c.Snapshot().DisplayedContent)

	require.NoError(t, c.SetContent("second"))
	require.Empty(t, c.Snapshot().DisplayedContent)

	frames.Run(frame, 1000)
	require.NoError(t, c.Finish())
	require.Equal(t, "second", c.Snapshot().DisplayedContent)
	require.True(t, c.Snapshot().IsComplete)
}

type countingAudio struct {
	mu     sync.Mutex
	plays  int
	closed int
}

func (a *countingAudio) Play() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.plays++
	return nil
}

func (a *countingAudio) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed++
	return nil
}

func (a *countingAudio) counts() (plays, closed int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.plays, a.closed
}

func TestController_AudioSurvivesReplacement(t *testing.T) {
	audio := &countingAudio{}
	c, frames := newTestController(t, WithSessionOptions(render.WithAudio(audio)))

	require.NoError(t, c.SetContent("first answer"))
	frames.Run(frame, 1000)
	before, _ := audio.counts()
	require.Positive(t, before)

	require.NoError(t, c.SetContent("second"))
	frames.Run(frame, 1000)
	require.NoError(t, c.Finish())
	require.True(t, c.Snapshot().IsComplete)

	plays, closed := audio.counts()
	require.Greater(t, plays, before)
	require.Zero(t, closed)
}

func TestController_FeedHoldsSplitRunes(t *testing.T) {
	c, frames := newTestController(t)

	require.NoError(t, c.Feed("a\xf0\x9f"))
	require.NoError(t, c.Feed("\x98\x80b"))
	require.NoError(t, c.Finish())
	frames.Run(frame, 1000)

	snap := c.Snapshot()
	require.Equal(t, "a😀b", snap.DisplayedContent)
	require.True(t, snap.IsComplete)
}

func TestController_FinishFlushesIncompleteBytes(t *testing.T) {
	c, frames := newTestController(t)

	require.NoError(t, c.Feed("ok\xe4\xb8"))
	require.NoError(t, c.Finish())
	frames.Run(frame, 1000)

	require.Equal(t, "ok\xe4\xb8", c.Snapshot().DisplayedContent)
}

func TestController_ContentAfterSkipIsShownDirectly(t *testing.T) {
	c, frames := newTestController(t)

	require.NoError(t, c.SetContent("hello"))
	c.Skip()
	snap := c.Snapshot()
	require.True(t, snap.IsComplete)
	require.Equal(t, "hello", snap.DisplayedContent)

	require.NoError(t, c.SetContent("hello world"))
	require.Equal(t, "hello world", c.Snapshot().DisplayedContent)
	require.Zero(t, frames.Pending())

	require.NoError(t, c.Feed("!"))
	require.Equal(t, "hello world!", c.Snapshot().DisplayedContent)
}

func TestController_PauseResume(t *testing.T) {
	c, frames := newTestController(t, WithSpeed(render.PresetSpeed(render.SpeedSlow)))

	require.NoError(t, c.Play("the quick brown fox jumps over the lazy dog"))
	frames.Advance(frame)
	frames.Advance(100 * time.Millisecond)
	shown := c.Snapshot().DisplayedContent
	require.NotEmpty(t, shown)

	c.Pause()
	require.True(t, c.Snapshot().IsPaused)
	frames.Advance(time.Second)
	require.Equal(t, shown, c.Snapshot().DisplayedContent)

	c.Toggle()
	require.False(t, c.Snapshot().IsPaused)
	frames.Run(frame, 1000)
	require.Equal(t, "the quick brown fox jumps over the lazy dog", c.Snapshot().DisplayedContent)
	require.True(t, c.Snapshot().IsComplete)
}

func TestController_Subscribe(t *testing.T) {
	c, frames := newTestController(t)
	log := &snapshotLog{}
	unsubscribe := c.Subscribe(log.record)

	require.NoError(t, c.Play("abc def"))
	frames.Run(frame, 1000)

	require.Greater(t, log.len(), 1)
	last := log.last()
	require.True(t, last.IsComplete)
	require.Equal(t, "abc def", last.DisplayedContent)

	prev := ""
	for _, s := range log.snaps {
		require.GreaterOrEqual(t, len(s.DisplayedContent), len(prev))
		prev = s.DisplayedContent
	}

	unsubscribe()
	n := log.len()
	require.NoError(t, c.Play("more"))
	frames.Run(frame, 1000)
	require.Equal(t, n, log.len())
}

func TestController_ForwardsToSink(t *testing.T) {
	sink := render.NewBufferSink()
	c, frames := newTestController(t, WithSink(sink))

	require.NoError(t, c.SetContent("one two"))
	frames.Run(frame, 1000)
	c.Skip()
	require.NoError(t, c.SetContent("one two three"))

	require.Equal(t, "one two three", sink.String())
}

func TestController_SetSpeed(t *testing.T) {
	c, frames := newTestController(t, WithSpeed(render.PresetSpeed(render.SpeedSlow)))

	require.ErrorIs(t, c.SetSpeed(render.CustomSpeed(-time.Millisecond)), render.ErrNegativeDelay)

	require.NoError(t, c.Play("a long line of text to reveal"))
	frames.Advance(frame)
	require.NoError(t, c.SetSpeed(render.PresetSpeed(render.SpeedInstant)))
	frames.Advance(frame)

	require.True(t, c.Snapshot().IsComplete)
}

func TestController_AdaptiveSpeed(t *testing.T) {
	c, frames := newTestController(t, WithAdaptiveSpeed())

	require.NoError(t, c.Play("| a | b |\n|---|---|\n| 1 | 2 |"))
	frames.Advance(frame)

	require.True(t, c.Snapshot().IsComplete)
}

func TestController_FinishWithoutContent(t *testing.T) {
	c, _ := newTestController(t)

	require.NoError(t, c.Finish())
	snap := c.Snapshot()
	require.True(t, snap.IsComplete)
	require.Equal(t, 100.0, snap.ProgressPercent)
	require.Empty(t, snap.DisplayedContent)
}

func TestController_Close(t *testing.T) {
	c, frames := newTestController(t)

	require.NoError(t, c.SetContent("abc"))
	c.Close()
	c.Close()
	require.Zero(t, frames.Pending())

	require.ErrorIs(t, c.SetContent("abcd"), ErrClosed)
	require.ErrorIs(t, c.Feed("x"), ErrClosed)
	require.ErrorIs(t, c.Finish(), ErrClosed)
	require.ErrorIs(t, c.Play("x"), ErrClosed)

	c.Pause()
	c.Skip()
}

func TestNewController_Errors(t *testing.T) {
	_, err := NewController(WithSpeed(render.CustomSpeed(-time.Millisecond)))
	require.ErrorIs(t, err, render.ErrNegativeDelay)

	_, err = NewController(WithFrames(nil))
	require.ErrorIs(t, err, render.ErrNoFrameSource)

	_, err = NewController(WithSpeed(render.SpeedConfig{Preset: "warp"}))
	require.ErrorIs(t, err, render.ErrUnknownSpeed)
}
