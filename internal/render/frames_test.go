// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualFrames_FiresPendingInOrder(t *testing.T) {
	m := NewManualFrames()
	start := m.Now()
	var order []int
	var requeued bool

	m.RequestFrame(func(time.Time) { order = append(order, 1) })
	cancel := m.RequestFrame(func(time.Time) { order = append(order, 2) })
	m.RequestFrame(func(now time.Time) {
		order = append(order, 3)
		require.Equal(t, start.Add(time.Second), now)
		m.RequestFrame(func(time.Time) { requeued = true })
	})
	cancel()

	require.Equal(t, 2, m.Advance(time.Second))
	require.Equal(t, []int{1, 3}, order)
	require.False(t, requeued)
	require.Equal(t, 1, m.Pending())

	require.Equal(t, 1, m.Run(time.Millisecond, 10))
	require.True(t, requeued)
}

func TestTimerFrames_DefaultInterval(t *testing.T) {
	require.Equal(t, DefaultFrameInterval, NewTimerFrames(0).Interval())

	f := NewTimerFrames(time.Millisecond)
	fired := make(chan struct{})
	f.RequestFrame(func(time.Time) { close(fired) })
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("frame did not fire")
	}

	cancel := f.RequestFrame(func(time.Time) { t.Error("cancelled frame fired") })
	cancel()
	time.Sleep(10 * time.Millisecond)
}
