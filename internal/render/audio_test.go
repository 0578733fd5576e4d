// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBellAudio_Throttles(t *testing.T) {
	var buf bytes.Buffer
	clock := NewManualFrames()
	bell := NewBellAudio(&buf, 10, clock)

	for i := 0; i < 5; i++ {
		require.NoError(t, bell.Play())
	}
	require.Equal(t, "\a", buf.String())

	clock.Advance(100 * time.Millisecond)
	require.NoError(t, bell.Play())
	require.Equal(t, "\a\a", buf.String())
}

func TestBellAudio_Close(t *testing.T) {
	var buf bytes.Buffer
	bell := NewBellAudio(&buf, 0, NewManualFrames())
	require.NoError(t, bell.Close())
	require.NoError(t, bell.Play())
	require.Empty(t, buf.String())
}

func TestBellAudio_ReportsWriteErrors(t *testing.T) {
	bell := NewBellAudio(&failingWriter{}, 10, NewManualFrames())
	require.Error(t, bell.Play())
}
