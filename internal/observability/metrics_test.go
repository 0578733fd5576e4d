// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-stream/internal/render"
)

func TestMetrics_SessionLifecycle(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "test")
	frames := render.NewManualFrames()

	s, err := render.NewSession(render.TokenizeString("hello"), render.NewBufferSink(),
		render.WithFrames(frames),
		render.WithSpeed(render.PresetSpeed(render.SpeedFast)),
		render.WithObserver(m.SessionObserver()))
	require.NoError(t, err)

	s.Start()
	require.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))

	frames.Run(16*time.Millisecond, 100)
	require.True(t, s.Complete())
	require.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
	require.Equal(t, 5.0, testutil.ToFloat64(m.TokensRevealed))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SessionEvents.WithLabelValues("completed")))
}

func TestMetrics_SkipBeforeStartKeepsGaugeBalanced(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "test")
	s, err := render.NewSession(render.TokenizeString("abc"), render.NewBufferSink(),
		render.WithFrames(render.NewManualFrames()),
		render.WithObserver(m.SessionObserver()))
	require.NoError(t, err)

	s.SkipToEnd()
	require.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
	require.Equal(t, 3.0, testutil.ToFloat64(m.TokensRevealed))
}

func TestMetrics_Release(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "test")
	obs := m.SessionObserver()
	obs.SessionStarted()
	obs.Release()
	obs.Release()
	require.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SessionEvents.WithLabelValues("abandoned")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "test")
	m.ObserveWSMessage("in", "render")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `test_ws_messages_total{direction="in",type="render"} 1`)
}
