// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "time"

// Metrics is a read-only snapshot of a session's progress.
type Metrics struct {
	CurrentIndex    int
	TotalTokens     int
	TokensPerSecond float64
	Elapsed         time.Duration
	IsActive        bool
}

// Progress returns completion in percent. An empty queue is 100% complete.
func (m Metrics) Progress() float64 {
	return progressOf(m.CurrentIndex, m.TotalTokens)
}

// ElapsedMs returns the active elapsed time in milliseconds.
func (m Metrics) ElapsedMs() int64 {
	return m.Elapsed.Milliseconds()
}

func progressOf(index, total int) float64 {
	if total <= 0 || index >= total {
		return 100
	}
	return float64(index) / float64(total) * 100
}

// Observer receives session lifecycle events, for instrumentation.
type Observer interface {
	SessionStarted()
	TokensRevealed(n int)
	SessionCompleted(m Metrics)
}

// metricsInterval bounds how often the tokens/sec estimate is recomputed.
const metricsInterval = 100 * time.Millisecond
