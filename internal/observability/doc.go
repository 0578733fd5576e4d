// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package observability exposes render sessions as Prometheus metrics.
//
// Each session gets its own SessionObserver, attached with
// render.WithObserver:
//
//	m := observability.NewMetrics(prometheus.NewRegistry(), "rigrun_stream")
//	session, err := render.NewSession(tokens, sink, render.WithObserver(m.SessionObserver()))
//	http.Handle("/metrics", m.Handler())
package observability
