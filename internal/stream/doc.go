// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream adapts render sessions to application state.
//
// A Controller owns at most one render.Session at a time. It starts a
// session when content arrives, feeds appended suffixes into the running
// session, tears it down when content is replaced, and publishes a Snapshot
// to subscribers after every revealed batch and state change.
//
// A Recorder subscribes to a Controller and bridges the revealed output
// into a MessageStore, so partially rendered messages survive a crash and
// completed ones carry their render statistics.
//
// # Usage
//
//	c, err := stream.NewController(stream.WithSpeed(render.PresetSpeed(render.SpeedFast)))
//	unsubscribe := c.Subscribe(func(s stream.Snapshot) { fmt.Print(s.DisplayedContent) })
//	defer unsubscribe()
//	for chunk := range chunks {
//	    c.Feed(chunk)
//	}
//	c.Finish()
package stream
