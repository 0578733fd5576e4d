// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package source provides content for the renderer: files, stdin and a
// lorem ipsum generator that emits markdown exercising every segment type.
//
// All text is normalized to NFC before analysis so that a character typed
// as a base letter plus combining mark reveals as one unit.
//
// # Usage
//
//	content, err := source.Open("-", os.Stdin)
//	doc := source.NewLorem().Document(3)
//	for chunk := range source.Stream(ctx, source.Chunk(doc, 4), 50*time.Millisecond) {
//	    controller.Feed(chunk)
//	}
package source
