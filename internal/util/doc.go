// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the renderer's front ends.
//
// String helpers measure display width with go-runewidth so wide (CJK,
// emoji) characters are never split or miscounted. AtomicWriteFile is used
// for configuration files and exported transcripts.
//
// # Usage
//
//	title := util.TruncateWidth(conv.Title, 40)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
