// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists rendered conversations in SQLite.
//
// MessageStore is the persistence collaborator of the renderer: a streaming
// message is created when a render starts, grows through
// AppendMessageContent as tokens are revealed, and is marked complete (or
// interrupted) when the render ends.
//
// # Usage
//
//	store, err := storage.Open(ctx, "~/.rigrun-stream/history.db")
//	conv, err := store.CreateConversation(ctx, "demo")
//	msg, err := store.CreateMessage(ctx, conv.ID, model.RoleAssistant, "")
//	err = store.AppendMessageContent(ctx, msg.ID, "Hello")
//	err = store.UpdateMessageStatus(ctx, msg.ID, model.StatusComplete)
//
// # Storage Location
//
// The database lives at ~/.rigrun-stream/history.db unless configured.
// The pure Go modernc.org/sqlite driver is used so no cgo toolchain is needed.
package storage
