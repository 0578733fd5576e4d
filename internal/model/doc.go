// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for rendered conversations.
//
// A Conversation groups the Messages produced by render runs. Messages are
// persisted while they stream: they start in StatusStreaming, grow as the
// renderer reveals tokens, and end in StatusComplete or StatusInterrupted.
//
// # Key Types
//
//   - Conversation: container for messages with title and timestamps
//   - Message: single message with role, content, status and render statistics
//   - Role: message role enumeration (user, assistant, system)
//   - MessageStatus: streaming lifecycle of a persisted message
//
// # Usage
//
//	conv := model.NewConversation("demo")
//	msg := conv.AddMessage(model.NewMessage(model.RoleAssistant, ""))
//	msg.AppendContent("Hello")
//	msg.Complete(120, 2*time.Second)
package model
