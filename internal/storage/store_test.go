// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-stream/internal/model"
)

func openTestStore(t *testing.T) *MessageStore {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_ConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	conv, err := store.CreateConversation(ctx, "demo")
	require.NoError(t, err)

	_, err = store.CreateMessage(ctx, conv.ID, model.RoleUser, "render this")
	require.NoError(t, err)
	msg, err := store.CreateMessage(ctx, conv.ID, model.RoleAssistant, "")
	require.NoError(t, err)
	require.Equal(t, model.StatusStreaming, msg.Status)

	require.NoError(t, store.AppendMessageContent(ctx, msg.ID, "Hello"))
	require.NoError(t, store.AppendMessageContent(ctx, msg.ID, ", 世界"))
	require.NoError(t, store.FinishMessage(ctx, msg.ID, model.StatusComplete, 40, 2*time.Second))

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, "demo", got.Title)
	require.Len(t, got.Messages, 2)
	require.Equal(t, model.RoleUser, got.Messages[0].Role)

	reply := got.Messages[1]
	require.Equal(t, "Hello, 世界", reply.Content)
	require.Equal(t, model.StatusComplete, reply.Status)
	require.Equal(t, 40, reply.TokenCount)
	require.Equal(t, 20.0, reply.TokensPerSec)
}

func TestStore_AppendRequiresStreaming(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	conv, err := store.CreateConversation(ctx, "c")
	require.NoError(t, err)
	msg, err := store.CreateMessage(ctx, conv.ID, model.RoleAssistant, "")
	require.NoError(t, err)
	require.NoError(t, store.UpdateMessageStatus(ctx, msg.ID, model.StatusInterrupted))

	require.ErrorIs(t, store.AppendMessageContent(ctx, msg.ID, "late"), ErrNotStreaming)
	require.ErrorIs(t, store.AppendMessageContent(ctx, "missing", "x"), ErrNotFound)
	require.NoError(t, store.AppendMessageContent(ctx, msg.ID, ""))
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.GetConversation(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.CreateMessage(ctx, "missing", model.RoleUser, "x")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, store.UpdateMessageStatus(ctx, "missing", model.StatusComplete), ErrNotFound)
	require.ErrorIs(t, store.UpdateMessageStatus(ctx, "missing", "bogus"), ErrInvalidStatus)
}

func TestStore_ListConversations(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	first, err := store.CreateConversation(ctx, "first")
	require.NoError(t, err)
	second, err := store.CreateConversation(ctx, "second")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = store.CreateMessage(ctx, first.ID, model.RoleUser, "bump")
	require.NoError(t, err)

	metas, err := store.ListConversations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	require.Equal(t, first.ID, metas[0].ID)
	require.Equal(t, 1, metas[0].MessageCount)
	require.Equal(t, second.ID, metas[1].ID)
	require.Zero(t, metas[1].MessageCount)

	metas, err = store.ListConversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, metas, 1)
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	conv, err := store.CreateConversation(ctx, "persisted")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, "persisted", got.Title)
	require.Empty(t, got.Messages)
}
