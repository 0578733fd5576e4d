// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-stream/internal/logging"
	"github.com/jeranaias/rigrun-stream/internal/model"
	"github.com/jeranaias/rigrun-stream/internal/render"
	"github.com/jeranaias/rigrun-stream/internal/storage"
)

// memStore is a MessageStore without render statistics.
type memStore struct {
	mu        sync.Mutex
	messages  map[string]*model.Message
	order     []string
	appends   int
	appendErr error
}

func newMemStore() *memStore {
	return &memStore{messages: make(map[string]*model.Message)}
}

func (m *memStore) CreateMessage(_ context.Context, conversationID string, role model.Role, content string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := model.NewMessage(role, content)
	msg.ConversationID = conversationID
	msg.Status = model.StatusStreaming
	m.messages[msg.ID] = msg
	m.order = append(m.order, msg.ID)
	copied := *msg
	return &copied, nil
}

func (m *memStore) AppendMessageContent(_ context.Context, id, delta string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	msg, ok := m.messages[id]
	if !ok {
		return fmt.Errorf("message %s: %w", id, storage.ErrNotFound)
	}
	if msg.Status != model.StatusStreaming {
		return storage.ErrNotStreaming
	}
	msg.Content += delta
	m.appends++
	return nil
}

func (m *memStore) UpdateMessageStatus(_ context.Context, id string, status model.MessageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return storage.ErrNotFound
	}
	msg.Status = status
	return nil
}

func (m *memStore) get(id string) model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.messages[id]
}

func waitDone(t *testing.T, r *Recorder) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not finish")
	}
}

func TestRecorder_PersistsCompletedMessage(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, frames := newTestController(t)

	r, err := NewRecorder(ctx, store, "conv-1", c,
		WithFlushInterval(0), WithRecorderLogger(logging.Discard()))
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, model.StatusStreaming, store.get(r.MessageID()).Status)

	require.NoError(t, c.Play("hello streaming world"))
	frames.Run(frame, 1000)
	waitDone(t, r)

	msg := store.get(r.MessageID())
	require.Equal(t, "hello streaming world", msg.Content)
	require.Equal(t, model.StatusComplete, msg.Status)
	require.Equal(t, model.RoleAssistant, msg.Role)
	require.Equal(t, "conv-1", msg.ConversationID)
	require.NoError(t, r.Err())
}

func TestRecorder_CloseMarksInterrupted(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, frames := newTestController(t, WithSpeed(render.PresetSpeed(render.SpeedSlow)))

	r, err := NewRecorder(ctx, store, "conv-1", c, WithRecorderLogger(logging.Discard()))
	require.NoError(t, err)

	require.NoError(t, c.SetContent("a partially rendered answer"))
	frames.Advance(frame)
	frames.Advance(200 * time.Millisecond)
	shown := c.Snapshot().DisplayedContent
	require.NotEmpty(t, shown)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	msg := store.get(r.MessageID())
	require.Equal(t, model.StatusInterrupted, msg.Status)
	require.Equal(t, shown, msg.Content)
}

func TestRecorder_SkipWaitsForClosedInput(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, _ := newTestController(t)

	r, err := NewRecorder(ctx, store, "conv-1", c,
		WithFlushInterval(0), WithRecorderLogger(logging.Discard()))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, c.SetContent("partial"))
	c.Skip()
	require.NoError(t, c.SetContent("partial, then more"))

	require.Eventually(t, func() bool {
		return store.get(r.MessageID()).Content == "partial, then more"
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, model.StatusStreaming, store.get(r.MessageID()).Status)

	require.NoError(t, c.Finish())
	waitDone(t, r)
	require.Equal(t, model.StatusComplete, store.get(r.MessageID()).Status)
}

func TestRecorder_ReplacedContentStartsNewMessage(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, frames := newTestController(t)

	r, err := NewRecorder(ctx, store, "conv-1", c,
		WithFlushInterval(0), WithRecorderLogger(logging.Discard()))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, c.SetContent("first draft"))
	frames.Run(frame, 1000)
	first := r.MessageID()
	require.Eventually(t, func() bool {
		return store.get(first).Content == "first draft"
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Play("rewritten"))
	frames.Run(frame, 1000)
	waitDone(t, r)

	ids := r.MessageIDs()
	require.Len(t, ids, 2)
	require.Equal(t, first, ids[0])
	require.Equal(t, model.StatusInterrupted, store.get(ids[0]).Status)
	require.Equal(t, "rewritten", store.get(ids[1]).Content)
	require.Equal(t, model.StatusComplete, store.get(ids[1]).Status)
}

func TestRecorder_ThrottlesWrites(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, frames := newTestController(t)

	r, err := NewRecorder(ctx, store, "conv-1", c,
		WithFlushInterval(time.Hour), WithRecorderLogger(logging.Discard()))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, c.Play("many small batches of words to write back"))
	frames.Run(frame, 1000)
	waitDone(t, r)

	store.mu.Lock()
	appends := store.appends
	store.mu.Unlock()
	require.LessOrEqual(t, appends, 2)
	require.Equal(t, "many small batches of words to write back", store.get(r.MessageID()).Content)
}

func TestRecorder_StoreErrorStopsRecording(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.appendErr = errors.New("disk full")
	c, frames := newTestController(t)

	r, err := NewRecorder(ctx, store, "conv-1", c,
		WithFlushInterval(0), WithRecorderLogger(logging.Discard()))
	require.NoError(t, err)

	require.NoError(t, c.Play("abc"))
	frames.Run(frame, 1000)
	waitDone(t, r)

	require.ErrorContains(t, r.Err(), "disk full")
	require.ErrorContains(t, r.Close(), "disk full")
}

func TestRecorder_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	conv, err := store.CreateConversation(ctx, "recorded")
	require.NoError(t, err)

	c, frames := newTestController(t)
	r, err := NewRecorder(ctx, store, conv.ID, c,
		WithFlushInterval(0), WithRecorderLogger(logging.Discard()))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, c.Play("# Title\n\nsome body text"))
	frames.Run(frame, 1000)
	waitDone(t, r)
	require.NoError(t, r.Err())

	msgs, err := store.GetMessagesByConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "# Title\n\nsome body text", msgs[0].Content)
	require.Equal(t, model.StatusComplete, msgs[0].Status)
	require.Positive(t, msgs[0].TokenCount)
	require.Positive(t, msgs[0].Elapsed)
}
