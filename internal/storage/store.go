// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-stream/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidStatus = errors.New("invalid message status")
	ErrNotStreaming  = errors.New("message is not streaming")
	ErrDatabaseError = errors.New("database error")
)

// =============================================================================
// MESSAGE STORE
// =============================================================================

// MessageStore persists conversations and their messages.
type MessageStore struct {
	db   *sql.DB
	path string
}

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Open opens (creating if needed) the store at path. A leading "~" is
// expanded to the user's home directory; ":memory:" opens a private
// in-memory database.
func Open(ctx context.Context, path string) (*MessageStore, error) {
	if path != ":memory:" {
		expanded, err := expandHome(path)
		if err != nil {
			return nil, err
		}
		path = expanded
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// A single connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &MessageStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *MessageStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *MessageStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// CreateConversation inserts a new conversation.
func (s *MessageStore) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	conv := model.NewConversation(title)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("%w: create conversation: %v", ErrDatabaseError, err)
	}
	return conv, nil
}

// GetConversation loads a conversation with all of its messages.
func (s *MessageStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get conversation: %v", ErrDatabaseError, err)
	}
	conv.CreatedAt = time.Unix(0, created)
	conv.UpdatedAt = time.Unix(0, updated)

	msgs, err := s.GetMessagesByConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.Messages = msgs
	return &conv, nil
}

// ListConversations returns conversation metadata, most recently updated
// first. A non-positive limit returns everything.
func (s *MessageStore) ListConversations(ctx context.Context, limit int) ([]ConversationMeta, error) {
	query := `
		SELECT c.id, c.title, c.created_at, c.updated_at, COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC, c.id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	metas := make([]ConversationMeta, 0)
	for rows.Next() {
		var meta ConversationMeta
		var created, updated int64
		if err := rows.Scan(&meta.ID, &meta.Title, &created, &updated, &meta.MessageCount); err != nil {
			return nil, fmt.Errorf("%w: scan conversation: %v", ErrDatabaseError, err)
		}
		meta.CreatedAt = time.Unix(0, created)
		meta.UpdatedAt = time.Unix(0, updated)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// =============================================================================
// MESSAGES
// =============================================================================

// CreateMessage inserts a message into a conversation. Assistant messages
// start in the streaming state.
func (s *MessageStore) CreateMessage(ctx context.Context, conversationID string, role model.Role, content string) (*model.Message, error) {
	msg := model.NewMessage(role, content)
	msg.ConversationID = conversationID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		msg.Timestamp.UnixNano(), conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: touch conversation: %v", ErrDatabaseError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, seq, role, content, status, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?), ?, ?, ?, ?)`,
		msg.ID, conversationID, conversationID, string(msg.Role), msg.Content, string(msg.Status), msg.Timestamp.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("%w: create message: %v", ErrDatabaseError, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrDatabaseError, err)
	}
	return msg, nil
}

// GetMessagesByConversation returns a conversation's messages in insertion order.
func (s *MessageStore) GetMessagesByConversation(ctx context.Context, conversationID string) ([]*model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, status, token_count, elapsed_ns, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: get messages: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	msgs := make([]*model.Message, 0)
	for rows.Next() {
		var msg model.Message
		var role, status string
		var elapsed, created int64
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &status,
			&msg.TokenCount, &elapsed, &created); err != nil {
			return nil, fmt.Errorf("%w: scan message: %v", ErrDatabaseError, err)
		}
		msg.Role = model.Role(role)
		msg.Status = model.MessageStatus(status)
		msg.Timestamp = time.Unix(0, created)
		msg.Elapsed = time.Duration(elapsed)
		if msg.Elapsed > 0 {
			msg.TokensPerSec = float64(msg.TokenCount) / msg.Elapsed.Seconds()
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// AppendMessageContent appends delta to a streaming message.
func (s *MessageStore) AppendMessageContent(ctx context.Context, id, delta string) error {
	if delta == "" {
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = content || ? WHERE id = ? AND status = ?`,
		delta, id, string(model.StatusStreaming))
	if err != nil {
		return fmt.Errorf("%w: append content: %v", ErrDatabaseError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.missingOrFinished(ctx, id)
	}
	return nil
}

// UpdateMessageStatus moves a message to status.
func (s *MessageStore) UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus) error {
	return s.FinishMessage(ctx, id, status, 0, 0)
}

// FinishMessage sets the status and render statistics of a message.
// Zero statistics leave the stored values untouched.
func (s *MessageStore) FinishMessage(ctx context.Context, id string, status model.MessageStatus, tokens int, elapsed time.Duration) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(status))
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET
			status = ?,
			token_count = CASE WHEN ? > 0 THEN ? ELSE token_count END,
			elapsed_ns = CASE WHEN ? > 0 THEN ? ELSE elapsed_ns END
		WHERE id = ?`,
		string(status), tokens, tokens, int64(elapsed), int64(elapsed), id)
	if err != nil {
		return fmt.Errorf("%w: update status: %v", ErrDatabaseError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *MessageStore) missingOrFinished(ctx context.Context, id string) error {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM messages WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return fmt.Errorf("message %s is %s: %w", id, status, ErrNotStreaming)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
