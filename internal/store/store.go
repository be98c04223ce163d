// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists conversations and messages in a local SQLite
// database and exposes them as a backend for offline and development use.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/morganforge/hud-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConversationNotFound is returned for lookups of unknown ids.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrDatabaseError wraps unexpected driver failures.
	ErrDatabaseError = errors.New("database error")
)

// schema creates the tables on first open. seq gives messages a stable
// insertion order independent of timestamps, which can collide.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	type          TEXT NOT NULL DEFAULT 'chat',
	name_user_set INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	failed          INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS attachments (
	id             TEXT PRIMARY KEY,
	message_id     TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	file_name      TEXT NOT NULL,
	file_type      TEXT NOT NULL,
	extracted_text TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at DESC);
`

// =============================================================================
// STORE
// =============================================================================

// Store is the SQLite persistence layer. Safe for concurrent use; SQLite
// serializes writers internally.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path. Parent directories
// are created with owner-only permissions.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: schema: %v", ErrDatabaseError, err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// CreateConversation inserts a new conversation with a generated id.
func (s *Store) CreateConversation(ctx context.Context, name, convType string) (*model.Conversation, error) {
	conv := model.NewConversation(name, convType)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, name, type, name_user_set, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?)`,
		conv.ID, conv.Name, conv.Type, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: insert conversation: %v", ErrDatabaseError, err)
	}
	return conv, nil
}

// GetConversation loads a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	var userSet int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, name_user_set, created_at, updated_at
		 FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.Name, &conv.Type, &userSet, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	conv.NameUserSet = userSet != 0
	return &conv, nil
}

// RenameConversation applies a name. userSet marks it explicit, which blocks
// later auto-name results.
func (s *Store) RenameConversation(ctx context.Context, id, name string, userSet bool) error {
	flag := 0
	if userSet {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET name = ?, name_user_set = MAX(name_user_set, ?), updated_at = ?
		 WHERE id = ?`,
		name, flag, time.Now(), id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// DeleteConversation removes a conversation; messages and attachments go
// with it. Deleting an unknown id is a no-op.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// ListConversations returns one page of summaries, most recently updated
// first.
func (s *Store) ListConversations(ctx context.Context, limit, offset int) ([]model.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.updated_at,
		        (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		 FROM conversations c
		 ORDER BY c.updated_at DESC
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []model.Summary
	for rows.Next() {
		var sum model.Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.UpdatedAt, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// =============================================================================
// MESSAGES
// =============================================================================

// AppendMessage persists a message and its attachments and bumps the
// conversation's updated_at.
func (s *Store) AppendMessage(ctx context.Context, msg *model.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	failed := 0
	if msg.Failed {
		failed = 1
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, failed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.GetDisplayContent(), failed, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: insert message: %v", ErrDatabaseError, err)
	}

	for _, att := range msg.Attachments {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO attachments (id, message_id, file_name, file_type, extracted_text, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			att.ID, msg.ID, att.FileName, att.FileType, att.ExtractedText, att.CreatedAt)
		if err != nil {
			return fmt.Errorf("%w: insert attachment: %v", ErrDatabaseError, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now(), msg.ConversationID)
	if err != nil {
		return fmt.Errorf("%w: touch conversation: %v", ErrDatabaseError, err)
	}
	return tx.Commit()
}

// Messages returns one page of a conversation's messages in insertion order,
// attachments included.
func (s *Store) Messages(ctx context.Context, conversationID string, limit, offset int) ([]*model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, failed, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY seq ASC
		 LIMIT ? OFFSET ?`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []*model.Message
	for rows.Next() {
		var msg model.Message
		var failed int
		var role string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &failed, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		msg.Role = model.Role(role)
		msg.Failed = failed != 0
		out = append(out, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, msg := range out {
		if err := s.loadAttachments(ctx, msg); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FirstUserMessage returns the content of the oldest user message in a
// conversation, used for auto-name derivation. Empty when there is none.
func (s *Store) FirstUserMessage(ctx context.Context, conversationID string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM messages
		 WHERE conversation_id = ? AND role = ?
		 ORDER BY seq ASC LIMIT 1`, conversationID, string(model.RoleUser)).
		Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return content, nil
}

// loadAttachments fills a message's attachment list.
func (s *Store) loadAttachments(ctx context.Context, msg *model.Message) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, file_name, file_type, extracted_text, created_at
		 FROM attachments WHERE message_id = ? ORDER BY created_at ASC`, msg.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var att model.Attachment
		if err := rows.Scan(&att.ID, &att.MessageID, &att.FileName, &att.FileType, &att.ExtractedText, &att.CreatedAt); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		msg.Attachments = append(msg.Attachments, att)
	}
	return rows.Err()
}
