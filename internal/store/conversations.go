package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateConversation inserts a new conversation under a fresh uuid.
func (s *Store) CreateConversation(ctx context.Context, userID string, meta ConversationMeta) (string, error) {
	id := uuid.NewString()
	if _, err := s.insertConversation(ctx, "INSERT", id, userID, meta); err != nil {
		return "", err
	}
	return id, nil
}

// EnsureConversation creates the conversation under the supplied id unless
// it already exists. It reports whether a row was created.
func (s *Store) EnsureConversation(ctx context.Context, id, userID string, meta ConversationMeta) (bool, error) {
	return s.insertConversation(ctx, "INSERT OR IGNORE", id, userID, meta)
}

func (s *Store) insertConversation(ctx context.Context, verb, id, userID string, meta ConversationMeta) (bool, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return false, wrap("insert", "conversations", err)
	}
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		verb+` INTO conversations (id, user_id, created_at, last_message_at, metadata) VALUES (?, ?, ?, ?, ?)`,
		id, userID, now, now, string(metaJSON),
	)
	if err != nil {
		return false, wrap("insert", "conversations", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("insert", "conversations", err)
	}
	return n > 0, nil
}

// GetConversation returns ErrNotFound (wrapped) when no row matches.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	var created, last, meta string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, last_message_at, metadata FROM conversations WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.UserID, &created, &last, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("select", "conversations", ErrNotFound)
	}
	if err != nil {
		return nil, wrap("select", "conversations", err)
	}
	c.CreatedAt = parseTime(created)
	c.LastMessageAt = parseTime(last)
	if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
		return nil, wrap("decode", "conversations", fmt.Errorf("metadata of %s: %w", id, err))
	}
	return &c, nil
}

// CountConversations returns how many conversations a user owns.
func (s *Store) CountConversations(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE user_id = ?`, userID,
	).Scan(&n)
	return n, wrap("select", "conversations", err)
}

// TouchConversation sets last_message_at to now.
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = ? WHERE id = ?`,
		s.timestamp(), id,
	)
	return wrap("update", "conversations", err)
}

// AppendMessage inserts one message and returns its ordering id.
func (s *Store) AppendMessage(ctx context.Context, conversationID, role, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, role, content, s.timestamp(),
	)
	if err != nil {
		return 0, wrap("insert", "messages", err)
	}
	id, err := res.LastInsertId()
	return id, wrap("insert", "messages", err)
}

// RecentMessages returns the last limit messages of a conversation,
// oldest first. A non-positive limit returns the whole conversation.
func (s *Store) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at FROM (
			SELECT id, conversation_id, role, content, created_at
			FROM messages WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
		) sub ORDER BY id ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, wrap("select", "messages", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var created string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &created); err != nil {
			return nil, wrap("select", "messages", err)
		}
		m.CreatedAt = parseTime(created)
		messages = append(messages, m)
	}

	return messages, wrap("select", "messages", rows.Err())
}
