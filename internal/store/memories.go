package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
)

var errInvalidContent = errors.New("memory content is not valid JSON")

// TopMemories returns the k most relevant memories of a user ordered by
// importance, then most recently updated. Ties beyond that fall back to
// insertion order, newest first.
func (s *Store) TopMemories(ctx context.Context, userID string, k int) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, memory_type, content, importance, created_at, updated_at,
			last_accessed_at, access_count
		FROM agent_memories WHERE user_id = ?
		ORDER BY importance DESC, updated_at DESC, id DESC LIMIT ?`,
		userID, k,
	)
	if err != nil {
		return nil, wrap("select", "agent_memories", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		var m Memory
		var content, created, updated string
		var accessed sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.Type, &content, &m.Importance,
			&created, &updated, &accessed, &m.AccessCount); err != nil {
			return nil, wrap("select", "agent_memories", err)
		}
		m.Content = json.RawMessage(content)
		m.CreatedAt = parseTime(created)
		m.UpdatedAt = parseTime(updated)
		if accessed.Valid {
			m.LastAccessedAt = parseTime(accessed.String)
		}
		out = append(out, m)
	}
	return out, wrap("select", "agent_memories", rows.Err())
}

// TouchMemories records an access on each memory id.
func (s *Store) TouchMemories(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, s.timestamp())
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	_, err := s.db.ExecContext(ctx,
		`UPDATE agent_memories SET last_accessed_at = ?, access_count = access_count + 1
		WHERE id IN (`+placeholders+`)`,
		args...,
	)
	return wrap("update", "agent_memories", err)
}

// SaveMemory inserts a memory. A zero UpdatedAt is stamped with now.
func (s *Store) SaveMemory(ctx context.Context, m Memory) (int64, error) {
	content := m.Content
	if len(content) == 0 {
		content = json.RawMessage("{}")
	}
	if !json.Valid(content) {
		return 0, wrap("insert", "agent_memories", errInvalidContent)
	}
	now := s.timestamp()
	updated := now
	if !m.UpdatedAt.IsZero() {
		updated = formatTime(m.UpdatedAt)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_memories (user_id, memory_type, content, importance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.UserID, m.Type, string(content), m.Importance, now, updated,
	)
	if err != nil {
		return 0, wrap("insert", "agent_memories", err)
	}
	id, err := res.LastInsertId()
	return id, wrap("insert", "agent_memories", err)
}
