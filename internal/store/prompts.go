package store

import (
	"context"
	"database/sql"
	"errors"
)

// ActivePrompt returns the newest active version of a named template, or
// nil when none is active.
func (s *Store) ActivePrompt(ctx context.Context, name string) (*Prompt, error) {
	var p Prompt
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, version, content, is_active, created_at FROM prompts
		WHERE name = ? AND is_active = 1 ORDER BY version DESC LIMIT 1`,
		name,
	).Scan(&p.ID, &p.Name, &p.Version, &p.Content, &p.Active, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("select", "prompts", err)
	}
	p.CreatedAt = parseTime(created)
	return &p, nil
}

// SavePrompt stores content as the next version of name and makes it the
// only active version.
func (s *Store) SavePrompt(ctx context.Context, name, content string) (*Prompt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap("insert", "prompts", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE prompts SET is_active = 0 WHERE name = ?`, name,
	); err != nil {
		return nil, wrap("update", "prompts", err)
	}

	var version int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM prompts WHERE name = ?`, name,
	).Scan(&version); err != nil {
		return nil, wrap("select", "prompts", err)
	}

	now := s.now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO prompts (name, version, content, is_active, created_at) VALUES (?, ?, ?, 1, ?)`,
		name, version, content, formatTime(now),
	)
	if err != nil {
		return nil, wrap("insert", "prompts", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrap("insert", "prompts", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrap("insert", "prompts", err)
	}

	return &Prompt{
		ID:        id,
		Name:      name,
		Version:   version,
		Content:   content,
		Active:    true,
		CreatedAt: now.UTC().Truncate(0),
	}, nil
}
