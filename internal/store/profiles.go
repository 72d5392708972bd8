package store

import (
	"context"
	"database/sql"
	"errors"
)

// GetProfile returns ErrNotFound (wrapped) when the user has no profile.
func (s *Store) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, full_name, business_type, created_at FROM user_profiles WHERE id = ?`,
		userID,
	).Scan(&p.ID, &p.FullName, &p.BusinessType, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("select", "user_profiles", ErrNotFound)
	}
	if err != nil {
		return nil, wrap("select", "user_profiles", err)
	}
	p.CreatedAt = parseTime(created)
	return &p, nil
}

// SaveProfile inserts or replaces a profile.
func (s *Store) SaveProfile(ctx context.Context, p Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (id, full_name, business_type, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET full_name = excluded.full_name, business_type = excluded.business_type`,
		p.ID, p.FullName, p.BusinessType, s.timestamp(),
	)
	return wrap("insert", "user_profiles", err)
}

// ListCampaigns returns up to limit campaigns of a user, newest first.
func (s *Store) ListCampaigns(ctx context.Context, userID string, limit int) ([]Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, status, budget, created_at
		FROM marketing_campaigns WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, wrap("select", "marketing_campaigns", err)
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		var c Campaign
		var created string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Status, &c.Budget, &created); err != nil {
			return nil, wrap("select", "marketing_campaigns", err)
		}
		c.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	return out, wrap("select", "marketing_campaigns", rows.Err())
}

func (s *Store) SaveCampaign(ctx context.Context, c Campaign) (int64, error) {
	if c.Status == "" {
		c.Status = "active"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO marketing_campaigns (user_id, name, status, budget, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.UserID, c.Name, c.Status, c.Budget, s.timestamp(),
	)
	if err != nil {
		return 0, wrap("insert", "marketing_campaigns", err)
	}
	id, err := res.LastInsertId()
	return id, wrap("insert", "marketing_campaigns", err)
}

// ListAnalytics returns up to limit analytics rows of a user, newest first.
func (s *Store) ListAnalytics(ctx context.Context, userID string, limit int) ([]Analytics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, metric, value, created_at
		FROM analytics_data WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, wrap("select", "analytics_data", err)
	}
	defer rows.Close()

	var out []Analytics
	for rows.Next() {
		var a Analytics
		var created string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Metric, &a.Value, &created); err != nil {
			return nil, wrap("select", "analytics_data", err)
		}
		a.CreatedAt = parseTime(created)
		out = append(out, a)
	}
	return out, wrap("select", "analytics_data", rows.Err())
}

func (s *Store) SaveAnalytics(ctx context.Context, a Analytics) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO analytics_data (user_id, metric, value, created_at) VALUES (?, ?, ?, ?)`,
		a.UserID, a.Metric, a.Value, s.timestamp(),
	)
	if err != nil {
		return 0, wrap("insert", "analytics_data", err)
	}
	id, err := res.LastInsertId()
	return id, wrap("insert", "analytics_data", err)
}
