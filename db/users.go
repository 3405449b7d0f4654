package db

import (
	"context"
	"database/sql"
	"fmt"

	"cronwatch/models"
)

// SystemUserEmail identifies the implicit account used while auth is
// disabled. Seeded by schema.sql.
const SystemUserEmail = "system@cronwatch.internal"

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error) {
	var u models.User
	u.Email = email
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash) VALUES ($1, $2)
		RETURNING id, created_at
	`, email, passwordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("get user %s: %w", email, err)
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// Overview holds the aggregate numbers for the stats endpoint.
type Overview struct {
	TotalJobs            int `json:"total_jobs"`
	PausedJobs           int `json:"paused_jobs"`
	TotalRuns            int `json:"total_runs"`
	OpenRuns             int `json:"open_runs"`
	TotalAlerts          int `json:"total_alerts"`
	UnacknowledgedAlerts int `json:"unacknowledged_alerts"`
}

func (s *Store) StatsOverview(ctx context.Context) (*Overview, error) {
	var o Overview
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM jobs),
			(SELECT COUNT(*) FROM jobs WHERE paused),
			(SELECT COUNT(*) FROM job_runs),
			(SELECT COUNT(*) FROM job_runs WHERE end_time IS NULL),
			(SELECT COUNT(*) FROM job_alerts),
			(SELECT COUNT(*) FROM job_alerts WHERE NOT acknowledged)
	`).Scan(&o.TotalJobs, &o.PausedJobs, &o.TotalRuns, &o.OpenRuns, &o.TotalAlerts, &o.UnacknowledgedAlerts)
	if err != nil {
		return nil, fmt.Errorf("stats overview: %w", err)
	}
	return &o, nil
}
