package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/freeeve/mercury-council/api/internal/model"
)

// CreateUser inserts a participant account.
func (s *Store) CreateUser(ctx context.Context, displayName string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, display_name) VALUES ($1, $2)
		 RETURNING id, display_name, created_at`,
		uuid.NewString(), displayName,
	).Scan(&u.ID, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// FindUser returns a user by ID, or nil when absent.
func (s *Store) FindUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.DisplayName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}
