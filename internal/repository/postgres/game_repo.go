package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/freeeve/mercury-council/api/internal/model"
)

// CreateGame inserts a new simulation run with its initial state blob.
func (s *Store) CreateGame(ctx context.Context, userID string, seed int64, status string, state json.RawMessage) (*model.Game, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var g model.Game
	err = tx.QueryRowContext(ctx,
		`INSERT INTO games (id, user_id, status, seed) VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, status, seed, created_at, updated_at`,
		uuid.NewString(), userID, status, seed,
	).Scan(&g.ID, &g.UserID, &g.Status, &g.Seed, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO game_state (game_id, state) VALUES ($1, $2)`,
		g.ID, []byte(state),
	); err != nil {
		return nil, fmt.Errorf("create game state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create game: %w", err)
	}
	g.State = state
	return &g, nil
}

// FindGame returns a game by ID with its state blob, or nil when absent.
func (s *Store) FindGame(ctx context.Context, id string) (*model.Game, error) {
	g, err := scanGame(s.db.QueryRowContext(ctx, selectGame+` WHERE g.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	return g, nil
}

const selectGame = `SELECT g.id, g.user_id, g.human_role_id, g.status, g.seed, gs.state, g.created_at, g.updated_at
	 FROM games g JOIN game_state gs ON gs.game_id = g.id`

func scanGame(row *sql.Row) (*model.Game, error) {
	var g model.Game
	var humanRole sql.NullString
	err := row.Scan(&g.ID, &g.UserID, &humanRole, &g.Status, &g.Seed, &g.State, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if humanRole.Valid {
		g.HumanRoleID = &humanRole.String
	}
	return &g, nil
}

// GameForUpdate locks the game row for the current step and returns it
// with its state blob. The row lock serializes concurrent steps.
func (t *Tx) GameForUpdate(ctx context.Context, gameID string) (*model.Game, error) {
	g, err := scanGame(t.tx.QueryRowContext(ctx, selectGame+` WHERE g.id = $1 FOR UPDATE OF g`, gameID))
	if err != nil {
		return nil, fmt.Errorf("game for update: %w", err)
	}
	return g, nil
}

// SaveState writes the step's resulting status, role assignment, and
// state blob back to the locked game.
func (t *Tx) SaveState(ctx context.Context, gameID, status string, humanRoleID *string, state json.RawMessage) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE games SET status = $1, human_role_id = $2, updated_at = now() WHERE id = $3`,
		status, humanRoleID, gameID,
	)
	if err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	_, err = t.tx.ExecContext(ctx,
		`UPDATE game_state SET state = $1, updated_at = now() WHERE game_id = $2`,
		[]byte(state), gameID,
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
