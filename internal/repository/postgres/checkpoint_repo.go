package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/freeeve/mercury-council/api/internal/model"
)

// InsertCheckpoint appends one durable state snapshot and fills the
// generated ID and timestamp back into c.
func (t *Tx) InsertCheckpoint(ctx context.Context, c *model.Checkpoint) error {
	c.ID = uuid.NewString()
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO checkpoints (id, game_id, transcript_entry_id, status, state_snapshot)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		c.ID, c.GameID, c.TranscriptEntryID, c.Status, []byte(c.StateSnapshot),
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// ListCheckpoints returns all checkpoints of a game, oldest first.
func (s *Store) ListCheckpoints(ctx context.Context, gameID string) ([]model.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game_id, transcript_entry_id, status, state_snapshot, created_at
		 FROM checkpoints WHERE game_id = $1 ORDER BY created_at, id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []model.Checkpoint
	for rows.Next() {
		var c model.Checkpoint
		var transcriptID sql.NullString
		if err := rows.Scan(&c.ID, &c.GameID, &transcriptID, &c.Status, &c.StateSnapshot, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		if transcriptID.Valid {
			c.TranscriptEntryID = &transcriptID.String
		}
		checkpoints = append(checkpoints, c)
	}
	return checkpoints, rows.Err()
}
