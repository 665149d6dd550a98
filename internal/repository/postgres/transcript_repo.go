package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/freeeve/mercury-council/api/internal/model"
	"github.com/freeeve/mercury-council/api/internal/repository"
)

// InsertTranscript appends one transcript row and fills the generated ID
// and timestamp back into e.
func (t *Tx) InsertTranscript(ctx context.Context, e *model.TranscriptEntry) error {
	e.ID = uuid.NewString()
	metadata := e.Metadata
	if len(metadata) == 0 {
		metadata = []byte(`{}`)
	}
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO transcript_entries (id, game_id, role_id, phase, round, issue_id, visible_to_human, content, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		e.ID, e.GameID, e.RoleID, e.Phase, e.Round, e.IssueID, e.VisibleToHuman, e.Content, []byte(metadata),
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

// transcriptQuery renders the filtered, totally ordered transcript read.
// Rows with the same timestamp are ordered by the metadata index (absent
// means 0), then by ID.
func transcriptQuery(gameID string, f repository.TranscriptFilter, limit int) (string, []any) {
	query := `SELECT id, game_id, role_id, phase, round, issue_id, visible_to_human, content, metadata, created_at
	 FROM transcript_entries WHERE game_id = $1`
	args := []any{gameID}
	if f.Phase != "" {
		args = append(args, f.Phase)
		query += fmt.Sprintf(` AND phase = $%d`, len(args))
	}
	if f.RoleID != "" {
		args = append(args, f.RoleID)
		query += fmt.Sprintf(` AND role_id = $%d`, len(args))
	}
	if f.Convo != "" {
		args = append(args, f.Convo)
		query += fmt.Sprintf(` AND metadata->>'convo' = $%d`, len(args))
	}
	if f.IssueID != "" {
		args = append(args, f.IssueID)
		query += fmt.Sprintf(` AND issue_id = $%d`, len(args))
	}
	if f.Visible != nil {
		args = append(args, *f.Visible)
		query += fmt.Sprintf(` AND visible_to_human = $%d`, len(args))
	}
	query += ` ORDER BY created_at, COALESCE((metadata->>'index')::int, 0), id`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return query, args
}

func scanTranscript(rows *sql.Rows) ([]model.TranscriptEntry, error) {
	defer rows.Close()
	var entries []model.TranscriptEntry
	for rows.Next() {
		var e model.TranscriptEntry
		var round sql.NullInt64
		var issueID sql.NullString
		if err := rows.Scan(&e.ID, &e.GameID, &e.RoleID, &e.Phase, &round, &issueID, &e.VisibleToHuman, &e.Content, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		if round.Valid {
			n := int(round.Int64)
			e.Round = &n
		}
		if issueID.Valid {
			e.IssueID = &issueID.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Transcript reads the filtered transcript inside the step transaction.
// With a limit it returns the LAST limit rows in chronological order,
// which is what the prompt tails need.
func (t *Tx) Transcript(ctx context.Context, gameID string, f repository.TranscriptFilter, limit int) ([]model.TranscriptEntry, error) {
	query, args := transcriptQuery(gameID, f, 0)
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transcript: %w", err)
	}
	entries, err := scanTranscript(rows)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// ListTranscript reads the full filtered transcript in total order.
func (s *Store) ListTranscript(ctx context.Context, gameID string, f repository.TranscriptFilter) ([]model.TranscriptEntry, error) {
	query, args := transcriptQuery(gameID, f, 0)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transcript: %w", err)
	}
	return scanTranscript(rows)
}
