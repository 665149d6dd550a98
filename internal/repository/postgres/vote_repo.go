package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/freeeve/mercury-council/api/internal/model"
)

// InsertVote records a completed roll call and fills the generated ID
// and timestamp back into v.
func (t *Tx) InsertVote(ctx context.Context, v *model.Vote) error {
	v.ID = uuid.NewString()
	votes, err := json.Marshal(v.VotesByCountry)
	if err != nil {
		return fmt.Errorf("marshal votes: %w", err)
	}
	err = t.tx.QueryRowContext(ctx,
		`INSERT INTO votes (id, game_id, issue_id, proposed_option_id, votes_by_country, passed)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		v.ID, v.GameID, v.IssueID, v.ProposalOptionID, votes, v.Passed,
	).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// ListVotes returns all recorded roll calls of a game, oldest first.
func (s *Store) ListVotes(ctx context.Context, gameID string) ([]model.Vote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game_id, issue_id, proposed_option_id, votes_by_country, passed, created_at
		 FROM votes WHERE game_id = $1 ORDER BY created_at, id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var votes []model.Vote
	for rows.Next() {
		var v model.Vote
		var byCountry []byte
		if err := rows.Scan(&v.ID, &v.GameID, &v.IssueID, &v.ProposalOptionID, &byCountry, &v.Passed, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		if err := json.Unmarshal(byCountry, &v.VotesByCountry); err != nil {
			return nil, fmt.Errorf("unmarshal votes: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}
