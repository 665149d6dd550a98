package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/freeeve/mercury-council/api/internal/model"
)

func insertTrace(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, t *model.LLMTrace) error {
	t.ID = uuid.NewString()
	err := q.QueryRowContext(ctx,
		`INSERT INTO llm_traces (id, game_id, role_id, status, provider, model, prompt_version, request_payload, response_payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		t.ID, t.GameID, t.RoleID, t.Status, t.Provider, t.Model, t.PromptVersion,
		[]byte(t.RequestPayload), nullableJSON(t.ResponsePayload),
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}
	return nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// InsertTrace audits one generation attempt within the step transaction.
func (t *Tx) InsertTrace(ctx context.Context, trace *model.LLMTrace) error {
	return insertTrace(ctx, t.tx, trace)
}

// InsertTraceStandalone audits a failed generation on the pool, outside
// any step transaction, so the trace survives the step's rollback.
func (s *Store) InsertTraceStandalone(ctx context.Context, trace *model.LLMTrace) error {
	return insertTrace(ctx, s.db, trace)
}

// ListTraces returns all generation traces of a game, oldest first.
func (s *Store) ListTraces(ctx context.Context, gameID string) ([]model.LLMTrace, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game_id, role_id, status, provider, model, prompt_version, request_payload, response_payload, created_at
		 FROM llm_traces WHERE game_id = $1 ORDER BY created_at, id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	var traces []model.LLMTrace
	for rows.Next() {
		var t model.LLMTrace
		var response []byte
		if err := rows.Scan(&t.ID, &t.GameID, &t.RoleID, &t.Status, &t.Provider, &t.Model, &t.PromptVersion, &t.RequestPayload, &response, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		if len(response) > 0 {
			t.ResponsePayload = response
		}
		traces = append(traces, t)
	}
	return traces, rows.Err()
}
