package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/freeeve/mercury-council/api/internal/model"
)

// TranscriptFilter narrows transcript reads to one slice of the record.
// Zero-value fields are ignored; Visible is tri-state so callers can
// select hidden rows as well as visible ones.
type TranscriptFilter struct {
	Phase   string
	RoleID  string
	Convo   string
	IssueID string
	Visible *bool
}

// Tx is the unit-of-work surface for a single simulation step. All writes
// of one step go through the same transaction; the game row lock taken by
// GameForUpdate serializes concurrent steps on the same game.
type Tx interface {
	GameForUpdate(ctx context.Context, gameID string) (*model.Game, error)
	SaveState(ctx context.Context, gameID, status string, humanRoleID *string, state json.RawMessage) error
	InsertTranscript(ctx context.Context, e *model.TranscriptEntry) error
	InsertCheckpoint(ctx context.Context, c *model.Checkpoint) error
	InsertVote(ctx context.Context, v *model.Vote) error
	InsertTrace(ctx context.Context, t *model.LLMTrace) error
	Transcript(ctx context.Context, gameID string, f TranscriptFilter, limit int) ([]model.TranscriptEntry, error)
}

// Store defines the durable data operations.
type Store interface {
	RunInTx(ctx context.Context, fn func(Tx) error) error

	CreateUser(ctx context.Context, displayName string) (*model.User, error)
	FindUser(ctx context.Context, id string) (*model.User, error)

	CreateGame(ctx context.Context, userID string, seed int64, status string, state json.RawMessage) (*model.Game, error)
	FindGame(ctx context.Context, id string) (*model.Game, error)

	ListTranscript(ctx context.Context, gameID string, f TranscriptFilter) ([]model.TranscriptEntry, error)
	ListCheckpoints(ctx context.Context, gameID string) ([]model.Checkpoint, error)
	ListVotes(ctx context.Context, gameID string) ([]model.Vote, error)
	ListTraces(ctx context.Context, gameID string) ([]model.LLMTrace, error)

	// InsertTraceStandalone audits a failed generation outside the step
	// transaction, so the trace survives the step's rollback.
	InsertTraceStandalone(ctx context.Context, t *model.LLMTrace) error

	OpeningVariants(ctx context.Context, roleID string) ([]model.OpeningVariant, error)
	Issues(ctx context.Context) ([]model.IssueDefinition, error)
	ChairScript(ctx context.Context, key string) (string, error)
}

// StateCache defines the hot-path state cache (Redis).
type StateCache interface {
	SetState(ctx context.Context, gameID string, payload json.RawMessage, ttl time.Duration) error
	GetState(ctx context.Context, gameID string) (json.RawMessage, error)
	Invalidate(ctx context.Context, gameID string) error
}
