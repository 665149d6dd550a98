package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/mercury-council/api/internal/model"
	"github.com/freeeve/mercury-council/api/internal/repository"
)

// Query is the read side: state, transcript, and review lookups. State
// reads go through the Redis cache and fall back to the database.
type Query struct {
	store repository.Store
	cache repository.StateCache
}

// NewQuery creates a Query service.
func NewQuery(store repository.Store, cache repository.StateCache) *Query {
	return &Query{store: store, cache: cache}
}

// GameState returns the game row and its authoritative state payload.
// The state blob is served from the cache when hot.
func (q *Query) GameState(ctx context.Context, gameID string) (*model.Game, json.RawMessage, error) {
	game, err := q.store.FindGame(ctx, gameID)
	if err != nil {
		return nil, nil, errInternal(err, "find game")
	}
	if game == nil {
		return nil, nil, errNotFound("game %s not found", gameID)
	}
	if q.cache != nil {
		payload, err := q.cache.GetState(ctx, gameID)
		if err != nil {
			log.Debug().Err(err).Str("game_id", gameID).Msg("state cache read failed")
		} else if payload != nil {
			return game, payload, nil
		}
		if err := q.cache.SetState(ctx, gameID, game.State, defaultCacheTTL); err != nil {
			log.Debug().Err(err).Str("game_id", gameID).Msg("state cache write failed")
		}
	}
	return game, game.State, nil
}

// Transcript returns the filtered transcript of a game in total order.
// A nil visible returns both visible and hidden rows.
func (q *Query) Transcript(ctx context.Context, gameID, phase, roleID string, visible *bool) ([]model.TranscriptEntry, error) {
	game, err := q.store.FindGame(ctx, gameID)
	if err != nil {
		return nil, errInternal(err, "find game")
	}
	if game == nil {
		return nil, errNotFound("game %s not found", gameID)
	}
	entries, err := q.store.ListTranscript(ctx, gameID, repository.TranscriptFilter{Phase: phase, RoleID: roleID, Visible: visible})
	if err != nil {
		return nil, errInternal(err, "list transcript")
	}
	return entries, nil
}

// Review is the end-of-game package: the human-visible transcript plus
// every roll-call outcome.
type Review struct {
	Transcript []model.TranscriptEntry `json:"transcript"`
	Votes      []model.Vote            `json:"votes"`
}

// BuildReview assembles the review package for a game.
func (q *Query) BuildReview(ctx context.Context, gameID string) (*Review, error) {
	game, err := q.store.FindGame(ctx, gameID)
	if err != nil {
		return nil, errInternal(err, "find game")
	}
	if game == nil {
		return nil, errNotFound("game %s not found", gameID)
	}
	entries, err := q.store.ListTranscript(ctx, gameID, repository.TranscriptFilter{Visible: boolPtr(true)})
	if err != nil {
		return nil, errInternal(err, "list transcript")
	}
	votes, err := q.store.ListVotes(ctx, gameID)
	if err != nil {
		return nil, errInternal(err, "list votes")
	}
	if entries == nil {
		entries = []model.TranscriptEntry{}
	}
	if votes == nil {
		votes = []model.Vote{}
	}
	return &Review{Transcript: entries, Votes: votes}, nil
}
