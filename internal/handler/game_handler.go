// Package handler exposes the simulation engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/freeeve/mercury-council/api/internal/model"
	"github.com/freeeve/mercury-council/api/internal/service"
)

// Engine is the write side the handler drives.
type Engine interface {
	CreateGame(ctx context.Context, userID string) (*model.Game, json.RawMessage, error)
	Advance(ctx context.Context, gameID, event string, payload json.RawMessage) (json.RawMessage, error)
}

// Query is the read side the handler serves from.
type Query interface {
	GameState(ctx context.Context, gameID string) (*model.Game, json.RawMessage, error)
	Transcript(ctx context.Context, gameID, phase, roleID string, visible *bool) ([]model.TranscriptEntry, error)
	BuildReview(ctx context.Context, gameID string) (*service.Review, error)
}

// GameHandler serves game creation, event advancement, and the read-side
// queries.
type GameHandler struct {
	engine Engine
	query  Query
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(engine Engine, query Query) *GameHandler {
	return &GameHandler{engine: engine, query: query}
}

// Register wires the handler's routes onto mux.
func (h *GameHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /games", h.CreateGame)
	mux.HandleFunc("POST /games/{id}/advance", h.Advance)
	mux.HandleFunc("GET /games/{id}", h.GetGame)
	mux.HandleFunc("GET /games/{id}/transcript", h.GetTranscript)
	mux.HandleFunc("GET /games/{id}/review", h.GetReview)
}

// Health handles GET /health.
func (h *GameHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateGame handles POST /games.
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	game, state, err := h.engine.CreateGame(r.Context(), req.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": game.ID,
		"state":   json.RawMessage(state),
	})
}

// Advance handles POST /games/{id}/advance.
func (h *GameHandler) Advance(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	var req struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Event == "" {
		writeError(w, http.StatusBadRequest, "event is required")
		return
	}

	state, err := h.engine.Advance(r.Context(), gameID, req.Event, req.Payload)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": gameID,
		"state":   json.RawMessage(state),
	})
}

// GetGame handles GET /games/{id}. The game metadata rides alongside
// the state blob.
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	game, state, err := h.query.GameState(r.Context(), gameID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game":  game,
		"state": json.RawMessage(state),
	})
}

// GetTranscript handles GET /games/{id}/transcript?phase=&role_id=&visible_to_human=.
func (h *GameHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	phase := r.URL.Query().Get("phase")
	roleID := r.URL.Query().Get("role_id")

	var visible *bool
	if v := r.URL.Query().Get("visible_to_human"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "visible_to_human must be true or false")
			return
		}
		visible = &b
	}

	entries, err := h.query.Transcript(r.Context(), gameID, phase, roleID, visible)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if entries == nil {
		entries = []model.TranscriptEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id":    gameID,
		"transcript": entries,
	})
}

// GetReview handles GET /games/{id}/review.
func (h *GameHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	review, err := h.query.BuildReview(r.Context(), gameID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id":    gameID,
		"transcript": review.Transcript,
		"votes":      review.Votes,
	})
}

// writeEngineError maps engine error kinds onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch service.KindOf(err) {
	case service.KindValidation, service.KindPrecondition:
		status = http.StatusBadRequest
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindExternal:
		status = http.StatusBadGateway
	}
	writeError(w, status, service.Detail(err))
}
