// Package service implements the simulation engine: the event
// dispatcher that advances a game step by step, and the read-side query
// service. Every advance runs in one database transaction holding a row
// lock on the game, so there is exactly one writer per game at a time.
package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/mercury-council/api/internal/config"
	"github.com/freeeve/mercury-council/api/internal/llm"
	"github.com/freeeve/mercury-council/api/internal/model"
	"github.com/freeeve/mercury-council/api/internal/repository"
	"github.com/freeeve/mercury-council/api/pkg/negotiation"
)

const defaultCacheTTL = 5 * time.Minute

// Engine advances games through the negotiation state machine.
type Engine struct {
	store    repository.Store
	cache    repository.StateCache
	provider llm.Provider
	cfg      *config.Config
}

// NewEngine creates an Engine.
func NewEngine(store repository.Store, cache repository.StateCache, provider llm.Provider, cfg *config.Config) *Engine {
	return &Engine{store: store, cache: cache, provider: provider, cfg: cfg}
}

// CreateGame creates a game in ROLE_SELECTION with a fresh 63-bit seed
// and its creation checkpoint. An empty userID creates an anonymous user.
func (e *Engine) CreateGame(ctx context.Context, userID string) (*model.Game, json.RawMessage, error) {
	if userID == "" {
		u, err := e.store.CreateUser(ctx, "")
		if err != nil {
			return nil, nil, errInternal(err, "create user")
		}
		userID = u.ID
	} else {
		u, err := e.store.FindUser(ctx, userID)
		if err != nil {
			return nil, nil, errInternal(err, "find user")
		}
		if u == nil {
			return nil, nil, errValidation("unknown user_id %s", userID)
		}
	}

	seed, err := newSeed()
	if err != nil {
		return nil, nil, errInternal(err, "generate seed")
	}
	st := negotiation.NewState()
	blob, err := json.Marshal(st)
	if err != nil {
		return nil, nil, errInternal(err, "marshal state")
	}

	game, err := e.store.CreateGame(ctx, userID, seed, st.Status, blob)
	if err != nil {
		return nil, nil, errInternal(err, "create game")
	}
	st.GameID = game.ID

	var payload json.RawMessage
	err = e.store.RunInTx(ctx, func(tx repository.Tx) error {
		cp := &model.Checkpoint{GameID: game.ID, Status: st.Status, StateSnapshot: blob}
		if err := tx.InsertCheckpoint(ctx, cp); err != nil {
			return err
		}
		st.Checkpoints = append(st.Checkpoints, negotiation.CheckpointRef{
			CheckpointID: cp.ID,
			CreatedAt:    cp.CreatedAt.UTC().Format(time.RFC3339Nano),
			Status:       cp.Status,
		})
		payload, err = json.Marshal(st)
		if err != nil {
			return err
		}
		return tx.SaveState(ctx, game.ID, st.Status, st.HumanRoleID, payload)
	})
	if err != nil {
		return nil, nil, errInternal(err, "persist creation checkpoint")
	}

	game.State = payload
	e.cacheState(ctx, game.ID, payload)
	return game, payload, nil
}

// Advance applies one event to a game and returns the resulting state
// payload. The whole step runs in a single transaction; on an LLM
// failure the step rolls back but the failure trace is still written.
func (e *Engine) Advance(ctx context.Context, gameID, event string, payload json.RawMessage) (json.RawMessage, error) {
	var failTrace *model.LLMTrace
	var statePayload json.RawMessage

	err := e.store.RunInTx(ctx, func(tx repository.Tx) error {
		game, err := tx.GameForUpdate(ctx, gameID)
		if err != nil {
			return errInternal(err, "load game")
		}
		if game == nil {
			return errNotFound("game %s not found", gameID)
		}

		var st negotiation.State
		if err := json.Unmarshal(game.State, &st); err != nil {
			return errInternal(err, "decode state")
		}
		st.EnsureDefaultStances()
		st.GameID = game.ID

		s := &step{engine: e, tx: tx, ctx: ctx, game: game, state: &st, payload: payload}
		if err := s.dispatch(event); err != nil {
			failTrace = s.failTrace
			return err
		}

		statePayload, err = e.persist(ctx, tx, game.ID, &st, s)
		return err
	})
	if err != nil {
		if failTrace != nil {
			if terr := e.store.InsertTraceStandalone(ctx, failTrace); terr != nil {
				log.Error().Err(terr).Str("game_id", gameID).Msg("failed to record llm failure trace")
			}
		}
		return nil, err
	}

	e.cacheState(ctx, gameID, statePayload)
	return statePayload, nil
}

// persist writes the step's checkpoint (iff the step produced transcript
// rows) and the resulting state blob.
func (e *Engine) persist(ctx context.Context, tx repository.Tx, gameID string, st *negotiation.State, s *step) (json.RawMessage, error) {
	if s.rowsWritten > 0 {
		snapshot, err := json.Marshal(st)
		if err != nil {
			return nil, errInternal(err, "marshal snapshot")
		}
		cp := &model.Checkpoint{
			GameID:            gameID,
			TranscriptEntryID: s.lastRowID,
			Status:            st.Status,
			StateSnapshot:     snapshot,
		}
		if err := tx.InsertCheckpoint(ctx, cp); err != nil {
			return nil, errInternal(err, "insert checkpoint")
		}
		st.Checkpoints = append(st.Checkpoints, negotiation.CheckpointRef{
			CheckpointID:   cp.ID,
			CreatedAt:      cp.CreatedAt.UTC().Format(time.RFC3339Nano),
			Status:         cp.Status,
			TranscriptUpto: s.lastRowID,
		})
	}

	blob, err := json.Marshal(st)
	if err != nil {
		return nil, errInternal(err, "marshal state")
	}
	if err := tx.SaveState(ctx, gameID, st.Status, st.HumanRoleID, blob); err != nil {
		return nil, errInternal(err, "save state")
	}
	return blob, nil
}

func (e *Engine) cacheState(ctx context.Context, gameID string, payload json.RawMessage) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetState(ctx, gameID, payload, e.cacheTTL()); err != nil {
		log.Debug().Err(err).Str("game_id", gameID).Msg("state cache write failed")
	}
}

func (e *Engine) cacheTTL() time.Duration {
	if e.cfg != nil && e.cfg.StateCacheTTL != "" {
		if d, err := time.ParseDuration(e.cfg.StateCacheTTL); err == nil && d > 0 {
			return d
		}
	}
	return defaultCacheTTL
}

func newSeed() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.BigEndian.Uint64(buf[:]) >> 1), nil
}

// step carries the mutable context of one advance.
type step struct {
	engine  *Engine
	tx      repository.Tx
	ctx     context.Context
	game    *model.Game
	state   *negotiation.State
	payload json.RawMessage

	rowsWritten int
	lastRowID   *string
	failTrace   *model.LLMTrace

	issueDefs []model.IssueDefinition
	catalog   negotiation.IssueCatalog
}

func (s *step) dispatch(event string) error {
	switch event {
	case "ROLE_CONFIRMED":
		return s.handleRoleConfirmed()
	case "ROUND_1_READY":
		return s.handleRound1Ready()
	case "ROUND_1_STEP":
		return s.handleRound1Step()
	case "HUMAN_OPENING_STATEMENT":
		return s.handleHumanOpening()
	case "ROUND_2_READY":
		return s.handleRound2Ready()
	case "CONVO_1_SELECTED":
		return s.handleConvoSelected(1)
	case "CONVO_1_MESSAGE":
		return s.handleConvoMessage(1)
	case "CONVO_2_SELECTED":
		return s.handleConvoSelected(2)
	case "CONVO_2_MESSAGE":
		return s.handleConvoMessage(2)
	case "CONVO_2_SKIPPED":
		return s.handleConvo2Skipped()
	case "CONVO_END_EARLY":
		return s.handleConvoEndEarly()
	case "ROUND_2_WRAP_READY":
		return s.handleRound2WrapReady()
	case "ROUND_3_START_ISSUE":
		return s.handleRound3StartIssue()
	case "ISSUE_INTRO_CONTINUE":
		return s.handleIssueIntroContinue()
	case "ISSUE_DEBATE_STEP":
		return s.handleIssueDebateStep()
	case "HUMAN_DEBATE_MESSAGE":
		return s.handleHumanDebateMessage()
	case "HUMAN_VOTE":
		return s.handleHumanVote()
	case "ISSUE_RESOLUTION_CONTINUE":
		return s.handleResolutionContinue()
	default:
		return errValidation("unknown event %s", event)
	}
}

func (s *step) requireStatus(statuses ...string) error {
	for _, status := range statuses {
		if s.state.Status == status {
			return nil
		}
	}
	return errPrecondition("event not valid in status %s", s.state.Status)
}

func (s *step) decodePayload(v any) error {
	if len(s.payload) == 0 {
		return errValidation("missing event payload")
	}
	if err := json.Unmarshal(s.payload, v); err != nil {
		return errValidation("malformed event payload")
	}
	return nil
}

// writeRow appends one transcript entry within the step.
func (s *step) writeRow(roleID, phase string, round *int, issueID *string, visible bool, content string, meta map[string]any) (*model.TranscriptEntry, error) {
	entry := &model.TranscriptEntry{
		GameID:         s.game.ID,
		RoleID:         roleID,
		Phase:          phase,
		Round:          round,
		IssueID:        issueID,
		VisibleToHuman: visible,
		Content:        content,
	}
	if meta != nil {
		raw, err := json.Marshal(meta)
		if err != nil {
			return nil, errInternal(err, "marshal metadata")
		}
		entry.Metadata = raw
	}
	if err := s.tx.InsertTranscript(s.ctx, entry); err != nil {
		return nil, errInternal(err, "insert transcript")
	}
	s.rowsWritten++
	s.lastRowID = &entry.ID
	return entry, nil
}

// chairScript loads and renders a seeded chair template. A missing key
// renders as the empty string.
func (s *step) chairScript(key string, values map[string]string) (string, error) {
	template, err := s.engine.store.ChairScript(s.ctx, key)
	if err != nil {
		return "", errInternal(err, "load chair script %s", key)
	}
	return RenderScript(template, values), nil
}

// issues loads the seeded agenda once per step.
func (s *step) issues() ([]model.IssueDefinition, negotiation.IssueCatalog, error) {
	if s.issueDefs != nil {
		return s.issueDefs, s.catalog, nil
	}
	defs, err := s.engine.store.Issues(s.ctx)
	if err != nil {
		return nil, nil, errInternal(err, "load issues")
	}
	catalog := make(negotiation.IssueCatalog, len(defs))
	for _, def := range defs {
		opts := make([]negotiation.IssueOption, 0, len(def.Options))
		for _, o := range def.Options {
			opts = append(opts, negotiation.IssueOption{OptionID: o.OptionID, Label: o.Label, ShortText: o.ShortText})
		}
		catalog[def.IssueID] = opts
	}
	s.issueDefs = defs
	s.catalog = catalog
	return defs, catalog, nil
}

// generate runs one LLM call and writes its trace. On provider failure
// the failure trace is stashed for the post-rollback write and an
// external error is returned.
func (s *step) generate(roleID, promptVersion, promptText string, requestPayload map[string]any) (string, error) {
	req := llm.Request{
		GameID:         s.game.ID,
		RoleID:         roleID,
		Status:         s.state.Status,
		Prompt:         promptText,
		PromptVersion:  promptVersion,
		RequestPayload: requestPayload,
	}
	reqBlob, err := json.Marshal(requestPayload)
	if err != nil {
		return "", errInternal(err, "marshal request payload")
	}
	trace := &model.LLMTrace{
		GameID:         s.game.ID,
		RoleID:         roleID,
		Status:         s.state.Status,
		Provider:       s.engine.provider.ProviderName(),
		Model:          s.engine.provider.ModelName(),
		PromptVersion:  promptVersion,
		RequestPayload: reqBlob,
	}

	resp, err := s.engine.provider.Generate(s.ctx, req)
	if err != nil {
		failure, merr := json.Marshal(map[string]string{
			"error_type":    llm.ErrorType(err),
			"error_message": err.Error(),
		})
		if merr == nil {
			trace.ResponsePayload = failure
		}
		s.failTrace = trace
		return "", errExternal(err, "llm generation failed for %s", roleID)
	}

	respBlob, err := json.Marshal(map[string]string{"assistant_text": resp.AssistantText})
	if err != nil {
		return "", errInternal(err, "marshal response payload")
	}
	trace.ResponsePayload = respBlob
	if err := s.tx.InsertTrace(s.ctx, trace); err != nil {
		return "", errInternal(err, "insert trace")
	}
	return resp.AssistantText, nil
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }
