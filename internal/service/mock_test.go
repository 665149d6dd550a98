package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/freeeve/mercury-council/api/internal/llm"
	"github.com/freeeve/mercury-council/api/internal/model"
	"github.com/freeeve/mercury-council/api/internal/repository"
)

// memStore is an in-memory repository.Store. Transactions buffer their
// writes and apply them on commit, so rollback semantics match the real
// store closely enough for engine tests.
type memStore struct {
	mu  sync.Mutex
	seq int

	users       map[string]*model.User
	games       map[string]*model.Game
	states      map[string]json.RawMessage
	transcript  []model.TranscriptEntry
	checkpoints []model.Checkpoint
	votes       []model.Vote
	traces      []model.LLMTrace

	variants map[string][]model.OpeningVariant
	issues   []model.IssueDefinition
	scripts  map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*model.User),
		games:    make(map[string]*model.Game),
		states:   make(map[string]json.RawMessage),
		variants: seedVariants(),
		issues:   seedIssues(),
		scripts:  seedScripts(),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// nextTime hands out strictly increasing timestamps so insertion order
// and created_at order agree, as they do against the real database.
func (s *memStore) nextTime() time.Time {
	s.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Millisecond)
}

func (s *memStore) RunInTx(_ context.Context, fn func(repository.Tx) error) error {
	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *memStore) CreateUser(_ context.Context, displayName string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &model.User{ID: s.nextID("user"), DisplayName: displayName, CreatedAt: s.nextTime()}
	s.users[u.ID] = u
	return u, nil
}

func (s *memStore) FindUser(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) CreateGame(_ context.Context, userID string, seed int64, status string, state json.RawMessage) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nextTime()
	g := &model.Game{ID: s.nextID("game"), UserID: userID, Status: status, Seed: seed, CreatedAt: now, UpdatedAt: now}
	s.games[g.ID] = g
	s.states[g.ID] = append(json.RawMessage(nil), state...)
	return s.gameCopy(g), nil
}

func (s *memStore) FindGame(_ context.Context, id string) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return nil, nil
	}
	return s.gameCopy(g), nil
}

func (s *memStore) gameCopy(g *model.Game) *model.Game {
	cp := *g
	cp.State = append(json.RawMessage(nil), s.states[g.ID]...)
	return &cp
}

func (s *memStore) ListTranscript(_ context.Context, gameID string, f repository.TranscriptFilter) ([]model.TranscriptEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TranscriptEntry
	for _, e := range s.transcript {
		if e.GameID == gameID && matchesFilter(e, f) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) ListCheckpoints(_ context.Context, gameID string) ([]model.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Checkpoint
	for _, c := range s.checkpoints {
		if c.GameID == gameID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) ListVotes(_ context.Context, gameID string) ([]model.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Vote
	for _, v := range s.votes {
		if v.GameID == gameID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memStore) ListTraces(_ context.Context, gameID string) ([]model.LLMTrace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.LLMTrace
	for _, t := range s.traces {
		if t.GameID == gameID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) InsertTraceStandalone(_ context.Context, t *model.LLMTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID("trace")
	t.CreatedAt = s.nextTime()
	s.traces = append(s.traces, *t)
	return nil
}

func (s *memStore) OpeningVariants(_ context.Context, roleID string) ([]model.OpeningVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OpeningVariant(nil), s.variants[roleID]...), nil
}

func (s *memStore) Issues(_ context.Context) ([]model.IssueDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.IssueDefinition(nil), s.issues...), nil
}

func (s *memStore) ChairScript(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scripts[key], nil
}

// memTx buffers writes until commit.
type memTx struct {
	s *memStore

	transcript  []model.TranscriptEntry
	checkpoints []model.Checkpoint
	votes       []model.Vote
	traces      []model.LLMTrace

	saved       bool
	savedGameID string
	savedStatus string
	savedHuman  *string
	savedState  json.RawMessage
}

func (t *memTx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, t.transcript...)
	s.checkpoints = append(s.checkpoints, t.checkpoints...)
	s.votes = append(s.votes, t.votes...)
	s.traces = append(s.traces, t.traces...)
	if t.saved {
		if g, ok := s.games[t.savedGameID]; ok {
			g.Status = t.savedStatus
			g.HumanRoleID = t.savedHuman
			g.UpdatedAt = s.nextTime()
			s.states[t.savedGameID] = append(json.RawMessage(nil), t.savedState...)
		}
	}
}

func (t *memTx) GameForUpdate(ctx context.Context, gameID string) (*model.Game, error) {
	return t.s.FindGame(ctx, gameID)
}

func (t *memTx) SaveState(_ context.Context, gameID, status string, humanRoleID *string, state json.RawMessage) error {
	t.saved = true
	t.savedGameID = gameID
	t.savedStatus = status
	t.savedHuman = humanRoleID
	t.savedState = append(json.RawMessage(nil), state...)
	return nil
}

func (t *memTx) InsertTranscript(_ context.Context, e *model.TranscriptEntry) error {
	t.s.mu.Lock()
	e.ID = t.s.nextID("row")
	e.CreatedAt = t.s.nextTime()
	t.s.mu.Unlock()
	t.transcript = append(t.transcript, *e)
	return nil
}

func (t *memTx) InsertCheckpoint(_ context.Context, c *model.Checkpoint) error {
	t.s.mu.Lock()
	c.ID = t.s.nextID("cp")
	c.CreatedAt = t.s.nextTime()
	t.s.mu.Unlock()
	t.checkpoints = append(t.checkpoints, *c)
	return nil
}

func (t *memTx) InsertVote(_ context.Context, v *model.Vote) error {
	t.s.mu.Lock()
	v.ID = t.s.nextID("vote")
	v.CreatedAt = t.s.nextTime()
	t.s.mu.Unlock()
	t.votes = append(t.votes, *v)
	return nil
}

func (t *memTx) InsertTrace(_ context.Context, tr *model.LLMTrace) error {
	t.s.mu.Lock()
	tr.ID = t.s.nextID("trace")
	tr.CreatedAt = t.s.nextTime()
	t.s.mu.Unlock()
	t.traces = append(t.traces, *tr)
	return nil
}

// Transcript sees committed rows plus the transaction's own writes, like
// a read inside the real transaction.
func (t *memTx) Transcript(_ context.Context, gameID string, f repository.TranscriptFilter, limit int) ([]model.TranscriptEntry, error) {
	t.s.mu.Lock()
	committed := append([]model.TranscriptEntry(nil), t.s.transcript...)
	t.s.mu.Unlock()
	var out []model.TranscriptEntry
	for _, e := range append(committed, t.transcript...) {
		if e.GameID == gameID && matchesFilter(e, f) {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func matchesFilter(e model.TranscriptEntry, f repository.TranscriptFilter) bool {
	if f.Phase != "" && e.Phase != f.Phase {
		return false
	}
	if f.RoleID != "" && e.RoleID != f.RoleID {
		return false
	}
	if f.IssueID != "" && (e.IssueID == nil || *e.IssueID != f.IssueID) {
		return false
	}
	if f.Visible != nil && e.VisibleToHuman != *f.Visible {
		return false
	}
	if f.Convo != "" {
		var meta map[string]any
		if len(e.Metadata) == 0 || json.Unmarshal(e.Metadata, &meta) != nil {
			return false
		}
		if convo, _ := meta["convo"].(string); convo != f.Convo {
			return false
		}
	}
	return true
}

// memCache is an in-memory repository.StateCache. TTLs are ignored.
type memCache struct {
	mu     sync.Mutex
	states map[string]json.RawMessage
	sets   int
}

func newMemCache() *memCache {
	return &memCache{states: make(map[string]json.RawMessage)}
}

func (c *memCache) SetState(_ context.Context, gameID string, payload json.RawMessage, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[gameID] = append(json.RawMessage(nil), payload...)
	c.sets++
	return nil
}

func (c *memCache) GetState(_ context.Context, gameID string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[gameID], nil
}

func (c *memCache) Invalidate(_ context.Context, gameID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, gameID)
	return nil
}

// failingProvider always errors, for gateway failure paths.
type failingProvider struct{}

func (failingProvider) ProviderName() string { return "fake" }
func (failingProvider) ModelName() string    { return "fake" }
func (failingProvider) Generate(_ context.Context, _ llm.Request) (llm.Response, error) {
	return llm.Response{}, errors.New("upstream timeout")
}

func seedIssues() []model.IssueDefinition {
	return []model.IssueDefinition{
		{
			IssueID:  "1",
			Title:    "National Action Plans",
			UIPrompt: "Should national action plans on mercury use be mandatory or voluntary?",
			Options: []model.IssueOption{
				{OptionID: "1.1", Label: "Mandatory national action plans", ShortText: "Every party prepares and submits a binding national action plan within three years."},
				{OptionID: "1.2", Label: "Voluntary national action plans", ShortText: "Parties are encouraged to prepare national action plans on a voluntary basis."},
			},
		},
		{
			IssueID:  "2",
			Title:    "Financial Mechanism",
			UIPrompt: "How should implementation in developing countries be financed?",
			Options: []model.IssueOption{
				{OptionID: "2.1", Label: "Dedicated multilateral fund", ShortText: "A new dedicated fund with mandatory contributions from developed-country parties."},
				{OptionID: "2.2", Label: "Existing financing channels", ShortText: "Implementation financed through existing environmental facilities."},
			},
		},
		{
			IssueID:  "3",
			Title:    "Emission Controls",
			UIPrompt: "What form should controls on atmospheric mercury emissions take?",
			Options: []model.IssueOption{
				{OptionID: "3.1", Label: "Binding emission limits", ShortText: "Numeric emission limit values for major point-source categories."},
				{OptionID: "3.2", Label: "Best-practice guidance", ShortText: "Best available techniques and environmental practices, without numeric limits."},
				{OptionID: "3.3", Label: "Phased national targets", ShortText: "Nationally determined reduction targets tightened on a fixed schedule."},
			},
		},
		{
			IssueID:  "4",
			Title:    "Compliance and Reporting",
			UIPrompt: "How should compliance with treaty obligations be reviewed?",
			Options: []model.IssueOption{
				{OptionID: "4.1", Label: "Standing compliance committee", ShortText: "A facilitative committee empowered to review party performance."},
				{OptionID: "4.2", Label: "Self-reporting only", ShortText: "Periodic national reports with no standing review body."},
			},
		},
	}
}

func seedScripts() map[string]string {
	return map[string]string{
		ScriptRound1Open:     "The Chair calls this plenary to order. We will proceed to opening statements from each delegation.",
		ScriptCallSpeaker:    "I recognize the delegation of {speaker}.",
		ScriptIssueIntro:     "We now take up issue {issue_id}: {issue_title}. The options before the plenary are: {options_list}.",
		ScriptProposal:       "Hearing no further interventions, the Chair puts option {option_id} before the plenary for decision.",
		ScriptVoteResultPass: "The proposal is adopted by consensus of all parties.",
		ScriptVoteResultFail: "There is no consensus. The proposal is not adopted.",
	}
}

// seedVariants mirrors the shape of the seeded opening variants: two per
// selectable role, stance packages keyed by_issue_id, including the null
// acceptance entries that must never move.
func seedVariants() map[string][]model.OpeningVariant {
	stances := map[string]string{
		"BRA-1":  `{"by_issue_id":{"1":{"preferred":"1.1","firmness":0.5,"acceptance":{"1.1":0.8,"1.2":0.4}},"2":{"preferred":"2.1","firmness":0.7,"acceptance":{"2.1":0.9,"2.2":0.2}},"3":{"preferred":"3.3","firmness":0.4,"acceptance":{"3.1":0.4,"3.2":0.5,"3.3":0.8}},"4":{"preferred":"4.1","firmness":0.4,"acceptance":{"4.1":0.7,"4.2":0.5}}},"conversation_interests":["financing for implementation","artisanal and small-scale gold mining"]}`,
		"BRA-2":  `{"by_issue_id":{"1":{"preferred":"1.2","firmness":0.4,"acceptance":{"1.1":0.5,"1.2":0.8}},"2":{"preferred":"2.1","firmness":0.8,"acceptance":{"2.1":0.9,"2.2":0.1}},"3":{"preferred":"3.3","firmness":0.5,"acceptance":{"3.2":0.6,"3.3":0.8}},"4":{"preferred":"4.2","firmness":0.3,"acceptance":{"4.1":0.5,"4.2":0.7}}},"conversation_interests":["dedicated fund governance","technology transfer"]}`,
		"CAN-1":  `{"by_issue_id":{"1":{"preferred":"1.1","firmness":0.7,"acceptance":{"1.1":0.9,"1.2":0.3}},"2":{"preferred":"2.2","firmness":0.5,"acceptance":{"2.1":0.4,"2.2":0.8}},"3":{"preferred":"3.1","firmness":0.6,"acceptance":{"3.1":0.8,"3.2":0.4,"3.3":0.6}},"4":{"preferred":"4.1","firmness":0.6,"acceptance":{"4.1":0.9,"4.2":0.2}}}}`,
		"CAN-2":  `{"by_issue_id":{"1":{"preferred":"1.1","firmness":0.6,"acceptance":{"1.1":0.8,"1.2":0.4}},"2":{"preferred":"2.2","firmness":0.4,"acceptance":{"2.1":0.5,"2.2":0.7}},"3":{"preferred":"3.1","firmness":0.7,"acceptance":{"3.1":0.9,"3.3":0.5}},"4":{"preferred":"4.1","firmness":0.5,"acceptance":{"4.1":0.8,"4.2":0.3}}}}`,
		"CHN-1":  `{"by_issue_id":{"1":{"preferred":"1.2","firmness":0.6,"acceptance":{"1.1":0.3,"1.2":0.8}},"2":{"preferred":"2.1","firmness":0.6,"acceptance":{"2.1":0.8,"2.2":0.3}},"3":{"preferred":"3.3","firmness":0.7,"acceptance":{"3.1":null,"3.2":0.6,"3.3":0.9}},"4":{"preferred":"4.2","firmness":0.6,"acceptance":{"4.1":0.3,"4.2":0.8}}}}`,
		"CHN-2":  `{"by_issue_id":{"1":{"preferred":"1.2","firmness":0.5,"acceptance":{"1.1":0.4,"1.2":0.8}},"2":{"preferred":"2.1","firmness":0.7,"acceptance":{"2.1":0.9,"2.2":0.2}},"3":{"preferred":"3.2","firmness":0.6,"acceptance":{"3.2":0.8,"3.3":0.7}},"4":{"preferred":"4.2","firmness":0.7,"acceptance":{"4.1":0.2,"4.2":0.9}}}}`,
		"EU-1":   `{"by_issue_id":{"1":{"preferred":"1.1","firmness":0.8,"acceptance":{"1.1":0.9,"1.2":0.2}},"2":{"preferred":"2.2","firmness":0.5,"acceptance":{"2.1":0.5,"2.2":0.8}},"3":{"preferred":"3.1","firmness":0.7,"acceptance":{"3.1":0.9,"3.3":0.5}},"4":{"preferred":"4.1","firmness":0.7,"acceptance":{"4.1":0.9,"4.2":0.1}}}}`,
		"EU-2":   `{"by_issue_id":{"1":{"preferred":"1.1","firmness":0.7,"acceptance":{"1.1":0.9,"1.2":0.3}},"2":{"preferred":"2.1","firmness":0.4,"acceptance":{"2.1":0.7,"2.2":0.6}},"3":{"preferred":"3.1","firmness":0.8,"acceptance":{"3.1":0.9,"3.2":0.2,"3.3":0.6}},"4":{"preferred":"4.1","firmness":0.6,"acceptance":{"4.1":0.8,"4.2":0.3}}}}`,
		"TZA-1":  `{"by_issue_id":{"1":{"preferred":"1.2","firmness":0.5,"acceptance":{"1.1":0.5,"1.2":0.8}},"2":{"preferred":"2.1","firmness":0.8,"acceptance":{"2.1":0.9,"2.2":0.1}},"3":{"preferred":"3.3","firmness":0.4,"acceptance":{"3.2":0.6,"3.3":0.7}},"4":{"preferred":"4.2","firmness":0.5,"acceptance":{"4.1":0.4,"4.2":0.8}}}}`,
		"TZA-2":  `{"by_issue_id":{"1":{"preferred":"1.2","firmness":0.6,"acceptance":{"1.1":0.4,"1.2":0.9}},"2":{"preferred":"2.1","firmness":0.8,"acceptance":{"2.1":0.9,"2.2":0.2}},"3":{"preferred":"3.2","firmness":0.5,"acceptance":{"3.2":0.8,"3.3":0.6}},"4":{"preferred":"4.2","firmness":0.6,"acceptance":{"4.1":0.3,"4.2":0.8}}}}`,
		"USA-1":  `{"by_issue_id":{"1":{"preferred":"1.2","firmness":0.6,"acceptance":{"1.1":0.4,"1.2":0.9}},"2":{"preferred":"2.2","firmness":0.7,"acceptance":{"2.1":0.2,"2.2":0.9}},"3":{"preferred":"3.3","firmness":0.5,"acceptance":{"3.1":0.3,"3.2":0.6,"3.3":0.8}},"4":{"preferred":"4.2","firmness":0.5,"acceptance":{"4.1":0.4,"4.2":0.8}}}}`,
		"USA-2":  `{"by_issue_id":{"1":{"preferred":"1.2","firmness":0.5,"acceptance":{"1.1":0.5,"1.2":0.8}},"2":{"preferred":"2.2","firmness":0.6,"acceptance":{"2.1":0.3,"2.2":0.9}},"3":{"preferred":"3.2","firmness":0.4,"acceptance":{"3.1":0.4,"3.2":0.8,"3.3":0.7}},"4":{"preferred":"4.1","firmness":0.4,"acceptance":{"4.1":0.6,"4.2":0.6}}}}`,
		"AMAP-1": `{"by_issue_id":{"1":{"preferred":"1.1","firmness":0.6,"acceptance":{"1.1":0.8,"1.2":0.3}},"2":{"preferred":"2.1","firmness":0.4,"acceptance":{"2.1":0.6,"2.2":0.5}},"3":{"preferred":"3.1","firmness":0.8,"acceptance":{"3.1":0.9,"3.2":0.2,"3.3":0.5}},"4":{"preferred":"4.1","firmness":0.6,"acceptance":{"4.1":0.8,"4.2":0.2}}}}`,
		"AMAP-2": `{"by_issue_id":{"1":{"preferred":"1.1","firmness":0.5,"acceptance":{"1.1":0.7,"1.2":0.4}},"2":{"preferred":"2.2","firmness":0.3,"acceptance":{"2.1":0.5,"2.2":0.6}},"3":{"preferred":"3.1","firmness":0.7,"acceptance":{"3.1":0.9,"3.3":0.6}},"4":{"preferred":"4.1","firmness":0.5,"acceptance":{"4.1":0.8,"4.2":0.3}}}}`,
		"MFF-1":  `{"by_issue_id":{"1":{"preferred":"1.1","firmness":0.8,"acceptance":{"1.1":0.9,"1.2":null}},"2":{"preferred":"2.1","firmness":0.7,"acceptance":{"2.1":0.9,"2.2":0.3}},"3":{"preferred":"3.1","firmness":0.8,"acceptance":{"3.1":0.9,"3.2":0.1,"3.3":0.4}},"4":{"preferred":"4.1","firmness":0.7,"acceptance":{"4.1":0.9,"4.2":0.1}}}}`,
		"MFF-2":  `{"by_issue_id":{"1":{"preferred":"1.1","firmness":0.8,"acceptance":{"1.1":0.9,"1.2":0.1}},"2":{"preferred":"2.1","firmness":0.8,"acceptance":{"2.1":0.9,"2.2":0.2}},"3":{"preferred":"3.1","firmness":0.7,"acceptance":{"3.1":0.9,"3.3":0.3}},"4":{"preferred":"4.1","firmness":0.6,"acceptance":{"4.1":0.8,"4.2":0.2}}}}`,
		"WCPA-1": `{"by_issue_id":{"1":{"preferred":"1.2","firmness":0.6,"acceptance":{"1.1":0.3,"1.2":0.9}},"2":{"preferred":"2.2","firmness":0.5,"acceptance":{"2.1":0.3,"2.2":0.8}},"3":{"preferred":"3.2","firmness":0.7,"acceptance":{"3.1":null,"3.2":0.9,"3.3":0.6}},"4":{"preferred":"4.2","firmness":0.6,"acceptance":{"4.1":0.2,"4.2":0.9}}}}`,
		"WCPA-2": `{"by_issue_id":{"1":{"preferred":"1.2","firmness":0.5,"acceptance":{"1.1":0.4,"1.2":0.8}},"2":{"preferred":"2.2","firmness":0.6,"acceptance":{"2.1":0.2,"2.2":0.9}},"3":{"preferred":"3.2","firmness":0.6,"acceptance":{"3.2":0.9,"3.3":0.7}},"4":{"preferred":"4.2","firmness":0.5,"acceptance":{"4.1":0.3,"4.2":0.8}}}}`,
	}
	out := make(map[string][]model.OpeningVariant)
	for _, roleID := range []string{"BRA", "CAN", "CHN", "EU", "TZA", "USA", "AMAP", "MFF", "WCPA"} {
		for _, n := range []string{"1", "2"} {
			id := roleID + "-" + n
			out[roleID] = append(out[roleID], model.OpeningVariant{
				ID:             id,
				RoleID:         roleID,
				OpeningText:    fmt.Sprintf("The delegation of %s sets out its position on issues 1 through 4, variant %s.", roleID, n),
				InitialStances: json.RawMessage(stances[id]),
			})
		}
	}
	return out
}
