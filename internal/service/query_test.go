package service

import (
	"context"
	"testing"

	"github.com/freeeve/mercury-council/api/internal/llm"
	"github.com/freeeve/mercury-council/api/internal/model"
	"github.com/freeeve/mercury-council/api/pkg/negotiation"
)

func TestGameStateServedFromCacheThenStore(t *testing.T) {
	store := newMemStore()
	cache := newMemCache()
	e := testEngine(store, cache, llm.NewFake())
	q := NewQuery(store, cache)

	game, payload, err := e.CreateGame(context.Background(), "")
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	gotGame, got, err := q.GameState(context.Background(), game.ID)
	if err != nil {
		t.Fatalf("game state: %v", err)
	}
	if string(got) != string(payload) {
		t.Error("cached state differs from creation payload")
	}
	if gotGame == nil || gotGame.ID != game.ID || gotGame.Seed != game.Seed {
		t.Errorf("game metadata = %+v, want row %s", gotGame, game.ID)
	}

	// A cold cache falls back to the store and repopulates.
	if err := cache.Invalidate(context.Background(), game.ID); err != nil {
		t.Fatal(err)
	}
	setsBefore := cache.sets
	_, got, err = q.GameState(context.Background(), game.ID)
	if err != nil {
		t.Fatalf("game state after invalidate: %v", err)
	}
	st := decodeState(t, got)
	if st.Status != negotiation.StatusRoleSelection {
		t.Errorf("status = %s, want %s", st.Status, negotiation.StatusRoleSelection)
	}
	if cache.sets != setsBefore+1 {
		t.Error("cache not repopulated on miss")
	}
}

func TestGameStateNotFound(t *testing.T) {
	q := NewQuery(newMemStore(), newMemCache())
	_, _, err := q.GameState(context.Background(), "missing")
	if KindOf(err) != KindNotFound {
		t.Fatalf("kind = %v, want not found", KindOf(err))
	}
}

func TestTranscriptFilters(t *testing.T) {
	store := newMemStore()
	q := NewQuery(store, newMemCache())
	game := createTestGame(t, store, 42, negotiation.NewState())

	insert := func(roleID, phase string, visible bool) {
		store.transcript = append(store.transcript, model.TranscriptEntry{
			ID: store.nextID("row"), GameID: game.ID, RoleID: roleID, Phase: phase,
			VisibleToHuman: visible, Content: "x", CreatedAt: store.nextTime(),
		})
	}
	insert("JPN", "ROUND_1_OPENING_STATEMENTS", true)
	insert("BRA", "ROUND_1_OPENING_STATEMENTS", true)
	insert("JPN", "ROUND_2", false)

	rows, err := q.Transcript(context.Background(), game.ID, "ROUND_1_OPENING_STATEMENTS", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("phase filter rows = %d, want 2", len(rows))
	}
	rows, err = q.Transcript(context.Background(), game.ID, "", "JPN", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("role filter rows = %d, want 2", len(rows))
	}

	// Tri-state visibility: both values select their own rows.
	rows, err = q.Transcript(context.Background(), game.ID, "", "", boolPtr(true))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("visible rows = %d, want 2", len(rows))
	}
	rows, err = q.Transcript(context.Background(), game.ID, "", "", boolPtr(false))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Phase != "ROUND_2" {
		t.Errorf("hidden rows = %+v, want the one hidden row", rows)
	}

	if _, err := q.Transcript(context.Background(), "missing", "", "", nil); KindOf(err) != KindNotFound {
		t.Errorf("kind = %v, want not found", KindOf(err))
	}
}

func TestBuildReviewVisibleOnly(t *testing.T) {
	store := newMemStore()
	q := NewQuery(store, newMemCache())
	game := createTestGame(t, store, 42, negotiation.NewState())

	store.transcript = append(store.transcript,
		model.TranscriptEntry{ID: store.nextID("row"), GameID: game.ID, RoleID: "JPN", Phase: "ROUND_2", VisibleToHuman: true, Content: "public", CreatedAt: store.nextTime()},
		model.TranscriptEntry{ID: store.nextID("row"), GameID: game.ID, RoleID: "USA", Phase: "ROUND_2", VisibleToHuman: false, Content: "hidden", CreatedAt: store.nextTime()},
	)
	store.votes = append(store.votes, model.Vote{
		ID: store.nextID("vote"), GameID: game.ID, IssueID: "1", ProposalOptionID: "1.1",
		VotesByCountry: map[string]string{"BRA": "YES"}, Passed: false, CreatedAt: store.nextTime(),
	})

	review, err := q.BuildReview(context.Background(), game.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(review.Transcript) != 1 || review.Transcript[0].Content != "public" {
		t.Errorf("review transcript = %+v, want only the visible row", review.Transcript)
	}
	if len(review.Votes) != 1 || review.Votes[0].IssueID != "1" {
		t.Errorf("review votes = %+v", review.Votes)
	}
}
