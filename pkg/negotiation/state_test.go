package negotiation

import (
	"encoding/json"
	"testing"
)

func TestNewStateShape(t *testing.T) {
	s := NewState()
	if s.Status != StatusRoleSelection {
		t.Fatalf("status = %s", s.Status)
	}
	if len(s.Roles) != 10 {
		t.Fatalf("roles = %d, want 10", len(s.Roles))
	}
	if s.Roles[RoleChair].Type != "chair" {
		t.Fatalf("chair type = %s", s.Roles[RoleChair].Type)
	}
	for _, c := range Countries {
		if s.Roles[c].Type != "country" {
			t.Fatalf("%s type = %s", c, s.Roles[c].Type)
		}
	}
	if got := len(s.Round3.Issues); got != 4 {
		t.Fatalf("issues = %d", got)
	}
}

func TestEnsureDefaultStancesCoversAllRolesAndIssues(t *testing.T) {
	s := NewState()
	for roleID := range s.Roles {
		for _, issueID := range IssueIDs {
			st, ok := s.Stances[roleID][issueID]
			if !ok {
				t.Fatalf("missing stance for %s issue %s", roleID, issueID)
			}
			if st.Firmness != DefaultFirmness {
				t.Fatalf("%s/%s firmness = %v", roleID, issueID, st.Firmness)
			}
		}
	}
}

func TestEnsureDefaultStancesKeepsExisting(t *testing.T) {
	s := NewState()
	v := 0.9
	s.Stances[RoleUSA]["1"].Acceptance["1.1"] = &v
	s.Stances[RoleUSA]["1"].Firmness = 0.8
	s.EnsureDefaultStances()
	if got := *s.Stances[RoleUSA]["1"].Acceptance["1.1"]; got != 0.9 {
		t.Fatalf("acceptance reset: %v", got)
	}
	if got := s.Stances[RoleUSA]["1"].Firmness; got != 0.8 {
		t.Fatalf("firmness reset: %v", got)
	}
}

func TestStateJSONRoundTripPreservesNullAcceptance(t *testing.T) {
	s := NewState()
	s.Stances[RoleUSA]["1"].Acceptance["1.2"] = nil
	v := 0.4
	s.Stances[RoleUSA]["1"].Acceptance["1.1"] = &v

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var back State
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	acc := back.Stances[RoleUSA]["1"].Acceptance
	if ptr, ok := acc["1.2"]; !ok || ptr != nil {
		t.Fatalf("null acceptance lost: present=%v value=%v", ok, ptr)
	}
	if *acc["1.1"] != 0.4 {
		t.Fatalf("numeric acceptance lost: %v", *acc["1.1"])
	}
}

func TestConversationTurnAccounting(t *testing.T) {
	c := &Conversation{PartnerRole: RoleBRA, Status: ConvoActive, Phase: ConvoPhaseOpen}
	if !c.HumanTurnAvailable() {
		t.Fatal("fresh conversation has no human turn")
	}
	if c.MessageIndex() != 0 {
		t.Fatalf("index = %d", c.MessageIndex())
	}
	c.HumanTurnsUsed = 5
	c.AITurnsUsed = 5
	if c.HumanTurnAvailable() {
		t.Fatal("turn available after five exchanges without interrupt handling")
	}
	if c.MessageIndex() != 10 {
		t.Fatalf("interrupt row index = %d, want 10", c.MessageIndex())
	}
	c.PostInterrupt = true
	c.Phase = ConvoPhasePostInterrupt
	if !c.HumanTurnAvailable() {
		t.Fatal("post-interrupt final turn missing")
	}
	if c.MessageIndex() != 11 {
		t.Fatalf("final human index = %d, want 11", c.MessageIndex())
	}
	c.FinalHumanSent = true
	if c.HumanTurnAvailable() {
		t.Fatal("second final turn allowed")
	}
	if c.MessageIndex() != 12 {
		t.Fatalf("final AI index = %d, want 12", c.MessageIndex())
	}
	c.FinalAISent = true
	if c.MessageIndex() != 13 {
		t.Fatalf("concluded index = %d, want 13", c.MessageIndex())
	}
}

func TestSpeechNumber(t *testing.T) {
	a := &ActiveIssue{DebateQueue: []string{"A", "B", "C"}, DebateRound: 1, DebateCursor: 0}
	if got := a.SpeechNumber(); got != 1 {
		t.Fatalf("first speech = %d", got)
	}
	a.DebateCursor = 2
	if got := a.SpeechNumber(); got != 3 {
		t.Fatalf("third speech = %d", got)
	}
	a.DebateRound = 2
	a.DebateCursor = 0
	if got := a.SpeechNumber(); got != 4 {
		t.Fatalf("round-2 first speech = %d", got)
	}
}
