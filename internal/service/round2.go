package service

import (
	"fmt"
	"strings"

	"github.com/freeeve/mercury-council/api/internal/prompt"
	"github.com/freeeve/mercury-council/api/internal/repository"
	"github.com/freeeve/mercury-council/api/pkg/negotiation"
)

const round2Phase = "ROUND_2"

func (s *step) handleRound2Ready() error {
	if err := s.requireStatus(negotiation.StatusRound2Setup); err != nil {
		return err
	}
	if _, err := s.writeRow(negotiation.RoleChair, round2Phase, intPtr(2), nil, true, chairRound2Open, nil); err != nil {
		return err
	}
	s.state.Status = negotiation.StatusRound2SelectConvo1
	return nil
}

func (s *step) handleConvoSelected(n int) error {
	want := negotiation.StatusRound2SelectConvo1
	if n == 2 {
		want = negotiation.StatusRound2SelectConvo2
	}
	if err := s.requireStatus(want); err != nil {
		return err
	}
	var p struct {
		PartnerRoleID string `json:"partner_role_id"`
	}
	if err := s.decodePayload(&p); err != nil {
		return err
	}
	st := s.state
	if !negotiation.IsSelectableRole(p.PartnerRoleID) {
		return errValidation("role %s cannot be a negotiation partner", p.PartnerRoleID)
	}
	if st.IsHuman(p.PartnerRoleID) {
		return errValidation("cannot negotiate with your own delegation")
	}
	if n == 2 && st.Round2.Convo1 != nil && st.Round2.Convo1.PartnerRole == p.PartnerRoleID {
		return errValidation("second negotiation must be with a different delegation")
	}

	convo := &negotiation.Conversation{
		PartnerRole: p.PartnerRoleID,
		Status:      negotiation.ConvoActive,
		Phase:       negotiation.ConvoPhaseOpen,
	}
	if n == 1 {
		st.Round2.Convo1 = convo
	} else {
		st.Round2.Convo2 = convo
	}
	st.Round2.ActiveConvoIndex = intPtr(n)

	content := fmt.Sprintf(chairConvoStarted, negotiation.RoleName(p.PartnerRoleID))
	meta := map[string]any{"convo": convoName(n)}
	if _, err := s.writeRow(negotiation.RoleChair, round2Phase, intPtr(2), nil, true, content, meta); err != nil {
		return err
	}
	st.Status = negotiation.StatusRound2ConversationLive
	return nil
}

func (s *step) handleConvoMessage(n int) error {
	if err := s.requireStatus(negotiation.StatusRound2ConversationLive); err != nil {
		return err
	}
	st := s.state
	convo := s.activeConvo(n)
	if convo == nil {
		return errPrecondition("conversation %d is not active", n)
	}
	if !convo.HumanTurnAvailable() {
		return errPrecondition("conversation %d has no human turn left", n)
	}
	var p struct {
		Content string `json:"content"`
	}
	if err := s.decodePayload(&p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Content) == "" {
		return errValidation("message content must not be empty")
	}

	human := ""
	if st.HumanRoleID != nil {
		human = *st.HumanRoleID
	}
	partner := convo.PartnerRole
	name := convoName(n)

	// Human message row.
	humanMeta := map[string]any{"sender": "human", "convo": name, "index": convo.MessageIndex()}
	if _, err := s.writeRow(human, round2Phase, intPtr(2), nil, true, p.Content, humanMeta); err != nil {
		return err
	}
	if convo.PostInterrupt {
		convo.FinalHumanSent = true
	} else {
		convo.HumanTurnsUsed++
	}
	s.shiftBoth(human, partner, p.Content)

	// AI reply via the gateway.
	reply, err := s.convoReply(convo, human, partner, name, p.Content)
	if err != nil {
		return err
	}
	aiMeta := map[string]any{"sender": "ai", "convo": name, "index": convo.MessageIndex()}
	if _, err := s.writeRow(partner, round2Phase, intPtr(2), nil, true, reply, aiMeta); err != nil {
		return err
	}
	if convo.PostInterrupt {
		convo.FinalAISent = true
	} else {
		convo.AITurnsUsed++
	}
	s.shiftBoth(human, partner, reply)

	// Turn accounting: interrupt after the exchange limit, close after
	// the post-interrupt exchange.
	switch {
	case !convo.PostInterrupt && convo.HumanTurnsUsed >= negotiation.ConvoTurnLimit:
		convo.PostInterrupt = true
		convo.Phase = negotiation.ConvoPhasePostInterrupt
		meta := map[string]any{"convo": name, "index": convo.MessageIndex() - 1, "interrupt": true}
		if _, err := s.writeRow(negotiation.RoleChair, round2Phase, intPtr(2), nil, true, chairConvoInterrupt, meta); err != nil {
			return err
		}
	case convo.FinalAISent:
		meta := map[string]any{"convo": name, "index": convo.MessageIndex()}
		if _, err := s.writeRow(negotiation.RoleChair, round2Phase, intPtr(2), nil, true, chairConvoConcluded, meta); err != nil {
			return err
		}
		s.closeConvo(convo, n)
	}
	return nil
}

func (s *step) handleConvoEndEarly() error {
	if err := s.requireStatus(negotiation.StatusRound2ConversationLive); err != nil {
		return err
	}
	st := s.state
	if st.Round2.ActiveConvoIndex == nil {
		return errPrecondition("no active conversation")
	}
	n := *st.Round2.ActiveConvoIndex
	convo := s.activeConvo(n)
	if convo == nil || !convo.HumanTurnAvailable() {
		return errPrecondition("conversation cannot be ended early")
	}
	s.closeConvo(convo, n)
	return nil
}

func (s *step) handleConvo2Skipped() error {
	if err := s.requireStatus(negotiation.StatusRound2SelectConvo2); err != nil {
		return err
	}
	if _, err := s.writeRow(negotiation.RoleChair, round2Phase, intPtr(2), nil, true, chairConvo2Skipped, nil); err != nil {
		return err
	}
	s.state.Status = negotiation.StatusRound2WrapUp
	return nil
}

func (s *step) handleRound2WrapReady() error {
	if err := s.requireStatus(negotiation.StatusRound2WrapUp); err != nil {
		return err
	}
	if _, err := s.writeRow(negotiation.RoleChair, round2Phase, intPtr(2), nil, true, chairRound2Close, nil); err != nil {
		return err
	}
	s.state.Status = negotiation.StatusRound3Setup
	return nil
}

func (s *step) activeConvo(n int) *negotiation.Conversation {
	st := s.state
	if st.Round2.ActiveConvoIndex == nil || *st.Round2.ActiveConvoIndex != n {
		return nil
	}
	if n == 1 {
		return st.Round2.Convo1
	}
	return st.Round2.Convo2
}

func (s *step) closeConvo(convo *negotiation.Conversation, n int) {
	convo.Status = negotiation.ConvoClosed
	convo.Phase = negotiation.ConvoPhaseClosed
	s.state.Round2.ActiveConvoIndex = nil
	if n == 1 {
		s.state.Status = negotiation.StatusRound2SelectConvo2
	} else {
		s.state.Status = negotiation.StatusRound2WrapUp
	}
}

// shiftBoth applies a round-2 text trigger to both conversation
// participants and records the movements.
func (s *step) shiftBoth(human, partner, text string) {
	_, catalog, err := s.issues()
	if err != nil {
		return
	}
	st := s.state
	for _, roleID := range []string{human, partner} {
		reasons := negotiation.ApplyStanceShift(roleID, 2, "", text, st.Stances[roleID], catalog)
		st.Round2.StanceLog = append(st.Round2.StanceLog, reasons...)
	}
}

// convoReply builds the r2_convo_v3 prompt from the conversation so far
// and runs it through the gateway.
func (s *step) convoReply(convo *negotiation.Conversation, human, partner, name, content string) (string, error) {
	defs, _, err := s.issues()
	if err != nil {
		return "", err
	}
	tailRows, err := s.tx.Transcript(s.ctx, s.game.ID, repository.TranscriptFilter{Phase: round2Phase, Convo: name}, 10)
	if err != nil {
		return "", errInternal(err, "load conversation tail")
	}
	tail := make([]prompt.TailEntry, 0, len(tailRows))
	for _, row := range tailRows {
		tail = append(tail, prompt.TailEntry{RoleID: row.RoleID, Content: row.Content})
	}

	built, err := prompt.BuildRound2(prompt.Round2Input{
		PartnerRole:      partner,
		HumanRole:        human,
		HumanContent:     content,
		HumanOpeningText: s.state.Round1.Openings[human].Text,
		PartnerOpening:   s.state.Round1.Openings[partner].InitialStances,
		TranscriptTail:   tail,
		Issues:           defs,
	})
	if err != nil {
		return "", errInternal(err, "build conversation prompt")
	}
	return s.generate(partner, built.Version, built.Text, map[string]any{
		"prompt":  built.Text,
		"context": built.Context,
	})
}

func convoName(n int) string {
	return fmt.Sprintf("convo%d", n)
}
