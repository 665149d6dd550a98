package service

import (
	"strings"

	"github.com/freeeve/mercury-council/api/pkg/negotiation"
)

func (s *step) handleRoleConfirmed() error {
	if err := s.requireStatus(negotiation.StatusRoleSelection); err != nil {
		return err
	}
	var p struct {
		HumanRoleID string `json:"human_role_id"`
	}
	if err := s.decodePayload(&p); err != nil {
		return err
	}
	if !negotiation.IsSelectableRole(p.HumanRoleID) {
		return errValidation("role %s is not selectable", p.HumanRoleID)
	}
	s.state.HumanRoleID = &p.HumanRoleID
	s.state.Status = negotiation.StatusRound1Setup
	return nil
}

func (s *step) handleRound1Ready() error {
	if err := s.requireStatus(negotiation.StatusRound1Setup); err != nil {
		return err
	}
	st := s.state
	human := ""
	if st.HumanRoleID != nil {
		human = *st.HumanRoleID
	}
	st.Round1.SpeakerOrder = negotiation.SpeakerOrder(s.game.Seed, human)
	st.Round1.Cursor = 0

	// Every delegation gets its opening picked up front, the human's
	// included; the human's text is replaced when they actually speak.
	roles := append(append([]string{}, negotiation.Countries...), negotiation.NGOs...)
	for _, roleID := range roles {
		rows, err := s.engine.store.OpeningVariants(s.ctx, roleID)
		if err != nil {
			return errInternal(err, "load opening variants for %s", roleID)
		}
		candidates := make([]negotiation.OpeningVariant, 0, len(rows))
		for _, v := range rows {
			candidates = append(candidates, negotiation.OpeningVariant{
				ID:             v.ID,
				RoleID:         v.RoleID,
				OpeningText:    v.OpeningText,
				InitialStances: v.InitialStances,
			})
		}
		pick, err := negotiation.PickOpeningVariant(roleID, s.game.Seed, candidates)
		if err != nil {
			return errInternal(err, "pick opening variant")
		}
		st.Round1.Openings[roleID] = negotiation.Opening{
			VariantID:      pick.ID,
			Text:           pick.OpeningText,
			InitialStances: pick.InitialStances,
		}
		st.MergeInitialStances(roleID, pick.InitialStances)
	}

	content, err := s.chairScript(ScriptRound1Open, nil)
	if err != nil {
		return err
	}
	if _, err := s.writeRow(negotiation.RoleChair, negotiation.StatusRound1Opening, intPtr(1), nil, true, content, nil); err != nil {
		return err
	}
	st.Status = negotiation.StatusRound1Opening
	return nil
}

func (s *step) handleRound1Step() error {
	if err := s.requireStatus(negotiation.StatusRound1Opening); err != nil {
		return err
	}
	speaker, err := s.round1Speaker()
	if err != nil {
		return err
	}
	if s.state.IsHuman(speaker) {
		return errPrecondition("the human delegation speaks next, send HUMAN_OPENING_STATEMENT")
	}
	return s.speakOpening(speaker, s.state.Round1.Openings[speaker].Text)
}

func (s *step) handleHumanOpening() error {
	if err := s.requireStatus(negotiation.StatusRound1Opening); err != nil {
		return err
	}
	speaker, err := s.round1Speaker()
	if err != nil {
		return err
	}
	if !s.state.IsHuman(speaker) {
		return errPrecondition("an AI delegation speaks next, send ROUND_1_STEP")
	}
	var p struct {
		Text string `json:"text"`
	}
	if err := s.decodePayload(&p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Text) == "" {
		return errValidation("opening statement text must not be empty")
	}

	opening := s.state.Round1.Openings[speaker]
	opening.Text = p.Text
	s.state.Round1.Openings[speaker] = opening

	if err := s.speakOpening(speaker, p.Text); err != nil {
		return err
	}

	_, catalog, err := s.issues()
	if err != nil {
		return err
	}
	reasons := negotiation.ApplyStanceShift(speaker, 1, "", p.Text, s.state.Stances[speaker], catalog)
	s.state.Round2.StanceLog = append(s.state.Round2.StanceLog, reasons...)
	return nil
}

// speakOpening writes the chair cue and the speaker's statement, then
// advances the round-1 cursor.
func (s *step) speakOpening(speaker, text string) error {
	st := s.state
	cursor := st.Round1.Cursor
	meta := map[string]any{"cursor": cursor}

	cue, err := s.chairScript(ScriptCallSpeaker, map[string]string{"speaker": speaker})
	if err != nil {
		return err
	}
	if _, err := s.writeRow(negotiation.RoleChair, negotiation.StatusRound1Opening, intPtr(1), nil, true, cue, meta); err != nil {
		return err
	}
	if _, err := s.writeRow(speaker, negotiation.StatusRound1Opening, intPtr(1), nil, true, text, meta); err != nil {
		return err
	}

	st.Round1.Cursor++
	if st.Round1.Cursor >= len(st.Round1.SpeakerOrder) {
		st.Status = negotiation.StatusRound2Setup
	}
	return nil
}

func (s *step) round1Speaker() (string, error) {
	st := s.state
	if st.Round1.Cursor >= len(st.Round1.SpeakerOrder) {
		return "", errPrecondition("round 1 speaker order exhausted")
	}
	return st.Round1.SpeakerOrder[st.Round1.Cursor], nil
}
