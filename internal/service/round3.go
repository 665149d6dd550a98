package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/freeeve/mercury-council/api/internal/model"
	"github.com/freeeve/mercury-council/api/internal/prompt"
	"github.com/freeeve/mercury-council/api/internal/repository"
	"github.com/freeeve/mercury-council/api/pkg/negotiation"
)

const issueProposalPhase = "ISSUE_PROPOSAL"

func (s *step) handleRound3StartIssue() error {
	if err := s.requireStatus(negotiation.StatusRound3Setup); err != nil {
		return err
	}
	var p struct {
		IssueID        string `json:"issue_id"`
		HumanPlacement string `json:"human_placement"`
	}
	if err := s.decodePayload(&p); err != nil {
		return err
	}
	defs, _, err := s.issues()
	if err != nil {
		return err
	}
	var def *model.IssueDefinition
	idx := -1
	for i := range defs {
		if defs[i].IssueID == p.IssueID {
			def = &defs[i]
			idx = i
		}
	}
	if def == nil {
		return errValidation("unknown issue %s", p.IssueID)
	}
	st := s.state
	for _, closed := range st.Round3.ClosedIssues {
		if closed == p.IssueID {
			return errPrecondition("issue %s is already resolved", p.IssueID)
		}
	}
	placement := negotiation.HumanPlacement(p.HumanPlacement)
	if !negotiation.ValidPlacement(placement) {
		return errValidation("human_placement must be first, random, or skip")
	}

	options := make([]negotiation.IssueOption, 0, len(def.Options))
	for _, o := range def.Options {
		options = append(options, negotiation.IssueOption{OptionID: o.OptionID, Label: o.Label, ShortText: o.ShortText})
	}
	sort.Slice(options, func(i, j int) bool { return options[i].OptionID < options[j].OptionID })

	st.Round3.ActiveIssue = &negotiation.ActiveIssue{
		IssueID:        def.IssueID,
		IssueTitle:     def.Title,
		UIPrompt:       def.UIPrompt,
		Options:        options,
		HumanPlacement: placement,
		Votes:          map[string]string{},
	}
	st.Round3.ActiveIssueIndex = intPtr(idx)

	parts := make([]string, 0, len(options))
	for _, o := range options {
		parts = append(parts, fmt.Sprintf("%s (%s)", o.OptionID, o.Label))
	}
	content, err := s.chairScript(ScriptIssueIntro, map[string]string{
		"issue_id":     def.IssueID,
		"issue_title":  def.Title,
		"options_list": strings.Join(parts, "; "),
	})
	if err != nil {
		return err
	}
	meta := map[string]any{"issue_id": def.IssueID}
	if _, err := s.writeRow(negotiation.RoleChair, negotiation.StatusIssueIntro, intPtr(3), strPtr(def.IssueID), true, content, meta); err != nil {
		return err
	}
	st.Status = negotiation.StatusIssueIntro
	return nil
}

func (s *step) handleIssueIntroContinue() error {
	if err := s.requireStatus(negotiation.StatusIssueIntro); err != nil {
		return err
	}
	st := s.state
	issue := st.Round3.ActiveIssue
	if issue == nil {
		return errPrecondition("no issue is on the floor")
	}
	human := ""
	if st.HumanRoleID != nil {
		human = *st.HumanRoleID
	}
	issue.DebateQueue = negotiation.DebateQueue(s.game.Seed, issue.IssueID, 1, human, issue.HumanPlacement)
	issue.DebateRound = 1
	issue.DebateCursor = 0

	content := fmt.Sprintf(chairDebateFloorOpen, issue.IssueID)
	meta := map[string]any{"issue_id": issue.IssueID}
	if _, err := s.writeRow(negotiation.RoleChair, negotiation.StatusIssueDebateRound1, intPtr(3), strPtr(issue.IssueID), true, content, meta); err != nil {
		return err
	}
	st.Status = negotiation.StatusIssueDebateRound1
	return nil
}

// handleIssueDebateStep advances whatever AI action the current issue
// status calls for: a debate speech, the chair's proposal, one roll-call
// vote, or the resolution announcement.
func (s *step) handleIssueDebateStep() error {
	switch s.state.Status {
	case negotiation.StatusIssueDebateRound1, negotiation.StatusIssueDebateRound2:
		return s.aiDebateSpeech()
	case negotiation.StatusIssueFinalization, negotiation.StatusIssueProposalSelection:
		return s.proposalSelection()
	case negotiation.StatusIssueVote:
		return s.aiVote()
	case negotiation.StatusIssueResolution:
		return s.resolutionRow()
	default:
		return errPrecondition("event not valid in status %s", s.state.Status)
	}
}

func (s *step) handleHumanDebateMessage() error {
	if err := s.requireStatus(negotiation.StatusIssueDebateRound1, negotiation.StatusIssueDebateRound2); err != nil {
		return err
	}
	st := s.state
	issue := st.Round3.ActiveIssue
	speaker, err := s.debateSpeaker(issue)
	if err != nil {
		return err
	}
	if !st.IsHuman(speaker) {
		return errPrecondition("an AI delegation speaks next, send ISSUE_DEBATE_STEP")
	}
	var p struct {
		Text string `json:"text"`
	}
	if err := s.decodePayload(&p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Text) == "" {
		return errValidation("debate message text must not be empty")
	}
	return s.recordSpeech(issue, speaker, p.Text)
}

func (s *step) handleHumanVote() error {
	if err := s.requireStatus(negotiation.StatusIssueVote); err != nil {
		return err
	}
	st := s.state
	issue := st.Round3.ActiveIssue
	voter, err := s.nextVoter(issue)
	if err != nil {
		return err
	}
	if !st.IsHuman(voter) {
		return errPrecondition("an AI country votes next, send ISSUE_DEBATE_STEP")
	}
	var p struct {
		Vote string `json:"vote"`
	}
	if err := s.decodePayload(&p); err != nil {
		return err
	}
	if p.Vote != negotiation.VoteYes && p.Vote != negotiation.VoteNo {
		return errValidation("vote must be YES or NO")
	}
	return s.recordVote(issue, voter, p.Vote)
}

func (s *step) handleResolutionContinue() error {
	if err := s.requireStatus(negotiation.StatusIssueResolution); err != nil {
		return err
	}
	st := s.state
	st.Round3.ActiveIssue = nil
	st.Round3.ActiveIssueIndex = nil
	if len(st.Round3.ClosedIssues) < len(st.Round3.Issues) {
		st.Status = negotiation.StatusRound3Setup
	} else {
		st.Status = negotiation.StatusReview
	}
	return nil
}

func (s *step) aiDebateSpeech() error {
	st := s.state
	issue := st.Round3.ActiveIssue
	speaker, err := s.debateSpeaker(issue)
	if err != nil {
		return err
	}
	if st.IsHuman(speaker) {
		return errPrecondition("the human delegation speaks next, send HUMAN_DEBATE_MESSAGE")
	}

	var speech string
	if s.engine.cfg != nil && s.engine.cfg.Round3DebateLLM {
		speech, err = s.llmDebateSpeech(issue, speaker)
		if err != nil {
			return err
		}
	} else {
		speech = s.templateSpeech(issue, speaker)
	}
	return s.recordSpeech(issue, speaker, speech)
}

// recordSpeech writes the speech row, applies the speaker's own stance
// shift, and advances the debate cursor (rolling into round two or on to
// position finalization when a queue is exhausted).
func (s *step) recordSpeech(issue *negotiation.ActiveIssue, speaker, text string) error {
	st := s.state
	meta := map[string]any{
		"issue_id":      issue.IssueID,
		"speech_number": issue.SpeechNumber(),
		"debate_round":  issue.DebateRound,
	}
	if _, err := s.writeRow(speaker, st.Status, intPtr(3), strPtr(issue.IssueID), true, text, meta); err != nil {
		return err
	}

	_, catalog, err := s.issues()
	if err != nil {
		return err
	}
	reasons := negotiation.ApplyStanceShift(speaker, 3, issue.IssueID, text, st.Stances[speaker], catalog)
	st.Round3.StanceLog = append(st.Round3.StanceLog, reasons...)

	issue.DebateCursor++
	if issue.DebateCursor < len(issue.DebateQueue) {
		return nil
	}
	if issue.DebateRound == 1 {
		human := ""
		if st.HumanRoleID != nil {
			human = *st.HumanRoleID
		}
		issue.DebateQueue = negotiation.DebateQueue(s.game.Seed, issue.IssueID, 2, human, issue.HumanPlacement)
		issue.DebateRound = 2
		issue.DebateCursor = 0
		st.Status = negotiation.StatusIssueDebateRound2
	} else {
		st.Status = negotiation.StatusIssueFinalization
	}
	return nil
}

func (s *step) proposalSelection() error {
	st := s.state
	issue := st.Round3.ActiveIssue
	if issue == nil {
		return errPrecondition("no issue is on the floor")
	}
	issue.ProposedOptionID = negotiation.ProposeOption(issue.Options, issue.IssueID, st.Stances)

	content, err := s.chairScript(ScriptProposal, map[string]string{"option_id": issue.ProposedOptionID})
	if err != nil {
		return err
	}
	meta := map[string]any{"issue_id": issue.IssueID, "option_id": issue.ProposedOptionID}
	if _, err := s.writeRow(negotiation.RoleChair, issueProposalPhase, intPtr(3), strPtr(issue.IssueID), true, content, meta); err != nil {
		return err
	}

	issue.VoteOrder = append([]string(nil), negotiation.VoteOrder...)
	issue.NextVoterIndex = 0
	issue.Votes = map[string]string{}
	st.Status = negotiation.StatusIssueVote
	return nil
}

func (s *step) aiVote() error {
	st := s.state
	issue := st.Round3.ActiveIssue
	voter, err := s.nextVoter(issue)
	if err != nil {
		return err
	}
	if st.IsHuman(voter) {
		return errPrecondition("the human delegation votes next, send HUMAN_VOTE")
	}
	vote := negotiation.CountryVote(st.Stances, voter, issue.IssueID, issue.ProposedOptionID)
	return s.recordVote(issue, voter, vote)
}

// recordVote writes one roll-call row; after the sixth vote it closes the
// issue: votes row, resolution, and the move to ISSUE_RESOLUTION.
func (s *step) recordVote(issue *negotiation.ActiveIssue, voter, vote string) error {
	st := s.state
	content := fmt.Sprintf("%s votes %s.", negotiation.RoleName(voter), vote)
	meta := map[string]any{"issue_id": issue.IssueID, "vote": vote}
	if _, err := s.writeRow(voter, negotiation.StatusIssueVote, intPtr(3), strPtr(issue.IssueID), true, content, meta); err != nil {
		return err
	}
	issue.Votes[voter] = vote
	issue.NextVoterIndex++
	if issue.NextVoterIndex < len(issue.VoteOrder) {
		return nil
	}

	canonical := negotiation.CanonicalVotes(issue.Votes)
	passed := negotiation.Unanimous(canonical)
	record := &model.Vote{
		GameID:           s.game.ID,
		IssueID:          issue.IssueID,
		ProposalOptionID: issue.ProposedOptionID,
		VotesByCountry:   canonical,
		Passed:           passed,
	}
	if err := s.tx.InsertVote(s.ctx, record); err != nil {
		return errInternal(err, "insert vote record")
	}
	issue.Resolution = &negotiation.Resolution{Passed: passed, OptionID: issue.ProposedOptionID}
	st.Round3.ClosedIssues = append(st.Round3.ClosedIssues, issue.IssueID)
	st.Status = negotiation.StatusIssueResolution
	return nil
}

// resolutionRow announces the outcome. Re-sending the event is a no-op,
// so no duplicate announcement and no extra checkpoint.
func (s *step) resolutionRow() error {
	st := s.state
	issue := st.Round3.ActiveIssue
	if issue == nil || issue.Resolution == nil {
		return errPrecondition("no resolved issue on the floor")
	}
	if issue.ResolutionWritten {
		return nil
	}
	key := ScriptVoteResultFail
	if issue.Resolution.Passed {
		key = ScriptVoteResultPass
	}
	content, err := s.chairScript(key, map[string]string{
		"issue_id":  issue.IssueID,
		"option_id": issue.Resolution.OptionID,
	})
	if err != nil {
		return err
	}
	meta := map[string]any{"issue_id": issue.IssueID, "passed": issue.Resolution.Passed}
	if _, err := s.writeRow(negotiation.RoleChair, negotiation.StatusIssueResolution, intPtr(3), strPtr(issue.IssueID), true, content, meta); err != nil {
		return err
	}
	issue.ResolutionWritten = true
	return nil
}

func (s *step) debateSpeaker(issue *negotiation.ActiveIssue) (string, error) {
	if issue == nil {
		return "", errPrecondition("no issue is on the floor")
	}
	if issue.DebateCursor >= len(issue.DebateQueue) {
		return "", errPrecondition("debate queue exhausted")
	}
	return issue.DebateQueue[issue.DebateCursor], nil
}

func (s *step) nextVoter(issue *negotiation.ActiveIssue) (string, error) {
	if issue == nil {
		return "", errPrecondition("no issue is on the floor")
	}
	if issue.NextVoterIndex >= len(issue.VoteOrder) {
		return "", errPrecondition("roll call already complete")
	}
	return issue.VoteOrder[issue.NextVoterIndex], nil
}

// templateSpeech is the deterministic stand-in used when round-3 LLM
// speeches are disabled.
func (s *step) templateSpeech(issue *negotiation.ActiveIssue, speaker string) string {
	option := ""
	if stance := s.state.Stances[speaker][issue.IssueID]; stance != nil && stance.Preferred != nil {
		option = *stance.Preferred
	}
	if option == "" && len(issue.Options) > 0 {
		option = issue.Options[0].OptionID
	}
	return fmt.Sprintf("The delegation of %s reaffirms its position on issue %s and asks the plenary to consider option %s.",
		negotiation.RoleName(speaker), issue.IssueID, option)
}

func (s *step) llmDebateSpeech(issue *negotiation.ActiveIssue, speaker string) (string, error) {
	rows, err := s.tx.Transcript(s.ctx, s.game.ID, repository.TranscriptFilter{IssueID: issue.IssueID}, 0)
	if err != nil {
		return "", errInternal(err, "load debate tail")
	}
	tail := make([]prompt.DebateTailEntry, 0, len(rows))
	for _, row := range rows {
		if !strings.HasPrefix(row.Phase, "ISSUE_DEBATE_") {
			continue
		}
		tail = append(tail, prompt.DebateTailEntry{
			RoleID:   row.RoleID,
			RoleName: negotiation.RoleName(row.RoleID),
			Text:     row.Content,
		})
	}

	built, err := prompt.BuildRound3(prompt.Round3Input{
		Issue:       issue,
		SpeakerRole: speaker,
		OpeningText: s.state.Round1.Openings[speaker].Text,
		Stance:      s.state.Stances[speaker][issue.IssueID],
		DebateTail:  tail,
	})
	if err != nil {
		return "", errInternal(err, "build debate prompt")
	}
	return s.generate(speaker, built.Version, built.Text, map[string]any{
		"speech_number": issue.SpeechNumber(),
		"debate_round":  issue.DebateRound,
		"issue_id":      issue.IssueID,
		"speaker_role":  speaker,
		"context":       built.Context,
	})
}
