package negotiation

import "encoding/json"

// Game statuses. The Game row's status column always mirrors
// State.Status.
const (
	StatusRoleSelection           = "ROLE_SELECTION"
	StatusRound1Setup             = "ROUND_1_SETUP"
	StatusRound1Opening           = "ROUND_1_OPENING_STATEMENTS"
	StatusRound2Setup             = "ROUND_2_SETUP"
	StatusRound2SelectConvo1      = "ROUND_2_SELECT_CONVO_1"
	StatusRound2ConversationLive  = "ROUND_2_CONVERSATION_ACTIVE"
	StatusRound2SelectConvo2      = "ROUND_2_SELECT_CONVO_2"
	StatusRound2WrapUp            = "ROUND_2_WRAP_UP"
	StatusRound3Setup             = "ROUND_3_SETUP"
	StatusIssueIntro              = "ISSUE_INTRO"
	StatusIssueDebateRound1       = "ISSUE_DEBATE_ROUND_1"
	StatusIssueDebateRound2       = "ISSUE_DEBATE_ROUND_2"
	StatusIssueFinalization       = "ISSUE_POSITION_FINALIZATION"
	StatusIssueProposalSelection  = "ISSUE_PROPOSAL_SELECTION"
	StatusIssueVote               = "ISSUE_VOTE"
	StatusIssueResolution         = "ISSUE_RESOLUTION"
	StatusReview                  = "REVIEW"
)

// Conversation lifecycle values.
const (
	ConvoActive = "ACTIVE"
	ConvoClosed = "CLOSED"

	ConvoPhaseOpen          = "OPEN"
	ConvoPhasePostInterrupt = "POST_INTERRUPT"
	ConvoPhaseClosed        = "CLOSED"
)

// ConvoTurnLimit is the number of human/AI exchanges before the chair
// interrupts; one further exchange is allowed afterwards.
const ConvoTurnLimit = 5

// State is the per-game state blob, persisted as JSON in game_state.
type State struct {
	Version     string                  `json:"version"`
	Status      string                  `json:"status"`
	HumanRoleID *string                 `json:"human_role_id"`
	Roles       map[string]RoleInfo     `json:"roles"`
	Round1      Round1State             `json:"round1"`
	Round2      Round2State             `json:"round2"`
	Round3      Round3State             `json:"round3"`
	Stances     map[string]RoleStances  `json:"stances"`
	Checkpoints []CheckpointRef         `json:"checkpoints"`
	GameID      string                  `json:"game_id,omitempty"`
	CreatedAt   string                  `json:"created_at,omitempty"`
	UpdatedAt   string                  `json:"updated_at,omitempty"`
}

// RoleInfo tags a role with its category: country, ngo, or chair.
type RoleInfo struct {
	Type string `json:"type"`
}

// Round1State tracks the opening-statement round.
type Round1State struct {
	SpeakerOrder []string           `json:"speaker_order"`
	Openings     map[string]Opening `json:"openings"`
	Cursor       int                `json:"cursor"`
}

// Opening is a role's selected (or, for the human, submitted) opening
// statement. InitialStances carries the variant's stance package verbatim
// for audit; the merged values live in State.Stances.
type Opening struct {
	VariantID      string          `json:"variant_id"`
	Text           string          `json:"text"`
	InitialStances json.RawMessage `json:"initial_stances,omitempty"`
}

// Round2State tracks the two private bilateral conversations.
type Round2State struct {
	ActiveConvoIndex *int          `json:"active_convo_index"`
	Convo1           *Conversation `json:"convo1,omitempty"`
	Convo2           *Conversation `json:"convo2,omitempty"`
	StanceLog        []ShiftReason `json:"stance_log"`
}

// Conversation is one bilateral negotiation between the human and an AI
// partner.
type Conversation struct {
	PartnerRole    string `json:"partner_role"`
	Status         string `json:"status"`
	Phase          string `json:"phase"`
	HumanTurnsUsed int    `json:"human_turns_used"`
	AITurnsUsed    int    `json:"ai_turns_used"`
	PostInterrupt  bool   `json:"post_interrupt"`
	FinalHumanSent bool   `json:"final_human_sent"`
	FinalAISent    bool   `json:"final_ai_sent"`
}

// MessageIndex is the stable ordering index for the next transcript row
// of this conversation. Human rows land on even slots, AI replies on odd
// slots; the interrupt, final exchange, and concluded notice continue the
// sequence.
func (c *Conversation) MessageIndex() int {
	idx := c.HumanTurnsUsed + c.AITurnsUsed
	if c.PostInterrupt {
		idx++
	}
	if c.FinalHumanSent {
		idx++
	}
	if c.FinalAISent {
		idx++
	}
	return idx
}

// HumanTurnAvailable reports whether the human may still send a message
// in this conversation.
func (c *Conversation) HumanTurnAvailable() bool {
	if c.Status != ConvoActive {
		return false
	}
	if c.PostInterrupt {
		return !c.FinalHumanSent
	}
	return c.HumanTurnsUsed < ConvoTurnLimit
}

// Round3State tracks the per-issue debate/vote/resolution cycle.
type Round3State struct {
	Issues           []string      `json:"issues"`
	ActiveIssueIndex *int          `json:"active_issue_index"`
	ActiveIssue      *ActiveIssue  `json:"active_issue"`
	ClosedIssues     []string      `json:"closed_issues"`
	StanceLog        []ShiftReason `json:"stance_log"`
}

// ActiveIssue is the issue currently on the floor.
type ActiveIssue struct {
	IssueID           string            `json:"issue_id"`
	IssueTitle        string            `json:"issue_title"`
	UIPrompt          string            `json:"ui_prompt,omitempty"`
	Options           []IssueOption     `json:"options"`
	DebateQueue       []string          `json:"debate_queue"`
	DebateCursor      int               `json:"debate_cursor"`
	DebateRound       int               `json:"debate_round"`
	HumanPlacement    HumanPlacement    `json:"human_placement_choice"`
	ProposedOptionID  string            `json:"proposed_option_id,omitempty"`
	VoteOrder         []string          `json:"vote_order,omitempty"`
	NextVoterIndex    int               `json:"next_voter_index"`
	Votes             map[string]string `json:"votes"`
	Resolution        *Resolution       `json:"resolution,omitempty"`
	ResolutionWritten bool              `json:"resolution_written"`
}

// SpeechNumber is the 1-based cumulative speech slot across both debate
// rounds of the issue. Queue lengths are equal across the two rounds.
func (a *ActiveIssue) SpeechNumber() int {
	return (a.DebateRound-1)*len(a.DebateQueue) + a.DebateCursor + 1
}

// IssueOption is one decision option of an issue.
type IssueOption struct {
	OptionID  string `json:"option_id"`
	Label     string `json:"label"`
	ShortText string `json:"short_text,omitempty"`
}

// Resolution records the outcome of an issue vote.
type Resolution struct {
	Passed   bool   `json:"passed"`
	OptionID string `json:"option_id"`
}

// RoleStances maps issue ID to the role's stance on that issue.
type RoleStances map[string]*IssueStance

// IssueStance holds a role's position on one issue. Acceptance values are
// in [0,1]; a nil entry is a permanent veto and never becomes numeric.
type IssueStance struct {
	Acceptance map[string]*float64 `json:"acceptance"`
	Firmness   float64             `json:"firmness"`
	Preferred  *string             `json:"preferred,omitempty"`
	Conditions []string            `json:"conditions,omitempty"`
}

// CheckpointRef is the state-echoed pointer to a persisted checkpoint.
type CheckpointRef struct {
	CheckpointID   string  `json:"checkpoint_id"`
	CreatedAt      string  `json:"created_at"`
	Status         string  `json:"status"`
	TranscriptUpto *string `json:"transcript_upto"`
}

// DefaultFirmness is the firmness every stance starts with before opening
// variants or mentions move it.
const DefaultFirmness = 0.5

// NewState builds the ROLE_SELECTION state for a fresh game.
func NewState() *State {
	roles := make(map[string]RoleInfo, len(Countries)+len(NGOs)+1)
	for _, c := range Countries {
		roles[c] = RoleInfo{Type: "country"}
	}
	for _, n := range NGOs {
		roles[n] = RoleInfo{Type: "ngo"}
	}
	roles[RoleChair] = RoleInfo{Type: "chair"}

	s := &State{
		Version: "v1",
		Status:  StatusRoleSelection,
		Roles:   roles,
		Round1:  Round1State{SpeakerOrder: []string{}, Openings: map[string]Opening{}},
		Round2:  Round2State{StanceLog: []ShiftReason{}},
		Round3: Round3State{
			Issues:       append([]string(nil), IssueIDs...),
			ClosedIssues: []string{},
			StanceLog:    []ShiftReason{},
		},
		Stances:     map[string]RoleStances{},
		Checkpoints: []CheckpointRef{},
	}
	s.EnsureDefaultStances()
	return s
}

// EnsureDefaultStances guarantees every role has a stance entry for every
// issue. Existing entries are untouched.
func (s *State) EnsureDefaultStances() {
	if s.Stances == nil {
		s.Stances = map[string]RoleStances{}
	}
	for roleID := range s.Roles {
		rs, ok := s.Stances[roleID]
		if !ok {
			rs = RoleStances{}
			s.Stances[roleID] = rs
		}
		for _, issueID := range IssueIDs {
			if _, ok := rs[issueID]; !ok {
				rs[issueID] = &IssueStance{Acceptance: map[string]*float64{}, Firmness: DefaultFirmness}
			}
		}
	}
}

// IsHuman reports whether roleID is the confirmed human role.
func (s *State) IsHuman(roleID string) bool {
	return s.HumanRoleID != nil && *s.HumanRoleID == roleID
}
