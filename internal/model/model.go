package model

import (
	"encoding/json"
	"time"
)

// User represents a (possibly anonymous) participant account.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Game represents one simulation run. State is the authoritative state
// blob for the run; it is served through the state endpoint, never
// embedded in game summaries.
type Game struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	HumanRoleID *string         `json:"human_role_id"`
	Status      string          `json:"status"`
	Seed        int64           `json:"seed"`
	State       json.RawMessage `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TranscriptEntry is one append-only line of the plenary record. Metadata
// carries the stable intra-timestamp ordering index plus per-phase keys
// (sender, convo, issue_id, vote, speech_number, interrupt, ...).
type TranscriptEntry struct {
	ID             string          `json:"id"`
	GameID         string          `json:"game_id"`
	RoleID         string          `json:"role_id"`
	Phase          string          `json:"phase"`
	Round          *int            `json:"round,omitempty"`
	IssueID        *string         `json:"issue_id,omitempty"`
	VisibleToHuman bool            `json:"visible_to_human"`
	Content        string          `json:"content"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Checkpoint is a durable snapshot of the state blob, bound to the last
// transcript row of the step that produced it (nil for the creation
// checkpoint).
type Checkpoint struct {
	ID                string          `json:"id"`
	GameID            string          `json:"game_id"`
	TranscriptEntryID *string         `json:"transcript_entry_id"`
	Status            string          `json:"status"`
	StateSnapshot     json.RawMessage `json:"state_snapshot"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Vote is the per-issue roll-call outcome, written once after the sixth
// country votes.
type Vote struct {
	ID               string            `json:"id"`
	GameID           string            `json:"game_id"`
	IssueID          string            `json:"issue_id"`
	ProposalOptionID string            `json:"proposed_option_id"`
	VotesByCountry   map[string]string `json:"votes_by_country"`
	Passed           bool              `json:"passed"`
	CreatedAt        time.Time         `json:"created_at"`
}

// LLMTrace audits one generation attempt, successful or failed.
type LLMTrace struct {
	ID              string          `json:"id"`
	GameID          string          `json:"game_id"`
	RoleID          string          `json:"role_id"`
	Status          string          `json:"status"`
	Provider        string          `json:"provider"`
	Model           string          `json:"model"`
	PromptVersion   string          `json:"prompt_version"`
	RequestPayload  json.RawMessage `json:"request_payload"`
	ResponsePayload json.RawMessage `json:"response_payload,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// OpeningVariant is a seeded candidate opening statement for a role.
type OpeningVariant struct {
	ID             string          `json:"id"`
	RoleID         string          `json:"role_id"`
	OpeningText    string          `json:"opening_text"`
	InitialStances json.RawMessage `json:"initial_stances,omitempty"`
}

// IssueDefinition is a seeded issue on the plenary agenda.
type IssueDefinition struct {
	IssueID  string        `json:"issue_id"`
	Title    string        `json:"title"`
	UIPrompt string        `json:"ui_prompt,omitempty"`
	Options  []IssueOption `json:"options"`
}

// IssueOption is one decision option of an issue definition.
type IssueOption struct {
	OptionID  string `json:"option_id"`
	Label     string `json:"label"`
	ShortText string `json:"short_text,omitempty"`
}

// ChairScript is a seeded template line spoken by the chair.
type ChairScript struct {
	ScriptKey string `json:"script_key"`
	Template  string `json:"template"`
}
