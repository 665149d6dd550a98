// Package prompt assembles the versioned LLM prompts. Prompt versions
// are part of the external contract: they are written into llm_traces
// and consumed by downstream analysis, so changing the assembled shape
// requires a new version string.
package prompt

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/freeeve/mercury-council/api/internal/model"
	"github.com/freeeve/mercury-council/api/pkg/negotiation"
)

// Prompt versions.
const (
	VersionRound2Convo   = "r2_convo_v3"
	VersionRound3Speech  = "r3_debate_speech_v1"
	maxTranscriptTail    = 10
	maxIssues            = 4
	maxOptionsPerIssue   = 8
	maxDebateTail        = 8
	maxDebateTailSnippet = 240
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	r2Instructions = mustTemplate("templates/r2_convo_instructions.txt")
	r3Instructions = mustTemplate("templates/r3_debate_instructions.txt")
)

func mustTemplate(name string) string {
	raw, err := templateFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("prompt template %s: %v", name, err))
	}
	return strings.TrimSpace(string(raw))
}

// Built is an assembled prompt plus the structured context that went
// into it.
type Built struct {
	Version string
	Text    string
	Context map[string]any
}

// TailEntry is one row of the Round-2 transcript tail.
type TailEntry struct {
	RoleID  string
	Content string
}

// Round2Input collects everything the Round-2 conversation prompt needs.
type Round2Input struct {
	PartnerRole      string
	HumanRole        string
	HumanContent     string
	HumanOpeningText string
	// PartnerOpening is the partner's opening-variant stance package
	// (initial_stances plus conversation_interests), verbatim seed JSON.
	PartnerOpening json.RawMessage
	TranscriptTail []TailEntry
	Issues         []model.IssueDefinition
}

// BuildRound2 assembles the r2_convo_v3 prompt: the per-role instruction
// template, a canonical-JSON context block, and the human message.
func BuildRound2(in Round2Input) (Built, error) {
	instructions := renderPlaceholders(r2Instructions, map[string]string{
		"ROLE":       in.PartnerRole,
		"HUMAN_ROLE": in.HumanRole,
	})

	tail := in.TranscriptTail
	if len(tail) > maxTranscriptTail {
		tail = tail[len(tail)-maxTranscriptTail:]
	}
	tailCtx := make([]any, 0, len(tail))
	for _, e := range tail {
		tailCtx = append(tailCtx, map[string]any{"role_id": e.RoleID, "content": e.Content})
	}

	issues := in.Issues
	if len(issues) > maxIssues {
		issues = issues[:maxIssues]
	}
	issueCtx := make([]any, 0, len(issues))
	for _, def := range issues {
		opts := def.Options
		if len(opts) > maxOptionsPerIssue {
			opts = opts[:maxOptionsPerIssue]
		}
		optCtx := make([]any, 0, len(opts))
		for _, o := range opts {
			optCtx = append(optCtx, map[string]any{"option_id": o.OptionID, "label": o.Label})
		}
		issueCtx = append(issueCtx, map[string]any{
			"issue_id": def.IssueID,
			"title":    def.Title,
			"options":  optCtx,
		})
	}

	context := map[string]any{
		"openings": map[string]any{
			"partner_role":       in.PartnerRole,
			"partner_opening":    partnerOpening(in.PartnerOpening),
			"human_opening_text": in.HumanOpeningText,
		},
		"transcript_tail": tailCtx,
		"issues":          issueCtx,
	}

	blob, err := canonicalJSON(context)
	if err != nil {
		return Built{}, fmt.Errorf("marshal round2 context: %w", err)
	}
	text := fmt.Sprintf("%s\n\nContext:\n%s\n\nHuman message:\n%s", instructions, blob, in.HumanContent)
	return Built{Version: VersionRound2Convo, Text: text, Context: context}, nil
}

// partnerOpening splits the opening-variant package into the two keys the
// prompt contract exposes. The package may or may not carry
// conversation_interests; both keys are always present in the context.
func partnerOpening(raw json.RawMessage) map[string]any {
	out := map[string]any{
		"initial_stances":        map[string]any{},
		"conversation_interests": []any{},
	}
	if len(raw) == 0 {
		return out
	}
	var pkg map[string]any
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return out
	}
	if interests, ok := pkg["conversation_interests"]; ok {
		out["conversation_interests"] = interests
		delete(pkg, "conversation_interests")
	}
	out["initial_stances"] = pkg
	return out
}

// DebateTailEntry is one row of the Round-3 debate tail.
type DebateTailEntry struct {
	RoleID   string
	RoleName string
	Text     string
}

// Round3Input collects everything the Round-3 debate speech prompt needs.
type Round3Input struct {
	Issue       *negotiation.ActiveIssue
	SpeakerRole string
	OpeningText string
	Stance      *negotiation.IssueStance
	DebateTail  []DebateTailEntry
}

// BuildRound3 assembles the r3_debate_speech_v1 prompt for one AI debate
// intervention.
func BuildRound3(in Round3Input) (Built, error) {
	instructions := renderPlaceholders(r3Instructions, map[string]string{
		"ROLE": negotiation.RoleName(in.SpeakerRole),
	})

	opts := make([]any, 0, len(in.Issue.Options))
	for _, o := range in.Issue.Options {
		opts = append(opts, map[string]any{"id": o.OptionID, "label": o.Label, "short_text": o.ShortText})
	}

	tail := in.DebateTail
	if len(tail) > maxDebateTail {
		tail = tail[len(tail)-maxDebateTail:]
	}
	tailCtx := make([]any, 0, len(tail))
	for _, e := range tail {
		tailCtx = append(tailCtx, map[string]any{
			"role_id":      e.RoleID,
			"role_name":    e.RoleName,
			"text_snippet": snippet(e.Text, maxDebateTailSnippet),
		})
	}

	context := map[string]any{
		"active_issue": map[string]any{
			"id":      in.Issue.IssueID,
			"title":   in.Issue.IssueTitle,
			"options": opts,
		},
		"speech_slot": map[string]any{
			"speech_number": in.Issue.SpeechNumber(),
			"debate_round":  in.Issue.DebateRound,
		},
		"speaker": map[string]any{
			"role_id":   in.SpeakerRole,
			"role_name": negotiation.RoleName(in.SpeakerRole),
			"is_human":  false,
		},
		"speaker_opening_summary":       firstSentence(in.OpeningText),
		"speaker_issue_stance_snapshot": stanceSnapshot(in.Stance),
		"debate_transcript_tail":        tailCtx,
	}

	blob, err := canonicalJSON(context)
	if err != nil {
		return Built{}, fmt.Errorf("marshal round3 context: %w", err)
	}
	text := fmt.Sprintf("%s\n\nContext:\n%s", instructions, blob)
	return Built{Version: VersionRound3Speech, Text: text, Context: context}, nil
}

func stanceSnapshot(stance *negotiation.IssueStance) map[string]any {
	snap := map[string]any{
		"preferred":  nil,
		"firmness":   negotiation.DefaultFirmness,
		"acceptance": map[string]any{},
		"conditions": []any{},
	}
	if stance == nil {
		return snap
	}
	if stance.Preferred != nil {
		snap["preferred"] = *stance.Preferred
	}
	snap["firmness"] = stance.Firmness
	acc := map[string]any{}
	for opt, v := range stance.Acceptance {
		if v == nil {
			acc[opt] = nil
		} else {
			acc[opt] = *v
		}
	}
	snap["acceptance"] = acc
	if stance.Conditions != nil {
		conds := make([]any, 0, len(stance.Conditions))
		for _, c := range stance.Conditions {
			conds = append(conds, c)
		}
		snap["conditions"] = conds
	}
	return snap
}

// canonicalJSON renders v compactly with object keys sorted, which is
// what encoding/json does for maps.
func canonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// renderPlaceholders substitutes {KEY} markers, leaving unknown markers
// intact.
func renderPlaceholders(template string, values map[string]string) string {
	out := template
	for k, v := range values {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// firstSentence returns text up to and including the first sentence
// terminator.
func firstSentence(text string) string {
	trimmed := strings.TrimSpace(text)
	for i, r := range trimmed {
		if r == '.' || r == '!' || r == '?' {
			return trimmed[:i+1]
		}
	}
	return trimmed
}

func snippet(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max]
}
