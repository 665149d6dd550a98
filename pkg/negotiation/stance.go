package negotiation

import "strings"

// Stance-shift constants. Deltas are applied per invocation; the MAX_*
// values bound the total movement a single trigger may cause.
const (
	MaxAcceptanceDelta       = 0.10
	MaxFirmnessDelta         = 0.05
	AcceptanceDeltaOnMention = 0.05
	FirmnessDeltaOnMention   = 0.02
	TriggerSnippetLen        = 80
)

// Shift rule identifiers recorded in stance logs.
const (
	RuleOptionMention = "option_mention_acceptance_increase"
	RuleIssueMention  = "issue_mention_firmness_increase"
)

// ShiftReason records one stance mutation for the append-only stance log.
type ShiftReason struct {
	RoleID          string  `json:"role_id"`
	RoundID         int     `json:"round_id"`
	IssueID         string  `json:"issue_id"`
	OptionID        string  `json:"option_id,omitempty"`
	DeltaAcceptance float64 `json:"delta_acceptance,omitempty"`
	DeltaFirmness   float64 `json:"delta_firmness,omitempty"`
	Rule            string  `json:"rule"`
	Trigger         string  `json:"trigger"`
}

// IssueCatalog maps issue ID to its options, for mention matching.
type IssueCatalog map[string][]IssueOption

// ApplyStanceShift mutates one role's stances in response to a free-text
// trigger and returns the reasons for every change made.
//
// An issue is matched when its ID or any of its option IDs appears as a
// literal substring of the trigger. When issueID is non-empty only that
// issue is considered, otherwise all issues in the catalog. For each
// matched issue: every mentioned option that already has a non-null
// acceptance entry gains AcceptanceDeltaOnMention, and a mention of the
// issue ID itself adds FirmnessDeltaOnMention to firmness. Values clamp
// to [0,1]; null acceptance entries never change; no reason is emitted
// when a value did not move.
func ApplyStanceShift(roleID string, roundID int, issueID, trigger string, stances RoleStances, catalog IssueCatalog) []ShiftReason {
	var reasons []ShiftReason
	snippet := trigger
	if len(snippet) > TriggerSnippetLen {
		snippet = snippet[:TriggerSnippetLen]
	}

	for _, matched := range matchedIssueIDs(issueID, trigger, catalog) {
		stance, ok := stances[matched]
		if !ok || stance == nil || stance.Acceptance == nil {
			continue
		}
		acceptDelta := AcceptanceDeltaOnMention
		if acceptDelta > MaxAcceptanceDelta {
			acceptDelta = MaxAcceptanceDelta
		}
		for _, opt := range catalog[matched] {
			cur, exists := stance.Acceptance[opt.OptionID]
			if !exists || cur == nil {
				continue
			}
			if !contains(trigger, opt.OptionID) {
				continue
			}
			newVal := clamp01(*cur + acceptDelta)
			if newVal == *cur {
				continue
			}
			delta := newVal - *cur
			v := newVal
			stance.Acceptance[opt.OptionID] = &v
			reasons = append(reasons, ShiftReason{
				RoleID:          roleID,
				RoundID:         roundID,
				IssueID:         matched,
				OptionID:        opt.OptionID,
				DeltaAcceptance: delta,
				Rule:            RuleOptionMention,
				Trigger:         snippet,
			})
		}

		if contains(trigger, matched) {
			firmDelta := FirmnessDeltaOnMention
			if firmDelta > MaxFirmnessDelta {
				firmDelta = MaxFirmnessDelta
			}
			newVal := clamp01(stance.Firmness + firmDelta)
			if newVal != stance.Firmness {
				delta := newVal - stance.Firmness
				stance.Firmness = newVal
				reasons = append(reasons, ShiftReason{
					RoleID:        roleID,
					RoundID:       roundID,
					IssueID:       matched,
					DeltaFirmness: delta,
					Rule:          RuleIssueMention,
					Trigger:       snippet,
				})
			}
		}
	}
	return reasons
}

func matchedIssueIDs(issueID, trigger string, catalog IssueCatalog) []string {
	issueMentioned := func(id string) bool {
		if contains(trigger, id) {
			return true
		}
		for _, opt := range catalog[id] {
			if contains(trigger, opt.OptionID) {
				return true
			}
		}
		return false
	}
	if issueID != "" {
		if issueMentioned(issueID) {
			return []string{issueID}
		}
		return nil
	}
	var matched []string
	for _, id := range IssueIDs {
		if _, ok := catalog[id]; !ok {
			continue
		}
		if issueMentioned(id) {
			matched = append(matched, id)
		}
	}
	return matched
}

func contains(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}
