package service

import "strings"

// Chair script keys seeded in japan_scripts.
const (
	ScriptRound1Open     = "R1_OPEN"
	ScriptCallSpeaker    = "R1_CALL_SPEAKER"
	ScriptIssueIntro     = "ISSUE_INTRO"
	ScriptProposal       = "PROPOSAL"
	ScriptVoteResultPass = "VOTE_RESULT_PASS"
	ScriptVoteResultFail = "VOTE_RESULT_FAIL"
)

// Chair lines not sourced from seed data.
const (
	chairRound2Open      = "The plenary now recesses for private bilateral negotiations. Each delegation may hold up to two meetings."
	chairConvoStarted    = "Private negotiation started with %s."
	chairConvoInterrupt  = "The Chair interrupts: please bring your private negotiations to a close."
	chairConvoConcluded  = "Private negotiations concluded."
	chairConvo2Skipped   = "Second private negotiation skipped."
	chairRound2Close     = "The plenary reconvenes in full session."
	chairDebateFloorOpen = "The floor is open for debate on issue %s."
)

// RenderScript substitutes {key} placeholders in a chair template.
// Unknown placeholders stay intact.
func RenderScript(template string, values map[string]string) string {
	out := template
	for k, v := range values {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
