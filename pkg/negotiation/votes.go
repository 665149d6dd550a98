package negotiation

// VoteYes and VoteNo are the only legal roll-call values.
const (
	VoteYes = "YES"
	VoteNo  = "NO"
)

// AcceptanceThreshold is the minimum acceptance at which an AI country
// votes YES on the proposed option.
const AcceptanceThreshold = 0.7

// ProposeOption picks the option the chair puts to a vote: the one with
// the highest summed country acceptance (null and missing count as zero),
// ties broken by the lexicographically smallest option ID. Options are
// considered in sorted-ID order, so the first strict maximum wins.
func ProposeOption(options []IssueOption, issueID string, stances map[string]RoleStances) string {
	best := ""
	bestSupport := -1.0
	for _, opt := range options {
		support := 0.0
		for _, country := range Countries {
			support += acceptanceOf(stances, country, issueID, opt.OptionID)
		}
		if support > bestSupport || (support == bestSupport && (best == "" || opt.OptionID < best)) {
			best = opt.OptionID
			bestSupport = support
		}
	}
	return best
}

// CountryVote computes an AI country's roll-call vote on the proposed
// option.
func CountryVote(stances map[string]RoleStances, country, issueID, optionID string) string {
	if acceptanceOf(stances, country, issueID, optionID) >= AcceptanceThreshold {
		return VoteYes
	}
	return VoteNo
}

// CanonicalVotes re-materializes a vote mapping in VOTE_ORDER, dropping
// anything that is not a country.
func CanonicalVotes(votes map[string]string) map[string]string {
	out := make(map[string]string, len(VoteOrder))
	for _, country := range VoteOrder {
		if v, ok := votes[country]; ok {
			out[country] = v
		}
	}
	return out
}

// Unanimous reports whether all six countries voted YES.
func Unanimous(votes map[string]string) bool {
	if len(votes) != len(VoteOrder) {
		return false
	}
	for _, country := range VoteOrder {
		if votes[country] != VoteYes {
			return false
		}
	}
	return true
}

func acceptanceOf(stances map[string]RoleStances, roleID, issueID, optionID string) float64 {
	rs, ok := stances[roleID]
	if !ok {
		return 0
	}
	stance, ok := rs[issueID]
	if !ok || stance == nil || stance.Acceptance == nil {
		return 0
	}
	v := stance.Acceptance[optionID]
	if v == nil {
		return 0
	}
	return *v
}
