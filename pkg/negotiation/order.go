package negotiation

// HumanPlacement controls where the human sits in a Round-3 debate queue.
type HumanPlacement string

const (
	PlacementFirst  HumanPlacement = "first"
	PlacementRandom HumanPlacement = "random"
	PlacementSkip   HumanPlacement = "skip"
)

// ValidPlacement reports whether p is one of first/random/skip.
func ValidPlacement(p HumanPlacement) bool {
	return p == PlacementFirst || p == PlacementRandom || p == PlacementSkip
}

// SpeakerOrder builds the Round-1 opening order: countries shuffled with
// the round1-countries salt, NGOs with round1-ngos, countries first. If
// the human ended up leading its subgroup, positions 0 and 1 of that
// subgroup swap so the human never opens the round.
func SpeakerOrder(seed int64, humanRoleID string) []string {
	countries := ShuffledCopy(seed, SaltRound1Countries, Countries)
	ngos := ShuffledCopy(seed, SaltRound1NGOs, NGOs)
	nudge(countries, humanRoleID)
	nudge(ngos, humanRoleID)
	return append(countries, ngos...)
}

func nudge(group []string, humanRoleID string) {
	if humanRoleID == "" || len(group) < 2 {
		return
	}
	if group[0] == humanRoleID {
		group[0], group[1] = group[1], group[0]
	}
}

// DebateQueue builds the per-issue, per-round speaking queue: countries in
// alphabetical order, then NGOs. The human's subgroup is reshaped by
// placement: first puts the human at the front, skip removes it, random
// inserts it at StableInt(seed, "{issue}-{group}-{round}") mod (n+1)
// among the remaining members. A chair human (not reachable through the
// API) would be removed outright.
func DebateQueue(seed int64, issueID string, debateRound int, humanRoleID string, placement HumanPlacement) []string {
	queue := placeInGroup(seed, issueID, "countries", debateRound, Countries, humanRoleID, placement)
	return append(queue, placeInGroup(seed, issueID, "ngos", debateRound, NGOs, humanRoleID, placement)...)
}

func placeInGroup(seed int64, issueID, group string, debateRound int, members []string, humanRoleID string, placement HumanPlacement) []string {
	out := make([]string, 0, len(members))
	humanPresent := false
	for _, m := range members {
		if m == humanRoleID {
			humanPresent = true
			continue
		}
		out = append(out, m)
	}
	if !humanPresent || placement == PlacementSkip {
		return out
	}
	switch placement {
	case PlacementFirst:
		return append([]string{humanRoleID}, out...)
	default:
		salt := DebateSalt(issueID, group, debateRound)
		pos := int(StableInt(seed, salt) % uint64(len(out)+1))
		out = append(out, "")
		copy(out[pos+1:], out[pos:])
		out[pos] = humanRoleID
		return out
	}
}
