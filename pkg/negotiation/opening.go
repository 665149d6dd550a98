package negotiation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// OpeningVariant is one candidate opening statement for a role, loaded
// from seed data.
type OpeningVariant struct {
	ID             string
	RoleID         string
	OpeningText    string
	InitialStances json.RawMessage
}

// PickOpeningVariant chooses one of the role's candidate variants. The
// candidates are ordered by (id, opening_text) and the pick is a uniform
// draw from the generator seeded with the opening-{role} salt, so the
// same game always reads the same opening.
func PickOpeningVariant(roleID string, seed int64, candidates []OpeningVariant) (OpeningVariant, error) {
	if len(candidates) == 0 {
		return OpeningVariant{}, fmt.Errorf("no opening variants available for role %s", roleID)
	}
	ordered := make([]OpeningVariant, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ID != ordered[j].ID {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].OpeningText < ordered[j].OpeningText
	})
	g := newMT19937(StableInt(seed, OpeningSalt(roleID)))
	return ordered[g.choice(len(ordered))], nil
}

// variantStances is the stance package shape carried by opening variants.
// Issue keys may be bare ("1") or prefixed ("ISSUE_1").
type variantStances struct {
	ByIssueID map[string]variantIssueStance `json:"by_issue_id"`
}

type variantIssueStance struct {
	Acceptance map[string]*float64 `json:"acceptance"`
	Preferred  *string             `json:"preferred"`
	Firmness   *float64            `json:"firmness"`
}

// MergeInitialStances folds a variant's stance package into the role's
// stances. Existing acceptance entries are never overwritten, whether
// numeric or null; a preferred option without an acceptance entry gets
// acceptance 0.7.
func (s *State) MergeInitialStances(roleID string, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var pkg variantStances
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return
	}
	issueMap := pkg.ByIssueID
	if issueMap == nil {
		// Flat shape: issue keys at the top level.
		if err := json.Unmarshal(raw, &issueMap); err != nil {
			return
		}
	}
	s.EnsureDefaultStances()
	roleStances := s.Stances[roleID]
	if roleStances == nil {
		roleStances = RoleStances{}
		s.Stances[roleID] = roleStances
	}
	for issueKey, data := range issueMap {
		issueID := normalizeIssueID(issueKey)
		stance, ok := roleStances[issueID]
		if !ok {
			stance = &IssueStance{Acceptance: map[string]*float64{}, Firmness: DefaultFirmness}
			roleStances[issueID] = stance
		}
		if stance.Acceptance == nil {
			stance.Acceptance = map[string]*float64{}
		}
		for optID, val := range data.Acceptance {
			if _, exists := stance.Acceptance[optID]; exists {
				continue
			}
			if val == nil {
				stance.Acceptance[optID] = nil
			} else {
				v := clamp01(*val)
				stance.Acceptance[optID] = &v
			}
		}
		if data.Firmness != nil {
			stance.Firmness = clamp01(*data.Firmness)
		}
		if stance.Preferred == nil && data.Preferred != nil {
			p := *data.Preferred
			stance.Preferred = &p
			if _, exists := stance.Acceptance[p]; !exists {
				v := 0.7
				stance.Acceptance[p] = &v
			}
		}
	}
}

func normalizeIssueID(key string) string {
	if strings.HasPrefix(key, "ISSUE_") {
		return strings.SplitN(key, "_", 2)[1]
	}
	return key
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
