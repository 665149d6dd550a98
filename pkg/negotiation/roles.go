// Package negotiation implements the deterministic rules engine for the
// mercury-treaty plenary simulation: role and issue tables, the seeded
// PRNG contract, speaker ordering, opening-variant selection, and the
// stance-shift engine. Everything in this package is pure; persistence
// and transport live under internal/.
package negotiation

// Role identifiers. JPN chairs the plenary and is never selectable,
// never debates, and never votes.
const (
	RoleBRA = "BRA"
	RoleCAN = "CAN"
	RoleCHN = "CHN"
	RoleEU  = "EU"
	RoleTZA = "TZA"
	RoleUSA = "USA"

	RoleAMAP = "AMAP"
	RoleMFF  = "MFF"
	RoleWCPA = "WCPA"

	RoleChair = "JPN"
)

// Countries in canonical order. This is also the roll-call vote order.
var Countries = []string{RoleBRA, RoleCAN, RoleCHN, RoleEU, RoleTZA, RoleUSA}

// NGOs in canonical order.
var NGOs = []string{RoleAMAP, RoleMFF, RoleWCPA}

// VoteOrder is the fixed roll-call order for every issue vote.
var VoteOrder = Countries

// RoleNames maps role IDs to display names used in prompts and scripts.
var RoleNames = map[string]string{
	RoleBRA:   "Brazil",
	RoleCAN:   "Canada",
	RoleCHN:   "China",
	RoleEU:    "European Union",
	RoleTZA:   "Tanzania",
	RoleUSA:   "United States",
	RoleAMAP:  "Arctic Monitoring and Assessment Programme",
	RoleMFF:   "Mercury-Free Future",
	RoleWCPA:  "World Chlor-Alkali Producers Association",
	RoleChair: "Japan (Chair)",
}

// IssueIDs in plenary order.
var IssueIDs = []string{"1", "2", "3", "4"}

// IsCountry reports whether id is one of the six voting countries.
func IsCountry(id string) bool {
	for _, c := range Countries {
		if c == id {
			return true
		}
	}
	return false
}

// IsNGO reports whether id is one of the three observer NGOs.
func IsNGO(id string) bool {
	for _, n := range NGOs {
		if n == id {
			return true
		}
	}
	return false
}

// IsSelectableRole reports whether a human may play id.
func IsSelectableRole(id string) bool {
	return IsCountry(id) || IsNGO(id)
}

// RoleName returns the display name for id, falling back to the id itself.
func RoleName(id string) string {
	if n, ok := RoleNames[id]; ok {
		return n
	}
	return id
}
