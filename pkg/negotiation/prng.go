package negotiation

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Salts used for the deterministic draws. Every shuffled or chosen value
// in a game derives from (seed, salt) so that replaying a game with the
// same seed reproduces it exactly.
const (
	SaltRound1Countries = "round1-countries"
	SaltRound1NGOs      = "round1-ngos"
)

// OpeningSalt is the salt for a role's opening-variant pick.
func OpeningSalt(roleID string) string {
	return "opening-" + roleID
}

// DebateSalt is the salt for one group's debate-queue shuffle in one
// debate round of an issue.
func DebateSalt(issueID, group string, debateRound int) string {
	return fmt.Sprintf("%s-%s-%d", issueID, group, debateRound)
}

// StableInt derives a 63-bit integer from the game seed and a salt:
// SHA-256 of "{seed}:{salt}" reduced modulo 2^63. The reduction takes the
// low 63 bits of the digest read as a big-endian 256-bit integer.
func StableInt(seed int64, salt string) uint64 {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", seed, salt)))
	return binary.BigEndian.Uint64(sum[24:32]) & (1<<63 - 1)
}

// ShuffledCopy returns a new slice holding xs shuffled with the generator
// derived from (seed, salt).
func ShuffledCopy(seed int64, salt string, xs []string) []string {
	out := make([]string, len(xs))
	copy(out, xs)
	g := newMT19937(StableInt(seed, salt))
	g.shuffle(out)
	return out
}

// StableChoice returns a deterministic index into a sequence of length n
// for (seed, salt). n must be positive.
func StableChoice(seed int64, salt string, n int) int {
	g := newMT19937(StableInt(seed, salt))
	return g.choice(n)
}
