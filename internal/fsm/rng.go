package fsm

import (
	"hash/fnv"
	"math/rand/v2"
)

// roundSeed derives a deterministic 128-bit seed from (gameId, round) so a
// transition sequence — in particular the speaking-order shuffle and
// lowest-vote tiebreaks — is replayable (REDESIGN FLAGS item 6: no ambient
// randomness anywhere in the machine).
func roundSeed(gameID string, round int) (uint64, uint64) {
	h1 := fnv.New64a()
	h1.Write([]byte(gameID))
	h1.Write([]byte{byte(round), byte(round >> 8), byte(round >> 16), byte(round >> 24)})
	seed1 := h1.Sum64()

	h2 := fnv.New64a()
	h2.Write([]byte{'#'})
	h2.Write([]byte(gameID))
	h2.Write([]byte{byte(round), byte(round >> 8)})
	seed2 := h2.Sum64()

	return seed1, seed2
}

// NewRoundRNG returns a *rand.Rand seeded deterministically from gameID and
// round. Two machines given the same (gameID, round) produce identical
// shuffles and tiebreaks.
func NewRoundRNG(gameID string, round int) *rand.Rand {
	s1, s2 := roundSeed(gameID, round)
	return rand.New(rand.NewPCG(s1, s2))
}

// ShuffledNonEliminated returns a deterministic random permutation of ids,
// per the seeded rng.
func ShuffledNonEliminated(rng *rand.Rand, ids []string) []string {
	out := append([]string(nil), ids...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
