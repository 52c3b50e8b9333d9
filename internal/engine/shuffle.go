package engine

import "math/rand"

// ShufflePhrases returns the three phraseset phrases in a random per-voter
// order, plus the index the original phrase landed at, so VoteService can
// compute Vote.Correct from the voter's chosen index without re-deriving
// the mapping later (spec.md §3 Round: "three phrases in the per-voter
// shuffle order chosen at issue").
func ShufflePhrases(original, copy1, copy2 string) (phrases [3]string, originalIndex int) {
	phrases = [3]string{original, copy1, copy2}
	rand.Shuffle(len(phrases), func(i, j int) {
		phrases[i], phrases[j] = phrases[j], phrases[i]
	})
	for i, p := range phrases {
		if p == original {
			originalIndex = i
			break
		}
	}
	return phrases, originalIndex
}
