package engine

// Tally holds the per-phrase vote counts feeding a phraseset's payout
// computation (spec.md §4.8).
type Tally struct {
	VotesOriginal int64
	VotesCopy1    int64
	VotesCopy2    int64
}

// Payouts is the per-contributor integer split; the floor-division
// remainder (rake) is implicit — PrizePool - (sum of payouts).
type Payouts struct {
	Original int64
	Copy1    int64
	Copy2    int64
}

// ScorePhraseset is ScoringEngine: a pure function from vote tallies, the
// total pool and the correct-vote payout to per-contributor prizes.
// Copies are weighted 2x, the original 1x, in proportion to prize_pool
// after deducting what correct voters were already paid.
func ScorePhraseset(t Tally, totalPool int64, correctVotePayout int64) Payouts {
	prizePool := totalPool - t.VotesOriginal*correctVotePayout

	pointsOriginal := t.VotesOriginal * 1
	pointsCopy1 := t.VotesCopy1 * 2
	pointsCopy2 := t.VotesCopy2 * 2
	total := pointsOriginal + pointsCopy1 + pointsCopy2

	if total == 0 {
		share := totalPool / 3
		return Payouts{Original: share, Copy1: share, Copy2: share}
	}

	return Payouts{
		Original: pointsOriginal * prizePool / total,
		Copy1:    pointsCopy1 * prizePool / total,
		Copy2:    pointsCopy2 * prizePool / total,
	}
}
