package engine

import "testing"

func TestScorePhraseset_HappyPath(t *testing.T) {
	// spec.md §8 scenario 1: 4 votes original, 3 copy1, 3 copy2, pool 300.
	got := ScorePhraseset(Tally{VotesOriginal: 4, VotesCopy1: 3, VotesCopy2: 3}, 300, 5)

	want := Payouts{Original: 70, Copy1: 105, Copy2: 105}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	rake := 300 - (got.Original + got.Copy1 + got.Copy2 + 4*5)
	if rake != 0 {
		t.Fatalf("expected zero rake, got %d", rake)
	}
}

func TestScorePhraseset_NoVotesSplitsEvenly(t *testing.T) {
	got := ScorePhraseset(Tally{}, 300, 5)
	want := Payouts{Original: 100, Copy1: 100, Copy2: 100}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestScorePhraseset_DiscountPool(t *testing.T) {
	// spec.md §8 scenario 3: total_pool = 310 under discount.
	got := ScorePhraseset(Tally{VotesOriginal: 2, VotesCopy1: 1, VotesCopy2: 1}, 310, 5)
	want := Payouts{Original: 100, Copy1: 100, Copy2: 100}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestScorePhraseset_Deterministic(t *testing.T) {
	tally := Tally{VotesOriginal: 6, VotesCopy1: 8, VotesCopy2: 6}
	first := ScorePhraseset(tally, 300, 5)
	for i := 0; i < 10; i++ {
		if ScorePhraseset(tally, 300, 5) != first {
			t.Fatalf("ScorePhraseset is not deterministic on iteration %d", i)
		}
	}
}

func TestScorePhraseset_RakeNeverNegative(t *testing.T) {
	cases := []Tally{
		{VotesOriginal: 20, VotesCopy1: 0, VotesCopy2: 0},
		{VotesOriginal: 0, VotesCopy1: 20, VotesCopy2: 0},
		{VotesOriginal: 7, VotesCopy1: 6, VotesCopy2: 7},
	}
	for _, tc := range cases {
		p := ScorePhraseset(tc, 300, 5)
		spent := p.Original + p.Copy1 + p.Copy2 + tc.VotesOriginal*5
		if spent > 300 {
			t.Fatalf("tally %+v overspent pool: %d > 300", tc, spent)
		}
	}
}
