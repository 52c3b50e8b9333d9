package domain

import "time"

type PhrasesetStatus string

const (
	PhrasesetOpen      PhrasesetStatus = "open"
	PhrasesetClosing   PhrasesetStatus = "closing"
	PhrasesetClosed    PhrasesetStatus = "closed"
	PhrasesetFinalized PhrasesetStatus = "finalized"
)

// Phraseset is created by the second successful copy submission (§3).
type Phraseset struct {
	ID              string          `db:"id" json:"phraseset_id"`
	PromptRoundID   string          `db:"prompt_round_id" json:"-"`
	CopyRound1ID    string          `db:"copy_round_1_id" json:"-"`
	CopyRound2ID    string          `db:"copy_round_2_id" json:"-"`
	PromptText      string          `db:"prompt_text" json:"prompt_text"`
	Original        string          `db:"original" json:"-"`
	Copy1           string          `db:"copy_1" json:"-"`
	Copy2           string          `db:"copy_2" json:"-"`
	Status          PhrasesetStatus `db:"status" json:"status"`
	VoteCount       int             `db:"vote_count" json:"vote_count"`
	ThirdVoteAt     *time.Time      `db:"third_vote_at" json:"third_vote_at,omitempty"`
	FifthVoteAt     *time.Time      `db:"fifth_vote_at" json:"fifth_vote_at,omitempty"`
	ClosesAt        *time.Time      `db:"closes_at" json:"closes_at,omitempty"`
	TotalPool       int64           `db:"total_pool" json:"total_pool"`
	SystemContribution int64        `db:"system_contribution" json:"system_contribution"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	FinalizedAt     *time.Time      `db:"finalized_at" json:"finalized_at,omitempty"`

	// Populated post-finalisation, not persisted directly on this row.
	PayoutOriginal int64 `db:"-" json:"payout_original,omitempty"`
	PayoutCopy1    int64 `db:"-" json:"payout_copy_1,omitempty"`
	PayoutCopy2    int64 `db:"-" json:"payout_copy_2,omitempty"`
}

// ContributorSlot names the three contributor slots in payout order.
type ContributorSlot int

const (
	SlotOriginal ContributorSlot = iota
	SlotCopy1
	SlotCopy2
)

// PhraseAt returns the phrase in a given contributor slot.
func (p *Phraseset) PhraseAt(slot ContributorSlot) string {
	switch slot {
	case SlotCopy1:
		return p.Copy1
	case SlotCopy2:
		return p.Copy2
	default:
		return p.Original
	}
}

// String names the slot the way the contributor-details API reports it.
func (s ContributorSlot) String() string {
	switch s {
	case SlotCopy1:
		return "copy_1"
	case SlotCopy2:
		return "copy_2"
	default:
		return "original"
	}
}

// Contributor names the player who filled a slot and what they submitted,
// for the get_details contributor view (§4.9).
type Contributor struct {
	PlayerID int64  `json:"player_id"`
	Slot     string `json:"slot"`
	Phrase   string `json:"phrase"`
}

// CanAcceptVote reports whether the phraseset is still open for voting
// (§4.7: vote_count == 20 is a hard ceiling regardless of status).
func (p *Phraseset) CanAcceptVote() bool {
	if p.VoteCount >= 20 {
		return false
	}
	return p.Status == PhrasesetOpen || p.Status == PhrasesetClosing
}
