package domain

import "time"

type TransactionKind string

const (
	TxPromptEntry        TransactionKind = "prompt_entry"
	TxCopyEntry          TransactionKind = "copy_entry"
	TxVoteEntry          TransactionKind = "vote_entry"
	TxVotePayout         TransactionKind = "vote_payout"
	TxPrizePayout        TransactionKind = "prize_payout"
	TxRefund             TransactionKind = "refund"
	TxPenalty            TransactionKind = "penalty"
	TxDailyBonus         TransactionKind = "daily_bonus"
	TxSystemContribution TransactionKind = "system_contribution"
)

// Transaction is an append-only ledger row (§3 Transaction, §4.1 Ledger).
type Transaction struct {
	ID            int64           `db:"id" json:"transaction_id"`
	PlayerID      int64           `db:"player_id" json:"player_id"`
	Amount        int64           `db:"amount" json:"amount"`
	Kind          TransactionKind `db:"kind" json:"kind"`
	ReferenceID   *string         `db:"reference_id" json:"reference_id,omitempty"`
	BalanceAfter  int64           `db:"balance_after" json:"balance_after"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// LeaderboardEntry ranks a player by winnings (vote payouts + prize
// payouts) over a window, for the monthly/all-time leaderboard read-model.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID int64  `json:"player_id"`
	Username string `json:"username"`
	Winnings int64  `json:"winnings"`
}
