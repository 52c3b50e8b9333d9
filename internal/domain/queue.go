package domain

import "time"

// PromptQueueEntry is a reference to a prompt round awaiting its second
// copy, ordered by submission time (§3 PromptRoundQueueEntry). It is a
// projection of the rounds table, not an owning record — QueueStore
// derives it with a query rather than storing it separately.
type PromptQueueEntry struct {
	PromptRoundID string
	PlayerID      int64
	PromptText    string
	SubmittedAt   time.Time
	CopyCount     int
}
