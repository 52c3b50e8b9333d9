package domain

import "time"

type RoundRole string

const (
	RolePrompt RoundRole = "prompt"
	RoleCopy   RoundRole = "copy"
	RoleVote   RoundRole = "vote"
)

type RoundStatus string

const (
	RoundStatusActive    RoundStatus = "active"
	RoundStatusSubmitted RoundStatus = "submitted"
	RoundStatusExpired   RoundStatus = "expired"
	RoundStatusAbandoned RoundStatus = "abandoned"
)

// Round is the unified record for the three roles, discriminated by Role
// (§3 Round, §9 "dynamic dispatch over round roles"). Role-specific fields
// are nullable pointers rather than an inheritance hierarchy; RoundService
// switches on Role to decide which fields are meaningful.
type Round struct {
	ID                  string      `db:"id" json:"round_id"`
	PlayerID            int64       `db:"player_id" json:"player_id"`
	Role                RoundRole   `db:"role" json:"role"`
	Status              RoundStatus `db:"status" json:"status"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
	ExpiresAt           time.Time   `db:"expires_at" json:"expires_at"`
	Cost                int64       `db:"cost" json:"cost"`
	SystemContribution  int64       `db:"system_contribution" json:"system_contribution,omitempty"`
	SubmittedPhrase     *string     `db:"submitted_phrase" json:"submitted_phrase,omitempty"`

	// Prompt-role only. RequeuedAt tracks queue position (§4.3): nil until
	// a copy round against this prompt is abandoned, at which point it is
	// set to now so the prompt sorts to the tail of the queue instead of
	// keeping its original submission-time position.
	PromptID    *string    `db:"prompt_id" json:"prompt_id,omitempty"`
	PromptText  *string    `db:"prompt_text" json:"prompt_text,omitempty"`
	RequeuedAt  *time.Time `db:"requeued_at" json:"-"`

	// Copy-role only. The copier must see the original phrase to write a
	// distinct-but-similar copy of it, but never the prompt text itself.
	PromptRoundID  *string `db:"prompt_round_id" json:"prompt_round_id,omitempty"`
	OriginalPhrase *string `db:"original_phrase" json:"original_phrase,omitempty"`

	// Vote-role only.
	PhrasesetID *string  `db:"phraseset_id" json:"phraseset_id,omitempty"`
	ShuffledPhrases []string `db:"shuffled_phrases" json:"shuffled_phrases,omitempty"`
}

// IsActive reports whether the round can still be submitted to.
func (r *Round) IsActive() bool {
	return r.Status == RoundStatusActive
}

// WithinGrace reports whether now is still within expires_at+grace (§4.6).
func (r *Round) WithinGrace(now time.Time, grace time.Duration) bool {
	return !now.After(r.ExpiresAt.Add(grace))
}
