package domain

import "time"

// Player is identified by an opaque ID and a unique username (§3 Player).
type Player struct {
	ID              int64      `db:"id" json:"player_id"`
	Username        string     `db:"username" json:"username"`
	Email           string     `db:"email" json:"email"`
	PasswordHash    string     `db:"password_hash" json:"-"`
	APIKey          string     `db:"api_key" json:"api_key,omitempty"`
	Balance         int64      `db:"balance" json:"balance"`
	LastLoginDate   time.Time  `db:"last_login_date" json:"-"`
	ActiveRoundID   *string    `db:"active_round_id" json:"active_round_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// DailyBonus records that a bonus has been credited to a player on a given
// UTC calendar date; unique on (player_id, date).
type DailyBonus struct {
	PlayerID  int64     `db:"player_id"`
	Date      time.Time `db:"bonus_date"`
	CreatedAt time.Time `db:"created_at"`
}

// AbandonedAssignment records that a player abandoned the copy round
// assigned against a given prompt round, so QueueStore can skip that
// prompt for that player during the cooldown window (§4.3).
type AbandonedAssignment struct {
	PromptRoundID string    `db:"prompt_round_id"`
	PlayerID      int64     `db:"player_id"`
	CreatedAt     time.Time `db:"created_at"`
}

// Session backs refresh-token rotation (§4.5). Access tokens are stateless
// JWTs and have no DB row; only refresh tokens are tracked here.
type Session struct {
	ID        string    `db:"id" json:"-"`
	PlayerID  int64     `db:"player_id" json:"-"`
	TokenHash string    `db:"token_hash" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"-"`
	Revoked   bool      `db:"revoked" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}
