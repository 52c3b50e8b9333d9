package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DailyBonusRepository struct {
	db *pgxpool.Pool
}

func NewDailyBonusRepository(db *pgxpool.Pool) *DailyBonusRepository {
	return &DailyBonusRepository{db: db}
}

// Claim inserts the (player_id, date) marker for today's bonus inside the
// caller's transaction. The unique constraint on (player_id, bonus_date)
// is the actual idempotency guard; ok=false means a bonus already exists
// for that date and no row was inserted.
func (r *DailyBonusRepository) Claim(ctx context.Context, tx pgx.Tx, playerID int64, date time.Time) (ok bool, err error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO daily_bonuses (player_id, bonus_date, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (player_id, bonus_date) DO NOTHING`,
		playerID, date,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DailyBonusRepository) HasClaimed(ctx context.Context, playerID int64, date time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM daily_bonuses WHERE player_id = $1 AND bonus_date = $2)`, playerID, date).Scan(&exists)
	return exists, err
}
