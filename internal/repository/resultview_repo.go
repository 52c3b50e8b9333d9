package repository

import (
	"context"
	"errors"
	"time"

	"github.com/quipflip/backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ResultViewRepository struct {
	db *pgxpool.Pool
}

func NewResultViewRepository(db *pgxpool.Pool) *ResultViewRepository {
	return &ResultViewRepository{db: db}
}

const resultViewCols = `phraseset_id, player_id, payout_claimed, payout_amount, first_viewed_at, payout_claimed_at`

func scanResultView(row pgx.Row) (*domain.ResultView, error) {
	var rv domain.ResultView
	if err := row.Scan(&rv.PhrasesetID, &rv.PlayerID, &rv.PayoutClaimed, &rv.PayoutAmount, &rv.FirstViewedAt, &rv.PayoutClaimedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rv, nil
}

// EnsureRow creates the (phraseset_id, player_id) row for a contributor on
// first access if it doesn't already exist, with the final payout_amount
// it was entitled to. Idempotent: a second call is a no-op.
func (r *ResultViewRepository) EnsureRow(ctx context.Context, tx pgx.Tx, phrasesetID string, playerID int64, payoutAmount int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO result_views (phraseset_id, player_id, payout_claimed, payout_amount)
		VALUES ($1, $2, false, $3)
		ON CONFLICT (phraseset_id, player_id) DO NOTHING`,
		phrasesetID, playerID, payoutAmount,
	)
	return err
}

// ListUnclaimedForPlayer returns a player's finalised result rows awaiting
// claim, for the /player/pending-results resume view.
func (r *ResultViewRepository) ListUnclaimedForPlayer(ctx context.Context, playerID int64) ([]*domain.ResultView, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+resultViewCols+` FROM result_views
		WHERE player_id = $1 AND payout_claimed = false`,
		playerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ResultView
	for rows.Next() {
		rv, err := scanResultView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *ResultViewRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, phrasesetID string, playerID int64) (*domain.ResultView, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+resultViewCols+` FROM result_views
		WHERE phraseset_id = $1 AND player_id = $2 FOR UPDATE`,
		phrasesetID, playerID,
	)
	return scanResultView(row)
}

func (r *ResultViewRepository) MarkViewed(ctx context.Context, tx pgx.Tx, phrasesetID string, playerID int64, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE result_views SET first_viewed_at = COALESCE(first_viewed_at, $3)
		WHERE phraseset_id = $1 AND player_id = $2`,
		phrasesetID, playerID, now,
	)
	return err
}

// MarkClaimed flips payout_claimed false->true exactly once; the caller
// must hold the row lock from GetForUpdate within the same transaction.
func (r *ResultViewRepository) MarkClaimed(ctx context.Context, tx pgx.Tx, phrasesetID string, playerID int64, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE result_views SET payout_claimed = true, payout_claimed_at = $3
		WHERE phraseset_id = $1 AND player_id = $2`,
		phrasesetID, playerID, now,
	)
	return err
}
