package repository

import (
	"context"
	"time"

	"github.com/quipflip/backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionCols = `id, player_id, amount, kind, reference_id, balance_after, created_at`

// CreateWithTx appends a ledger row inside the caller's transaction and
// stamps the player's balance_after it observed (§4.1 Ledger). The ledger
// is append-only: there is no Update or Delete here.
func (r *TransactionRepository) CreateWithTx(ctx context.Context, dbTx pgx.Tx, playerID int64, amount int64, kind domain.TransactionKind, referenceID *string, balanceAfter int64) (*domain.Transaction, error) {
	var t domain.Transaction
	err := dbTx.QueryRow(ctx, `
		INSERT INTO transactions (player_id, amount, kind, reference_id, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING `+transactionCols,
		playerID, amount, kind, referenceID, balanceAfter,
	).Scan(&t.ID, &t.PlayerID, &t.Amount, &t.Kind, &t.ReferenceID, &t.BalanceAfter, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByPlayerID returns recent ledger entries for a player, most recent first.
func (r *TransactionRepository) GetByPlayerID(ctx context.Context, playerID int64, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+transactionCols+` FROM transactions
		WHERE player_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

func (r *TransactionRepository) GetByReferenceID(ctx context.Context, referenceID string) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionCols+` FROM transactions
		WHERE reference_id = $1
		ORDER BY created_at`,
		referenceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// GetLeaderboard ranks players by winnings (vote + prize payouts) within
// windowStart..now, oldest cutoff first; pass the zero time for all-time.
// Grounded on the monthly-top-by-wins idiom (LEFT JOIN aggregate +
// ORDER BY ... DESC), applied to payout totals instead of win counts.
func (r *TransactionRepository) GetLeaderboard(ctx context.Context, windowStart time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.username, COALESCE(w.winnings, 0) AS winnings
		FROM players p
		LEFT JOIN (
			SELECT player_id, SUM(amount) AS winnings
			FROM transactions
			WHERE kind IN ('vote_payout', 'prize_payout') AND created_at >= $1
			GROUP BY player_id
		) w ON w.player_id = p.id
		ORDER BY winnings DESC, p.id ASC
		LIMIT $2`,
		windowStart, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Username, &e.Winnings); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetPlayerRank returns a player's rank and winnings total within the same
// window GetLeaderboard uses, via the RANK() OVER (...) window-function
// idiom (teacher's GetUserRank).
func (r *TransactionRepository) GetPlayerRank(ctx context.Context, playerID int64, windowStart time.Time) (rank int, winnings int64, err error) {
	err = r.db.QueryRow(ctx, `
		WITH totals AS (
			SELECT player_id, SUM(amount) AS winnings
			FROM transactions
			WHERE kind IN ('vote_payout', 'prize_payout') AND created_at >= $1
			GROUP BY player_id
		),
		ranked AS (
			SELECT p.id, COALESCE(t.winnings, 0) AS winnings,
			       RANK() OVER (ORDER BY COALESCE(t.winnings, 0) DESC) AS rank
			FROM players p
			LEFT JOIN totals t ON t.player_id = p.id
		)
		SELECT rank, winnings FROM ranked WHERE id = $2`,
		windowStart, playerID,
	).Scan(&rank, &winnings)
	return rank, winnings, err
}

func (r *TransactionRepository) scanRows(rows pgx.Rows) ([]*domain.Transaction, error) {
	var result []*domain.Transaction

	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.PlayerID, &t.Amount, &t.Kind, &t.ReferenceID, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &t)
	}

	return result, rows.Err()
}
