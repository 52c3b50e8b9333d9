package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AbandonedRepository struct {
	db *pgxpool.Pool
}

func NewAbandonedRepository(db *pgxpool.Pool) *AbandonedRepository {
	return &AbandonedRepository{db: db}
}

// Record marks that playerID abandoned the copy assignment against
// promptRoundID, so QueueStore can skip re-offering that prompt to the
// same player until the cooldown in §4.3 elapses.
func (r *AbandonedRepository) Record(ctx context.Context, tx pgx.Tx, promptRoundID string, playerID int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO abandoned_assignments (prompt_round_id, player_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (prompt_round_id, player_id) DO UPDATE SET created_at = now()`,
		promptRoundID, playerID,
	)
	return err
}

// IsCoolingDown reports whether playerID abandoned promptRoundID within
// the last `cooldown` duration.
func (r *AbandonedRepository) IsCoolingDown(ctx context.Context, promptRoundID string, playerID int64, cooldown time.Duration) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM abandoned_assignments
			WHERE prompt_round_id = $1 AND player_id = $2 AND created_at > now() - $3::interval
		)`,
		promptRoundID, playerID, cooldown,
	).Scan(&exists)
	return exists, err
}

// CooldownSetFor returns the set of prompt_round_ids currently
// cooling-down for playerID, for bulk-filtering a queue scan.
func (r *AbandonedRepository) CooldownSetFor(ctx context.Context, playerID int64, cooldown time.Duration) (map[string]bool, error) {
	rows, err := r.db.Query(ctx, `
		SELECT prompt_round_id FROM abandoned_assignments
		WHERE player_id = $1 AND created_at > now() - $2::interval`,
		playerID, cooldown,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}
