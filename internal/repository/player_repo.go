package repository

import (
	"context"
	"errors"
	"time"

	"github.com/quipflip/backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type PlayerRepository struct {
	db *pgxpool.Pool
}

func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

const playerCols = `id, username, email, password_hash, api_key, balance, last_login_date, active_round_id, created_at`

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	if err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.APIKey, &p.Balance, &p.LastLoginDate, &p.ActiveRoundID, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PlayerRepository) Create(ctx context.Context, username, email, passwordHash, apiKey string, startingBalance int64) (*domain.Player, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO players (username, email, password_hash, api_key, balance, last_login_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING `+playerCols,
		username, email, passwordHash, apiKey, startingBalance, time.Now().UTC().Truncate(24*time.Hour),
	)
	return scanPlayer(row)
}

func (r *PlayerRepository) GetByID(ctx context.Context, id int64) (*domain.Player, error) {
	row := r.db.QueryRow(ctx, `SELECT `+playerCols+` FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

func (r *PlayerRepository) GetByUsername(ctx context.Context, username string) (*domain.Player, error) {
	row := r.db.QueryRow(ctx, `SELECT `+playerCols+` FROM players WHERE username = $1`, username)
	return scanPlayer(row)
}

func (r *PlayerRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Player, error) {
	row := r.db.QueryRow(ctx, `SELECT `+playerCols+` FROM players WHERE api_key = $1`, apiKey)
	return scanPlayer(row)
}

// GetByIDForUpdate locks the player row for the caller's transaction.
func (r *PlayerRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Player, error) {
	row := tx.QueryRow(ctx, `SELECT `+playerCols+` FROM players WHERE id = $1 FOR UPDATE`, id)
	return scanPlayer(row)
}

// SetActiveRound is the atomic gate for entering/leaving a round (§4.4).
// Pass nil to clear.
func (r *PlayerRepository) SetActiveRound(ctx context.Context, tx pgx.Tx, playerID int64, roundID *string) error {
	_, err := tx.Exec(ctx, `UPDATE players SET active_round_id = $1 WHERE id = $2`, roundID, playerID)
	return err
}

func (r *PlayerRepository) SetLastLoginDate(ctx context.Context, tx pgx.Tx, playerID int64, date time.Time) error {
	_, err := tx.Exec(ctx, `UPDATE players SET last_login_date = $1 WHERE id = $2`, date, playerID)
	return err
}

func (r *PlayerRepository) RotateAPIKey(ctx context.Context, playerID int64, newKey string) error {
	_, err := r.db.Exec(ctx, `UPDATE players SET api_key = $1 WHERE id = $2`, newKey, playerID)
	return err
}
