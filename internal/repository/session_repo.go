package repository

import (
	"context"
	"errors"
	"time"

	"github.com/quipflip/backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionCols = `id, player_id, token_hash, expires_at, revoked, created_at`

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	if err := row.Scan(&s.ID, &s.PlayerID, &s.TokenHash, &s.ExpiresAt, &s.Revoked, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Create stores a refresh-token session keyed by the SHA-256 hash of the
// raw token; the raw value never touches the database (§4.5).
func (r *SessionRepository) Create(ctx context.Context, playerID int64, tokenHash string, expiresAt time.Time) (*domain.Session, error) {
	id := uuid.New().String()
	row := r.db.QueryRow(ctx, `
		INSERT INTO sessions (id, player_id, token_hash, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, false, now())
		RETURNING `+sessionCols,
		id, playerID, tokenHash, expiresAt,
	)
	return scanSession(row)
}

func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionCols+` FROM sessions WHERE token_hash = $1`, tokenHash)
	return scanSession(row)
}

// Revoke invalidates a session; used on refresh rotation (old token
// revoked the instant the new one is minted) and on logout.
func (r *SessionRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE sessions SET revoked = true WHERE id = $1`, id)
	return err
}

func (r *SessionRepository) RevokeAllForPlayer(ctx context.Context, playerID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE sessions SET revoked = true WHERE player_id = $1`, playerID)
	return err
}
