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

type RoundRepository struct {
	db *pgxpool.Pool
}

func NewRoundRepository(db *pgxpool.Pool) *RoundRepository {
	return &RoundRepository{db: db}
}

const roundCols = `id, player_id, role, status, created_at, expires_at, cost, system_contribution,
	submitted_phrase, prompt_id, prompt_text, requeued_at, prompt_round_id, original_phrase, phraseset_id, shuffled_phrases`

func scanRound(row pgx.Row) (*domain.Round, error) {
	var r domain.Round
	var shuffled []string
	if err := row.Scan(
		&r.ID, &r.PlayerID, &r.Role, &r.Status, &r.CreatedAt, &r.ExpiresAt, &r.Cost, &r.SystemContribution,
		&r.SubmittedPhrase, &r.PromptID, &r.PromptText, &r.RequeuedAt, &r.PromptRoundID, &r.OriginalPhrase, &r.PhrasesetID, &shuffled,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.ShuffledPhrases = shuffled
	return &r, nil
}

// CreatePromptRound inserts a new active prompt-role round.
func (r *RoundRepository) CreatePromptRound(ctx context.Context, tx pgx.Tx, playerID int64, promptID, promptText string, cost int64, expiresAt time.Time) (*domain.Round, error) {
	id := uuid.New().String()
	row := tx.QueryRow(ctx, `
		INSERT INTO rounds (id, player_id, role, status, created_at, expires_at, cost, prompt_id, prompt_text)
		VALUES ($1, $2, 'prompt', 'active', now(), $3, $4, $5, $6)
		RETURNING `+roundCols,
		id, playerID, expiresAt, cost, promptID, promptText,
	)
	return scanRound(row)
}

// CreateCopyRound inserts a new active copy-role round.
func (r *RoundRepository) CreateCopyRound(ctx context.Context, tx pgx.Tx, playerID int64, promptRoundID, originalPhrase string, cost, systemContribution int64, expiresAt time.Time) (*domain.Round, error) {
	id := uuid.New().String()
	row := tx.QueryRow(ctx, `
		INSERT INTO rounds (id, player_id, role, status, created_at, expires_at, cost, system_contribution, prompt_round_id, original_phrase)
		VALUES ($1, $2, 'copy', 'active', now(), $3, $4, $5, $6, $7)
		RETURNING `+roundCols,
		id, playerID, expiresAt, cost, systemContribution, promptRoundID, originalPhrase,
	)
	return scanRound(row)
}

// CreateVoteRound inserts a new active vote-role round with the per-voter
// shuffle order baked in at issue time.
func (r *RoundRepository) CreateVoteRound(ctx context.Context, tx pgx.Tx, playerID int64, phrasesetID string, shuffled [3]string, cost int64, expiresAt time.Time) (*domain.Round, error) {
	id := uuid.New().String()
	row := tx.QueryRow(ctx, `
		INSERT INTO rounds (id, player_id, role, status, created_at, expires_at, cost, phraseset_id, shuffled_phrases)
		VALUES ($1, $2, 'vote', 'active', now(), $3, $4, $5, $6)
		RETURNING `+roundCols,
		id, playerID, expiresAt, cost, phrasesetID, shuffled[:],
	)
	return scanRound(row)
}

func (r *RoundRepository) GetByID(ctx context.Context, id string) (*domain.Round, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roundCols+` FROM rounds WHERE id = $1`, id)
	return scanRound(row)
}

func (r *RoundRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Round, error) {
	row := tx.QueryRow(ctx, `SELECT `+roundCols+` FROM rounds WHERE id = $1 FOR UPDATE`, id)
	return scanRound(row)
}

func (r *RoundRepository) Submit(ctx context.Context, tx pgx.Tx, roundID, phrase string) error {
	_, err := tx.Exec(ctx, `UPDATE rounds SET submitted_phrase = $1, status = 'submitted' WHERE id = $2`, phrase, roundID)
	return err
}

func (r *RoundRepository) MarkExpired(ctx context.Context, tx pgx.Tx, roundID string) error {
	_, err := tx.Exec(ctx, `UPDATE rounds SET status = 'expired' WHERE id = $1`, roundID)
	return err
}

func (r *RoundRepository) MarkAbandoned(ctx context.Context, tx pgx.Tx, roundID string) error {
	_, err := tx.Exec(ctx, `UPDATE rounds SET status = 'abandoned' WHERE id = $1`, roundID)
	return err
}

// RequeuePrompt bumps a prompt round's queue-ordering timestamp to now, so
// OpenPromptQueue sorts it to the tail instead of its original submission
// position (§4.3: a prompt whose copy round was abandoned is reinserted at
// the tail of the queue for every other player).
func (r *RoundRepository) RequeuePrompt(ctx context.Context, tx pgx.Tx, promptRoundID string) error {
	_, err := tx.Exec(ctx, `UPDATE rounds SET requeued_at = now() WHERE id = $1`, promptRoundID)
	return err
}

// CountSubmittedCopies returns how many copy rounds against promptRoundID
// have reached status='submitted'. Used to detect 1st vs 2nd copy (§4.6).
func (r *RoundRepository) CountSubmittedCopies(ctx context.Context, tx pgx.Tx, promptRoundID string) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM rounds
		WHERE role = 'copy' AND prompt_round_id = $1 AND status = 'submitted'`,
		promptRoundID,
	).Scan(&count)
	return count, err
}

// OpenPromptQueue returns submitted prompt rounds with fewer than 2
// submitted copies and no copy round currently active against them,
// excluding the requesting player's own prompts and any
// prompt currently in that player's abandon-cooldown set, FIFO by
// requeued_at where one has been recorded (§4.3: a prompt whose copy round
// was abandoned sorts by the requeue time, dropping it to the tail),
// falling back to created_at otherwise.
func (r *RoundRepository) OpenPromptQueue(ctx context.Context, excludePlayerID int64, excludePromptRoundIDs []string, limit int) ([]domain.PromptQueueEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT pr.id, pr.player_id, pr.submitted_phrase, pr.created_at,
			(SELECT COUNT(*) FROM rounds c WHERE c.role = 'copy' AND c.prompt_round_id = pr.id AND c.status = 'submitted')
		FROM rounds pr
		WHERE pr.role = 'prompt' AND pr.status = 'submitted' AND pr.player_id != $1
		AND pr.id != ALL($2::text[])
		AND (SELECT COUNT(*) FROM rounds c WHERE c.role = 'copy' AND c.prompt_round_id = pr.id AND c.status = 'submitted') < 2
		AND NOT EXISTS (SELECT 1 FROM rounds c WHERE c.role = 'copy' AND c.prompt_round_id = pr.id AND c.status = 'active')
		ORDER BY COALESCE(pr.requeued_at, pr.created_at) ASC
		LIMIT $3`,
		excludePlayerID, excludePromptRoundIDs, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PromptQueueEntry
	for rows.Next() {
		var e domain.PromptQueueEntry
		if err := rows.Scan(&e.PromptRoundID, &e.PlayerID, &e.PromptText, &e.SubmittedAt, &e.CopyCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FirstSubmittedCopy returns the earlier of the two submitted copies
// against promptRoundID, excluding excludeRoundID. Used when the later
// copy's submission observes the 2nd-copy transition and needs the
// sibling copy's phrase to materialise the phraseset.
func (r *RoundRepository) FirstSubmittedCopy(ctx context.Context, tx pgx.Tx, promptRoundID, excludeRoundID string) (*domain.Round, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+roundCols+` FROM rounds
		WHERE role = 'copy' AND prompt_round_id = $1 AND status = 'submitted' AND id != $2
		ORDER BY created_at ASC LIMIT 1`,
		promptRoundID, excludeRoundID,
	)
	return scanRound(row)
}

// PromptQueueDepth counts all submitted prompts still awaiting a second
// copy, independent of any requesting player (§4.3 discount activation).
func (r *RoundRepository) PromptQueueDepth(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM rounds pr
		WHERE pr.role = 'prompt' AND pr.status = 'submitted'
		AND (SELECT COUNT(*) FROM rounds c WHERE c.role = 'copy' AND c.prompt_round_id = pr.id AND c.status = 'submitted') < 2`,
	).Scan(&count)
	return count, err
}

// ExpiredActiveRounds returns active rounds whose expires_at+grace has
// elapsed, for TimeoutSweeper (§4.10).
func (r *RoundRepository) ExpiredActiveRounds(ctx context.Context, grace time.Duration, limit int) ([]*domain.Round, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+roundCols+` FROM rounds
		WHERE status = 'active' AND expires_at + $1 < now()
		ORDER BY expires_at
		LIMIT $2`,
		grace, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, round)
	}
	return out, rows.Err()
}
