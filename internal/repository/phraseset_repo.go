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

type PhrasesetRepository struct {
	db *pgxpool.Pool
}

func NewPhrasesetRepository(db *pgxpool.Pool) *PhrasesetRepository {
	return &PhrasesetRepository{db: db}
}

const phrasesetCols = `id, prompt_round_id, copy_round_1_id, copy_round_2_id, prompt_text, original, copy_1, copy_2,
	status, vote_count, third_vote_at, fifth_vote_at, closes_at, total_pool, system_contribution, created_at, finalized_at`

func scanPhraseset(row pgx.Row) (*domain.Phraseset, error) {
	var ps domain.Phraseset
	if err := row.Scan(
		&ps.ID, &ps.PromptRoundID, &ps.CopyRound1ID, &ps.CopyRound2ID, &ps.PromptText, &ps.Original, &ps.Copy1, &ps.Copy2,
		&ps.Status, &ps.VoteCount, &ps.ThirdVoteAt, &ps.FifthVoteAt, &ps.ClosesAt, &ps.TotalPool, &ps.SystemContribution,
		&ps.CreatedAt, &ps.FinalizedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ps, nil
}

// Create materialises a phraseset on the second successful copy (§4.6).
func (r *PhrasesetRepository) Create(ctx context.Context, tx pgx.Tx, promptRoundID, copyRound1ID, copyRound2ID, promptText, original, copy1, copy2 string, totalPool, systemContribution int64) (*domain.Phraseset, error) {
	id := uuid.New().String()
	row := tx.QueryRow(ctx, `
		INSERT INTO phrasesets (id, prompt_round_id, copy_round_1_id, copy_round_2_id, prompt_text, original, copy_1, copy_2,
			status, vote_count, total_pool, system_contribution, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'open', 0, $9, $10, now())
		RETURNING `+phrasesetCols,
		id, promptRoundID, copyRound1ID, copyRound2ID, promptText, original, copy1, copy2, totalPool, systemContribution,
	)
	return scanPhraseset(row)
}

func (r *PhrasesetRepository) GetByID(ctx context.Context, id string) (*domain.Phraseset, error) {
	row := r.db.QueryRow(ctx, `SELECT `+phrasesetCols+` FROM phrasesets WHERE id = $1`, id)
	return scanPhraseset(row)
}

func (r *PhrasesetRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Phraseset, error) {
	row := tx.QueryRow(ctx, `SELECT `+phrasesetCols+` FROM phrasesets WHERE id = $1 FOR UPDATE`, id)
	return scanPhraseset(row)
}

// IncrementVoteAndMaybeTransition applies the §4.7 timeline state machine
// inside the caller's transaction: bumps vote_count, stamps third/fifth
// vote timestamps on exactly the 3rd/5th accepted vote, and advances
// status/closes_at per the transition table.
func (r *PhrasesetRepository) IncrementVoteAndMaybeTransition(ctx context.Context, tx pgx.Tx, id string, now time.Time, rapidWindow time.Duration, maxVotes int) (*domain.Phraseset, error) {
	ps, err := r.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	ps.VoteCount++
	switch ps.VoteCount {
	case 3:
		ps.ThirdVoteAt = &now
	case 5:
		ps.FifthVoteAt = &now
		closesAt := now.Add(rapidWindow)
		ps.ClosesAt = &closesAt
		ps.Status = domain.PhrasesetClosing
	}
	if ps.VoteCount >= maxVotes {
		closesAt := now
		ps.ClosesAt = &closesAt
		ps.Status = domain.PhrasesetClosing
	}

	_, err = tx.Exec(ctx, `
		UPDATE phrasesets SET vote_count = $1, third_vote_at = $2, fifth_vote_at = $3, closes_at = $4, status = $5
		WHERE id = $6`,
		ps.VoteCount, ps.ThirdVoteAt, ps.FifthVoteAt, ps.ClosesAt, ps.Status, id,
	)
	return ps, err
}

// TransitionToClosing moves an open phraseset to closing because its
// third-vote window elapsed without a 5th vote (§4.7 "10 min since
// third_vote_at").
func (r *PhrasesetRepository) TransitionToClosing(ctx context.Context, tx pgx.Tx, id string, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE phrasesets SET status = 'closing', fifth_vote_at = NULL, closes_at = $1
		WHERE id = $2 AND status = 'open'`,
		now, id,
	)
	return err
}

func (r *PhrasesetRepository) Close(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := tx.Exec(ctx, `UPDATE phrasesets SET status = 'closed' WHERE id = $1`, id)
	return err
}

func (r *PhrasesetRepository) Finalize(ctx context.Context, tx pgx.Tx, id string, now time.Time) error {
	_, err := tx.Exec(ctx, `UPDATE phrasesets SET status = 'finalized', finalized_at = $1 WHERE id = $2`, now, id)
	return err
}

// CandidatesAtFiveOrMore returns the first vote-assignment tier (§4.6
// "Vote-assignment priority"): open or closing phrasesets with 5 to 19
// votes, oldest fifth vote first, excluding ones the given player
// contributed to or already voted on.
func (r *PhrasesetRepository) CandidatesAtFiveOrMore(ctx context.Context, excludePlayerID int64) ([]*domain.Phraseset, error) {
	return r.queryCandidates(ctx, excludePlayerID, `
		SELECT `+phrasesetCols+` FROM phrasesets ps
		WHERE ps.vote_count >= 5 AND ps.vote_count < 20 AND ps.status IN ('open','closing')
		AND NOT EXISTS (SELECT 1 FROM votes v WHERE v.phraseset_id = ps.id AND v.voter_id = $1)
		AND ps.prompt_round_id NOT IN (SELECT id FROM rounds WHERE player_id = $1)
		AND ps.copy_round_1_id NOT IN (SELECT id FROM rounds WHERE player_id = $1)
		AND ps.copy_round_2_id NOT IN (SELECT id FROM rounds WHERE player_id = $1)
		ORDER BY ps.fifth_vote_at ASC`, excludePlayerID)
}

func (r *PhrasesetRepository) CandidatesAtThreeToFour(ctx context.Context, excludePlayerID int64) ([]*domain.Phraseset, error) {
	return r.queryCandidates(ctx, excludePlayerID, `
		SELECT `+phrasesetCols+` FROM phrasesets ps
		WHERE ps.vote_count >= 3 AND ps.vote_count < 5 AND ps.status = 'open'
		AND NOT EXISTS (SELECT 1 FROM votes v WHERE v.phraseset_id = ps.id AND v.voter_id = $1)
		AND ps.prompt_round_id NOT IN (SELECT id FROM rounds WHERE player_id = $1)
		AND ps.copy_round_1_id NOT IN (SELECT id FROM rounds WHERE player_id = $1)
		AND ps.copy_round_2_id NOT IN (SELECT id FROM rounds WHERE player_id = $1)
		ORDER BY ps.third_vote_at ASC`, excludePlayerID)
}

func (r *PhrasesetRepository) CandidatesUnderThree(ctx context.Context, excludePlayerID int64) ([]*domain.Phraseset, error) {
	return r.queryCandidates(ctx, excludePlayerID, `
		SELECT `+phrasesetCols+` FROM phrasesets ps
		WHERE ps.vote_count < 3 AND ps.status = 'open'
		AND NOT EXISTS (SELECT 1 FROM votes v WHERE v.phraseset_id = ps.id AND v.voter_id = $1)
		AND ps.prompt_round_id NOT IN (SELECT id FROM rounds WHERE player_id = $1)
		AND ps.copy_round_1_id NOT IN (SELECT id FROM rounds WHERE player_id = $1)
		AND ps.copy_round_2_id NOT IN (SELECT id FROM rounds WHERE player_id = $1)
		ORDER BY random()`, excludePlayerID)
}

func (r *PhrasesetRepository) queryCandidates(ctx context.Context, playerID int64, query string, args ...any) ([]*domain.Phraseset, error) {
	rows, err := r.db.Query(ctx, query, append([]any{playerID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Phraseset
	for rows.Next() {
		ps, err := scanPhraseset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// OpenWithThirdVoteElapsed returns open phrasesets whose third vote landed
// more than thirdVoteWindow ago without a 5th vote arriving, for
// TimeoutSweeper to push into closing (§4.7 "10 min since third_vote_at").
func (r *PhrasesetRepository) OpenWithThirdVoteElapsed(ctx context.Context, thirdVoteWindow time.Duration, limit int) ([]*domain.Phraseset, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+phrasesetCols+` FROM phrasesets ps
		WHERE ps.status = 'open' AND ps.third_vote_at IS NOT NULL
		AND ps.third_vote_at + $1 < now()
		ORDER BY ps.third_vote_at
		LIMIT $2`, thirdVoteWindow, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Phraseset
	for rows.Next() {
		ps, err := scanPhraseset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// ClosingAndExpired returns phrasesets ready for TimeoutSweeper to close:
// status='closing', closes_at < now, with no outstanding grace-holds.
func (r *PhrasesetRepository) ClosingAndExpired(ctx context.Context, limit int) ([]*domain.Phraseset, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+phrasesetCols+` FROM phrasesets ps
		WHERE ps.status = 'closing' AND ps.closes_at < now()
		AND NOT EXISTS (
			SELECT 1 FROM rounds r
			WHERE r.role = 'vote' AND r.phraseset_id = ps.id AND r.status = 'active'
		)
		ORDER BY ps.closes_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Phraseset
	for rows.Next() {
		ps, err := scanPhraseset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
