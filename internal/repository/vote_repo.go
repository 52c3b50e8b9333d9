package repository

import (
	"context"
	"errors"

	"github.com/quipflip/backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VoteRepository struct {
	db *pgxpool.Pool
}

func NewVoteRepository(db *pgxpool.Pool) *VoteRepository {
	return &VoteRepository{db: db}
}

const voteCols = `id, phraseset_id, voter_id, voted_index, voted_phrase, correct, payout, created_at`

func scanVote(row pgx.Row) (*domain.Vote, error) {
	var v domain.Vote
	if err := row.Scan(&v.ID, &v.PhrasesetID, &v.VoterID, &v.VotedIndex, &v.VotedPhrase, &v.Correct, &v.Payout, &v.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Create records a cast vote. Unique on (phraseset_id, voter_id) at the
// schema level so a double-vote attempt surfaces as a constraint error.
func (r *VoteRepository) Create(ctx context.Context, tx pgx.Tx, phrasesetID string, voterID int64, votedIndex int, votedPhrase string, correct bool, payout int64) (*domain.Vote, error) {
	id := uuid.New().String()
	row := tx.QueryRow(ctx, `
		INSERT INTO votes (id, phraseset_id, voter_id, voted_index, voted_phrase, correct, payout, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING `+voteCols,
		id, phrasesetID, voterID, votedIndex, votedPhrase, correct, payout,
	)
	return scanVote(row)
}

func (r *VoteRepository) HasVoted(ctx context.Context, phrasesetID string, voterID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM votes WHERE phraseset_id = $1 AND voter_id = $2)`, phrasesetID, voterID).Scan(&exists)
	return exists, err
}

// TallyFor returns the per-slot vote counts used by the scoring engine.
func (r *VoteRepository) TallyFor(ctx context.Context, phrasesetID string, original, copy1, copy2 string) (votesOriginal, votesCopy1, votesCopy2 int64, err error) {
	rows, qerr := r.db.Query(ctx, `SELECT voted_phrase, COUNT(*) FROM votes WHERE phraseset_id = $1 GROUP BY voted_phrase`, phrasesetID)
	if qerr != nil {
		return 0, 0, 0, qerr
	}
	defer rows.Close()

	for rows.Next() {
		var phrase string
		var count int64
		if err := rows.Scan(&phrase, &count); err != nil {
			return 0, 0, 0, err
		}
		switch phrase {
		case original:
			votesOriginal = count
		case copy1:
			votesCopy1 = count
		case copy2:
			votesCopy2 = count
		}
	}
	return votesOriginal, votesCopy1, votesCopy2, rows.Err()
}

func (r *VoteRepository) ListForPhraseset(ctx context.Context, phrasesetID string) ([]*domain.Vote, error) {
	rows, err := r.db.Query(ctx, `SELECT `+voteCols+` FROM votes WHERE phraseset_id = $1 ORDER BY created_at`, phrasesetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
