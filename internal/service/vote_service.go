package service

import (
	"context"
	"time"

	"github.com/quipflip/backend/internal/domain"
	"github.com/quipflip/backend/internal/engine"
	"github.com/quipflip/backend/internal/lock"
	"github.com/quipflip/backend/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VoteService owns the per-phraseset timeline state machine (§4.7): vote
// acceptance, the third/fifth/twentieth-vote transitions, and the
// closed->finalized step that invokes ScoringEngine. CastVote also submits
// the vote round and clears the voter's active_round_id itself, through
// PlayerService; RoundService takes no part in vote submission.
type VoteService struct {
	db              *pgxpool.Pool
	roundRepo       *repository.RoundRepository
	phrasesetRepo   *repository.PhrasesetRepository
	voteRepo        *repository.VoteRepository
	resultViewRepo  *repository.ResultViewRepository
	playerSvc       *PlayerService
	ledger          *Ledger
	locker          lock.Locker

	correctVotePayout int64
	rapidWindow       time.Duration
	maxVotes          int
	graceBand         time.Duration
}

type VoteServiceConfig struct {
	CorrectVotePayout int64
	RapidWindow       time.Duration
	MaxVotes          int
	GraceBand         time.Duration
}

func NewVoteService(
	db *pgxpool.Pool,
	roundRepo *repository.RoundRepository,
	phrasesetRepo *repository.PhrasesetRepository,
	voteRepo *repository.VoteRepository,
	resultViewRepo *repository.ResultViewRepository,
	playerSvc *PlayerService,
	ledger *Ledger,
	locker lock.Locker,
	cfg VoteServiceConfig,
) *VoteService {
	return &VoteService{
		db:                db,
		roundRepo:         roundRepo,
		phrasesetRepo:     phrasesetRepo,
		voteRepo:          voteRepo,
		resultViewRepo:    resultViewRepo,
		playerSvc:         playerSvc,
		ledger:            ledger,
		locker:            locker,
		correctVotePayout: cfg.CorrectVotePayout,
		rapidWindow:       cfg.RapidWindow,
		maxVotes:          cfg.MaxVotes,
		graceBand:         cfg.GraceBand,
	}
}

// VoteResult is the voter-facing tuple returned immediately by CastVote
// (§4.7).
type VoteResult struct {
	Correct        bool
	Payout         int64
	OriginalPhrase string
}

// CastVote implements §4.7 cast_vote.
func (s *VoteService) CastVote(ctx context.Context, playerID int64, roundID string, votedIndex int) (*VoteResult, error) {
	round, err := s.roundRepo.GetByID(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.PlayerID != playerID {
		return nil, domain.NewError(domain.ErrNotFound)
	}
	if round.Role != domain.RoleVote {
		return nil, domain.NewError(domain.ErrNotFound)
	}
	if !round.IsActive() || !round.WithinGrace(time.Now(), s.graceBand) {
		return nil, domain.NewError(domain.ErrExpired)
	}
	if votedIndex < 0 || votedIndex >= len(round.ShuffledPhrases) {
		return nil, domain.NewError(domain.ErrInvalidPhrase)
	}

	release, err := s.locker.Lock(ctx, phrasesetLockKey(*round.PhrasesetID))
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ps, err := s.phrasesetRepo.GetByIDForUpdate(ctx, tx, *round.PhrasesetID)
	if err != nil {
		return nil, err
	}
	if !ps.CanAcceptVote() {
		return nil, domain.NewError(domain.ErrExpired)
	}

	voted, err := s.voteRepo.HasVoted(ctx, ps.ID, playerID)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, domain.NewError(domain.ErrAlreadyVoted)
	}

	votedPhrase := round.ShuffledPhrases[votedIndex]
	correct := votedPhrase == ps.Original
	payout := int64(0)
	if correct {
		payout = s.correctVotePayout
	}

	if _, err := s.voteRepo.Create(ctx, tx, ps.ID, playerID, votedIndex, votedPhrase, correct, payout); err != nil {
		return nil, err
	}

	if payout > 0 {
		ref := ps.ID
		if _, err := s.ledger.CreditWithTx(ctx, tx, playerID, payout, domain.TxVotePayout, &ref); err != nil {
			return nil, err
		}
	}

	updated, err := s.phrasesetRepo.IncrementVoteAndMaybeTransition(ctx, tx, ps.ID, time.Now(), s.rapidWindow, s.maxVotes)
	if err != nil {
		return nil, err
	}

	if err := s.roundRepo.Submit(ctx, tx, roundID, votedPhrase); err != nil {
		return nil, err
	}
	if err := s.playerSvc.LeaveRound(ctx, tx, playerID); err != nil {
		return nil, err
	}

	// The 20th vote closes immediately rather than waiting on closes_at
	// (§4.7 timeline diagram: "closing -- 20th vote accepted --> closed").
	if updated.VoteCount >= s.maxVotes {
		if err := s.closeAndFinalize(ctx, tx, updated); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &VoteResult{Correct: correct, Payout: payout, OriginalPhrase: ps.Original}, nil
}

// CloseExpiredIfReady is TimeoutSweeper's entry point for phrasesets whose
// closes_at has elapsed with no outstanding grace-holds.
func (s *VoteService) CloseExpiredIfReady(ctx context.Context, phrasesetID string) error {
	release, err := s.locker.Lock(ctx, phrasesetLockKey(phrasesetID))
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ps, err := s.phrasesetRepo.GetByIDForUpdate(ctx, tx, phrasesetID)
	if err != nil {
		return err
	}
	if ps.Status != domain.PhrasesetClosing {
		return nil
	}
	if ps.ClosesAt == nil || ps.ClosesAt.After(time.Now()) {
		return nil
	}

	if err := s.closeAndFinalize(ctx, tx, ps); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// TransitionStaleToClosing pushes an open phraseset into closing because
// its third-vote window elapsed without a 5th vote arriving. TimeoutSweeper
// calls this for candidates from OpenWithThirdVoteElapsed.
func (s *VoteService) TransitionStaleToClosing(ctx context.Context, phrasesetID string) error {
	release, err := s.locker.Lock(ctx, phrasesetLockKey(phrasesetID))
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.phrasesetRepo.TransitionToClosing(ctx, tx, phrasesetID, time.Now()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// closeAndFinalize performs the closing->closed->finalized collapse: runs
// ScoringEngine against the tally, writes payouts onto ResultView rows
// (unclaimed), and marks the phraseset finalized. The per-contributor
// Ledger credit is deferred to ResultsService (§4.7 "The contributor
// credit does not occur here").
func (s *VoteService) closeAndFinalize(ctx context.Context, tx pgx.Tx, ps *domain.Phraseset) error {
	if err := s.phrasesetRepo.Close(ctx, tx, ps.ID); err != nil {
		return err
	}

	votesOriginal, votesCopy1, votesCopy2, err := s.voteRepo.TallyFor(ctx, ps.ID, ps.Original, ps.Copy1, ps.Copy2)
	if err != nil {
		return err
	}

	payouts := engine.ScorePhraseset(engine.Tally{
		VotesOriginal: votesOriginal,
		VotesCopy1:    votesCopy1,
		VotesCopy2:    votesCopy2,
	}, ps.TotalPool, s.correctVotePayout)

	now := time.Now()
	if err := s.phrasesetRepo.Finalize(ctx, tx, ps.ID, now); err != nil {
		return err
	}

	promptRound, err := s.roundRepo.GetByID(ctx, ps.PromptRoundID)
	if err != nil {
		return err
	}
	copy1Round, err := s.roundRepo.GetByID(ctx, ps.CopyRound1ID)
	if err != nil {
		return err
	}
	copy2Round, err := s.roundRepo.GetByID(ctx, ps.CopyRound2ID)
	if err != nil {
		return err
	}

	if err := s.resultViewRepo.EnsureRow(ctx, tx, ps.ID, promptRound.PlayerID, payouts.Original); err != nil {
		return err
	}
	if err := s.resultViewRepo.EnsureRow(ctx, tx, ps.ID, copy1Round.PlayerID, payouts.Copy1); err != nil {
		return err
	}
	if err := s.resultViewRepo.EnsureRow(ctx, tx, ps.ID, copy2Round.PlayerID, payouts.Copy2); err != nil {
		return err
	}

	return nil
}
