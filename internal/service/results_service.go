package service

import (
	"context"
	"time"

	"github.com/quipflip/backend/internal/domain"
	"github.com/quipflip/backend/internal/lock"
	"github.com/quipflip/backend/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultsService is the contributor-only details/results view and the
// idempotent prize claim (§4.9).
type ResultsService struct {
	db             *pgxpool.Pool
	roundRepo      *repository.RoundRepository
	phrasesetRepo  *repository.PhrasesetRepository
	voteRepo       *repository.VoteRepository
	resultViewRepo *repository.ResultViewRepository
	ledger         *Ledger
	locker         lock.Locker
}

func NewResultsService(
	db *pgxpool.Pool,
	roundRepo *repository.RoundRepository,
	phrasesetRepo *repository.PhrasesetRepository,
	voteRepo *repository.VoteRepository,
	resultViewRepo *repository.ResultViewRepository,
	ledger *Ledger,
	locker lock.Locker,
) *ResultsService {
	return &ResultsService{
		db:             db,
		roundRepo:      roundRepo,
		phrasesetRepo:  phrasesetRepo,
		voteRepo:       voteRepo,
		resultViewRepo: resultViewRepo,
		ledger:         ledger,
		locker:         locker,
	}
}

// Details is the full contributor view: §4.9 get_details.
type Details struct {
	Phraseset    *domain.Phraseset
	Contributors []domain.Contributor
	Votes        []*domain.Vote
	IsFinalized  bool
}

// GetDetails requires playerID to be one of the three contributors;
// returns ErrNotAContributor otherwise. The results block (payouts) is
// only meaningful once the phraseset is finalized — callers should check
// IsFinalized before reading Phraseset.PayoutOriginal/Copy1/Copy2.
func (s *ResultsService) GetDetails(ctx context.Context, playerID int64, phrasesetID string) (*Details, error) {
	ps, contributor, err := s.loadForContributor(ctx, playerID, phrasesetID)
	if err != nil {
		return nil, err
	}
	_ = contributor

	contributors, err := s.loadContributors(ctx, ps)
	if err != nil {
		return nil, err
	}

	votes, err := s.voteRepo.ListForPhraseset(ctx, phrasesetID)
	if err != nil {
		return nil, err
	}

	finalized := ps.Status == domain.PhrasesetFinalized
	if finalized {
		if err := s.populatePayouts(ctx, ps); err != nil {
			return nil, err
		}
	}

	return &Details{Phraseset: ps, Contributors: contributors, Votes: votes, IsFinalized: finalized}, nil
}

// loadContributors names the player and submitted phrase behind each of
// the three slots, so get_details can show who wrote what (§4.9).
func (s *ResultsService) loadContributors(ctx context.Context, ps *domain.Phraseset) ([]domain.Contributor, error) {
	promptRound, err := s.roundRepo.GetByID(ctx, ps.PromptRoundID)
	if err != nil {
		return nil, err
	}
	copy1Round, err := s.roundRepo.GetByID(ctx, ps.CopyRound1ID)
	if err != nil {
		return nil, err
	}
	copy2Round, err := s.roundRepo.GetByID(ctx, ps.CopyRound2ID)
	if err != nil {
		return nil, err
	}

	return []domain.Contributor{
		{PlayerID: promptRound.PlayerID, Slot: domain.SlotOriginal.String(), Phrase: ps.Original},
		{PlayerID: copy1Round.PlayerID, Slot: domain.SlotCopy1.String(), Phrase: ps.Copy1},
		{PlayerID: copy2Round.PlayerID, Slot: domain.SlotCopy2.String(), Phrase: ps.Copy2},
	}, nil
}

// loadForContributor resolves the phraseset and enforces the
// contributor-only access rule shared by GetDetails, GetResults and Claim.
func (s *ResultsService) loadForContributor(ctx context.Context, playerID int64, phrasesetID string) (*domain.Phraseset, domain.ContributorSlot, error) {
	ps, err := s.phrasesetRepo.GetByID(ctx, phrasesetID)
	if err != nil {
		return nil, 0, err
	}

	promptRound, err := s.roundRepo.GetByID(ctx, ps.PromptRoundID)
	if err != nil {
		return nil, 0, err
	}
	if promptRound.PlayerID == playerID {
		return ps, domain.SlotOriginal, nil
	}

	copy1Round, err := s.roundRepo.GetByID(ctx, ps.CopyRound1ID)
	if err != nil {
		return nil, 0, err
	}
	if copy1Round.PlayerID == playerID {
		return ps, domain.SlotCopy1, nil
	}

	copy2Round, err := s.roundRepo.GetByID(ctx, ps.CopyRound2ID)
	if err != nil {
		return nil, 0, err
	}
	if copy2Round.PlayerID == playerID {
		return ps, domain.SlotCopy2, nil
	}

	return nil, 0, domain.NewError(domain.ErrNotAContributor)
}

func (s *ResultsService) populatePayouts(ctx context.Context, ps *domain.Phraseset) error {
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

	// ResultViewRepository exposes no plain (unlocked) getter, so populating
	// the read-only details view reuses the locked accessor inside a
	// throwaway transaction that is always rolled back.
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rv1, err := s.resultViewRepo.GetForUpdate(ctx, tx, ps.ID, promptRound.PlayerID)
	if err != nil {
		return err
	}
	rv2, err := s.resultViewRepo.GetForUpdate(ctx, tx, ps.ID, copy1Round.PlayerID)
	if err != nil {
		return err
	}
	rv3, err := s.resultViewRepo.GetForUpdate(ctx, tx, ps.ID, copy2Round.PlayerID)
	if err != nil {
		return err
	}

	ps.PayoutOriginal = rv1.PayoutAmount
	ps.PayoutCopy1 = rv2.PayoutAmount
	ps.PayoutCopy2 = rv3.PayoutAmount

	return nil
}

// Claim implements §4.9 claim: idempotent, credits exactly once.
type ClaimResult struct {
	Amount         int64
	NewBalance     int64
	AlreadyClaimed bool
}

func (s *ResultsService) Claim(ctx context.Context, playerID int64, phrasesetID string) (*ClaimResult, error) {
	ps, err := s.phrasesetRepo.GetByID(ctx, phrasesetID)
	if err != nil {
		return nil, err
	}
	if ps.Status != domain.PhrasesetFinalized {
		return nil, domain.NewError(domain.ErrNotAContributor)
	}
	if _, _, err := s.loadForContributor(ctx, playerID, phrasesetID); err != nil {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, phrasesetLockKey(phrasesetID))
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rv, err := s.resultViewRepo.GetForUpdate(ctx, tx, phrasesetID, playerID)
	if err != nil {
		return nil, err
	}

	if rv.PayoutClaimed {
		return &ClaimResult{Amount: rv.PayoutAmount, AlreadyClaimed: true}, nil
	}

	now := time.Now()
	if err := s.resultViewRepo.MarkClaimed(ctx, tx, phrasesetID, playerID, now); err != nil {
		return nil, err
	}

	ref := phrasesetID
	newBalance, err := s.ledger.CreditWithTx(ctx, tx, playerID, rv.PayoutAmount, domain.TxPrizePayout, &ref)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &ClaimResult{Amount: rv.PayoutAmount, NewBalance: newBalance, AlreadyClaimed: false}, nil
}

// PendingResults backs /player/pending-results: the finalised phrasesets a
// player contributed to that are still awaiting claim.
func (s *ResultsService) PendingResults(ctx context.Context, playerID int64) ([]*domain.ResultView, error) {
	return s.resultViewRepo.ListUnclaimedForPlayer(ctx, playerID)
}

// GetResults is the legacy /phrasesets/{id}/results surface: it behaves
// like GetDetails but auto-claims on the caller's behalf the first time it
// is called (§9 "Open question: auto-claim on results view" — resolved by
// routing through the same idempotent Claim path internally).
func (s *ResultsService) GetResults(ctx context.Context, playerID int64, phrasesetID string) (*Details, *ClaimResult, error) {
	details, err := s.GetDetails(ctx, playerID, phrasesetID)
	if err != nil {
		return nil, nil, err
	}

	if !details.IsFinalized {
		return details, nil, nil
	}

	claim, err := s.Claim(ctx, playerID, phrasesetID)
	if err != nil {
		return nil, nil, err
	}
	return details, claim, nil
}
