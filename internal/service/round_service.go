package service

import (
	"context"
	"strconv"
	"time"

	"github.com/quipflip/backend/internal/domain"
	"github.com/quipflip/backend/internal/engine"
	"github.com/quipflip/backend/internal/lock"
	"github.com/quipflip/backend/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoundService drives start/submit/timeout for all three round roles and
// promotes the second successful copy into a Phraseset (§4.6). It is the
// largest component because it is the one place all the others meet:
// PlayerService's invariants, Ledger's debits, QueueStore's dequeue, and
// PhraseValidator's checks are all composed here inside single database
// transactions.
type RoundService struct {
	db              *pgxpool.Pool
	roundRepo       *repository.RoundRepository
	phrasesetRepo   *repository.PhrasesetRepository
	abandonedRepo   *repository.AbandonedRepository
	playerSvc       *PlayerService
	ledger          *Ledger
	queue           *QueueStore
	validator       *engine.PhraseValidator
	prompts         *engine.PromptLibrary
	locker          lock.Locker

	promptCost       int64
	copyCostNormal   int64
	copyCostDiscount int64
	voteCost         int64
	basePrizePool    int64

	promptWindow time.Duration
	copyWindow   time.Duration
	voteWindow   time.Duration
	graceBand    time.Duration

	timeoutPenalty int64
}

type RoundServiceConfig struct {
	PromptCost       int64
	CopyCostNormal   int64
	CopyCostDiscount int64
	VoteCost         int64
	BasePrizePool    int64

	PromptWindow time.Duration
	CopyWindow   time.Duration
	VoteWindow   time.Duration
	GraceBand    time.Duration

	TimeoutPenalty int64
}

func NewRoundService(
	db *pgxpool.Pool,
	roundRepo *repository.RoundRepository,
	phrasesetRepo *repository.PhrasesetRepository,
	abandonedRepo *repository.AbandonedRepository,
	playerSvc *PlayerService,
	ledger *Ledger,
	queue *QueueStore,
	validator *engine.PhraseValidator,
	prompts *engine.PromptLibrary,
	locker lock.Locker,
	cfg RoundServiceConfig,
) *RoundService {
	return &RoundService{
		db:               db,
		roundRepo:        roundRepo,
		phrasesetRepo:    phrasesetRepo,
		abandonedRepo:    abandonedRepo,
		playerSvc:        playerSvc,
		ledger:           ledger,
		queue:            queue,
		validator:        validator,
		prompts:          prompts,
		locker:           locker,
		promptCost:       cfg.PromptCost,
		copyCostNormal:   cfg.CopyCostNormal,
		copyCostDiscount: cfg.CopyCostDiscount,
		voteCost:         cfg.VoteCost,
		basePrizePool:    cfg.BasePrizePool,
		promptWindow:     cfg.PromptWindow,
		copyWindow:       cfg.CopyWindow,
		voteWindow:       cfg.VoteWindow,
		graceBand:        cfg.GraceBand,
		timeoutPenalty:   cfg.TimeoutPenalty,
	}
}

// PromptCost, CopyCost and VoteCost expose the configured pricing for the
// /rounds/available resume view; CopyCost reflects whatever the discount
// state is right now, which is also what StartCopyRound will charge.
func (s *RoundService) PromptCost() int64 {
	return s.promptCost
}

func (s *RoundService) CopyCost(discountActive bool) int64 {
	if discountActive {
		return s.copyCostDiscount
	}
	return s.copyCostNormal
}

func (s *RoundService) VoteCost() int64 {
	return s.voteCost
}

// StartPromptRound implements §4.6 start_prompt_round.
func (s *RoundService) StartPromptRound(ctx context.Context, playerID int64) (*domain.Round, error) {
	release, err := s.locker.Lock(ctx, playerLockKeyFor(playerID))
	if err != nil {
		return nil, err
	}
	defer release()

	outstanding, err := s.playerSvc.OutstandingPromptsCount(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if outstanding >= s.playerSvc.MaxOutstandingPrompts() {
		return nil, domain.NewError(domain.ErrMaxOutstandingPrompts)
	}

	idx, text, err := s.prompts.Random()
	if err != nil {
		return nil, err
	}
	promptID := strconv.Itoa(idx)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := s.ledger.DebitWithTx(ctx, tx, playerID, s.promptCost, domain.TxPromptEntry, nil); err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.promptWindow)
	round, err := s.roundRepo.CreatePromptRound(ctx, tx, playerID, promptID, text, s.promptCost, expiresAt)
	if err != nil {
		return nil, err
	}

	if err := s.playerSvc.EnterRound(ctx, tx, playerID, round.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return round, nil
}

// StartCopyRound implements §4.6 start_copy_round, including discount
// pricing fixed at start time (§9 "Discount stickiness").
func (s *RoundService) StartCopyRound(ctx context.Context, playerID int64) (*domain.Round, error) {
	release, err := s.locker.Lock(ctx, playerLockKeyFor(playerID))
	if err != nil {
		return nil, err
	}
	defer release()

	discount, err := s.queue.IsDiscountActive(ctx)
	if err != nil {
		return nil, err
	}
	cost := s.copyCostNormal
	if discount {
		cost = s.copyCostDiscount
	}
	systemContribution := s.copyCostNormal - cost

	entry, releaseQueue, err := s.queue.DequeueNextPromptFor(ctx, playerID)
	if err != nil {
		return nil, err
	}
	defer releaseQueue()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := s.ledger.DebitWithTx(ctx, tx, playerID, cost, domain.TxCopyEntry, nil); err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.copyWindow)
	round, err := s.roundRepo.CreateCopyRound(ctx, tx, playerID, entry.PromptRoundID, entry.PromptText, cost, systemContribution, expiresAt)
	if err != nil {
		return nil, err
	}

	if err := s.playerSvc.EnterRound(ctx, tx, playerID, round.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return round, nil
}

// StartVoteRound implements §4.6 start_vote_round and the vote-assignment
// priority rule.
func (s *RoundService) StartVoteRound(ctx context.Context, playerID int64) (*domain.Round, error) {
	release, err := s.locker.Lock(ctx, playerLockKeyFor(playerID))
	if err != nil {
		return nil, err
	}
	defer release()

	ps, err := s.pickPhrasesetForVote(ctx, playerID)
	if err != nil {
		return nil, err
	}

	shuffled, _ := engine.ShufflePhrases(ps.Original, ps.Copy1, ps.Copy2)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := s.ledger.DebitWithTx(ctx, tx, playerID, s.voteCost, domain.TxVoteEntry, nil); err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.voteWindow)
	round, err := s.roundRepo.CreateVoteRound(ctx, tx, playerID, ps.ID, shuffled, s.voteCost, expiresAt)
	if err != nil {
		return nil, err
	}

	if err := s.playerSvc.EnterRound(ctx, tx, playerID, round.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return round, nil
}

// pickPhrasesetForVote applies §4.6's three-tier priority rule, excluding
// phrasesets the player contributed to or already voted on (both filtered
// in the repository query).
func (s *RoundService) pickPhrasesetForVote(ctx context.Context, playerID int64) (*domain.Phraseset, error) {
	tier1, err := s.phrasesetRepo.CandidatesAtFiveOrMore(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if len(tier1) > 0 {
		return tier1[0], nil
	}

	tier2, err := s.phrasesetRepo.CandidatesAtThreeToFour(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if len(tier2) > 0 {
		return tier2[0], nil
	}

	tier3, err := s.phrasesetRepo.CandidatesUnderThree(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if len(tier3) > 0 {
		return tier3[0], nil
	}

	return nil, domain.NewError(domain.ErrNoWordsetsAvailable)
}

// Submit implements §4.6 submit for prompt and copy rounds. Vote rounds
// are submitted through VoteService.CastVote instead.
func (s *RoundService) Submit(ctx context.Context, playerID int64, roundID, phrase string) (*domain.Round, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	round, err := s.roundRepo.GetByIDForUpdate(ctx, tx, roundID)
	if err != nil {
		return nil, err
	}
	if round.PlayerID != playerID {
		return nil, domain.NewError(domain.ErrNotFound)
	}
	if !round.IsActive() {
		return nil, domain.NewError(domain.ErrExpired)
	}
	if !round.WithinGrace(time.Now(), s.graceBand) {
		return nil, domain.NewError(domain.ErrExpired)
	}

	var normalized string
	switch round.Role {
	case domain.RolePrompt:
		normalized, err = s.validator.ValidatePrompt(phrase)
	case domain.RoleCopy:
		normalized, err = s.validator.ValidateCopy(phrase, *round.OriginalPhrase)
	default:
		return nil, domain.NewError(domain.ErrInvalidPhrase)
	}
	if err != nil {
		if ve, ok := err.(*engine.ValidationError); ok {
			if ve.Kind == engine.DuplicatePhrase {
				return nil, domain.NewError(domain.ErrDuplicatePhrase)
			}
			return nil, domain.NewError(domain.ErrInvalidPhrase)
		}
		return nil, err
	}

	if err := s.roundRepo.Submit(ctx, tx, roundID, normalized); err != nil {
		return nil, err
	}
	if err := s.playerSvc.LeaveRound(ctx, tx, playerID); err != nil {
		return nil, err
	}

	if round.Role == domain.RoleCopy {
		if err := s.maybeMaterializePhraseset(ctx, tx, round, normalized); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	round.Status = domain.RoundStatusSubmitted
	round.SubmittedPhrase = &normalized
	return round, nil
}

// maybeMaterializePhraseset implements §9's resolution of the concurrent
// 2nd-copy open question: the per-prompt-round lock and the prompt round's
// row lock (taken before counting and held until the caller commits) scope
// the "count copies, decide phraseset creation" critical section, so a
// later submission's count includes every copy committed before it and
// whichever submission observes count==2 first wins; the loser's copy is
// still recorded but does not re-trigger creation.
func (s *RoundService) maybeMaterializePhraseset(ctx context.Context, tx pgx.Tx, copyRound *domain.Round, copyPhrase string) error {
	release, err := s.locker.Lock(ctx, "prompt:"+*copyRound.PromptRoundID)
	if err != nil {
		return err
	}
	defer release()

	promptRound, err := s.roundRepo.GetByIDForUpdate(ctx, tx, *copyRound.PromptRoundID)
	if err != nil {
		return err
	}

	count, err := s.roundRepo.CountSubmittedCopies(ctx, tx, *copyRound.PromptRoundID)
	if err != nil {
		return err
	}
	if count != 2 {
		return nil
	}

	firstCopy, err := s.roundRepo.FirstSubmittedCopy(ctx, tx, *copyRound.PromptRoundID, copyRound.ID)
	if err != nil {
		return err
	}

	totalSystemContribution := copyRound.SystemContribution + firstCopy.SystemContribution
	totalPool := s.basePrizePool + totalSystemContribution

	_, err = s.phrasesetRepo.Create(ctx, tx,
		*copyRound.PromptRoundID, firstCopy.ID, copyRound.ID,
		*promptRound.PromptText, *promptRound.SubmittedPhrase, *firstCopy.SubmittedPhrase, copyPhrase,
		totalPool, totalSystemContribution,
	)
	return err
}

// Timeout applies the §4.6 per-role timeout policy to a single round in
// its own transaction, used both by TimeoutSweeper and lazy detection on
// any state read.
func (s *RoundService) Timeout(ctx context.Context, roundID string) error {
	unlocked, err := s.roundRepo.GetByID(ctx, roundID)
	if err != nil {
		return err
	}
	if !unlocked.IsActive() {
		return nil
	}

	release, err := s.locker.Lock(ctx, playerLockKeyFor(unlocked.PlayerID))
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	round, err := s.roundRepo.GetByIDForUpdate(ctx, tx, roundID)
	if err != nil {
		return err
	}
	if !round.IsActive() {
		return nil
	}

	switch round.Role {
	case domain.RolePrompt:
		if err := s.timeoutPrompt(ctx, tx, round); err != nil {
			return err
		}
	case domain.RoleCopy:
		if err := s.timeoutCopy(ctx, tx, round); err != nil {
			return err
		}
	case domain.RoleVote:
		if err := s.timeoutVote(ctx, tx, round); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *RoundService) timeoutPrompt(ctx context.Context, tx pgx.Tx, round *domain.Round) error {
	if err := s.roundRepo.MarkExpired(ctx, tx, round.ID); err != nil {
		return err
	}
	refund := round.Cost - s.timeoutPenalty
	ref := round.ID
	newBalance, err := s.ledger.CreditWithTx(ctx, tx, round.PlayerID, refund, domain.TxRefund, &ref)
	if err != nil {
		return err
	}
	if err := s.ledger.RecordNote(ctx, tx, round.PlayerID, -s.timeoutPenalty, domain.TxPenalty, &ref, newBalance); err != nil {
		return err
	}
	return s.playerSvc.LeaveRound(ctx, tx, round.PlayerID)
}

func (s *RoundService) timeoutCopy(ctx context.Context, tx pgx.Tx, round *domain.Round) error {
	if err := s.roundRepo.MarkAbandoned(ctx, tx, round.ID); err != nil {
		return err
	}
	refund := round.Cost - s.timeoutPenalty
	ref := round.ID
	newBalance, err := s.ledger.CreditWithTx(ctx, tx, round.PlayerID, refund, domain.TxRefund, &ref)
	if err != nil {
		return err
	}
	if err := s.ledger.RecordNote(ctx, tx, round.PlayerID, -s.timeoutPenalty, domain.TxPenalty, &ref, newBalance); err != nil {
		return err
	}
	// round.SystemContribution was never credited to the player — it only
	// ever becomes real money when a phraseset materialises and folds it
	// into total_pool. Abandoning the round before that happens unwinds it
	// by construction: nothing in the ledger references it.
	if err := s.abandonedRepo.Record(ctx, tx, *round.PromptRoundID, round.PlayerID); err != nil {
		return err
	}
	if err := s.roundRepo.RequeuePrompt(ctx, tx, *round.PromptRoundID); err != nil {
		return err
	}
	return s.playerSvc.LeaveRound(ctx, tx, round.PlayerID)
}

func (s *RoundService) timeoutVote(ctx context.Context, tx pgx.Tx, round *domain.Round) error {
	if err := s.roundRepo.MarkExpired(ctx, tx, round.ID); err != nil {
		return err
	}
	return s.playerSvc.LeaveRound(ctx, tx, round.PlayerID)
}

// GetByID returns a round for its owner, lazily applying timeout if the
// window has elapsed (§4.6 "Timeouts are detected ... or lazily on any
// state read").
func (s *RoundService) GetByID(ctx context.Context, playerID int64, roundID string) (*domain.Round, error) {
	round, err := s.roundRepo.GetByID(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.PlayerID != playerID {
		return nil, domain.NewError(domain.ErrNotFound)
	}
	if round.IsActive() && !round.WithinGrace(time.Now(), s.graceBand) {
		if err := s.Timeout(ctx, roundID); err != nil {
			return nil, err
		}
		return s.roundRepo.GetByID(ctx, roundID)
	}
	return round, nil
}
