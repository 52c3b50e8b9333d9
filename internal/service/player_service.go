package service

import (
	"context"
	"time"

	"github.com/quipflip/backend/internal/domain"
	"github.com/quipflip/backend/internal/lock"
	"github.com/quipflip/backend/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// PlayerService owns account creation and the per-player invariants that
// are not purely per-row: daily-bonus eligibility, the outstanding-prompts
// cap, and the singleton-active-round gate (§4.4).
type PlayerService struct {
	db             *pgxpool.Pool
	playerRepo     *repository.PlayerRepository
	dailyBonusRepo *repository.DailyBonusRepository
	ledger         *Ledger
	locker         lock.Locker

	startingBalance       int64
	dailyBonusAmount      int64
	maxOutstandingPrompts int
}

func NewPlayerService(
	db *pgxpool.Pool,
	playerRepo *repository.PlayerRepository,
	dailyBonusRepo *repository.DailyBonusRepository,
	ledger *Ledger,
	locker lock.Locker,
	startingBalance, dailyBonusAmount int64,
	maxOutstandingPrompts int,
) *PlayerService {
	return &PlayerService{
		db:                    db,
		playerRepo:            playerRepo,
		dailyBonusRepo:        dailyBonusRepo,
		ledger:                ledger,
		locker:                locker,
		startingBalance:       startingBalance,
		dailyBonusAmount:      dailyBonusAmount,
		maxOutstandingPrompts: maxOutstandingPrompts,
	}
}

// Register creates a player with a fresh legacy API key and bcrypt
// password hash. A taken username violates the players.username unique
// constraint and comes back as the raw pgx error; neither this method nor
// the Register handler maps it to ErrUsernameTaken, and email is not
// checked for uniqueness.
func (s *PlayerService) Register(ctx context.Context, username, email, password string) (*domain.Player, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	apiKey, err := newAPIKey()
	if err != nil {
		return nil, err
	}

	return s.playerRepo.Create(ctx, username, email, string(hash), apiKey, s.startingBalance)
}

func newAPIKey() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *PlayerService) VerifyPassword(player *domain.Player, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(password)) == nil
}

func (s *PlayerService) RotateAPIKey(ctx context.Context, playerID int64) (string, error) {
	newKey, err := newAPIKey()
	if err != nil {
		return "", err
	}
	if err := s.playerRepo.RotateAPIKey(ctx, playerID, newKey); err != nil {
		return "", err
	}
	return newKey, nil
}

// DailyBonusAvailable reports the §4.4 eligibility rule: the calendar date
// has advanced since last login, and the player didn't just register today.
func (s *PlayerService) DailyBonusAvailable(player *domain.Player) bool {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	creationDate := player.CreatedAt.UTC().Truncate(24 * time.Hour)
	return today.After(player.LastLoginDate) && player.LastLoginDate.After(creationDate)
}

// ClaimDailyBonus credits the bonus and advances last_login_date in one
// transaction, guarded by the per-player lock and the daily_bonuses unique
// constraint so a retry or a race never double-credits.
func (s *PlayerService) ClaimDailyBonus(ctx context.Context, playerID int64) (newBalance int64, err error) {
	release, err := s.locker.Lock(ctx, playerLockKeyFor(playerID))
	if err != nil {
		return 0, err
	}
	defer release()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	player, err := s.playerRepo.GetByIDForUpdate(ctx, tx, playerID)
	if err != nil {
		return 0, err
	}
	if !s.DailyBonusAvailable(player) {
		return 0, domain.NewError(domain.ErrAlreadyClaimedToday)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	ok, err := s.dailyBonusRepo.Claim(ctx, tx, playerID, today)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.NewError(domain.ErrAlreadyClaimedToday)
	}

	if err := s.playerRepo.SetLastLoginDate(ctx, tx, playerID, today); err != nil {
		return 0, err
	}

	newBalance, err = s.ledger.CreditWithTx(ctx, tx, playerID, s.dailyBonusAmount, domain.TxDailyBonus, nil)
	if err != nil {
		return 0, err
	}

	return newBalance, tx.Commit(ctx)
}

// OutstandingPromptsCount reports how many of the player's prompts are
// still in {open, closing} (§4.4, §9 GLOSSARY).
func (s *PlayerService) OutstandingPromptsCount(ctx context.Context, playerID int64) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM phrasesets ps
		JOIN rounds pr ON pr.id = ps.prompt_round_id
		WHERE pr.player_id = $1 AND ps.status IN ('open', 'closing')`,
		playerID,
	).Scan(&count)
	return count, err
}

func (s *PlayerService) MaxOutstandingPrompts() int {
	return s.maxOutstandingPrompts
}

// GetByID is the plain, unlocked player lookup used by handlers building
// the balance and resume views.
func (s *PlayerService) GetByID(ctx context.Context, playerID int64) (*domain.Player, error) {
	return s.playerRepo.GetByID(ctx, playerID)
}

// EnterRound is the singleton-round gate: it fails with ErrAlreadyInRound
// (carrying the offending round id) unless active_round_id is currently
// null. Callers invoke this inside the same transaction as the round
// insert and the Ledger debit (§4.4).
func (s *PlayerService) EnterRound(ctx context.Context, tx pgx.Tx, playerID int64, roundID string) error {
	player, err := s.playerRepo.GetByIDForUpdate(ctx, tx, playerID)
	if err != nil {
		return err
	}
	if player.ActiveRoundID != nil {
		return &domain.Error{Code: domain.ErrAlreadyInRound, Message: *player.ActiveRoundID}
	}
	return s.playerRepo.SetActiveRound(ctx, tx, playerID, &roundID)
}

func (s *PlayerService) LeaveRound(ctx context.Context, tx pgx.Tx, playerID int64) error {
	return s.playerRepo.SetActiveRound(ctx, tx, playerID, nil)
}

