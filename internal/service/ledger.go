package service

import (
	"context"
	"time"

	"github.com/quipflip/backend/internal/domain"
	"github.com/quipflip/backend/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger is the single place balance mutations and their append-only
// transaction rows are written together (§4.1). Every entry point locks
// the player row with SELECT ... FOR UPDATE before mutating balance, so
// concurrent debits against the same player serialize at the database.
type Ledger struct {
	db              *pgxpool.Pool
	playerRepo      *repository.PlayerRepository
	transactionRepo *repository.TransactionRepository
}

func NewLedger(db *pgxpool.Pool, playerRepo *repository.PlayerRepository, transactionRepo *repository.TransactionRepository) *Ledger {
	return &Ledger{db: db, playerRepo: playerRepo, transactionRepo: transactionRepo}
}

// Debit deducts amount from the player's balance in its own transaction,
// refusing the operation with ErrInsufficientBalance if it would go
// negative. Returns the new balance.
func (l *Ledger) Debit(ctx context.Context, playerID, amount int64, kind domain.TransactionKind, referenceID *string) (newBalance int64, err error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	newBalance, err = l.DebitWithTx(ctx, tx, playerID, amount, kind, referenceID)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// DebitWithTx is Debit composed into a transaction the caller already
// owns, so round-start operations can combine the cost debit with the
// round insert atomically.
func (l *Ledger) DebitWithTx(ctx context.Context, tx pgx.Tx, playerID, amount int64, kind domain.TransactionKind, referenceID *string) (newBalance int64, err error) {
	player, err := l.playerRepo.GetByIDForUpdate(ctx, tx, playerID)
	if err != nil {
		return 0, err
	}

	if player.Balance < amount {
		return 0, domain.NewError(domain.ErrInsufficientBalance)
	}

	newBalance = player.Balance - amount
	if _, err := tx.Exec(ctx, `UPDATE players SET balance = $1 WHERE id = $2`, newBalance, playerID); err != nil {
		return 0, err
	}

	if _, err := l.transactionRepo.CreateWithTx(ctx, tx, playerID, -amount, kind, referenceID, newBalance); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (l *Ledger) Credit(ctx context.Context, playerID, amount int64, kind domain.TransactionKind, referenceID *string) (newBalance int64, err error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	newBalance, err = l.CreditWithTx(ctx, tx, playerID, amount, kind, referenceID)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (l *Ledger) CreditWithTx(ctx context.Context, tx pgx.Tx, playerID, amount int64, kind domain.TransactionKind, referenceID *string) (newBalance int64, err error) {
	player, err := l.playerRepo.GetByIDForUpdate(ctx, tx, playerID)
	if err != nil {
		return 0, err
	}

	newBalance = player.Balance + amount
	if _, err := tx.Exec(ctx, `UPDATE players SET balance = $1 WHERE id = $2`, newBalance, playerID); err != nil {
		return 0, err
	}

	if _, err := l.transactionRepo.CreateWithTx(ctx, tx, playerID, amount, kind, referenceID, newBalance); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// RecordNote appends a transaction row without touching balance — used for
// penalty entries that are already reflected in a smaller refund amount
// rather than a second deduction (§4.6 timeout policy).
func (l *Ledger) RecordNote(ctx context.Context, tx pgx.Tx, playerID, amount int64, kind domain.TransactionKind, referenceID *string, balanceAfter int64) error {
	_, err := l.transactionRepo.CreateWithTx(ctx, tx, playerID, amount, kind, referenceID, balanceAfter)
	return err
}

// GetBalance reads the current balance with no locking.
func (l *Ledger) GetBalance(ctx context.Context, playerID int64) (int64, error) {
	player, err := l.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return 0, err
	}
	return player.Balance, nil
}

func (l *Ledger) GetTransactionHistory(ctx context.Context, playerID int64, limit int) ([]*domain.Transaction, error) {
	return l.transactionRepo.GetByPlayerID(ctx, playerID, limit)
}

// GetLeaderboard ranks players by winnings (vote + prize payouts); pass
// monthly=true for the current calendar month, false for all-time.
func (l *Ledger) GetLeaderboard(ctx context.Context, monthly bool, limit int) ([]domain.LeaderboardEntry, error) {
	return l.transactionRepo.GetLeaderboard(ctx, leaderboardWindowStart(monthly), limit)
}

// GetPlayerRank returns a player's rank and winnings total within the same
// monthly/all-time window GetLeaderboard uses.
func (l *Ledger) GetPlayerRank(ctx context.Context, playerID int64, monthly bool) (rank int, winnings int64, err error) {
	return l.transactionRepo.GetPlayerRank(ctx, playerID, leaderboardWindowStart(monthly))
}

func leaderboardWindowStart(monthly bool) time.Time {
	if !monthly {
		return time.Time{}
	}
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
