package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/quipflip/backend/internal/domain"
	"github.com/quipflip/backend/internal/repository"
	"github.com/quipflip/backend/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
)

func applyMigrations(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := db.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", f.Name(), err)
		}
	}
}

func connectTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	applyMigrations(t, db)
	return db
}

func createTestPlayer(t *testing.T, repo *repository.PlayerRepository, username string, startingBalance int64) *domain.Player {
	t.Helper()
	p, err := repo.Create(context.Background(), username, username+"@example.com", "hash", username+"-key", startingBalance)
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	return p
}

func TestLedger_DebitCredit_UpdatesBalanceAndLogsTransaction(t *testing.T) {
	db := connectTestDB(t)
	defer db.Close()

	playerRepo := repository.NewPlayerRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	ledger := service.NewLedger(db, playerRepo, transactionRepo)

	p := createTestPlayer(t, playerRepo, "ledger_debit_credit", 1000)

	ctx := context.Background()
	newBalance, err := ledger.Debit(ctx, p.ID, 300, domain.TxPromptEntry, nil)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if newBalance != 700 {
		t.Fatalf("got balance %d, want 700", newBalance)
	}

	newBalance, err = ledger.Credit(ctx, p.ID, 150, domain.TxVotePayout, nil)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if newBalance != 850 {
		t.Fatalf("got balance %d, want 850", newBalance)
	}

	history, err := ledger.GetTransactionHistory(ctx, p.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d transaction rows, want 2", len(history))
	}
}

func TestLedger_Debit_RejectsInsufficientBalance(t *testing.T) {
	db := connectTestDB(t)
	defer db.Close()

	playerRepo := repository.NewPlayerRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	ledger := service.NewLedger(db, playerRepo, transactionRepo)

	p := createTestPlayer(t, playerRepo, "ledger_insufficient", 50)

	_, err := ledger.Debit(context.Background(), p.ID, 100, domain.TxPromptEntry, nil)
	if err == nil {
		t.Fatal("expected insufficient balance error")
	}

	balance, berr := ledger.GetBalance(context.Background(), p.ID)
	if berr != nil {
		t.Fatalf("get balance: %v", berr)
	}
	if balance != 50 {
		t.Fatalf("balance mutated despite rejected debit: got %d, want 50", balance)
	}
}

func TestLedger_RecordNote_LeavesBalanceUntouched(t *testing.T) {
	db := connectTestDB(t)
	defer db.Close()

	playerRepo := repository.NewPlayerRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	ledger := service.NewLedger(db, playerRepo, transactionRepo)

	p := createTestPlayer(t, playerRepo, "ledger_note", 500)

	tx, err := db.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(context.Background())

	if err := ledger.RecordNote(context.Background(), tx, p.ID, -20, domain.TxPenalty, nil, 500); err != nil {
		t.Fatalf("record note: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	balance, err := ledger.GetBalance(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != 500 {
		t.Fatalf("RecordNote mutated balance: got %d, want 500", balance)
	}

	history, err := ledger.GetTransactionHistory(context.Background(), p.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Kind != domain.TxPenalty {
		t.Fatalf("expected one penalty-kind row, got %+v", history)
	}
}
