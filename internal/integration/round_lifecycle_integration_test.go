package integration

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quipflip/backend/internal/domain"
	"github.com/quipflip/backend/internal/engine"
	"github.com/quipflip/backend/internal/lock"
	"github.com/quipflip/backend/internal/repository"
	"github.com/quipflip/backend/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
)

func loadTestWordList(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		words = append(words, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return words
}

// harness wires the full service graph against a real test database, the
// same components cmd/app/main.go assembles, minus the HTTP layer.
type harness struct {
	pool          *pgxpool.Pool
	phrasesetRepo *repository.PhrasesetRepository
	roundRepo     *repository.RoundRepository
	playerRepo    *repository.PlayerRepository
	sessionRepo   *repository.SessionRepository
	ledger        *service.Ledger
	players       *service.PlayerService
	rounds        *service.RoundService
	votes         *service.VoteService
	results       *service.ResultsService
	queue         *service.QueueStore
	auth          *service.AuthService
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithMaxVotes(t, 20)
}

func newHarnessWithMaxVotes(t *testing.T, maxVotes int) *harness {
	t.Helper()
	db := connectTestDB(t)
	t.Cleanup(func() { db.Close() })

	playerRepo := repository.NewPlayerRepository(db)
	roundRepo := repository.NewRoundRepository(db)
	phrasesetRepo := repository.NewPhrasesetRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	dailyBonusRepo := repository.NewDailyBonusRepository(db)
	abandonedRepo := repository.NewAbandonedRepository(db)
	resultViewRepo := repository.NewResultViewRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	locker := lock.NewLocker(nil)
	ledger := service.NewLedger(db, playerRepo, transactionRepo)
	playerSvc := service.NewPlayerService(db, playerRepo, dailyBonusRepo, ledger, locker, 1000, 50, 3)
	queue := service.NewQueueStore(roundRepo, abandonedRepo, locker, 5, time.Minute)

	dict := engine.NewDictionary(loadTestWordList(t, filepath.Join("..", "engine", "testdata", "naspa.txt")))
	validator := engine.NewPhraseValidator(dict, engine.NewBigramCosineScorer(), 0.85)
	prompts := engine.NewPromptLibrary(loadTestWordList(t, filepath.Join("..", "engine", "testdata", "prompts.txt")))

	roundSvc := service.NewRoundService(db, roundRepo, phrasesetRepo, abandonedRepo, playerSvc, ledger, queue, validator, prompts, locker, service.RoundServiceConfig{
		PromptCost:       10,
		CopyCostNormal:   10,
		CopyCostDiscount: 5,
		VoteCost:         5,
		BasePrizePool:    300,
		PromptWindow:     time.Hour,
		CopyWindow:       time.Hour,
		VoteWindow:       time.Hour,
		GraceBand:        time.Minute,
		TimeoutPenalty:   2,
	})

	voteSvc := service.NewVoteService(db, roundRepo, phrasesetRepo, voteRepo, resultViewRepo, playerSvc, ledger, locker, service.VoteServiceConfig{
		CorrectVotePayout: 5,
		RapidWindow:       10 * time.Minute,
		MaxVotes:          maxVotes,
		GraceBand:         time.Minute,
	})

	resultsSvc := service.NewResultsService(db, roundRepo, phrasesetRepo, voteRepo, resultViewRepo, ledger, locker)

	jwt := service.NewJWTIssuer("test-jwt-secret", time.Hour)
	authSvc := service.NewAuthService(playerRepo, sessionRepo, jwt, 30*24*time.Hour)

	return &harness{
		pool:          db,
		phrasesetRepo: phrasesetRepo,
		roundRepo:     roundRepo,
		playerRepo:    playerRepo,
		sessionRepo:   sessionRepo,
		ledger:        ledger,
		players:       playerSvc,
		rounds:        roundSvc,
		votes:         voteSvc,
		results:       resultsSvc,
		queue:         queue,
		auth:          authSvc,
	}
}

// phrasesetForPromptRound is a direct SQL read: none of the repositories
// expose a "phraseset by prompt round" lookup (production code always
// starts from a phraseset id, never a prompt round id), so the test reaches
// past the repository layer to observe materialization happened.
func (h *harness) phrasesetForPromptRound(t *testing.T, promptRoundID string) (id string, totalPool int64) {
	t.Helper()
	err := h.pool.QueryRow(context.Background(),
		`SELECT id, total_pool FROM phrasesets WHERE prompt_round_id = $1`, promptRoundID,
	).Scan(&id, &totalPool)
	if err != nil {
		return "", 0
	}
	return id, totalPool
}

// materializePhraseset drives a real prompt + two copies through RoundService
// so the resulting phraseset matches production shape exactly, then returns
// its id. namePrefix keeps usernames unique across calls within one test.
func (h *harness) materializePhraseset(t *testing.T, namePrefix string) string {
	t.Helper()
	ctx := context.Background()

	prompter := h.newPlayer(t, namePrefix+"_prompter")
	copier1 := h.newPlayer(t, namePrefix+"_copier1")
	copier2 := h.newPlayer(t, namePrefix+"_copier2")

	promptRound, err := h.rounds.StartPromptRound(ctx, prompter.ID)
	if err != nil {
		t.Fatalf("start prompt round: %v", err)
	}
	if _, err := h.rounds.Submit(ctx, prompter.ID, promptRound.ID, "RICH MAN"); err != nil {
		t.Fatalf("submit prompt: %v", err)
	}

	copyRound1, err := h.rounds.StartCopyRound(ctx, copier1.ID)
	if err != nil {
		t.Fatalf("start copy round 1: %v", err)
	}
	if _, err := h.rounds.Submit(ctx, copier1.ID, copyRound1.ID, "WEALTHY MAN"); err != nil {
		t.Fatalf("submit copy 1: %v", err)
	}

	copyRound2, err := h.rounds.StartCopyRound(ctx, copier2.ID)
	if err != nil {
		t.Fatalf("start copy round 2: %v", err)
	}
	if _, err := h.rounds.Submit(ctx, copier2.ID, copyRound2.ID, "FAMOUS MAN"); err != nil {
		t.Fatalf("submit copy 2: %v", err)
	}

	phrasesetID, _ := h.phrasesetForPromptRound(t, promptRound.ID)
	if phrasesetID == "" {
		t.Fatal("phraseset did not materialize")
	}
	return phrasesetID
}

// castVoteFor manufactures a vote round for a fresh voter against an
// existing phraseset (bypassing RoundService.StartVoteRound's own
// assignment-priority query, which would otherwise be free to hand the
// voter a different phraseset left over from another test in the same
// database) and casts its vote, returning the result.
func (h *harness) castVoteFor(t *testing.T, phrasesetID string, voter *domain.Player, votedIndex int) *service.VoteResult {
	t.Helper()
	ctx := context.Background()

	ps, err := h.phrasesetRepo.GetByID(ctx, phrasesetID)
	if err != nil {
		t.Fatalf("get phraseset: %v", err)
	}
	shuffled := [3]string{ps.Original, ps.Copy1, ps.Copy2}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	round, err := h.roundRepo.CreateVoteRound(ctx, tx, voter.ID, phrasesetID, shuffled, 5, time.Now().Add(time.Hour))
	if err != nil {
		tx.Rollback(ctx)
		t.Fatalf("create vote round: %v", err)
	}
	if err := h.players.EnterRound(ctx, tx, voter.ID, round.ID); err != nil {
		tx.Rollback(ctx)
		t.Fatalf("enter round: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	result, err := h.votes.CastVote(ctx, voter.ID, round.ID, votedIndex)
	if err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	return result
}

func (h *harness) newPlayer(t *testing.T, username string) *domain.Player {
	t.Helper()
	p, err := h.players.Register(context.Background(), username, username+"@example.com", "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return p
}

func TestRoundLifecycle_PromptCopyCopy_MaterializesPhraseset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	prompter := h.newPlayer(t, "lifecycle_prompter")
	copier1 := h.newPlayer(t, "lifecycle_copier1")
	copier2 := h.newPlayer(t, "lifecycle_copier2")

	promptRound, err := h.rounds.StartPromptRound(ctx, prompter.ID)
	if err != nil {
		t.Fatalf("start prompt round: %v", err)
	}

	if _, err := h.rounds.Submit(ctx, prompter.ID, promptRound.ID, "RICH MAN"); err != nil {
		t.Fatalf("submit prompt: %v", err)
	}

	balanceAfterPrompt, err := h.players.GetByID(ctx, prompter.ID)
	if err != nil {
		t.Fatalf("get prompter: %v", err)
	}
	if balanceAfterPrompt.Balance != 990 {
		t.Fatalf("got prompter balance %d, want 990", balanceAfterPrompt.Balance)
	}

	copyRound1, err := h.rounds.StartCopyRound(ctx, copier1.ID)
	if err != nil {
		t.Fatalf("start copy round 1: %v", err)
	}
	if _, err := h.rounds.Submit(ctx, copier1.ID, copyRound1.ID, "WEALTHY MAN"); err != nil {
		t.Fatalf("submit copy 1: %v", err)
	}

	copyRound2, err := h.rounds.StartCopyRound(ctx, copier2.ID)
	if err != nil {
		t.Fatalf("start copy round 2: %v", err)
	}
	if _, err := h.rounds.Submit(ctx, copier2.ID, copyRound2.ID, "FAMOUS MAN"); err != nil {
		t.Fatalf("submit copy 2: %v", err)
	}

	phrasesetID, totalPool := h.phrasesetForPromptRound(t, promptRound.ID)
	if phrasesetID == "" {
		t.Fatal("phraseset not materialized after second copy submitted")
	}
	if totalPool != 300 {
		t.Fatalf("got total pool %d, want 300 (no discount active)", totalPool)
	}
}

// TestRoundLifecycle_StartPromptRound_RespectsOutstandingCap drives three of
// the player's own prompts to an open phraseset (the state
// OutstandingPromptsCount actually measures) and checks the 4th prompt start
// is refused. Each phraseset's copy-round FK slots are filled with the
// player's own submitted prompt round — standing in for two real copy
// rounds, since only the phraseset's existence in 'open' status matters
// here, not who authored the copies.
func TestRoundLifecycle_StartPromptRound_RespectsOutstandingCap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.newPlayer(t, "lifecycle_outstanding_cap")

	for i := 0; i < 3; i++ {
		round, err := h.rounds.StartPromptRound(ctx, p.ID)
		if err != nil {
			t.Fatalf("start prompt round %d: %v", i, err)
		}
		if _, err := h.rounds.Submit(ctx, p.ID, round.ID, "RICH MAN"); err != nil {
			t.Fatalf("submit prompt %d: %v", i, err)
		}

		tx, err := h.pool.Begin(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if _, err := h.phrasesetRepo.Create(ctx, tx, round.ID, round.ID, round.ID, "RICH MAN", "RICH MAN", "WEALTHY MAN", "FAMOUS MAN", 300, 0); err != nil {
			tx.Rollback(ctx)
			t.Fatalf("create phraseset %d: %v", i, err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	if _, err := h.rounds.StartPromptRound(ctx, p.ID); err == nil {
		t.Fatal("expected 4th outstanding prompt to be rejected")
	}
}

func TestRoundLifecycle_EnterRound_RejectsSecondActiveRound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.newPlayer(t, "lifecycle_singleton_round")

	if _, err := h.rounds.StartPromptRound(ctx, p.ID); err != nil {
		t.Fatalf("start first prompt round: %v", err)
	}

	if _, err := h.rounds.StartPromptRound(ctx, p.ID); err == nil {
		t.Fatal("expected second concurrent round to be rejected by the singleton-active-round gate")
	}
}
