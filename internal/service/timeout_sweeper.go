package service

import (
	"context"
	"time"

	"github.com/quipflip/backend/internal/logger"
	"github.com/quipflip/backend/internal/repository"
)

// TimeoutSweeper is the cooperative background task from §4.10. It is an
// availability mechanism, not a source of truth: every transition it
// performs is identical to what a request handler would do on lazy
// detection, and it is safe to run zero, one, or many instances
// concurrently since every mutation goes through the same locked,
// transactional paths as the handlers (grounded on the teacher's
// ticker-driven cleanupExpiredGames in mines_pro_service.go, generalised
// from an in-memory map sweep to a database-backed one).
type TimeoutSweeper struct {
	roundRepo     *repository.RoundRepository
	phrasesetRepo *repository.PhrasesetRepository
	roundSvc      *RoundService
	voteSvc       *VoteService
	interval        time.Duration
	graceBand       time.Duration
	thirdVoteWindow time.Duration
	batchSize       int
}

func NewTimeoutSweeper(
	roundRepo *repository.RoundRepository,
	phrasesetRepo *repository.PhrasesetRepository,
	roundSvc *RoundService,
	voteSvc *VoteService,
	interval, graceBand, thirdVoteWindow time.Duration,
) *TimeoutSweeper {
	return &TimeoutSweeper{
		roundRepo:       roundRepo,
		phrasesetRepo:   phrasesetRepo,
		roundSvc:        roundSvc,
		voteSvc:         voteSvc,
		interval:        interval,
		graceBand:       graceBand,
		thirdVoteWindow: thirdVoteWindow,
		batchSize:       200,
	}
}

// Run blocks, sweeping on every tick until ctx is cancelled. Call it from
// its own goroutine; cmd/app wires its lifetime to the server's shutdown
// context.
func (s *TimeoutSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *TimeoutSweeper) sweepOnce(ctx context.Context) {
	rounds, err := s.roundRepo.ExpiredActiveRounds(ctx, s.graceBand, s.batchSize)
	if err != nil {
		logger.Error("sweep: list expired rounds", "error", err)
	} else {
		for _, r := range rounds {
			if err := s.roundSvc.Timeout(ctx, r.ID); err != nil {
				logger.Error("sweep: timeout round", "round_id", r.ID, "error", err)
			}
		}
	}

	stale, err := s.phrasesetRepo.OpenWithThirdVoteElapsed(ctx, s.thirdVoteWindow, s.batchSize)
	if err != nil {
		logger.Error("sweep: list stale open phrasesets", "error", err)
	} else {
		for _, ps := range stale {
			if err := s.voteSvc.TransitionStaleToClosing(ctx, ps.ID); err != nil {
				logger.Error("sweep: transition to closing", "phraseset_id", ps.ID, "error", err)
			}
		}
	}

	phrasesets, err := s.phrasesetRepo.ClosingAndExpired(ctx, s.batchSize)
	if err != nil {
		logger.Error("sweep: list closing phrasesets", "error", err)
		return
	}
	for _, ps := range phrasesets {
		if err := s.voteSvc.CloseExpiredIfReady(ctx, ps.ID); err != nil {
			logger.Error("sweep: close phraseset", "phraseset_id", ps.ID, "error", err)
		}
	}
}
