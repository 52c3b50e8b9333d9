package service

import (
	"context"
	"time"

	"github.com/quipflip/backend/internal/domain"
	"github.com/quipflip/backend/internal/lock"
	"github.com/quipflip/backend/internal/repository"
)

// QueueStore is the FIFO projection described in §4.3: it has no owning
// storage of its own, every operation reads or writes the rounds table
// (the database is the queue). The per-queue lock only needs to be held
// around dequeue_next_prompt_for, since that is the only operation where
// two concurrent callers could otherwise claim the same prompt.
type QueueStore struct {
	roundRepo      *repository.RoundRepository
	abandonedRepo  *repository.AbandonedRepository
	locker         lock.Locker
	discountDepth  int
	abandonedCool  time.Duration
}

const dequeueLockKey = "queue:prompt"

func NewQueueStore(roundRepo *repository.RoundRepository, abandonedRepo *repository.AbandonedRepository, locker lock.Locker, discountDepth int, abandonedCooldown time.Duration) *QueueStore {
	return &QueueStore{
		roundRepo:     roundRepo,
		abandonedRepo: abandonedRepo,
		locker:        locker,
		discountDepth: discountDepth,
		abandonedCool: abandonedCooldown,
	}
}

// PromptQueueDepth is the count of submitted prompts still awaiting a
// second copy, used both for /rounds/available and discount activation.
func (q *QueueStore) PromptQueueDepth(ctx context.Context) (int, error) {
	return q.roundRepo.PromptQueueDepth(ctx)
}

// IsDiscountActive reports depth > threshold (§4.3).
func (q *QueueStore) IsDiscountActive(ctx context.Context) (bool, error) {
	depth, err := q.PromptQueueDepth(ctx)
	if err != nil {
		return false, err
	}
	return depth > q.discountDepth, nil
}

// DequeueNextPromptFor picks the oldest eligible prompt for playerID,
// skipping the player's own prompts and any prompt currently in that
// player's abandon-cooldown window. Held under the per-queue lock so two
// concurrent copy-round starts can't both claim the same prompt — the
// actual "claim" is the copy-round insert the caller performs immediately
// after, inside the same higher-level transaction.
func (q *QueueStore) DequeueNextPromptFor(ctx context.Context, playerID int64) (*domain.PromptQueueEntry, func(), error) {
	release, err := q.locker.Lock(ctx, dequeueLockKey)
	if err != nil {
		return nil, nil, err
	}

	cooling, err := q.abandonedRepo.CooldownSetFor(ctx, playerID, q.abandonedCool)
	if err != nil {
		release()
		return nil, nil, err
	}

	excludeIDs := make([]string, 0, len(cooling))
	for id := range cooling {
		excludeIDs = append(excludeIDs, id)
	}

	entries, err := q.roundRepo.OpenPromptQueue(ctx, playerID, excludeIDs, 1)
	if err != nil {
		release()
		return nil, nil, err
	}
	if len(entries) == 0 {
		release()
		return nil, nil, domain.NewError(domain.ErrNoPromptsAvailable)
	}

	entry := entries[0]
	return &entry, release, nil
}
