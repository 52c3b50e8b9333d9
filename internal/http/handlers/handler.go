package handlers

import (
	"errors"
	"net/http"

	"github.com/quipflip/backend/internal/domain"
	"github.com/quipflip/backend/internal/repository"
	"github.com/quipflip/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler wires every HTTP endpoint to its backing service. Every field is
// a service boundary — handlers never touch the database or the lock
// manager directly, they only ever call into one of these.
type Handler struct {
	Players *service.PlayerService
	Auth    *service.AuthService
	Rounds  *service.RoundService
	Votes   *service.VoteService
	Results *service.ResultsService
	Ledger  *service.Ledger
	Queue   *service.QueueStore
}

func NewHandler(
	players *service.PlayerService,
	auth *service.AuthService,
	rounds *service.RoundService,
	votes *service.VoteService,
	results *service.ResultsService,
	ledger *service.Ledger,
	queue *service.QueueStore,
) *Handler {
	return &Handler{
		Players: players,
		Auth:    auth,
		Rounds:  rounds,
		Votes:   votes,
		Results: results,
		Ledger:  ledger,
		Queue:   queue,
	}
}

// statusFor maps a business error code to its wire status (§6/§7).
func statusFor(code string) int {
	switch code {
	case domain.ErrInvalidCredentials, domain.ErrTokenExpired, domain.ErrTokenRevoked:
		return http.StatusUnauthorized
	case domain.ErrNotAContributor:
		return http.StatusForbidden
	case domain.ErrNotFound, domain.ErrUsernameNotFound:
		return http.StatusNotFound
	case domain.ErrAlreadyInRound, domain.ErrAlreadyVoted, domain.ErrAlreadyClaimedToday:
		return http.StatusConflict
	case domain.ErrRateLimited:
		return http.StatusTooManyRequests
	case domain.ErrDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// respondError recovers a tagged domain.Error and writes its mapped status.
// A repository.ErrNotFound passed up by a service (an unknown id) is
// answered as not_found. Anything else reaching this point is a raw pgx/db
// error, which means a dependency the request needed is down (§7).
func respondError(c *gin.Context, err error) {
	var bizErr *domain.Error
	if errors.As(err, &bizErr) {
		c.JSON(statusFor(bizErr.Code), gin.H{"detail": bizErr.Code})
		return
	}
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(statusFor(domain.ErrNotFound), gin.H{"detail": domain.ErrNotFound})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"detail": domain.ErrDependencyUnavailable})
}

// playerIDFrom reads the principal middleware.Auth resolved, regardless of
// whether it came from a bearer token or a legacy API key.
func playerIDFrom(c *gin.Context) (int64, bool) {
	v, exists := c.Get("player_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
