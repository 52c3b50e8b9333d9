package http

import (
	"time"

	"github.com/quipflip/backend/internal/http/handlers"
	"github.com/quipflip/backend/internal/http/middleware"
	"github.com/quipflip/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterRoutes mounts every endpoint from §6 onto r. Unauthenticated
// endpoints (register, login, legacy key recovery, health) sit alongside
// middleware.Auth-gated ones; round-start endpoints additionally carry a
// per-player rate limit so one impatient client can't starve its own retry
// budget into someone else's.
func RegisterRoutes(r *gin.Engine, db *pgxpool.Pool, version string, h *handlers.Handler, authSvc *service.AuthService) {
	healthHandler := handlers.NewHealthHandler(db, version)

	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	r.POST("/player", middleware.RedisRateLimit(10, time.Minute), h.Register)
	r.POST("/player/login", middleware.RedisRateLimit(10, time.Minute), h.LegacyLogin)
	r.POST("/auth/login", middleware.RedisRateLimit(10, time.Minute), h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", h.Logout)

	auth := r.Group("/")
	auth.Use(middleware.Auth(authSvc))

	auth.POST("/player/rotate-key", h.RotateKey)
	auth.GET("/player/balance", h.Balance)
	auth.POST("/player/claim-daily-bonus", middleware.UserRateLimit("daily-bonus", 3, time.Minute), h.ClaimDailyBonus)
	auth.GET("/player/current-round", h.CurrentRound)
	auth.GET("/player/pending-results", h.PendingResults)
	auth.GET("/player/leaderboard", h.Leaderboard)

	auth.GET("/rounds/available", h.Available)
	auth.POST("/rounds/prompt", middleware.UserRateLimit("start-prompt", 10, time.Minute), h.StartPrompt)
	auth.POST("/rounds/copy", middleware.UserRateLimit("start-copy", 10, time.Minute), h.StartCopy)
	auth.POST("/rounds/vote", middleware.UserRateLimit("start-vote", 20, time.Minute), h.StartVote)
	auth.POST("/rounds/:id/submit", h.Submit)
	auth.GET("/rounds/:id", h.GetRound)

	auth.POST("/phrasesets/:id/vote", h.Vote)
	auth.GET("/phrasesets/:id/details", h.Details)
	auth.GET("/phrasesets/:id/results", h.LegacyResults)
	auth.POST("/phrasesets/:id/claim", h.Claim)
}
