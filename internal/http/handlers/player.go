package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const defaultLeaderboardLimit = 50

// Balance implements GET /player/balance (§6).
func (h *Handler) Balance(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	player, err := h.Players.GetByID(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}

	outstanding, err := h.Players.OutstandingPromptsCount(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":                  player.Balance,
		"daily_bonus_available":    h.Players.DailyBonusAvailable(player),
		"outstanding_prompts":      outstanding,
		"max_outstanding_prompts":  h.Players.MaxOutstandingPrompts(),
	})
}

// ClaimDailyBonus implements POST /player/claim-daily-bonus.
func (h *Handler) ClaimDailyBonus(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	newBalance, err := h.Players.ClaimDailyBonus(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": newBalance})
}

// CurrentRound implements GET /player/current-round: the resume view for
// the player's active round, or an empty body if there isn't one.
func (h *Handler) CurrentRound(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	player, err := h.Players.GetByID(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}

	if player.ActiveRoundID == nil {
		c.JSON(http.StatusOK, gin.H{"round": nil})
		return
	}

	round, err := h.Rounds.GetByID(c.Request.Context(), playerID, *player.ActiveRoundID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"round": round})
}

// PendingResults implements GET /player/pending-results.
func (h *Handler) PendingResults(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	views, err := h.Results.PendingResults(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": views})
}

// Leaderboard implements GET /player/leaderboard: players ranked by vote
// and prize payouts, monthly by default or all-time with ?window=all_time.
// Also reports the caller's own rank, even if it falls outside the
// returned page.
func (h *Handler) Leaderboard(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	monthly := c.Query("window") != "all_time"

	entries, err := h.Ledger.GetLeaderboard(c.Request.Context(), monthly, defaultLeaderboardLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	rank, winnings, err := h.Ledger.GetPlayerRank(c.Request.Context(), playerID, monthly)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"window":      map[bool]string{true: "monthly", false: "all_time"}[monthly],
		"leaderboard": entries,
		"your_rank":   rank,
		"your_winnings": winnings,
	})
}
