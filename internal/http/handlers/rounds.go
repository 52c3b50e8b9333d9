package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Available implements GET /rounds/available: the dashboard the client
// polls between rounds to decide which start buttons to show (§6).
func (h *Handler) Available(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}
	ctx := c.Request.Context()

	player, err := h.Players.GetByID(ctx, playerID)
	if err != nil {
		respondError(c, err)
		return
	}

	depth, err := h.Queue.PromptQueueDepth(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	discount, err := h.Queue.IsDiscountActive(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	outstanding, err := h.Players.OutstandingPromptsCount(ctx, playerID)
	if err != nil {
		respondError(c, err)
		return
	}

	copyCost := h.Rounds.CopyCost(discount)
	idle := player.ActiveRoundID == nil

	c.JSON(http.StatusOK, gin.H{
		"can_prompt":          idle && outstanding < h.Players.MaxOutstandingPrompts() && player.Balance >= h.Rounds.PromptCost(),
		"can_copy":            idle && depth > 0 && player.Balance >= copyCost,
		"can_vote":            idle && player.Balance >= h.Rounds.VoteCost(),
		"prompt_queue_depth":  depth,
		"discount_active":     discount,
		"copy_cost":           copyCost,
	})
}

// StartPrompt implements POST /rounds/prompt.
func (h *Handler) StartPrompt(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	round, err := h.Rounds.StartPromptRound(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, round)
}

// StartCopy implements POST /rounds/copy.
func (h *Handler) StartCopy(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	round, err := h.Rounds.StartCopyRound(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, round)
}

// StartVote implements POST /rounds/vote.
func (h *Handler) StartVote(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	round, err := h.Rounds.StartVoteRound(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, round)
}

type submitRequest struct {
	Phrase string `json:"phrase" binding:"required"`
}

// Submit implements POST /rounds/{id}/submit for prompt and copy rounds.
func (h *Handler) Submit(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_phrase"})
		return
	}

	round, err := h.Rounds.Submit(c.Request.Context(), playerID, c.Param("id"), req.Phrase)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, round)
}

// GetRound implements GET /rounds/{id}.
func (h *Handler) GetRound(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	round, err := h.Rounds.GetByID(c.Request.Context(), playerID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, round)
}
