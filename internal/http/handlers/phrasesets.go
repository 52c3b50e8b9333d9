package handlers

import (
	"net/http"

	"github.com/quipflip/backend/internal/domain"

	"github.com/gin-gonic/gin"
)

type castVoteRequest struct {
	VotedIndex int `json:"voted_index"`
}

// Vote implements POST /phrasesets/{id}/vote. The singleton-active-round
// invariant (§4.4) means a voting player has exactly one active round and
// it is the vote round for this phraseset, so the path id is resolved
// against the player's current round rather than threaded separately.
func (h *Handler) Vote(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_phrase"})
		return
	}

	player, err := h.Players.GetByID(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	if player.ActiveRoundID == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": domain.ErrNotFound})
		return
	}

	result, err := h.Votes.CastVote(c.Request.Context(), playerID, *player.ActiveRoundID, req.VotedIndex)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"correct":         result.Correct,
		"payout":          result.Payout,
		"original_phrase": result.OriginalPhrase,
	})
}

// Details implements GET /phrasesets/{id}/details.
func (h *Handler) Details(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	details, err := h.Results.GetDetails(c.Request.Context(), playerID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"phraseset":    details.Phraseset,
		"contributors": details.Contributors,
		"votes":        details.Votes,
		"is_finalized": details.IsFinalized,
	})
}

// LegacyResults implements GET /phrasesets/{id}/results: the legacy view
// whose first call auto-claims on the caller's behalf (§4.9).
func (h *Handler) LegacyResults(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	details, claim, err := h.Results.GetResults(c.Request.Context(), playerID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"phraseset":    details.Phraseset,
		"contributors": details.Contributors,
		"votes":        details.Votes,
		"is_finalized": details.IsFinalized,
	}
	if claim != nil {
		resp["claim"] = gin.H{
			"amount":          claim.Amount,
			"new_balance":     claim.NewBalance,
			"already_claimed": claim.AlreadyClaimed,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Claim implements POST /phrasesets/{id}/claim: the explicit, idempotent
// claim new clients should prefer over the auto-claim in LegacyResults (§4.9).
func (h *Handler) Claim(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	claim, err := h.Results.Claim(c.Request.Context(), playerID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"amount":          claim.Amount,
		"new_balance":     claim.NewBalance,
		"already_claimed": claim.AlreadyClaimed,
	})
}
