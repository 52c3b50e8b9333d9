package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const refreshCookieName = "refresh_token"

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register implements POST /player (§6).
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_phrase"})
		return
	}

	player, err := h.Players.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"player_id": player.ID,
		"username":  player.Username,
		"api_key":   player.APIKey,
		"balance":   player.Balance,
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login implements POST /auth/login: sets the refresh token as an
// HTTP-only cookie and returns the access token in the body (§6).
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_credentials"})
		return
	}

	player, access, refresh, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	setRefreshCookie(c, refresh)
	c.JSON(http.StatusOK, gin.H{
		"access_token": access,
		"player_id":    player.ID,
		"username":     player.Username,
		"balance":      player.Balance,
	})
}

// Refresh implements POST /auth/refresh: rotates the refresh cookie and
// returns a fresh access token.
func (h *Handler) Refresh(c *gin.Context) {
	raw, err := c.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_revoked"})
		return
	}

	access, newRaw, err := h.Auth.Refresh(c.Request.Context(), raw)
	if err != nil {
		respondError(c, err)
		return
	}

	setRefreshCookie(c, newRaw)
	c.JSON(http.StatusOK, gin.H{"access_token": access})
}

// Logout implements POST /auth/logout: revokes the current refresh token.
func (h *Handler) Logout(c *gin.Context) {
	raw, err := c.Cookie(refreshCookieName)
	if err == nil && raw != "" {
		_ = h.Auth.Logout(c.Request.Context(), raw)
	}
	clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RotateKey implements POST /player/rotate-key.
func (h *Handler) RotateKey(c *gin.Context) {
	playerID, ok := playerIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
		return
	}

	newKey, err := h.Players.RotateAPIKey(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"api_key": newKey})
}

type legacyLoginRequest struct {
	Username string `json:"username" binding:"required"`
}

// LegacyLogin implements POST /player/login: username-based API-key
// recovery with no password (§4.4, §6).
func (h *Handler) LegacyLogin(c *gin.Context) {
	var req legacyLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "username_not_found"})
		return
	}

	apiKey, err := h.Auth.RecoverAPIKeyByUsername(c.Request.Context(), req.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"api_key": apiKey})
}

func setRefreshCookie(c *gin.Context, raw string) {
	c.SetCookie(refreshCookieName, raw, 30*24*60*60, "/", "", true, true)
}

func clearRefreshCookie(c *gin.Context) {
	c.SetCookie(refreshCookieName, "", -1, "/", "", true, true)
}
