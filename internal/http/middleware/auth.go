package middleware

import (
	"net/http"
	"strings"

	"github.com/quipflip/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// Auth accepts either a Bearer access token or a legacy X-API-Key header as
// equivalent principals (§4.5) and stores the resolved player id under
// "player_id". Handlers downstream never learn which credential was used.
func Auth(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bearer := c.GetHeader("Authorization"); bearer != "" {
			token, ok := strings.CutPrefix(bearer, "Bearer ")
			if !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
				return
			}

			playerID, err := authSvc.AuthenticateAccessToken(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
				return
			}

			c.Set("player_id", playerID)
			c.Next()
			return
		}

		if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
			player, err := authSvc.AuthenticateAPIKey(c.Request.Context(), apiKey)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid_credentials"})
				return
			}

			c.Set("player_id", player.ID)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "token_expired"})
	}
}

// PlayerID reads the id stored by Auth. Callers must only reach handlers
// mounted behind Auth, so the second return is for defensive callers only.
func PlayerID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("player_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
