// README: Bearer-token auth middleware.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"offpeak/internal/infra"
	"offpeak/internal/types"
)

const ctxKeyUID = "auth.uid"

// Auth verifies the Authorization bearer token and stores the caller's
// user ID on the request context. Requests without a valid token are
// rejected with 401 before any handler runs.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := verifier.VerifyToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxKeyUID, token.UserID)
		c.Next()
	}
}

// CallerUID returns the authenticated user ID, or "" when the request
// did not pass through Auth.
func CallerUID(c *gin.Context) types.ID {
	v, ok := c.Get(ctxKeyUID)
	if !ok {
		return ""
	}
	uid, _ := v.(types.ID)
	return uid
}
