package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vaultshare/backend/auth"
)

// UserIDKey is where middleware stores the authenticated user's uuid in the
// gin context.
const UserIDKey = "userID"

func bearerToken(c *gin.Context) string {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// AuthRequired rejects requests without a valid Bearer token.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}
		userID, err := auth.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		parsed, err := uuid.Parse(userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token subject"})
			return
		}
		c.Set(UserIDKey, parsed)
		c.Next()
	}
}

// AuthOptional resolves the caller's identity when a valid Bearer token is
// present and continues anonymously otherwise. Access endpoints use this: the
// same URL serves signed-in consumers and anonymous visitors, and the engine
// decides what anonymity is allowed to do.
func AuthOptional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if userID, err := auth.ValidateToken(token); err == nil {
				if parsed, err := uuid.Parse(userID); err == nil {
					c.Set(UserIDKey, parsed)
				}
			}
			// invalid token: continue unauthenticated rather than failing
		}
		c.Next()
	}
}
