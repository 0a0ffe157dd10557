package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"parking-availability-backend/internal/auth"
)

// UserIDKey is the gin context key under which Auth stores the resolved
// user ID.
const UserIDKey = "userID"

// Auth is a middleware that resolves the request to a user ID from a bearer
// token. Handlers behind it can rely on UserID(c) being set.
func Auth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		fields := strings.Fields(header)
		if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		userID, err := tokens.Parse(fields[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token is invalid or expired"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// OptionalAuth resolves a bearer token when one is present but lets
// anonymous requests through. Handlers use UserID to tell the cases apart.
func OptionalAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		fields := strings.Fields(header)
		if len(fields) == 2 && strings.EqualFold(fields[0], "Bearer") {
			if userID, err := tokens.Parse(fields[1]); err == nil {
				c.Set(UserIDKey, userID)
			}
		}
		c.Next()
	}
}

// UserID returns the user ID stored by Auth, or false if the middleware did
// not run for this request.
func UserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
