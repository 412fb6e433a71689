package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tree-census/internal/session"
)

const (
	sessionContextKey   = "sessionID"
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer"
	// SessionCookie carries the token for browser clients that cannot set headers.
	SessionCookie = "census_session"
)

func Session(issuer *session.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session token missing"})
			return
		}

		claims, err := issuer.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		c.Set(sessionContextKey, claims.SessionID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if rawHeader := c.GetHeader(authorizationHeader); rawHeader != "" {
		parts := strings.SplitN(rawHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], bearerPrefix) {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

func MustSessionID(c *gin.Context) (string, bool) {
	value, exists := c.Get(sessionContextKey)
	if !exists {
		return "", false
	}

	id, ok := value.(string)
	if !ok || id == "" {
		return "", false
	}

	return id, true
}
