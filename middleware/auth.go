package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"legalestate/auth"
	"legalestate/utils"
)

const sessionKey = "session"

// Auth validates the Authorization header and attaches the session.
type Auth struct {
	Tokens *auth.TokenIssuer
	Logger *zap.Logger
}

// ValidateJWT answers 401 when no bearer token is presented and 403 when the
// token is invalid, expired or revoked.
func (m *Auth) ValidateJWT(c *gin.Context) {
	session, err := auth.ResolveSession(c.Request.Context(), m.Tokens, c.GetHeader("Authorization"))
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrMissingToken):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
		return
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenRevoked):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid token"})
		return
	default:
		// The revocation registry could not be reached.
		if m.Logger != nil {
			m.Logger.Error("token verification failed", zap.Error(err))
		}
		utils.CaptureError(err, map[string]any{"endpoint": c.Request.URL.Path})
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Authentication temporarily unavailable"})
		return
	}

	c.Set(sessionKey, session)
	c.Request = c.Request.WithContext(auth.WithSession(c.Request.Context(), session))
	c.Next()
}

// RequireRole must run after ValidateJWT.
func RequireRole(role auth.Role) gin.HandlerFunc {
	message := "Lawyer access required"
	if role == auth.RoleClient {
		message = "Client access required"
	}

	return func(c *gin.Context) {
		session, ok := GetSession(c)
		if !ok || session.Role() != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": message})
			return
		}
		c.Next()
	}
}

// GetSession exposes the authenticated session to handlers.
func GetSession(c *gin.Context) (*auth.Session, bool) {
	value, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	session, ok := value.(*auth.Session)
	return session, ok && session.Authenticated()
}
