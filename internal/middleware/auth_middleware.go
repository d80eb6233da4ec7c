package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/slotbook/internal/app/models/dto"
	"github.com/yigit/slotbook/internal/pkg/auth"
)

// Gin context keys set for authenticated admin requests
const (
	AdminUsernameKey    = "adminUsername"
	SessionExpiresAtKey = "sessionExpiresAt"
)

// SessionValidator validates a session token taken from the cookie
type SessionValidator interface {
	ValidateSession(token string) (*auth.Claims, error)
}

// AuthMiddleware gates admin routes behind the session cookie
type AuthMiddleware struct {
	sessions SessionValidator
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(sessions SessionValidator) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// AdminRequired rejects requests without a valid admin session
func (m *AuthMiddleware) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(auth.SessionCookieName)
		if errors.Is(err, http.ErrNoCookie) || token == "" {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required").
				WithDetails("admin session cookie missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
			return
		}

		claims, err := m.sessions.ValidateSession(token)
		if err != nil {
			HandleAPIError(c, err)
			return
		}

		c.Set(AdminUsernameKey, claims.Username)
		if claims.ExpiresAt != nil {
			c.Set(SessionExpiresAtKey, claims.ExpiresAt.Time)
		}
		c.Next()
	}
}
