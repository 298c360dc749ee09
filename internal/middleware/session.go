package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
	"github.com/RodenPaul86/docmatic/pkg/response"
)

// ContextSessionKey is the gin context key storing session claims.
const ContextSessionKey = "session"

// SessionValidator parses session tokens.
type SessionValidator interface {
	ValidateToken(token string) (*models.SessionClaims, error)
}

// Session requires a valid session token. Lock authentication is scoped to the session
// it identifies.
func Session(validator SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "session token required"))
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextSessionKey, claims)
		c.Next()
	}
}

// SessionID returns the current session ID, or "" outside the Session middleware.
func SessionID(c *gin.Context) string {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return ""
	}
	claims, ok := value.(*models.SessionClaims)
	if !ok || claims == nil {
		return ""
	}
	return claims.SessionID
}
