package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vibeai/backend/internal/errors"
	"github.com/vibeai/backend/internal/util"
)

// TokenValidator resolves a bearer token to a principal id
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// OptionalIdentity accepts anonymous requests. When an Authorization bearer
// token is present it must be valid, and its principal is stored under
// util.PrincipalKey.
func OptionalIdentity(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || validator == nil {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			util.RespondWithAPIError(c, errors.Unauthorized("malformed authorization header"))
			c.Abort()
			return
		}

		principal, err := validator.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			util.RespondWithAPIError(c, errors.Unauthorized("invalid token"))
			c.Abort()
			return
		}

		c.Set(util.PrincipalKey, principal)
		c.Next()
	}
}
