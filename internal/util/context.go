package util

import (
	"github.com/gin-gonic/gin"
)

// PrincipalKey is the gin context key holding an authenticated principal id
const PrincipalKey = "principal_id"

// GetPrincipalFromContext returns the authenticated principal id if the
// identity middleware accepted a bearer token. Anonymous callers get "", false.
func GetPrincipalFromContext(c *gin.Context) (string, bool) {
	v, exists := c.Get(PrincipalKey)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
