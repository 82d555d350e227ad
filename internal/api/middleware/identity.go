package middleware

import (
	"github.com/gin-gonic/gin"

	"sessionscribe/internal/api/errors"
)

// CallerIDKey is the context key holding the authenticated caller identity.
const CallerIDKey = "caller_id"

// CallerIdentity extracts the opaque caller identity established by the
// upstream auth layer. Identity verification itself is an external
// collaborator; this middleware only refuses anonymous calls.
func CallerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID := c.GetHeader("X-User-ID")
		if callerID == "" {
			HandleError(c, errors.NewUnauthorizedError("caller identity required"))
			return
		}

		c.Set(CallerIDKey, callerID)
		c.Next()
	}
}

// CallerID returns the caller identity set by CallerIdentity.
func CallerID(c *gin.Context) string {
	return c.GetString(CallerIDKey)
}

// OperatorSecret guards operator-only endpoints with a shared secret passed
// via the X-Cron-Secret header.
func OperatorSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-Cron-Secret")
		if provided == "" {
			provided = c.Query("secret")
		}
		if secret == "" || provided != secret {
			HandleError(c, errors.NewUnauthorizedError("invalid operator secret"))
			return
		}
		c.Next()
	}
}
