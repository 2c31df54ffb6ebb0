package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"userhub/api/internal/authorization"
)

// RequireFeature stops requests whose actor lacks capability.
func RequireFeature(capability string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authorization.Authorize(ActorFrom(c), capability); err != nil {
			WriteError(c, log, err)
			return
		}
		c.Next()
	}
}
