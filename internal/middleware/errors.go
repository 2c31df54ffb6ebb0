package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"userhub/api/internal/apperr"
)

// WriteError aborts the request with err's public body. Errors outside the
// taxonomy are logged and answered with the generic internal body.
func WriteError(c *gin.Context, log zerolog.Logger, err error) {
	requestID := c.Writer.Header().Get(requestIDHeader)

	appErr, ok := apperr.As(err)
	if !ok {
		log.Error().Err(err).Str("request_id", requestID).Msg("unhandled error")
		body := apperr.Internal()
		c.AbortWithStatusJSON(body.StatusCode, body)
		return
	}

	if appErr.Kind == apperr.KindService {
		log.Error().
			Err(err).
			Str("request_id", requestID).
			Str("location", appErr.LocationCode).
			Fields(appErr.Context).
			Msg("service unavailable")
	}

	c.AbortWithStatusJSON(appErr.StatusCode, appErr.Body())
}
