package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/servicehq/platform-api/internal/handler"
	apperrors "github.com/servicehq/platform-api/pkg/errors"
)

// ErrorHandler converts errors attached to the gin context into the
// standard error envelope.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)

		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("request error")
		}

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if appErr, ok := apperrors.AsAppError(lastErr.Err); ok {
			c.JSON(appErr.StatusCode(), handler.NewAppErrorResponse(appErr))
			return
		}

		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("internal", "internal server error"))
	}
}
