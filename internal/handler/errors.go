package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/servicehq/platform-api/pkg/errors"
)

// Error writes an error in the standard envelope. Unclassified errors
// become opaque 500s; their details go to the log, not the wire.
func Error(c *gin.Context, err error) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		c.JSON(appErr.StatusCode(), NewAppErrorResponse(appErr))
		return
	}
	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("unhandled error")
	c.JSON(http.StatusInternalServerError, NewErrorResponse("internal", "internal server error"))
}
