package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const msgEndpointNotFound = "Endpoint not found"

// ErrorCase maps a sentinel error to an HTTP status code and response message. An empty
// Message echoes the error text, which is only safe for caller-facing errors such as
// validation failures.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
// Unmatched errors are attached to the gin context so the access log records them.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			message := cs.Message
			if message == "" {
				message = err.Error()
			}
			c.JSON(cs.Status, NewErrorResponse(c, message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// NotFound answers unmatched routes with the standard error body.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, NewErrorResponse(c, msgEndpointNotFound))
}

// Recovery builds a gin recovery handler that logs the panic and answers with the standard error body.
func Recovery(log *zap.Logger) gin.RecoveryFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context, recovered any) {
		log.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, NewErrorResponse(c, msgInternalError))
	}
}
