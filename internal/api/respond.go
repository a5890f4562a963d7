package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/middleware"
	"github.com/lalith-99/vectorvault/internal/repository"
	"github.com/lalith-99/vectorvault/internal/service"
	"go.uber.org/zap"
)

// statusFor maps a service error to its HTTP status and the message the
// client sees. Anything unclassified is an internal error whose detail stays
// in the logs.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrLimitReached):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "insufficient permissions"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "already exists"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// respondError writes the error response and logs internal failures with
// op as the message.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		middleware.LoggerFrom(c, logger).Error(op, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

func internalError(c *gin.Context, logger *zap.Logger, op string, err error) {
	middleware.LoggerFrom(c, logger).Error(op, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// pathID parses the :id parameter, writing a 400 when it is not a UUID.
func pathID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " id"})
		return uuid.Nil, false
	}
	return id, true
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}
