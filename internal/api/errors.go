package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/themobileprof/telecare-be/internal/chat"
	"github.com/themobileprof/telecare-be/internal/db"
	"github.com/themobileprof/telecare-be/internal/triage"
	"github.com/themobileprof/telecare-be/pkg/auth"
)

var errInvalidID = errors.New("invalid id")

// respondError maps domain errors onto HTTP status codes. Anything
// unrecognised is logged and reported as a 500 without detail.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var verr *triage.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": verr.Fields})
	case errors.Is(err, errInvalidID),
		errors.Is(err, chat.ErrSelfChat),
		errors.Is(err, chat.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case errors.Is(err, triage.ErrForbidden), errors.Is(err, chat.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	case errors.Is(err, triage.ErrNotFound),
		errors.Is(err, chat.ErrNotFound),
		errors.Is(err, chat.ErrParticipantNotFound),
		errors.Is(err, db.ErrDoctorNotFound),
		errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, db.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// bindError reports a request body that failed gin binding
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
}

// pathID reads a uuid path parameter, normalised to lowercase
func pathID(c *gin.Context, name string) (string, error) {
	return parseUUID(c.Param(name))
}

func parseUUID(s string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", errInvalidID
	}
	return id.String(), nil
}

// queryInt reads a positive integer query parameter, falling back to def
func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 1 {
		return def
	}
	return v
}
