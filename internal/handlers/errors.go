package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/gin-gonic/gin"
)

// respondError maps an application error to a status code and writes it.
func respondError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrTransient):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		logger.Error(msg, slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": msg})
		return
	}
	logger.Warn(msg, slog.String("error", err.Error()))
	c.JSON(status, gin.H{"error": err.Error()})
}
