package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"collabsphere.app/server/internal/apperr"
)

// respondError maps the error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is logged and reported as a plain 500.
func respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apperr.KindInvalidState:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case apperr.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.KindUnavailable:
		slog.WarnContext(ctx, "dependency unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
	default:
		slog.ErrorContext(ctx, "request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
