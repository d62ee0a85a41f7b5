package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/funnelforge-backend/internal/errs"
	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/services"
)

// respondError maps service errors onto HTTP statuses. Missing-dependency
// rejections carry the full list so the client can prompt the user to approve
// the right sections.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var missingDep *services.MissingDependencyError
	if errors.As(err, &missingDep) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   missingDep.Error(),
			"code":    "missing_dependency",
			"section": missingDep.Section,
			"missing": missingDep.Missing,
		})
		return
	}

	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, errs.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error("request failed", "path", c.FullPath(), "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
