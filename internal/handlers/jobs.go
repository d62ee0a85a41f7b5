package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/requestdata"
	"github.com/yungbote/funnelforge-backend/internal/services"
)

type JobHandler struct {
	svc services.JobService
	log *logger.Logger
}

func NewJobHandler(svc services.JobService, log *logger.Logger) *JobHandler {
	return &JobHandler{svc: svc, log: log.With("handler", "Job")}
}

func (h *JobHandler) Get(c *gin.Context) {
	userID, err := requestdata.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	job, err := h.svc.GetByID(c.Request.Context(), userID, jobID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) LatestForFunnel(c *gin.Context) {
	userID, err := requestdata.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	funnelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid funnel id"})
		return
	}
	job, err := h.svc.GetLatestForFunnel(c.Request.Context(), userID, funnelID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
