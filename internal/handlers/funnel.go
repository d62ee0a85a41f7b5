package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/requestdata"
	"github.com/yungbote/funnelforge-backend/internal/services"
)

type FunnelHandler struct {
	svc services.FunnelService
	log *logger.Logger
}

func NewFunnelHandler(svc services.FunnelService, log *logger.Logger) *FunnelHandler {
	return &FunnelHandler{svc: svc, log: log.With("handler", "Funnel")}
}

type createFunnelRequest struct {
	Name    string            `json:"name" binding:"required"`
	Answers map[string]string `json:"answers"`
}

func (h *FunnelHandler) Create(c *gin.Context) {
	userID, err := requestdata.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req createFunnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	funnel, err := h.svc.Create(c.Request.Context(), userID, req.Name, req.Answers)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, funnel)
}

func (h *FunnelHandler) Get(c *gin.Context) {
	userID, funnelID, ok := h.requestTarget(c)
	if !ok {
		return
	}
	funnel, err := h.svc.Get(c.Request.Context(), userID, funnelID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, funnel)
}

type updateAnswersRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
}

func (h *FunnelHandler) UpdateAnswers(c *gin.Context) {
	userID, funnelID, ok := h.requestTarget(c)
	if !ok {
		return
	}
	var req updateAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	funnel, err := h.svc.UpdateAnswers(c.Request.Context(), userID, funnelID, req.Answers)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, funnel)
}

func (h *FunnelHandler) ListSections(c *gin.Context) {
	userID, funnelID, ok := h.requestTarget(c)
	if !ok {
		return
	}
	docs, err := h.svc.ListCurrentSections(c.Request.Context(), userID, funnelID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sections": docs})
}

func (h *FunnelHandler) History(c *gin.Context) {
	userID, funnelID, ok := h.requestTarget(c)
	if !ok {
		return
	}
	docs, err := h.svc.History(c.Request.Context(), userID, funnelID, c.Param("section"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": docs})
}

func (h *FunnelHandler) Approve(c *gin.Context) {
	userID, funnelID, ok := h.requestTarget(c)
	if !ok {
		return
	}
	if err := h.svc.Approve(c.Request.Context(), userID, funnelID, c.Param("section")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

type lockRequest struct {
	Locked bool `json:"locked"`
}

func (h *FunnelHandler) SetLocked(c *gin.Context) {
	userID, funnelID, ok := h.requestTarget(c)
	if !ok {
		return
	}
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.SetLocked(c.Request.Context(), userID, funnelID, c.Param("section"), req.Locked); err != nil {
		respondError(c, h.log, err)
		return
	}
	status := "approved"
	if req.Locked {
		status = "locked"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *FunnelHandler) requestTarget(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, err := requestdata.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, uuid.Nil, false
	}
	funnelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid funnel id"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, funnelID, true
}
