package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/funnelforge-backend/internal/funnel/chunks"
	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
	"github.com/yungbote/funnelforge-backend/internal/funnel/schema"
	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/requestdata"
	"github.com/yungbote/funnelforge-backend/internal/services"
)

type RegenerateHandler struct {
	svc services.RegenerationService
	log *logger.Logger
}

func NewRegenerateHandler(svc services.RegenerationService, log *logger.Logger) *RegenerateHandler {
	return &RegenerateHandler{svc: svc, log: log.With("handler", "Regenerate")}
}

type regenerateRequest struct {
	ChangedAnswers map[string]string `json:"changed_answers"`
	SectionKey     string            `json:"section_key"`
	Feedback       string            `json:"feedback"`
	RegenerateAll  bool              `json:"regenerate_all"`
	Async          bool              `json:"async"`
}

func (h *RegenerateHandler) Regenerate(c *gin.Context) {
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
	var req regenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, report, err := h.svc.Regenerate(c.Request.Context(), userID, services.RegenerateInput{
		FunnelID:       funnelID,
		ChangedAnswers: req.ChangedAnswers,
		SectionKey:     req.SectionKey,
		Feedback:       req.Feedback,
		RegenerateAll:  req.RegenerateAll,
		Async:          req.Async,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	if report != nil && report.NoOp {
		c.JSON(http.StatusOK, gin.H{"report": report})
		return
	}
	if req.Async {
		c.JSON(http.StatusAccepted, gin.H{"job": job})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "report": report})
}

// Info exposes the static regeneration topology: the dependency graph, each
// section's declared fields, and which sections fan out into chunks.
func (h *RegenerateHandler) Info(c *gin.Context) {
	sections := make([]gin.H, 0, len(graph.AllSections()))
	for _, id := range graph.AllSections() {
		entry := gin.H{
			"section":           id,
			"answer_keys":       graph.AnswerDependencies(id),
			"upstream_sections": graph.UpstreamSections(id),
			"field_count":       len(schema.Fields(id)),
		}
		if plan := chunks.PlanFor(id); plan != nil {
			names := make([]string, 0, len(plan))
			for _, spec := range plan {
				names = append(names, spec.Name)
			}
			entry["chunks"] = names
		}
		sections = append(sections, entry)
	}
	c.JSON(http.StatusOK, gin.H{
		"answer_keys": graph.AnswerKeys(),
		"sections":    sections,
	})
}
