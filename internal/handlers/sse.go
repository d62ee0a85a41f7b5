package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/requestdata"
	"github.com/yungbote/funnelforge-backend/internal/sse"
)

type SSEHandler struct {
	hub *sse.SSEHub
	log *logger.Logger
}

func NewSSEHandler(hub *sse.SSEHub, log *logger.Logger) *SSEHandler {
	return &SSEHandler{hub: hub, log: log.With("handler", "SSE")}
}

// Stream subscribes the caller to a funnel's event channel and holds the
// connection open until the client disconnects.
func (h *SSEHandler) Stream(c *gin.Context) {
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

	client := h.hub.NewSSEClient(userID)
	h.hub.AddChannel(client, fmt.Sprintf("funnel:%s", funnelID))
	defer h.hub.RemoveClient(client)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
