package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/middleware"
)

// EventStreamer serves an organization's live document feed on an
// upgraded connection.
type EventStreamer interface {
	Serve(w http.ResponseWriter, r *http.Request, orgID uuid.UUID)
}

type EventsHandler struct {
	hub EventStreamer
}

func NewEventsHandler(hub EventStreamer) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream handles GET /api/events. Without Redis there is no feed.
func (h *EventsHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live events are not enabled"})
		return
	}
	h.hub.Serve(c.Writer, c.Request, middleware.GetOrganizationID(c))
}
