package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/auth"
	"github.com/lalith-99/vectorvault/internal/middleware"
	"github.com/lalith-99/vectorvault/internal/service"
	"go.uber.org/zap"
)

// Providers with a chatbot-style search endpoint.
const ProviderManyChat = "manychat"

var integrationProviders = map[string]bool{
	ProviderManyChat: true,
}

// IntegrationHandler serves search to third-party bots authenticated by API
// key. Every response carries a "success" flag.
type IntegrationHandler struct {
	svc       DocumentService
	limit     int
	threshold float64
	logger    *zap.Logger
}

func NewIntegrationHandler(svc DocumentService, limit int, threshold float64, logger *zap.Logger) *IntegrationHandler {
	return &IntegrationHandler{svc: svc, limit: limit, threshold: threshold, logger: logger}
}

type integrationRequest struct {
	Query        string     `json:"query"`
	CollectionID *uuid.UUID `json:"collection_id"`
	Limit        int        `json:"limit"`
}

type integrationResult struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Similarity float64   `json:"similarity"`
}

func integrationError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// Search handles POST /api/integrations/:provider
func (h *IntegrationHandler) Search(c *gin.Context) {
	if !integrationProviders[c.Param("provider")] {
		integrationError(c, http.StatusNotFound, "unknown integration")
		return
	}

	p := middleware.GetPrincipal(c)
	if !p.Can(auth.ActionSearch) {
		integrationError(c, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req integrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		integrationError(c, http.StatusBadRequest, "query is required")
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = h.limit
	}
	threshold := h.threshold

	results, err := h.svc.Search(c.Request.Context(), p.OrganizationID, service.SearchRequest{
		Query:        req.Query,
		Limit:        limit,
		Threshold:    &threshold,
		CollectionID: req.CollectionID,
	})
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			middleware.LoggerFrom(c, h.logger).Error("integration search",
				zap.String("provider", c.Param("provider")), zap.Error(err))
		}
		integrationError(c, status, msg)
		return
	}

	out := make([]integrationResult, 0, len(results))
	for _, r := range results {
		out = append(out, integrationResult{
			ID:         r.ID,
			Title:      r.Title,
			Content:    r.Content,
			Similarity: r.Similarity,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": out})
}
