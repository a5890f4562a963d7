package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/vectorvault/internal/middleware"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/lalith-99/vectorvault/internal/repository"
	"go.uber.org/zap"
)

const usageHistoryMonths = 12

type UsageHandler struct {
	repo   repository.UsageRepository
	logger *zap.Logger
}

func NewUsageHandler(repo repository.UsageRepository, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{repo: repo, logger: logger}
}

// Current handles GET /api/usage/current: this month's counters and the
// active plan's limits. Limits are zero when there is no active plan.
func (h *UsageHandler) Current(c *gin.Context) {
	ctx := c.Request.Context()
	orgID := middleware.GetOrganizationID(c)

	usage, err := h.repo.Current(ctx, orgID)
	if err != nil {
		internalError(c, h.logger, "current usage", err)
		return
	}
	limits, err := h.repo.PlanLimits(ctx, orgID)
	if err != nil {
		internalError(c, h.logger, "plan limits", err)
		return
	}

	report := models.UsageReport{Usage: *usage}
	if limits != nil {
		report.Limits = *limits
	}
	c.JSON(http.StatusOK, report)
}

// History handles GET /api/usage/history: the last twelve months, newest
// first.
func (h *UsageHandler) History(c *gin.Context) {
	history, err := h.repo.History(c.Request.Context(), middleware.GetOrganizationID(c), usageHistoryMonths)
	if err != nil {
		internalError(c, h.logger, "usage history", err)
		return
	}
	c.JSON(http.StatusOK, history)
}
