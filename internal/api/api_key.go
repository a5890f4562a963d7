package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/vectorvault/internal/auth"
	"github.com/lalith-99/vectorvault/internal/middleware"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/lalith-99/vectorvault/internal/repository"
	"go.uber.org/zap"
)

// APIKeyHandler manages an organization's API keys. The plaintext key is
// returned by Create only.
type APIKeyHandler struct {
	repo   repository.APIKeyRepository
	logger *zap.Logger
}

func NewAPIKeyHandler(repo repository.APIKeyRepository, logger *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{repo: repo, logger: logger}
}

type createAPIKeyRequest struct {
	Name        string     `json:"name" binding:"required"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (h *APIKeyHandler) List(c *gin.Context) {
	keys, err := h.repo.List(c.Request.Context(), middleware.GetOrganizationID(c))
	if err != nil {
		internalError(c, h.logger, "list api keys", err)
		return
	}
	c.JSON(http.StatusOK, keys)
}

func (h *APIKeyHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "api key")
	if !ok {
		return
	}

	key, err := h.repo.GetByID(c.Request.Context(), middleware.GetOrganizationID(c), id)
	if err != nil {
		internalError(c, h.logger, "get api key", err)
		return
	}
	if key == nil {
		notFound(c, "api key")
		return
	}
	c.JSON(http.StatusOK, key)
}

// Create handles POST /api/api-keys.
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	for _, perm := range req.Permissions {
		if !auth.ValidKeyPermission(perm) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown permission: " + perm})
			return
		}
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expires_at must be in the future"})
		return
	}

	gen, err := auth.GenerateAPIKey()
	if err != nil {
		internalError(c, h.logger, "generate api key", err)
		return
	}

	perms := req.Permissions
	if perms == nil {
		perms = make([]string, 0)
	}

	p := middleware.GetPrincipal(c)
	stored, err := h.repo.Create(c.Request.Context(), &models.APIKey{
		OrganizationID: p.OrganizationID,
		Name:           strings.TrimSpace(req.Name),
		KeyPrefix:      gen.Prefix,
		KeyHash:        gen.Hash,
		Permissions:    perms,
		ExpiresAt:      req.ExpiresAt,
		CreatedBy:      p.ActorID,
	})
	if err != nil {
		respondError(c, h.logger, "create api key", err)
		return
	}

	middleware.LoggerFrom(c, h.logger).Info("api key created",
		zap.String("key_id", stored.ID.String()),
		zap.String("org_id", stored.OrganizationID.String()),
	)
	c.JSON(http.StatusCreated, models.CreatedAPIKey{APIKey: *stored, Key: gen.Key})
}

func (h *APIKeyHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "api key")
	if !ok {
		return
	}

	deleted, err := h.repo.Delete(c.Request.Context(), middleware.GetOrganizationID(c), id)
	if err != nil {
		internalError(c, h.logger, "delete api key", err)
		return
	}
	if !deleted {
		notFound(c, "api key")
		return
	}
	c.Status(http.StatusNoContent)
}
