package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/vectorvault/internal/middleware"
	"github.com/lalith-99/vectorvault/internal/repository"
	"go.uber.org/zap"
)

type CollectionHandler struct {
	repo   repository.CollectionRepository
	logger *zap.Logger
}

func NewCollectionHandler(repo repository.CollectionRepository, logger *zap.Logger) *CollectionHandler {
	return &CollectionHandler{repo: repo, logger: logger}
}

type collectionRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

func (h *CollectionHandler) List(c *gin.Context) {
	collections, err := h.repo.List(c.Request.Context(), middleware.GetOrganizationID(c))
	if err != nil {
		internalError(c, h.logger, "list collections", err)
		return
	}
	c.JSON(http.StatusOK, collections)
}

func (h *CollectionHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "collection")
	if !ok {
		return
	}

	col, err := h.repo.GetByID(c.Request.Context(), middleware.GetOrganizationID(c), id)
	if err != nil {
		internalError(c, h.logger, "get collection", err)
		return
	}
	if col == nil {
		notFound(c, "collection")
		return
	}
	c.JSON(http.StatusOK, col)
}

func (h *CollectionHandler) Create(c *gin.Context) {
	var req collectionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	col, err := h.repo.Create(c.Request.Context(), middleware.GetOrganizationID(c), strings.TrimSpace(req.Name), req.Description)
	if err != nil {
		respondError(c, h.logger, "create collection", err)
		return
	}
	c.JSON(http.StatusCreated, col)
}

func (h *CollectionHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "collection")
	if !ok {
		return
	}

	var req collectionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	col, err := h.repo.Update(c.Request.Context(), middleware.GetOrganizationID(c), id, strings.TrimSpace(req.Name), req.Description)
	if err != nil {
		respondError(c, h.logger, "update collection", err)
		return
	}
	if col == nil {
		notFound(c, "collection")
		return
	}
	c.JSON(http.StatusOK, col)
}

// Delete handles DELETE /api/collections/:id. Documents in the collection
// are kept; the database clears their collection reference.
func (h *CollectionHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "collection")
	if !ok {
		return
	}

	deleted, err := h.repo.Delete(c.Request.Context(), middleware.GetOrganizationID(c), id)
	if err != nil {
		internalError(c, h.logger, "delete collection", err)
		return
	}
	if !deleted {
		notFound(c, "collection")
		return
	}
	c.Status(http.StatusNoContent)
}
