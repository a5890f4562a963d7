package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/vectorvault/internal/middleware"
	"github.com/lalith-99/vectorvault/internal/repository"
	"go.uber.org/zap"
)

const defaultCategoryColor = "#6366f1"

type CategoryHandler struct {
	repo   repository.CategoryRepository
	logger *zap.Logger
}

func NewCategoryHandler(repo repository.CategoryRepository, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{repo: repo, logger: logger}
}

type categoryRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

func (r *categoryRequest) normalize() bool {
	r.Name = strings.TrimSpace(r.Name)
	if r.Color == "" {
		r.Color = defaultCategoryColor
	}
	return r.Name != ""
}

// List handles GET /api/categories
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.repo.List(c.Request.Context(), middleware.GetOrganizationID(c))
	if err != nil {
		internalError(c, h.logger, "list categories", err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// Get handles GET /api/categories/:id
func (h *CategoryHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "category")
	if !ok {
		return
	}

	cat, err := h.repo.GetByID(c.Request.Context(), middleware.GetOrganizationID(c), id)
	if err != nil {
		internalError(c, h.logger, "get category", err)
		return
	}
	if cat == nil {
		notFound(c, "category")
		return
	}
	c.JSON(http.StatusOK, cat)
}

// Create handles POST /api/categories
func (h *CategoryHandler) Create(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.normalize() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	cat, err := h.repo.Create(c.Request.Context(), middleware.GetOrganizationID(c), req.Name, req.Color)
	if err != nil {
		respondError(c, h.logger, "create category", err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// Update handles PUT /api/categories/:id
func (h *CategoryHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "category")
	if !ok {
		return
	}

	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.normalize() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	cat, err := h.repo.Update(c.Request.Context(), middleware.GetOrganizationID(c), id, req.Name, req.Color)
	if err != nil {
		respondError(c, h.logger, "update category", err)
		return
	}
	if cat == nil {
		notFound(c, "category")
		return
	}
	c.JSON(http.StatusOK, cat)
}

// Delete handles DELETE /api/categories/:id
func (h *CategoryHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "category")
	if !ok {
		return
	}

	deleted, err := h.repo.Delete(c.Request.Context(), middleware.GetOrganizationID(c), id)
	if err != nil {
		internalError(c, h.logger, "delete category", err)
		return
	}
	if !deleted {
		notFound(c, "category")
		return
	}
	c.Status(http.StatusNoContent)
}
