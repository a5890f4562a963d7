package api

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/middleware"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/lalith-99/vectorvault/internal/repository"
	"go.uber.org/zap"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type SharedViewHandler struct {
	views  repository.SharedViewRepository
	orgs   repository.OrganizationRepository
	docs   repository.DocumentRepository
	logger *zap.Logger
}

func NewSharedViewHandler(
	views repository.SharedViewRepository,
	orgs repository.OrganizationRepository,
	docs repository.DocumentRepository,
	logger *zap.Logger,
) *SharedViewHandler {
	return &SharedViewHandler{views: views, orgs: orgs, docs: docs, logger: logger}
}

type sharedViewRequest struct {
	Name             string      `json:"name" binding:"required"`
	Slug             string      `json:"slug" binding:"required"`
	CollectionID     *uuid.UUID  `json:"collection_id"`
	FilterCategories []uuid.UUID `json:"filter_categories"`
	IsPublic         bool        `json:"is_public"`
}

func (h *SharedViewHandler) bind(c *gin.Context) (*sharedViewRequest, bool) {
	var req sharedViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and slug are required"})
		return nil, false
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if req.Name == "" || !slugPattern.MatchString(req.Slug) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slug must be lowercase letters, digits and hyphens"})
		return nil, false
	}
	return &req, true
}

func (h *SharedViewHandler) List(c *gin.Context) {
	views, err := h.views.List(c.Request.Context(), middleware.GetOrganizationID(c))
	if err != nil {
		internalError(c, h.logger, "list shared views", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *SharedViewHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "shared view")
	if !ok {
		return
	}

	view, err := h.views.GetByID(c.Request.Context(), middleware.GetOrganizationID(c), id)
	if err != nil {
		internalError(c, h.logger, "get shared view", err)
		return
	}
	if view == nil {
		notFound(c, "shared view")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *SharedViewHandler) Create(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	p := middleware.GetPrincipal(c)
	view, err := h.views.Create(c.Request.Context(), &models.SharedView{
		OrganizationID:   p.OrganizationID,
		Name:             req.Name,
		Slug:             req.Slug,
		CollectionID:     req.CollectionID,
		FilterCategories: req.FilterCategories,
		IsPublic:         req.IsPublic,
		CreatedBy:        p.ActorID,
	})
	if err != nil {
		respondError(c, h.logger, "create shared view", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *SharedViewHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "shared view")
	if !ok {
		return
	}
	req, ok := h.bind(c)
	if !ok {
		return
	}

	view, err := h.views.Update(c.Request.Context(), &models.SharedView{
		ID:               id,
		OrganizationID:   middleware.GetOrganizationID(c),
		Name:             req.Name,
		Slug:             req.Slug,
		CollectionID:     req.CollectionID,
		FilterCategories: req.FilterCategories,
		IsPublic:         req.IsPublic,
	})
	if err != nil {
		respondError(c, h.logger, "update shared view", err)
		return
	}
	if view == nil {
		notFound(c, "shared view")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *SharedViewHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "shared view")
	if !ok {
		return
	}

	deleted, err := h.views.Delete(c.Request.Context(), middleware.GetOrganizationID(c), id)
	if err != nil {
		internalError(c, h.logger, "delete shared view", err)
		return
	}
	if !deleted {
		notFound(c, "shared view")
		return
	}
	c.Status(http.StatusNoContent)
}

// Public handles GET /shared/:slug without authentication. Only views with
// is_public set are ever returned. On a tenant host the lookup is scoped to
// that organization; a private view is indistinguishable from a missing one.
func (h *SharedViewHandler) Public(c *gin.Context) {
	slug := strings.ToLower(c.Param("slug"))
	if !slugPattern.MatchString(slug) {
		notFound(c, "shared view")
		return
	}

	scope := uuid.Nil
	if org := middleware.GetOrganization(c); org != nil {
		scope = org.ID
	}

	ctx := c.Request.Context()
	view, err := h.views.GetPublicBySlug(ctx, scope, slug)
	if err != nil {
		internalError(c, h.logger, "get public view", err)
		return
	}
	if view == nil || !view.IsPublic {
		notFound(c, "shared view")
		return
	}

	org, err := h.orgs.GetByID(ctx, view.OrganizationID)
	if err != nil {
		internalError(c, h.logger, "get view organization", err)
		return
	}
	if org == nil {
		notFound(c, "shared view")
		return
	}

	docs, err := h.docs.ListForView(ctx, view)
	if err != nil {
		internalError(c, h.logger, "list view documents", err)
		return
	}
	if docs == nil {
		docs = make([]models.Document, 0)
	}

	c.JSON(http.StatusOK, models.PublicView{View: *view, Organization: *org, Documents: docs})
}
