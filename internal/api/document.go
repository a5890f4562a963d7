package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/middleware"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/lalith-99/vectorvault/internal/service"
	"go.uber.org/zap"
)

// DocumentService is the quota-gated document API the handlers drive.
type DocumentService interface {
	List(ctx context.Context, orgID uuid.UUID, filter models.DocumentFilter) (*models.DocumentPage, error)
	Get(ctx context.Context, orgID, docID uuid.UUID) (*models.Document, error)
	Create(ctx context.Context, orgID uuid.UUID, actorID *uuid.UUID, in models.DocumentInput) (*models.Document, error)
	BatchCreate(ctx context.Context, orgID uuid.UUID, actorID *uuid.UUID, items []models.DocumentInput) ([]models.Document, error)
	Update(ctx context.Context, orgID uuid.UUID, actorID *uuid.UUID, docID uuid.UUID, in models.DocumentInput) (*models.Document, error)
	Delete(ctx context.Context, orgID uuid.UUID, actorID *uuid.UUID, docID uuid.UUID) error
	Search(ctx context.Context, orgID uuid.UUID, req service.SearchRequest) ([]models.SearchResult, error)
}

type DocumentHandler struct {
	svc    DocumentService
	logger *zap.Logger
}

func NewDocumentHandler(svc DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{svc: svc, logger: logger}
}

// documentRequest is the body of POST and PUT /api/documents. Emptiness
// after trimming is checked by the service.
type documentRequest struct {
	Title        string         `json:"title" binding:"required"`
	Content      string         `json:"content" binding:"required"`
	CollectionID *uuid.UUID     `json:"collection_id"`
	ExternalID   *string        `json:"external_id"`
	Metadata     map[string]any `json:"metadata"`
	Categories   []uuid.UUID    `json:"categories"`
}

func (r documentRequest) input() models.DocumentInput {
	return models.DocumentInput{
		Title:        r.Title,
		Content:      r.Content,
		CollectionID: r.CollectionID,
		ExternalID:   r.ExternalID,
		Metadata:     r.Metadata,
		CategoryIDs:  r.Categories,
	}
}

func queryUUID(c *gin.Context, key string) (*uuid.UUID, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return nil, false
	}
	return &id, true
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return n, true
}

// List handles GET /api/documents?page=&limit=&collection_id=&category_id=
func (h *DocumentHandler) List(c *gin.Context) {
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	collectionID, ok := queryUUID(c, "collection_id")
	if !ok {
		return
	}
	categoryID, ok := queryUUID(c, "category_id")
	if !ok {
		return
	}

	result, err := h.svc.List(c.Request.Context(), middleware.GetOrganizationID(c), models.DocumentFilter{
		CollectionID: collectionID,
		CategoryID:   categoryID,
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		respondError(c, h.logger, "list documents", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Get handles GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := pathID(c, "document")
	if !ok {
		return
	}

	doc, err := h.svc.Get(c.Request.Context(), middleware.GetOrganizationID(c), docID)
	if err != nil {
		respondError(c, h.logger, "get document", err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// Create handles POST /api/documents
func (h *DocumentHandler) Create(c *gin.Context) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and content are required"})
		return
	}

	p := middleware.GetPrincipal(c)
	doc, err := h.svc.Create(c.Request.Context(), p.OrganizationID, p.ActorID, req.input())
	if err != nil {
		respondError(c, h.logger, "create document", err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// Update handles PUT /api/documents/:id
func (h *DocumentHandler) Update(c *gin.Context) {
	docID, ok := pathID(c, "document")
	if !ok {
		return
	}

	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and content are required"})
		return
	}

	p := middleware.GetPrincipal(c)
	doc, err := h.svc.Update(c.Request.Context(), p.OrganizationID, p.ActorID, docID, req.input())
	if err != nil {
		respondError(c, h.logger, "update document", err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// Delete handles DELETE /api/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID, ok := pathID(c, "document")
	if !ok {
		return
	}

	p := middleware.GetPrincipal(c)
	if err := h.svc.Delete(c.Request.Context(), p.OrganizationID, p.ActorID, docID); err != nil {
		respondError(c, h.logger, "delete document", err)
		return
	}

	c.Status(http.StatusNoContent)
}

type searchRequest struct {
	Query        string      `json:"query" binding:"required"`
	Limit        int         `json:"limit"`
	Threshold    *float64    `json:"threshold"`
	CollectionID *uuid.UUID  `json:"collection_id"`
	CategoryIDs  []uuid.UUID `json:"category_ids"`
}

// Search handles POST /api/documents/search. The response is the ranked
// result list, highest similarity first.
func (h *DocumentHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	results, err := h.svc.Search(c.Request.Context(), middleware.GetOrganizationID(c), service.SearchRequest{
		Query:        req.Query,
		Limit:        req.Limit,
		Threshold:    req.Threshold,
		CollectionID: req.CollectionID,
		CategoryIDs:  req.CategoryIDs,
	})
	if err != nil {
		respondError(c, h.logger, "search documents", err)
		return
	}

	c.JSON(http.StatusOK, results)
}

type batchRequest struct {
	Documents []documentRequest `json:"documents" binding:"required,min=1"`
}

// BatchCreate handles POST /api/documents/batch. When a later batch fails,
// the documents committed by earlier batches are reported in "created".
func (h *DocumentHandler) BatchCreate(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "documents must be a non-empty list"})
		return
	}

	items := make([]models.DocumentInput, 0, len(req.Documents))
	for _, d := range req.Documents {
		items = append(items, d.input())
	}

	p := middleware.GetPrincipal(c)
	created, err := h.svc.BatchCreate(c.Request.Context(), p.OrganizationID, p.ActorID, items)
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			middleware.LoggerFrom(c, h.logger).Error("batch create documents",
				zap.Int("committed", len(created)), zap.Error(err))
		}
		c.JSON(status, gin.H{"error": msg, "created": len(created)})
		return
	}

	c.JSON(http.StatusCreated, created)
}
