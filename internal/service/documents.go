// Package service holds the quota-gated document operations shared by the
// session API and the integration endpoints.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/lalith-99/vectorvault/internal/observ"
	"github.com/lalith-99/vectorvault/internal/quota"
	"github.com/lalith-99/vectorvault/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrLimitReached = errors.New("usage limit reached")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
)

const (
	DefaultBatchSize       = 100
	DefaultSearchLimit     = 10
	MaxSearchLimit         = 100
	DefaultSearchThreshold = 0.7
)

// Publisher fans document changes out to live subscribers. Implementations
// must not block the caller for long and must never fail the write.
type Publisher interface {
	Publish(ctx context.Context, event models.Event)
}

// Options tunes DocumentService. Zero values fall back to the defaults.
type Options struct {
	BatchSize       int
	SearchLimit     int
	SearchThreshold *float64
}

// SearchRequest is a caller's search before defaults are applied. A nil
// Threshold means the service default.
type SearchRequest struct {
	Query        string
	Limit        int
	Threshold    *float64
	CollectionID *uuid.UUID
	CategoryIDs  []uuid.UUID
}

type DocumentService struct {
	docs      repository.DocumentRepository
	gate      quota.Gate
	events    Publisher
	metrics   *observ.Metrics
	logger    *zap.Logger
	now       func() time.Time
	batchSize int
	limit     int
	threshold float64
}

func NewDocumentService(
	docs repository.DocumentRepository,
	gate quota.Gate,
	events Publisher,
	metrics *observ.Metrics,
	logger *zap.Logger,
	opts Options,
) *DocumentService {
	s := &DocumentService{
		docs:      docs,
		gate:      gate,
		events:    events,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		batchSize: DefaultBatchSize,
		limit:     DefaultSearchLimit,
		threshold: DefaultSearchThreshold,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if opts.BatchSize > 0 {
		s.batchSize = opts.BatchSize
	}
	if opts.SearchLimit > 0 {
		s.limit = min(opts.SearchLimit, MaxSearchLimit)
	}
	if opts.SearchThreshold != nil {
		s.threshold = *opts.SearchThreshold
	}
	return s
}

// BatchSize is the number of documents sent per delegated call.
func (s *DocumentService) BatchSize() int {
	return s.batchSize
}

func validateInput(in models.DocumentInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(in.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	return nil
}

// admit consults the gate. A deny becomes ErrLimitReached; a gate failure
// stays an internal error.
func (s *DocumentService) admit(ctx context.Context, orgID uuid.UUID, metric quota.Metric, amount int) error {
	ok, err := s.gate.Admit(ctx, orgID, metric, amount)
	if err != nil {
		return fmt.Errorf("quota check: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLimitReached, metric)
	}
	return nil
}

// release returns records to the quota. A failure leaves the counter high,
// which only errs toward denying; it is logged and never fails the caller.
func (s *DocumentService) release(ctx context.Context, orgID uuid.UUID, amount int) {
	if amount < 1 {
		return
	}
	if err := s.gate.Release(context.WithoutCancel(ctx), orgID, quota.MetricRecords, amount); err != nil {
		s.logger.Warn("release quota",
			zap.String("org_id", orgID.String()),
			zap.Int("amount", amount),
			zap.Error(err),
		)
	}
}

func (s *DocumentService) publish(ctx context.Context, typ models.EventType, orgID uuid.UUID, actorID *uuid.UUID, ids ...uuid.UUID) {
	if s.events == nil || len(ids) == 0 {
		return
	}
	s.events.Publish(ctx, models.Event{
		Type:           typ,
		OrganizationID: orgID,
		DocumentIDs:    ids,
		ActorID:        actorID,
		OccurredAt:     s.now().UTC(),
	})
}

// Create validates, consumes one record from the quota and delegates the
// insert of the document and its category links.
func (s *DocumentService) Create(ctx context.Context, orgID uuid.UUID, actorID *uuid.UUID, in models.DocumentInput) (*models.Document, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.admit(ctx, orgID, quota.MetricRecords, 1); err != nil {
		return nil, err
	}

	start := time.Now()
	doc, err := s.docs.Create(ctx, orgID, actorID, in)
	s.metrics.ObserveDelegated("create_document", start, err)
	if err != nil {
		s.release(ctx, orgID, 1)
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.publish(ctx, models.EventDocumentCreated, orgID, actorID, doc.ID)
	return doc, nil
}

// BatchCreate admits the whole list against the record quota, then sends it
// in chunks of BatchSize. The first failing chunk aborts the run. Chunks
// already committed stay committed and are returned alongside the error;
// the records charged for the rest are released.
func (s *DocumentService) BatchCreate(ctx context.Context, orgID uuid.UUID, actorID *uuid.UUID, items []models.DocumentInput) ([]models.Document, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: documents must not be empty", ErrValidation)
	}
	for i, in := range items {
		if err := validateInput(in); err != nil {
			return nil, fmt.Errorf("documents[%d]: %w", i, err)
		}
	}
	if err := s.admit(ctx, orgID, quota.MetricRecords, len(items)); err != nil {
		return nil, err
	}

	created := make([]models.Document, 0, len(items))
	total := (len(items) + s.batchSize - 1) / s.batchSize

	for n, lo := 0, 0; lo < len(items); n, lo = n+1, lo+s.batchSize {
		hi := min(lo+s.batchSize, len(items))

		start := time.Now()
		docs, err := s.docs.BatchCreate(ctx, orgID, actorID, items[lo:hi])
		s.metrics.ObserveDelegated("batch_create_documents", start, err)
		if err != nil {
			s.logger.Warn("batch aborted",
				zap.String("org_id", orgID.String()),
				zap.Int("batch", n+1),
				zap.Int("batches", total),
				zap.Int("committed", len(created)),
				zap.Error(err),
			)
			s.release(ctx, orgID, len(items)-len(created))
			return created, fmt.Errorf("batch %d of %d: %w", n+1, total, err)
		}

		ids := make([]uuid.UUID, 0, len(docs))
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
		s.publish(ctx, models.EventDocumentCreated, orgID, actorID, ids...)
		created = append(created, docs...)
	}

	return created, nil
}

// Update replaces a document owned by orgID. Updates do not consume quota.
func (s *DocumentService) Update(ctx context.Context, orgID uuid.UUID, actorID *uuid.UUID, docID uuid.UUID, in models.DocumentInput) (*models.Document, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	start := time.Now()
	doc, err := s.docs.Update(ctx, orgID, docID, in)
	s.metrics.ObserveDelegated("update_document", start, err)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	if doc == nil {
		return nil, ErrNotFound
	}

	s.publish(ctx, models.EventDocumentUpdated, orgID, actorID, doc.ID)
	return doc, nil
}

// Delete removes a document owned by orgID and frees its record. A
// document of another organization is reported as not found and left
// untouched.
func (s *DocumentService) Delete(ctx context.Context, orgID uuid.UUID, actorID *uuid.UUID, docID uuid.UUID) error {
	deleted, err := s.docs.Delete(ctx, orgID, docID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}

	s.release(ctx, orgID, 1)
	s.publish(ctx, models.EventDocumentDeleted, orgID, actorID, docID)
	return nil
}

func (s *DocumentService) Get(ctx context.Context, orgID, docID uuid.UUID) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, orgID, docID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, orgID uuid.UUID, filter models.DocumentFilter) (*models.DocumentPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	filter.Limit = min(filter.Limit, MaxSearchLimit)

	page, err := s.docs.List(ctx, orgID, filter)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return page, nil
}

// SearchParams applies defaults and bounds to a request. It does not touch
// the quota.
func (s *DocumentService) SearchParams(req SearchRequest) (models.SearchParams, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return models.SearchParams{}, fmt.Errorf("%w: query is required", ErrValidation)
	}

	limit := req.Limit
	switch {
	case limit < 0:
		return models.SearchParams{}, fmt.Errorf("%w: limit must be positive", ErrValidation)
	case limit == 0:
		limit = s.limit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}

	threshold := s.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return models.SearchParams{}, fmt.Errorf("%w: threshold must be between 0 and 1", ErrValidation)
	}

	return models.SearchParams{
		Query:        query,
		Limit:        limit,
		CollectionID: req.CollectionID,
		CategoryIDs:  req.CategoryIDs,
		Threshold:    threshold,
	}, nil
}

// Search consumes one query from the quota and delegates the similarity
// search. Results are ordered by similarity, highest first.
func (s *DocumentService) Search(ctx context.Context, orgID uuid.UUID, req SearchRequest) ([]models.SearchResult, error) {
	params, err := s.SearchParams(req)
	if err != nil {
		return nil, err
	}
	if err := s.admit(ctx, orgID, quota.MetricQueries, 1); err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := s.docs.Search(ctx, orgID, params)
	s.metrics.ObserveDelegated("search_documents", start, err)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	if results == nil {
		results = make([]models.SearchResult, 0)
	}
	return results, nil
}
