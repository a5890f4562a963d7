package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/vectorvault/internal/models"
)

type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

// documentSelect returns documents with their categories aggregated as a
// JSON array, so one round trip yields the full representation.
const documentSelect = `
	SELECT d.id, d.organization_id, d.collection_id, d.title, d.content,
	       d.external_id, COALESCE(d.metadata, '{}'::jsonb), d.created_by,
	       d.created_at, d.updated_at,
	       COALESCE((
	           SELECT json_agg(c ORDER BY c.name)
	           FROM categories c
	           JOIN document_categories dc ON dc.category_id = c.id
	           WHERE dc.document_id = d.id
	       ), '[]'::json)
	FROM documents d`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var d models.Document
	err := row.Scan(
		&d.ID,
		&d.OrganizationID,
		&d.CollectionID,
		&d.Title,
		&d.Content,
		&d.ExternalID,
		&d.Metadata,
		&d.CreatedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.Categories,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DocumentStore) queryDocuments(ctx context.Context, op, query string, args ...any) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	docs := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// List returns one page of documents, newest first.
func (s *DocumentStore) List(ctx context.Context, orgID uuid.UUID, filter models.DocumentFilter) (*models.DocumentPage, error) {
	where := []string{"d.organization_id = $1"}
	args := []any{orgID}

	if filter.CollectionID != nil {
		args = append(args, *filter.CollectionID)
		where = append(where, fmt.Sprintf("d.collection_id = $%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM document_categories dc WHERE dc.document_id = d.id AND dc.category_id = $%d)",
			len(args)))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents d`+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	pageArgs := append(args, filter.Limit, offset)
	query := documentSelect + clause + fmt.Sprintf(
		" ORDER BY d.created_at DESC LIMIT $%d OFFSET $%d", len(pageArgs)-1, len(pageArgs))

	docs, err := s.queryDocuments(ctx, "list documents", query, pageArgs...)
	if err != nil {
		return nil, err
	}

	return &models.DocumentPage{
		Data: docs,
		Pagination: models.Pagination{
			Page:  filter.Page,
			Limit: filter.Limit,
			Total: total,
		},
	}, nil
}

func (s *DocumentStore) GetByID(ctx context.Context, orgID, docID uuid.UUID) (*models.Document, error) {
	row := s.pool.QueryRow(ctx, documentSelect+` WHERE d.id = $1 AND d.organization_id = $2`, docID, orgID)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// Create delegates to create_document_with_categories, which inserts the
// document and its category links in a single transaction.
func (s *DocumentStore) Create(ctx context.Context, orgID uuid.UUID, createdBy *uuid.UUID, in models.DocumentInput) (*models.Document, error) {
	query := `
		SELECT create_document_with_categories(
			p_title           => $1,
			p_content         => $2,
			p_organization_id => $3,
			p_collection_id   => $4,
			p_external_id     => $5,
			p_metadata        => $6,
			p_created_by      => $7,
			p_categories      => $8
		)`

	var id uuid.UUID
	err := s.pool.QueryRow(ctx, query,
		in.Title,
		in.Content,
		orgID,
		in.CollectionID,
		in.ExternalID,
		metadataOrEmpty(in.Metadata),
		createdBy,
		idsOrEmpty(in.CategoryIDs),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	doc, err := s.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("create document: document %s not readable after insert", id)
	}
	return doc, nil
}

// BatchCreate delegates one batch to batch_create_documents. The procedure
// is atomic per call; nothing spans calls.
func (s *DocumentStore) BatchCreate(ctx context.Context, orgID uuid.UUID, createdBy *uuid.UUID, batch []models.DocumentInput) ([]models.Document, error) {
	payload := make([]models.DocumentInput, len(batch))
	for i, in := range batch {
		in.Metadata = metadataOrEmpty(in.Metadata)
		in.CategoryIDs = idsOrEmpty(in.CategoryIDs)
		payload[i] = in
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id FROM batch_create_documents(
			p_documents       => $1,
			p_organization_id => $2,
			p_created_by      => $3
		)`, payload, orgID, createdBy)
	if err != nil {
		return nil, fmt.Errorf("batch create documents: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("batch create documents: %w", err)
	}

	return s.queryDocuments(ctx, "load batch documents",
		documentSelect+` WHERE d.organization_id = $1 AND d.id = ANY($2) ORDER BY d.created_at`, orgID, ids)
}

// Update delegates to update_document_with_categories, which returns NULL
// when the document is not owned by orgID.
func (s *DocumentStore) Update(ctx context.Context, orgID, docID uuid.UUID, in models.DocumentInput) (*models.Document, error) {
	query := `
		SELECT update_document_with_categories(
			p_id              => $1,
			p_organization_id => $2,
			p_title           => $3,
			p_content         => $4,
			p_collection_id   => $5,
			p_external_id     => $6,
			p_metadata        => $7,
			p_categories      => $8
		)`

	var id *uuid.UUID
	err := s.pool.QueryRow(ctx, query,
		docID,
		orgID,
		in.Title,
		in.Content,
		in.CollectionID,
		in.ExternalID,
		metadataOrEmpty(in.Metadata),
		idsOrEmpty(in.CategoryIDs),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	if id == nil {
		return nil, nil
	}
	return s.GetByID(ctx, orgID, *id)
}

func (s *DocumentStore) Delete(ctx context.Context, orgID, docID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND organization_id = $2`, docID, orgID)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Search delegates to search_documents. Embedding the query, scoring,
// thresholding, ordering and truncation all happen in the database.
func (s *DocumentStore) Search(ctx context.Context, orgID uuid.UUID, params models.SearchParams) ([]models.SearchResult, error) {
	query := `
		SELECT id, title, content, COALESCE(metadata, '{}'::jsonb), similarity
		FROM search_documents(
			query_text           => $1,
			match_count          => $2,
			organization_id      => $3,
			collection_id        => $4,
			category_ids         => $5,
			similarity_threshold => $6
		)`

	var categoryIDs any
	if len(params.CategoryIDs) > 0 {
		categoryIDs = params.CategoryIDs
	}

	rows, err := s.pool.Query(ctx, query,
		params.Query,
		params.Limit,
		orgID,
		params.CollectionID,
		categoryIDs,
		params.Threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	results := make([]models.SearchResult, 0)
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.ID, &r.Title, &r.Content, &r.Metadata, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return results, nil
}

func (s *DocumentStore) ListForView(ctx context.Context, view *models.SharedView) ([]models.Document, error) {
	where := []string{"d.organization_id = $1"}
	args := []any{view.OrganizationID}

	if view.CollectionID != nil {
		args = append(args, *view.CollectionID)
		where = append(where, fmt.Sprintf("d.collection_id = $%d", len(args)))
	}
	if len(view.FilterCategories) > 0 {
		args = append(args, view.FilterCategories)
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM document_categories dc WHERE dc.document_id = d.id AND dc.category_id = ANY($%d))",
			len(args)))
	}

	query := documentSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY d.created_at DESC"
	return s.queryDocuments(ctx, "list view documents", query, args...)
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func idsOrEmpty(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
