package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/lalith-99/vectorvault/internal/repository"
)

const uniqueViolation = "23505"

// conflictOr maps a unique violation to repository.ErrConflict.
func conflictOr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrConflict
	}
	return err
}

type SharedViewStore struct {
	pool *pgxpool.Pool
}

func NewSharedViewStore(pool *pgxpool.Pool) *SharedViewStore {
	return &SharedViewStore{pool: pool}
}

const sharedViewColumns = `id, organization_id, name, slug, collection_id,
	COALESCE(filter_categories, '{}'), is_public, created_by, created_at`

func scanSharedView(row pgx.Row, op string) (*models.SharedView, error) {
	var v models.SharedView
	err := row.Scan(
		&v.ID,
		&v.OrganizationID,
		&v.Name,
		&v.Slug,
		&v.CollectionID,
		&v.FilterCategories,
		&v.IsPublic,
		&v.CreatedBy,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, conflictOr(err))
	}
	return &v, nil
}

func (s *SharedViewStore) List(ctx context.Context, orgID uuid.UUID) ([]models.SharedView, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sharedViewColumns+` FROM shared_views WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list shared views: %w", err)
	}
	defer rows.Close()

	views := make([]models.SharedView, 0)
	for rows.Next() {
		v, err := scanSharedView(rows, "scan shared view")
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shared views: %w", err)
	}
	return views, nil
}

func (s *SharedViewStore) GetByID(ctx context.Context, orgID, viewID uuid.UUID) (*models.SharedView, error) {
	return scanSharedView(s.pool.QueryRow(ctx,
		`SELECT `+sharedViewColumns+` FROM shared_views WHERE id = $1 AND organization_id = $2`,
		viewID, orgID), "get shared view")
}

func (s *SharedViewStore) Create(ctx context.Context, view *models.SharedView) (*models.SharedView, error) {
	query := `
		INSERT INTO shared_views
			(organization_id, name, slug, collection_id, filter_categories, is_public, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING ` + sharedViewColumns

	return scanSharedView(s.pool.QueryRow(ctx, query,
		view.OrganizationID,
		view.Name,
		view.Slug,
		view.CollectionID,
		idsOrEmpty(view.FilterCategories),
		view.IsPublic,
		view.CreatedBy,
	), "insert shared view")
}

func (s *SharedViewStore) Update(ctx context.Context, view *models.SharedView) (*models.SharedView, error) {
	query := `
		UPDATE shared_views
		SET name = $3, slug = $4, collection_id = $5, filter_categories = $6, is_public = $7
		WHERE id = $1 AND organization_id = $2
		RETURNING ` + sharedViewColumns

	return scanSharedView(s.pool.QueryRow(ctx, query,
		view.ID,
		view.OrganizationID,
		view.Name,
		view.Slug,
		view.CollectionID,
		idsOrEmpty(view.FilterCategories),
		view.IsPublic,
	), "update shared view")
}

func (s *SharedViewStore) Delete(ctx context.Context, orgID, viewID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM shared_views WHERE id = $1 AND organization_id = $2`, viewID, orgID)
	if err != nil {
		return false, fmt.Errorf("delete shared view: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetPublicBySlug filters on is_public in SQL, so a private view is never
// returned whatever the slug. Unscoped, a slug that more than one public
// view carries resolves to nothing.
func (s *SharedViewStore) GetPublicBySlug(ctx context.Context, orgID uuid.UUID, slug string) (*models.SharedView, error) {
	query := `SELECT ` + sharedViewColumns + `
		FROM shared_views sv
		WHERE slug = $1 AND is_public = true
		  AND ($2::uuid IS NULL OR organization_id = $2)
		  AND ($2::uuid IS NOT NULL OR NOT EXISTS (
			SELECT 1 FROM shared_views o
			WHERE o.slug = $1 AND o.is_public = true AND o.id <> sv.id))
		LIMIT 1`

	var scope *uuid.UUID
	if orgID != uuid.Nil {
		scope = &orgID
	}
	return scanSharedView(s.pool.QueryRow(ctx, query, slug, scope), "get public shared view")
}
