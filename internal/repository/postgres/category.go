package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/vectorvault/internal/models"
)

type CategoryStore struct {
	pool *pgxpool.Pool
}

func NewCategoryStore(pool *pgxpool.Pool) *CategoryStore {
	return &CategoryStore{pool: pool}
}

func (s *CategoryStore) List(ctx context.Context, orgID uuid.UUID) ([]models.Category, error) {
	query := `
		SELECT id, organization_id, name, color, created_at
		FROM categories
		WHERE organization_id = $1
		ORDER BY name`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]models.Category, 0)
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Color, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (s *CategoryStore) GetByID(ctx context.Context, orgID, categoryID uuid.UUID) (*models.Category, error) {
	query := `
		SELECT id, organization_id, name, color, created_at
		FROM categories
		WHERE id = $1 AND organization_id = $2`

	return scanCategory(s.pool.QueryRow(ctx, query, categoryID, orgID), "get category")
}

func (s *CategoryStore) Create(ctx context.Context, orgID uuid.UUID, name, color string) (*models.Category, error) {
	query := `
		INSERT INTO categories (organization_id, name, color, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, organization_id, name, color, created_at`

	return scanCategory(s.pool.QueryRow(ctx, query, orgID, name, color), "insert category")
}

func (s *CategoryStore) Update(ctx context.Context, orgID, categoryID uuid.UUID, name, color string) (*models.Category, error) {
	query := `
		UPDATE categories SET name = $3, color = $4
		WHERE id = $1 AND organization_id = $2
		RETURNING id, organization_id, name, color, created_at`

	return scanCategory(s.pool.QueryRow(ctx, query, categoryID, orgID, name, color), "update category")
}

func (s *CategoryStore) Delete(ctx context.Context, orgID, categoryID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM categories WHERE id = $1 AND organization_id = $2`, categoryID, orgID)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanCategory(row pgx.Row, op string) (*models.Category, error) {
	var c models.Category
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Color, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, conflictOr(err))
	}
	return &c, nil
}
