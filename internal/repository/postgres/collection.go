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

type CollectionStore struct {
	pool *pgxpool.Pool
}

func NewCollectionStore(pool *pgxpool.Pool) *CollectionStore {
	return &CollectionStore{pool: pool}
}

func (s *CollectionStore) List(ctx context.Context, orgID uuid.UUID) ([]models.Collection, error) {
	query := `
		SELECT id, organization_id, name, description, created_at
		FROM collections
		WHERE organization_id = $1
		ORDER BY name`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	collections := make([]models.Collection, 0)
	for rows.Next() {
		var c models.Collection
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return collections, nil
}

func (s *CollectionStore) GetByID(ctx context.Context, orgID, collectionID uuid.UUID) (*models.Collection, error) {
	query := `
		SELECT id, organization_id, name, description, created_at
		FROM collections
		WHERE id = $1 AND organization_id = $2`

	return scanCollection(s.pool.QueryRow(ctx, query, collectionID, orgID), "get collection")
}

func (s *CollectionStore) Create(ctx context.Context, orgID uuid.UUID, name string, description *string) (*models.Collection, error) {
	query := `
		INSERT INTO collections (organization_id, name, description, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, organization_id, name, description, created_at`

	return scanCollection(s.pool.QueryRow(ctx, query, orgID, name, description), "insert collection")
}

func (s *CollectionStore) Update(ctx context.Context, orgID, collectionID uuid.UUID, name string, description *string) (*models.Collection, error) {
	query := `
		UPDATE collections SET name = $3, description = $4
		WHERE id = $1 AND organization_id = $2
		RETURNING id, organization_id, name, description, created_at`

	return scanCollection(s.pool.QueryRow(ctx, query, collectionID, orgID, name, description), "update collection")
}

// Delete leaves the collection's documents in place; the foreign key sets
// their collection_id to NULL.
func (s *CollectionStore) Delete(ctx context.Context, orgID, collectionID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM collections WHERE id = $1 AND organization_id = $2`, collectionID, orgID)
	if err != nil {
		return false, fmt.Errorf("delete collection: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanCollection(row pgx.Row, op string) (*models.Collection, error) {
	var c models.Collection
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, conflictOr(err))
	}
	return &c, nil
}
