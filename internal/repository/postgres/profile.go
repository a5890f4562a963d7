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

type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// GetByID looks a profile up by the platform user id (the session's sub).
// Not tenant-scoped: this is how the tenant is discovered.
func (s *ProfileStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	query := `
		SELECT id, organization_id, role, COALESCE(first_name, ''), COALESCE(last_name, '')
		FROM user_profiles
		WHERE id = $1`

	var p models.UserProfile
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&p.ID,
		&p.OrganizationID,
		&p.Role,
		&p.FirstName,
		&p.LastName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}
