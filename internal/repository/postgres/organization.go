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

type OrganizationStore struct {
	pool *pgxpool.Pool
}

func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{pool: pool}
}

const organizationColumns = `id, name, slug, custom_domain, logo_url, created_at`

func (s *OrganizationStore) GetByID(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	return s.getOne(ctx, "get organization",
		`SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, orgID)
}

func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	return s.getOne(ctx, "get organization by slug",
		`SELECT `+organizationColumns+` FROM organizations WHERE slug = $1`, slug)
}

// GetByCustomDomain matches the domain exactly; callers normalize case and
// strip ports before calling.
func (s *OrganizationStore) GetByCustomDomain(ctx context.Context, domain string) (*models.Organization, error) {
	return s.getOne(ctx, "get organization by domain",
		`SELECT `+organizationColumns+` FROM organizations WHERE custom_domain = $1`, domain)
}

func (s *OrganizationStore) getOne(ctx context.Context, op, query string, arg any) (*models.Organization, error) {
	var o models.Organization
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&o.ID,
		&o.Name,
		&o.Slug,
		&o.CustomDomain,
		&o.LogoURL,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &o, nil
}
