package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/models"
)

// ErrConflict is returned when a write violates a uniqueness constraint,
// such as a shared view slug already taken in the organization.
var ErrConflict = errors.New("conflict")

// Every tenant-owned method takes orgID and filters on it in SQL, on top of
// the row-level security policies in the database. A row belonging to
// another organization is indistinguishable from a missing one.
//
// Get-style methods return nil, nil when nothing matches. Delete-style
// methods report whether a row was actually removed.

// OrganizationRepository resolves tenants. Organizations are never created
// or modified through this service.
type OrganizationRepository interface {
	GetByID(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	GetByCustomDomain(ctx context.Context, domain string) (*models.Organization, error)
}

// ProfileRepository maps a platform identity to its organization and role.
type ProfileRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
}

// DocumentRepository wraps the document tables and the stored procedures
// that own document writes and similarity search.
type DocumentRepository interface {
	List(ctx context.Context, orgID uuid.UUID, filter models.DocumentFilter) (*models.DocumentPage, error)
	GetByID(ctx context.Context, orgID, docID uuid.UUID) (*models.Document, error)

	// Create inserts the document and its category links in one call.
	Create(ctx context.Context, orgID uuid.UUID, createdBy *uuid.UUID, in models.DocumentInput) (*models.Document, error)

	// BatchCreate inserts one batch in one call. Callers bound the batch size.
	BatchCreate(ctx context.Context, orgID uuid.UUID, createdBy *uuid.UUID, batch []models.DocumentInput) ([]models.Document, error)

	// Update replaces fields and the category set of a document. Returns
	// nil, nil when the document does not belong to orgID.
	Update(ctx context.Context, orgID, docID uuid.UUID, in models.DocumentInput) (*models.Document, error)

	Delete(ctx context.Context, orgID, docID uuid.UUID) (bool, error)

	// Search runs the similarity search procedure. Results come back
	// ordered by similarity descending, already thresholded and truncated.
	Search(ctx context.Context, orgID uuid.UUID, params models.SearchParams) ([]models.SearchResult, error)

	// ListForView returns the documents a shared view projects.
	ListForView(ctx context.Context, view *models.SharedView) ([]models.Document, error)
}

type CategoryRepository interface {
	List(ctx context.Context, orgID uuid.UUID) ([]models.Category, error)
	GetByID(ctx context.Context, orgID, categoryID uuid.UUID) (*models.Category, error)
	Create(ctx context.Context, orgID uuid.UUID, name, color string) (*models.Category, error)
	Update(ctx context.Context, orgID, categoryID uuid.UUID, name, color string) (*models.Category, error)
	Delete(ctx context.Context, orgID, categoryID uuid.UUID) (bool, error)
}

type CollectionRepository interface {
	List(ctx context.Context, orgID uuid.UUID) ([]models.Collection, error)
	GetByID(ctx context.Context, orgID, collectionID uuid.UUID) (*models.Collection, error)
	Create(ctx context.Context, orgID uuid.UUID, name string, description *string) (*models.Collection, error)
	Update(ctx context.Context, orgID, collectionID uuid.UUID, name string, description *string) (*models.Collection, error)
	Delete(ctx context.Context, orgID, collectionID uuid.UUID) (bool, error)
}

type SharedViewRepository interface {
	List(ctx context.Context, orgID uuid.UUID) ([]models.SharedView, error)
	GetByID(ctx context.Context, orgID, viewID uuid.UUID) (*models.SharedView, error)
	Create(ctx context.Context, view *models.SharedView) (*models.SharedView, error)
	Update(ctx context.Context, view *models.SharedView) (*models.SharedView, error)
	Delete(ctx context.Context, orgID, viewID uuid.UUID) (bool, error)

	// GetPublicBySlug only ever returns views with is_public = true. When
	// orgID is not uuid.Nil the lookup is further scoped to that tenant;
	// otherwise a slug shared by several public views matches none.
	GetPublicBySlug(ctx context.Context, orgID uuid.UUID, slug string) (*models.SharedView, error)
}

type APIKeyRepository interface {
	List(ctx context.Context, orgID uuid.UUID) ([]models.APIKey, error)
	GetByID(ctx context.Context, orgID, keyID uuid.UUID) (*models.APIKey, error)
	Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error)
	Delete(ctx context.Context, orgID, keyID uuid.UUID) (bool, error)

	// GetByPrefix is the unauthenticated lookup used by API key auth.
	GetByPrefix(ctx context.Context, prefix string) (*models.APIKey, error)
	TouchLastUsed(ctx context.Context, keyID uuid.UUID, at time.Time) error
}

type UsageRepository interface {
	Current(ctx context.Context, orgID uuid.UUID) (*models.UsageMetric, error)
	History(ctx context.Context, orgID uuid.UUID, months int) ([]models.UsageMetric, error)

	// PlanLimits returns the active subscription's limits, or nil, nil when
	// the organization has no active subscription.
	PlanLimits(ctx context.Context, orgID uuid.UUID) (*models.PlanLimits, error)
}
