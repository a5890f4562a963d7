package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant root. Every other entity carries its ID and
// is never visible to another organization.
type Organization struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	CustomDomain *string   `json:"custom_domain,omitempty"`
	LogoURL      *string   `json:"logo_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role gates write/delete permissions inside an organization.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// UserProfile shares its ID with the platform auth identity (the JWT sub).
type UserProfile struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Role           Role      `json:"role"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
}

// Document is a searchable record. The embedding column lives in the
// database only; it is regenerated by the platform whenever content changes.
type Document struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	CollectionID   *uuid.UUID     `json:"collection_id"`
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	ExternalID     *string        `json:"external_id"`
	Metadata       map[string]any `json:"metadata"`
	Categories     []Category     `json:"categories"`
	CreatedBy      *uuid.UUID     `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// DocumentInput is what the delegated create/update procedures accept.
type DocumentInput struct {
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	CollectionID *uuid.UUID     `json:"collection_id"`
	ExternalID   *string        `json:"external_id"`
	Metadata     map[string]any `json:"metadata"`
	CategoryIDs  []uuid.UUID    `json:"categories"`
}

// DocumentFilter narrows a document listing.
type DocumentFilter struct {
	CollectionID *uuid.UUID
	CategoryID   *uuid.UUID
	Page         int
	Limit        int
}

// DocumentPage is a page of documents plus the unpaginated total.
type DocumentPage struct {
	Data       []Document `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// SearchParams are passed verbatim to the similarity search procedure.
type SearchParams struct {
	Query        string
	Limit        int
	CollectionID *uuid.UUID
	CategoryIDs  []uuid.UUID
	Threshold    float64
}

// SearchResult is one row of the similarity search, ordered by
// Similarity descending.
type SearchResult struct {
	ID         uuid.UUID      `json:"id"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Similarity float64        `json:"similarity"`
}

type Category struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Color          string    `json:"color"`
	CreatedAt      time.Time `json:"created_at"`
}

type Collection struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}

// SharedView is a named, filtered, read-only projection of a tenant's
// documents. Only views with IsPublic set are reachable without a session.
type SharedView struct {
	ID               uuid.UUID   `json:"id"`
	OrganizationID   uuid.UUID   `json:"organization_id"`
	Name             string      `json:"name"`
	Slug             string      `json:"slug"`
	CollectionID     *uuid.UUID  `json:"collection_id"`
	FilterCategories []uuid.UUID `json:"filter_categories"`
	IsPublic         bool        `json:"is_public"`
	CreatedBy        *uuid.UUID  `json:"created_by"`
	CreatedAt        time.Time   `json:"created_at"`
}

// PublicView is what GET /shared/:slug returns.
type PublicView struct {
	View         SharedView   `json:"view"`
	Organization Organization `json:"organization"`
	Documents    []Document   `json:"documents"`
}

// APIKey never carries the secret after creation. KeyHash is a bcrypt hash
// of the full key; KeyPrefix is the lookup handle embedded in the key.
type APIKey struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Name           string     `json:"name"`
	KeyPrefix      string     `json:"key_prefix"`
	KeyHash        string     `json:"-"`
	Permissions    []string   `json:"permissions"`
	ExpiresAt      *time.Time `json:"expires_at"`
	LastUsedAt     *time.Time `json:"last_used_at"`
	CreatedBy      *uuid.UUID `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Expired reports whether the key is past its expiry at now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// CreatedAPIKey is returned once, at creation, with the plaintext key.
type CreatedAPIKey struct {
	APIKey
	Key string `json:"key"`
}

// UsageMetric is keyed by (OrganizationID, Month). Month is the first day
// of the calendar month in UTC.
type UsageMetric struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Month          time.Time `json:"month"`
	RecordCount    int64     `json:"record_count"`
	QueryCount     int64     `json:"query_count"`
}

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
)

// PlanLimits are the limits of the organization's active subscription.
type PlanLimits struct {
	PlanID             uuid.UUID          `json:"plan_id"`
	PlanName           string             `json:"plan_name"`
	Status             SubscriptionStatus `json:"status"`
	MaxRecords         int64              `json:"max_records"`
	MaxQueriesPerMonth int64              `json:"max_queries_per_month"`
}

// UsageReport pairs this month's counters with the plan limits.
type UsageReport struct {
	Usage  UsageMetric `json:"usage"`
	Limits PlanLimits  `json:"limits"`
}

// EventType names a document change.
type EventType string

const (
	EventDocumentCreated EventType = "document.created"
	EventDocumentUpdated EventType = "document.updated"
	EventDocumentDeleted EventType = "document.deleted"
)

// Event is a document change fanned out to the organization's live feed.
// DocumentIDs holds more than one id only for batch creation.
type Event struct {
	Type           EventType   `json:"type"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	DocumentIDs    []uuid.UUID `json:"document_ids"`
	ActorID        *uuid.UUID  `json:"actor_id,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}
