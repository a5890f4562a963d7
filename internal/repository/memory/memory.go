// Package memory is an in-process implementation of the repository
// interfaces and the quota gate, for tests and local runs without a
// database. Similarity search is a term-overlap score, not an embedding.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/lalith-99/vectorvault/internal/quota"
	"github.com/lalith-99/vectorvault/internal/repository"
)

// Store holds every table. The typed views (Orgs, Documents, ...) share it.
type Store struct {
	mu sync.RWMutex

	orgs        map[uuid.UUID]models.Organization
	profiles    map[uuid.UUID]models.UserProfile
	documents   map[uuid.UUID]models.Document
	categories  map[uuid.UUID]models.Category
	collections map[uuid.UUID]models.Collection
	views       map[uuid.UUID]models.SharedView
	keys        map[uuid.UUID]models.APIKey
	usage       map[usageKey]*models.UsageMetric
	plans       map[uuid.UUID]models.PlanLimits

	now func() time.Time

	// Fail, when set, is returned by document writes. Tests use it to
	// simulate a failing delegated call.
	Fail func(op string) error
}

type usageKey struct {
	org   uuid.UUID
	month time.Time
}

func New() *Store {
	return &Store{
		orgs:        make(map[uuid.UUID]models.Organization),
		profiles:    make(map[uuid.UUID]models.UserProfile),
		documents:   make(map[uuid.UUID]models.Document),
		categories:  make(map[uuid.UUID]models.Category),
		collections: make(map[uuid.UUID]models.Collection),
		views:       make(map[uuid.UUID]models.SharedView),
		keys:        make(map[uuid.UUID]models.APIKey),
		usage:       make(map[usageKey]*models.UsageMetric),
		plans:       make(map[uuid.UUID]models.PlanLimits),
		now:         time.Now,
	}
}

func (s *Store) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

func monthOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Seeding helpers.

func (s *Store) AddOrganization(org models.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[org.ID] = org
}

func (s *Store) AddProfile(p models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *Store) SetPlan(orgID uuid.UUID, limits models.PlanLimits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[orgID] = limits
}

// Views over the store, one per repository interface.

type (
	Organizations struct{ s *Store }
	Profiles      struct{ s *Store }
	Documents     struct{ s *Store }
	Categories    struct{ s *Store }
	Collections   struct{ s *Store }
	SharedViews   struct{ s *Store }
	APIKeys       struct{ s *Store }
	Usage         struct{ s *Store }
	Gate          struct{ s *Store }
)

func (s *Store) Organizations() *Organizations { return &Organizations{s} }
func (s *Store) Profiles() *Profiles           { return &Profiles{s} }
func (s *Store) Documents() *Documents         { return &Documents{s} }
func (s *Store) Categories() *Categories       { return &Categories{s} }
func (s *Store) Collections() *Collections     { return &Collections{s} }
func (s *Store) SharedViews() *SharedViews     { return &SharedViews{s} }
func (s *Store) APIKeys() *APIKeys             { return &APIKeys{s} }
func (s *Store) Usage() *Usage                 { return &Usage{s} }
func (s *Store) Gate() *Gate                   { return &Gate{s} }

var (
	_ repository.OrganizationRepository = (*Organizations)(nil)
	_ repository.ProfileRepository      = (*Profiles)(nil)
	_ repository.DocumentRepository     = (*Documents)(nil)
	_ repository.CategoryRepository     = (*Categories)(nil)
	_ repository.CollectionRepository   = (*Collections)(nil)
	_ repository.SharedViewRepository   = (*SharedViews)(nil)
	_ repository.APIKeyRepository       = (*APIKeys)(nil)
	_ repository.UsageRepository        = (*Usage)(nil)
	_ quota.Gate                        = (*Gate)(nil)
)

// Organizations

func (r *Organizations) GetByID(_ context.Context, orgID uuid.UUID) (*models.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if org, ok := r.s.orgs[orgID]; ok {
		return &org, nil
	}
	return nil, nil
}

func (r *Organizations) GetBySlug(_ context.Context, slug string) (*models.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, org := range r.s.orgs {
		if org.Slug == slug {
			return &org, nil
		}
	}
	return nil, nil
}

func (r *Organizations) GetByCustomDomain(_ context.Context, domain string) (*models.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, org := range r.s.orgs {
		if org.CustomDomain != nil && *org.CustomDomain == domain {
			return &org, nil
		}
	}
	return nil, nil
}

// Profiles

func (r *Profiles) GetByID(_ context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if p, ok := r.s.profiles[userID]; ok {
		return &p, nil
	}
	return nil, nil
}

// Documents

func (r *Documents) categoriesFor(orgID uuid.UUID, ids []uuid.UUID) []models.Category {
	out := make([]models.Category, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.s.categories[id]; ok && c.OrganizationID == orgID {
			out = append(out, c)
		}
	}
	return out
}

func (r *Documents) build(orgID uuid.UUID, createdBy *uuid.UUID, in models.DocumentInput) models.Document {
	now := r.s.now().UTC()
	meta := in.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return models.Document{
		ID:             uuid.New(),
		OrganizationID: orgID,
		CollectionID:   in.CollectionID,
		Title:          in.Title,
		Content:        in.Content,
		ExternalID:     in.ExternalID,
		Metadata:       meta,
		Categories:     r.categoriesFor(orgID, in.CategoryIDs),
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func hasCategory(d models.Document, id uuid.UUID) bool {
	return slices.ContainsFunc(d.Categories, func(c models.Category) bool { return c.ID == id })
}

func (r *Documents) sorted(match func(models.Document) bool) []models.Document {
	out := make([]models.Document, 0)
	for _, d := range r.s.documents {
		if match(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *Documents) List(_ context.Context, orgID uuid.UUID, f models.DocumentFilter) (*models.DocumentPage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.sorted(func(d models.Document) bool {
		if d.OrganizationID != orgID {
			return false
		}
		if f.CollectionID != nil && (d.CollectionID == nil || *d.CollectionID != *f.CollectionID) {
			return false
		}
		return f.CategoryID == nil || hasCategory(d, *f.CategoryID)
	})

	lo := min((f.Page-1)*f.Limit, len(all))
	hi := min(lo+f.Limit, len(all))
	return &models.DocumentPage{
		Data:       all[lo:hi],
		Pagination: models.Pagination{Page: f.Page, Limit: f.Limit, Total: len(all)},
	}, nil
}

func (r *Documents) GetByID(_ context.Context, orgID, docID uuid.UUID) (*models.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if d, ok := r.s.documents[docID]; ok && d.OrganizationID == orgID {
		return &d, nil
	}
	return nil, nil
}

func (r *Documents) Create(_ context.Context, orgID uuid.UUID, createdBy *uuid.UUID, in models.DocumentInput) (*models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("create"); err != nil {
		return nil, err
	}
	d := r.build(orgID, createdBy, in)
	r.s.documents[d.ID] = d
	return &d, nil
}

// BatchCreate inserts the whole batch or nothing.
func (r *Documents) BatchCreate(_ context.Context, orgID uuid.UUID, createdBy *uuid.UUID, batch []models.DocumentInput) ([]models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("batch"); err != nil {
		return nil, err
	}
	out := make([]models.Document, 0, len(batch))
	for _, in := range batch {
		d := r.build(orgID, createdBy, in)
		r.s.documents[d.ID] = d
		out = append(out, d)
	}
	return out, nil
}

func (r *Documents) Update(_ context.Context, orgID, docID uuid.UUID, in models.DocumentInput) (*models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("update"); err != nil {
		return nil, err
	}
	old, ok := r.s.documents[docID]
	if !ok || old.OrganizationID != orgID {
		return nil, nil
	}
	d := r.build(orgID, old.CreatedBy, in)
	d.ID, d.CreatedAt = old.ID, old.CreatedAt
	r.s.documents[docID] = d
	return &d, nil
}

func (r *Documents) Delete(_ context.Context, orgID, docID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d, ok := r.s.documents[docID]; ok && d.OrganizationID == orgID {
		delete(r.s.documents, docID)
		return true, nil
	}
	return false, nil
}

// score is the share of query terms present in the document.
func score(query []string, d models.Document) float64 {
	if len(query) == 0 {
		return 0
	}
	text := strings.ToLower(d.Title + " " + d.Content)
	hits := 0
	for _, term := range query {
		if strings.Contains(text, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

func (r *Documents) Search(_ context.Context, orgID uuid.UUID, p models.SearchParams) ([]models.SearchResult, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(p.Query))
	out := make([]models.SearchResult, 0)
	for _, d := range r.s.documents {
		if d.OrganizationID != orgID {
			continue
		}
		if p.CollectionID != nil && (d.CollectionID == nil || *d.CollectionID != *p.CollectionID) {
			continue
		}
		if len(p.CategoryIDs) > 0 && !slices.ContainsFunc(p.CategoryIDs, func(id uuid.UUID) bool { return hasCategory(d, id) }) {
			continue
		}
		sim := score(terms, d)
		if sim < p.Threshold {
			continue
		}
		out = append(out, models.SearchResult{
			ID:         d.ID,
			Title:      d.Title,
			Content:    d.Content,
			Metadata:   d.Metadata,
			Similarity: sim,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (r *Documents) ListForView(_ context.Context, v *models.SharedView) ([]models.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.sorted(func(d models.Document) bool {
		if d.OrganizationID != v.OrganizationID {
			return false
		}
		if v.CollectionID != nil && (d.CollectionID == nil || *d.CollectionID != *v.CollectionID) {
			return false
		}
		if len(v.FilterCategories) == 0 {
			return true
		}
		return slices.ContainsFunc(v.FilterCategories, func(id uuid.UUID) bool { return hasCategory(d, id) })
	}), nil
}

// Categories

func (r *Categories) List(_ context.Context, orgID uuid.UUID) ([]models.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Category, 0)
	for _, c := range r.s.categories {
		if c.OrganizationID == orgID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Categories) GetByID(_ context.Context, orgID, id uuid.UUID) (*models.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if c, ok := r.s.categories[id]; ok && c.OrganizationID == orgID {
		return &c, nil
	}
	return nil, nil
}

func (r *Categories) Create(_ context.Context, orgID uuid.UUID, name, color string) (*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := models.Category{ID: uuid.New(), OrganizationID: orgID, Name: name, Color: color, CreatedAt: r.s.now().UTC()}
	r.s.categories[c.ID] = c
	return &c, nil
}

func (r *Categories) Update(_ context.Context, orgID, id uuid.UUID, name, color string) (*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok || c.OrganizationID != orgID {
		return nil, nil
	}
	c.Name, c.Color = name, color
	r.s.categories[id] = c
	return &c, nil
}

func (r *Categories) Delete(_ context.Context, orgID, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.categories[id]; ok && c.OrganizationID == orgID {
		delete(r.s.categories, id)
		return true, nil
	}
	return false, nil
}

// Collections

func (r *Collections) List(_ context.Context, orgID uuid.UUID) ([]models.Collection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Collection, 0)
	for _, c := range r.s.collections {
		if c.OrganizationID == orgID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Collections) GetByID(_ context.Context, orgID, id uuid.UUID) (*models.Collection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if c, ok := r.s.collections[id]; ok && c.OrganizationID == orgID {
		return &c, nil
	}
	return nil, nil
}

func (r *Collections) Create(_ context.Context, orgID uuid.UUID, name string, description *string) (*models.Collection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := models.Collection{ID: uuid.New(), OrganizationID: orgID, Name: name, Description: description, CreatedAt: r.s.now().UTC()}
	r.s.collections[c.ID] = c
	return &c, nil
}

func (r *Collections) Update(_ context.Context, orgID, id uuid.UUID, name string, description *string) (*models.Collection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.collections[id]
	if !ok || c.OrganizationID != orgID {
		return nil, nil
	}
	c.Name, c.Description = name, description
	r.s.collections[id] = c
	return &c, nil
}

func (r *Collections) Delete(_ context.Context, orgID, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.collections[id]
	if !ok || c.OrganizationID != orgID {
		return false, nil
	}
	delete(r.s.collections, id)
	for docID, d := range r.s.documents {
		if d.CollectionID != nil && *d.CollectionID == id {
			d.CollectionID = nil
			r.s.documents[docID] = d
		}
	}
	return true, nil
}

// SharedViews

func (r *SharedViews) slugTaken(orgID uuid.UUID, slug string, except uuid.UUID) bool {
	for _, v := range r.s.views {
		if v.OrganizationID == orgID && v.Slug == slug && v.ID != except {
			return true
		}
	}
	return false
}

func (r *SharedViews) List(_ context.Context, orgID uuid.UUID) ([]models.SharedView, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.SharedView, 0)
	for _, v := range r.s.views {
		if v.OrganizationID == orgID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *SharedViews) GetByID(_ context.Context, orgID, id uuid.UUID) (*models.SharedView, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if v, ok := r.s.views[id]; ok && v.OrganizationID == orgID {
		return &v, nil
	}
	return nil, nil
}

func (r *SharedViews) Create(_ context.Context, view *models.SharedView) (*models.SharedView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.slugTaken(view.OrganizationID, view.Slug, uuid.Nil) {
		return nil, repository.ErrConflict
	}
	v := *view
	v.ID = uuid.New()
	v.CreatedAt = r.s.now().UTC()
	r.s.views[v.ID] = v
	return &v, nil
}

func (r *SharedViews) Update(_ context.Context, view *models.SharedView) (*models.SharedView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.views[view.ID]
	if !ok || old.OrganizationID != view.OrganizationID {
		return nil, nil
	}
	if r.slugTaken(view.OrganizationID, view.Slug, view.ID) {
		return nil, repository.ErrConflict
	}
	v := *view
	v.CreatedBy, v.CreatedAt = old.CreatedBy, old.CreatedAt
	r.s.views[v.ID] = v
	return &v, nil
}

func (r *SharedViews) Delete(_ context.Context, orgID, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if v, ok := r.s.views[id]; ok && v.OrganizationID == orgID {
		delete(r.s.views, id)
		return true, nil
	}
	return false, nil
}

func (r *SharedViews) GetPublicBySlug(_ context.Context, orgID uuid.UUID, slug string) (*models.SharedView, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *models.SharedView
	for _, v := range r.s.views {
		if v.Slug != slug || !v.IsPublic {
			continue
		}
		if orgID != uuid.Nil && v.OrganizationID != orgID {
			continue
		}
		if found != nil {
			return nil, nil
		}
		found = &v
	}
	return found, nil
}

// APIKeys

func (r *APIKeys) List(_ context.Context, orgID uuid.UUID) ([]models.APIKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.APIKey, 0)
	for _, k := range r.s.keys {
		if k.OrganizationID == orgID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *APIKeys) GetByID(_ context.Context, orgID, id uuid.UUID) (*models.APIKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if k, ok := r.s.keys[id]; ok && k.OrganizationID == orgID {
		return &k, nil
	}
	return nil, nil
}

func (r *APIKeys) Create(_ context.Context, key *models.APIKey) (*models.APIKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := *key
	k.ID = uuid.New()
	k.CreatedAt = r.s.now().UTC()
	r.s.keys[k.ID] = k
	return &k, nil
}

func (r *APIKeys) Delete(_ context.Context, orgID, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if k, ok := r.s.keys[id]; ok && k.OrganizationID == orgID {
		delete(r.s.keys, id)
		return true, nil
	}
	return false, nil
}

func (r *APIKeys) GetByPrefix(_ context.Context, prefix string) (*models.APIKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, k := range r.s.keys {
		if k.KeyPrefix == prefix {
			return &k, nil
		}
	}
	return nil, nil
}

func (r *APIKeys) TouchLastUsed(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if k, ok := r.s.keys[id]; ok {
		k.LastUsedAt = &at
		r.s.keys[id] = k
	}
	return nil
}

// Usage

func (r *Usage) Current(_ context.Context, orgID uuid.UUID) (*models.UsageMetric, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	month := monthOf(r.s.now())
	if m, ok := r.s.usage[usageKey{orgID, month}]; ok {
		cp := *m
		return &cp, nil
	}
	return &models.UsageMetric{OrganizationID: orgID, Month: month}, nil
}

func (r *Usage) History(_ context.Context, orgID uuid.UUID, months int) ([]models.UsageMetric, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.UsageMetric, 0)
	for k, m := range r.s.usage {
		if k.org == orgID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.After(out[j].Month) })
	if len(out) > months {
		out = out[:months]
	}
	return out, nil
}

func (r *Usage) PlanLimits(_ context.Context, orgID uuid.UUID) (*models.PlanLimits, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if l, ok := r.s.plans[orgID]; ok && l.Status == models.SubscriptionActive {
		return &l, nil
	}
	return nil, nil
}

// Gate checks and increments under the store's write lock.
func (g *Gate) Admit(_ context.Context, orgID uuid.UUID, metric quota.Metric, amount int) (bool, error) {
	if err := quota.Check(metric, amount); err != nil {
		return false, err
	}

	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	plan, ok := g.s.plans[orgID]
	if !ok || plan.Status != models.SubscriptionActive {
		return false, nil
	}

	key := usageKey{orgID, monthOf(g.s.now())}
	m, ok := g.s.usage[key]
	if !ok {
		m = &models.UsageMetric{OrganizationID: orgID, Month: key.month}
		g.s.usage[key] = m
	}

	switch metric {
	case quota.MetricRecords:
		if m.RecordCount+int64(amount) > plan.MaxRecords {
			return false, nil
		}
		m.RecordCount += int64(amount)
	case quota.MetricQueries:
		if m.QueryCount+int64(amount) > plan.MaxQueriesPerMonth {
			return false, nil
		}
		m.QueryCount += int64(amount)
	}
	return true, nil
}

func (g *Gate) Release(_ context.Context, orgID uuid.UUID, metric quota.Metric, amount int) error {
	if err := quota.Check(metric, amount); err != nil {
		return err
	}

	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	m, ok := g.s.usage[usageKey{orgID, monthOf(g.s.now())}]
	if !ok {
		return nil
	}
	switch metric {
	case quota.MetricRecords:
		m.RecordCount = max(0, m.RecordCount-int64(amount))
	case quota.MetricQueries:
		m.QueryCount = max(0, m.QueryCount-int64(amount))
	}
	return nil
}
