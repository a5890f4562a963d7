package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/lalith-99/vectorvault/internal/quota"
	"github.com/lalith-99/vectorvault/internal/repository"
	"github.com/lalith-99/vectorvault/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activePlan(records, queries int64) models.PlanLimits {
	return models.PlanLimits{Status: models.SubscriptionActive, MaxRecords: records, MaxQueriesPerMonth: queries}
}

func TestGate_ConcurrentAdmitsAtLimitMinusOne(t *testing.T) {
	s := memory.New()
	org := uuid.New()
	s.SetPlan(org, activePlan(10, 10))
	gate := s.Gate()
	ctx := context.Background()

	ok, err := gate.Admit(ctx, org, quota.MetricRecords, 9)
	require.NoError(t, err)
	require.True(t, ok)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := gate.Admit(ctx, org, quota.MetricRecords, 1); err == nil && ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, admitted.Load())
	usage, err := s.Usage().Current(ctx, org)
	require.NoError(t, err)
	assert.EqualValues(t, 10, usage.RecordCount)
}

func TestGate_Denials(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	gate := s.Gate()

	noPlan := uuid.New()
	ok, err := gate.Admit(ctx, noPlan, quota.MetricQueries, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	org := uuid.New()
	s.SetPlan(org, activePlan(5, 1))
	ok, err = gate.Admit(ctx, org, quota.MetricRecords, 6)
	require.NoError(t, err)
	assert.False(t, ok, "a batch larger than the remaining quota is denied whole")

	usage, err := s.Usage().Current(ctx, org)
	require.NoError(t, err)
	assert.Zero(t, usage.RecordCount)

	_, err = gate.Admit(ctx, org, quota.MetricRecords, 0)
	assert.ErrorIs(t, err, quota.ErrInvalidAmount)

	_, err = gate.Admit(ctx, org, quota.Metric("bytes"), 1)
	assert.Error(t, err)
}

func TestGate_ReleaseClampsAtZero(t *testing.T) {
	s := memory.New()
	org := uuid.New()
	s.SetPlan(org, activePlan(2, 10))
	gate := s.Gate()
	ctx := context.Background()

	require.NoError(t, gate.Release(ctx, org, quota.MetricRecords, 1), "no usage row yet")

	ok, err := gate.Admit(ctx, org, quota.MetricRecords, 2)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, gate.Release(ctx, org, quota.MetricRecords, 1))
	usage, err := s.Usage().Current(ctx, org)
	require.NoError(t, err)
	assert.EqualValues(t, 1, usage.RecordCount)

	require.NoError(t, gate.Release(ctx, org, quota.MetricRecords, 5))
	usage, err = s.Usage().Current(ctx, org)
	require.NoError(t, err)
	assert.Zero(t, usage.RecordCount)

	assert.ErrorIs(t, gate.Release(ctx, org, quota.MetricRecords, 0), quota.ErrInvalidAmount)
}

func TestDocuments_TenantScoped(t *testing.T) {
	s := memory.New()
	docs := s.Documents()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	doc, err := docs.Create(ctx, a, nil, models.DocumentInput{Title: "t", Content: "c"})
	require.NoError(t, err)

	got, err := docs.GetByID(ctx, b, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err := docs.Delete(ctx, b, doc.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	updated, err := docs.Update(ctx, b, doc.ID, models.DocumentInput{Title: "x", Content: "y"})
	require.NoError(t, err)
	assert.Nil(t, updated)

	deleted, err = docs.Delete(ctx, a, doc.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestDocuments_SearchRanksAndThresholds(t *testing.T) {
	s := memory.New()
	docs := s.Documents()
	ctx := context.Background()
	org := uuid.New()

	for _, in := range []models.DocumentInput{
		{Title: "Refund policy", Content: "how refunds work"},
		{Title: "Refund timing", Content: "within 14 days"},
		{Title: "Shipping", Content: "worldwide"},
	} {
		_, err := docs.Create(ctx, org, nil, in)
		require.NoError(t, err)
	}

	results, err := docs.Search(ctx, org, models.SearchParams{Query: "refund policy", Limit: 10, Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Refund policy", results[0].Title)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)

	results, err = docs.Search(ctx, org, models.SearchParams{Query: "refund policy", Limit: 1, Threshold: 0.5})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSharedViews_PublicOnlyAndUniqueSlug(t *testing.T) {
	s := memory.New()
	views := s.SharedViews()
	ctx := context.Background()
	org := uuid.New()

	_, err := views.Create(ctx, &models.SharedView{OrganizationID: org, Name: "Draft", Slug: "draft"})
	require.NoError(t, err)
	_, err = views.Create(ctx, &models.SharedView{OrganizationID: org, Name: "Again", Slug: "draft"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	got, err := views.GetPublicBySlug(ctx, uuid.Nil, "draft")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = views.Create(ctx, &models.SharedView{OrganizationID: org, Name: "Help", Slug: "help", IsPublic: true})
	require.NoError(t, err)

	got, err = views.GetPublicBySlug(ctx, org, "help")
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = views.GetPublicBySlug(ctx, uuid.New(), "help")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = views.GetPublicBySlug(ctx, uuid.Nil, "help")
	require.NoError(t, err)
	require.NotNil(t, got, "a unique slug resolves without a tenant")

	other := uuid.New()
	_, err = views.Create(ctx, &models.SharedView{OrganizationID: other, Name: "Help", Slug: "help", IsPublic: true})
	require.NoError(t, err)

	got, err = views.GetPublicBySlug(ctx, uuid.Nil, "help")
	require.NoError(t, err)
	assert.Nil(t, got, "a slug two tenants publish needs a tenant host")

	got, err = views.GetPublicBySlug(ctx, other, "help")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, other, got.OrganizationID)
}

func TestCollections_DeleteDetachesDocuments(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	org := uuid.New()

	col, err := s.Collections().Create(ctx, org, "FAQ", nil)
	require.NoError(t, err)
	doc, err := s.Documents().Create(ctx, org, nil, models.DocumentInput{Title: "t", Content: "c", CollectionID: &col.ID})
	require.NoError(t, err)

	deleted, err := s.Collections().Delete(ctx, org, col.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	got, err := s.Documents().GetByID(ctx, org, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.CollectionID)
}
