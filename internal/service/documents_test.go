package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/lalith-99/vectorvault/internal/quota"
	"github.com/lalith-99/vectorvault/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type gateCall struct {
	metric quota.Metric
	amount int
}

type fakeGate struct {
	admit      bool
	err        error
	releaseErr error
	calls      []gateCall
	releases   []gateCall
}

func (g *fakeGate) Admit(_ context.Context, _ uuid.UUID, metric quota.Metric, amount int) (bool, error) {
	g.calls = append(g.calls, gateCall{metric: metric, amount: amount})
	return g.admit, g.err
}

func (g *fakeGate) Release(_ context.Context, _ uuid.UUID, metric quota.Metric, amount int) error {
	g.releases = append(g.releases, gateCall{metric: metric, amount: amount})
	return g.releaseErr
}

// fakeDocs stores documents in memory keyed by id, scoped by organization.
type fakeDocs struct {
	mu          sync.Mutex
	docs        map[uuid.UUID]models.Document
	creates     int
	failCreate  error
	batchCalls  []int
	failBatchAt int // 1-based; 0 never fails
	searches    []models.SearchParams
	results     []models.SearchResult
	deleteCalls int
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: make(map[uuid.UUID]models.Document)}
}

func (f *fakeDocs) insert(orgID uuid.UUID, in models.DocumentInput) models.Document {
	d := models.Document{ID: uuid.New(), OrganizationID: orgID, Title: in.Title, Content: in.Content}
	f.docs[d.ID] = d
	return d
}

func (f *fakeDocs) List(_ context.Context, orgID uuid.UUID, filter models.DocumentFilter) (*models.DocumentPage, error) {
	page := &models.DocumentPage{Data: make([]models.Document, 0)}
	for _, d := range f.docs {
		if d.OrganizationID == orgID {
			page.Data = append(page.Data, d)
		}
	}
	page.Pagination = models.Pagination{Page: filter.Page, Limit: filter.Limit, Total: len(page.Data)}
	return page, nil
}

func (f *fakeDocs) GetByID(_ context.Context, orgID, docID uuid.UUID) (*models.Document, error) {
	d, ok := f.docs[docID]
	if !ok || d.OrganizationID != orgID {
		return nil, nil
	}
	return &d, nil
}

func (f *fakeDocs) Create(_ context.Context, orgID uuid.UUID, _ *uuid.UUID, in models.DocumentInput) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	d := f.insert(orgID, in)
	return &d, nil
}

func (f *fakeDocs) BatchCreate(_ context.Context, orgID uuid.UUID, _ *uuid.UUID, batch []models.DocumentInput) ([]models.Document, error) {
	f.batchCalls = append(f.batchCalls, len(batch))
	if f.failBatchAt == len(f.batchCalls) {
		return nil, errors.New("statement timeout")
	}
	out := make([]models.Document, 0, len(batch))
	for _, in := range batch {
		out = append(out, f.insert(orgID, in))
	}
	return out, nil
}

func (f *fakeDocs) Update(_ context.Context, orgID, docID uuid.UUID, in models.DocumentInput) (*models.Document, error) {
	d, ok := f.docs[docID]
	if !ok || d.OrganizationID != orgID {
		return nil, nil
	}
	d.Title, d.Content = in.Title, in.Content
	f.docs[docID] = d
	return &d, nil
}

func (f *fakeDocs) Delete(_ context.Context, orgID, docID uuid.UUID) (bool, error) {
	f.deleteCalls++
	d, ok := f.docs[docID]
	if !ok || d.OrganizationID != orgID {
		return false, nil
	}
	delete(f.docs, docID)
	return true, nil
}

func (f *fakeDocs) Search(_ context.Context, _ uuid.UUID, params models.SearchParams) ([]models.SearchResult, error) {
	f.searches = append(f.searches, params)
	return f.results, nil
}

func (f *fakeDocs) ListForView(context.Context, *models.SharedView) ([]models.Document, error) {
	return nil, nil
}

type recordingPublisher struct {
	events []models.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e models.Event) {
	p.events = append(p.events, e)
}

func newService(docs *fakeDocs, gate *fakeGate, pub *recordingPublisher) *service.DocumentService {
	var events service.Publisher
	if pub != nil {
		events = pub
	}
	return service.NewDocumentService(docs, gate, events, nil, zap.NewNop(), service.Options{})
}

func validInput() models.DocumentInput {
	return models.DocumentInput{Title: "Refund policy", Content: "Refunds within 30 days."}
}

func TestCreate_AdmittedWritesAndPublishes(t *testing.T) {
	docs, gate, pub := newFakeDocs(), &fakeGate{admit: true}, &recordingPublisher{}
	svc := newService(docs, gate, pub)
	orgID := uuid.New()

	doc, err := svc.Create(context.Background(), orgID, nil, validInput())
	require.NoError(t, err)

	assert.Equal(t, orgID, doc.OrganizationID)
	assert.Equal(t, []gateCall{{quota.MetricRecords, 1}}, gate.calls)
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventDocumentCreated, pub.events[0].Type)
	assert.Equal(t, []uuid.UUID{doc.ID}, pub.events[0].DocumentIDs)
}

func TestCreate_DenyNeverWrites(t *testing.T) {
	docs, gate, pub := newFakeDocs(), &fakeGate{admit: false}, &recordingPublisher{}
	svc := newService(docs, gate, pub)

	_, err := svc.Create(context.Background(), uuid.New(), nil, validInput())
	assert.ErrorIs(t, err, service.ErrLimitReached)
	assert.Zero(t, docs.creates)
	assert.Empty(t, docs.docs)
	assert.Empty(t, pub.events)
}

func TestCreate_GateErrorIsNotADeny(t *testing.T) {
	docs, gate := newFakeDocs(), &fakeGate{err: errors.New("connection refused")}
	svc := newService(docs, gate, nil)

	_, err := svc.Create(context.Background(), uuid.New(), nil, validInput())
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrLimitReached)
	assert.Zero(t, docs.creates)
}

func TestCreate_ValidationBeforeAnyRemoteCall(t *testing.T) {
	tests := []struct {
		name string
		in   models.DocumentInput
	}{
		{"missing title", models.DocumentInput{Content: "body"}},
		{"blank title", models.DocumentInput{Title: "   ", Content: "body"}},
		{"missing content", models.DocumentInput{Title: "title"}},
		{"blank content", models.DocumentInput{Title: "title", Content: "\n\t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, gate := newFakeDocs(), &fakeGate{admit: true}
			svc := newService(docs, gate, nil)

			_, err := svc.Create(context.Background(), uuid.New(), nil, tt.in)
			assert.ErrorIs(t, err, service.ErrValidation)
			assert.Empty(t, gate.calls)
			assert.Zero(t, docs.creates)
		})
	}
}

func inputs(n int) []models.DocumentInput {
	out := make([]models.DocumentInput, n)
	for i := range out {
		out[i] = validInput()
	}
	return out
}

func TestBatchCreate_ChunksIntoCeilNOver100Calls(t *testing.T) {
	tests := []struct {
		n     int
		calls []int
	}{
		{1, []int{1}},
		{100, []int{100}},
		{101, []int{100, 1}},
		{250, []int{100, 100, 50}},
	}

	for _, tt := range tests {
		docs, gate := newFakeDocs(), &fakeGate{admit: true}
		svc := newService(docs, gate, nil)

		created, err := svc.BatchCreate(context.Background(), uuid.New(), nil, inputs(tt.n))
		require.NoError(t, err)
		assert.Len(t, created, tt.n)
		assert.Equal(t, tt.calls, docs.batchCalls, "n=%d", tt.n)
		assert.Equal(t, []gateCall{{quota.MetricRecords, tt.n}}, gate.calls)
	}
}

func TestBatchCreate_FailureKeepsEarlierBatches(t *testing.T) {
	docs, gate, pub := newFakeDocs(), &fakeGate{admit: true}, &recordingPublisher{}
	docs.failBatchAt = 2
	svc := newService(docs, gate, pub)

	created, err := svc.BatchCreate(context.Background(), uuid.New(), nil, inputs(250))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 2 of 3")

	assert.Len(t, created, 100)
	assert.Len(t, docs.docs, 100)
	assert.Equal(t, []int{100, 100}, docs.batchCalls, "no call after the failing batch")
	require.Len(t, pub.events, 1)
	assert.Len(t, pub.events[0].DocumentIDs, 100)
	assert.Equal(t, []gateCall{{quota.MetricRecords, 150}}, gate.releases, "uncommitted records are returned")
}

func TestBatchCreate_Validation(t *testing.T) {
	docs, gate := newFakeDocs(), &fakeGate{admit: true}
	svc := newService(docs, gate, nil)

	_, err := svc.BatchCreate(context.Background(), uuid.New(), nil, nil)
	assert.ErrorIs(t, err, service.ErrValidation)

	items := inputs(3)
	items[2].Content = ""
	_, err = svc.BatchCreate(context.Background(), uuid.New(), nil, items)
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Contains(t, err.Error(), "documents[2]")

	assert.Empty(t, gate.calls)
	assert.Empty(t, docs.batchCalls)
}

func TestBatchCreate_DenyNeverWrites(t *testing.T) {
	docs, gate := newFakeDocs(), &fakeGate{admit: false}
	svc := newService(docs, gate, nil)

	created, err := svc.BatchCreate(context.Background(), uuid.New(), nil, inputs(5))
	assert.ErrorIs(t, err, service.ErrLimitReached)
	assert.Empty(t, created)
	assert.Empty(t, docs.batchCalls)
}

func TestDelete_OtherTenantIsNotFound(t *testing.T) {
	docs, gate, pub := newFakeDocs(), &fakeGate{admit: true}, &recordingPublisher{}
	svc := newService(docs, gate, pub)
	owner, intruder := uuid.New(), uuid.New()

	doc, err := svc.Create(context.Background(), owner, nil, validInput())
	require.NoError(t, err)
	pub.events = nil

	err = svc.Delete(context.Background(), intruder, nil, doc.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Contains(t, docs.docs, doc.ID)
	assert.Empty(t, pub.events)

	assert.Empty(t, gate.releases)

	require.NoError(t, svc.Delete(context.Background(), owner, nil, doc.ID))
	assert.NotContains(t, docs.docs, doc.ID)
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventDocumentDeleted, pub.events[0].Type)
	assert.Equal(t, []gateCall{{quota.MetricRecords, 1}}, gate.releases)
}

func TestDelete_ReleaseErrorDoesNotFail(t *testing.T) {
	docs, gate := newFakeDocs(), &fakeGate{admit: true, releaseErr: errors.New("connection refused")}
	svc := newService(docs, gate, nil)
	orgID := uuid.New()

	doc, err := svc.Create(context.Background(), orgID, nil, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), orgID, nil, doc.ID))
	assert.NotContains(t, docs.docs, doc.ID)
	assert.Len(t, gate.releases, 1)
}

func TestCreate_WriteFailureReleasesRecord(t *testing.T) {
	docs, gate := newFakeDocs(), &fakeGate{admit: true}
	docs.failCreate = errors.New("statement timeout")
	svc := newService(docs, gate, nil)

	_, err := svc.Create(context.Background(), uuid.New(), nil, validInput())
	require.Error(t, err)
	assert.Equal(t, []gateCall{{quota.MetricRecords, 1}}, gate.releases)
}

func TestUpdate_OtherTenantIsNotFoundAndFree(t *testing.T) {
	docs, gate := newFakeDocs(), &fakeGate{admit: true}
	svc := newService(docs, gate, nil)
	owner := uuid.New()

	doc, err := svc.Create(context.Background(), owner, nil, validInput())
	require.NoError(t, err)
	gate.calls = nil

	_, err = svc.Update(context.Background(), uuid.New(), nil, doc.ID, validInput())
	assert.ErrorIs(t, err, service.ErrNotFound)

	in := validInput()
	in.Title = "Updated"
	updated, err := svc.Update(context.Background(), owner, nil, doc.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Updated", updated.Title)
	assert.Empty(t, gate.calls, "updates do not consume quota")
}

func TestGet_OtherTenantIsNotFound(t *testing.T) {
	docs, gate := newFakeDocs(), &fakeGate{admit: true}
	svc := newService(docs, gate, nil)

	doc, err := svc.Create(context.Background(), uuid.New(), nil, validInput())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New(), doc.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestSearch_DefaultsAndCaps(t *testing.T) {
	half := 0.5
	tests := []struct {
		name      string
		req       service.SearchRequest
		limit     int
		threshold float64
	}{
		{"defaults", service.SearchRequest{Query: "refunds"}, 10, 0.7},
		{"explicit", service.SearchRequest{Query: "refunds", Limit: 3, Threshold: &half}, 3, 0.5},
		{"capped", service.SearchRequest{Query: "refunds", Limit: 1000}, 100, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, gate := newFakeDocs(), &fakeGate{admit: true}
			svc := newService(docs, gate, nil)

			results, err := svc.Search(context.Background(), uuid.New(), tt.req)
			require.NoError(t, err)
			assert.NotNil(t, results)

			require.Len(t, docs.searches, 1)
			assert.Equal(t, tt.limit, docs.searches[0].Limit)
			assert.InDelta(t, tt.threshold, docs.searches[0].Threshold, 1e-9)
			assert.Equal(t, []gateCall{{quota.MetricQueries, 1}}, gate.calls)
		})
	}
}

func TestSearch_RejectsBadInputBeforeGate(t *testing.T) {
	over := 1.5
	for _, req := range []service.SearchRequest{
		{Query: ""},
		{Query: "  "},
		{Query: "q", Limit: -1},
		{Query: "q", Threshold: &over},
	} {
		docs, gate := newFakeDocs(), &fakeGate{admit: true}
		svc := newService(docs, gate, nil)

		_, err := svc.Search(context.Background(), uuid.New(), req)
		assert.ErrorIs(t, err, service.ErrValidation)
		assert.Empty(t, gate.calls)
		assert.Empty(t, docs.searches)
	}
}

func TestSearch_DenyNeverSearches(t *testing.T) {
	docs, gate := newFakeDocs(), &fakeGate{admit: false}
	svc := newService(docs, gate, nil)

	_, err := svc.Search(context.Background(), uuid.New(), service.SearchRequest{Query: "refunds"})
	assert.ErrorIs(t, err, service.ErrLimitReached)
	assert.Empty(t, docs.searches)
}

func TestNewDocumentService_Options(t *testing.T) {
	zero := 0.0
	svc := service.NewDocumentService(newFakeDocs(), &fakeGate{admit: true}, nil, nil, nil,
		service.Options{BatchSize: 25, SearchLimit: 5, SearchThreshold: &zero})
	assert.Equal(t, 25, svc.BatchSize())

	params, err := svc.SearchParams(service.SearchRequest{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, 5, params.Limit)
	assert.Zero(t, params.Threshold)
}
