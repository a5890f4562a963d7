package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/auth"
	"github.com/lalith-99/vectorvault/internal/middleware"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/lalith-99/vectorvault/internal/observ"
	"github.com/lalith-99/vectorvault/internal/tenant"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "test-secret-at-least-32-bytes!!!"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeKeys struct {
	byPrefix map[string]*models.APIKey
	touched  []uuid.UUID
	err      error
}

func (f *fakeKeys) List(context.Context, uuid.UUID) ([]models.APIKey, error) { return nil, nil }
func (f *fakeKeys) GetByID(context.Context, uuid.UUID, uuid.UUID) (*models.APIKey, error) {
	return nil, nil
}
func (f *fakeKeys) Create(_ context.Context, k *models.APIKey) (*models.APIKey, error) { return k, nil }
func (f *fakeKeys) Delete(context.Context, uuid.UUID, uuid.UUID) (bool, error) { return false, nil }

func (f *fakeKeys) GetByPrefix(_ context.Context, prefix string) (*models.APIKey, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byPrefix[prefix], nil
}

func (f *fakeKeys) TouchLastUsed(_ context.Context, keyID uuid.UUID, _ time.Time) error {
	f.touched = append(f.touched, keyID)
	return nil
}

type fakeProfiles struct {
	byID map[uuid.UUID]*models.UserProfile
}

func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*models.UserProfile, error) {
	return f.byID[id], nil
}

type fixture struct {
	keys     *fakeKeys
	profiles *fakeProfiles
	authn    *middleware.Authenticator
	orgID    uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		keys:     &fakeKeys{byPrefix: make(map[string]*models.APIKey)},
		profiles: &fakeProfiles{byID: make(map[uuid.UUID]*models.UserProfile)},
		orgID:    uuid.New(),
	}
	f.authn = middleware.NewAuthenticator(secret, f.keys, f.profiles, zap.NewNop())
	return f
}

func (f *fixture) addKey(t *testing.T, perms []string, expires *time.Time) string {
	t.Helper()
	gen, err := auth.GenerateAPIKey()
	require.NoError(t, err)
	f.keys.byPrefix[gen.Prefix] = &models.APIKey{
		ID:             uuid.New(),
		OrganizationID: f.orgID,
		KeyPrefix:      gen.Prefix,
		KeyHash:        gen.Hash,
		Permissions:    perms,
		ExpiresAt:      expires,
	}
	return gen.Key
}

func (f *fixture) addUser(t *testing.T, role models.Role) string {
	t.Helper()
	userID := uuid.New()
	f.profiles.byID[userID] = &models.UserProfile{ID: userID, OrganizationID: f.orgID, Role: role}
	tok, err := auth.GenerateToken(userID, "u@example.com", secret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) router(action auth.Action) *gin.Engine {
	r := gin.New()
	r.GET("/test", f.authn.Authenticate(), middleware.Require(action), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"org_id": middleware.GetOrganizationID(c)})
	})
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate_NoCredentials(t *testing.T) {
	f := newFixture()
	w := do(f.router(auth.ActionDocumentRead), httptest.NewRequest(http.MethodGet, "/test", http.NoBody))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticate_APIKey(t *testing.T) {
	f := newFixture()
	key := f.addKey(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(middleware.HeaderAPIKey, key)
	w := do(f.router(auth.ActionSearch), req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), f.orgID.String())
	assert.Len(t, f.keys.touched, 1)
}

func TestAuthenticate_APIKeyRejections(t *testing.T) {
	f := newFixture()
	past := time.Now().Add(-time.Hour)
	expired := f.addKey(t, nil, &past)
	valid := f.addKey(t, nil, nil)
	tampered := valid[:len(valid)-1] + "0"
	if valid[len(valid)-1] == '0' {
		tampered = valid[:len(valid)-1] + "1"
	}

	tests := []struct {
		name string
		key  string
	}{
		{"malformed", "not-a-key"},
		{"unknown prefix", "vv_0123456789abcdef_0123456789abcdef0123456789abcdef0123456789abcdef"},
		{"wrong secret", tampered},
		{"expired", expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set(middleware.HeaderAPIKey, tt.key)
			w := do(f.router(auth.ActionSearch), req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
	assert.Empty(t, f.keys.touched)
}

func TestAuthenticate_LookupFailureIs500(t *testing.T) {
	f := newFixture()
	key := f.addKey(t, nil, nil)
	f.keys.err = errors.New("pool exhausted")

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(middleware.HeaderAPIKey, key)
	w := do(f.router(auth.ActionSearch), req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pool exhausted")
}

func TestAuthenticate_APIKeyPermissions(t *testing.T) {
	f := newFixture()
	readOnly := f.addKey(t, nil, nil)
	writer := f.addKey(t, []string{"document:write"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(middleware.HeaderAPIKey, readOnly)
	assert.Equal(t, http.StatusForbidden, do(f.router(auth.ActionDocumentWrite), req).Code)

	req = httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(middleware.HeaderAPIKey, writer)
	assert.Equal(t, http.StatusOK, do(f.router(auth.ActionDocumentWrite), req).Code)
}

func TestAuthenticate_SessionBearerAndCookie(t *testing.T) {
	f := newFixture()
	tok := f.addUser(t, models.RoleEditor)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, do(f.router(auth.ActionDocumentWrite), req).Code)

	req = httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: tok})
	assert.Equal(t, http.StatusOK, do(f.router(auth.ActionDocumentWrite), req).Code)
}

func TestAuthenticate_SessionRejections(t *testing.T) {
	f := newFixture()
	orphan, err := auth.GenerateToken(uuid.New(), "x@example.com", secret, time.Hour)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"garbage":    "Bearer this.is.garbage",
		"no profile": "Bearer " + orphan,
		"bad scheme": "Basic dXNlcjpwYXNz",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", header)
			assert.Equal(t, http.StatusUnauthorized, do(f.router(auth.ActionDocumentRead), req).Code)
		})
	}
}

func TestRequire_RoleGates(t *testing.T) {
	f := newFixture()
	viewer := f.addUser(t, models.RoleViewer)
	admin := f.addUser(t, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+viewer)
	assert.Equal(t, http.StatusForbidden, do(f.router(auth.ActionDocumentDelete), req).Code)

	req = httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusOK, do(f.router(auth.ActionAPIKeyManage), req).Code)
}

func TestRequireAPIKey_RejectsSessions(t *testing.T) {
	f := newFixture()
	tok := f.addUser(t, models.RoleAdmin)

	r := gin.New()
	r.POST("/hook", f.authn.RequireAPIKey(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/hook", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := do(r, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

type fakeOrgs struct {
	org *models.Organization
	err error
}

func (f *fakeOrgs) GetByID(context.Context, uuid.UUID) (*models.Organization, error) { return f.org, f.err }
func (f *fakeOrgs) GetBySlug(_ context.Context, slug string) (*models.Organization, error) {
	if f.org != nil && f.org.Slug != slug {
		return nil, f.err
	}
	return f.org, f.err
}
func (f *fakeOrgs) GetByCustomDomain(context.Context, string) (*models.Organization, error) {
	return nil, f.err
}

func tenantRouter(orgs *fakeOrgs) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ResolveTenant(tenant.NewResolver(orgs, "vectorvault.io"), zap.NewNop()))
	r.GET("/", func(c *gin.Context) {
		slug := ""
		if org := middleware.GetOrganization(c); org != nil {
			slug = org.Slug
		}
		c.String(http.StatusOK, slug)
	})
	return r
}

func TestResolveTenant(t *testing.T) {
	acme := &models.Organization{ID: uuid.New(), Slug: "acme"}
	r := tenantRouter(&fakeOrgs{org: acme})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Host = "acme.vectorvault.io"
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acme", w.Body.String())
	assert.Equal(t, acme.ID.String(), w.Header().Get(middleware.HeaderOrganizationID))
	assert.Equal(t, "acme", w.Header().Get(middleware.HeaderOrganizationSlug))

	req = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Host = "vectorvault.io"
	w = do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, w.Header().Get(middleware.HeaderOrganizationID))

	req = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Host = "ghost.vectorvault.io"
	w = do(r, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"organization not found"}`, w.Body.String())
}

func TestResolveTenant_LookupFailureIs500(t *testing.T) {
	r := tenantRouter(&fakeOrgs{err: errors.New("timeout")})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Host = "acme.vectorvault.io"
	assert.Equal(t, http.StatusInternalServerError, do(r, req).Code)
}

func TestAuthenticate_RejectsForeignTenantHost(t *testing.T) {
	f := newFixture()
	tok := f.addUser(t, models.RoleAdmin)
	other := &models.Organization{ID: uuid.New(), Slug: "other"}

	r := gin.New()
	r.Use(middleware.ResolveTenant(tenant.NewResolver(&fakeOrgs{org: other}, "vectorvault.io"), zap.NewNop()))
	r.GET("/test", f.authn.Authenticate(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Host = "other.vectorvault.io"
	req.Header.Set("Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusForbidden, do(r, req).Code)
}

func TestRequestIDAndMetrics(t *testing.T) {
	m := observ.NewMetrics()
	r := gin.New()
	r.Use(middleware.RequestID(zap.NewNop()), middleware.Metrics(m))
	r.GET("/documents/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := do(r, httptest.NewRequest(http.MethodGet, "/documents/123", http.NoBody))
	_, err := uuid.Parse(w.Header().Get(middleware.HeaderRequestID))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/documents/456", http.NoBody)
	incoming := uuid.NewString()
	req.Header.Set(middleware.HeaderRequestID, incoming)
	w = do(r, req)
	assert.Equal(t, incoming, w.Header().Get(middleware.HeaderRequestID))

	assert.InDelta(t, 2, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/documents/:id", "204")), 0)
}
