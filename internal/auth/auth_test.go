package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/auth"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-at-least-32-bytes!!!"

func TestParseToken_RoundTrip(t *testing.T) {
	userID := uuid.New()
	tok, err := auth.GenerateToken(userID, "u@example.com", secret, time.Hour)
	require.NoError(t, err)

	claims, err := auth.ParseToken(tok, secret)
	require.NoError(t, err)

	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, got)
	assert.Equal(t, "u@example.com", claims.Email)
}

func TestParseToken_WrongSecret(t *testing.T) {
	tok, err := auth.GenerateToken(uuid.New(), "u@example.com", secret, time.Hour)
	require.NoError(t, err)

	_, err = auth.ParseToken(tok, "another-secret-entirely-32-bytes")
	assert.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	tok, err := auth.GenerateToken(uuid.New(), "u@example.com", secret, -time.Minute)
	require.NoError(t, err)

	_, err = auth.ParseToken(tok, secret)
	assert.Error(t, err)
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = auth.ParseToken(tok, secret)
	assert.Error(t, err)
}

func TestClaimsUserID_BadSubject(t *testing.T) {
	c := auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid"}}
	_, err := c.UserID()
	assert.Error(t, err)
}

func TestGenerateAPIKey_VerifiesAndSplits(t *testing.T) {
	gen, err := auth.GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gen.Key, "vv_"+gen.Prefix+"_"))
	assert.NotContains(t, gen.Hash, gen.Key)

	prefix, err := auth.SplitAPIKey(gen.Key)
	require.NoError(t, err)
	assert.Equal(t, gen.Prefix, prefix)

	assert.True(t, auth.VerifyAPIKey(gen.Key, gen.Hash))
	assert.False(t, auth.VerifyAPIKey(gen.Key+"x", gen.Hash))
}

func TestGenerateAPIKey_Unique(t *testing.T) {
	a, err := auth.GenerateAPIKey()
	require.NoError(t, err)
	b, err := auth.GenerateAPIKey()
	require.NoError(t, err)

	assert.NotEqual(t, a.Key, b.Key)
	assert.NotEqual(t, a.Prefix, b.Prefix)
}

func TestSplitAPIKey_Malformed(t *testing.T) {
	for _, key := range []string{
		"",
		"vv_short_key",
		"sk_0123456789abcdef_0123456789abcdef0123456789abcdef0123456789abcdef",
		"vv_0123456789abcdef",
		"vv_0123456789abcdef_0123456789abcdef0123456789abcdef0123456789abcdef_extra",
	} {
		_, err := auth.SplitAPIKey(key)
		assert.ErrorIs(t, err, auth.ErrMalformedAPIKey, "key %q", key)
	}
}

func TestCan_RoleMatrix(t *testing.T) {
	tests := []struct {
		role   models.Role
		action auth.Action
		want   bool
	}{
		{models.RoleViewer, auth.ActionDocumentRead, true},
		{models.RoleViewer, auth.ActionSearch, true},
		{models.RoleViewer, auth.ActionDocumentWrite, false},
		{models.RoleViewer, auth.ActionDocumentDelete, false},
		{models.RoleViewer, auth.ActionSharedViewWrite, false},
		{models.RoleEditor, auth.ActionDocumentWrite, true},
		{models.RoleEditor, auth.ActionDocumentDelete, true},
		{models.RoleEditor, auth.ActionCategoryWrite, true},
		{models.RoleEditor, auth.ActionAPIKeyManage, false},
		{models.RoleEditor, auth.ActionAPIKeyRead, false},
		{models.RoleEditor, auth.ActionUsageRead, false},
		{models.RoleAdmin, auth.ActionAPIKeyManage, true},
		{models.RoleAdmin, auth.ActionUsageRead, true},
		{models.RoleAdmin, auth.ActionDocumentDelete, true},
		{models.Role("owner"), auth.ActionDocumentRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, auth.Can(tt.role, tt.action))
		})
	}
}

func TestKeyCan(t *testing.T) {
	assert.True(t, auth.KeyCan(nil, auth.ActionSearch))
	assert.True(t, auth.KeyCan(nil, auth.ActionDocumentRead))
	assert.False(t, auth.KeyCan(nil, auth.ActionDocumentWrite))

	perms := []string{"document:write"}
	assert.True(t, auth.KeyCan(perms, auth.ActionDocumentWrite))
	assert.False(t, auth.KeyCan(perms, auth.ActionDocumentDelete))

	// Session-only actions cannot be granted.
	assert.False(t, auth.KeyCan([]string{"api_key:manage"}, auth.ActionAPIKeyManage))
	assert.False(t, auth.KeyCan([]string{"usage:read"}, auth.ActionUsageRead))
	assert.False(t, auth.ValidKeyPermission("api_key:manage"))
	assert.True(t, auth.ValidKeyPermission("category:write"))
}
