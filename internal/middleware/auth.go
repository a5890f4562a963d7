package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/auth"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/lalith-99/vectorvault/internal/repository"
	"github.com/lalith-99/vectorvault/internal/tenant"
	"go.uber.org/zap"
)

// Context keys for values stored in gin.Context.
const (
	ContextKeyPrincipal    = "principal"
	ContextKeyOrganization = "organization"
	ContextKeyLogger       = "logger"
	ContextKeyRequestID    = "request_id"
)

const (
	HeaderAPIKey  = "X-API-Key"
	SessionCookie = "sb-access-token"
)

// Principal is the authenticated caller. Exactly one of UserID and APIKeyID
// is set.
type Principal struct {
	OrganizationID uuid.UUID
	UserID         *uuid.UUID
	Role           models.Role
	APIKeyID       *uuid.UUID
	Permissions    []string
	// ActorID is recorded as created_by. For API keys it is the key's
	// creator.
	ActorID *uuid.UUID
}

// Can is the one authorization check every handler goes through.
func (p *Principal) Can(action auth.Action) bool {
	if p.APIKeyID != nil {
		return auth.Can(models.RoleEditor, action) && auth.KeyCan(p.Permissions, action)
	}
	return auth.Can(p.Role, action)
}

// Authenticator resolves X-API-Key headers and platform session tokens to a
// Principal.
type Authenticator struct {
	secret   string
	keys     repository.APIKeyRepository
	profiles repository.ProfileRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthenticator(
	secret string,
	keys repository.APIKeyRepository,
	profiles repository.ProfileRepository,
	logger *zap.Logger,
) *Authenticator {
	return &Authenticator{
		secret:   secret,
		keys:     keys,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

// authError carries the status and client-facing message of a rejected
// credential.
type authError struct {
	status  int
	message string
}

func unauthorized(msg string) *authError {
	return &authError{status: http.StatusUnauthorized, message: msg}
}

var errAuthInternal = &authError{status: http.StatusInternalServerError, message: "internal server error"}

func (a *Authenticator) fromAPIKey(c *gin.Context, key string) (*Principal, *authError) {
	prefix, err := auth.SplitAPIKey(key)
	if err != nil {
		return nil, unauthorized("invalid api key")
	}

	ctx := c.Request.Context()
	stored, err := a.keys.GetByPrefix(ctx, prefix)
	if err != nil {
		LoggerFrom(c, a.logger).Error("api key lookup", zap.Error(err))
		return nil, errAuthInternal
	}
	if stored == nil || !auth.VerifyAPIKey(key, stored.KeyHash) {
		return nil, unauthorized("invalid api key")
	}

	now := a.now()
	if stored.Expired(now) {
		return nil, unauthorized("api key expired")
	}

	// last_used_at is bookkeeping; a failed touch does not reject the call.
	if err := a.keys.TouchLastUsed(context.WithoutCancel(ctx), stored.ID, now); err != nil {
		LoggerFrom(c, a.logger).Warn("touch api key", zap.String("key_id", stored.ID.String()), zap.Error(err))
	}

	keyID := stored.ID
	return &Principal{
		OrganizationID: stored.OrganizationID,
		APIKeyID:       &keyID,
		Permissions:    stored.Permissions,
		ActorID:        stored.CreatedBy,
	}, nil
}

func sessionToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

func (a *Authenticator) fromSession(c *gin.Context) (*Principal, *authError) {
	token := sessionToken(c)
	if token == "" {
		return nil, unauthorized("authentication required")
	}

	claims, err := auth.ParseToken(token, a.secret)
	if err != nil {
		return nil, unauthorized("invalid or expired token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, unauthorized("invalid or expired token")
	}

	profile, err := a.profiles.GetByID(c.Request.Context(), userID)
	if err != nil {
		LoggerFrom(c, a.logger).Error("profile lookup", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, errAuthInternal
	}
	if profile == nil {
		return nil, unauthorized("profile not found")
	}

	return &Principal{
		OrganizationID: profile.OrganizationID,
		UserID:         &userID,
		Role:           profile.Role,
		ActorID:        &userID,
	}, nil
}

// bind stores the principal, rejecting callers whose organization differs
// from the one the request host resolved to.
func bind(c *gin.Context, p *Principal) *authError {
	if org, ok := tenant.FromContext(c.Request.Context()); ok && org.ID != p.OrganizationID {
		return &authError{status: http.StatusForbidden, message: "organization mismatch"}
	}
	c.Set(ContextKeyPrincipal, p)
	return nil
}

// Authenticate accepts an X-API-Key header or, failing that, a session token
// from the Authorization header or the platform session cookie.
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			p    *Principal
			fail *authError
		)
		if key := c.GetHeader(HeaderAPIKey); key != "" {
			p, fail = a.fromAPIKey(c, key)
		} else {
			p, fail = a.fromSession(c)
		}
		if fail == nil {
			fail = bind(c, p)
		}
		if fail != nil {
			c.AbortWithStatusJSON(fail.status, gin.H{"error": fail.message})
			return
		}
		c.Next()
	}
}

// RequireAPIKey authenticates integration callers. Sessions are not
// accepted. Failures use the integration response shape.
func (a *Authenticator) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderAPIKey)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "api key required"})
			return
		}

		p, fail := a.fromAPIKey(c, key)
		if fail == nil {
			fail = bind(c, p)
		}
		if fail != nil {
			c.AbortWithStatusJSON(fail.status, gin.H{"success": false, "error": fail.message})
			return
		}
		c.Next()
	}
}

// Require rejects principals that may not perform action. Must run after
// Authenticate or RequireAPIKey.
func Require(action auth.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		if p == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !p.Can(action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

// GetPrincipal returns nil when the request is unauthenticated.
func GetPrincipal(c *gin.Context) *Principal {
	val, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return nil
	}
	p, ok := val.(*Principal)
	if !ok {
		return nil
	}
	return p
}

// GetOrganizationID returns uuid.Nil when the request is unauthenticated.
func GetOrganizationID(c *gin.Context) uuid.UUID {
	if p := GetPrincipal(c); p != nil {
		return p.OrganizationID
	}
	return uuid.Nil
}
