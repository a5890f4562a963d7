package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/lalith-99/vectorvault/internal/tenant"
	"go.uber.org/zap"
)

const (
	HeaderOrganizationID   = "X-Organization-ID"
	HeaderOrganizationSlug = "X-Organization-Slug"
)

// ResolveTenant maps the Host header to an organization. Requests to the
// root domain pass through untouched.
func ResolveTenant(resolver *tenant.Resolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		org, err := resolver.Resolve(c.Request.Context(), c.Request.Host)
		switch {
		case errors.Is(err, tenant.ErrTenantNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "organization not found"})
			return
		case err != nil:
			LoggerFrom(c, logger).Error("resolve tenant", zap.String("host", c.Request.Host), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		case org == nil:
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(tenant.WithOrganization(c.Request.Context(), org))
		c.Set(ContextKeyOrganization, org)
		c.Header(HeaderOrganizationID, org.ID.String())
		c.Header(HeaderOrganizationSlug, org.Slug)
		c.Next()
	}
}

// GetOrganization returns the host-resolved organization, or nil.
func GetOrganization(c *gin.Context) *models.Organization {
	val, exists := c.Get(ContextKeyOrganization)
	if !exists {
		return nil
	}
	org, _ := val.(*models.Organization)
	return org
}
