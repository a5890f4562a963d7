package api

import (
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/vectorvault/internal/auth"
	"github.com/lalith-99/vectorvault/internal/middleware"
	"github.com/lalith-99/vectorvault/internal/observ"
	"github.com/lalith-99/vectorvault/internal/tenant"
	"go.uber.org/zap"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Health       *HealthHandler
	Documents    *DocumentHandler
	Categories   *CategoryHandler
	Collections  *CollectionHandler
	SharedViews  *SharedViewHandler
	APIKeys      *APIKeyHandler
	Usage        *UsageHandler
	Integrations *IntegrationHandler
	Events       *EventsHandler
}

// NewRouter builds the gin engine.
//
// Probes and /metrics sit outside tenant resolution. Everything else first
// resolves the Host header; /api routes then authenticate, and each route
// names the single action it requires.
func NewRouter(
	h Handlers,
	authn *middleware.Authenticator,
	resolver *tenant.Resolver,
	metrics *observ.Metrics,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(logger),
		middleware.AccessLog(logger),
		middleware.Metrics(metrics),
	)

	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	resolveTenant := middleware.ResolveTenant(resolver, logger)

	r.GET("/shared/:slug", resolveTenant, h.SharedViews.Public)

	integrations := r.Group("/api/integrations", resolveTenant, authn.RequireAPIKey())
	integrations.POST("/:provider", h.Integrations.Search)

	v1 := r.Group("/api", resolveTenant, authn.Authenticate())
	require := middleware.Require

	docs := v1.Group("/documents")
	docs.GET("", require(auth.ActionDocumentRead), h.Documents.List)
	docs.POST("", require(auth.ActionDocumentWrite), h.Documents.Create)
	docs.POST("/search", require(auth.ActionSearch), h.Documents.Search)
	docs.POST("/batch", require(auth.ActionDocumentWrite), h.Documents.BatchCreate)
	docs.GET("/:id", require(auth.ActionDocumentRead), h.Documents.Get)
	docs.PUT("/:id", require(auth.ActionDocumentWrite), h.Documents.Update)
	docs.DELETE("/:id", require(auth.ActionDocumentDelete), h.Documents.Delete)

	cats := v1.Group("/categories")
	cats.GET("", require(auth.ActionCategoryRead), h.Categories.List)
	cats.POST("", require(auth.ActionCategoryWrite), h.Categories.Create)
	cats.GET("/:id", require(auth.ActionCategoryRead), h.Categories.Get)
	cats.PUT("/:id", require(auth.ActionCategoryWrite), h.Categories.Update)
	cats.DELETE("/:id", require(auth.ActionCategoryWrite), h.Categories.Delete)

	cols := v1.Group("/collections")
	cols.GET("", require(auth.ActionCollectionRead), h.Collections.List)
	cols.POST("", require(auth.ActionCollectionWrite), h.Collections.Create)
	cols.GET("/:id", require(auth.ActionCollectionRead), h.Collections.Get)
	cols.PUT("/:id", require(auth.ActionCollectionWrite), h.Collections.Update)
	cols.DELETE("/:id", require(auth.ActionCollectionWrite), h.Collections.Delete)

	views := v1.Group("/shared-views")
	views.GET("", require(auth.ActionSharedViewRead), h.SharedViews.List)
	views.POST("", require(auth.ActionSharedViewWrite), h.SharedViews.Create)
	views.GET("/:id", require(auth.ActionSharedViewRead), h.SharedViews.Get)
	views.PUT("/:id", require(auth.ActionSharedViewWrite), h.SharedViews.Update)
	views.DELETE("/:id", require(auth.ActionSharedViewWrite), h.SharedViews.Delete)

	keys := v1.Group("/api-keys")
	keys.GET("", require(auth.ActionAPIKeyRead), h.APIKeys.List)
	keys.POST("", require(auth.ActionAPIKeyManage), h.APIKeys.Create)
	keys.GET("/:id", require(auth.ActionAPIKeyRead), h.APIKeys.Get)
	keys.DELETE("/:id", require(auth.ActionAPIKeyManage), h.APIKeys.Delete)

	usage := v1.Group("/usage", require(auth.ActionUsageRead))
	usage.GET("/current", h.Usage.Current)
	usage.GET("/history", h.Usage.History)

	v1.GET("/events", require(auth.ActionEventsSubscribe), h.Events.Stream)

	return r
}
