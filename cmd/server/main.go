package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lalith-99/vectorvault/internal/api"
	"github.com/lalith-99/vectorvault/internal/config"
	"github.com/lalith-99/vectorvault/internal/db"
	"github.com/lalith-99/vectorvault/internal/events"
	"github.com/lalith-99/vectorvault/internal/middleware"
	"github.com/lalith-99/vectorvault/internal/observ"
	"github.com/lalith-99/vectorvault/internal/quota"
	"github.com/lalith-99/vectorvault/internal/repository/postgres"
	"github.com/lalith-99/vectorvault/internal/service"
	"github.com/lalith-99/vectorvault/internal/tenant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = db.NewRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
	}

	pool := database.Pool()
	orgs := postgres.NewOrganizationStore(pool)
	profiles := postgres.NewProfileStore(pool)
	documents := postgres.NewDocumentStore(pool)
	usage := postgres.NewUsageStore(pool)
	apiKeys := postgres.NewAPIKeyStore(pool)

	metrics := observ.NewMetrics()

	var gate quota.Gate = postgres.NewQuotaStore(pool)
	if cfg.QuotaBackend == config.QuotaBackendRedis {
		gate = quota.NewRedisGate(rdb, usage)
	}
	gate = quota.NewInstrumented(gate, metrics)

	var publisher service.Publisher = events.NopPublisher{}
	if rdb != nil {
		publisher = events.NewRedisPublisher(rdb, logger)
	}

	threshold := cfg.SearchDefaultThreshold
	docs := service.NewDocumentService(documents, gate, publisher, metrics, logger, service.Options{
		BatchSize:       cfg.BatchSize,
		SearchLimit:     cfg.SearchDefaultLimit,
		SearchThreshold: &threshold,
	})

	deps := map[string]api.Pinger{"postgres": database}
	var stream api.EventStreamer
	if rdb != nil {
		deps["redis"] = api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		stream = events.NewHub(events.NewRedisSubscriber(rdb), logger)
	}

	handlers := api.Handlers{
		Health:       api.NewHealthHandler(deps, logger),
		Documents:    api.NewDocumentHandler(docs, logger),
		Categories:   api.NewCategoryHandler(postgres.NewCategoryStore(pool), logger),
		Collections:  api.NewCollectionHandler(postgres.NewCollectionStore(pool), logger),
		SharedViews:  api.NewSharedViewHandler(postgres.NewSharedViewStore(pool), orgs, documents, logger),
		APIKeys:      api.NewAPIKeyHandler(apiKeys, logger),
		Usage:        api.NewUsageHandler(usage, logger),
		Integrations: api.NewIntegrationHandler(docs, cfg.IntegrationSearchLimit, cfg.SearchDefaultThreshold, logger),
		Events:       api.NewEventsHandler(stream),
	}

	authn := middleware.NewAuthenticator(cfg.JWTSecret, apiKeys, profiles, logger)
	resolver := tenant.NewResolver(orgs, cfg.RootDomain)
	router := api.NewRouter(handlers, authn, resolver, metrics, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting vectorvault",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("quota_backend", cfg.QuotaBackend),
			zap.Bool("live_events", rdb != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
