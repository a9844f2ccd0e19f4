// Command entitlementd hosts the entitlement & usage quota engine: the
// payment-provider webhook endpoint, the internal entitlement surface
// consumed by the UI layer, health probes and Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/planodeaula/entitlements/migrations"
	"github.com/planodeaula/entitlements/pkg/audit"
	"github.com/planodeaula/entitlements/pkg/cache"
	"github.com/planodeaula/entitlements/pkg/config"
	"github.com/planodeaula/entitlements/pkg/entitlement"
	"github.com/planodeaula/entitlements/pkg/httpserver"
	"github.com/planodeaula/entitlements/pkg/logger"
	"github.com/planodeaula/entitlements/pkg/pg"
	"github.com/planodeaula/entitlements/pkg/plan"
	"github.com/planodeaula/entitlements/pkg/redis"
	"github.com/planodeaula/entitlements/pkg/webhook"
)

type appConfig struct {
	// PlanCatalogPath points at an optional YAML catalog overriding the
	// compiled-in plan quotas.
	PlanCatalogPath string `env:"PLAN_CATALOG_PATH"`

	// CacheBackend selects the quota cache: "memory" or "redis".
	CacheBackend string `env:"QUOTA_CACHE_BACKEND" envDefault:"memory"`

	// CacheTTL is the staleness window for cached entitlement reads.
	CacheTTL time.Duration `env:"QUOTA_CACHE_TTL" envDefault:"30s"`

	// StoreTimeout bounds each quota-store round trip.
	StoreTimeout time.Duration `env:"QUOTA_STORE_TIMEOUT" envDefault:"3s"`
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		appCfg  appConfig
		logCfg  logger.Config
		pgCfg   pg.Config
		httpCfg httpserver.Config
		whCfg   webhook.Config
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&logCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&whCfg)

	log := logger.NewFromConfig(logCfg)
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, migrations.FS, log); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	catalog, err := loadCatalog(ctx, appCfg.PlanCatalogPath)
	if err != nil {
		return err
	}

	quotaCache, readiness, err := buildCache(ctx, appCfg, pool)
	if err != nil {
		return err
	}

	store := entitlement.NewPGStore(pool)
	svc := entitlement.NewService(store, catalog,
		entitlement.WithCache(quotaCache, appCfg.CacheTTL),
		entitlement.WithGroupStore(entitlement.NewPGGroupStore(pool)),
		entitlement.WithStoreTimeout(appCfg.StoreTimeout),
		entitlement.WithLogger(log.With(logger.Component("entitlement"))),
	)

	auditStore := audit.NewPGStore(pool)
	processor := webhook.NewProcessor(whCfg, store, webhook.NewPGUserResolver(pool), auditStore,
		webhook.WithInvalidator(svc),
		webhook.WithLogger(log.With(logger.Component("webhook"))),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Post("/webhooks/pagamentos", processor.Handler())
	router.Get("/health", httpserver.HealthCheckHandler(ctx, log))
	router.Get("/ready", httpserver.HealthCheckHandler(ctx, log, readiness...))
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/internal", func(r chi.Router) {
		svc.Routes(r)
		r.Get("/webhook-audit", audit.Handler(auditStore))
	})

	server := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	return server.Run(ctx, router)
}

func loadCatalog(ctx context.Context, path string) (*plan.Catalog, error) {
	if path == "" {
		return plan.Default(), nil
	}

	catalog, err := plan.NewCatalog(ctx, plan.NewYAMLSource(path))
	if err != nil {
		return nil, fmt.Errorf("load plan catalog from %s: %w", path, err)
	}
	return catalog, nil
}

// buildCache wires the configured quota cache backend and returns the
// readiness checks the /ready probe should run.
func buildCache(ctx context.Context, cfg appConfig, pool *pgxpool.Pool) (cache.Cache[entitlement.UserEntitlement], []func(context.Context) error, error) {
	readiness := []func(context.Context) error{pg.Healthcheck(pool)}

	switch cfg.CacheBackend {
	case "redis":
		var redisCfg redis.Config
		config.MustLoad(&redisCfg)

		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}

		readiness = append(readiness, redis.Healthcheck(client))
		return cache.NewRedis[entitlement.UserEntitlement](client, "entitlement:"), readiness, nil
	default:
		return cache.NewMemory[entitlement.UserEntitlement](), readiness, nil
	}
}
