package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"tenantcore/internal/audit"
	"tenantcore/internal/bus"
	"tenantcore/internal/cache"
	"tenantcore/internal/eventstore"
	"tenantcore/internal/platform/config"
	"tenantcore/internal/platform/httpserver"
	"tenantcore/internal/platform/logger"
	"tenantcore/internal/platform/metrics"
	"tenantcore/internal/platform/postgres"
	"tenantcore/internal/platform/redis"
	"tenantcore/internal/repository"
	"tenantcore/internal/session"
	"tenantcore/internal/snapshot"
	tenantmetrics "tenantcore/internal/tenant/metrics"
	"tenantcore/internal/tenant/models"
	"tenantcore/internal/tenant/service"
	"tenantcore/pkg/aggregate"
	"tenantcore/pkg/domain"
)

// main wires high-level dependencies and keeps the process lifecycle small.
// Business logic lives in internal service packages.
func main() {
	if err := run(); err != nil {
		slog.Error("tenantcore exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	ids := domain.Default()

	infra, err := buildInfra(ctx, cfg, log, ids)
	if err != nil {
		return err
	}
	defer infra.close()

	auditPublisher := audit.NewPublisher(audit.NewInMemoryStore(), audit.WithAsyncBuffer(1024), audit.WithLogger(log))
	defer auditPublisher.Close()

	opts := []repository.Option{
		repository.WithSnapshots(infra.snapshots),
		repository.WithPublisher(infra.publisher),
		repository.WithAuditPublisher(auditPublisher),
		repository.WithMetrics(m),
		repository.WithLogger(log),
		repository.WithSnapshotInterval(cfg.Snapshot.Interval),
	}
	tenants, err := repository.New(infra.events, func(id *domain.Identity) *models.Tenant {
		return models.NewTenant(id, aggregate.WithInterner(ids))
	}, opts...)
	if err != nil {
		return err
	}
	organizations, err := repository.New(infra.events, func(id *domain.Identity) *models.Organization {
		return models.NewOrganization(id, aggregate.WithInterner(ids))
	}, opts...)
	if err != nil {
		return err
	}
	departments, err := repository.New(infra.events, func(id *domain.Identity) *models.Department {
		return models.NewDepartment(id, aggregate.WithInterner(ids))
	}, opts...)
	if err != nil {
		return err
	}

	scoped, err := cache.New(infra.cacheBackend,
		cache.WithKeyBase(cfg.Cache.KeyBase),
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithMetrics(m),
		cache.WithLogger(log),
	)
	if err != nil {
		return err
	}

	tenantService, err := service.New(tenants, organizations, departments, repository.NewGuard(opts...),
		service.WithInterner(ids),
		service.WithCache(scoped),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(tenantmetrics.New(reg)),
		service.WithLogger(log),
	)
	if err != nil {
		return err
	}
	if name := cfg.Bootstrap.TenantName; name != "" {
		view, err := service.SeedBootstrapTenant(ctx, tenantService, name)
		if err != nil {
			return fmt.Errorf("seed bootstrap tenant: %w", err)
		}
		log.Info("bootstrap tenant created", "tenant_id", view.ID, "name", view.Name)
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Gatherer: reg,
		Checks:   infra.checks,
		Sessions: session.NewService(cfg.Session.JWTSigningKey, cfg.Session.Issuer, ids),
		Logger:   log,
	})
	srv := httpserver.New(cfg.Server.Addr, router)
	srv.ReadTimeout = cfg.Server.ReadTimeout
	srv.WriteTimeout = cfg.Server.WriteTimeout

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting tenantcore", "addr", cfg.Server.Addr,
			"postgres", cfg.Database.UsesPostgres(),
			"redis", cfg.Redis.UsesRedis(),
			"kafka", cfg.Kafka.UsesKafka(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// infra holds the backing stores, chosen by configuration: every external
// system falls back to its in-memory counterpart when not configured.
type infra struct {
	events       repository.EventStore
	snapshots    repository.SnapshotStore
	publisher    repository.EventPublisher
	cacheBackend cache.Backend
	checks       map[string]httpserver.HealthCheck
	closers      []func()
}

func (i *infra) close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
}

func buildInfra(ctx context.Context, cfg *config.Config, log *slog.Logger, ids *domain.Interner) (*infra, error) {
	out := &infra{
		events:       eventstore.NewInMemoryStore(),
		snapshots:    snapshot.NewInMemoryStore(),
		publisher:    bus.NewInMemoryBus(),
		cacheBackend: cache.NewInMemoryBackend(),
		checks:       map[string]httpserver.HealthCheck{},
	}
	fail := func(err error) (*infra, error) {
		out.close()
		return nil, err
	}

	if cfg.Database.UsesPostgres() {
		db, err := postgres.OpenDB(ctx, cfg.Database)
		if err != nil {
			return fail(err)
		}
		out.closers = append(out.closers, func() { _ = db.Close() })
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db, log); err != nil {
				return fail(err)
			}
		}
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return fail(err)
		}
		out.closers = append(out.closers, pool.Close)
		out.events = eventstore.NewPostgres(pool, ids)
		out.snapshots = snapshot.NewPostgres(db)
		out.checks["postgres"] = pool.Ping
	}

	if cfg.Redis.UsesRedis() {
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return fail(err)
		}
		out.closers = append(out.closers, func() { _ = client.Close() })
		out.cacheBackend = cache.NewRedisBackend(client.Client)
		out.checks["redis"] = client.Health
	}

	if cfg.Kafka.UsesKafka() {
		publisher, err := bus.NewKafkaPublisher(ctx, cfg.Kafka, log)
		if err != nil {
			return fail(err)
		}
		out.closers = append(out.closers, publisher.Close)
		out.publisher = publisher
	}
	return out, nil
}
