package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	auditpersistence "github.com/complium/complium/modules/audit/infrastructure/persistence"
	auditcontrollers "github.com/complium/complium/modules/audit/presentation/controllers"
	auditservices "github.com/complium/complium/modules/audit/services"
	"github.com/complium/complium/modules/core/infrastructure/persistence"
	"github.com/complium/complium/modules/core/infrastructure/provisioning"
	corecontrollers "github.com/complium/complium/modules/core/presentation/controllers"
	"github.com/complium/complium/modules/core/seed"
	coreservices "github.com/complium/complium/modules/core/services"
	"github.com/complium/complium/pkg/cache"
	"github.com/complium/complium/pkg/composables"
	"github.com/complium/complium/pkg/configuration"
	"github.com/complium/complium/pkg/eventbus"
	"github.com/complium/complium/pkg/httpapi"
	"github.com/complium/complium/pkg/metrics"
	"github.com/complium/complium/pkg/middleware"
	"github.com/complium/complium/pkg/tenantdb"
)

const shutdownTimeout = 15 * time.Second

func main() {
	conf := configuration.Use()
	logger := conf.Logger()

	if err := run(conf, logger); err != nil {
		logger.WithError(err).Fatal("server exited with error")
	}
}

func run(conf *configuration.Configuration, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := provisioning.NewControlPlaneMigrator(logger).Migrate(ctx, conf.Database.ConnectionString()); err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, conf.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer pool.Close()

	responseCache, err := buildCache(conf, logger)
	if err != nil {
		return err
	}

	publisher := eventbus.NewEventPublisher(logger)

	orgs := persistence.NewOrganizationRepository()
	memberships := persistence.NewMembershipRepository()
	descriptors := persistence.NewDescriptorRepository()
	tokens := persistence.NewTokenRepository()

	sites := auditpersistence.NewSiteRepository()
	processes := auditpersistence.NewProcessRepository()
	sprints := auditpersistence.NewSprintRepository()
	issues := auditpersistence.NewIssueRepository()
	assignments := auditpersistence.NewAssignmentRepository()

	descriptorService := coreservices.NewDescriptorService(pool, descriptors)
	registry := tenantdb.NewPoolRegistry(descriptorService, tenantdb.Options{
		MaxConns:       conf.TenantPool.MaxConns,
		AcquireTimeout: conf.TenantPool.AcquireTimeout,
		Logger:         logger,
	})
	defer registry.Close()

	tenantService := coreservices.NewTenantService(
		orgs,
		memberships,
		descriptors,
		provisioning.NewPgDatabaseProvisioner(pool),
		provisioning.NewTenantMigrator(logger),
		seed.NewOnboardingSeeder(logger),
		&conf.Database,
		publisher,
		logger,
	)
	authService := coreservices.NewAuthService(tokens, memberships, orgs, responseCache, conf.Cache.ContextTTL)
	accessService := coreservices.NewAccessService(assignments)

	issueService := auditservices.NewIssueService(
		registry, issues, processes, sprints, accessService, responseCache, conf.Cache.TTL, publisher,
	)
	siteService := auditservices.NewSiteService(registry, sites, accessService)
	processService := auditservices.NewProcessService(registry, processes, sites, accessService)
	sprintService := auditservices.NewSprintService(registry, sprints, processes, issues, accessService, responseCache)

	r := mux.NewRouter()
	r.Use(middleware.LogRequests(logger), middleware.WithPool(pool))
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if conf.Prometheus.Enabled {
		metrics.NewPrometheusController(conf.Prometheus.Path).Register(r)
	}

	corecontrollers.NewTenantController(tenantService, authService).Register(r)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Authenticate(authService))
	auditcontrollers.NewIssueController(issueService).Register(api)
	auditcontrollers.NewStructureController(siteService, processService, sprintService).Register(api)

	srv := &http.Server{
		Addr:    conf.SocketAddress,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("address", conf.SocketAddress).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// The pool is still open here, so expired tokens can be swept on the way out.
	if removed, err := tokens.DeleteExpired(composables.WithPool(context.Background(), pool), time.Now()); err == nil && removed > 0 {
		logger.WithField("count", removed).Info("expired tokens removed")
	}
	return nil
}

func buildCache(conf *configuration.Configuration, logger *logrus.Logger) (cache.Cache, error) {
	if conf.Cache.Storage == "redis" {
		opts, err := redis.ParseURL(conf.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisCache(redis.NewClient(opts), logger), nil
	}
	return cache.NewMemoryCache(), nil
}
