package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/tenantgate/pkg/api"
	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/catalog"
	"github.com/platinummonkey/tenantgate/pkg/config"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/ratelimit"
	"github.com/platinummonkey/tenantgate/pkg/rbac"
	"github.com/platinummonkey/tenantgate/pkg/shares"
	"github.com/platinummonkey/tenantgate/pkg/storage"
	"github.com/platinummonkey/tenantgate/pkg/storage/postgres"
	"github.com/platinummonkey/tenantgate/pkg/subscription"
	"github.com/platinummonkey/tenantgate/pkg/superadmin"
	"github.com/platinummonkey/tenantgate/pkg/token"
)

var version = "dev"

func main() {
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the environment")
	migrate := flag.Bool("migrate", true, "Apply pending database migrations at startup")
	flag.Parse()

	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger, *migrate); err != nil {
		logger.WithError(err).Error("Tenantgate exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger, migrate bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	// Database
	conns, err := postgres.NewConnectionManager(ctx, postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: postgres.ParseReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	}, logger)
	if err != nil {
		return err
	}
	if migrate {
		if err := postgres.RunMigrations(ctx, conns.Primary(), logger); err != nil {
			conns.Close()
			return err
		}
	}
	conns.StartMaintenance(ctx, 30*time.Second, metrics)
	db, replica := conns.Primary(), conns.Replica()

	// Redis is optional unless a component is configured to need it
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = postgres.NewRedisClient(ctx, postgres.RedisConfig{
			URL:      cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			conns.Close()
			return err
		}
	}

	auditLogger, err := newAuditLogger(cfg, db, logger)
	if err != nil {
		conns.Close()
		return err
	}

	// Services
	codec, err := token.NewCodec(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	authStore := auth.NewPostgresStore(db)
	authSvc := auth.NewService(authStore, codec, auth.Config{
		TokenTTL:       cfg.Auth.TokenTTL,
		CodeTTL:        cfg.Auth.CodeTTL,
		CodePepper:     cfg.Auth.CodePepper,
		PasswordPepper: cfg.Auth.PasswordPepper,
		Development:    cfg.IsDevelopment(),
		DevCodes:       cfg.Auth.DevCodeEnabled,
	}, auditLogger, metrics)

	var resolver rbac.Resolver = rbac.NewStoreResolver(authStore)
	if cfg.RBAC.MembershipCacheTTL > 0 {
		resolver = rbac.NewCachedResolver(resolver, cfg.RBAC.MembershipCacheSize, cfg.RBAC.MembershipCacheTTL, metrics)
	}
	policy := rbac.DefaultRoutePolicy()
	if cfg.RBAC.RoutePolicyFile != "" {
		if policy, err = rbac.LoadRoutePolicy(cfg.RBAC.RoutePolicyFile); err != nil {
			return err
		}
	}

	var adminSource superadmin.Source = superadmin.NewStaticSource(cfg.SuperAdmin.Enabled, cfg.SuperAdmin.Emails)
	if cfg.SuperAdmin.File != "" {
		fileSource, err := superadmin.NewFileSource(cfg.SuperAdmin.File, logger)
		if err != nil {
			return err
		}
		if err := fileSource.Watch(ctx); err != nil {
			return err
		}
		adminSource = fileSource
	}

	subSvc := subscription.NewService(subscription.NewPostgresStore(db, replica), subscription.Config{
		CodePepper: cfg.Subscription.ActivationCodePepper,
		CacheTTL:   cfg.Subscription.CacheTTL,
	}, auditLogger, metrics)
	if redisClient != nil {
		subSvc.WithCache(postgres.NewRedisCache(redisClient, "tenantgate:subscription"))
	}

	blobs, err := storage.NewFileSystemStorage(cfg.Blob.Root)
	if err != nil {
		return err
	}
	products := catalog.NewPostgresStore(db, replica)
	catalogSvc := catalog.NewService(products, blobs, subSvc)

	signer, err := shares.NewSigner(shares.SignerConfig{
		Secret:     cfg.Shares.SigningSecret,
		TTL:        cfg.Shares.SignedURLTTL,
		APIBaseURL: cfg.Server.APIBaseURL,
		WebBaseURL: cfg.Server.WebBaseURL,
	})
	if err != nil {
		return err
	}

	scheduler := cron.New()
	entryLimiter, err := newLimiter(cfg, redisClient, scheduler, logger, ratelimit.Config{
		Window:         cfg.Shares.RateWindow,
		MaxRequests:    cfg.Shares.RateMax,
		SweepThreshold: cfg.Shares.SweepThreshold,
	}, "share-entry")
	if err != nil {
		return err
	}
	codeLimiter, err := newLimiter(cfg, redisClient, scheduler, logger, ratelimit.Config{
		Window:      cfg.Auth.CodeRequestWindow,
		MaxRequests: cfg.Auth.CodeRequestMax,
	}, "login-code")
	if err != nil {
		return err
	}

	shareSvc := shares.NewService(shares.Options{
		Store:   shares.NewPostgresStore(db),
		Signer:  signer,
		Gate:    subSvc,
		Limiter: entryLimiter,
		Assets:  blobs,
		Resources: map[shares.ResourceType]shares.Resource{
			shares.ResourceTenantFeed: shares.NewTenantFeed(products),
			shares.ResourceProduct:    shares.NewProductResource(products),
		},
		Audit:   auditLogger,
		Metrics: metrics,
	})

	server := api.NewServer(api.Dependencies{
		Auth:           authSvc,
		Members:        rbac.NewMemberService(authStore, resolver, auditLogger),
		RBAC:           rbac.NewGate(resolver, policy, auditLogger, metrics),
		SuperAdmin:     superadmin.NewGate(adminSource, auditLogger, metrics),
		Subscriptions:  subSvc,
		Shares:         shareSvc,
		Catalog:        catalogSvc,
		CodeLimiter:    codeLimiter,
		Logger:         logger,
		Metrics:        metrics,
		Registry:       registryIf(cfg.Observability.MetricsEnabled, registry),
		Health:         newHealthChecker(conns, redisClient),
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.Blob.MaxUploadBytes,
		Tracing:        cfg.Observability.OTelEnabled,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Cleanup runs in registration order after the HTTP server drains
	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register("scheduler", func(ctx context.Context) error {
		stopped := scheduler.Stop()
		select {
		case <-stopped.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdown.Register("background", func(context.Context) error {
		cancel()
		return nil
	})
	shutdown.Register("audit", func(context.Context) error { return auditLogger.Close() })
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register("postgres", func(context.Context) error { return conns.Close() })
	if providers != nil {
		shutdown.Register("otel", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	scheduler.Start()

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":        httpServer.Addr,
			"version":     version,
			"environment": cfg.Environment,
			"replicas":    conns.ReplicaCount(),
		}).Info("Starting tenantgate")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	waitErr := make(chan error, 1)
	go func() { waitErr <- shutdown.WaitForSignal(ctx) }()

	select {
	case err, ok := <-serveErr:
		if ok && err != nil {
			shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer stop()
			_ = shutdown.Shutdown(shutdownCtx)
			return fmt.Errorf("http server failed: %w", err)
		}
		return <-waitErr
	case err := <-waitErr:
		return err
	}
}

func registryIf(enabled bool, registry *prometheus.Registry) *prometheus.Registry {
	if !enabled {
		return nil
	}
	return registry
}
