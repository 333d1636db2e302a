package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/workspaces/pkg/api"
	"github.com/platinummonkey/workspaces/pkg/async"
	"github.com/platinummonkey/workspaces/pkg/config"
	"github.com/platinummonkey/workspaces/pkg/keys"
	"github.com/platinummonkey/workspaces/pkg/observability"
	"github.com/platinummonkey/workspaces/pkg/search"
	"github.com/platinummonkey/workspaces/pkg/settings"
	"github.com/platinummonkey/workspaces/pkg/sources"
	"github.com/platinummonkey/workspaces/pkg/storage"
	"github.com/platinummonkey/workspaces/pkg/workspace"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file (overrides "+config.ConfigFileEnv+")")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}
	if *configFile != "" {
		if err := os.Setenv(config.ConfigFileEnv, *configFile); err != nil {
			log.Fatalf("Failed to set config file: %v", err)
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("workspaced: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName)
	logger.WithField("version", version).Info("Starting workspaced")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	var otelMetrics *observability.OTelMetrics
	if otelProviders != nil {
		if otelMetrics, err = observability.NewOTelMetrics(); err != nil {
			return fmt.Errorf("failed to create OpenTelemetry metrics: %w", err)
		}
	}

	opened, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	managerOpts := []workspace.Option{
		workspace.WithLogger(logger),
		workspace.WithMetrics(metrics),
		workspace.WithInviteTTL(cfg.Invites.TTL),
		workspace.WithHydrationTimeout(cfg.Persistence.HydrationTimeout),
	}
	var outbox *async.Outbox
	if cfg.Persistence.Enabled {
		outbox = async.NewOutbox(async.OutboxConfig{
			Name:           "workspaces",
			QueueSize:      cfg.Persistence.QueueSize,
			MaxAttempts:    cfg.Persistence.MaxAttempts,
			InitialBackoff: cfg.Persistence.InitialBackoff,
			MaxBackoff:     cfg.Persistence.MaxBackoff,
			AttemptTimeout: cfg.Persistence.AttemptTimeout,
		}, logger, async.WithOutboxMetrics(async.OutboxMetrics{
			Pending:   metrics.OutboxPending,
			Delivered: metrics.OutboxDelivered,
			Failed:    metrics.OutboxFailed,
			Dropped:   metrics.OutboxDropped,
		}))
		managerOpts = append(managerOpts, workspace.WithPersistence(opened.Repository, outbox))
		logger.WithField("backend", string(opened.Backend)).Info("Write-behind persistence enabled")
	}
	manager := workspace.NewManager(workspace.NewStore(), managerOpts...)

	sweeper, err := workspace.NewInviteSweeper(manager, cfg.Invites.SweepSchedule, logger)
	if err != nil {
		return fmt.Errorf("failed to create invite sweeper: %w", err)
	}
	sweeper.Start()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	fallback, watchDone, err := fallbackKeys(watchCtx, cfg.Keys, logger)
	if err != nil {
		return err
	}
	keyOpts := []keys.Option{keys.WithLogger(logger), keys.WithMetrics(metrics)}
	searchOpts := []search.Option{
		search.WithLogger(logger),
		search.WithMetrics(metrics),
		search.WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxLimit),
		search.WithConcurrency(cfg.Search.Concurrency),
	}
	if otelMetrics != nil {
		keyOpts = append(keyOpts, keys.WithOTelMetrics(otelMetrics))
		searchOpts = append(searchOpts, search.WithOTelMetrics(otelMetrics))
	}
	keyRouter := keys.NewRouter(fallback, keyOpts...)

	settingsManager := settings.NewManager(manager, keyRouter,
		settings.WithBaseURL(cfg.Invites.BaseURL),
		settings.WithLogger(logger),
	)

	activity, err := activityLog(ctx, opened, cfg.Storage.AutoMigrate, logger)
	if err != nil {
		return err
	}
	// Knowledge and workflows are owned by external systems; the memory
	// stores stand in until adapters for them are wired here.
	engine := search.NewEngine(manager, activity,
		sources.NewMemoryKnowledgeStore(),
		sources.NewMemoryWorkflowEngine(),
		searchOpts...,
	)

	serverOpts := []api.Option{api.WithLogger(logger), api.WithMetrics(metrics)}
	if cfg.Observability.OTelEnabled {
		serverOpts = append(serverOpts, api.WithTracing())
	}
	apiServer := api.NewServer(api.Services{
		Workspaces: manager,
		Settings:   settingsManager,
		MemberKeys: keyRouter,
		Search:     engine,
	}, serverOpts...)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	checker := observability.NewHealthChecker(version, opened.Checks...)
	healthRouter := mux.NewRouter()
	observability.RegisterHealthRoutes(healthRouter, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthRouter, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthRouter,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("invite_sweeper", sweeper.Stop)
	shutdown.RegisterShutdownFunc("sealed_key_watcher", observability.CancelAndWait(stopWatch, watchDone))
	if outbox != nil {
		shutdown.RegisterShutdownFunc("outbox", func(ctx context.Context) error {
			if err := outbox.Flush(ctx); err != nil {
				logger.WithError(err).Warn("Outbox did not drain before shutdown")
			}
			return outbox.Close(ctx)
		})
	}
	shutdown.RegisterShutdownFunc("health_server", healthServer.Shutdown)
	shutdown.RegisterShutdownFunc("storage", func(context.Context) error {
		return opened.Close()
	})
	shutdown.RegisterShutdownFunc("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	serve := func(name string, server *http.Server) {
		logger.WithField("addr", server.Addr).Infof("Starting %s", name)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Errorf("%s failed", name)
			cancel()
		}
	}
	go serve("API server", httpServer)
	go serve("health server", healthServer)

	return shutdown.WaitForShutdown(ctx)
}

// fallbackKeys builds the environment level key store behind the router.
// The returned channel is closed when the sealed file watcher stops and is
// nil when nothing is watched.
func fallbackKeys(ctx context.Context, cfg config.KeysConfig, logger *observability.Logger) (keys.FallbackKeyStore, <-chan struct{}, error) {
	if !cfg.Sealed() {
		static := make(map[keys.Provider]string, len(cfg.StaticKeys))
		for provider, key := range cfg.StaticKeys {
			static[keys.Provider(provider)] = key
		}
		logger.WithField("providers", len(static)).Info("Using static fallback keys")
		return keys.NewStaticKeyStore(static), nil, nil
	}

	identity, err := keys.LoadIdentity(cfg.IdentityFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load key identity: %w", err)
	}
	sealed, err := keys.NewSealedKeyStore(cfg.SealedFile, identity,
		keys.WithCache(cfg.CacheSize, cfg.CacheTTL),
		keys.WithSealedLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sealed key file: %w", err)
	}
	var done <-chan struct{}
	if cfg.Watch {
		if done, err = sealed.Watch(ctx); err != nil {
			logger.WithError(err).Warn("Sealed key file watch disabled")
		}
	}
	logger.WithField("file", cfg.SealedFile).Info("Using sealed fallback keys")
	return sealed, done, nil
}

// activityLog keeps activity in the primary database when there is one
func activityLog(ctx context.Context, opened *storage.Opened, migrate bool, logger *observability.Logger) (search.ActivityLog, error) {
	if opened.DB == nil {
		return sources.NewMemoryActivityLog(), nil
	}
	activity := sources.NewSQLActivityLog(opened.DB)
	if migrate {
		if err := activity.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate activity log: %w", err)
		}
	}
	logger.Info("Activity log stored in postgres")
	return activity, nil
}
