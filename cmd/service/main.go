// Package main is the entry point for the print quote service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jsamuelsen/print-quote-service/internal/adapters/clients"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/clients/crm"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/http"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/handlers"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/mesh"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/storage"
	"github.com/jsamuelsen/print-quote-service/internal/app"
	"github.com/jsamuelsen/print-quote-service/internal/domain"
	"github.com/jsamuelsen/print-quote-service/internal/platform/config"
	"github.com/jsamuelsen/print-quote-service/internal/platform/logging"
	"github.com/jsamuelsen/print-quote-service/internal/platform/telemetry"
	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			Level:      cfg.Log.File.Level,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	slog.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("storage", cfg.Storage.Driver),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
		Insecure:     cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 5. Metrics registry and health registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := app.NewMetrics(registry)

	healthRegistry := ports.NewHealthRegistry()

	// 6. Quote storage
	repo, closeRepo, err := newRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	if checker, ok := repo.(ports.HealthChecker); ok {
		if err := healthRegistry.Register(checker); err != nil {
			return fmt.Errorf("registering storage health check: %w", err)
		}
	}

	// 7. CRM webhook (optional)
	var publisher ports.EventPublisher

	if cfg.Notifier.Enabled {
		notifier, err := newNotifier(cfg, logger)
		if err != nil {
			return err
		}

		// Events are best-effort, so a CRM outage only degrades readiness.
		if err := healthRegistry.Register(ports.Optional(notifier)); err != nil {
			return fmt.Errorf("registering notifier health check: %w", err)
		}

		publisher = notifier
	}

	// 8. Mesh analysis and upload staging
	if err := os.MkdirAll(cfg.Upload.TempDir, 0o750); err != nil {
		return fmt.Errorf("creating upload dir: %w", err)
	}

	artifacts := app.NewArtifactManager(logger, metrics)
	app.RegisterPendingCleanups(registry, artifacts)

	// Files older than the cleanup delay belong to quotes of a previous process.
	if removed, err := artifacts.SweepStale(ctx, cfg.Upload.TempDir, cfg.Upload.CleanupDelay); err != nil {
		logger.Warn("stale upload sweep failed", slog.Any("error", err))
	} else if removed > 0 {
		logger.Info("removed stale uploads", slog.Int("count", removed))
	}

	analyzer := app.NewAnalyzer(mesh.NewSTLLoader(), app.AnalyzerConfig{
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		MaxFileSize:       cfg.Upload.MaxFileSizeBytes(),
		Envelope: app.BuildEnvelope{
			MaxX: cfg.Printer.MaxX,
			MaxY: cfg.Printer.MaxY,
			MaxZ: cfg.Printer.MaxZ,
		},
	}, logger, metrics)

	// 9. Create quote service (application layer)
	quoteService := app.NewQuoteService(app.QuoteServiceConfig{
		Repository:   repo,
		Pricing:      domain.NewPricingEngine(pricingConfig(cfg)),
		Analyzer:     analyzer,
		Artifacts:    artifacts,
		Publisher:    publisher,
		Metrics:      metrics,
		Logger:       logger,
		Workers:      cfg.Pricing.Workers,
		MaxFiles:     cfg.Upload.MaxFiles,
		CleanupDelay: cfg.Upload.CleanupDelay,
	})

	// 10. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo, registry)
	quoteHandler := handlers.NewQuoteHandler(quoteService, cfg.Upload.TempDir)
	configHandler := handlers.NewConfigHandlerFromService(quoteService)

	// 11. Create HTTP server
	server := http.New(&cfg.Server, logger)

	// 12. Setup router with all middleware and routes
	routerCfg := http.NewDefaultRouterConfig(logger, cfg.App.Name, healthHandler, quoteHandler, configHandler)
	routerCfg.Timeout = cfg.Server.RequestTimeout
	http.SetupRouter(server.Engine(), routerCfg)

	// 13. Start server (non-blocking)
	serverErr, err := server.Start()
	if err != nil {
		return err
	}

	// 14. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, artifacts, serverErr, cfg.Server.ShutdownTimeout)
}

// newRepository builds the configured quote store. The returned func
// releases its connection.
func newRepository(ctx context.Context, cfg *config.Config) (ports.QuoteRepository, func(), error) {
	switch cfg.Storage.Driver {
	case "redis":
		client, err := storage.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}

		repo := storage.NewRedisRepository(client, cfg.Storage.KeyPrefix, cfg.Storage.Retention)

		return repo, func() { _ = client.Close() }, nil

	case "dynamodb":
		client, err := storage.NewDynamoDBClient(ctx, &cfg.DynamoDB)
		if err != nil {
			return nil, nil, fmt.Errorf("creating dynamodb client: %w", err)
		}

		return storage.NewDynamoRepository(client, cfg.DynamoDB.Table, cfg.Storage.Retention), func() {}, nil

	default:
		return storage.NewMemoryRepository(), func() {}, nil
	}
}

func newNotifier(cfg *config.Config, logger *slog.Logger) (*crm.Notifier, error) {
	client, err := clients.New(&clients.Config{
		BaseURL:     cfg.Notifier.BaseURL,
		ServiceName: cfg.Notifier.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating notifier client: %w", err)
	}

	return crm.NewNotifier(crm.Config{
		Client:     client,
		Path:       cfg.Notifier.Path,
		HealthPath: cfg.Notifier.HealthPath,
		Secret:     cfg.Notifier.Secret,
		Logger:     logger,
	}), nil
}

// pricingConfig maps the loaded configuration onto the engine's rate card.
func pricingConfig(cfg *config.Config) domain.PricingConfig {
	pc := domain.PricingConfig{
		Currency:              cfg.Pricing.Currency,
		MarkupPercentage:      cfg.Pricing.MarkupPercentage,
		MinimumOrder:          cfg.Pricing.MinimumOrder,
		EstimatedShippingDays: cfg.Pricing.EstimatedShippingDays,
		Rates: domain.MaterialRates{
			PA12Grey:  cfg.Materials.Rates.PA12Grey,
			PA12Black: cfg.Materials.Rates.PA12Black,
			PA12GB:    cfg.Materials.Rates.PA12GB,
		},
		Shipping: domain.ShippingTable{
			SmallCost:          cfg.Shipping.Costs.Small,
			MediumCost:         cfg.Shipping.Costs.Medium,
			LargeCost:          cfg.Shipping.Costs.Large,
			SmallThresholdCM3:  cfg.Shipping.Thresholds.Small,
			MediumThresholdCM3: cfg.Shipping.Thresholds.Medium,
		},
	}

	if len(cfg.Pricing.DiscountTiers) > 0 {
		tiers := make([]domain.DiscountTier, 0, len(cfg.Pricing.DiscountTiers))
		for _, t := range cfg.Pricing.DiscountTiers {
			tiers = append(tiers, domain.DiscountTier{MinQuantity: t.MinQuantity, Percent: t.Percent})
		}

		pc.Discount = domain.NewTieredDiscount(tiers)
	}

	return pc
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then drains the HTTP server and removes staged uploads still pending cleanup.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	artifacts *app.ArtifactManager,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	// Listen for OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		// Server error during startup or runtime
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	// Stop accepting new requests, drain in-flight
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := artifacts.Shutdown(shutdownCtx); err != nil {
		logger.Warn("upload cleanup incomplete", slog.Any("error", err))
	}

	logger.Info("shutdown complete")

	return nil
}
