package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/kalaghar/api/internal/handlers"
	"github.com/kalaghar/api/internal/platform/auth"
	"github.com/kalaghar/api/internal/platform/config"
	pfirestore "github.com/kalaghar/api/internal/platform/firestore"
	"github.com/kalaghar/api/internal/platform/idempotency"
	"github.com/kalaghar/api/internal/platform/jobs"
	"github.com/kalaghar/api/internal/platform/maps"
	"github.com/kalaghar/api/internal/platform/observability"
	"github.com/kalaghar/api/internal/platform/secrets"
	"github.com/kalaghar/api/internal/repositories"
	firestoreRepo "github.com/kalaghar/api/internal/repositories/firestore"
	"github.com/kalaghar/api/internal/repositories/memory"
	"github.com/kalaghar/api/internal/services"
)

const (
	orderCreateRateLimit  = 10
	orderCreateRateWindow = time.Minute
	shutdownTimeout       = 10 * time.Second
	firestoreDialTimeout  = 10 * time.Second
	orderTxAttempts       = 5
	readinessCheckTimeout = 3 * time.Second
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	environment, _, _ := config.Lookup("API_ENVIRONMENT")
	environment = strings.ToLower(strings.TrimSpace(environment))
	if environment == "" {
		environment = "local"
	}

	baseLogger, err := observability.NewLogger("kalaghar-api", environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	loadOpts := []config.Option{config.WithSecretResolver(fetcher)}
	if environment == "prod" || environment == "production" {
		loadOpts = append(loadOpts, config.WithRequiredSecrets("Maps.APIKey"))
	}
	cfg, err := config.Load(ctx, loadOpts...)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.Names()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry, cfg.Server.Environment, logger.Named("otel"))
	if err != nil {
		logger.Fatal("failed to initialise telemetry", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown error", zap.Error(err))
		}
	}()
	orderMetrics, err := observability.NewOrderMetrics(otel.GetMeterProvider().Meter("github.com/kalaghar/api/orders"))
	if err != nil {
		logger.Warn("order metrics unavailable", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(cfg, startedAt)

	events, eventChecks, closeEvents := buildEventPublisher(ctx, logger.Named("events"), cfg)
	defer closeEvents()

	var (
		registry         repositories.Registry
		idempotencyStore idempotency.Store
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		registry = memory.NewStore()
		idempotencyStore = idempotency.NewMemoryStore()
	default:
		firestoreProvider := pfirestore.NewProvider(cfg.Firestore,
			pfirestore.WithDialTimeout(firestoreDialTimeout),
			pfirestore.WithClientOptions(credentialsOptions(cfg)...),
		)
		reg, err := firestoreRepo.NewRegistry(firestoreProvider,
			firestoreRepo.WithTransactionOptions(
				pfirestore.WithTxAttempts(orderTxAttempts),
				pfirestore.WithTxTimeout(cfg.Server.RequestTimeout),
			),
			firestoreRepo.WithDependencyChecks(eventChecks...),
			firestoreRepo.WithHealthOptions(repositories.WithDependencyTimeout(readinessCheckTimeout)),
		)
		if err != nil {
			logger.Fatal("failed to initialise firestore repositories", zap.Error(err))
		}
		registry = reg
		idempotencyStore = idempotency.NewFirestoreStore(firestoreProvider)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
	}()

	systemService, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: registry.Health(),
		Clock:            time.Now,
		Build:            buildInfo,
	})
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	inventoryService, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: registry.Inventory(),
		Clock:     time.Now,
		Logger:    observability.EventLogger(logger.Named("inventory")),
	})
	if err != nil {
		logger.Fatal("failed to initialise inventory service", zap.Error(err))
	}

	pricingPolicy := services.PricingPolicy{
		TaxRateBasisPoints:    cfg.Pricing.TaxRateBasisPoints,
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		FlatShipping:          cfg.Pricing.FlatShipping,
	}
	if pricingPolicy.IsDefault() {
		logger.Warn("pricing: using legacy thresholds; free shipping applies to nearly every order",
			zap.Int64("freeShippingThresholdPaise", pricingPolicy.FreeShippingThreshold),
			zap.Int64("flatShippingPaise", pricingPolicy.FlatShipping))
	}
	pricing := services.NewPricingCalculator(pricingPolicy)

	distanceProvider := buildDistanceProvider(logger.Named("maps"), cfg)
	estimator := services.NewLogisticsEstimator(services.LogisticsEstimatorDeps{
		Provider: distanceProvider,
		Timeout:  cfg.Maps.Timeout,
		Metrics:  orderMetrics,
		Logger:   observability.EventLogger(logger.Named("logistics")),
	})

	carriers := services.DefaultCarrierRates()
	if path := strings.TrimSpace(cfg.Logistics.CarriersFile); path != "" {
		carriers, err = services.LoadCarrierRates(path)
		if err != nil {
			logger.Fatal("failed to load carrier rate card", zap.String("path", path), zap.Error(err))
		}
	}
	advisor, err := services.NewShipmentAdvisor(carriers, cfg.Logistics.MaxRecommendations)
	if err != nil {
		logger.Fatal("failed to initialise shipment advisor", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     registry.Orders(),
		Products:   registry.Products(),
		Users:      registry.Users(),
		Counters:   registry.Counters(),
		Inventory:  inventoryService,
		UnitOfWork: registry,
		Pricing:    &pricing,
		Logistics:  estimator,
		Advisor:    advisor,
		Events:     events,
		Metrics:    orderMetrics,
		Clock:      time.Now,
		Logger:     observability.EventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	authenticator := buildAuthenticator(ctx, logger.Named("auth"), cfg, registry.Users())
	oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg)

	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
	)

	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService,
		handlers.WithOrderIdempotency(idempotencyMiddleware),
		handlers.WithOrderCreateRateLimit(orderCreateRateLimit, orderCreateRateWindow, time.Now),
	)
	logisticsHandlers := handlers.NewLogisticsHandlers(authenticator, orderService)
	internalHandlers := handlers.NewInternalHandlers(orderService)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RequestLoggerMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
	}

	var healthOpts []handlers.HealthOption
	healthOpts = append(healthOpts, handlers.WithHealthBuildInfo(buildInfo))
	if systemService != nil {
		healthOpts = append(healthOpts, handlers.WithHealthSystemService(systemService))
	}

	opts := []handlers.Option{
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithLogisticsRoutes(logisticsHandlers.Routes),
		handlers.WithInternalRoutes(internalHandlers.Routes),
	}
	if oidcMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidcMiddleware))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("kalaghar api listening",
			zap.String("storage", cfg.Storage.Driver),
			zap.String("distanceProvider", providerName(distanceProvider)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) services.BuildInfo {
	version, _, _ := config.Lookup("API_BUILD_VERSION")
	if version = strings.TrimSpace(version); version == "" {
		version = "dev"
	}
	commit, _, _ := config.Lookup("API_BUILD_COMMIT_SHA")
	if commit = strings.TrimSpace(commit); commit == "" {
		commit = "unknown"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Server.Environment,
		StartedAt:   started,
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		value, _, _ := config.Lookup(key)
		return strings.TrimSpace(value)
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
	}
	project := lookup("API_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if path := lookup("API_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if credentials := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentials != "" && !strings.Contains(credentials, "://") {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func credentialsOptions(cfg config.Config) []option.ClientOption {
	path := strings.TrimSpace(cfg.Firebase.CredentialsFile)
	if path == "" || strings.Contains(path, "://") || cfg.Firestore.EmulatorHost != "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(path)}
}

func buildDistanceProvider(logger *zap.Logger, cfg config.Config) services.DistanceProvider {
	if key := strings.TrimSpace(cfg.Maps.APIKey); key != "" {
		provider, err := maps.NewGoogleDistanceProvider(key)
		if err == nil {
			return provider
		}
		logger.Warn("maps: google distance matrix unavailable, using straight-line estimates", zap.Error(err))
	} else {
		logger.Warn("maps: API key not configured, using straight-line estimates")
	}
	return maps.NewStaticDistanceProvider()
}

func providerName(provider services.DistanceProvider) string {
	if provider == nil {
		return "none"
	}
	return provider.Name()
}

// buildEventPublisher fans order events out to every configured transport. The returned
// checks feed readiness and the close func flushes the transports.
func buildEventPublisher(ctx context.Context, logger *zap.Logger, cfg config.Config) (services.OrderEventPublisher, []repositories.DependencyCheck, func()) {
	var (
		publishers []services.OrderEventPublisher
		checks     []repositories.DependencyCheck
		closers    []func()
	)

	if topicID := strings.TrimSpace(cfg.Events.PubSubTopic); topicID != "" {
		project := strings.TrimSpace(cfg.Firestore.ProjectID)
		client, err := pubsub.NewClient(ctx, project)
		if err != nil {
			logger.Error("pubsub client unavailable; order events will not reach pubsub", zap.Error(err))
		} else {
			topic := client.Topic(topicID)
			publisher, err := jobs.NewPubSubOrderEventPublisher(topic)
			if err != nil {
				logger.Error("pubsub publisher unavailable", zap.Error(err))
				_ = client.Close()
			} else {
				publishers = append(publishers, publisher)
				checks = append(checks, repositories.DependencyCheck{
					Name: "pubsub",
					Check: func(ctx context.Context) error {
						exists, err := topic.Exists(ctx)
						if err != nil {
							return err
						}
						if !exists {
							return fmt.Errorf("topic %q not found", topicID)
						}
						return nil
					},
				})
				closers = append(closers, func() {
					publisher.Stop()
					if err := client.Close(); err != nil {
						logger.Warn("pubsub close error", zap.Error(err))
					}
				})
			}
		}
	}

	if len(cfg.Events.KafkaBrokers) > 0 {
		publisher, err := jobs.NewKafkaOrderEventPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			logger.Error("kafka publisher unavailable", zap.Error(err))
		} else {
			publishers = append(publishers, publisher)
			brokers := cfg.Events.KafkaBrokers
			checks = append(checks, repositories.DependencyCheck{
				Name: "kafka",
				Check: func(ctx context.Context) error {
					conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
					if err != nil {
						return err
					}
					return conn.Close()
				},
			})
			closers = append(closers, func() {
				if err := publisher.Close(); err != nil {
					logger.Warn("kafka close error", zap.Error(err))
				}
			})
		}
	}

	closeAll := func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
	if len(publishers) == 0 {
		logger.Info("no order event transports configured")
		return nil, nil, closeAll
	}
	return jobs.NewFanOutPublisher(publishers...), checks, closeAll
}

func buildAuthenticator(ctx context.Context, logger *zap.Logger, cfg config.Config, users repositories.UserRepository) *auth.Authenticator {
	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		if cfg.Storage.Driver == config.StorageDriverMemory {
			logger.Warn("firebase auth unavailable; authenticated routes will reject requests", zap.Error(err))
			return auth.NewAuthenticator(nil)
		}
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	resolver := func(ctx context.Context, uid string) (string, error) {
		profile, err := users.FindByID(ctx, uid)
		if err != nil {
			return "", err
		}
		return string(profile.Role), nil
	}
	return auth.NewAuthenticator(verifier, auth.WithRoleResolver(resolver))
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL)
	validator := auth.NewOIDCValidator(cache, auth.WithOIDCLogger(logger))

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	return validator.RequireOIDC(audience, cfg.Security.OIDC.Issuers)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}
