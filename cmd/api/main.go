package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-customizer-app/internal/application"
	"storefront-customizer-app/internal/application/webhook_handlers"
	"storefront-customizer-app/internal/config"
	apiinfra "storefront-customizer-app/internal/infrastructure/api"
	"storefront-customizer-app/internal/infrastructure/cache"
	"storefront-customizer-app/internal/infrastructure/metrics"
	"storefront-customizer-app/internal/infrastructure/queue"
	"storefront-customizer-app/internal/infrastructure/repository"
	shopifyinfra "storefront-customizer-app/internal/infrastructure/shopify"
	"storefront-customizer-app/internal/infrastructure/storeapi"
	"storefront-customizer-app/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// sharedCache backs both the probe cache and webhook dedup.
type sharedCache interface {
	ports.ProbeCache
	ports.WebhookDeduper
}

// stores groups the persistence ports the app needs.
type stores struct {
	sessions ports.SessionRepository
	orders   ports.OrderRepository
	states   ports.OAuthStateRepository
	events   ports.WebhookLogRepository
	close    func()
}

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg(".env file not found")
	}

	cfg := config.Parse()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to open stores")
	}
	defer st.close()

	var shared sharedCache = cache.NewMemoryCache()
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "customizer:")
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rc.Close()
		shared = rc
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis for probe cache and webhook dedup")
	}

	// The API version is resolved once and pinned for the process lifetime.
	apiVersion := shopifyinfra.ResolveAPIVersion(cfg.ShopifyAPIVersion, time.Now())
	logger.Info().Str("apiVersion", apiVersion).Msg("Shopify Admin API version pinned")

	httpClient := &http.Client{Timeout: 30 * time.Second}
	app := goshopify.App{ApiKey: cfg.ShopifyAPIKey, ApiSecret: cfg.ShopifyAPISecret}
	gateway := shopifyinfra.NewAdminGateway(app, httpClient, apiVersion, shopifyinfra.DefaultRetries, logger)
	shopifyClient := shopifyinfra.NewClient(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, apiVersion, httpClient, logger)
	oauthClient := shopifyinfra.NewOAuthClient(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, cfg.ShopifyScopes, cfg.AppURL+"/auth/callback", httpClient)
	tokenManager := shopifyinfra.NewTokenManager(gateway, logger)
	storeAPI := storeapi.NewClient(cfg.StoreAPIEndpoint, cfg.StoreAPIToken, httpClient, logger)

	// Background queues
	provisionQueue := queue.New(queue.Options{
		Name:        "provision",
		Size:        cfg.ProvisionQueueSize,
		Workers:     cfg.ProvisionWorkers,
		MaxAttempts: cfg.ProvisionMaxAttempts,
		Backoff:     queue.ExponentialBackoff(cfg.ProvisionBackoff, time.Minute),
	}, logger)
	enrichQueue := queue.New(queue.Options{
		Name:        "enrich",
		Size:        cfg.EnrichQueueSize,
		Workers:     cfg.EnrichWorkers,
		MaxAttempts: cfg.EnrichMaxAttempts,
		Backoff:     queue.ExponentialBackoff(2*time.Second, time.Minute),
	}, logger)
	// Workers outlive the signal context so accepted tasks finish during shutdown.
	workCtx, stopWork := context.WithCancel(context.Background())
	defer stopWork()
	provisionQueue.Start(workCtx)
	enrichQueue.Start(workCtx)

	// Initialize application services
	sessions := application.NewSessionService(st.sessions, tokenManager, shared, cfg.ProbeCacheTTL, logger)
	webhookManager := application.NewWebhookManager(shopifyClient, gateway, cfg.AppURL, logger)
	provisioner := application.NewProvisioner(
		sessions,
		shopifyClient,
		gateway,
		storeAPI,
		webhookManager,
		provisionQueue,
		cfg.AppURL,
		cfg.ProvisionMaxAttempts,
		logger,
	)
	oauth := application.NewOAuthService(oauthClient, st.states, sessions, provisioner, cfg.ShopifyScopes, cfg.AppURL, logger)
	ingestor := application.NewOrderIngestor(
		st.orders,
		sessions,
		shopifyClient,
		storeAPI,
		enrichQueue,
		cfg.OrderTimeout,
		cfg.ItemTimeout,
		cfg.EnrichMaxAttempts,
		logger,
	)
	if _, err := ingestor.Resume(ctx); err != nil {
		logger.Warn().Err(err).Msg("Could not resume all unfinished orders")
	}
	dashboard := application.NewDashboardService(sessions, shopifyClient, storeAPI, webhookManager, logger)

	// Initialize webhook dispatcher and register handlers
	webhookDispatcher := application.NewWebhookDispatcher(logger)
	webhookDispatcher.RegisterHandler(webhook_handlers.NewOrderHandler(ingestor, logger))
	webhookDispatcher.RegisterHandler(webhook_handlers.NewComplianceHandler(st.orders, sessions, logger))
	webhookDispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(sessions, logger))

	router := apiinfra.NewRouter(apiinfra.Deps{
		OAuth:          oauth,
		Sessions:       sessions,
		Dispatcher:     webhookDispatcher,
		Dashboard:      dashboard,
		Verifier:       shopifyinfra.NewWebhookVerifier(cfg.ShopifyAPISecret),
		Events:         st.events,
		Deduper:        shared,
		APIKey:         cfg.ShopifyAPIKey,
		APISecret:      cfg.ShopifyAPISecret,
		DedupeTTL:      cfg.WebhookDedupeTTL,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Starting API server")
		logger.Info().Msg("Swagger documentation available at http://localhost:" + cfg.Port + "/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	for _, q := range []*queue.Queue{provisionQueue, enrichQueue} {
		if err := q.Close(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Queue did not drain before shutdown")
		}
	}
	stopWork()
}

// openStores connects the configured persistence backend. The postgres
// driver keeps sessions and orders in postgres and the event log and OAuth
// states in MongoDB.
func openStores(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*stores, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn().Msg("Using in-memory stores; data is lost on restart")
		mem := repository.NewMemoryStore()
		return &stores{sessions: mem, orders: mem, states: mem, events: mem, close: func() {}}, nil
	}

	db, err := repository.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// Connect to MongoDB
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		db.Close()
		return nil, err
	}
	mongoRepo := repository.NewMongoRepository(client.Database(cfg.MongoDatabase))
	if err := mongoRepo.EnsureIndexes(ctx); err != nil {
		db.Close()
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info().Str("mongoDatabase", cfg.MongoDatabase).Msg("Connected to PostgreSQL and MongoDB")
	return &stores{
		sessions: repository.NewSessionRepository(db),
		orders:   repository.NewOrderRepository(db),
		states:   mongoRepo,
		events:   mongoRepo,
		close: func() {
			db.Close()
			_ = client.Disconnect(context.Background())
		},
	}, nil
}
