package api

import (
	"encoding/json"
	"net/http"
	"time"

	"storefront-customizer-app/internal/application"
	"storefront-customizer-app/internal/domain"
	securitymiddleware "storefront-customizer-app/internal/infrastructure/middleware"
	"storefront-customizer-app/internal/infrastructure/shopify"
	"storefront-customizer-app/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	OAuth      *application.OAuthService
	Sessions   *application.SessionService
	Dispatcher *application.WebhookDispatcher
	Dashboard  *application.DashboardService
	Verifier   *shopify.WebhookVerifier
	Events     ports.WebhookLogRepository
	// Deduper may be nil, in which case redeliveries are processed again.
	Deduper ports.WebhookDeduper

	// APIKey and APISecret verify App Bridge session tokens on /api.
	APIKey    string
	APISecret string

	DedupeTTL      time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string
	SwaggerFile    string
	Logger         zerolog.Logger
}

// NewRouter builds the chi router with every route of the app.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if d.SwaggerFile == "" {
		d.SwaggerFile = "./docs/swagger.json"
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(securitymiddleware.Metrics)
	r.Use(securitymiddleware.SecurityHeadersMiddleware())
	r.Use(securitymiddleware.InputValidationMiddleware(logger))
	r.Use(securitymiddleware.AuditLoggingMiddleware(logger))
	r.Use(securitymiddleware.BodyLimit(d.MaxBodyBytes))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Get("/ready", readyHandler(d.Sessions, logger))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, d.SwaggerFile)
	})

	r.Get("/auth/install", installHandler(d.OAuth, logger))
	r.Get("/auth/callback", callbackHandler(d.OAuth, logger))

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/orders", webhookHandler(d, domain.TopicOrdersCreate))
		r.Post("/customers/data_request", webhookHandler(d, domain.TopicCustomersDataRequest))
		r.Post("/customers/redact", webhookHandler(d, domain.TopicCustomersRedact))
		r.Post("/shop/redact", webhookHandler(d, domain.TopicShopRedact))
		r.Post("/{topic}", webhookHandler(d, ""))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(securitymiddleware.SessionTokenMiddleware(d.APIKey, d.APISecret, logger))
		r.Post("/verify", verifyHandler())
		r.Post("/settings/list", settingsListHandler(d.Dashboard, logger))
		r.Post("/settings/add", settingsAddHandler(d.Dashboard, logger))
		r.Post("/orders/list", ordersListHandler(d.Dashboard, logger))
		r.Post("/orders/items", orderItemsHandler(d.Dashboard, logger))
		r.Get("/debug/webhooks", debugWebhooksHandler(d.Dashboard, logger))
	})

	return r
}

func readyHandler(sessions *application.SessionService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Ping(r.Context()); err != nil {
			logger.Warn().Err(err).Msg("Readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
