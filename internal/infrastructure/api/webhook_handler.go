package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/infrastructure/metrics"

	"github.com/go-chi/chi/v5"
)

const (
	headerHMAC      = "X-Shopify-Hmac-Sha256"
	headerShop      = "X-Shopify-Shop-Domain"
	headerTopic     = "X-Shopify-Topic"
	headerWebhookID = "X-Shopify-Webhook-Id"
)

// webhookHandler verifies and dispatches one delivery. routeTopic is used
// when the platform omits the topic header; empty means take it from the
// {topic} path segment.
func webhookHandler(d Deps, routeTopic string) http.HandlerFunc {
	logger := d.Logger
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		signature := r.Header.Get(headerHMAC)
		shop := r.Header.Get(headerShop)
		if signature == "" || shop == "" {
			logger.Warn().Str("path", r.URL.Path).Msg("Webhook without signature or shop header")
			metrics.WebhooksTotal.WithLabelValues("unknown", "unauthorized").Inc()
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			// An oversized body cannot be verified; anything else is retryable.
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logger.Warn().Int64("limit", tooLarge.Limit).Str("shop", shop).Msg("Webhook payload over size limit")
				metrics.WebhooksTotal.WithLabelValues("unknown", "unauthorized").Inc()
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			logger.Warn().Err(err).Str("shop", shop).Msg("Failed to read webhook payload")
			http.Error(w, "Failed to read request body", http.StatusInternalServerError)
			return
		}
		defer r.Body.Close()

		if err := d.Verifier.Verify(payload, signature); err != nil {
			logger.Warn().Err(err).Str("shop", shop).Msg("Webhook signature verification failed")
			metrics.WebhooksTotal.WithLabelValues("unknown", "unauthorized").Inc()
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		topic := r.Header.Get(headerTopic)
		if topic == "" {
			topic = routeTopic
		}
		if topic == "" {
			topic = domain.TopicFromPath(chi.URLParam(r, "topic"))
		}

		event := &domain.WebhookEvent{
			ID:         r.Header.Get(headerWebhookID),
			Topic:      topic,
			Shop:       shop,
			Payload:    payload,
			Verified:   true,
			ReceivedAt: time.Now().UTC(),
		}
		log := logger.With().Str("topic", topic).Str("shop", shop).Str("webhookId", event.ID).Logger()

		claimed := false
		if d.Deduper != nil && event.ID != "" {
			fresh, err := d.Deduper.Claim(ctx, event.ID, d.DedupeTTL)
			switch {
			case err != nil:
				log.Warn().Err(err).Msg("Webhook dedup unavailable, processing anyway")
			case !fresh:
				log.Info().Msg("Duplicate webhook delivery acknowledged")
				metrics.WebhooksTotal.WithLabelValues(topic, "duplicate").Inc()
				writeJSON(w, http.StatusOK, map[string]bool{"received": true})
				return
			default:
				claimed = true
			}
		}

		if d.Events != nil {
			if err := d.Events.LogWebhook(ctx, event); err != nil {
				log.Warn().Err(err).Msg("Failed to log webhook event")
			}
		}

		if err := d.Dispatcher.Dispatch(ctx, event); err != nil {
			if claimed {
				if rerr := d.Deduper.Release(ctx, event.ID); rerr != nil {
					log.Warn().Err(rerr).Msg("Failed to release webhook claim")
				}
			}
			metrics.WebhooksTotal.WithLabelValues(topic, "error").Inc()
			http.Error(w, "Webhook processing failed", http.StatusInternalServerError)
			return
		}

		metrics.WebhooksTotal.WithLabelValues(topic, "ok").Inc()
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}
