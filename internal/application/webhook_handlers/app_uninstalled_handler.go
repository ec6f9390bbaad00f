package webhook_handlers

import (
	"context"
	"encoding/json"

	"storefront-customizer-app/internal/domain"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler handles app uninstalled webhook events
type AppUninstalledHandler struct {
	sessions SessionDeleter
	logger   zerolog.Logger
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(sessions SessionDeleter, logger zerolog.Logger) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == domain.TopicAppUninstalled
}

// Handle drops the shop's session; local orders stay until shop/redact.
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	shopDomain := event.Shop
	if shopDomain == "" {
		var shopData struct {
			MyshopifyDomain string `json:"myshopify_domain"`
		}
		if err := json.Unmarshal(event.Payload, &shopData); err == nil {
			shopDomain = shopData.MyshopifyDomain
		}
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shopDomain).
		Msg("Processing app uninstalled webhook event")

	if err := h.sessions.DeleteSession(ctx, shopDomain); err != nil {
		return err
	}
	h.logger.Info().Str("shop", shopDomain).Msg("Session deleted after uninstall")
	return nil
}
