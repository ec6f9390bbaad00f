package ports

import (
	"context"
	"net/url"

	"storefront-customizer-app/internal/domain"
)

// ShopifyClient covers the typed Admin REST resources the app touches.
type ShopifyClient interface {
	GetShop(ctx context.Context, shop string, accessToken string) (*domain.ShopInfo, error)

	ListWebhooks(ctx context.Context, shop string, accessToken string) ([]domain.WebhookSubscription, error)
	CreateWebhook(ctx context.Context, shop string, accessToken string, topic string, address string) error
	UpdateWebhook(ctx context.Context, shop string, accessToken string, webhookID string, address string) error

	ListScriptTagSources(ctx context.Context, shop string, accessToken string) ([]string, error)
	CreateScriptTag(ctx context.Context, shop string, accessToken string, src string) error
}

// AdminGateway issues raw authenticated REST and GraphQL calls.
type AdminGateway interface {
	REST(ctx context.Context, shop, accessToken, method, path string, body any, out any) error
	GraphQL(ctx context.Context, shop, accessToken, query string, variables map[string]any, out any) error
}

// TokenProber checks whether an access token is still accepted.
// A non-nil error means validity could not be determined.
type TokenProber interface {
	Probe(ctx context.Context, shop string, accessToken string) (domain.ProbeResult, error)
}

// OAuthClient is the platform side of the install handshake.
type OAuthClient interface {
	AuthorizeURL(shop string, state string) string
	VerifyCallback(query url.Values) bool
	ExchangeToken(ctx context.Context, shop string, code string) (*domain.AccessToken, error)
}
