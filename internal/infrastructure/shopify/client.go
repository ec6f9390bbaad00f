package shopify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

type client struct {
	app        goshopify.App
	apiVersion string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a typed REST client adapter pinned to apiVersion.
func NewClient(apiKey, apiSecret, apiVersion string, httpClient *http.Client, logger zerolog.Logger) ports.ShopifyClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{
		app: goshopify.App{
			ApiKey:    apiKey,
			ApiSecret: apiSecret,
		},
		apiVersion: apiVersion,
		httpClient: httpClient,
		logger:     logger,
	}
}

// createClient is a helper to create a goshopify client
func (c *client) createClient(shopDomain string, accessToken string) (*goshopify.Client, error) {
	client, err := goshopify.NewClient(c.app, shopDomain, accessToken,
		goshopify.WithVersion(c.apiVersion),
		goshopify.WithHTTPClient(c.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// Shop API

func (c *client) GetShop(ctx context.Context, shopDomain string, accessToken string) (*domain.ShopInfo, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	shop, err := client.Shop.Get(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return &domain.ShopInfo{
		ID:              shop.Id,
		Name:            shop.Name,
		ShopOwner:       shop.ShopOwner,
		Email:           shop.Email,
		CustomerEmail:   shop.CustomerEmail,
		Phone:           shop.Phone,
		Domain:          shop.Domain,
		MyshopifyDomain: shop.MyshopifyDomain,
	}, nil
}

// Webhook API

func (c *client) ListWebhooks(ctx context.Context, shopDomain string, accessToken string) ([]domain.WebhookSubscription, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	webhooks, err := client.Webhook.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	subs := make([]domain.WebhookSubscription, 0, len(webhooks))
	for _, w := range webhooks {
		subs = append(subs, domain.WebhookSubscription{
			ID:      strconv.FormatUint(w.Id, 10),
			Topic:   w.Topic,
			Address: w.Address,
		})
	}
	return subs, nil
}

func (c *client) CreateWebhook(ctx context.Context, shopDomain string, accessToken string, topic string, address string) error {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return err
	}
	webhook := goshopify.Webhook{
		Topic:   topic,
		Address: address,
		Format:  "json",
	}
	if _, err := client.Webhook.Create(ctx, webhook); err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

func (c *client) UpdateWebhook(ctx context.Context, shopDomain string, accessToken string, webhookID string, address string) error {
	id, err := strconv.ParseUint(webhookID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid webhook id %q: %w", webhookID, err)
	}
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return err
	}
	// First get the webhook to preserve other fields
	existing, err := client.Webhook.Get(ctx, id, nil)
	if err != nil {
		return fmt.Errorf("failed to get webhook for update: %w", err)
	}
	existing.Address = address
	if _, err := client.Webhook.Update(ctx, *existing); err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return nil
}

// ScriptTag API

func (c *client) ListScriptTagSources(ctx context.Context, shopDomain string, accessToken string) ([]string, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	tags, err := client.ScriptTag.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list script tags: %w", err)
	}
	srcs := make([]string, 0, len(tags))
	for _, t := range tags {
		srcs = append(srcs, t.Src)
	}
	return srcs, nil
}

func (c *client) CreateScriptTag(ctx context.Context, shopDomain string, accessToken string, src string) error {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return err
	}
	tag := goshopify.ScriptTag{
		Event: "onload",
		Src:   src,
	}
	if _, err := client.ScriptTag.Create(ctx, tag); err != nil {
		return fmt.Errorf("failed to create script tag: %w", err)
	}
	c.logger.Info().Str("shop", shopDomain).Str("src", src).Msg("Script tag created")
	return nil
}
