package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/ports"

	"github.com/rs/zerolog"
)

// Provision task names.
const (
	TaskRegisterMerchant     = "register-merchant"
	TaskScriptTag            = "script-tag"
	TaskMetafieldDefinitions = "metafield-definitions"
	TaskOrderWebhook         = "order-webhook"
	TaskComplianceWebhooks   = "compliance-webhooks"
)

// Provisioner sets up a freshly installed shop. Every step is an
// independent queued task so one failing step never blocks the others.
type Provisioner struct {
	sessions    *SessionService
	shopify     ports.ShopifyClient
	gateway     ports.AdminGateway
	store       ports.StoreAPI
	webhooks    *WebhookManager
	queue       ports.TaskQueue
	appURL      string
	maxAttempts int
	logger      zerolog.Logger
}

func NewProvisioner(
	sessions *SessionService,
	shopify ports.ShopifyClient,
	gateway ports.AdminGateway,
	store ports.StoreAPI,
	webhooks *WebhookManager,
	queue ports.TaskQueue,
	appURL string,
	maxAttempts int,
	logger zerolog.Logger,
) *Provisioner {
	return &Provisioner{
		sessions:    sessions,
		shopify:     shopify,
		gateway:     gateway,
		store:       store,
		webhooks:    webhooks,
		queue:       queue,
		appURL:      appURL,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Enqueue submits all provisioning steps for shop. Steps that could not be
// queued are reported together; the rest still run.
func (p *Provisioner) Enqueue(ctx context.Context, shop string) error {
	steps := []struct {
		name string
		run  func(ctx context.Context, shop, token string) error
	}{
		{TaskRegisterMerchant, p.registerMerchant},
		{TaskScriptTag, p.ensureScriptTag},
		{TaskMetafieldDefinitions, p.ensureMetafieldDefinitions},
		{TaskOrderWebhook, p.ensureOrderWebhook},
		{TaskComplianceWebhooks, p.ensureComplianceWebhooks},
	}

	var errs []error
	for _, step := range steps {
		id, err := p.queue.Submit(domain.Task{
			Name:        step.name,
			Shop:        shop,
			MaxAttempts: p.maxAttempts,
			Run: func(ctx context.Context) error {
				return p.withSession(ctx, shop, step.run)
			},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to enqueue %s: %w", step.name, err))
			continue
		}
		p.logger.Debug().Str("shop", shop).Str("task", step.name).Str("taskId", id).Msg("Provisioning task queued")
	}
	p.logger.Info().Str("shop", shop).Int("failed", len(errs)).Msg("Post-install provisioning enqueued")
	return errors.Join(errs...)
}

// withSession loads the stored token without probing it; the token was
// just issued and the steps themselves surface a revoked one.
func (p *Provisioner) withSession(ctx context.Context, shop string, run func(ctx context.Context, shop, token string) error) error {
	session, err := p.sessions.GetSession(ctx, shop)
	if err != nil {
		return err
	}
	if session == nil || session.AccessToken == "" {
		return domain.Permanent(fmt.Errorf("%w for %s", ErrNoSession, shop))
	}
	return run(ctx, shop, session.AccessToken)
}

func (p *Provisioner) registerMerchant(ctx context.Context, shop, token string) error {
	info, err := p.shopify.GetShop(ctx, shop, token)
	if err != nil {
		return fmt.Errorf("failed to get shop info: %w", err)
	}
	if err := p.store.RegisterMerchant(ctx, info.Registration()); err != nil {
		return fmt.Errorf("failed to register merchant: %w", err)
	}
	p.logger.Info().Str("shop", shop).Str("storeHash", info.StoreHash()).Msg("Merchant registered")
	return nil
}

// ScriptTagSrc is the storefront loader URL for one shop.
func (p *Provisioner) ScriptTagSrc(shop, storeHash string) string {
	q := url.Values{}
	q.Set("shop_domain", shop)
	q.Set("shop_id", storeHash)
	return p.appURL + "/scripts/config.v1.js?" + q.Encode()
}

func (p *Provisioner) ensureScriptTag(ctx context.Context, shop, token string) error {
	info, err := p.shopify.GetShop(ctx, shop, token)
	if err != nil {
		return fmt.Errorf("failed to get shop info: %w", err)
	}
	src := p.ScriptTagSrc(shop, info.StoreHash())

	existing, err := p.shopify.ListScriptTagSources(ctx, shop, token)
	if err != nil {
		return fmt.Errorf("failed to list script tags: %w", err)
	}
	for _, s := range existing {
		if s == src {
			p.logger.Info().Str("shop", shop).Msg("Script tag already installed")
			return nil
		}
	}
	if err := p.shopify.CreateScriptTag(ctx, shop, token, src); err != nil {
		return fmt.Errorf("failed to create script tag: %w", err)
	}
	p.logger.Info().Str("shop", shop).Str("src", src).Msg("Script tag installed")
	return nil
}

const metafieldDefinitionMutation = `
mutation metafieldDefinitionCreate($definition: MetafieldDefinitionInput!) {
  metafieldDefinitionCreate(definition: $definition) {
    createdDefinition { id }
    userErrors { field message code }
  }
}`

func (p *Provisioner) ensureMetafieldDefinitions(ctx context.Context, shop, token string) error {
	definition := map[string]any{
		"name":      "Customizer Config",
		"namespace": "custom",
		"key":       "krcConfig",
		"type":      "single_line_text_field",
		"ownerType": "PRODUCT",
	}
	var out struct {
		Payload struct {
			CreatedDefinition *struct {
				ID string `json:"id"`
			} `json:"createdDefinition"`
			UserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
				Code    string   `json:"code"`
			} `json:"userErrors"`
		} `json:"metafieldDefinitionCreate"`
	}
	vars := map[string]any{"definition": definition}
	if err := p.gateway.GraphQL(ctx, shop, token, metafieldDefinitionMutation, vars, &out); err != nil {
		return fmt.Errorf("failed to create metafield definition: %w", err)
	}

	var msgs []string
	for _, ue := range out.Payload.UserErrors {
		if ue.Code == "TAKEN" {
			p.logger.Info().Str("shop", shop).Msg("Metafield definition already exists")
			return nil
		}
		msgs = append(msgs, ue.Message)
	}
	if len(msgs) > 0 {
		return domain.Permanent(fmt.Errorf("metafieldDefinitionCreate: %s", strings.Join(msgs, "; ")))
	}
	p.logger.Info().Str("shop", shop).Msg("Metafield definition created")
	return nil
}

func (p *Provisioner) ensureOrderWebhook(ctx context.Context, shop, token string) error {
	_, err := p.webhooks.EnsureRESTSubscription(ctx, shop, token, p.webhooks.OrderTarget())
	return err
}

func (p *Provisioner) ensureComplianceWebhooks(ctx context.Context, shop, token string) error {
	var errs []error
	for _, target := range p.webhooks.ComplianceTargets() {
		if _, err := p.webhooks.EnsureGraphQLSubscription(ctx, shop, token, target); err != nil {
			p.logger.Error().Err(err).Str("shop", shop).Str("topic", target.Topic).Msg("Failed to ensure compliance webhook")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
