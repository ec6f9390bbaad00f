package application

import (
	"context"
	"fmt"
	"strings"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/ports"

	"github.com/rs/zerolog"
)

// WebhookManager keeps the shop's webhook subscriptions pointing at this app
// without creating duplicates.
type WebhookManager struct {
	client  ports.ShopifyClient
	gateway ports.AdminGateway
	appURL  string
	logger  zerolog.Logger
}

func NewWebhookManager(client ports.ShopifyClient, gateway ports.AdminGateway, appURL string, logger zerolog.Logger) *WebhookManager {
	return &WebhookManager{
		client:  client,
		gateway: gateway,
		appURL:  appURL,
		logger:  logger,
	}
}

// OrderTarget is the REST subscription for new orders.
func (m *WebhookManager) OrderTarget() domain.WebhookTarget {
	return domain.WebhookTarget{Topic: domain.TopicOrdersCreate, Address: m.appURL + "/webhooks/orders"}
}

// ComplianceTargets are the mandatory privacy subscriptions, in GraphQL topic form.
func (m *WebhookManager) ComplianceTargets() []domain.WebhookTarget {
	return []domain.WebhookTarget{
		{Topic: "CUSTOMERS_DATA_REQUEST", Address: m.appURL + "/webhooks/customers/data_request"},
		{Topic: "CUSTOMERS_REDACT", Address: m.appURL + "/webhooks/customers/redact"},
		{Topic: "SHOP_REDACT", Address: m.appURL + "/webhooks/shop/redact"},
	}
}

// EnsureRESTSubscription reconciles target through the REST webhooks resource.
func (m *WebhookManager) EnsureRESTSubscription(ctx context.Context, shop, token string, target domain.WebhookTarget) (domain.SubscriptionAction, error) {
	existing, err := m.client.ListWebhooks(ctx, shop, token)
	if err != nil {
		return "", fmt.Errorf("failed to list webhooks: %w", err)
	}

	action, id := domain.PlanSubscription(existing, target)
	switch action {
	case domain.SubscriptionUpdated:
		err = m.client.UpdateWebhook(ctx, shop, token, id, target.Address)
	case domain.SubscriptionCreated:
		err = m.client.CreateWebhook(ctx, shop, token, target.Topic, target.Address)
	}
	if err != nil {
		return "", err
	}
	m.logAction(shop, target, action)
	return action, nil
}

const listSubscriptionsQuery = `
query webhookSubscriptions {
  webhookSubscriptions(first: 50) {
    edges {
      node {
        id
        topic
        endpoint {
          __typename
          ... on WebhookHttpEndpoint {
            callbackUrl
          }
        }
      }
    }
  }
}`

const createSubscriptionMutation = `
mutation webhookSubscriptionCreate($topic: WebhookSubscriptionTopic!, $webhookSubscription: WebhookSubscriptionInput!) {
  webhookSubscriptionCreate(topic: $topic, webhookSubscription: $webhookSubscription) {
    webhookSubscription { id }
    userErrors { field message }
  }
}`

const updateSubscriptionMutation = `
mutation webhookSubscriptionUpdate($id: ID!, $webhookSubscription: WebhookSubscriptionInput!) {
  webhookSubscriptionUpdate(id: $id, webhookSubscription: $webhookSubscription) {
    webhookSubscription { id }
    userErrors { field message }
  }
}`

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func userErrorsErr(op string, errs []userError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return fmt.Errorf("%s: %s", op, strings.Join(msgs, "; "))
}

// ListGraphQLSubscriptions returns up to 50 subscriptions of the shop.
func (m *WebhookManager) ListGraphQLSubscriptions(ctx context.Context, shop, token string) ([]domain.WebhookSubscription, error) {
	var out struct {
		WebhookSubscriptions struct {
			Edges []struct {
				Node struct {
					ID       string `json:"id"`
					Topic    string `json:"topic"`
					Endpoint struct {
						CallbackURL string `json:"callbackUrl"`
					} `json:"endpoint"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"webhookSubscriptions"`
	}
	if err := m.gateway.GraphQL(ctx, shop, token, listSubscriptionsQuery, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list webhook subscriptions: %w", err)
	}

	subs := make([]domain.WebhookSubscription, 0, len(out.WebhookSubscriptions.Edges))
	for _, e := range out.WebhookSubscriptions.Edges {
		subs = append(subs, domain.WebhookSubscription{
			ID:      e.Node.ID,
			Topic:   e.Node.Topic,
			Address: e.Node.Endpoint.CallbackURL,
		})
	}
	return subs, nil
}

// EnsureGraphQLSubscription reconciles target through the GraphQL API.
func (m *WebhookManager) EnsureGraphQLSubscription(ctx context.Context, shop, token string, target domain.WebhookTarget) (domain.SubscriptionAction, error) {
	existing, err := m.ListGraphQLSubscriptions(ctx, shop, token)
	if err != nil {
		return "", err
	}

	action, id := domain.PlanSubscription(existing, target)
	input := map[string]any{"callbackUrl": target.Address, "format": "JSON"}
	switch action {
	case domain.SubscriptionCreated:
		var out struct {
			Payload struct {
				UserErrors []userError `json:"userErrors"`
			} `json:"webhookSubscriptionCreate"`
		}
		vars := map[string]any{"topic": target.Topic, "webhookSubscription": input}
		if err := m.gateway.GraphQL(ctx, shop, token, createSubscriptionMutation, vars, &out); err != nil {
			return "", fmt.Errorf("failed to create %s subscription: %w", target.Topic, err)
		}
		if err := userErrorsErr("webhookSubscriptionCreate", out.Payload.UserErrors); err != nil {
			return "", err
		}
	case domain.SubscriptionUpdated:
		var out struct {
			Payload struct {
				UserErrors []userError `json:"userErrors"`
			} `json:"webhookSubscriptionUpdate"`
		}
		vars := map[string]any{"id": id, "webhookSubscription": input}
		if err := m.gateway.GraphQL(ctx, shop, token, updateSubscriptionMutation, vars, &out); err != nil {
			return "", fmt.Errorf("failed to update %s subscription: %w", target.Topic, err)
		}
		if err := userErrorsErr("webhookSubscriptionUpdate", out.Payload.UserErrors); err != nil {
			return "", err
		}
	}
	m.logAction(shop, target, action)
	return action, nil
}

func (m *WebhookManager) logAction(shop string, target domain.WebhookTarget, action domain.SubscriptionAction) {
	m.logger.Info().
		Str("shop", shop).
		Str("topic", target.Topic).
		Str("address", target.Address).
		Str("action", string(action)).
		Msg("Webhook subscription reconciled")
}
