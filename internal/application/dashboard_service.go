package application

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/ports"

	"github.com/rs/zerolog"
)

var (
	emptyOrderList  = json.RawMessage(`{"orders":[],"pagination":{}}`)
	emptyOrderItems = json.RawMessage(`[]`)
)

// WebhookReport is the debug view of a shop's subscriptions.
type WebhookReport struct {
	Shop          string                       `json:"shop"`
	TotalWebhooks int                          `json:"total_webhooks"`
	GDPRWebhooks  []domain.WebhookSubscription `json:"gdpr_webhooks"`
	AllWebhooks   []domain.WebhookSubscription `json:"all_webhooks"`
}

// DashboardService backs the embedded admin pages.
type DashboardService struct {
	sessions *SessionService
	shopify  ports.ShopifyClient
	store    ports.StoreAPI
	webhooks *WebhookManager
	logger   zerolog.Logger
}

func NewDashboardService(
	sessions *SessionService,
	shopify ports.ShopifyClient,
	store ports.StoreAPI,
	webhooks *WebhookManager,
	logger zerolog.Logger,
) *DashboardService {
	return &DashboardService{
		sessions: sessions,
		shopify:  shopify,
		store:    store,
		webhooks: webhooks,
		logger:   logger,
	}
}

func (s *DashboardService) requireSession(ctx context.Context, shop string) (*domain.Session, error) {
	session, err := s.sessions.GetValidSession(ctx, shop)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	return session, nil
}

func (s *DashboardService) storeHash(ctx context.Context, session *domain.Session) (string, error) {
	info, err := s.shopify.GetShop(ctx, session.Shop, session.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to get shop info: %w", err)
	}
	return info.StoreHash(), nil
}

// GetSettings never fails on the store API side: defaults are served
// instead.
func (s *DashboardService) GetSettings(ctx context.Context, shop string) (domain.Settings, error) {
	session, err := s.requireSession(ctx, shop)
	if err != nil {
		return domain.Settings{}, err
	}

	storeHash, err := s.storeHash(ctx, session)
	if err != nil {
		s.logger.Warn().Err(err).Str("shop", shop).Msg("Serving default settings")
		return domain.DefaultSettings(), nil
	}
	settings, err := s.store.GetSettings(ctx, storeHash)
	if err != nil {
		s.logger.Warn().Err(err).Str("shop", shop).Msg("Serving default settings")
		return domain.DefaultSettings(), nil
	}
	if settings == nil {
		return domain.DefaultSettings(), nil
	}
	return *settings, nil
}

func (s *DashboardService) SaveSettings(ctx context.Context, shop string, settings domain.Settings) (*domain.Settings, error) {
	session, err := s.requireSession(ctx, shop)
	if err != nil {
		return nil, err
	}
	storeHash, err := s.storeHash(ctx, session)
	if err != nil {
		return nil, err
	}
	saved, err := s.store.SaveSettings(ctx, storeHash, settings)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to save settings")
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	s.logger.Info().Str("shop", shop).Msg("Settings saved")
	return saved, nil
}

// ListOrders returns the store API's order page verbatim.
func (s *DashboardService) ListOrders(ctx context.Context, shop string, query domain.OrderListQuery) (json.RawMessage, error) {
	session, err := s.requireSession(ctx, shop)
	if err != nil {
		return nil, err
	}
	storeHash, err := s.storeHash(ctx, session)
	if err != nil {
		return nil, err
	}
	data, err := s.store.ListOrders(ctx, storeHash, query.Normalize())
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if data == nil {
		return emptyOrderList, nil
	}
	return data, nil
}

// ListOrderItems returns the store API's items of one order verbatim.
func (s *DashboardService) ListOrderItems(ctx context.Context, shop string, orderID string) (json.RawMessage, error) {
	session, err := s.requireSession(ctx, shop)
	if err != nil {
		return nil, err
	}
	storeHash, err := s.storeHash(ctx, session)
	if err != nil {
		return nil, err
	}
	data, err := s.store.ListOrderItems(ctx, storeHash, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Str("orderId", orderID).Msg("Failed to list order items")
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	if data == nil {
		return emptyOrderItems, nil
	}
	return data, nil
}

// WebhookReport lists the shop's subscriptions and singles out the
// compliance ones.
func (s *DashboardService) WebhookReport(ctx context.Context, shop string) (*WebhookReport, error) {
	session, err := s.requireSession(ctx, shop)
	if err != nil {
		return nil, err
	}
	subs, err := s.webhooks.ListGraphQLSubscriptions(ctx, shop, session.AccessToken)
	if err != nil {
		return nil, err
	}

	compliance := make(map[string]bool)
	for _, t := range s.webhooks.ComplianceTargets() {
		compliance[domain.NormalizeTopic(t.Topic)] = true
	}
	report := &WebhookReport{
		Shop:          shop,
		TotalWebhooks: len(subs),
		GDPRWebhooks:  []domain.WebhookSubscription{},
		AllWebhooks:   subs,
	}
	for _, sub := range subs {
		if compliance[domain.NormalizeTopic(sub.Topic)] {
			report.GDPRWebhooks = append(report.GDPRWebhooks, sub)
		}
	}
	return report, nil
}
