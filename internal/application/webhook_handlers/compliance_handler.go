package webhook_handlers

import (
	"context"
	"encoding/json"

	"storefront-customizer-app/internal/domain"

	"github.com/rs/zerolog"
)

// ComplianceStore is the local data the privacy webhooks act on.
type ComplianceStore interface {
	ListCustomerOrders(ctx context.Context, shop string, customerID int64) ([]*domain.Order, error)
	DeleteCustomerOrders(ctx context.Context, shop string, customerID int64) (int64, error)
	DeleteShopOrders(ctx context.Context, shop string) (int64, error)
}

// SessionDeleter removes a shop's session.
type SessionDeleter interface {
	DeleteSession(ctx context.Context, shop string) error
}

type compliancePayload struct {
	ShopID     int64  `json:"shop_id"`
	ShopDomain string `json:"shop_domain"`
	Customer   *struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	} `json:"customer"`
	OrdersRequested []int64 `json:"orders_requested"`
	OrdersToRedact  []int64 `json:"orders_to_redact"`
	DataRequest     *struct {
		ID int64 `json:"id"`
	} `json:"data_request"`
}

// ComplianceHandler handles the mandatory privacy webhooks. It always
// acknowledges a verified delivery; local failures are only logged.
type ComplianceHandler struct {
	orders   ComplianceStore
	sessions SessionDeleter
	logger   zerolog.Logger
}

// NewComplianceHandler creates a new compliance webhook handler
func NewComplianceHandler(orders ComplianceStore, sessions SessionDeleter, logger zerolog.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		orders:   orders,
		sessions: sessions,
		logger:   logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *ComplianceHandler) CanHandle(topic string) bool {
	return topic == domain.TopicCustomersDataRequest ||
		topic == domain.TopicCustomersRedact ||
		topic == domain.TopicShopRedact
}

// Handle processes a compliance webhook event
func (h *ComplianceHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var p compliancePayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		h.logger.Warn().Err(err).Str("topic", event.Topic).Str("shop", event.Shop).Msg("Unparseable compliance payload")
		return nil
	}

	log := h.logger.With().Str("topic", event.Topic).Str("shop", event.Shop).Logger()
	var customerID int64
	if p.Customer != nil {
		customerID = p.Customer.ID
	}

	switch event.Topic {
	case domain.TopicCustomersDataRequest:
		if customerID == 0 {
			log.Info().Msg("Data request without customer")
			return nil
		}
		orders, err := h.orders.ListCustomerOrders(ctx, event.Shop, customerID)
		if err != nil {
			log.Error().Err(err).Int64("customerId", customerID).Msg("Failed to collect customer data")
			return nil
		}
		ids := make([]int64, 0, len(orders))
		for _, o := range orders {
			ids = append(ids, o.OrderID)
		}
		log.Info().
			Int64("customerId", customerID).
			Ints64("orderIds", ids).
			Ints64("ordersRequested", p.OrdersRequested).
			Msg("Customer data request collected")

	case domain.TopicCustomersRedact:
		if customerID == 0 {
			log.Info().Msg("Redact request without customer")
			return nil
		}
		n, err := h.orders.DeleteCustomerOrders(ctx, event.Shop, customerID)
		if err != nil {
			log.Error().Err(err).Int64("customerId", customerID).Msg("Failed to redact customer data")
			return nil
		}
		log.Info().Int64("customerId", customerID).Int64("ordersDeleted", n).Msg("Customer data redacted")

	case domain.TopicShopRedact:
		if err := h.sessions.DeleteSession(ctx, event.Shop); err != nil {
			log.Error().Err(err).Msg("Failed to delete shop session")
		}
		n, err := h.orders.DeleteShopOrders(ctx, event.Shop)
		if err != nil {
			log.Error().Err(err).Msg("Failed to redact shop data")
			return nil
		}
		log.Info().Int64("ordersDeleted", n).Msg("Shop data redacted")
	}
	return nil
}
