package webhook_handlers

import (
	"context"
	"errors"

	"storefront-customizer-app/internal/application"
	"storefront-customizer-app/internal/domain"

	"github.com/rs/zerolog"
)

// OrderIngester is the part of the order ingestor the handler needs.
type OrderIngester interface {
	Ingest(ctx context.Context, shop string, payload []byte) (*domain.Order, error)
}

// OrderHandler handles order-related webhook events
type OrderHandler struct {
	ingestor OrderIngester
	logger   zerolog.Logger
}

// NewOrderHandler creates a new order webhook handler
func NewOrderHandler(ingestor OrderIngester, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		ingestor: ingestor,
		logger:   logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *OrderHandler) CanHandle(topic string) bool {
	return topic == domain.TopicOrdersCreate
}

// Handle stores the order and schedules its enrichment. Payloads that fail
// validation are acknowledged; redelivering them cannot help.
func (h *OrderHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	order, err := h.ingestor.Ingest(ctx, event.Shop, event.Payload)
	if errors.Is(err, application.ErrInvalidOrder) {
		h.logger.Warn().Err(err).Str("shop", event.Shop).Str("webhookId", event.ID).Msg("Dropping invalid order payload")
		return nil
	}
	if err != nil {
		return err
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Int64("orderId", order.OrderID).
		Int64("orderNumber", order.OrderNumber).
		Str("totalPrice", order.TotalPrice).
		Str("status", string(order.Status)).
		Msg("Processed order webhook event")
	return nil
}
