package ports

import (
	"context"

	"storefront-customizer-app/internal/domain"
)

// SessionRepository persists one session per shop.
// Reads return (nil, nil) when the shop has no session.
type SessionRepository interface {
	UpsertSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, shop string) (*domain.Session, error)
	DeleteSession(ctx context.Context, shop string) error
	// DeleteStaleSession deletes the session only while it still holds
	// accessToken, and reports whether a row was removed.
	DeleteStaleSession(ctx context.Context, shop string, accessToken string) (bool, error)
	Ping(ctx context.Context) error
}

// OrderRepository persists orders keyed by (shop, order id).
type OrderRepository interface {
	// UpsertOrder inserts or replaces the order and its items and reports
	// whether the order was new.
	UpsertOrder(ctx context.Context, order *domain.Order) (bool, error)
	GetOrder(ctx context.Context, shop string, orderID int64) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, shop string, orderID int64, storeHash string, status domain.OrderStatus) error
	ListCustomerOrders(ctx context.Context, shop string, customerID int64) ([]*domain.Order, error)
	DeleteCustomerOrders(ctx context.Context, shop string, customerID int64) (int64, error)
	DeleteShopOrders(ctx context.Context, shop string) (int64, error)
	// ListOrdersByStatus returns up to limit order headers in any of
	// statuses, oldest first. Items are not loaded.
	ListOrdersByStatus(ctx context.Context, statuses []domain.OrderStatus, limit int) ([]*domain.Order, error)
}

// OAuthStateRepository stores install nonces until the callback consumes them.
type OAuthStateRepository interface {
	SaveState(ctx context.Context, state *domain.OAuthState) error
	// ConsumeState returns and removes an unexpired state, or (nil, nil).
	ConsumeState(ctx context.Context, state string) (*domain.OAuthState, error)
}

// WebhookLogRepository keeps an audit trail of verified deliveries.
type WebhookLogRepository interface {
	LogWebhook(ctx context.Context, event *domain.WebhookEvent) error
}
