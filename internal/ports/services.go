package ports

import (
	"context"
	"encoding/json"
	"time"

	"storefront-customizer-app/internal/domain"
)

// StoreAPI is the external store-tracking backend, consumed as an opaque service.
type StoreAPI interface {
	RegisterMerchant(ctx context.Context, reg domain.MerchantRegistration) error
	AddOrder(ctx context.Context, storeHash string, order *domain.Order) error
	AddOrderItem(ctx context.Context, storeHash string, order *domain.Order, item domain.OrderItem) error
	GetSettings(ctx context.Context, storeHash string) (*domain.Settings, error)
	SaveSettings(ctx context.Context, storeHash string, settings domain.Settings) (*domain.Settings, error)
	ListOrders(ctx context.Context, storeHash string, query domain.OrderListQuery) (json.RawMessage, error)
	ListOrderItems(ctx context.Context, storeHash string, orderID string) (json.RawMessage, error)
}

// TaskQueue runs tasks in the background with retries.
type TaskQueue interface {
	Submit(task domain.Task) (string, error)
}

// ProbeCache remembers recent successful liveness probes.
type ProbeCache interface {
	RecentlyValid(ctx context.Context, shop string) (bool, error)
	MarkValid(ctx context.Context, shop string, ttl time.Duration) error
	Forget(ctx context.Context, shop string) error
}

// WebhookDeduper claims webhook delivery ids so redeliveries can be acked
// without reprocessing.
type WebhookDeduper interface {
	// Claim returns false when id was already claimed within ttl.
	Claim(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, id string) error
}
