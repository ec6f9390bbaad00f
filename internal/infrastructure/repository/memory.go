package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront-customizer-app/internal/domain"
)

// MemoryStore implements every repository port in process memory. It backs
// STORE_DRIVER=memory and the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	sessions map[string]domain.Session
	orders   map[orderKey]*domain.Order
	states   map[string]domain.OAuthState
	events   []domain.WebhookEvent
}

type orderKey struct {
	shop string
	id   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		sessions: make(map[string]domain.Session),
		orders:   make(map[orderKey]*domain.Order),
		states:   make(map[string]domain.OAuthState),
	}
}

// Sessions

func (m *MemoryStore) UpsertSession(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	stored := *s
	if prev, ok := m.sessions[s.Shop]; ok {
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.sessions[s.Shop] = stored
	s.CreatedAt, s.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, shop string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[shop]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, shop string) error {
	m.mu.Lock()
	delete(m.sessions, shop)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeleteStaleSession(_ context.Context, shop string, accessToken string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[shop]
	if !ok || s.AccessToken != accessToken {
		return false, nil
	}
	delete(m.sessions, shop)
	return true, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// SessionCount reports how many shops have a session.
func (m *MemoryStore) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Orders

func (m *MemoryStore) UpsertOrder(_ context.Context, order *domain.Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := orderKey{order.Shop, order.OrderID}
	now := m.now()
	stored := cloneOrder(order)
	prev, exists := m.orders[key]
	if exists {
		stored.Status = prev.Status
		stored.StoreHash = prev.StoreHash
		stored.CreatedAt = prev.CreatedAt
	} else {
		if stored.Status == "" {
			stored.Status = domain.OrderReceived
		}
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.orders[key] = stored

	order.Status, order.StoreHash = stored.Status, stored.StoreHash
	order.CreatedAt, order.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	return !exists, nil
}

func (m *MemoryStore) GetOrder(_ context.Context, shop string, orderID int64) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderKey{shop, orderID}]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (m *MemoryStore) UpdateOrderStatus(_ context.Context, shop string, orderID int64, storeHash string, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderKey{shop, orderID}]
	if !ok {
		return nil
	}
	o.Status = status
	if storeHash != "" {
		o.StoreHash = storeHash
	}
	o.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) ListCustomerOrders(_ context.Context, shop string, customerID int64) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Order
	for k, o := range m.orders {
		if k.shop == shop && o.CustomerID != nil && *o.CustomerID == customerID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (m *MemoryStore) DeleteCustomerOrders(_ context.Context, shop string, customerID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, o := range m.orders {
		if k.shop == shop && o.CustomerID != nil && *o.CustomerID == customerID {
			delete(m.orders, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeleteShopOrders(_ context.Context, shop string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.orders {
		if k.shop == shop {
			delete(m.orders, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListOrdersByStatus(_ context.Context, statuses []domain.OrderStatus, limit int) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[domain.OrderStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []*domain.Order
	for _, o := range m.orders {
		if want[o.Status] {
			c := cloneOrder(o)
			c.Items = nil
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// OrderCount reports how many orders are stored for shop.
func (m *MemoryStore) OrderCount(shop string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.orders {
		if k.shop == shop {
			n++
		}
	}
	return n
}

// OAuth states

func (m *MemoryStore) SaveState(_ context.Context, state *domain.OAuthState) error {
	m.mu.Lock()
	m.states[state.State] = *state
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ConsumeState(_ context.Context, state string) (*domain.OAuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[state]
	if !ok {
		return nil, nil
	}
	delete(m.states, state)
	if !m.now().Before(s.ExpiresAt) {
		return nil, nil
	}
	return &s, nil
}

// Webhook log

func (m *MemoryStore) LogWebhook(_ context.Context, event *domain.WebhookEvent) error {
	m.mu.Lock()
	m.events = append(m.events, *event)
	m.mu.Unlock()
	return nil
}

// WebhookEvents returns a copy of the logged events.
func (m *MemoryStore) WebhookEvents() []domain.WebhookEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.WebhookEvent(nil), m.events...)
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.CustomerID != nil {
		id := *o.CustomerID
		c.CustomerID = &id
	}
	return &c
}
