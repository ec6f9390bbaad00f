package application

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"storefront-customizer-app/internal/domain"
)

type fakeProber struct {
	result domain.ProbeResult
	err    error
	calls  atomic.Int32
	gate   chan struct{}
}

func (p *fakeProber) Probe(ctx context.Context, _ string, _ string) (domain.ProbeResult, error) {
	p.calls.Add(1)
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return domain.ProbeValid, ctx.Err()
		}
	}
	return p.result, p.err
}

type fakeShopify struct {
	mu         sync.Mutex
	info       domain.ShopInfo
	shopErr    error
	webhooks   []domain.WebhookSubscription
	scriptTags []string
	created    int
	updated    int
}

func (f *fakeShopify) GetShop(context.Context, string, string) (*domain.ShopInfo, error) {
	if f.shopErr != nil {
		return nil, f.shopErr
	}
	info := f.info
	return &info, nil
}

func (f *fakeShopify) ListWebhooks(context.Context, string, string) ([]domain.WebhookSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.WebhookSubscription(nil), f.webhooks...), nil
}

func (f *fakeShopify) CreateWebhook(_ context.Context, _, _, topic, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	f.webhooks = append(f.webhooks, domain.WebhookSubscription{
		ID:      strconv.Itoa(len(f.webhooks) + 1),
		Topic:   topic,
		Address: address,
	})
	return nil
}

func (f *fakeShopify) UpdateWebhook(_ context.Context, _, _, id, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated++
	for i := range f.webhooks {
		if f.webhooks[i].ID == id {
			f.webhooks[i].Address = address
			return nil
		}
	}
	return errors.New("webhook not found")
}

func (f *fakeShopify) ListScriptTagSources(context.Context, string, string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scriptTags...), nil
}

func (f *fakeShopify) CreateScriptTag(_ context.Context, _, _, src string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scriptTags = append(f.scriptTags, src)
	return nil
}

// fakeGateway answers GraphQL calls with the JSON returned by respond.
type fakeGateway struct {
	mu      sync.Mutex
	queries []string
	respond func(query string, vars map[string]any) (string, error)
}

func (g *fakeGateway) REST(context.Context, string, string, string, string, any, any) error {
	return nil
}

func (g *fakeGateway) GraphQL(_ context.Context, _, _, query string, vars map[string]any, out any) error {
	g.mu.Lock()
	g.queries = append(g.queries, query)
	g.mu.Unlock()
	data, err := g.respond(query, vars)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), out)
}

// graphQLSubscriptions emulates the webhook subscription API in memory.
type graphQLSubscriptions struct {
	mu   sync.Mutex
	subs []domain.WebhookSubscription
}

func (s *graphQLSubscriptions) respond(query string, vars map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case strings.Contains(query, "webhookSubscriptionCreate("):
		input := vars["webhookSubscription"].(map[string]any)
		s.subs = append(s.subs, domain.WebhookSubscription{
			ID:      "gid://shopify/WebhookSubscription/" + strconv.Itoa(len(s.subs)+1),
			Topic:   vars["topic"].(string),
			Address: input["callbackUrl"].(string),
		})
		return `{"webhookSubscriptionCreate":{"userErrors":[]}}`, nil
	case strings.Contains(query, "webhookSubscriptionUpdate("):
		input := vars["webhookSubscription"].(map[string]any)
		for i := range s.subs {
			if s.subs[i].ID == vars["id"] {
				s.subs[i].Address = input["callbackUrl"].(string)
			}
		}
		return `{"webhookSubscriptionUpdate":{"userErrors":[]}}`, nil
	case strings.Contains(query, "webhookSubscriptions("):
		type node struct {
			ID       string            `json:"id"`
			Topic    string            `json:"topic"`
			Endpoint map[string]string `json:"endpoint"`
		}
		var edges []map[string]node
		for _, sub := range s.subs {
			edges = append(edges, map[string]node{"node": {
				ID:       sub.ID,
				Topic:    sub.Topic,
				Endpoint: map[string]string{"__typename": "WebhookHttpEndpoint", "callbackUrl": sub.Address},
			}})
		}
		b, _ := json.Marshal(map[string]any{"webhookSubscriptions": map[string]any{"edges": edges}})
		return string(b), nil
	case strings.Contains(query, "metafieldDefinitionCreate("):
		return `{"metafieldDefinitionCreate":{"createdDefinition":{"id":"gid://shopify/MetafieldDefinition/1"},"userErrors":[]}}`, nil
	}
	return "", errors.New("unexpected query")
}

type fakeStore struct {
	mu          sync.Mutex
	registered  []domain.MerchantRegistration
	orders      []int64
	items       []int64
	failItems   map[int64]bool
	orderErr    error
	settings    *domain.Settings
	settingsErr error
	orderList   json.RawMessage
	orderItems  json.RawMessage
	itemsFor    string
}

func (f *fakeStore) RegisterMerchant(_ context.Context, reg domain.MerchantRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, reg)
	return nil
}

func (f *fakeStore) AddOrder(_ context.Context, _ string, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return f.orderErr
	}
	f.orders = append(f.orders, order.OrderID)
	return nil
}

func (f *fakeStore) AddOrderItem(_ context.Context, _ string, _ *domain.Order, item domain.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failItems[item.LineItemID] {
		return errors.New("store api error 500")
	}
	f.items = append(f.items, item.LineItemID)
	return nil
}

func (f *fakeStore) GetSettings(context.Context, string) (*domain.Settings, error) {
	return f.settings, f.settingsErr
}

func (f *fakeStore) SaveSettings(_ context.Context, _ string, s domain.Settings) (*domain.Settings, error) {
	f.settings = &s
	return &s, nil
}

func (f *fakeStore) ListOrders(context.Context, string, domain.OrderListQuery) (json.RawMessage, error) {
	return f.orderList, nil
}

func (f *fakeStore) ListOrderItems(_ context.Context, _ string, orderID string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemsFor = orderID
	return f.orderItems, nil
}

// syncQueue runs each task inline and records its outcome.
type syncQueue struct {
	mu     sync.Mutex
	names  []string
	errs   map[string]error
	reject error
}

func (q *syncQueue) Submit(task domain.Task) (string, error) {
	if q.reject != nil {
		return "", q.reject
	}
	err := task.Run(context.Background())
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.errs == nil {
		q.errs = make(map[string]error)
	}
	q.names = append(q.names, task.Name)
	q.errs[task.Name] = err
	return strconv.Itoa(len(q.names)), nil
}

type fakeOAuth struct {
	valid bool
	token string
}

func (o *fakeOAuth) AuthorizeURL(shop, state string) string {
	return "https://" + shop + "/admin/oauth/authorize?state=" + state
}

func (o *fakeOAuth) VerifyCallback(url.Values) bool { return o.valid }

func (o *fakeOAuth) ExchangeToken(context.Context, string, string) (*domain.AccessToken, error) {
	if o.token == "" {
		return nil, errors.New("access token missing")
	}
	return &domain.AccessToken{Token: o.token, Scope: "read_orders"}, nil
}

type recordingHook struct {
	shops []string
}

func (h *recordingHook) Enqueue(_ context.Context, shop string) error {
	h.shops = append(h.shops, shop)
	return nil
}
