package application

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/ports"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidOrder wraps payloads that fail schema validation.
var ErrInvalidOrder = errors.New("invalid order payload")

const TaskEnrichOrder = "enrich-order"

//go:embed schema/order.schema.json
var orderSchemaJSON []byte

var orderSchema = mustCompileOrderSchema()

func mustCompileOrderSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(orderSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("order schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("order.schema.json", doc); err != nil {
		panic(fmt.Sprintf("order schema: %v", err))
	}
	sch, err := c.Compile("order.schema.json")
	if err != nil {
		panic(fmt.Sprintf("order schema: %v", err))
	}
	return sch
}

// OrderIngestor stores incoming orders and forwards them, item by item, to
// the store API in the background.
type OrderIngestor struct {
	orders       ports.OrderRepository
	sessions     *SessionService
	shopify      ports.ShopifyClient
	store        ports.StoreAPI
	queue        ports.TaskQueue
	orderTimeout time.Duration
	itemTimeout  time.Duration
	maxAttempts  int
	logger       zerolog.Logger
}

func NewOrderIngestor(
	orders ports.OrderRepository,
	sessions *SessionService,
	shopify ports.ShopifyClient,
	store ports.StoreAPI,
	queue ports.TaskQueue,
	orderTimeout time.Duration,
	itemTimeout time.Duration,
	maxAttempts int,
	logger zerolog.Logger,
) *OrderIngestor {
	return &OrderIngestor{
		orders:       orders,
		sessions:     sessions,
		shopify:      shopify,
		store:        store,
		queue:        queue,
		orderTimeout: orderTimeout,
		itemTimeout:  itemTimeout,
		maxAttempts:  maxAttempts,
		logger:       logger,
	}
}

// ValidateOrderPayload checks payload against the orders/create schema.
func ValidateOrderPayload(payload []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	if err := orderSchema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	return nil
}

// Ingest persists the order and schedules enrichment. Redeliveries of an
// order that was already forwarded (enriched or partial) are stored but not
// forwarded again.
func (i *OrderIngestor) Ingest(ctx context.Context, shop string, payload []byte) (*domain.Order, error) {
	if err := ValidateOrderPayload(payload); err != nil {
		return nil, err
	}
	order, err := domain.ParseOrder(shop, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	created, err := i.orders.UpsertOrder(ctx, order)
	if err != nil {
		i.logger.Error().Err(err).Str("shop", shop).Int64("orderId", order.OrderID).Msg("Failed to store order")
		return nil, fmt.Errorf("failed to store order: %w", err)
	}
	log := i.logger.With().Str("shop", shop).Int64("orderId", order.OrderID).Logger()
	log.Info().Bool("created", created).Int("items", len(order.Items)).Msg("Order stored")

	switch order.Status {
	case domain.OrderEnriched, domain.OrderPartial:
		log.Info().Str("status", string(order.Status)).Msg("Order already forwarded, skipping")
		return order, nil
	}

	if err := i.enqueue(shop, order.OrderID); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue order enrichment")
		return nil, fmt.Errorf("failed to enqueue order enrichment: %w", err)
	}
	return order, nil
}

// resumeBatch bounds how many unfinished orders one Resume call schedules.
const resumeBatch = 500

// Resume re-enqueues orders left received or failed by an earlier process,
// e.g. when it stopped before their enrichment ran. It returns how many were
// scheduled; it stops early when the queue refuses more work.
func (i *OrderIngestor) Resume(ctx context.Context) (int, error) {
	orders, err := i.orders.ListOrdersByStatus(ctx, []domain.OrderStatus{domain.OrderReceived, domain.OrderFailed}, resumeBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list unfinished orders: %w", err)
	}
	n := 0
	for _, o := range orders {
		if err := i.enqueue(o.Shop, o.OrderID); err != nil {
			i.logger.Warn().Err(err).Int("resumed", n).Int("pending", len(orders)-n).Msg("Stopped resuming orders")
			return n, err
		}
		n++
	}
	if n > 0 {
		i.logger.Info().Int("orders", n).Msg("Resumed unfinished orders")
	}
	return n, nil
}

func (i *OrderIngestor) enqueue(shop string, orderID int64) error {
	_, err := i.queue.Submit(domain.Task{
		Name:        TaskEnrichOrder,
		Shop:        shop,
		MaxAttempts: i.maxAttempts,
		Run: func(ctx context.Context) error {
			return i.Enrich(ctx, shop, orderID)
		},
	})
	return err
}

// Enrich forwards a stored order and its items to the store API. A failing
// item is logged and the rest are still sent; the order then ends up
// partial instead of enriched.
func (i *OrderIngestor) Enrich(ctx context.Context, shop string, orderID int64) error {
	log := i.logger.With().Str("shop", shop).Int64("orderId", orderID).Logger()

	order, err := i.orders.GetOrder(ctx, shop, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return domain.Permanent(fmt.Errorf("order %d of %s not found", orderID, shop))
	}

	session, err := i.sessions.GetValidSession(ctx, shop)
	if err != nil {
		return err
	}
	if session == nil {
		log.Warn().Msg("No valid session, order not forwarded")
		i.setStatus(ctx, order, "", domain.OrderNoSession)
		return domain.Permanent(fmt.Errorf("%w for %s", ErrNoSession, shop))
	}

	info, err := i.shopify.GetShop(ctx, shop, session.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to get shop info: %w", err)
	}
	storeHash := info.StoreHash()

	orderCtx, cancel := context.WithTimeout(ctx, i.orderTimeout)
	err = i.store.AddOrder(orderCtx, storeHash, order)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("Failed to add order to store API")
		i.setStatus(ctx, order, storeHash, domain.OrderFailed)
		return fmt.Errorf("failed to add order: %w", err)
	}

	failed := 0
	for _, item := range order.Items {
		itemCtx, cancel := context.WithTimeout(ctx, i.itemTimeout)
		err := i.store.AddOrderItem(itemCtx, storeHash, order, item)
		cancel()
		if err != nil {
			failed++
			log.Error().Err(err).Int64("lineItemId", item.LineItemID).Msg("Failed to add order item")
		}
	}

	status := domain.OrderEnriched
	if failed > 0 {
		status = domain.OrderPartial
	}
	i.setStatus(ctx, order, storeHash, status)
	log.Info().
		Str("storeHash", storeHash).
		Str("status", string(status)).
		Str("items", strconv.Itoa(len(order.Items)-failed)+"/"+strconv.Itoa(len(order.Items))).
		Msg("Order forwarded")
	return nil
}

func (i *OrderIngestor) setStatus(ctx context.Context, order *domain.Order, storeHash string, status domain.OrderStatus) {
	if err := i.orders.UpdateOrderStatus(ctx, order.Shop, order.OrderID, storeHash, status); err != nil {
		i.logger.Error().Err(err).Str("shop", order.Shop).Int64("orderId", order.OrderID).Msg("Failed to update order status")
	}
}
