package application

import (
	"context"
	"errors"
	"testing"

	"storefront-customizer-app/internal/domain"

	"github.com/rs/zerolog"
)

type topicHandler struct {
	topic string
	err   error
	seen  int
}

func (h *topicHandler) CanHandle(topic string) bool { return topic == h.topic }

func (h *topicHandler) Handle(context.Context, *domain.WebhookEvent) error {
	h.seen++
	return h.err
}

func TestDispatchRoutesByTopic(t *testing.T) {
	ctx := context.Background()
	orders := &topicHandler{topic: domain.TopicOrdersCreate}
	uninstall := &topicHandler{topic: domain.TopicAppUninstalled}
	d := NewWebhookDispatcher(zerolog.Nop())
	d.RegisterHandler(orders)
	d.RegisterHandler(uninstall)

	if err := d.Dispatch(ctx, &domain.WebhookEvent{Topic: domain.TopicAppUninstalled, Verified: true}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if orders.seen != 0 || uninstall.seen != 1 {
		t.Fatalf("orders=%d uninstall=%d", orders.seen, uninstall.seen)
	}

	// Unknown topics are acknowledged.
	if err := d.Dispatch(ctx, &domain.WebhookEvent{Topic: "products/update", Verified: true}); err != nil {
		t.Fatalf("catch-all: %v", err)
	}
}

func TestDispatchErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	h := &topicHandler{topic: domain.TopicOrdersCreate, err: boom}
	d := NewWebhookDispatcher(zerolog.Nop())
	d.RegisterHandler(h)

	if err := d.Dispatch(ctx, &domain.WebhookEvent{Topic: domain.TopicOrdersCreate}); err == nil || h.seen != 0 {
		t.Fatal("unverified events must not reach handlers")
	}
	if err := d.Dispatch(ctx, &domain.WebhookEvent{Topic: domain.TopicOrdersCreate, Verified: true}); !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped handler error", err)
	}
}
