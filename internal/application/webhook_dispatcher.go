package application

import (
	"context"
	"fmt"
	"sync"

	"storefront-customizer-app/internal/domain"

	"github.com/rs/zerolog"
)

// WebhookHandler processes one kind of webhook topic.
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookDispatcher routes verified events to the first handler that
// accepts their topic. Topics nobody handles are logged and acknowledged.
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers []WebhookHandler
	logger   zerolog.Logger
}

func NewWebhookDispatcher(logger zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{logger: logger}
}

// RegisterHandler appends h; earlier registrations win.
func (d *WebhookDispatcher) RegisterHandler(h WebhookHandler) {
	d.mu.Lock()
	d.handlers = append(d.handlers, h)
	d.mu.Unlock()
}

// Dispatch must only be called with signature-checked events.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) error {
	if !event.Verified {
		return fmt.Errorf("refusing to dispatch unverified webhook %q", event.Topic)
	}

	d.mu.RLock()
	var handler WebhookHandler
	for _, h := range d.handlers {
		if h.CanHandle(event.Topic) {
			handler = h
			break
		}
	}
	d.mu.RUnlock()

	if handler == nil {
		d.logger.Info().
			Str("topic", event.Topic).
			Str("shop", event.Shop).
			Msg("No handler for webhook topic, acknowledging")
		return nil
	}

	if err := handler.Handle(ctx, event); err != nil {
		d.logger.Error().
			Err(err).
			Str("topic", event.Topic).
			Str("shop", event.Shop).
			Msg("Webhook handler failed")
		return fmt.Errorf("failed to handle %s: %w", event.Topic, err)
	}
	return nil
}
