package shopify

import (
	"context"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
)

func TestClientGetShopAndWebhooks(t *testing.T) {
	httpClient := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/admin/api/2025-04/shop.json":
			_, _ = w.Write([]byte(`{"shop":{"id":548380009,"name":"Demo","shop_owner":"Ada Lovelace","email":"ada@example.com","domain":"demo.example.com","myshopify_domain":"demo.myshopify.com"}}`))
		case "/admin/api/2025-04/webhooks.json":
			_, _ = w.Write([]byte(`{"webhooks":[{"id":901,"topic":"orders/create","address":"https://app.example.com/webhooks/orders","format":"json"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	c := NewClient("key", "secret", "2025-04", httpClient, zerolog.Nop())
	ctx := context.Background()

	shop, err := c.GetShop(ctx, "demo.myshopify.com", "tok")
	if err != nil {
		t.Fatalf("GetShop: %v", err)
	}
	if shop.StoreHash() != "548380009" || shop.Name != "Demo" {
		t.Fatalf("unexpected shop %+v", shop)
	}
	if first, last := shop.OwnerNames(); first != "Ada" || last != "Lovelace" {
		t.Fatalf("owner names %q %q", first, last)
	}

	subs, err := c.ListWebhooks(ctx, "demo.myshopify.com", "tok")
	if err != nil {
		t.Fatalf("ListWebhooks: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "901" || subs[0].Topic != "orders/create" {
		t.Fatalf("unexpected subscriptions %+v", subs)
	}
}
