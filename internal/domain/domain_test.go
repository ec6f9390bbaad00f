package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

const designOrder = `{
  "id": 820982911946154508,
  "order_number": 1001,
  "total_price": "49.90",
  "customer": {"id": 115310627314723954},
  "line_items": [
    {
      "id": 466157049,
      "product_id": 632910392,
      "variant_id": 39072856,
      "variant_title": "Large",
      "name": "Custom Mug - Large",
      "quantity": 1,
      "properties": [
        {"name": "_Design Id", "value": "d-42"},
        {"name": "View Design", "value": "https://cdn.example.com/d-42.png"},
        {"name": "_Design Area", "value": "{\"x\":1}"}
      ]
    },
    {
      "id": 518995019,
      "product_id": null,
      "variant_id": null,
      "variant_title": "Gift wrap",
      "name": "Gift wrap",
      "quantity": 2,
      "properties": []
    }
  ]
}`

func TestParseOrderExtractsDesignProperties(t *testing.T) {
	order, err := ParseOrder("test.myshopify.com", []byte(designOrder))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if order.OrderID != 820982911946154508 || order.OrderNumber != 1001 {
		t.Fatalf("unexpected ids: %d / %d", order.OrderID, order.OrderNumber)
	}
	if order.TotalPrice != "49.90" {
		t.Fatalf("expected total 49.90, got %q", order.TotalPrice)
	}
	if order.CustomerID == nil || *order.CustomerID != 115310627314723954 {
		t.Fatalf("expected customer id, got %v", order.CustomerID)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}

	first := order.Items[0]
	if first.DesignID != "d-42" || first.PreviewURL != "https://cdn.example.com/d-42.png" || first.DesignArea != `{"x":1}` {
		t.Fatalf("design properties not extracted: %+v", first)
	}

	second := order.Items[1]
	if second.ProductID != nil || second.DesignID != "" {
		t.Fatalf("expected custom item without design, got %+v", second)
	}
	if order.Status != OrderReceived {
		t.Fatalf("expected received status, got %s", order.Status)
	}
}

func TestParseOrderFallbackLineItemIDsDoNotCollide(t *testing.T) {
	payload := `{"id":5,"line_items":[{"id":1,"name":"Real"},{"name":"No id"},{"id":0,"name":"Zero id"}]}`
	order, err := ParseOrder("s", []byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	seen := map[int64]string{}
	for _, it := range order.Items {
		if prev, dup := seen[it.LineItemID]; dup {
			t.Fatalf("%q and %q share line item id %d", prev, it.Name, it.LineItemID)
		}
		seen[it.LineItemID] = it.Name
	}
	if order.Items[0].LineItemID != 1 || order.Items[1].LineItemID != -2 || order.Items[2].LineItemID != -3 {
		t.Fatalf("ids = %d, %d, %d", order.Items[0].LineItemID, order.Items[1].LineItemID, order.Items[2].LineItemID)
	}
}

func TestParseOrderRejectsMissingID(t *testing.T) {
	if _, err := ParseOrder("s", []byte(`{"order_number": 1}`)); err == nil {
		t.Fatal("expected error for order without id")
	}
	if _, err := ParseOrder("s", []byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestShopInfoRegistration(t *testing.T) {
	info := ShopInfo{ID: 548380009, Name: "Snow Devil", ShopOwner: "Ada Mary Lovelace", Domain: "snow.example.com", CustomerEmail: "care@example.com"}
	reg := info.Registration()

	if reg.FirstName != "Ada" || reg.LastName != "Mary Lovelace" {
		t.Fatalf("unexpected owner split: %q / %q", reg.FirstName, reg.LastName)
	}
	if reg.Email != "care@example.com" {
		t.Fatalf("expected customer email fallback, got %q", reg.Email)
	}
	if reg.StoreHash != "548380009" || reg.StoreURL != "https://snow.example.com" {
		t.Fatalf("unexpected registration: %+v", reg)
	}

	if got := (ShopInfo{}).ContactEmail(); got != "unknown@example.com" {
		t.Fatalf("expected final email fallback, got %q", got)
	}
}

func TestPlanSubscription(t *testing.T) {
	existing := []WebhookSubscription{
		{ID: "1", Topic: "orders/create", Address: "https://old.example.com/webhooks/orders"},
		{ID: "gid://shopify/WebhookSubscription/2", Topic: "CUSTOMERS_REDACT", Address: "https://app.example.com/webhooks/customers/redact"},
	}

	action, id := PlanSubscription(existing, WebhookTarget{Topic: "orders/create", Address: "https://app.example.com/webhooks/orders"})
	if action != SubscriptionUpdated || id != "1" {
		t.Fatalf("expected update of 1, got %s %s", action, id)
	}

	action, _ = PlanSubscription(existing, WebhookTarget{Topic: "customers/redact", Address: "https://app.example.com/webhooks/customers/redact"})
	if action != SubscriptionSkipped {
		t.Fatalf("expected skip, got %s", action)
	}

	action, _ = PlanSubscription(existing, WebhookTarget{Topic: "SHOP_REDACT", Address: "https://app.example.com/webhooks/shop/redact"})
	if action != SubscriptionCreated {
		t.Fatalf("expected create, got %s", action)
	}
}

func TestTopicFromPath(t *testing.T) {
	cases := map[string]string{
		"app_uninstalled": "app/uninstalled",
		"orders_create":   "orders/create",
		"shop/update":     "shop/update",
		"ping":            "ping",
	}
	for in, want := range cases {
		if got := TopicFromPath(in); got != want {
			t.Errorf("TopicFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("no session")
	err := fmt.Errorf("task: %w", Permanent(base))
	if !IsPermanent(err) {
		t.Fatal("expected wrapped permanent error to be detected")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected permanent error to unwrap to its cause")
	}
	if IsPermanent(base) {
		t.Fatal("plain error must not be permanent")
	}
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) must be nil")
	}
}

func TestSessionIsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	if (&Session{}).IsExpired(now) {
		t.Fatal("offline session must not expire")
	}
	if !(&Session{Expires: &past}).IsExpired(now) {
		t.Fatal("expected session past expiry to be expired")
	}
}

func TestValidShopDomain(t *testing.T) {
	good := []string{"demo.myshopify.com", "a-b-1.myshopify.com"}
	bad := []string{"", "demo.example.com", "evil.com/demo.myshopify.com", "-x.myshopify.com", "DEMO.myshopify.com"}
	for _, s := range good {
		if !ValidShopDomain(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range bad {
		if ValidShopDomain(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}
