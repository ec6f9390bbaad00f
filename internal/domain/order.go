package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Line item properties written by the storefront customizer.
const (
	PropertyDesignID   = "_Design Id"
	PropertyViewDesign = "View Design"
	PropertyDesignArea = "_Design Area"
)

type OrderStatus string

const (
	OrderReceived  OrderStatus = "received"
	OrderEnriched  OrderStatus = "enriched"
	OrderPartial   OrderStatus = "partial"
	OrderNoSession OrderStatus = "no_session"
	OrderFailed    OrderStatus = "failed"
)

// Order is a Shopify order as persisted locally, keyed by (Shop, OrderID).
type Order struct {
	Shop        string          `json:"shop"`
	OrderID     int64           `json:"order_id"`
	OrderNumber int64           `json:"order_number"`
	TotalPrice  string          `json:"total_price"`
	CustomerID  *int64          `json:"customer_id,omitempty"`
	StoreHash   string          `json:"store_hash,omitempty"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderItem     `json:"items"`
	Payload     json.RawMessage `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderItem is one line item with the customizer's design metadata.
type OrderItem struct {
	LineItemID   int64           `json:"line_item_id"`
	ProductID    *int64          `json:"product_id,omitempty"`
	VariantID    *int64          `json:"variant_id,omitempty"`
	VariantTitle string          `json:"variant_title,omitempty"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	DesignID     string          `json:"design_id,omitempty"`
	PreviewURL   string          `json:"preview_url,omitempty"`
	DesignArea   string          `json:"design_area,omitempty"`
	Payload      json.RawMessage `json:"-"`
}

type orderPayload struct {
	ID          int64       `json:"id"`
	OrderNumber int64       `json:"order_number"`
	TotalPrice  json.Number `json:"total_price"`
	Customer    *struct {
		ID int64 `json:"id"`
	} `json:"customer"`
	LineItems []json.RawMessage `json:"line_items"`
}

type lineItemPayload struct {
	ID           int64  `json:"id"`
	ProductID    *int64 `json:"product_id"`
	VariantID    *int64 `json:"variant_id"`
	VariantTitle string `json:"variant_title"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	Properties   []struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	} `json:"properties"`
}

// ParseOrder maps a verified orders/create payload to an Order.
func ParseOrder(shop string, payload []byte) (*Order, error) {
	var p orderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to parse order payload: %w", err)
	}
	if p.ID == 0 {
		return nil, fmt.Errorf("order payload has no id")
	}

	order := &Order{
		Shop:        shop,
		OrderID:     p.ID,
		OrderNumber: p.OrderNumber,
		TotalPrice:  p.TotalPrice.String(),
		Status:      OrderReceived,
		Payload:     json.RawMessage(payload),
		Items:       make([]OrderItem, 0, len(p.LineItems)),
	}
	if p.Customer != nil && p.Customer.ID != 0 {
		id := p.Customer.ID
		order.CustomerID = &id
	}

	for i, raw := range p.LineItems {
		var li lineItemPayload
		if err := json.Unmarshal(raw, &li); err != nil {
			return nil, fmt.Errorf("failed to parse line item %d: %w", i, err)
		}
		item := OrderItem{
			LineItemID:   li.ID,
			ProductID:    li.ProductID,
			VariantID:    li.VariantID,
			VariantTitle: li.VariantTitle,
			Name:         li.Name,
			Quantity:     li.Quantity,
			Payload:      raw,
		}
		// Line items without an id get a negative key so they never collide
		// with a real one.
		if item.LineItemID == 0 {
			item.LineItemID = -int64(i + 1)
		}
		for _, prop := range li.Properties {
			switch prop.Name {
			case PropertyDesignID:
				item.DesignID = propertyString(prop.Value)
			case PropertyViewDesign:
				item.PreviewURL = propertyString(prop.Value)
			case PropertyDesignArea:
				item.DesignArea = propertyString(prop.Value)
			}
		}
		order.Items = append(order.Items, item)
	}
	return order, nil
}

// propertyString returns string property values unquoted and anything else
// as its JSON text.
func propertyString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
