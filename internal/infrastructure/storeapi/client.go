package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/infrastructure/metrics"
	"storefront-customizer-app/internal/ports"

	"github.com/rs/zerolog"
)

// Error is a non-2xx answer, or a 2xx answer whose envelope has status false.
type Error struct {
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("store api %s failed: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("store api %s responded with %d: %s", e.Path, e.Status, e.Message)
}

// envelope is the store API response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the external store-tracking service. Every request carries
// apiToken = {token}-{operation}.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(endpoint, token string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if endpoint != "" && !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

var _ ports.StoreAPI = (*Client)(nil)

func (c *Client) apiToken(op string) string { return c.token + "-" + op }

// RegisterMerchant calls login with the shop owner details.
func (c *Client) RegisterMerchant(ctx context.Context, reg domain.MerchantRegistration) error {
	payload := map[string]any{
		"platform":  "shopify",
		"storeHash": reg.StoreHash,
		"firstName": reg.FirstName,
		"lastName":  reg.LastName,
		"phone":     reg.Phone,
		"storeUrl":  reg.StoreURL,
		"storeName": reg.StoreName,
		"email":     reg.Email,
		"apiToken":  c.apiToken("login"),
	}
	_, err := c.post(ctx, "login", payload, true)
	return err
}

// AddOrder stores the order header.
func (c *Client) AddOrder(ctx context.Context, storeHash string, order *domain.Order) error {
	var customerID any
	if order.CustomerID != nil {
		customerID = *order.CustomerID
	}
	payload := map[string]any{
		"storeHash":           storeHash,
		"orderId":             order.OrderID,
		"orderNumber":         order.OrderNumber,
		"order_total_inc_tax": order.TotalPrice,
		// The source payload carries no tax-exclusive total.
		"order_total_ex_tax": order.TotalPrice,
		"order_items_total":  len(order.Items),
		"customerId":         customerID,
		"order_json":         string(order.Payload),
		"apiToken":           c.apiToken("order-add"),
	}
	_, err := c.post(ctx, "order/add", payload, true)
	return err
}

// AddOrderItem stores one line item with its design metadata.
func (c *Client) AddOrderItem(ctx context.Context, storeHash string, order *domain.Order, item domain.OrderItem) error {
	var productID any = "custom_product"
	if item.ProductID != nil && *item.ProductID != 0 {
		productID = *item.ProductID
	}
	var sku any
	if item.VariantID != nil && *item.VariantID != 0 {
		sku = *item.VariantID
	} else if item.VariantTitle != "" {
		sku = item.VariantTitle
	}
	var designArea any
	if item.DesignArea != "" {
		encoded, err := json.Marshal(item.DesignArea)
		if err != nil {
			return fmt.Errorf("failed to encode design area: %w", err)
		}
		designArea = string(encoded)
	}

	payload := map[string]any{
		"storeHash":   storeHash,
		"bcOrdersId":  order.OrderID,
		"orderId":     order.OrderID,
		"productId":   productID,
		"productName": item.Name,
		"productSku":  sku,
		"designId":    nullable(item.DesignID),
		"designArea":  designArea,
		"previewUrl":  nullable(item.PreviewURL),
		"productJson": string(item.Payload),
		"apiToken":    c.apiToken("order-item-add"),
	}
	_, err := c.post(ctx, "order/items-add", payload, true)
	return err
}

// GetSettings returns (nil, nil) when the service has no settings for the shop.
func (c *Client) GetSettings(ctx context.Context, storeHash string) (*domain.Settings, error) {
	payload := map[string]any{
		"storeHash": storeHash,
		"apiToken":  c.apiToken("settings-get"),
	}
	data, err := c.post(ctx, "settings/get", payload, false)
	if err != nil {
		return nil, err
	}
	if isEmpty(data) {
		return nil, nil
	}
	var s domain.Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &s, nil
}

// SaveSettings returns the stored settings, or what was sent when the
// service echoes nothing back.
func (c *Client) SaveSettings(ctx context.Context, storeHash string, settings domain.Settings) (*domain.Settings, error) {
	if settings.DesignerButtonName == "" {
		settings.DesignerButtonName = domain.DefaultSettings().DesignerButtonName
	}
	payload := map[string]any{
		"storeHash":          storeHash,
		"userId":             "0",
		"enableShare":        settings.EnableShare,
		"designerButtonName": settings.DesignerButtonName,
		"designerButton":     settings.DesignerButton,
		"addtocartForm":      settings.AddToCartForm,
		"cssCode":            settings.CSSCode,
		"apiToken":           c.apiToken("settings-save"),
	}
	data, err := c.post(ctx, "settings/save", payload, false)
	if err != nil {
		return nil, err
	}
	if isEmpty(data) {
		return &settings, nil
	}
	var saved domain.Settings
	if err := json.Unmarshal(data, &saved); err != nil {
		// Some deployments answer with a row id rather than the settings.
		return &settings, nil
	}
	return &saved, nil
}

// ListOrders returns the raw data block; callers substitute an empty list
// when it is nil.
func (c *Client) ListOrders(ctx context.Context, storeHash string, query domain.OrderListQuery) (json.RawMessage, error) {
	query = query.Normalize()
	payload := map[string]any{
		"storeHash":  storeHash,
		"page":       query.Page,
		"limit":      query.Limit,
		"searchTerm": query.SearchTerm,
		"apiToken":   c.apiToken("order-list"),
	}
	data, err := c.post(ctx, "order/list", payload, false)
	if err != nil {
		return nil, err
	}
	if isEmpty(data) {
		return nil, nil
	}
	return data, nil
}

// ListOrderItems returns the raw item list of one order, or nil when the
// store API has none.
func (c *Client) ListOrderItems(ctx context.Context, storeHash string, orderID string) (json.RawMessage, error) {
	payload := map[string]any{
		"storeHash": storeHash,
		"orderId":   orderID,
		"apiToken":  c.apiToken("order-items"),
	}
	data, err := c.post(ctx, "order/items", payload, false)
	if err != nil {
		return nil, err
	}
	if isEmpty(data) {
		return nil, nil
	}
	return data, nil
}

// post sends payload to path. With requireStatus a 2xx envelope whose status
// is false is an error as well.
func (c *Client) post(ctx context.Context, path string, payload any, requireStatus bool) (json.RawMessage, error) {
	if c.endpoint == "" {
		return nil, &Error{Path: path, Message: "store api endpoint is not configured"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.StoreAPIRequestsTotal.WithLabelValues(path, "error").Inc()
		return nil, fmt.Errorf("failed to call store api %s: %w", path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		metrics.StoreAPIRequestsTotal.WithLabelValues(path, "error").Inc()
		return nil, fmt.Errorf("failed to read store api %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.StoreAPIRequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()
		return nil, &Error{Path: path, Status: resp.StatusCode, Message: truncate(string(respBody), 512)}
	}

	var env envelope
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &env); err != nil {
			metrics.StoreAPIRequestsTotal.WithLabelValues(path, "invalid").Inc()
			return nil, fmt.Errorf("failed to decode store api %s response: %w", path, err)
		}
	}
	if requireStatus && !env.Status {
		metrics.StoreAPIRequestsTotal.WithLabelValues(path, "rejected").Inc()
		return nil, &Error{Path: path, Message: env.Message}
	}

	metrics.StoreAPIRequestsTotal.WithLabelValues(path, "ok").Inc()
	c.logger.Debug().Str("path", path).Str("message", env.Message).Msg("Store API call succeeded")
	return env.Data, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isEmpty(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
