package shopify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"storefront-customizer-app/internal/domain"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

func newGateway(httpClient *http.Client) *AdminGateway {
	return NewAdminGateway(goshopify.App{ApiKey: "key", ApiSecret: "secret"}, httpClient, "2025-04", DefaultRetries, zerolog.Nop())
}

func TestAPIVersion(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), "2025-01"},
		{time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), "2025-04"},
		{time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC), "2025-07"},
		{time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), "2025-10"},
	}
	for _, tt := range tests {
		if got := VersionForTime(tt.at); got != tt.want {
			t.Errorf("VersionForTime(%s) = %s, want %s", tt.at.Format("2006-01-02"), got, tt.want)
		}
	}
	if got := ResolveAPIVersion("2024-10", time.Now()); got != "2024-10" {
		t.Errorf("configured version not kept: %s", got)
	}
}

func TestRESTSendsTokenAndVersion(t *testing.T) {
	httpClient := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Shopify-Access-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/admin/api/2025-04/shop.json" || r.Header.Get("X-Original-Host") != "demo.myshopify.com" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"shop":{"id":42}}`))
	}))
	g := newGateway(httpClient)

	var out struct {
		Shop struct {
			ID int64 `json:"id"`
		} `json:"shop"`
	}
	if err := g.REST(context.Background(), "demo.myshopify.com", "tok", http.MethodGet, "shop.json", nil, &out); err != nil {
		t.Fatalf("REST: %v", err)
	}
	if out.Shop.ID != 42 {
		t.Fatalf("id = %d", out.Shop.ID)
	}
}

func TestRESTErrorCarriesStatus(t *testing.T) {
	httpClient := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":{"address":["is taken"]}}`))
	}))
	g := newGateway(httpClient)

	err := g.REST(context.Background(), "demo.myshopify.com", "tok", http.MethodPost, "webhooks.json", map[string]any{"webhook": map[string]string{}}, nil)
	var respErr goshopify.ResponseError
	if !errors.As(err, &respErr) {
		t.Fatalf("expected ResponseError, got %v", err)
	}
	if StatusCode(err) != http.StatusUnprocessableEntity || !strings.Contains(err.Error(), "address: is taken") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRESTRetriesThrottled(t *testing.T) {
	var calls int32
	httpClient := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	g := newGateway(httpClient)

	if err := g.REST(context.Background(), "demo.myshopify.com", "tok", http.MethodGet, "shop.json", nil, nil); err != nil {
		t.Fatalf("REST: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestGraphQL(t *testing.T) {
	httpClient := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/api/2025-04/graphql.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"shop":{"name":"Demo"}}}`))
	}))
	g := newGateway(httpClient)

	var out struct {
		Shop struct {
			Name string `json:"name"`
		} `json:"shop"`
	}
	if err := g.GraphQL(context.Background(), "demo.myshopify.com", "tok", `query { shop { name } }`, nil, &out); err != nil {
		t.Fatalf("GraphQL: %v", err)
	}
	if out.Shop.Name != "Demo" {
		t.Fatalf("name = %q", out.Shop.Name)
	}
}

func TestGraphQLErrors(t *testing.T) {
	httpClient := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"Access denied","extensions":{"code":"ACCESS_DENIED"}}]}`))
	}))
	g := newGateway(httpClient)

	err := g.GraphQL(context.Background(), "demo.myshopify.com", "tok", `{ shop { name } }`, nil, nil)
	var respErr goshopify.ResponseError
	if !errors.As(err, &respErr) || !strings.Contains(err.Error(), "Access denied") {
		t.Fatalf("expected ResponseError, got %v", err)
	}
	if StatusCode(err) != http.StatusOK {
		t.Fatalf("status = %d, want 200 for graphql errors", StatusCode(err))
	}
}

func TestGraphQLRetriesThrottled(t *testing.T) {
	var calls int32
	httpClient := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(`{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"shop":{"name":"Demo"}}}`))
	}))
	g := newGateway(httpClient)

	var out struct {
		Shop struct {
			Name string `json:"name"`
		} `json:"shop"`
	}
	if err := g.GraphQL(context.Background(), "demo.myshopify.com", "tok", `query { shop { name } }`, nil, &out); err != nil {
		t.Fatalf("GraphQL: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 || out.Shop.Name != "Demo" {
		t.Fatalf("calls = %d name = %q", got, out.Shop.Name)
	}
}

func TestGraphQLUnauthorizedStatus(t *testing.T) {
	httpClient := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":"[API] Invalid API key or access token"}`))
	}))
	g := newGateway(httpClient)

	err := g.GraphQL(context.Background(), "demo.myshopify.com", "revoked", `{ shop { name } }`, nil, nil)
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("status = %d (%v), want 401", StatusCode(err), err)
	}
}

func TestGraphQLRejectsMalformedDocument(t *testing.T) {
	var calls int32
	httpClient := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	g := newGateway(httpClient)

	if err := g.GraphQL(context.Background(), "demo.myshopify.com", "tok", `query { shop { name }`, nil, nil); err == nil {
		t.Fatal("expected parse error")
	}
	if calls != 0 {
		t.Fatal("malformed document should not be sent")
	}
}

func TestTokenManagerProbe(t *testing.T) {
	httpClient := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-Shopify-Access-Token") {
		case "good":
			_, _ = w.Write([]byte(`{"shop":{}}`))
		case "revoked":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	tm := NewTokenManager(newGateway(httpClient), zerolog.Nop())
	ctx := context.Background()

	if res, err := tm.Probe(ctx, "demo.myshopify.com", "good"); err != nil || res != domain.ProbeValid {
		t.Fatalf("good: %v %v", res, err)
	}
	if res, err := tm.Probe(ctx, "demo.myshopify.com", "revoked"); err != nil || res != domain.ProbeRejected {
		t.Fatalf("revoked: %v %v", res, err)
	}
	if _, err := tm.Probe(ctx, "demo.myshopify.com", "flaky"); err == nil {
		t.Fatal("upstream failure should be reported as an error")
	}
}
