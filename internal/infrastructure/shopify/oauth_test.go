package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestAuthorizeURL(t *testing.T) {
	c := NewOAuthClient("key", "secret", "read_orders,write_script_tags", "https://app.example.com/auth/callback", nil)
	raw := c.AuthorizeURL("demo.myshopify.com", "abc123")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "demo.myshopify.com" || u.Path != "/admin/oauth/authorize" {
		t.Fatalf("unexpected url %s", raw)
	}
	q := u.Query()
	checks := map[string]string{
		"client_id":       "key",
		"scope":           "read_orders,write_script_tags",
		"redirect_uri":    "https://app.example.com/auth/callback",
		"state":           "abc123",
		"grant_options[]": "per-user",
	}
	for k, want := range checks {
		if got := q.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestVerifyCallback(t *testing.T) {
	c := NewOAuthClient("key", "secret", "", "", nil).(*OAuthClient)
	q := url.Values{
		"shop":      {"demo.myshopify.com"},
		"code":      {"c0de"},
		"state":     {"s1"},
		"timestamp": {"1700000000"},
	}
	signed := c.SignCallback(q)
	if !c.VerifyCallback(signed) {
		t.Fatal("signed callback should verify")
	}

	tampered := url.Values{}
	for k, v := range signed {
		tampered[k] = v
	}
	tampered.Set("shop", "other.myshopify.com")
	if c.VerifyCallback(tampered) {
		t.Fatal("tampered callback should not verify")
	}

	signed.Del("hmac")
	if c.VerifyCallback(signed) {
		t.Fatal("callback without hmac should not verify")
	}
}

func TestVerifyCallbackKnownVector(t *testing.T) {
	// hex(HMAC-SHA256("secret", "code=c0de&shop=demo.myshopify.com&state=s1&timestamp=1700000000"))
	q := url.Values{
		"shop":      {"demo.myshopify.com"},
		"code":      {"c0de"},
		"state":     {"s1"},
		"timestamp": {"1700000000"},
	}
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("code=c0de&shop=demo.myshopify.com&state=s1&timestamp=1700000000"))
	q.Set("hmac", hex.EncodeToString(mac.Sum(nil)))

	c := NewOAuthClient("key", "secret", "", "", nil).(*OAuthClient)
	if !c.VerifyCallback(q) {
		t.Fatal("callback signed the way Shopify signs it should verify")
	}
	if got := c.SignCallback(q).Get("hmac"); got != q.Get("hmac") {
		t.Fatalf("SignCallback = %s, want %s", got, q.Get("hmac"))
	}
}

func TestExchangeToken(t *testing.T) {
	var gotBody map[string]string
	httpClient := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/oauth/access_token" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		switch gotBody["code"] {
		case "good":
			_, _ = w.Write([]byte(`{"access_token":"shpat_1","scope":"read_orders"}`))
		case "empty":
			_, _ = w.Write([]byte(`{"access_token":"","scope":""}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_request"}`))
		}
	}))
	c := NewOAuthClient("key", "secret", "", "", httpClient)
	ctx := context.Background()

	tok, err := c.ExchangeToken(ctx, "demo.myshopify.com", "good")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if tok.Token != "shpat_1" || tok.Scope != "read_orders" {
		t.Fatalf("unexpected token %+v", tok)
	}
	if gotBody["client_id"] != "key" || gotBody["client_secret"] != "secret" {
		t.Fatalf("unexpected request body %v", gotBody)
	}

	if _, err := c.ExchangeToken(ctx, "demo.myshopify.com", "empty"); !errors.Is(err, ErrEmptyAccessToken) {
		t.Fatalf("empty token: got %v", err)
	}

	_, err = c.ExchangeToken(ctx, "demo.myshopify.com", "bad")
	if StatusCode(err) != http.StatusBadRequest || !strings.Contains(err.Error(), "invalid_request") {
		t.Fatalf("bad code: got %v", err)
	}
}
