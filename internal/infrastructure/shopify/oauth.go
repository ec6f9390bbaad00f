package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

var ErrEmptyAccessToken = errors.New("token exchange returned empty access_token")

// OAuthClient implements the authorization code grant for one app.
type OAuthClient struct {
	app        goshopify.App
	httpClient *http.Client
}

// NewOAuthClient builds the install handshake client. redirectURI must be
// registered as an allowed redirection URL of the app.
func NewOAuthClient(apiKey, apiSecret, scopes, redirectURI string, httpClient *http.Client) ports.OAuthClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OAuthClient{
		app: goshopify.App{
			ApiKey:      apiKey,
			ApiSecret:   apiSecret,
			RedirectUrl: redirectURI,
			Scope:       scopes,
		},
		httpClient: httpClient,
	}
}

// AuthorizeURL builds the per-user grant URL the merchant is sent to.
func (c *OAuthClient) AuthorizeURL(shop string, state string) string {
	q := url.Values{}
	q.Set("client_id", c.app.ApiKey)
	q.Set("scope", c.app.Scope)
	q.Set("redirect_uri", c.app.RedirectUrl)
	q.Set("state", state)
	q.Set("grant_options[]", "per-user")
	return fmt.Sprintf("https://%s/admin/oauth/authorize?%s", shop, q.Encode())
}

// VerifyCallback checks the hex hmac Shopify adds to the callback query.
func (c *OAuthClient) VerifyCallback(query url.Values) bool {
	if query.Get("hmac") == "" || c.app.ApiSecret == "" {
		return false
	}
	ok, err := c.app.VerifyAuthorizationURL(&url.URL{RawQuery: query.Encode()})
	return err == nil && ok
}

// SignCallback adds the hmac parameter to query, computed over the same
// message VerifyCallback checks. Used by tests and local tooling.
func (c *OAuthClient) SignCallback(query url.Values) url.Values {
	signed := url.Values{}
	for k, v := range query {
		if k == "hmac" || k == "signature" {
			continue
		}
		signed[k] = append([]string(nil), v...)
	}
	message, _ := url.QueryUnescape(signed.Encode())
	mac := hmac.New(sha256.New, []byte(c.app.ApiSecret))
	mac.Write([]byte(message))
	signed.Set("hmac", hex.EncodeToString(mac.Sum(nil)))
	return signed
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

// ExchangeToken trades a one-time authorization code for an access token.
// App.GetAccessToken drops the granted scope, so the request is issued on a
// go-shopify client directly.
func (c *OAuthClient) ExchangeToken(ctx context.Context, shop string, code string) (*domain.AccessToken, error) {
	client, err := goshopify.NewClient(c.app, shop, "", goshopify.WithHTTPClient(c.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	data := map[string]string{
		"client_id":     c.app.ApiKey,
		"client_secret": c.app.ApiSecret,
		"code":          code,
	}
	req, err := client.NewRequest(ctx, http.MethodPost, "admin/oauth/access_token", data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	var tr accessTokenResponse
	if err := client.Do(req, &tr); err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, ErrEmptyAccessToken
	}
	return &domain.AccessToken{Token: tr.AccessToken, Scope: tr.Scope}, nil
}
