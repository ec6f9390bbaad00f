package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-customizer-app/internal/domain"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// SessionClaims is the payload of an App Bridge session token.
type SessionClaims struct {
	Dest string `json:"dest"`
	Sid  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

type shopContextKey struct{}
type claimsContextKey struct{}

// ShopFromContext returns the shop authenticated by SessionTokenMiddleware.
func ShopFromContext(ctx context.Context) string {
	shop, _ := ctx.Value(shopContextKey{}).(string)
	return shop
}

// SessionClaimsFromContext returns the verified session token claims.
func SessionClaimsFromContext(ctx context.Context) *SessionClaims {
	claims, _ := ctx.Value(claimsContextKey{}).(*SessionClaims)
	return claims
}

// ParseSessionToken verifies an HS256 session token signed with apiSecret
// and issued for apiKey, and returns its claims and shop domain.
func ParseSessionToken(raw, apiKey, apiSecret string) (*SessionClaims, string, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return []byte(apiSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(apiKey),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, "", err
	}

	dest, err := url.Parse(claims.Dest)
	if err != nil || !domain.ValidShopDomain(dest.Host) {
		return nil, "", fmt.Errorf("invalid dest claim %q", claims.Dest)
	}
	if iss, err := url.Parse(claims.Issuer); err != nil || iss.Host != dest.Host {
		return nil, "", fmt.Errorf("issuer %q does not match dest", claims.Issuer)
	}
	return claims, dest.Host, nil
}

// SessionTokenMiddleware requires a valid "Authorization: Bearer <session
// token>" header and stores the token's shop in the request context.
func SessionTokenMiddleware(apiKey, apiSecret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err == nil {
				var claims *SessionClaims
				var shop string
				if claims, shop, err = ParseSessionToken(raw, apiKey, apiSecret); err == nil {
					ctx := context.WithValue(r.Context(), shopContextKey{}, shop)
					ctx = context.WithValue(ctx, claimsContextKey{}, claims)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			logger.Warn().
				Err(err).
				Str("path", r.URL.Path).
				Str("requestId", chimw.GetReqID(r.Context())).
				Msg("Rejected session token")
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"error":"Invalid or expired token"}`))
		})
	}
}

var errNoBearer = errors.New("missing bearer token")

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", errNoBearer
	}
	tok := strings.TrimSpace(h[7:])
	if tok == "" {
		return "", errNoBearer
	}
	return tok, nil
}
