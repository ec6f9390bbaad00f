package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const (
	testKey    = "app-key"
	testSecret = "app-secret"
)

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims SessionClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func validClaims() SessionClaims {
	return SessionClaims{
		Dest: "https://demo.myshopify.com",
		Sid:  "sid-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://demo.myshopify.com/admin",
			Subject:   "42",
			Audience:  jwt.ClaimStrings{testKey},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
}

func TestParseSessionToken(t *testing.T) {
	claims, shop, err := ParseSessionToken(signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()), testKey, testSecret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if shop != "demo.myshopify.com" || claims.Sid != "sid-1" || claims.Subject != "42" {
		t.Fatalf("shop = %q claims = %+v", shop, claims)
	}
}

func TestParseSessionTokenRejections(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	otherAudience := validClaims()
	otherAudience.Audience = jwt.ClaimStrings{"someone-else"}

	badDest := validClaims()
	badDest.Dest = "https://evil.example.com"
	badDest.Issuer = "https://evil.example.com/admin"

	issuerMismatch := validClaims()
	issuerMismatch.Issuer = "https://other.myshopify.com/admin"

	tests := []struct {
		name string
		raw  string
	}{
		{"expired", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"no expiry", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
		{"wrong secret", signClaims(t, jwt.SigningMethodHS256, []byte("nope"), validClaims())},
		{"wrong audience", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), otherAudience)},
		{"dest not a shop", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), badDest)},
		{"issuer mismatch", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), issuerMismatch)},
		{"hs512", signClaims(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims())},
		{"unsigned", signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims())},
		{"garbage", "a.b.c"},
	}
	for _, tt := range tests {
		if _, _, err := ParseSessionToken(tt.raw, testKey, testSecret); err == nil {
			t.Errorf("%s: accepted", tt.name)
		}
	}
}

func TestSessionTokenMiddleware(t *testing.T) {
	var gotShop string
	var gotClaims *SessionClaims
	h := SessionTokenMiddleware(testKey, testSecret, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotShop = ShopFromContext(r.Context())
		gotClaims = SessionClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/verify", nil)
	req.Header.Set("Authorization", "bearer "+signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotShop != "demo.myshopify.com" || gotClaims == nil || gotClaims.Dest != "https://demo.myshopify.com" {
		t.Fatalf("shop = %q claims = %+v", gotShop, gotClaims)
	}

	for _, header := range []string{"", "Bearer ", "Token abc"} {
		gotShop = ""
		req := httptest.NewRequest(http.MethodPost, "/api/verify", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%q: status = %d, want 401", header, rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") == "" {
			t.Errorf("%q: missing WWW-Authenticate", header)
		}
		if gotShop != "" {
			t.Errorf("%q: handler ran", header)
		}
	}
}
