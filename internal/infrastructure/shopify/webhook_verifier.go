package shopify

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

const hmacHeader = "X-Shopify-Hmac-Sha256"

// WebhookVerifier checks X-Shopify-Hmac-Sha256 against the raw request body.
type WebhookVerifier struct {
	app goshopify.App
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{app: goshopify.App{ApiSecret: secret}}
}

// Verify must be given the exact bytes received; re-encoded JSON will not match.
func (v *WebhookVerifier) Verify(body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}

	req := &http.Request{
		Header: http.Header{},
		Body:   io.NopCloser(bytes.NewReader(body)),
	}
	req.Header.Set(hmacHeader, signature)
	ok, err := v.app.VerifyWebhookRequestVerbose(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the header value Shopify would send for body.
func (v *WebhookVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(v.app.ApiSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
