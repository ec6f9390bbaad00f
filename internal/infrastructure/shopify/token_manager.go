package shopify

import (
	"context"
	"fmt"
	"net/http"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/infrastructure/metrics"

	"github.com/rs/zerolog"
)

// TokenManager checks whether a stored offline token is still accepted.
type TokenManager struct {
	gateway *AdminGateway
	logger  zerolog.Logger
}

func NewTokenManager(gateway *AdminGateway, logger zerolog.Logger) *TokenManager {
	return &TokenManager{
		gateway: gateway,
		logger:  logger,
	}
}

// Probe makes a lightweight shop.json call. Only a 401 means the token was
// revoked; every other failure is returned as an error so callers can fail soft.
func (tm *TokenManager) Probe(ctx context.Context, shopDomain string, token string) (domain.ProbeResult, error) {
	if token == "" {
		return domain.ProbeRejected, nil
	}

	err := tm.gateway.REST(ctx, shopDomain, token, http.MethodGet, "shop.json", nil, nil)
	if err == nil {
		metrics.TokenProbesTotal.WithLabelValues("valid").Inc()
		tm.logger.Debug().Str("shop", shopDomain).Msg("Token validation successful")
		return domain.ProbeValid, nil
	}

	if StatusCode(err) == http.StatusUnauthorized {
		metrics.TokenProbesTotal.WithLabelValues("rejected").Inc()
		tm.logger.Warn().Str("shop", shopDomain).Msg("Token validation failed: token is invalid or revoked")
		return domain.ProbeRejected, nil
	}

	metrics.TokenProbesTotal.WithLabelValues("error").Inc()
	return domain.ProbeValid, fmt.Errorf("failed to probe token: %w", err)
}
