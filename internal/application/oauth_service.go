package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/ports"

	"github.com/rs/zerolog"
)

var (
	ErrMissingParams = errors.New("missing shop or code")
	ErrInvalidShop   = errors.New("invalid shop domain")
	ErrInvalidHMAC   = errors.New("invalid callback signature")
	ErrInvalidState  = errors.New("invalid or expired state")
	ErrNoSession     = errors.New("no valid session")
)

const stateTTL = 10 * time.Minute

// InstallHook runs after a session has been persisted for a fresh install.
type InstallHook interface {
	Enqueue(ctx context.Context, shop string) error
}

// OAuthService drives the install handshake:
// install-requested -> code-received -> token-exchanged -> session-persisted
// -> provisioning-enqueued -> redirect.
type OAuthService struct {
	oauth    ports.OAuthClient
	states   ports.OAuthStateRepository
	sessions *SessionService
	hook     InstallHook
	scopes   string
	appURL   string
	now      func() time.Time
	logger   zerolog.Logger
}

func NewOAuthService(
	oauth ports.OAuthClient,
	states ports.OAuthStateRepository,
	sessions *SessionService,
	hook InstallHook,
	scopes string,
	appURL string,
	logger zerolog.Logger,
) *OAuthService {
	return &OAuthService{
		oauth:    oauth,
		states:   states,
		sessions: sessions,
		hook:     hook,
		scopes:   scopes,
		appURL:   appURL,
		now:      time.Now,
		logger:   logger,
	}
}

// BeginInstall stores a fresh single-use state for shop and returns the
// authorization URL the merchant must be sent to.
func (s *OAuthService) BeginInstall(ctx context.Context, shop string) (string, error) {
	if shop == "" {
		return "", ErrMissingParams
	}
	if !domain.ValidShopDomain(shop) {
		return "", ErrInvalidShop
	}

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	now := s.now()
	state := &domain.OAuthState{
		State:     hex.EncodeToString(stateBytes),
		Shop:      shop,
		Scopes:    strings.Split(s.scopes, ","),
		ExpiresAt: now.Add(stateTTL),
		CreatedAt: now,
	}
	if err := s.states.SaveState(ctx, state); err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to save oauth state")
		return "", fmt.Errorf("failed to save oauth state: %w", err)
	}

	s.logger.Info().Str("shop", shop).Str("scopes", s.scopes).Msg("Generated OAuth authorization URL")
	return s.oauth.AuthorizeURL(shop, state.State), nil
}

// CompleteInstall validates the callback, exchanges the code, persists the
// session, enqueues provisioning and returns the dashboard URL.
func (s *OAuthService) CompleteInstall(ctx context.Context, query url.Values) (string, error) {
	shop := query.Get("shop")
	code := query.Get("code")
	if shop == "" || code == "" {
		return "", ErrMissingParams
	}
	if !domain.ValidShopDomain(shop) {
		return "", ErrInvalidShop
	}
	if !s.oauth.VerifyCallback(query) {
		s.logger.Warn().Str("shop", shop).Msg("OAuth callback signature verification failed")
		return "", ErrInvalidHMAC
	}

	state, err := s.states.ConsumeState(ctx, query.Get("state"))
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to load oauth state")
		return "", fmt.Errorf("failed to load oauth state: %w", err)
	}
	if state == nil || state.Shop != shop {
		s.logger.Warn().Str("shop", shop).Msg("OAuth callback with unknown state")
		return "", ErrInvalidState
	}

	token, err := s.oauth.ExchangeToken(ctx, shop, code)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to exchange token")
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}

	scope := token.Scope
	if scope == "" {
		scope = s.scopes
	}
	if _, err := s.sessions.UpsertSession(ctx, shop, token.Token, scope, nil); err != nil {
		return "", err
	}
	s.logger.Info().Str("shop", shop).Str("scope", scope).Msg("OAuth token exchange completed")

	if s.hook != nil {
		if err := s.hook.Enqueue(ctx, shop); err != nil {
			s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to enqueue post-install provisioning")
		}
	}

	return fmt.Sprintf("%s/dashboard?shop=%s", s.appURL, url.QueryEscape(shop)), nil
}
