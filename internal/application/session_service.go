package application

import (
	"context"
	"fmt"
	"time"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// probeTimeout bounds a shared token probe, which outlives the request that
// started it.
const probeTimeout = 10 * time.Second

// SessionService owns the per-shop session lifecycle and decides whether a
// stored token is still usable.
type SessionService struct {
	repo     ports.SessionRepository
	prober   ports.TokenProber
	cache    ports.ProbeCache
	cacheTTL time.Duration
	probes   singleflight.Group
	now      func() time.Time
	logger   zerolog.Logger
}

// NewSessionService creates the session adapter. cache may be nil; a zero
// cacheTTL disables caching of successful probes.
func NewSessionService(
	repo ports.SessionRepository,
	prober ports.TokenProber,
	cache ports.ProbeCache,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) *SessionService {
	return &SessionService{
		repo:     repo,
		prober:   prober,
		cache:    cache,
		cacheTTL: cacheTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// UpsertSession stores the token for shop, replacing any previous one.
func (s *SessionService) UpsertSession(ctx context.Context, shop, accessToken, scope string, expires *time.Time) (*domain.Session, error) {
	session := &domain.Session{
		Shop:        shop,
		AccessToken: accessToken,
		Scope:       scope,
		Expires:     expires,
	}
	if err := s.repo.UpsertSession(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to save session")
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	s.forget(ctx, shop)
	return session, nil
}

// GetValidSession returns the shop's session only when its token still
// works. A token the platform rejects with 401 is deleted; any other probe
// failure keeps the row but reports no session. A non-nil error means the
// session store failed or ctx ended first.
func (s *SessionService) GetValidSession(ctx context.Context, shop string) (*domain.Session, error) {
	if shop == "" {
		return nil, nil
	}
	session, err := s.repo.GetSession(ctx, shop)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to load session")
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || session.AccessToken == "" {
		return nil, nil
	}
	if session.IsExpired(s.now()) {
		s.logger.Info().Str("shop", shop).Msg("Session expired")
		return nil, nil
	}

	if s.cache != nil && s.cacheTTL > 0 {
		ok, err := s.cache.RecentlyValid(ctx, shop)
		if err != nil {
			s.logger.Warn().Err(err).Str("shop", shop).Msg("Probe cache unavailable")
		} else if ok {
			return session, nil
		}
	}

	// Probes are keyed by token so a reinstall mid-probe is never confused
	// with the token being checked. The probe runs detached from ctx so one
	// caller giving up does not fail the others waiting on it.
	key := shop + "\x00" + session.AccessToken
	token := session.AccessToken
	ch := s.probes.DoChan(key, func() (interface{}, error) {
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
		defer cancel()
		return s.prober.Probe(probeCtx, shop, token)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		s.logger.Warn().Err(res.Err).Str("shop", shop).Msg("Session validation failed")
		return nil, nil
	}

	switch res.Val.(domain.ProbeResult) {
	case domain.ProbeRejected:
		deleted, err := s.repo.DeleteStaleSession(ctx, shop, session.AccessToken)
		if err != nil {
			s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to delete revoked session")
		} else if deleted {
			s.logger.Info().Str("shop", shop).Msg("Deleted session with revoked token")
		}
		s.forget(ctx, shop)
		return nil, nil
	default:
		if s.cache != nil && s.cacheTTL > 0 {
			if err := s.cache.MarkValid(ctx, shop, s.cacheTTL); err != nil {
				s.logger.Warn().Err(err).Str("shop", shop).Msg("Failed to cache probe result")
			}
		}
		return session, nil
	}
}

// GetSession returns the stored session without probing it.
func (s *SessionService) GetSession(ctx context.Context, shop string) (*domain.Session, error) {
	session, err := s.repo.GetSession(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

func (s *SessionService) DeleteSession(ctx context.Context, shop string) error {
	if err := s.repo.DeleteSession(ctx, shop); err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to delete session")
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.forget(ctx, shop)
	return nil
}

// Ping reports whether the session store is reachable.
func (s *SessionService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *SessionService) forget(ctx context.Context, shop string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Forget(ctx, shop); err != nil {
		s.logger.Warn().Err(err).Str("shop", shop).Msg("Failed to clear probe cache")
	}
}
