package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/ports"

	"github.com/jackc/pgx/v5"
)

type pgSessionRepository struct {
	db *DB
}

// NewSessionRepository stores sessions in the postgres sessions table.
func NewSessionRepository(db *DB) ports.SessionRepository {
	return &pgSessionRepository{db: db}
}

// UpsertSession keeps one row per shop; a reinstall replaces the token.
func (r *pgSessionRepository) UpsertSession(ctx context.Context, s *domain.Session) error {
	const q = `
INSERT INTO sessions (shop, access_token, scope, expires, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (shop) DO UPDATE
SET access_token = EXCLUDED.access_token,
    scope        = EXCLUDED.scope,
    expires      = EXCLUDED.expires,
    updated_at   = now()
RETURNING created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q, s.Shop, s.AccessToken, s.Scope, s.Expires).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) GetSession(ctx context.Context, shop string) (*domain.Session, error) {
	const q = `SELECT shop, access_token, scope, expires, created_at, updated_at FROM sessions WHERE shop = $1`
	var s domain.Session
	err := r.db.Pool.QueryRow(ctx, q, shop).Scan(&s.Shop, &s.AccessToken, &s.Scope, &s.Expires, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (r *pgSessionRepository) DeleteSession(ctx context.Context, shop string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE shop = $1`, shop); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) DeleteStaleSession(ctx context.Context, shop string, accessToken string) (bool, error) {
	ct, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE shop = $1 AND access_token = $2`, shop, accessToken)
	if err != nil {
		return false, fmt.Errorf("failed to delete stale session: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *pgSessionRepository) Ping(ctx context.Context) error {
	return r.db.Ready(ctx)
}
