package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RateLimitRepo stores one row per admitted request so the sliding window is
// shared across stateless API instances.
type RateLimitRepo struct {
	pool *pgxpool.Pool
}

func NewRateLimitRepo(pool *pgxpool.Pool) *RateLimitRepo {
	return &RateLimitRepo{pool: pool}
}

// CountSince returns the number of admitted hits for key at or after since.
func (r *RateLimitRepo) CountSince(ctx context.Context, key string, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM rate_limit_entries WHERE key = $1 AND created_at >= $2
	`, key, since).Scan(&n)
	return n, err
}

// Insert records an admitted hit for key.
func (r *RateLimitRepo) Insert(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rate_limit_entries (key) VALUES ($1)
	`, key)
	return err
}

// DeleteBefore prunes hits older than cutoff.
func (r *RateLimitRepo) DeleteBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM rate_limit_entries WHERE created_at < $1
	`, cutoff)
	return err
}
