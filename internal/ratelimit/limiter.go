package ratelimit

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// pruneChance is the per-admit probability of kicking off a lazy prune.
const pruneChance = 0.01

// Store is the durable hit log shared across API instances.
type Store interface {
	CountSince(ctx context.Context, key string, since time.Time) (int, error)
	Insert(ctx context.Context, key string) error
	DeleteBefore(ctx context.Context, cutoff time.Time) error
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Remaining int
}

// Limiter is sliding-window admission control over durable storage. It is
// defense in depth only: on any storage error it fails open, because the
// correctness of the money-moving operations must never depend on it.
type Limiter struct {
	Store  Store
	Logger *slog.Logger

	now func() time.Time
}

func NewLimiter(store Store, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{Store: store, Logger: logger, now: time.Now}
}

// Admit counts prior hits for key within the trailing window, denies at or
// above limit, and otherwise records the hit. Pruning of entries older than
// twice the window happens lazily off the admission path.
func (l *Limiter) Admit(ctx context.Context, key string, limit int, window time.Duration) Decision {
	now := l.now()

	n, err := l.Store.CountSince(ctx, key, now.Add(-window))
	if err != nil {
		l.Logger.Warn("rate limit store unavailable, failing open", "key", key, "error", err)
		return Decision{Allowed: true, Remaining: limit}
	}
	if n >= limit {
		return Decision{Allowed: false, Remaining: 0}
	}
	if err := l.Store.Insert(ctx, key); err != nil {
		l.Logger.Warn("rate limit record failed, failing open", "key", key, "error", err)
		return Decision{Allowed: true, Remaining: limit - n - 1}
	}

	if rand.Float64() < pruneChance {
		go l.prune(now.Add(-2 * window))
	}

	return Decision{Allowed: true, Remaining: limit - n - 1}
}

func (l *Limiter) prune(cutoff time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := l.Store.DeleteBefore(ctx, cutoff); err != nil {
		l.Logger.Warn("rate limit prune failed", "error", err)
	}
}
