package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/barterly/backend/internal/escrow"
	"github.com/barterly/backend/internal/models"
)

const autoReleaseBatchSize = 100

// AutoReleaseArgs is the periodic sweep that settles escrows whose release
// window has elapsed without a buyer confirmation or dispute.
type AutoReleaseArgs struct{}

func (AutoReleaseArgs) Kind() string { return "escrow_auto_release" }

// EscrowReleaser is the escrow service surface the sweep needs.
type EscrowReleaser interface {
	Release(ctx context.Context, escrowID, callerID uuid.UUID) (*models.Escrow, error)
}

// ReleasableLister finds escrows eligible for auto-release.
type ReleasableLister interface {
	ListReleasable(ctx context.Context, now time.Time, limit int) ([]*models.Escrow, error)
}

// AutoReleaseWorker walks eligible escrows and releases each through the same
// state-machine path buyers use, so a concurrent buyer confirm or dispute
// simply wins the row lock and the sweep skips that escrow.
type AutoReleaseWorker struct {
	river.WorkerDefaults[AutoReleaseArgs]
	escrows  EscrowReleaser
	eligible ReleasableLister
	logger   *slog.Logger
}

func NewAutoReleaseWorker(escrows EscrowReleaser, eligible ReleasableLister, logger *slog.Logger) *AutoReleaseWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoReleaseWorker{escrows: escrows, eligible: eligible, logger: logger}
}

func (w *AutoReleaseWorker) Work(ctx context.Context, _ *river.Job[AutoReleaseArgs]) error {
	list, err := w.eligible.ListReleasable(ctx, time.Now(), autoReleaseBatchSize)
	if err != nil {
		return err
	}
	for _, e := range list {
		if _, err := w.escrows.Release(ctx, e.ID, uuid.Nil); err != nil {
			if errors.Is(err, escrow.ErrInvalidState) {
				// Lost the race to a buyer confirm or a fresh dispute.
				continue
			}
			w.logger.Error("auto-release failed", "escrow_id", e.ID, "error", err)
		} else {
			w.logger.Info("escrow auto-released", "escrow_id", e.ID)
		}
	}
	return nil
}
