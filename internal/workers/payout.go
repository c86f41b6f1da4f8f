package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/barterly/backend/internal/models"
)

// SubmitPayoutArgs is enqueued when an admin approves a cashout request.
type SubmitPayoutArgs struct {
	CashoutRequestID uuid.UUID `json:"cashout_request_id"`
	MemberID         uuid.UUID `json:"member_id"`
	AmountCredits    int       `json:"amount_credits"`
}

func (SubmitPayoutArgs) Kind() string { return "submit_payout" }

// PayoutClient submits a real-money transfer to the external processor.
type PayoutClient interface {
	CreateTransfer(ctx context.Context, destinationAccount string, amountCredits int, cashoutRequestID uuid.UUID) (ref string, err error)
}

// PayoutMemberStore resolves the member's external payout destination.
type PayoutMemberStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
}

// PayoutCashoutStore records the processor's transfer reference.
type PayoutCashoutStore interface {
	SetPayoutRef(ctx context.Context, id uuid.UUID, ref string) error
}

// SubmitPayoutWorker bridges approved cashouts to the payout processor. The
// ledger was settled at hold time, so retries here can never move credits; a
// transfer failure is returned to River for its retry policy.
type SubmitPayoutWorker struct {
	river.WorkerDefaults[SubmitPayoutArgs]
	payouts  PayoutClient
	members  PayoutMemberStore
	cashouts PayoutCashoutStore
	logger   *slog.Logger
}

func NewSubmitPayoutWorker(payouts PayoutClient, members PayoutMemberStore, cashouts PayoutCashoutStore, logger *slog.Logger) *SubmitPayoutWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmitPayoutWorker{payouts: payouts, members: members, cashouts: cashouts, logger: logger}
}

func (w *SubmitPayoutWorker) Work(ctx context.Context, job *river.Job[SubmitPayoutArgs]) error {
	args := job.Args

	member, err := w.members.GetByID(ctx, args.MemberID)
	if err != nil {
		return fmt.Errorf("load member for payout: %w", err)
	}
	if member.PayoutAccountID == "" {
		// No processor onboarding yet; the approved request stays
		// payable and operations follows up out of band.
		w.logger.Warn("cashout approved but member has no payout account",
			"cashout_request_id", args.CashoutRequestID, "member_id", args.MemberID)
		return nil
	}

	ref, err := w.payouts.CreateTransfer(ctx, member.PayoutAccountID, args.AmountCredits, args.CashoutRequestID)
	if err != nil {
		return fmt.Errorf("submit payout transfer: %w", err)
	}
	if err := w.cashouts.SetPayoutRef(ctx, args.CashoutRequestID, ref); err != nil {
		return fmt.Errorf("record payout ref: %w", err)
	}
	w.logger.Info("payout submitted", "cashout_request_id", args.CashoutRequestID, "payout_ref", ref)
	return nil
}
