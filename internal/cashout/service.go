package cashout

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/barterly/backend/internal/ledger"
	"github.com/barterly/backend/internal/models"
	"github.com/barterly/backend/internal/workers"
)

var (
	// ErrBelowMinimum is returned when the requested amount is under the
	// platform minimum.
	ErrBelowMinimum = errors.New("amount below cashout minimum")
	// ErrNotFound is returned when the cashout request does not exist.
	ErrNotFound = errors.New("cashout request not found")
	// ErrAlreadyProcessed is returned when approving or rejecting a request
	// that is no longer pending.
	ErrAlreadyProcessed = errors.New("cashout request already processed")
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the minimal cashout repository interface for the workflow.
type Store interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.CashoutRequest) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.CashoutRequest, error)
	DecideTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status, adminNote string) (bool, error)
}

// Ledger is the balance write path.
type Ledger interface {
	Apply(ctx context.Context, tx pgx.Tx, p ledger.ApplyParams) (*models.Transaction, error)
}

// Notifier emits best-effort events.
type Notifier interface {
	Emit(ctx context.Context, event string, payload any)
}

// EnqueuePayoutTxFunc enqueues a payout submission within the given database
// transaction. Provided by main using river.Client.InsertTx.
type EnqueuePayoutTxFunc func(ctx context.Context, tx pgx.Tx, args workers.SubmitPayoutArgs) error

// Service converts earned credits into pending real-money payout requests.
// The held amount leaves earned_credits at request time and only returns on
// rejection.
type Service struct {
	Pool          TxBeginner
	Cashouts      Store
	Ledger        Ledger
	EnqueuePayout EnqueuePayoutTxFunc
	Notify        Notifier
	Logger        *slog.Logger
}

func NewService(pool TxBeginner, cashouts Store, ledgerSvc Ledger, enqueuePayout EnqueuePayoutTxFunc, notify Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Pool: pool, Cashouts: cashouts, Ledger: ledgerSvc, EnqueuePayout: enqueuePayout, Notify: notify, Logger: logger}
}

// Request places a pending cashout and debits earned credits immediately.
// The ledger's conditional update rejects the hold if earned < amount, so two
// concurrent requests can never both succeed against the same tranche.
func (s *Service) Request(ctx context.Context, memberID uuid.UUID, amountCredits int) (*models.CashoutRequest, error) {
	if amountCredits < models.MinCashoutCredits {
		return nil, ErrBelowMinimum
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	hold, err := s.Ledger.Apply(ctx, tx, ledger.ApplyParams{
		MemberID: memberID, Amount: -amountCredits,
		Type: models.TxTypeCashoutHold, Source: models.SourceEarned,
		Description: "cashout hold",
	})
	if err != nil {
		return nil, err
	}

	req := &models.CashoutRequest{
		ID:                uuid.New(),
		MemberID:          memberID,
		AmountCredits:     amountCredits,
		Status:            models.CashoutPending,
		HoldTransactionID: hold.ID,
	}
	if err := s.Cashouts.CreateTx(ctx, tx, req); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.emit(ctx, "cashout.requested", req)
	return req, nil
}

// Approve marks a pending request approved and enqueues the external payout in
// the same database transaction. The ledger was already settled at hold time;
// payout submission failures are a worker concern and never touch balances.
func (s *Service) Approve(ctx context.Context, requestID uuid.UUID, adminNote string) (*models.CashoutRequest, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	req, err := s.lock(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	ok, err := s.Cashouts.DecideTx(ctx, tx, requestID, models.CashoutApproved, adminNote)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyProcessed
	}
	if s.EnqueuePayout != nil {
		if err := s.EnqueuePayout(ctx, tx, workers.SubmitPayoutArgs{
			CashoutRequestID: requestID,
			MemberID:         req.MemberID,
			AmountCredits:    req.AmountCredits,
		}); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	req.Status = models.CashoutApproved
	req.AdminNote = adminNote
	s.emit(ctx, "cashout.approved", req)
	return req, nil
}

// Reject reverses the hold: earned credits return via a cashout_reversal entry
// referencing the original hold transaction.
func (s *Service) Reject(ctx context.Context, requestID uuid.UUID, adminNote string) (*models.CashoutRequest, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	req, err := s.lock(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	ok, err := s.Cashouts.DecideTx(ctx, tx, requestID, models.CashoutRejected, adminNote)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyProcessed
	}
	if _, err := s.Ledger.Apply(ctx, tx, ledger.ApplyParams{
		MemberID: req.MemberID, Amount: req.AmountCredits,
		Type: models.TxTypeCashoutReversal, Source: models.SourceEarned, CanCashout: true,
		Description: "cashout rejected", RefundOf: &req.HoldTransactionID,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	req.Status = models.CashoutRejected
	req.AdminNote = adminNote
	s.emit(ctx, "cashout.rejected", req)
	return req, nil
}

func (s *Service) lock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.CashoutRequest, error) {
	req, err := s.Cashouts.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func (s *Service) emit(ctx context.Context, event string, req *models.CashoutRequest) {
	if s.Notify == nil {
		return
	}
	s.Notify.Emit(ctx, event, req)
}
