package admin

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/barterly/backend/internal/ledger"
	"github.com/barterly/backend/internal/models"
)

var (
	// ErrNotFound is returned when the referenced transaction does not exist.
	ErrNotFound = errors.New("transaction not found")
	// ErrNotRefundable is returned when the target is not a debit.
	ErrNotRefundable = errors.New("only debit transactions can be refunded")
	// ErrAlreadyProcessed is returned when the double-refund guard trips.
	ErrAlreadyProcessed = errors.New("transaction already refunded")
	// ErrInvalidInput is returned for a zero adjustment or bad source.
	ErrInvalidInput = errors.New("invalid adjustment input")
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TransactionStore is the minimal transaction repository interface for refunds.
type TransactionStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Transaction, error)
	MarkAdminRefundedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
}

// Ledger is the balance write path.
type Ledger interface {
	Apply(ctx context.Context, tx pgx.Tx, p ledger.ApplyParams) (*models.Transaction, error)
}

// Service implements privileged ledger corrections. Both operations are
// ordinary ledger writes plus an audit trail; neither bypasses the tranche
// invariants.
type Service struct {
	Pool         TxBeginner
	Transactions TransactionStore
	Ledger       Ledger
}

func NewService(pool TxBeginner, transactions TransactionStore, ledgerSvc Ledger) *Service {
	return &Service{Pool: pool, Transactions: transactions, Ledger: ledgerSvc}
}

// AdjustBalance applies a signed delta to the selected tranche, recording an
// admin_adjustment entry. Negative deltas are rejected by the ledger when they
// would drive the tranche negative.
func (s *Service) AdjustBalance(ctx context.Context, memberID uuid.UUID, amount int, source models.CreditSource, reason string) (*models.Transaction, error) {
	if amount == 0 || !source.Valid() {
		return nil, ErrInvalidInput
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	t, err := s.Ledger.Apply(ctx, tx, ledger.ApplyParams{
		MemberID: memberID, Amount: amount,
		Type: models.TxTypeAdminAdjustment, Source: source,
		CanCashout:  source == models.SourceEarned && amount > 0,
		Description: reason,
	})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// RefundTransaction reverses a debit once. It credits abs(amount) back to the
// tranche named by the original's credit source (defaulting to purchased),
// then flips admin_refunded in the same database transaction; the flag is the
// idempotency key, so a concurrent second refund loses the conditional update
// and rolls back with ErrAlreadyProcessed.
func (s *Service) RefundTransaction(ctx context.Context, transactionID uuid.UUID, reason string) (*models.Transaction, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	orig, err := s.Transactions.GetByIDForUpdate(ctx, tx, transactionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if orig.Amount >= 0 {
		return nil, ErrNotRefundable
	}
	if orig.AdminRefunded {
		return nil, ErrAlreadyProcessed
	}

	source := orig.Source
	if source == models.SourceNone {
		source = models.SourcePurchased
	}

	refund, err := s.Ledger.Apply(ctx, tx, ledger.ApplyParams{
		MemberID: orig.MemberID, Amount: -orig.Amount,
		Type: models.TxTypeAdminRefund, Source: source,
		CanCashout:  source == models.SourceEarned,
		Description: reason,
		RefundOf:    &orig.ID,
	})
	if err != nil {
		return nil, err
	}

	ok, err := s.Transactions.MarkAdminRefundedTx(ctx, tx, orig.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyProcessed
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return refund, nil
}
