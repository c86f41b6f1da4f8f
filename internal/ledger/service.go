package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/barterly/backend/internal/models"
)

// ErrInsufficientFunds is returned when a debit would drive the affected
// tranche, or the total balance, negative.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrMemberNotFound is returned when the target member row does not exist.
var ErrMemberNotFound = errors.New("member not found")

// ErrInvalidSource is returned for a credit source outside the closed set.
var ErrInvalidSource = errors.New("invalid credit source")

// MemberStore is the minimal member repository interface the ledger needs.
type MemberStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Member, error)
	AdjustTranches(ctx context.Context, tx pgx.Tx, id uuid.UUID, earnedDelta, purchasedDelta int) (newBalance int, err error)
}

// TransactionStore is the minimal transaction repository interface the ledger needs.
type TransactionStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
}

// ApplyParams describes one balance-affecting ledger operation.
type ApplyParams struct {
	MemberID    uuid.UUID
	Amount      int // signed; negative = debit
	Type        string
	Source      models.CreditSource
	CanCashout  bool
	Description string
	EscrowID    *uuid.UUID
	RefundOf    *uuid.UUID
}

// Service is the single write path for member balances. Every component that
// moves credits goes through Apply; nothing else touches balance columns.
type Service struct {
	Members      MemberStore
	Transactions TransactionStore
}

func NewService(members MemberStore, transactions TransactionStore) *Service {
	return &Service{Members: members, Transactions: transactions}
}

// Apply locks the member row, applies the tranche delta with a store-side
// non-negativity check, and records the transaction — all inside the caller's
// database transaction, so a failure leaves nothing half-written.
func (s *Service) Apply(ctx context.Context, tx pgx.Tx, p ApplyParams) (*models.Transaction, error) {
	if !p.Source.Valid() {
		return nil, ErrInvalidSource
	}
	if _, err := s.Members.GetByIDForUpdate(ctx, tx, p.MemberID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	earnedDelta, purchasedDelta := trancheDeltas(p.Source, p.Amount)
	newBalance, err := s.Members.AdjustTranches(ctx, tx, p.MemberID, earnedDelta, purchasedDelta)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The row exists and is locked, so zero rows means the
			// conditional update refused a negative tranche.
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}

	t := &models.Transaction{
		ID:                    uuid.New(),
		MemberID:              p.MemberID,
		Amount:                p.Amount,
		Description:           p.Description,
		Type:                  p.Type,
		Source:                p.Source,
		CanCashout:            p.CanCashout,
		RefundOfTransactionID: p.RefundOf,
		EscrowID:              p.EscrowID,
		BalanceAfter:          &newBalance,
	}
	if err := s.Transactions.CreateTx(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// trancheDeltas maps a credit source to the per-tranche delta it implies.
// This is the single tranche-resolution point; untagged movements land in the
// purchased tranche so the balance invariant always holds.
func trancheDeltas(source models.CreditSource, amount int) (earned, purchased int) {
	switch source {
	case models.SourceEarned:
		return amount, 0
	default:
		return 0, amount
	}
}
