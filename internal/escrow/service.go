package escrow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/barterly/backend/internal/ledger"
	"github.com/barterly/backend/internal/models"
)

var (
	// ErrNotFound is returned when the escrow does not exist.
	ErrNotFound = errors.New("escrow not found")
	// ErrForbidden is returned when the caller is not entitled to the transition.
	ErrForbidden = errors.New("caller not permitted for this escrow")
	// ErrInvalidState is returned when the transition is not legal from the
	// escrow's current status. A concurrent caller that loses the row-lock
	// race observes the new status and gets this error.
	ErrInvalidState = errors.New("operation not valid for escrow state")
	// ErrInvalidInput is returned for malformed hold or dispute parameters.
	ErrInvalidInput = errors.New("invalid escrow input")
)

// feeBasisPoints is the platform's cut of a released escrow: 15%.
// The provider share is floored; the fee absorbs the rounding remainder so
// every release conserves the held total.
const feeBasisPoints = 1500

// transitions is the closed transition table. transition() is the only place
// that consults it; no operation flips a status any other way.
var transitions = map[string]map[string]bool{
	models.EscrowStatusHeld: {
		models.EscrowStatusDelivered: true,
		models.EscrowStatusDisputed:  true,
		models.EscrowStatusReleased:  true,
	},
	models.EscrowStatusDelivered: {
		models.EscrowStatusDisputed: true,
		models.EscrowStatusReleased: true,
	},
	models.EscrowStatusDisputed: {
		models.EscrowStatusHeld:     true,
		models.EscrowStatusReleased: true,
		models.EscrowStatusRefunded: true,
	},
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the minimal escrow repository interface for the state machine.
type Store interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.Escrow) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Escrow, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, e *models.Escrow) error
}

// MemberStore resolves the payer's tranche balances for the hold split.
type MemberStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Member, error)
}

// TransactionLookup finds the hold entries to mirror on refund.
type TransactionLookup interface {
	ListByEscrowIDTx(ctx context.Context, tx pgx.Tx, escrowID uuid.UUID) ([]*models.Transaction, error)
}

// Ledger is the balance write path (§ single source of truth for balances).
type Ledger interface {
	Apply(ctx context.Context, tx pgx.Tx, p ledger.ApplyParams) (*models.Transaction, error)
}

// Notifier emits best-effort events; implementations must never return errors
// into the money path.
type Notifier interface {
	Emit(ctx context.Context, event string, payload any)
}

// Service coordinates fund holding, delivery confirmation, dispute, and
// release/refund for one escrow at a time. Per-escrow serialization comes from
// SELECT ... FOR UPDATE on the escrow row.
type Service struct {
	Pool         TxBeginner
	Escrows      Store
	Members      MemberStore
	Transactions TransactionLookup
	Ledger       Ledger
	Notify       Notifier
	Logger       *slog.Logger

	// HoldDuration is how long after creation an escrow becomes eligible
	// for auto-release.
	HoldDuration time.Duration

	now func() time.Time
}

func NewService(pool TxBeginner, escrows Store, members MemberStore, transactions TransactionLookup, ledgerSvc Ledger, notify Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Pool:         pool,
		Escrows:      escrows,
		Members:      members,
		Transactions: transactions,
		Ledger:       ledgerSvc,
		Notify:       notify,
		Logger:       logger,
		HoldDuration: 72 * time.Hour,
		now:          time.Now,
	}
}

// Hold commits the payer's credits against a listing. The debit drains the
// purchased tranche first, then earned, producing one ledger entry per tranche
// touched so a later refund can mirror the exact split.
func (s *Service) Hold(ctx context.Context, payerID, providerID, listingID uuid.UUID, amount int) (*models.Escrow, error) {
	if amount <= 0 {
		return nil, ErrInvalidInput
	}
	if payerID == providerID {
		return nil, ErrInvalidInput
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	payer, err := s.Members.GetByIDForUpdate(ctx, tx, payerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrMemberNotFound
		}
		return nil, err
	}
	if payer.CreditsBalance < amount {
		return nil, ledger.ErrInsufficientFunds
	}

	purchasedPart := amount
	if payer.PurchasedCredits < purchasedPart {
		purchasedPart = payer.PurchasedCredits
	}
	earnedPart := amount - purchasedPart

	e := &models.Escrow{
		ID:                 uuid.New(),
		ListingID:          listingID,
		PayerID:            payerID,
		ProviderID:         providerID,
		CreditsHeld:        amount,
		Status:             models.EscrowStatusHeld,
		ReleaseAvailableAt: s.now().Add(s.HoldDuration),
		DisputeStatus:      models.DisputeNone,
	}
	if err := s.Escrows.CreateTx(ctx, tx, e); err != nil {
		return nil, err
	}

	if purchasedPart > 0 {
		if _, err := s.Ledger.Apply(ctx, tx, ledger.ApplyParams{
			MemberID: payerID, Amount: -purchasedPart,
			Type: models.TxTypeEscrowHold, Source: models.SourcePurchased,
			Description: "escrow hold", EscrowID: &e.ID,
		}); err != nil {
			return nil, err
		}
	}
	if earnedPart > 0 {
		if _, err := s.Ledger.Apply(ctx, tx, ledger.ApplyParams{
			MemberID: payerID, Amount: -earnedPart,
			Type: models.TxTypeEscrowHold, Source: models.SourceEarned,
			Description: "escrow hold", EscrowID: &e.ID,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.emit(ctx, "escrow.held", e)
	return e, nil
}

// MarkDelivered records the provider's completion claim: held -> delivered.
func (s *Service) MarkDelivered(ctx context.Context, escrowID, callerID uuid.UUID) (*models.Escrow, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	e, err := s.lock(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	if e.ProviderID != callerID {
		return nil, ErrForbidden
	}
	if e.Status != models.EscrowStatusHeld {
		return nil, ErrInvalidState
	}

	now := s.now()
	e.ProviderMarkedCompleteAt = &now
	if err := s.transition(ctx, tx, e, models.EscrowStatusDelivered); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.emit(ctx, "escrow.delivered", e)
	return e, nil
}

// Release settles the escrow in the provider's favor: the provider's earned
// tranche receives 85% of the held credits (floored) and the platform fee
// account receives the remainder. callerID == uuid.Nil means the auto-release
// sweep, which is only legal once the release window has elapsed. A second
// release observes the terminal status under the row lock and fails with
// ErrInvalidState without moving funds.
func (s *Service) Release(ctx context.Context, escrowID, callerID uuid.UUID) (*models.Escrow, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	e, err := s.lock(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	auto := callerID == uuid.Nil
	if !auto && e.PayerID != callerID {
		return nil, ErrForbidden
	}
	if e.Status != models.EscrowStatusHeld && e.Status != models.EscrowStatusDelivered {
		return nil, ErrInvalidState
	}
	if auto && s.now().Before(e.ReleaseAvailableAt) {
		return nil, ErrInvalidState
	}

	if err := s.payProvider(ctx, tx, e); err != nil {
		return nil, err
	}

	if !auto {
		now := s.now()
		e.BuyerConfirmedAt = &now
	}
	if err := s.transition(ctx, tx, e, models.EscrowStatusReleased); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.emit(ctx, "escrow.released", e)
	return e, nil
}

// Dispute freezes the escrow: held|delivered -> disputed. Either party may file.
func (s *Service) Dispute(ctx context.Context, escrowID, callerID uuid.UUID, reason string) (*models.Escrow, error) {
	if reason == "" {
		return nil, ErrInvalidInput
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	e, err := s.lock(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	if callerID != e.PayerID && callerID != e.ProviderID {
		return nil, ErrForbidden
	}
	if e.Status != models.EscrowStatusHeld && e.Status != models.EscrowStatusDelivered {
		return nil, ErrInvalidState
	}

	now := s.now()
	e.DisputeStatus = models.DisputeOpen
	e.DisputeReason = reason
	e.DisputedAt = &now
	if err := s.transition(ctx, tx, e, models.EscrowStatusDisputed); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.emit(ctx, "escrow.disputed", e)
	return e, nil
}

// CancelDispute dismisses an open dispute: disputed -> held. Funds stay held
// and untouched; the escrow returns to the normal delivery flow.
func (s *Service) CancelDispute(ctx context.Context, escrowID uuid.UUID, adminNote string) (*models.Escrow, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	e, err := s.lock(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.EscrowStatusDisputed {
		return nil, ErrInvalidState
	}

	now := s.now()
	e.DisputeStatus = models.DisputeCancelled
	e.DisputeReason = ""
	e.ResolvedAt = &now
	e.AdminNote = adminNote
	if err := s.transition(ctx, tx, e, models.EscrowStatusHeld); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.emit(ctx, "escrow.dispute_cancelled", e)
	return e, nil
}

// ResolveDispute settles a disputed escrow by admin decision: outcome is
// either EscrowStatusReleased (pay the provider, fee applies) or
// EscrowStatusRefunded (return the full held amount to the payer's
// originating tranches).
func (s *Service) ResolveDispute(ctx context.Context, escrowID uuid.UUID, outcome, adminNote string) (*models.Escrow, error) {
	if outcome != models.EscrowStatusReleased && outcome != models.EscrowStatusRefunded {
		return nil, ErrInvalidInput
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	e, err := s.lock(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.EscrowStatusDisputed {
		return nil, ErrInvalidState
	}

	switch outcome {
	case models.EscrowStatusReleased:
		if err := s.payProvider(ctx, tx, e); err != nil {
			return nil, err
		}
	case models.EscrowStatusRefunded:
		if err := s.refundPayer(ctx, tx, e); err != nil {
			return nil, err
		}
	}

	now := s.now()
	e.DisputeStatus = models.DisputeResolved
	e.ResolvedAt = &now
	e.AdminNote = adminNote
	if err := s.transition(ctx, tx, e, outcome); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.emit(ctx, "escrow.resolved", e)
	return e, nil
}

// --- internals ---

// lock fetches the escrow under FOR UPDATE so concurrent transitions serialize.
func (s *Service) lock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Escrow, error) {
	e, err := s.Escrows.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// transition is the single enforcement point for the status table.
func (s *Service) transition(ctx context.Context, tx pgx.Tx, e *models.Escrow, to string) error {
	if !transitions[e.Status][to] {
		return ErrInvalidState
	}
	e.Status = to
	return s.Escrows.UpdateTx(ctx, tx, e)
}

// Split returns the provider share and platform fee for a held amount.
// The provider share is held*85% floored; the fee takes the remainder, so
// share+fee always equals held.
func Split(held int) (providerShare, fee int) {
	providerShare = held * (10000 - feeBasisPoints) / 10000
	fee = held - providerShare
	return providerShare, fee
}

// payProvider credits the provider's earned tranche with the 85% share and
// records the 15% platform fee against the system fee account.
func (s *Service) payProvider(ctx context.Context, tx pgx.Tx, e *models.Escrow) error {
	share, fee := Split(e.CreditsHeld)
	if share > 0 {
		if _, err := s.Ledger.Apply(ctx, tx, ledger.ApplyParams{
			MemberID: e.ProviderID, Amount: share,
			Type: models.TxTypeEscrowRelease, Source: models.SourceEarned, CanCashout: true,
			Description: "escrow release", EscrowID: &e.ID,
		}); err != nil {
			return err
		}
	}
	if fee > 0 {
		if _, err := s.Ledger.Apply(ctx, tx, ledger.ApplyParams{
			MemberID: models.PlatformFeeAccountID, Amount: fee,
			Type: models.TxTypeFee, Source: models.SourceNone,
			Description: "platform fee", EscrowID: &e.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// refundPayer mirrors the original hold entries so every credit returns to the
// tranche it was debited from.
func (s *Service) refundPayer(ctx context.Context, tx pgx.Tx, e *models.Escrow) error {
	entries, err := s.Transactions.ListByEscrowIDTx(ctx, tx, e.ID)
	if err != nil {
		return err
	}
	for _, t := range entries {
		if t.Type != models.TxTypeEscrowHold {
			continue
		}
		if _, err := s.Ledger.Apply(ctx, tx, ledger.ApplyParams{
			MemberID: e.PayerID, Amount: -t.Amount,
			Type: models.TxTypeEscrowRefund, Source: t.Source,
			Description: "escrow refund", EscrowID: &e.ID, RefundOf: &t.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event string, e *models.Escrow) {
	if s.Notify == nil {
		return
	}
	s.Notify.Emit(ctx, event, e)
}
