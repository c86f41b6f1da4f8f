package admin

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/barterly/backend/internal/ledger"
	"github.com/barterly/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks. The transaction store here also backs the real
// ledger.Service, so refunds observe the entries they create.
// ---------------------------------------------------------------------------

type noopTx struct{ pgx.Tx }

func (noopTx) Commit(context.Context) error   { return nil }
func (noopTx) Rollback(context.Context) error { return nil }

type fakePool struct{}

func (fakePool) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

type mockMembers struct {
	mu      sync.Mutex
	members map[uuid.UUID]*models.Member
}

func newMockMembers(ms ...*models.Member) *mockMembers {
	m := &mockMembers{members: make(map[uuid.UUID]*models.Member)}
	for _, mem := range ms {
		cp := *mem
		m.members[mem.ID] = &cp
	}
	return m
}

func (m *mockMembers) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *mem
	return &cp, nil
}

func (m *mockMembers) AdjustTranches(_ context.Context, _ pgx.Tx, id uuid.UUID, earnedDelta, purchasedDelta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if mem.EarnedCredits+earnedDelta < 0 || mem.PurchasedCredits+purchasedDelta < 0 {
		return 0, pgx.ErrNoRows
	}
	mem.EarnedCredits += earnedDelta
	mem.PurchasedCredits += purchasedDelta
	mem.CreditsBalance = mem.EarnedCredits + mem.PurchasedCredits
	return mem.CreditsBalance, nil
}

func (m *mockMembers) get(id uuid.UUID) models.Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.members[id]
}

type mockTransactions struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*models.Transaction
}

func newMockTransactions() *mockTransactions {
	return &mockTransactions{entries: make(map[uuid.UUID]*models.Transaction)}
}

func (m *mockTransactions) CreateTx(_ context.Context, _ pgx.Tx, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.entries[t.ID] = &cp
	return nil
}

func (m *mockTransactions) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.entries[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

// MarkAdminRefundedTx mirrors the SQL conditional update: only unrefunded
// debits flip.
func (m *mockTransactions) MarkAdminRefundedTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.entries[id]
	if !ok || t.AdminRefunded || t.Amount >= 0 {
		return false, nil
	}
	t.AdminRefunded = true
	return true, nil
}

func (m *mockTransactions) byType(txType string) []*models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Transaction
	for _, e := range m.entries {
		if e.Type == txType {
			out = append(out, e)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

type fixture struct {
	svc     *Service
	ledger  *ledger.Service
	members *mockMembers
	txs     *mockTransactions
}

func newFixture(earned, purchased int) (*fixture, uuid.UUID) {
	memberID := uuid.New()
	members := newMockMembers(&models.Member{
		ID:               memberID,
		EarnedCredits:    earned,
		PurchasedCredits: purchased,
		CreditsBalance:   earned + purchased,
	})
	txs := newMockTransactions()
	ledgerSvc := ledger.NewService(members, txs)
	return &fixture{
		svc:     NewService(fakePool{}, txs, ledgerSvc),
		ledger:  ledgerSvc,
		members: members,
		txs:     txs,
	}, memberID
}

// debit records a hold-style debit directly through the ledger, standing in
// for the operation being corrected.
func (f *fixture) debit(t *testing.T, memberID uuid.UUID, amount int, source models.CreditSource) *models.Transaction {
	t.Helper()
	entry, err := f.ledger.Apply(context.Background(), noopTx{}, ledger.ApplyParams{
		MemberID: memberID, Amount: -amount, Type: models.TxTypeEscrowHold, Source: source,
	})
	if err != nil {
		t.Fatalf("seed debit: %v", err)
	}
	return entry
}

// ---------------------------------------------------------------------------
// AdjustBalance
// ---------------------------------------------------------------------------

func TestAdjustBalance_Credit(t *testing.T) {
	f, memberID := newFixture(0, 0)

	entry, err := f.svc.AdjustBalance(context.Background(), memberID, 25, models.SourceEarned, "support goodwill")
	if err != nil {
		t.Fatalf("AdjustBalance: %v", err)
	}
	if entry.Type != models.TxTypeAdminAdjustment || !entry.CanCashout {
		t.Errorf("entry: got type=%s cashout=%v, want admin_adjustment/true", entry.Type, entry.CanCashout)
	}
	if got := f.members.get(memberID).EarnedCredits; got != 25 {
		t.Errorf("earned: got %d, want 25", got)
	}
}

func TestAdjustBalance_DebitRespectsTranche(t *testing.T) {
	f, memberID := newFixture(10, 100)

	// Positive purchased adjustments are not cashout-eligible.
	entry, err := f.svc.AdjustBalance(context.Background(), memberID, 5, models.SourcePurchased, "promo")
	if err != nil {
		t.Fatalf("AdjustBalance: %v", err)
	}
	if entry.CanCashout {
		t.Error("purchased adjustment must not be cashout-eligible")
	}

	// A debit past the tranche is refused.
	_, err = f.svc.AdjustBalance(context.Background(), memberID, -50, models.SourceEarned, "clawback")
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got: %v", err)
	}
}

func TestAdjustBalance_InvalidInput(t *testing.T) {
	f, memberID := newFixture(0, 0)

	if _, err := f.svc.AdjustBalance(context.Background(), memberID, 0, models.SourceEarned, "noop"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero amount: expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.AdjustBalance(context.Background(), memberID, 5, models.CreditSource("bogus"), "x"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad source: expected ErrInvalidInput, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// RefundTransaction
// ---------------------------------------------------------------------------

func TestRefundTransaction(t *testing.T) {
	f, memberID := newFixture(0, 100)
	orig := f.debit(t, memberID, 40, models.SourcePurchased)

	refund, err := f.svc.RefundTransaction(context.Background(), orig.ID, "service not rendered")
	if err != nil {
		t.Fatalf("RefundTransaction: %v", err)
	}
	if refund.Amount != 40 || refund.Source != models.SourcePurchased {
		t.Errorf("refund entry: got amount=%d source=%s, want 40/purchased", refund.Amount, refund.Source)
	}
	if refund.RefundOfTransactionID == nil || *refund.RefundOfTransactionID != orig.ID {
		t.Error("refund should reference the original transaction")
	}
	if got := f.members.get(memberID).PurchasedCredits; got != 100 {
		t.Errorf("purchased after refund: got %d, want 100", got)
	}
}

func TestRefundTransaction_DoubleRefund(t *testing.T) {
	f, memberID := newFixture(0, 100)
	orig := f.debit(t, memberID, 40, models.SourcePurchased)

	if _, err := f.svc.RefundTransaction(context.Background(), orig.ID, "first"); err != nil {
		t.Fatalf("first refund: %v", err)
	}
	if _, err := f.svc.RefundTransaction(context.Background(), orig.ID, "second"); !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("second refund: expected ErrAlreadyProcessed, got %v", err)
	}
	// The member is made whole exactly once.
	if got := f.members.get(memberID).PurchasedCredits; got != 100 {
		t.Errorf("purchased after double refund attempt: got %d, want 100", got)
	}
	if n := len(f.txs.byType(models.TxTypeAdminRefund)); n != 1 {
		t.Errorf("admin_refund entries: got %d, want 1", n)
	}
}

func TestRefundTransaction_CreditNotRefundable(t *testing.T) {
	f, memberID := newFixture(0, 0)
	credit, err := f.ledger.Apply(context.Background(), noopTx{}, ledger.ApplyParams{
		MemberID: memberID, Amount: 30, Type: models.TxTypeEarning, Source: models.SourceEarned,
	})
	if err != nil {
		t.Fatalf("seed credit: %v", err)
	}
	if _, err := f.svc.RefundTransaction(context.Background(), credit.ID, "nope"); !errors.Is(err, ErrNotRefundable) {
		t.Errorf("expected ErrNotRefundable, got %v", err)
	}
}

func TestRefundTransaction_UntaggedGoesToPurchased(t *testing.T) {
	f, memberID := newFixture(0, 100)
	// Seed an untagged debit by applying with SourceNone.
	orig, err := f.ledger.Apply(context.Background(), noopTx{}, ledger.ApplyParams{
		MemberID: memberID, Amount: -20, Type: models.TxTypeFee, Source: models.SourceNone,
	})
	if err != nil {
		t.Fatalf("seed debit: %v", err)
	}

	refund, err := f.svc.RefundTransaction(context.Background(), orig.ID, "fee waived")
	if err != nil {
		t.Fatalf("RefundTransaction: %v", err)
	}
	if refund.Source != models.SourcePurchased {
		t.Errorf("untagged refund source: got %s, want purchased", refund.Source)
	}
	if refund.CanCashout {
		t.Error("purchased refund must not be cashout-eligible")
	}
}

func TestRefundTransaction_NotFound(t *testing.T) {
	f, _ := newFixture(0, 0)
	if _, err := f.svc.RefundTransaction(context.Background(), uuid.New(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
