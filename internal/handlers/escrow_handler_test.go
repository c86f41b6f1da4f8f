package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/barterly/backend/internal/escrow"
	"github.com/barterly/backend/internal/ledger"
	"github.com/barterly/backend/internal/middleware"
	"github.com/barterly/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockEscrowService struct {
	holdResult *models.Escrow
	err        error
	lastCaller uuid.UUID
}

func (m *mockEscrowService) Hold(_ context.Context, payerID, providerID, listingID uuid.UUID, amount int) (*models.Escrow, error) {
	m.lastCaller = payerID
	if m.err != nil {
		return nil, m.err
	}
	return m.holdResult, nil
}

func (m *mockEscrowService) MarkDelivered(_ context.Context, escrowID, callerID uuid.UUID) (*models.Escrow, error) {
	m.lastCaller = callerID
	if m.err != nil {
		return nil, m.err
	}
	return &models.Escrow{ID: escrowID, Status: models.EscrowStatusDelivered}, nil
}

func (m *mockEscrowService) Release(_ context.Context, escrowID, callerID uuid.UUID) (*models.Escrow, error) {
	m.lastCaller = callerID
	if m.err != nil {
		return nil, m.err
	}
	return &models.Escrow{ID: escrowID, Status: models.EscrowStatusReleased}, nil
}

func (m *mockEscrowService) Dispute(_ context.Context, escrowID, callerID uuid.UUID, reason string) (*models.Escrow, error) {
	m.lastCaller = callerID
	if m.err != nil {
		return nil, m.err
	}
	return &models.Escrow{ID: escrowID, Status: models.EscrowStatusDisputed, DisputeReason: reason}, nil
}

type mockEscrowReader struct {
	escrow *models.Escrow
}

func (m *mockEscrowReader) GetByID(_ context.Context, id uuid.UUID) (*models.Escrow, error) {
	if m.escrow == nil || m.escrow.ID != id {
		return nil, escrow.ErrNotFound
	}
	return m.escrow, nil
}

func (m *mockEscrowReader) ListByMemberID(context.Context, uuid.UUID) ([]*models.Escrow, error) {
	if m.escrow == nil {
		return nil, nil
	}
	return []*models.Escrow{m.escrow}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func doRequest(h http.HandlerFunc, method, target, body string, m *models.Member, pathID string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if m != nil {
		req = req.WithContext(middleware.WithMember(req.Context(), m))
	}
	if pathID != "" {
		req.SetPathValue("id", pathID)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreateEscrow(t *testing.T) {
	payer := &models.Member{ID: uuid.New(), Role: models.RoleMember}
	want := &models.Escrow{ID: uuid.New(), PayerID: payer.ID, Status: models.EscrowStatusHeld, CreditsHeld: 50}
	svc := &mockEscrowService{holdResult: want}
	h := &EscrowHandler{Svc: svc, Reader: &mockEscrowReader{}, Logger: testLogger()}

	body := `{"listing_id":"` + uuid.NewString() + `","provider_id":"` + uuid.NewString() + `","amount":50}`
	rec := doRequest(h.CreateEscrow, "POST", "/api/v1/escrows", body, payer, "")

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body: %s)", rec.Code, rec.Body)
	}
	if svc.lastCaller != payer.ID {
		t.Error("payer must come from the authenticated member, not the body")
	}
	var got models.Escrow
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("escrow id: got %s, want %s", got.ID, want.ID)
	}
}

func TestCreateEscrow_BadRequests(t *testing.T) {
	payer := &models.Member{ID: uuid.New()}
	h := &EscrowHandler{Svc: &mockEscrowService{}, Reader: &mockEscrowReader{}, Logger: testLogger()}

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"bad listing id", `{"listing_id":"nope","provider_id":"` + uuid.NewString() + `","amount":5}`},
		{"bad provider id", `{"listing_id":"` + uuid.NewString() + `","provider_id":"nope","amount":5}`},
		{"zero amount", `{"listing_id":"` + uuid.NewString() + `","provider_id":"` + uuid.NewString() + `","amount":0}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := doRequest(h.CreateEscrow, "POST", "/api/v1/escrows", c.body, payer, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", rec.Code)
			}
		})
	}
}

func TestCreateEscrow_ServiceErrors(t *testing.T) {
	payer := &models.Member{ID: uuid.New()}
	body := `{"listing_id":"` + uuid.NewString() + `","provider_id":"` + uuid.NewString() + `","amount":50}`

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient funds", ledger.ErrInsufficientFunds, http.StatusPaymentRequired},
		{"member missing", ledger.ErrMemberNotFound, http.StatusNotFound},
		{"invalid input", escrow.ErrInvalidInput, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := &EscrowHandler{Svc: &mockEscrowService{err: c.err}, Reader: &mockEscrowReader{}, Logger: testLogger()}
			rec := doRequest(h.CreateEscrow, "POST", "/api/v1/escrows", body, payer, "")
			if rec.Code != c.want {
				t.Errorf("status: got %d, want %d", rec.Code, c.want)
			}
		})
	}
}

func TestGetEscrow_PartyVisibility(t *testing.T) {
	payer := uuid.New()
	provider := uuid.New()
	e := &models.Escrow{ID: uuid.New(), PayerID: payer, ProviderID: provider}
	h := &EscrowHandler{Svc: &mockEscrowService{}, Reader: &mockEscrowReader{escrow: e}, Logger: testLogger()}

	cases := []struct {
		name   string
		member *models.Member
		want   int
	}{
		{"payer sees it", &models.Member{ID: payer}, http.StatusOK},
		{"provider sees it", &models.Member{ID: provider}, http.StatusOK},
		{"admin sees it", &models.Member{ID: uuid.New(), Role: models.RoleAdmin}, http.StatusOK},
		{"stranger forbidden", &models.Member{ID: uuid.New()}, http.StatusForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := doRequest(h.GetEscrow, "GET", "/api/v1/escrows/"+e.ID.String(), "", c.member, e.ID.String())
			if rec.Code != c.want {
				t.Errorf("status: got %d, want %d", rec.Code, c.want)
			}
		})
	}
}

func TestTransitionEndpoints(t *testing.T) {
	member := &models.Member{ID: uuid.New()}
	escrowID := uuid.New()
	h := &EscrowHandler{Svc: &mockEscrowService{}, Reader: &mockEscrowReader{}, Logger: testLogger()}

	cases := []struct {
		name    string
		handler http.HandlerFunc
		body    string
	}{
		{"deliver", h.MarkDelivered, ""},
		{"confirm", h.ConfirmReceipt, ""},
		{"dispute", h.FileDispute, `{"reason":"item never arrived"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := doRequest(c.handler, "POST", "/api/v1/escrows/"+escrowID.String()+"/"+c.name, c.body, member, escrowID.String())
			if rec.Code != http.StatusOK {
				t.Errorf("status: got %d, want 200 (body: %s)", rec.Code, rec.Body)
			}
		})
	}
}

func TestFileDispute_RequiresReason(t *testing.T) {
	member := &models.Member{ID: uuid.New()}
	h := &EscrowHandler{Svc: &mockEscrowService{}, Reader: &mockEscrowReader{}, Logger: testLogger()}
	rec := doRequest(h.FileDispute, "POST", "/api/v1/escrows/x/dispute", `{"reason":""}`, member, uuid.NewString())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestInvalidStateMapsToConflict(t *testing.T) {
	member := &models.Member{ID: uuid.New()}
	h := &EscrowHandler{Svc: &mockEscrowService{err: escrow.ErrInvalidState}, Reader: &mockEscrowReader{}, Logger: testLogger()}
	rec := doRequest(h.ConfirmReceipt, "POST", "/api/v1/escrows/x/confirm", "", member, uuid.NewString())
	if rec.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", rec.Code)
	}
}

func TestUnauthenticated(t *testing.T) {
	h := &EscrowHandler{Svc: &mockEscrowService{}, Reader: &mockEscrowReader{}, Logger: testLogger()}
	rec := doRequest(h.CreateEscrow, "POST", "/api/v1/escrows", `{}`, nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}
