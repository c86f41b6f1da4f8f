package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/barterly/backend/internal/middleware"
	"github.com/barterly/backend/internal/models"
)

// EscrowService abstracts the escrow state machine for the handler.
type EscrowService interface {
	Hold(ctx context.Context, payerID, providerID, listingID uuid.UUID, amount int) (*models.Escrow, error)
	MarkDelivered(ctx context.Context, escrowID, callerID uuid.UUID) (*models.Escrow, error)
	Release(ctx context.Context, escrowID, callerID uuid.UUID) (*models.Escrow, error)
	Dispute(ctx context.Context, escrowID, callerID uuid.UUID, reason string) (*models.Escrow, error)
}

// EscrowReader serves the read-only endpoints.
type EscrowReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	ListByMemberID(ctx context.Context, memberID uuid.UUID) ([]*models.Escrow, error)
}

// EscrowHandler serves /api/v1/escrows endpoints.
type EscrowHandler struct {
	Svc    EscrowService
	Reader EscrowReader
	Logger *slog.Logger
}

type createEscrowRequest struct {
	ListingID  string `json:"listing_id"`
	ProviderID string `json:"provider_id"`
	Amount     int    `json:"amount"`
}

// CreateEscrow handles POST /api/v1/escrows: the payer commits credits
// against a listing.
func (h *EscrowHandler) CreateEscrow(w http.ResponseWriter, r *http.Request) {
	m := middleware.MemberFromCtx(r.Context())
	if m == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createEscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid listing_id")
		return
	}
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid provider_id")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be > 0")
		return
	}

	e, err := h.Svc.Hold(r.Context(), m.ID, providerID, listingID, req.Amount)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// GetEscrow handles GET /api/v1/escrows/{id}. Only the parties and admins see it.
func (h *EscrowHandler) GetEscrow(w http.ResponseWriter, r *http.Request) {
	m, escrowID, ok := h.memberAndID(w, r)
	if !ok {
		return
	}
	e, err := h.Reader.GetByID(r.Context(), escrowID)
	if err != nil {
		writeError(w, http.StatusNotFound, "escrow not found")
		return
	}
	if m.ID != e.PayerID && m.ID != e.ProviderID && m.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "not permitted for this escrow")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ListEscrows handles GET /api/v1/escrows: escrows where the caller is a party.
func (h *EscrowHandler) ListEscrows(w http.ResponseWriter, r *http.Request) {
	m := middleware.MemberFromCtx(r.Context())
	if m == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.Reader.ListByMemberID(r.Context(), m.ID)
	if err != nil {
		h.Logger.Error("list escrows", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*models.Escrow{}
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkDelivered handles POST /api/v1/escrows/{id}/deliver (provider only).
func (h *EscrowHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	m, escrowID, ok := h.memberAndID(w, r)
	if !ok {
		return
	}
	e, err := h.Svc.MarkDelivered(r.Context(), escrowID, m.ID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ConfirmReceipt handles POST /api/v1/escrows/{id}/confirm (buyer release).
func (h *EscrowHandler) ConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	m, escrowID, ok := h.memberAndID(w, r)
	if !ok {
		return
	}
	e, err := h.Svc.Release(r.Context(), escrowID, m.ID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type disputeRequest struct {
	Reason string `json:"reason"`
}

// FileDispute handles POST /api/v1/escrows/{id}/dispute (either party).
func (h *EscrowHandler) FileDispute(w http.ResponseWriter, r *http.Request) {
	m, escrowID, ok := h.memberAndID(w, r)
	if !ok {
		return
	}
	var req disputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}
	e, err := h.Svc.Dispute(r.Context(), escrowID, m.ID, req.Reason)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *EscrowHandler) memberAndID(w http.ResponseWriter, r *http.Request) (*models.Member, uuid.UUID, bool) {
	m := middleware.MemberFromCtx(r.Context())
	if m == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid escrow id")
		return nil, uuid.Nil, false
	}
	return m, id, true
}
