package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/barterly/backend/internal/models"
)

// AdminService covers privileged ledger corrections.
type AdminService interface {
	AdjustBalance(ctx context.Context, memberID uuid.UUID, amount int, source models.CreditSource, reason string) (*models.Transaction, error)
	RefundTransaction(ctx context.Context, transactionID uuid.UUID, reason string) (*models.Transaction, error)
}

// DisputeResolver covers admin dispute rulings on the escrow state machine.
type DisputeResolver interface {
	CancelDispute(ctx context.Context, escrowID uuid.UUID, adminNote string) (*models.Escrow, error)
	ResolveDispute(ctx context.Context, escrowID uuid.UUID, outcome, adminNote string) (*models.Escrow, error)
}

// AdminHandler serves /api/v1/admin endpoints. RequireAdmin gates the routes;
// the handler does not re-check roles.
type AdminHandler struct {
	Svc      AdminService
	Disputes DisputeResolver
	Logger   *slog.Logger
}

type adjustmentRequest struct {
	MemberID string `json:"member_id"`
	Amount   int    `json:"amount"`
	Source   string `json:"source"`
	Reason   string `json:"reason"`
}

// CreateAdjustment handles POST /api/v1/admin/adjustments.
func (h *AdminHandler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member_id")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}
	t, err := h.Svc.AdjustBalance(r.Context(), memberID, req.Amount, models.CreditSource(req.Source), req.Reason)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type refundRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// CreateRefund handles POST /api/v1/admin/refunds.
func (h *AdminHandler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	txID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction_id")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}
	t, err := h.Svc.RefundTransaction(r.Context(), txID, req.Reason)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type disputeRulingRequest struct {
	Outcome   string `json:"outcome"`
	AdminNote string `json:"admin_note"`
}

// CancelDispute handles POST /api/v1/admin/escrows/{id}/dispute/cancel.
func (h *AdminHandler) CancelDispute(w http.ResponseWriter, r *http.Request) {
	escrowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid escrow id")
		return
	}
	var req disputeRulingRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	e, err := h.Disputes.CancelDispute(r.Context(), escrowID, req.AdminNote)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ResolveDispute handles POST /api/v1/admin/escrows/{id}/dispute/resolve.
// Outcome must be "released" or "refunded".
func (h *AdminHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	escrowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid escrow id")
		return
	}
	var req disputeRulingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	e, err := h.Disputes.ResolveDispute(r.Context(), escrowID, req.Outcome, req.AdminNote)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
