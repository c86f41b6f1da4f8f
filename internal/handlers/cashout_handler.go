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

// CashoutService abstracts the cashout workflow for the handler.
type CashoutService interface {
	Request(ctx context.Context, memberID uuid.UUID, amountCredits int) (*models.CashoutRequest, error)
	Approve(ctx context.Context, requestID uuid.UUID, adminNote string) (*models.CashoutRequest, error)
	Reject(ctx context.Context, requestID uuid.UUID, adminNote string) (*models.CashoutRequest, error)
}

// CashoutReader serves the read-only endpoints.
type CashoutReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.CashoutRequest, error)
	ListByMemberID(ctx context.Context, memberID uuid.UUID) ([]*models.CashoutRequest, error)
}

// CashoutHandler serves /api/v1/cashouts endpoints.
type CashoutHandler struct {
	Svc    CashoutService
	Reader CashoutReader
	Logger *slog.Logger
}

type createCashoutRequest struct {
	Amount int `json:"amount"`
}

// CreateCashout handles POST /api/v1/cashouts.
func (h *CashoutHandler) CreateCashout(w http.ResponseWriter, r *http.Request) {
	m := middleware.MemberFromCtx(r.Context())
	if m == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createCashoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	c, err := h.Svc.Request(r.Context(), m.ID, req.Amount)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ListCashouts handles GET /api/v1/cashouts: the caller's own requests.
func (h *CashoutHandler) ListCashouts(w http.ResponseWriter, r *http.Request) {
	m := middleware.MemberFromCtx(r.Context())
	if m == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.Reader.ListByMemberID(r.Context(), m.ID)
	if err != nil {
		h.Logger.Error("list cashouts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*models.CashoutRequest{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetCashout handles GET /api/v1/cashouts/{id}. Owner or admin only.
func (h *CashoutHandler) GetCashout(w http.ResponseWriter, r *http.Request) {
	m := middleware.MemberFromCtx(r.Context())
	if m == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cashout id")
		return
	}
	c, err := h.Reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "cashout request not found")
		return
	}
	if c.MemberID != m.ID && m.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "not permitted")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type decideCashoutRequest struct {
	AdminNote string `json:"admin_note"`
}

// ApproveCashout handles POST /api/v1/admin/cashouts/{id}/approve.
func (h *CashoutHandler) ApproveCashout(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Svc.Approve)
}

// RejectCashout handles POST /api/v1/admin/cashouts/{id}/reject.
func (h *CashoutHandler) RejectCashout(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Svc.Reject)
}

func (h *CashoutHandler) decide(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID, string) (*models.CashoutRequest, error)) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cashout id")
		return
	}
	var req decideCashoutRequest
	if r.Body != nil {
		// admin_note is optional; an empty body is fine
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	c, err := fn(r.Context(), id, req.AdminNote)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
