package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/barterly/backend/internal/middleware"
	"github.com/barterly/backend/internal/models"
)

// TransactionReader lists a member's ledger history.
type TransactionReader interface {
	ListByMemberID(ctx context.Context, memberID uuid.UUID, limit int) ([]*models.Transaction, error)
}

// MemberHandler serves the authenticated member's own profile and history.
type MemberHandler struct {
	Transactions TransactionReader
	Logger       *slog.Logger
}

type memberProfile struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	DisplayName      string `json:"display_name"`
	Role             string `json:"role"`
	CreditsBalance   int    `json:"credits_balance"`
	EarnedCredits    int    `json:"earned_credits"`
	PurchasedCredits int    `json:"purchased_credits"`
}

// Me handles GET /api/v1/members/me.
func (h *MemberHandler) Me(w http.ResponseWriter, r *http.Request) {
	m := middleware.MemberFromCtx(r.Context())
	if m == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, memberProfile{
		ID:               m.ID.String(),
		Email:            m.Email,
		DisplayName:      m.DisplayName,
		Role:             m.Role,
		CreditsBalance:   m.CreditsBalance,
		EarnedCredits:    m.EarnedCredits,
		PurchasedCredits: m.PurchasedCredits,
	})
}

const transactionHistoryLimit = 100

// MyTransactions handles GET /api/v1/members/me/transactions: the caller's
// ledger entries, newest first.
func (h *MemberHandler) MyTransactions(w http.ResponseWriter, r *http.Request) {
	m := middleware.MemberFromCtx(r.Context())
	if m == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.Transactions.ListByMemberID(r.Context(), m.ID, transactionHistoryLimit)
	if err != nil {
		h.Logger.Error("list transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*models.Transaction{}
	}
	writeJSON(w, http.StatusOK, list)
}
