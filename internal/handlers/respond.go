package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/barterly/backend/internal/admin"
	"github.com/barterly/backend/internal/cashout"
	"github.com/barterly/backend/internal/escrow"
	"github.com/barterly/backend/internal/ledger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Anything unrecognized is a storage failure: logged and surfaced as 500.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, "insufficient funds")
	case errors.Is(err, ledger.ErrMemberNotFound):
		writeError(w, http.StatusNotFound, "member not found")
	case errors.Is(err, escrow.ErrNotFound):
		writeError(w, http.StatusNotFound, "escrow not found")
	case errors.Is(err, cashout.ErrNotFound):
		writeError(w, http.StatusNotFound, "cashout request not found")
	case errors.Is(err, admin.ErrNotFound):
		writeError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, escrow.ErrForbidden):
		writeError(w, http.StatusForbidden, "not permitted for this escrow")
	case errors.Is(err, escrow.ErrInvalidState):
		writeError(w, http.StatusConflict, "operation not valid for current state")
	case errors.Is(err, cashout.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, "cashout request already processed")
	case errors.Is(err, admin.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, "transaction already refunded")
	case errors.Is(err, admin.ErrNotRefundable):
		writeError(w, http.StatusConflict, "only debit transactions can be refunded")
	case errors.Is(err, escrow.ErrInvalidInput), errors.Is(err, admin.ErrInvalidInput),
		errors.Is(err, ledger.ErrInvalidSource):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cashout.ErrBelowMinimum):
		writeError(w, http.StatusBadRequest, "amount below cashout minimum")
	default:
		log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
