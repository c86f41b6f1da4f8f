package models

import (
	"time"

	"github.com/google/uuid"
)

// Cashout request status enums.
const (
	CashoutPending  = "pending"
	CashoutApproved = "approved"
	CashoutRejected = "rejected"
)

// MinCashoutCredits is the platform minimum for a cashout request.
const MinCashoutCredits = 20

type CashoutRequest struct {
	ID                uuid.UUID  `json:"id"`
	MemberID          uuid.UUID  `json:"member_id"`
	AmountCredits     int        `json:"amount_credits"`
	Status            string     `json:"status"`
	HoldTransactionID uuid.UUID  `json:"hold_transaction_id"`
	PayoutRef         string     `json:"payout_ref,omitempty"`
	AdminNote         string     `json:"admin_note,omitempty"`
	RequestedAt       time.Time  `json:"requested_at"`
	DecidedAt         *time.Time `json:"decided_at,omitempty"`
}
