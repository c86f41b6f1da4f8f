package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction type enums. The ledger only ever appends; rows are immutable
// except for the one-shot admin_refunded flag on debits.
const (
	TxTypePurchase        = "purchase"
	TxTypeFee             = "fee"
	TxTypeEarning         = "earning"
	TxTypeEscrowHold      = "escrow_hold"
	TxTypeEscrowRelease   = "escrow_release"
	TxTypeEscrowRefund    = "escrow_refund"
	TxTypeCashoutHold     = "cashout_hold"
	TxTypeCashoutReversal = "cashout_reversal"
	TxTypeAdminAdjustment = "admin_adjustment"
	TxTypeAdminRefund     = "admin_refund"
)

// CreditSource names the tranche a transaction moves credits in or out of.
// It is a closed set; the ledger rejects anything else.
type CreditSource string

const (
	SourceEarned    CreditSource = "earned"
	SourcePurchased CreditSource = "purchased"
	SourceNone      CreditSource = "none"
)

// Valid reports whether s is one of the three known tranches.
func (s CreditSource) Valid() bool {
	switch s {
	case SourceEarned, SourcePurchased, SourceNone:
		return true
	}
	return false
}

type Transaction struct {
	ID                    uuid.UUID    `json:"id"`
	MemberID              uuid.UUID    `json:"member_id"`
	Amount                int          `json:"amount"`
	Description           string       `json:"description"`
	Type                  string       `json:"type"`
	Source                CreditSource `json:"credit_source"`
	CanCashout            bool         `json:"can_cashout"`
	AdminRefunded         bool         `json:"admin_refunded"`
	RefundOfTransactionID *uuid.UUID   `json:"refund_of_transaction_id,omitempty"`
	EscrowID              *uuid.UUID   `json:"escrow_id,omitempty"`
	BalanceAfter          *int         `json:"balance_after,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
}
