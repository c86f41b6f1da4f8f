package models

import (
	"time"

	"github.com/google/uuid"
)

// Escrow status enums. released and refunded are terminal.
const (
	EscrowStatusHeld      = "held"
	EscrowStatusDelivered = "delivered"
	EscrowStatusDisputed  = "disputed"
	EscrowStatusReleased  = "released"
	EscrowStatusRefunded  = "refunded"
)

// Dispute status enums.
const (
	DisputeNone      = "none"
	DisputeOpen      = "open"
	DisputeCancelled = "cancelled"
	DisputeResolved  = "resolved"
)

type Escrow struct {
	ID                       uuid.UUID  `json:"id"`
	ListingID                uuid.UUID  `json:"listing_id"`
	PayerID                  uuid.UUID  `json:"payer_id"`
	ProviderID               uuid.UUID  `json:"provider_id"`
	CreditsHeld              int        `json:"credits_held"`
	Status                   string     `json:"status"`
	ReleaseAvailableAt       time.Time  `json:"release_available_at"`
	BuyerConfirmedAt         *time.Time `json:"buyer_confirmed_at,omitempty"`
	ProviderMarkedCompleteAt *time.Time `json:"provider_marked_complete_at,omitempty"`
	DisputeStatus            string     `json:"dispute_status"`
	DisputeReason            string     `json:"dispute_reason,omitempty"`
	DisputedAt               *time.Time `json:"disputed_at,omitempty"`
	ResolvedAt               *time.Time `json:"resolved_at,omitempty"`
	AdminNote                string     `json:"admin_note,omitempty"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// Terminal reports whether the escrow has reached a final disposition.
func (e *Escrow) Terminal() bool {
	return e.Status == EscrowStatusReleased || e.Status == EscrowStatusRefunded
}
