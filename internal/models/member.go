package models

import (
	"time"

	"github.com/google/uuid"
)

// Member roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// PlatformFeeAccountID receives the platform's cut of released escrows.
var PlatformFeeAccountID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type Member struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"display_name"`
	PasswordHash     string    `json:"-"`
	Role             string    `json:"role"`
	CreditsBalance   int       `json:"credits_balance"`
	EarnedCredits    int       `json:"earned_credits"`
	PurchasedCredits int       `json:"purchased_credits"`
	PayoutAccountID  string    `json:"payout_account_id,omitempty"`
	IsSystemAccount  bool      `json:"is_system_account"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
