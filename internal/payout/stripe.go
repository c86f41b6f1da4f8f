package payout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/transfer"
)

type Config struct {
	SecretKey string
	Currency  string
}

// Client submits real-money transfers for approved cashouts. Credits are
// pegged 1:1 to the currency unit, so amount_credits maps to whole units.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &Client{cfg: cfg}
}

// CreateTransfer sends amountCredits (in whole currency units) to the member's
// connected account and returns the transfer id. The cashout request id rides
// along as metadata and transfer group for reconciliation.
func (c *Client) CreateTransfer(_ context.Context, destinationAccount string, amountCredits int, cashoutRequestID uuid.UUID) (string, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(int64(amountCredits) * 100),
		Currency:      stripe.String(c.cfg.Currency),
		Destination:   stripe.String(destinationAccount),
		TransferGroup: stripe.String("cashout_" + cashoutRequestID.String()),
	}
	params.AddMetadata("cashout_request_id", cashoutRequestID.String())
	tr, err := transfer.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe transfer: %w", err)
	}
	return tr.ID, nil
}
