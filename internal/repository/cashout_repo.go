package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barterly/backend/internal/models"
)

type CashoutRepo struct {
	pool *pgxpool.Pool
}

func NewCashoutRepo(pool *pgxpool.Pool) *CashoutRepo {
	return &CashoutRepo{pool: pool}
}

const cashoutColumns = `id, member_id, amount_credits, status, hold_transaction_id, payout_ref, admin_note, requested_at, decided_at`

func (r *CashoutRepo) CreateTx(ctx context.Context, tx pgx.Tx, c *models.CashoutRequest) error {
	return tx.QueryRow(ctx, `
		INSERT INTO cashout_requests (id, member_id, amount_credits, status, hold_transaction_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING requested_at
	`, c.ID, c.MemberID, c.AmountCredits, c.Status, c.HoldTransactionID).Scan(&c.RequestedAt)
}

func (r *CashoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.CashoutRequest, error) {
	return scanCashout(r.pool.QueryRow(ctx, `
		SELECT `+cashoutColumns+` FROM cashout_requests WHERE id = $1
	`, id))
}

// GetByIDForUpdate locks the request row. Call within a database transaction.
func (r *CashoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.CashoutRequest, error) {
	return scanCashout(tx.QueryRow(ctx, `
		SELECT `+cashoutColumns+` FROM cashout_requests WHERE id = $1 FOR UPDATE
	`, id))
}

// DecideTx moves a pending request to approved or rejected exactly once.
// Returns false when the request was no longer pending.
func (r *CashoutRepo) DecideTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status, adminNote string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE cashout_requests SET status = $2, admin_note = $3, decided_at = now()
		WHERE id = $1 AND status = $4
	`, id, status, adminNote, models.CashoutPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetPayoutRef records the external payout id after the processor accepts it.
func (r *CashoutRepo) SetPayoutRef(ctx context.Context, id uuid.UUID, ref string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE cashout_requests SET payout_ref = $2 WHERE id = $1
	`, id, ref)
	return err
}

func (r *CashoutRepo) ListByMemberID(ctx context.Context, memberID uuid.UUID) ([]*models.CashoutRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+cashoutColumns+` FROM cashout_requests WHERE member_id = $1 ORDER BY requested_at DESC
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CashoutRequest
	for rows.Next() {
		var c models.CashoutRequest
		if err := rows.Scan(&c.ID, &c.MemberID, &c.AmountCredits, &c.Status, &c.HoldTransactionID, &c.PayoutRef, &c.AdminNote, &c.RequestedAt, &c.DecidedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

func scanCashout(row pgx.Row) (*models.CashoutRequest, error) {
	var c models.CashoutRequest
	err := row.Scan(&c.ID, &c.MemberID, &c.AmountCredits, &c.Status, &c.HoldTransactionID, &c.PayoutRef, &c.AdminNote, &c.RequestedAt, &c.DecidedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
