package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barterly/backend/internal/models"
)

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const txColumns = `id, member_id, amount, description, tx_type, credit_source, can_cashout, admin_refunded, refund_of_transaction_id, escrow_id, balance_after, created_at`

// CreateTx inserts a ledger transaction inside the given database transaction.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (id, member_id, amount, description, tx_type, credit_source, can_cashout, refund_of_transaction_id, escrow_id, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, t.ID, t.MemberID, t.Amount, t.Description, t.Type, t.Source, t.CanCashout, t.RefundOfTransactionID, t.EscrowID, t.BalanceAfter).Scan(&t.CreatedAt)
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `
		SELECT `+txColumns+` FROM transactions WHERE id = $1
	`, id))
}

// GetByIDForUpdate locks the transaction row. Call within a database transaction.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Transaction, error) {
	return scanTransaction(tx.QueryRow(ctx, `
		SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE
	`, id))
}

// MarkAdminRefundedTx flips admin_refunded exactly once. Returns false when the
// flag was already set, which callers treat as the double-refund guard tripping.
func (r *TransactionRepo) MarkAdminRefundedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE transactions SET admin_refunded = TRUE
		WHERE id = $1 AND admin_refunded = FALSE AND amount < 0
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TransactionRepo) ListByMemberID(ctx context.Context, memberID uuid.UUID, limit int) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+txColumns+` FROM transactions WHERE member_id = $1 ORDER BY created_at DESC LIMIT $2
	`, memberID, limit)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

// ListByEscrowIDTx returns all ledger entries recorded against an escrow,
// oldest first, inside the caller's database transaction.
func (r *TransactionRepo) ListByEscrowIDTx(ctx context.Context, tx pgx.Tx, escrowID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+txColumns+` FROM transactions WHERE escrow_id = $1 ORDER BY created_at ASC
	`, escrowID)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.MemberID, &t.Amount, &t.Description, &t.Type, &t.Source, &t.CanCashout, &t.AdminRefunded, &t.RefundOfTransactionID, &t.EscrowID, &t.BalanceAfter, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTransactions(rows pgx.Rows) ([]*models.Transaction, error) {
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.MemberID, &t.Amount, &t.Description, &t.Type, &t.Source, &t.CanCashout, &t.AdminRefunded, &t.RefundOfTransactionID, &t.EscrowID, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
