package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barterly/backend/internal/models"
)

type MemberRepo struct {
	pool *pgxpool.Pool
}

func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

func (r *MemberRepo) Create(ctx context.Context, m *models.Member) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO members (id, email, display_name, password_hash, role, credits_balance, earned_credits, purchased_credits, is_system_account)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, m.ID, m.Email, m.DisplayName, m.PasswordHash, m.Role, m.CreditsBalance, m.EarnedCredits, m.PurchasedCredits, m.IsSystemAccount).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *MemberRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, role, credits_balance, earned_credits, purchased_credits, payout_account_id, is_system_account, created_at, updated_at
		FROM members WHERE id = $1
	`, id))
}

func (r *MemberRepo) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, role, credits_balance, earned_credits, purchased_credits, payout_account_id, is_system_account, created_at, updated_at
		FROM members WHERE email = $1
	`, email))
}

// GetByIDForUpdate locks the member row for update. Call within a transaction.
func (r *MemberRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Member, error) {
	return r.scanOne(tx.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, role, credits_balance, earned_credits, purchased_credits, payout_account_id, is_system_account, created_at, updated_at
		FROM members WHERE id = $1 FOR UPDATE
	`, id))
}

// AdjustTranches atomically applies the earned/purchased deltas and keeps
// credits_balance equal to their sum. The WHERE clause refuses any update
// that would drive a tranche negative; callers see that as zero rows.
// Returns the new total balance.
func (r *MemberRepo) AdjustTranches(ctx context.Context, tx pgx.Tx, id uuid.UUID, earnedDelta, purchasedDelta int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE members
		SET earned_credits = earned_credits + $1,
		    purchased_credits = purchased_credits + $2,
		    credits_balance = credits_balance + $1 + $2,
		    updated_at = now()
		WHERE id = $3
		  AND earned_credits + $1 >= 0
		  AND purchased_credits + $2 >= 0
		RETURNING credits_balance
	`, earnedDelta, purchasedDelta, id).Scan(&newBalance)
	return newBalance, err
}

func (r *MemberRepo) List(ctx context.Context) ([]*models.Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, display_name, password_hash, role, credits_balance, earned_credits, purchased_credits, payout_account_id, is_system_account, created_at, updated_at
		FROM members ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.Email, &m.DisplayName, &m.PasswordHash, &m.Role, &m.CreditsBalance, &m.EarnedCredits, &m.PurchasedCredits, &m.PayoutAccountID, &m.IsSystemAccount, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}

func (r *MemberRepo) scanOne(row pgx.Row) (*models.Member, error) {
	var m models.Member
	err := row.Scan(&m.ID, &m.Email, &m.DisplayName, &m.PasswordHash, &m.Role, &m.CreditsBalance, &m.EarnedCredits, &m.PurchasedCredits, &m.PayoutAccountID, &m.IsSystemAccount, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
