package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barterly/backend/internal/models"
)

type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

const escrowColumns = `id, listing_id, payer_id, provider_id, credits_held, status, release_available_at,
	buyer_confirmed_at, provider_marked_complete_at, dispute_status, dispute_reason, disputed_at, resolved_at,
	admin_note, created_at, updated_at`

func (r *EscrowRepo) CreateTx(ctx context.Context, tx pgx.Tx, e *models.Escrow) error {
	return tx.QueryRow(ctx, `
		INSERT INTO escrows (id, listing_id, payer_id, provider_id, credits_held, status, release_available_at, dispute_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, e.ID, e.ListingID, e.PayerID, e.ProviderID, e.CreditsHeld, e.Status, e.ReleaseAvailableAt, e.DisputeStatus).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *EscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	return scanEscrow(r.pool.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrows WHERE id = $1
	`, id))
}

// GetByIDForUpdate locks the escrow row so concurrent transitions serialize.
// Call within a database transaction.
func (r *EscrowRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Escrow, error) {
	return scanEscrow(tx.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrows WHERE id = $1 FOR UPDATE
	`, id))
}

// UpdateTx writes the mutable escrow fields inside the caller's transaction.
func (r *EscrowRepo) UpdateTx(ctx context.Context, tx pgx.Tx, e *models.Escrow) error {
	_, err := tx.Exec(ctx, `
		UPDATE escrows SET status = $2, buyer_confirmed_at = $3, provider_marked_complete_at = $4,
			dispute_status = $5, dispute_reason = $6, disputed_at = $7, resolved_at = $8, admin_note = $9,
			updated_at = now()
		WHERE id = $1
	`, e.ID, e.Status, e.BuyerConfirmedAt, e.ProviderMarkedCompleteAt,
		e.DisputeStatus, e.DisputeReason, e.DisputedAt, e.ResolvedAt, e.AdminNote)
	return err
}

// ListReleasable returns escrows whose release window has elapsed and that are
// still awaiting settlement. Used by the auto-release sweep.
func (r *EscrowRepo) ListReleasable(ctx context.Context, now time.Time, limit int) ([]*models.Escrow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+escrowColumns+` FROM escrows
		WHERE status IN ($1, $2) AND release_available_at <= $3
		ORDER BY release_available_at ASC
		LIMIT $4
	`, models.EscrowStatusHeld, models.EscrowStatusDelivered, now, limit)
	if err != nil {
		return nil, err
	}
	return scanEscrows(rows)
}

func (r *EscrowRepo) ListByMemberID(ctx context.Context, memberID uuid.UUID) ([]*models.Escrow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+escrowColumns+` FROM escrows
		WHERE payer_id = $1 OR provider_id = $1
		ORDER BY created_at DESC
	`, memberID)
	if err != nil {
		return nil, err
	}
	return scanEscrows(rows)
}

func scanEscrow(row pgx.Row) (*models.Escrow, error) {
	var e models.Escrow
	err := row.Scan(&e.ID, &e.ListingID, &e.PayerID, &e.ProviderID, &e.CreditsHeld, &e.Status, &e.ReleaseAvailableAt,
		&e.BuyerConfirmedAt, &e.ProviderMarkedCompleteAt, &e.DisputeStatus, &e.DisputeReason, &e.DisputedAt, &e.ResolvedAt,
		&e.AdminNote, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEscrows(rows pgx.Rows) ([]*models.Escrow, error) {
	defer rows.Close()
	var list []*models.Escrow
	for rows.Next() {
		var e models.Escrow
		if err := rows.Scan(&e.ID, &e.ListingID, &e.PayerID, &e.ProviderID, &e.CreditsHeld, &e.Status, &e.ReleaseAvailableAt,
			&e.BuyerConfirmedAt, &e.ProviderMarkedCompleteAt, &e.DisputeStatus, &e.DisputeReason, &e.DisputedAt, &e.ResolvedAt,
			&e.AdminNote, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
