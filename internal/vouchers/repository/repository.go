package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Voucher statuses.
const (
	StatusActive   = "active"
	StatusRedeemed = "redeemed"
	StatusExpired  = "expired"
)

// TypeReferralCredit is the voucher type issued when a referral is credited.
const TypeReferralCredit = "referral_credit"

// Voucher is a row of the vouchers table.
type Voucher struct {
	ID                     uuid.UUID
	Code                   string
	VoucherType            string
	CustomerID             *int64
	CustomerName           string
	ReferralID             *uuid.UUID
	DiscountAmountCents    int64
	MinimumJobAmountCents  int64
	Status                 string
	ExpiresAt              time.Time
	RedeemedAt             *time.Time
	RedeemedJobAmountCents *int64
	CreatedAt              time.Time
}

// Repository provides voucher persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new voucher repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const voucherColumns = `id, code, voucher_type, customer_id, customer_name, referral_id, discount_amount_cents,
	minimum_job_amount_cents, status, expires_at, redeemed_at, redeemed_job_amount_cents, created_at`

func scanVoucher(row pgx.Row) (Voucher, error) {
	var v Voucher
	err := row.Scan(&v.ID, &v.Code, &v.VoucherType, &v.CustomerID, &v.CustomerName, &v.ReferralID,
		&v.DiscountAmountCents, &v.MinimumJobAmountCents, &v.Status, &v.ExpiresAt, &v.RedeemedAt,
		&v.RedeemedJobAmountCents, &v.CreatedAt)
	return v, err
}

// GetByCode loads a voucher by its code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Voucher, error) {
	v, err := scanVoucher(r.pool.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, apperr.NotFound("voucher not found")
	}
	if err != nil {
		return Voucher{}, fmt.Errorf("get voucher: %w", err)
	}
	return v, nil
}

// GetByReferralID loads the voucher issued for a referral through q, which
// may be a transaction.
func (r *Repository) GetByReferralID(ctx context.Context, q db.DBTX, referralID uuid.UUID) (Voucher, error) {
	v, err := scanVoucher(q.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE referral_id = $1`, referralID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, apperr.NotFound("voucher not found")
	}
	if err != nil {
		return Voucher{}, fmt.Errorf("get voucher by referral: %w", err)
	}
	return v, nil
}

// Insert creates a voucher through q. inserted is false when the code or the
// referral already has a voucher; the conflict never aborts an enclosing
// transaction.
func (r *Repository) Insert(ctx context.Context, q db.DBTX, v Voucher) (Voucher, bool, error) {
	out, err := scanVoucher(q.QueryRow(ctx, `
		INSERT INTO vouchers (id, code, voucher_type, customer_id, customer_name, referral_id,
			discount_amount_cents, minimum_job_amount_cents, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'active', $9)
		ON CONFLICT DO NOTHING
		RETURNING `+voucherColumns,
		v.ID, v.Code, v.VoucherType, v.CustomerID, v.CustomerName, v.ReferralID,
		v.DiscountAmountCents, v.MinimumJobAmountCents, v.ExpiresAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, false, nil
	}
	if err != nil {
		return Voucher{}, false, fmt.Errorf("insert voucher: %w", err)
	}
	return out, true, nil
}

// Redeem applies the voucher to a job if, and only if, it is still active,
// unexpired and the job meets the minimum. ok is false when no row qualified.
func (r *Repository) Redeem(ctx context.Context, code string, jobAmountCents int64, now time.Time) (Voucher, bool, error) {
	v, err := scanVoucher(r.pool.QueryRow(ctx, `
		UPDATE vouchers
		SET status = 'redeemed', redeemed_at = $3, redeemed_job_amount_cents = $2
		WHERE code = $1
			AND status = 'active'
			AND expires_at > $3
			AND minimum_job_amount_cents <= $2
		RETURNING `+voucherColumns, code, jobAmountCents, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, false, nil
	}
	if err != nil {
		return Voucher{}, false, fmt.Errorf("redeem voucher: %w", err)
	}
	return v, true, nil
}

// MarkExpired flips an active voucher past its expiry to expired.
func (r *Repository) MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE vouchers SET status = 'expired'
		WHERE id = $1 AND status = 'active' AND expires_at <= $2
	`, id, now)
	if err != nil {
		return fmt.Errorf("expire voucher: %w", err)
	}
	return nil
}
