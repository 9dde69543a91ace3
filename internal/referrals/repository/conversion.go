package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plumbing_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ConversionTx holds the reads and writes of one referral conversion. All
// calls run inside a single database transaction.
type ConversionTx interface {
	LockPending(ctx context.Context, token string) (PendingReferral, error)
	ReferrerPhone(ctx context.Context, customerID int64) (string, error)
	UpdateForConversion(ctx context.Context, id uuid.UUID, f ConversionFields) (bool, error)
	InsertReferral(ctx context.Context, ref Referral) (Referral, error)
	MarkPendingConverted(ctx context.Context, pendingID, referralID uuid.UUID, at time.Time) (bool, error)
}

// RunConversion executes fn in a transaction; any error rolls it back.
func (r *Repository) RunConversion(ctx context.Context, fn func(tx ConversionTx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&conversionTx{tx: tx})
	})
}

type conversionTx struct {
	tx pgx.Tx
}

func (c *conversionTx) LockPending(ctx context.Context, token string) (PendingReferral, error) {
	p, err := scanPending(c.tx.QueryRow(ctx, `
		SELECT `+pendingColumns+` FROM pending_referrals
		WHERE tracking_cookie = $1
		FOR UPDATE
	`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return PendingReferral{}, apperr.NotFound("pending referral not found")
	}
	if err != nil {
		return PendingReferral{}, fmt.Errorf("lock pending referral: %w", err)
	}
	return p, nil
}

func (c *conversionTx) ReferrerPhone(ctx context.Context, customerID int64) (string, error) {
	return referrerPhone(ctx, c.tx, customerID)
}

func (c *conversionTx) UpdateForConversion(ctx context.Context, id uuid.UUID, f ConversionFields) (bool, error) {
	tag, err := c.tx.Exec(ctx, `
		UPDATE referrals
		SET referee_name = CASE WHEN $2 = '' THEN referee_name ELSE $2 END,
			referee_phone = $3,
			referee_email = COALESCE($4, referee_email),
			referee_customer_id = $5,
			status = 'contacted',
			first_job_id = $6,
			first_job_date = $7,
			contacted_at = $8,
			updated_at = now()
		WHERE id = $1
	`, id, f.RefereeName, f.RefereePhone, f.RefereeEmail, f.RefereeCustomerID, f.FirstJobID, f.FirstJobDate, f.ContactedAt)
	if err != nil {
		return false, fmt.Errorf("update referral for conversion: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertReferral returns unique violations unwrapped so callers can detect a
// concurrent conversion of the same pending row.
func (c *conversionTx) InsertReferral(ctx context.Context, ref Referral) (Referral, error) {
	return insertReferral(ctx, c.tx, ref)
}

func (c *conversionTx) MarkPendingConverted(ctx context.Context, pendingID, referralID uuid.UUID, at time.Time) (bool, error) {
	tag, err := c.tx.Exec(ctx, `
		UPDATE pending_referrals
		SET converted_at = $3, converted_to_referral = TRUE, referral_id = $2
		WHERE id = $1 AND converted_at IS NULL
	`, pendingID, referralID, at)
	if err != nil {
		return false, fmt.Errorf("mark pending referral converted: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
