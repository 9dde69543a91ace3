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

// Referral statuses.
const (
	StatusPending    = "pending"
	StatusContacted  = "contacted"
	StatusCompleted  = "completed"
	StatusIneligible = "ineligible"
)

// Credit statuses.
const (
	CreditPending    = "pending"
	CreditCredited   = "credited"
	CreditIneligible = "ineligible"
)

// Referral is a row of the referrals table.
type Referral struct {
	ID                 uuid.UUID
	PendingReferralID  *uuid.UUID
	ReferrerName       string
	ReferrerPhone      string
	ReferrerCustomerID *int64
	RefereeName        string
	RefereePhone       string
	RefereeEmail       *string
	RefereeCustomerID  *int64
	Status             string
	FirstJobID         *int64
	FirstJobDate       *time.Time
	JobAmountCents     *int64
	CreditStatus       *string
	CreditAmountCents  *int64
	CreditIssuedAt     *time.Time
	CreditNotes        *string
	SubmittedAt        time.Time
	ContactedAt        *time.Time
	JobCompletedAt     *time.Time
}

// PendingReferral is a landing visit recorded before the referee books.
type PendingReferral struct {
	ID                  uuid.UUID
	TrackingCookie      string
	ReferrerCustomerID  int64
	ReferrerName        string
	RefereeName         string
	RefereeEmail        *string
	RefereePhone        *string
	ReferralID          *uuid.UUID
	ConvertedAt         *time.Time
	ConvertedToReferral bool
	CreatedAt           time.Time
}

// ReferralCode maps a referrer (ServiceTitan customer) to a shareable code.
type ReferralCode struct {
	ID            uuid.UUID
	CustomerID    int64
	CustomerName  string
	CustomerPhone string
	Code          string
}

// ConversionFields are written to a referral when a booking converts it.
type ConversionFields struct {
	RefereeName       string
	RefereePhone      string
	RefereeEmail      *string
	RefereeCustomerID *int64
	FirstJobID        int64
	FirstJobDate      time.Time
	ContactedAt       time.Time
}

// ListFilter narrows the admin referral listing.
type ListFilter struct {
	Status       string
	CreditStatus string
	Limit        int
	Offset       int
}

// Repository provides referral persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new referral repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const referralColumns = `id, pending_referral_id, referrer_name, referrer_phone, referrer_customer_id,
	referee_name, referee_phone, referee_email, referee_customer_id, status, first_job_id, first_job_date,
	job_amount_cents, credit_status, credit_amount_cents, credit_issued_at, credit_notes, submitted_at,
	contacted_at, job_completed_at`

func scanReferral(row pgx.Row) (Referral, error) {
	var r Referral
	err := row.Scan(&r.ID, &r.PendingReferralID, &r.ReferrerName, &r.ReferrerPhone, &r.ReferrerCustomerID,
		&r.RefereeName, &r.RefereePhone, &r.RefereeEmail, &r.RefereeCustomerID, &r.Status, &r.FirstJobID,
		&r.FirstJobDate, &r.JobAmountCents, &r.CreditStatus, &r.CreditAmountCents, &r.CreditIssuedAt,
		&r.CreditNotes, &r.SubmittedAt, &r.ContactedAt, &r.JobCompletedAt)
	return r, err
}

const pendingColumns = `id, tracking_cookie, referrer_customer_id, referrer_name, referee_name, referee_email,
	referee_phone, referral_id, converted_at, converted_to_referral, created_at`

func scanPending(row pgx.Row) (PendingReferral, error) {
	var p PendingReferral
	err := row.Scan(&p.ID, &p.TrackingCookie, &p.ReferrerCustomerID, &p.ReferrerName, &p.RefereeName,
		&p.RefereeEmail, &p.RefereePhone, &p.ReferralID, &p.ConvertedAt, &p.ConvertedToReferral, &p.CreatedAt)
	return p, err
}

// GetByID loads a referral.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Referral, error) {
	ref, err := scanReferral(r.pool.QueryRow(ctx, `SELECT `+referralColumns+` FROM referrals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Referral{}, apperr.NotFound("referral not found")
	}
	if err != nil {
		return Referral{}, fmt.Errorf("get referral: %w", err)
	}
	return ref, nil
}

// List returns referrals newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Referral, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+referralColumns+`
		FROM referrals
		WHERE ($1 = '' OR status = $1)
			AND ($2 = '' OR credit_status = $2)
		ORDER BY submitted_at DESC
		LIMIT $3 OFFSET $4
	`, f.Status, f.CreditStatus, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	var out []Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// GetReferralCode loads a referral code row by its public code.
func (r *Repository) GetReferralCode(ctx context.Context, code string) (ReferralCode, error) {
	var rc ReferralCode
	err := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, customer_name, customer_phone, code
		FROM referral_codes WHERE code = $1
	`, code).Scan(&rc.ID, &rc.CustomerID, &rc.CustomerName, &rc.CustomerPhone, &rc.Code)
	if errors.Is(err, pgx.ErrNoRows) {
		return ReferralCode{}, apperr.NotFound("referral code not found")
	}
	if err != nil {
		return ReferralCode{}, fmt.Errorf("get referral code: %w", err)
	}
	return rc, nil
}

// ReferrerPhone returns the phone on file for a referrer, or "" when the
// referrer has no referral code.
func (r *Repository) ReferrerPhone(ctx context.Context, customerID int64) (string, error) {
	return referrerPhone(ctx, r.pool, customerID)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func referrerPhone(ctx context.Context, q rowQuerier, customerID int64) (string, error) {
	var phone string
	err := q.QueryRow(ctx, `SELECT customer_phone FROM referral_codes WHERE customer_id = $1`, customerID).Scan(&phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get referrer phone: %w", err)
	}
	return phone, nil
}

// CreatePending inserts a landing visit.
func (r *Repository) CreatePending(ctx context.Context, p PendingReferral) (PendingReferral, error) {
	created, err := scanPending(r.pool.QueryRow(ctx, `
		INSERT INTO pending_referrals (id, tracking_cookie, referrer_customer_id, referrer_name,
			referee_name, referee_email, referee_phone, referral_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+pendingColumns,
		p.ID, p.TrackingCookie, p.ReferrerCustomerID, p.ReferrerName, p.RefereeName, p.RefereeEmail,
		p.RefereePhone, p.ReferralID))
	if err != nil {
		return PendingReferral{}, fmt.Errorf("create pending referral: %w", err)
	}
	return created, nil
}

// Submit inserts a manually submitted referral together with the pending row
// that lets a later booking convert it.
func (r *Repository) Submit(ctx context.Context, ref Referral, pending PendingReferral) (Referral, error) {
	var created Referral
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		created, err = insertReferral(ctx, tx, ref)
		if err != nil {
			return err
		}
		pending.ReferralID = &created.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO pending_referrals (id, tracking_cookie, referrer_customer_id, referrer_name,
				referee_name, referee_email, referee_phone, referral_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, pending.ID, pending.TrackingCookie, pending.ReferrerCustomerID, pending.ReferrerName,
			pending.RefereeName, pending.RefereeEmail, pending.RefereePhone, pending.ReferralID)
		return err
	})
	if err != nil {
		return Referral{}, fmt.Errorf("submit referral: %w", err)
	}
	return created, nil
}

func insertReferral(ctx context.Context, tx pgx.Tx, ref Referral) (Referral, error) {
	return scanReferral(tx.QueryRow(ctx, `
		INSERT INTO referrals (id, pending_referral_id, referrer_name, referrer_phone, referrer_customer_id,
			referee_name, referee_phone, referee_email, referee_customer_id, status, first_job_id,
			first_job_date, contacted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+referralColumns,
		ref.ID, ref.PendingReferralID, ref.ReferrerName, ref.ReferrerPhone, ref.ReferrerCustomerID,
		ref.RefereeName, ref.RefereePhone, ref.RefereeEmail, ref.RefereeCustomerID, ref.Status,
		ref.FirstJobID, ref.FirstJobDate, ref.ContactedAt))
}

// CompleteByJob moves the contacted referral whose first job is jobID to
// completed. ok is false when no contacted referral matches.
func (r *Repository) CompleteByJob(ctx context.Context, jobID, amountCents int64, completedAt time.Time) (Referral, bool, error) {
	ref, err := scanReferral(r.pool.QueryRow(ctx, `
		UPDATE referrals
		SET status = 'completed',
			job_amount_cents = $2,
			job_completed_at = $3,
			credit_status = COALESCE(credit_status, 'pending'),
			updated_at = now()
		WHERE first_job_id = $1 AND status = 'contacted'
		RETURNING `+referralColumns, jobID, amountCents, completedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return Referral{}, false, nil
	}
	if err != nil {
		return Referral{}, false, fmt.Errorf("complete referral: %w", err)
	}
	return ref, true, nil
}

// CreditTx is one credit: the guarded referral update and anything written
// through the embedded DBTX commit or roll back together.
type CreditTx interface {
	db.DBTX
	MarkCredited(ctx context.Context, id uuid.UUID, amountCents int64, notes *string, at time.Time) (Referral, bool, error)
}

// RunCredit executes fn in a transaction; any error rolls it back.
func (r *Repository) RunCredit(ctx context.Context, fn func(tx CreditTx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(creditTx{Tx: tx})
	})
}

type creditTx struct {
	pgx.Tx
}

// MarkCredited records a credit unless the referral was already credited or
// ruled ineligible. ok is false when the guard rejected the write. The updated
// row stays locked until the transaction ends, so a concurrent ineligible
// marking waits and then finds it credited.
func (c creditTx) MarkCredited(ctx context.Context, id uuid.UUID, amountCents int64, notes *string, at time.Time) (Referral, bool, error) {
	ref, err := scanReferral(c.QueryRow(ctx, `
		UPDATE referrals
		SET credit_status = 'credited',
			credit_amount_cents = $2,
			credit_notes = COALESCE($3, credit_notes),
			credit_issued_at = $4,
			updated_at = now()
		WHERE id = $1
			AND status <> 'ineligible'
			AND credit_status IS DISTINCT FROM 'credited'
			AND credit_status IS DISTINCT FROM 'ineligible'
		RETURNING `+referralColumns, id, amountCents, notes, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return Referral{}, false, nil
	}
	if err != nil {
		return Referral{}, false, fmt.Errorf("credit referral: %w", err)
	}
	return ref, true, nil
}

// MarkIneligible rules a referral out unless it was already credited.
func (r *Repository) MarkIneligible(ctx context.Context, id uuid.UUID, notes *string) (Referral, bool, error) {
	ref, err := scanReferral(r.pool.QueryRow(ctx, `
		UPDATE referrals
		SET status = 'ineligible',
			credit_status = 'ineligible',
			credit_notes = COALESCE($2, credit_notes),
			updated_at = now()
		WHERE id = $1 AND credit_status IS DISTINCT FROM 'credited'
		RETURNING `+referralColumns, id, notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return Referral{}, false, nil
	}
	if err != nil {
		return Referral{}, false, fmt.Errorf("mark referral ineligible: %w", err)
	}
	return ref, true, nil
}
