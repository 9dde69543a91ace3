package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Scheduler request statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Request is a row of scheduler_requests, one per booking attempt.
type Request struct {
	ID                        uuid.UUID
	CustomerName              string
	CustomerEmail             string
	CustomerPhone             string
	Address                   string
	City                      string
	State                     string
	Zip                       string
	RequestedService          string
	SpecialInstructions       string
	UTMSource                 *string
	ReferralToken             *string
	ArrivalWindowStart        *time.Time
	ArrivalWindowEnd          *time.Time
	AppointmentStart          *time.Time
	AppointmentEnd            *time.Time
	Status                    string
	ServiceTitanCustomerID    *int64
	ServiceTitanLocationID    *int64
	ServiceTitanJobID         *int64
	ServiceTitanAppointmentID *int64
	JobNumber                 *string
	ErrorMessage              *string
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// Confirmation holds the ServiceTitan ids recorded on success.
type Confirmation struct {
	CustomerID    int64
	LocationID    int64
	JobID         int64
	AppointmentID *int64
	JobNumber     string
}

// TrackingNumber maps a utm_source to a ServiceTitan campaign.
type TrackingNumber struct {
	ID                     uuid.UUID
	UTMSource              string
	PhoneNumber            string
	Label                  string
	ServiceTitanCampaignID *int64
	Active                 bool
	CreatedAt              time.Time
}

// Repository provides scheduler request persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new booking repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRequest inserts a pending scheduler request.
func (r *Repository) CreateRequest(ctx context.Context, req Request) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduler_requests (id, customer_name, customer_email, customer_phone, address, city, state,
			zip, requested_service, special_instructions, utm_source, referral_token, arrival_window_start,
			arrival_window_end, appointment_start, appointment_end, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 'pending')
	`, req.ID, req.CustomerName, req.CustomerEmail, req.CustomerPhone, req.Address, req.City, req.State,
		req.Zip, req.RequestedService, req.SpecialInstructions, req.UTMSource, req.ReferralToken,
		req.ArrivalWindowStart, req.ArrivalWindowEnd, req.AppointmentStart, req.AppointmentEnd)
	if err != nil {
		return fmt.Errorf("create scheduler request: %w", err)
	}
	return nil
}

// MarkConfirmed records the created job.
func (r *Repository) MarkConfirmed(ctx context.Context, id uuid.UUID, c Confirmation) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scheduler_requests
		SET status = 'confirmed',
			servicetitan_customer_id = $2,
			servicetitan_location_id = $3,
			servicetitan_job_id = $4,
			servicetitan_appointment_id = $5,
			job_number = $6,
			error_message = NULL,
			updated_at = now()
		WHERE id = $1
	`, id, c.CustomerID, c.LocationID, c.JobID, c.AppointmentID, c.JobNumber)
	if err != nil {
		return fmt.Errorf("confirm scheduler request: %w", err)
	}
	return nil
}

// MarkFailed records why the booking failed.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scheduler_requests
		SET status = 'failed', error_message = $2, updated_at = now()
		WHERE id = $1
	`, id, message)
	if err != nil {
		return fmt.Errorf("fail scheduler request: %w", err)
	}
	return nil
}

// List returns scheduler requests newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status string, limit, offset int) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, customer_name, customer_email, customer_phone, address, city, state, zip,
			requested_service, special_instructions, utm_source, referral_token, arrival_window_start,
			arrival_window_end, appointment_start, appointment_end, status, servicetitan_customer_id,
			servicetitan_location_id, servicetitan_job_id, servicetitan_appointment_id, job_number,
			error_message, created_at, updated_at
		FROM scheduler_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list scheduler requests: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var q Request
		if err := rows.Scan(&q.ID, &q.CustomerName, &q.CustomerEmail, &q.CustomerPhone, &q.Address, &q.City,
			&q.State, &q.Zip, &q.RequestedService, &q.SpecialInstructions, &q.UTMSource, &q.ReferralToken,
			&q.ArrivalWindowStart, &q.ArrivalWindowEnd, &q.AppointmentStart, &q.AppointmentEnd, &q.Status,
			&q.ServiceTitanCustomerID, &q.ServiceTitanLocationID, &q.ServiceTitanJobID,
			&q.ServiceTitanAppointmentID, &q.JobNumber, &q.ErrorMessage, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan scheduler request: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// CampaignForSource returns the campaign mapped to an active tracking number,
// or nil when there is none.
func (r *Repository) CampaignForSource(ctx context.Context, utmSource string) (*int64, error) {
	var id *int64
	err := r.pool.QueryRow(ctx, `
		SELECT servicetitan_campaign_id FROM tracking_numbers
		WHERE utm_source = $1 AND active
	`, utmSource).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tracking number: %w", err)
	}
	return id, nil
}

// ListTrackingNumbers returns every tracking number.
func (r *Repository) ListTrackingNumbers(ctx context.Context) ([]TrackingNumber, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, utm_source, phone_number, label, servicetitan_campaign_id, active, created_at
		FROM tracking_numbers ORDER BY utm_source
	`)
	if err != nil {
		return nil, fmt.Errorf("list tracking numbers: %w", err)
	}
	defer rows.Close()

	var out []TrackingNumber
	for rows.Next() {
		var t TrackingNumber
		if err := rows.Scan(&t.ID, &t.UTMSource, &t.PhoneNumber, &t.Label, &t.ServiceTitanCampaignID, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tracking number: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertTrackingNumber creates or replaces the mapping for a utm_source.
func (r *Repository) UpsertTrackingNumber(ctx context.Context, t TrackingNumber) (TrackingNumber, error) {
	var out TrackingNumber
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tracking_numbers (utm_source, phone_number, label, servicetitan_campaign_id, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (utm_source) DO UPDATE
		SET phone_number = EXCLUDED.phone_number,
			label = EXCLUDED.label,
			servicetitan_campaign_id = EXCLUDED.servicetitan_campaign_id,
			active = EXCLUDED.active
		RETURNING id, utm_source, phone_number, label, servicetitan_campaign_id, active, created_at
	`, t.UTMSource, t.PhoneNumber, t.Label, t.ServiceTitanCampaignID, t.Active).Scan(
		&out.ID, &out.UTMSource, &out.PhoneNumber, &out.Label, &out.ServiceTitanCampaignID, &out.Active, &out.CreatedAt)
	if err != nil {
		return TrackingNumber{}, fmt.Errorf("upsert tracking number: %w", err)
	}
	return out, nil
}
