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

// SendLogEntry is one row of email_send_log.
type SendLogEntry struct {
	ID                uuid.UUID
	CampaignID        *uuid.UUID
	EmailNumber       *int
	Recipient         string
	Subject           string
	ProviderMessageID *string
	Status            string
	ErrorMessage      *string
	SentAt            time.Time
	OpenedAt          *time.Time
}

// Send log statuses.
const (
	SendStatusSent   = "sent"
	SendStatusFailed = "failed"
)

// Repository persists suppression, opt-outs and the send log.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new email preferences repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IsSuppressed reports whether the address is on the suppression list and why.
func (r *Repository) IsSuppressed(ctx context.Context, email string) (bool, string, error) {
	var reason string
	err := r.pool.QueryRow(ctx, `SELECT reason FROM email_suppression_list WHERE email = $1`, email).Scan(&reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("query suppression list: %w", err)
	}
	return true, reason, nil
}

// Suppress adds an address to the suppression list; re-adding keeps the first reason.
func (r *Repository) Suppress(ctx context.Context, email, reason string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO email_suppression_list (email, reason) VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING
	`, email, reason)
	if err != nil {
		return fmt.Errorf("insert suppression: %w", err)
	}
	return nil
}

// IsUnsubscribed reports whether the recipient opted out.
func (r *Repository) IsUnsubscribed(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM email_unsubscribes WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query unsubscribes: %w", err)
	}
	return exists, nil
}

// Unsubscribe records an opt-out. Repeated opt-outs are no-ops.
func (r *Repository) Unsubscribe(ctx context.Context, email, source string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO email_unsubscribes (email, source) VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING
	`, email, source)
	if err != nil {
		return fmt.Errorf("insert unsubscribe: %w", err)
	}
	return nil
}

// LogSend appends to the send log.
func (r *Repository) LogSend(ctx context.Context, e SendLogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO email_send_log (id, campaign_id, email_number, recipient, subject, provider_message_id, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.CampaignID, e.EmailNumber, e.Recipient, e.Subject, e.ProviderMessageID, e.Status, e.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert send log: %w", err)
	}
	return nil
}

// MarkOpened stamps the first open of a message and returns the campaign it
// belongs to. A nil campaign id means the message was not a drip send or was
// already marked.
func (r *Repository) MarkOpened(ctx context.Context, providerMessageID string, at time.Time) (*uuid.UUID, error) {
	var campaignID *uuid.UUID
	err := r.pool.QueryRow(ctx, `
		UPDATE email_send_log SET opened_at = $2
		WHERE provider_message_id = $1 AND opened_at IS NULL
		RETURNING campaign_id
	`, providerMessageID, at).Scan(&campaignID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mark send opened: %w", err)
	}
	return campaignID, nil
}

// RecipientForMessage returns the recipient of a logged message.
func (r *Repository) RecipientForMessage(ctx context.Context, providerMessageID string) (string, error) {
	var recipient string
	err := r.pool.QueryRow(ctx, `
		SELECT recipient FROM email_send_log WHERE provider_message_id = $1 LIMIT 1
	`, providerMessageID).Scan(&recipient)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query send log recipient: %w", err)
	}
	return recipient, nil
}
