package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plumbing_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Campaign statuses.
const (
	StatusQueued     = "queued"
	StatusEmail1Sent = "email1_sent"
	StatusEmail2Sent = "email2_sent"
	StatusEmail3Sent = "email3_sent"
	StatusCompleted  = "completed"
	StatusPaused     = "paused"
)

// Campaign is a row of referral_nurture_campaigns.
type Campaign struct {
	ID                  uuid.UUID
	CustomerID          int64
	CustomerEmail       string
	CustomerName        string
	OriginalReviewID    *string
	Status              string
	Email1SentAt        *time.Time
	Email2SentAt        *time.Time
	Email3SentAt        *time.Time
	Email4SentAt        *time.Time
	ConsecutiveUnopened int
	PausedAt            *time.Time
	PauseReason         *string
	CompletedAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SentAt returns the send time of email n (1-4).
func (c Campaign) SentAt(n int) *time.Time {
	switch n {
	case 1:
		return c.Email1SentAt
	case 2:
		return c.Email2SentAt
	case 3:
		return c.Email3SentAt
	case 4:
		return c.Email4SentAt
	}
	return nil
}

// Template is an admin-authored email for one slot of a campaign type.
type Template struct {
	ID           uuid.UUID
	CampaignType string
	EmailNumber  int
	Subject      string
	Preheader    string
	HTMLBody     string
	PlainBody    string
	UpdatedAt    time.Time
}

// Repository provides nurture campaign persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new nurture repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const campaignColumns = `id, customer_id, customer_email, customer_name, original_review_id, status,
	email1_sent_at, email2_sent_at, email3_sent_at, email4_sent_at, consecutive_unopened, paused_at,
	pause_reason, completed_at, created_at, updated_at`

func scanCampaign(row pgx.Row) (Campaign, error) {
	var c Campaign
	err := row.Scan(&c.ID, &c.CustomerID, &c.CustomerEmail, &c.CustomerName, &c.OriginalReviewID, &c.Status,
		&c.Email1SentAt, &c.Email2SentAt, &c.Email3SentAt, &c.Email4SentAt, &c.ConsecutiveUnopened, &c.PausedAt,
		&c.PauseReason, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateIfAbsent inserts a queued campaign unless the customer already has
// one; the unique customer_id constraint decides. It returns the campaign id
// and whether this call created it.
func (r *Repository) CreateIfAbsent(ctx context.Context, c Campaign) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO referral_nurture_campaigns (id, customer_id, customer_email, customer_name, original_review_id, status)
		VALUES ($1, $2, $3, $4, $5, 'queued')
		ON CONFLICT (customer_id) DO NOTHING
		RETURNING id
	`, c.ID, c.CustomerID, c.CustomerEmail, c.CustomerName, c.OriginalReviewID).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, fmt.Errorf("create nurture campaign: %w", err)
	}

	err = r.pool.QueryRow(ctx, `SELECT id FROM referral_nurture_campaigns WHERE customer_id = $1`, c.CustomerID).Scan(&id)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("load existing nurture campaign: %w", err)
	}
	return id, false, nil
}

// Get loads a campaign.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM referral_nurture_campaigns WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, apperr.NotFound("campaign not found")
	}
	if err != nil {
		return Campaign{}, fmt.Errorf("get nurture campaign: %w", err)
	}
	return c, nil
}

// ListActive returns campaigns that may still receive mail, oldest first.
func (r *Repository) ListActive(ctx context.Context) ([]Campaign, error) {
	return r.query(ctx, `
		SELECT `+campaignColumns+` FROM referral_nurture_campaigns
		WHERE status IN ('queued', 'email1_sent', 'email2_sent', 'email3_sent')
		ORDER BY created_at
	`)
}

// List returns campaigns newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status string, limit, offset int) ([]Campaign, error) {
	return r.query(ctx, `
		SELECT `+campaignColumns+` FROM referral_nurture_campaigns
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list nurture campaigns: %w", err)
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan nurture campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveProgress writes the post-send state of a campaign if its status is
// still expectedStatus. It reports whether the row was updated.
func (r *Repository) SaveProgress(ctx context.Context, c Campaign, expectedStatus string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE referral_nurture_campaigns
		SET status = $3,
			email1_sent_at = $4,
			email2_sent_at = $5,
			email3_sent_at = $6,
			email4_sent_at = $7,
			consecutive_unopened = $8,
			paused_at = $9,
			pause_reason = $10,
			completed_at = $11,
			updated_at = now()
		WHERE id = $1 AND status = $2
	`, c.ID, expectedStatus, c.Status, c.Email1SentAt, c.Email2SentAt, c.Email3SentAt, c.Email4SentAt,
		c.ConsecutiveUnopened, c.PausedAt, c.PauseReason, c.CompletedAt)
	if err != nil {
		return false, fmt.Errorf("save nurture progress: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Pause pauses a campaign that is neither paused nor completed.
func (r *Repository) Pause(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE referral_nurture_campaigns
		SET status = 'paused', paused_at = $3, pause_reason = $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ('paused', 'completed')
	`, id, reason, at)
	if err != nil {
		return false, fmt.Errorf("pause nurture campaign: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Resume returns a paused campaign to the status implied by the emails
// already sent and clears its unopened streak.
func (r *Repository) Resume(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE referral_nurture_campaigns
		SET status = CASE
				WHEN email3_sent_at IS NOT NULL THEN 'email3_sent'
				WHEN email2_sent_at IS NOT NULL THEN 'email2_sent'
				WHEN email1_sent_at IS NOT NULL THEN 'email1_sent'
				ELSE 'queued'
			END,
			consecutive_unopened = 0,
			paused_at = NULL,
			pause_reason = NULL,
			updated_at = now()
		WHERE id = $1 AND status = 'paused' AND email4_sent_at IS NULL
	`, id)
	if err != nil {
		return false, fmt.Errorf("resume nurture campaign: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ResetUnopened clears the unopened streak after an open.
func (r *Repository) ResetUnopened(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE referral_nurture_campaigns SET consecutive_unopened = 0, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("reset unopened streak: %w", err)
	}
	return nil
}

const templateColumns = `id, campaign_type, email_number, subject, preheader, html_body, plain_body, updated_at`

func scanTemplate(row pgx.Row) (Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.CampaignType, &t.EmailNumber, &t.Subject, &t.Preheader, &t.HTMLBody, &t.PlainBody, &t.UpdatedAt)
	return t, err
}

// GetTemplate returns the template for a slot, or nil when none is stored.
func (r *Repository) GetTemplate(ctx context.Context, campaignType string, emailNumber int) (*Template, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx, `
		SELECT `+templateColumns+` FROM review_email_templates
		WHERE campaign_type = $1 AND email_number = $2
	`, campaignType, emailNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get email template: %w", err)
	}
	return &t, nil
}

// ListTemplates returns every stored template.
func (r *Repository) ListTemplates(ctx context.Context) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+templateColumns+` FROM review_email_templates ORDER BY campaign_type, email_number`)
	if err != nil {
		return nil, fmt.Errorf("list email templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertTemplate creates or replaces the template for a slot.
func (r *Repository) UpsertTemplate(ctx context.Context, t Template) (Template, error) {
	saved, err := scanTemplate(r.pool.QueryRow(ctx, `
		INSERT INTO review_email_templates (campaign_type, email_number, subject, preheader, html_body, plain_body)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (campaign_type, email_number) DO UPDATE
		SET subject = EXCLUDED.subject,
			preheader = EXCLUDED.preheader,
			html_body = EXCLUDED.html_body,
			plain_body = EXCLUDED.plain_body,
			updated_at = now()
		RETURNING `+templateColumns,
		t.CampaignType, t.EmailNumber, t.Subject, t.Preheader, t.HTMLBody, t.PlainBody))
	if err != nil {
		return Template{}, fmt.Errorf("upsert email template: %w", err)
	}
	return saved, nil
}
