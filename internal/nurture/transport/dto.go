package transport

import (
	"time"

	"plumbing_backend/internal/nurture/repository"

	"github.com/google/uuid"
)

type CreateCampaignRequest struct {
	CustomerID int64  `json:"customerId" validate:"required,gt=0"`
	Email      string `json:"email" validate:"required,email"`
	Name       string `json:"name" validate:"max=200"`
	ReviewID   string `json:"reviewId" validate:"max=200"`
}

type CreateCampaignResponse struct {
	CampaignID uuid.UUID `json:"campaignId"`
	Created    bool      `json:"created"`
}

type PauseRequest struct {
	Reason string `json:"reason" validate:"max=100"`
}

type SendRequest struct {
	EmailNumber int `json:"emailNumber" validate:"required,min=1,max=4"`
}

type SendResponse struct {
	Sent              bool   `json:"sent"`
	Reason            string `json:"reason,omitempty"`
	Status            string `json:"status,omitempty"`
	ProviderMessageID string `json:"providerMessageId,omitempty"`
}

type CampaignResponse struct {
	ID                  uuid.UUID  `json:"id"`
	CustomerID          int64      `json:"customerId"`
	CustomerEmail       string     `json:"customerEmail"`
	CustomerName        string     `json:"customerName"`
	OriginalReviewID    *string    `json:"originalReviewId,omitempty"`
	Status              string     `json:"status"`
	Email1SentAt        *time.Time `json:"email1SentAt,omitempty"`
	Email2SentAt        *time.Time `json:"email2SentAt,omitempty"`
	Email3SentAt        *time.Time `json:"email3SentAt,omitempty"`
	Email4SentAt        *time.Time `json:"email4SentAt,omitempty"`
	ConsecutiveUnopened int        `json:"consecutiveUnopened"`
	PausedAt            *time.Time `json:"pausedAt,omitempty"`
	PauseReason         *string    `json:"pauseReason,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}

type CampaignListResponse struct {
	Items []CampaignResponse `json:"items"`
}

func FromCampaign(c repository.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:                  c.ID,
		CustomerID:          c.CustomerID,
		CustomerEmail:       c.CustomerEmail,
		CustomerName:        c.CustomerName,
		OriginalReviewID:    c.OriginalReviewID,
		Status:              c.Status,
		Email1SentAt:        c.Email1SentAt,
		Email2SentAt:        c.Email2SentAt,
		Email3SentAt:        c.Email3SentAt,
		Email4SentAt:        c.Email4SentAt,
		ConsecutiveUnopened: c.ConsecutiveUnopened,
		PausedAt:            c.PausedAt,
		PauseReason:         c.PauseReason,
		CompletedAt:         c.CompletedAt,
		CreatedAt:           c.CreatedAt,
	}
}

type TemplateRequest struct {
	CampaignType string `json:"campaignType" validate:"omitempty,max=50"`
	Subject      string `json:"subject" validate:"required,max=200"`
	Preheader    string `json:"preheader" validate:"max=300"`
	HTMLBody     string `json:"htmlBody" validate:"required"`
	PlainBody    string `json:"plainBody"`
}

type TemplateResponse struct {
	ID           uuid.UUID `json:"id"`
	CampaignType string    `json:"campaignType"`
	EmailNumber  int       `json:"emailNumber"`
	Subject      string    `json:"subject"`
	Preheader    string    `json:"preheader"`
	HTMLBody     string    `json:"htmlBody"`
	PlainBody    string    `json:"plainBody"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type TemplateListResponse struct {
	Items []TemplateResponse `json:"items"`
}

func FromTemplate(t repository.Template) TemplateResponse {
	return TemplateResponse{
		ID:           t.ID,
		CampaignType: t.CampaignType,
		EmailNumber:  t.EmailNumber,
		Subject:      t.Subject,
		Preheader:    t.Preheader,
		HTMLBody:     t.HTMLBody,
		PlainBody:    t.PlainBody,
		UpdatedAt:    t.UpdatedAt,
	}
}

// ResendWebhook is the envelope Resend posts for email events.
type ResendWebhook struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      struct {
		EmailID string `json:"email_id"`
	} `json:"data"`
}
