// Package service runs the four-step referral nurture drip.
package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"plumbing_backend/internal/email"
	prefsrepo "plumbing_backend/internal/emailprefs/repository"
	"plumbing_backend/internal/nurture/repository"
	settingsservice "plumbing_backend/internal/settings/service"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/logger"

	"github.com/google/uuid"
)

// Pause reasons.
const (
	PauseSuppressed    = "suppressed"
	PauseOptedOut      = "opted_out"
	PauseLowEngagement = "low_engagement"
	PauseManual        = "manual"
)

// lowEngagementStreak is the unopened streak that pauses a campaign.
const lowEngagementStreak = 2

// cadence is the day since campaign creation each email becomes due.
var cadence = [4]int{14, 60, 150, 210}

// Store is the persistence port of the nurture service.
type Store interface {
	CreateIfAbsent(ctx context.Context, c repository.Campaign) (uuid.UUID, bool, error)
	Get(ctx context.Context, id uuid.UUID) (repository.Campaign, error)
	ListActive(ctx context.Context) ([]repository.Campaign, error)
	List(ctx context.Context, status string, limit, offset int) ([]repository.Campaign, error)
	SaveProgress(ctx context.Context, c repository.Campaign, expectedStatus string) (bool, error)
	Pause(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)
	Resume(ctx context.Context, id uuid.UUID) (bool, error)
	ResetUnopened(ctx context.Context, id uuid.UUID) error
	ListTemplates(ctx context.Context) ([]repository.Template, error)
	UpsertTemplate(ctx context.Context, t repository.Template) (repository.Template, error)
}

// SettingsReader loads runtime switches.
type SettingsReader interface {
	Load(ctx context.Context) (settingsservice.Settings, error)
}

// Preferences is the suppression, opt-out and send-log collaborator.
type Preferences interface {
	Suppression(ctx context.Context, email string) (bool, string, error)
	IsOptedOut(ctx context.Context, email string) (bool, error)
	UnsubscribeURL(email string) (string, error)
	LogSend(ctx context.Context, e prefsrepo.SendLogEntry)
	RecordOpen(ctx context.Context, providerMessageID string, at time.Time) (*uuid.UUID, error)
	SuppressMessageRecipient(ctx context.Context, providerMessageID, reason string) error
}

// Service owns the nurture state machine. It holds no mutable state; one
// instance is built per process and shared.
type Service struct {
	store    Store
	settings SettingsReader
	prefs    Preferences
	sender   email.Sender
	content  ContentSource
	log      *logger.Logger
	now      func() time.Time
}

// New creates a nurture service.
func New(store Store, settings SettingsReader, prefs Preferences, sender email.Sender, content ContentSource, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		settings: settings,
		prefs:    prefs,
		sender:   sender,
		content:  content,
		log:      log,
		now:      time.Now,
	}
}

// CreateInput identifies the customer a campaign is created for.
type CreateInput struct {
	CustomerID int64
	Email      string
	Name       string
	ReviewID   string
}

// CreateCampaignForReviewer returns the customer's campaign id, creating a
// queued campaign when none exists.
func (s *Service) CreateCampaignForReviewer(ctx context.Context, in CreateInput) (uuid.UUID, bool, error) {
	addr := strings.ToLower(strings.TrimSpace(in.Email))
	if in.CustomerID <= 0 {
		return uuid.Nil, false, apperr.Validation("customer id is required")
	}
	if addr == "" {
		return uuid.Nil, false, apperr.Validation("customer email is required")
	}

	c := repository.Campaign{
		ID:            uuid.New(),
		CustomerID:    in.CustomerID,
		CustomerEmail: addr,
		CustomerName:  strings.TrimSpace(in.Name),
	}
	if id := strings.TrimSpace(in.ReviewID); id != "" {
		c.OriginalReviewID = &id
	}

	id, created, err := s.store.CreateIfAbsent(ctx, c)
	if err != nil {
		return uuid.Nil, false, apperr.Unavailable("failed to create nurture campaign", err)
	}
	if created {
		s.log.Info("nurture campaign created", "campaignId", id, "customerId", in.CustomerID)
	}
	return id, created, nil
}

// CanSendEmails checks the master switch, the drip flag and the nurture phone
// in that order and names the first gate that is closed.
func (s *Service) CanSendEmails(ctx context.Context) (bool, string, settingsservice.Settings) {
	st, err := s.settings.Load(ctx)
	if err != nil {
		s.log.Warn("nurture gate could not load settings", "error", err)
		return false, "settings unavailable", st
	}
	switch {
	case !st.EmailMasterEnabled:
		return false, "email master switch is off", st
	case !st.ReviewDripEnabled:
		return false, "review drip campaigns are disabled", st
	case st.ReferralNurturePhone == "":
		return false, "referral nurture phone number is not configured", st
	}
	return true, "", st
}

// SendOutcome reports what SendReferralEmail did.
type SendOutcome struct {
	Sent              bool
	Reason            string
	ProviderMessageID string
	Status            string
}

// SendReferralEmail sends email n of a campaign. Every failure is logged and
// reported through the outcome; nothing is returned as an error.
func (s *Service) SendReferralEmail(ctx context.Context, campaignID uuid.UUID, n int) SendOutcome {
	if n < 1 || n > len(cadence) {
		return s.skip(campaignID, n, "invalid email number")
	}
	c, err := s.store.Get(ctx, campaignID)
	if err != nil {
		return s.skip(campaignID, n, "campaign not found")
	}
	switch {
	case c.Status == repository.StatusPaused:
		return s.skip(campaignID, n, "campaign paused")
	case c.Status == repository.StatusCompleted:
		return s.skip(campaignID, n, "campaign completed")
	case c.SentAt(n) != nil:
		return s.skip(campaignID, n, "email already sent")
	}

	suppressed, why, err := s.prefs.Suppression(ctx, c.CustomerEmail)
	if err != nil {
		s.log.Warn("suppression check failed", "campaignId", c.ID, "error", err)
		return SendOutcome{Reason: "suppression check failed", Status: c.Status}
	}
	if suppressed {
		s.pause(ctx, c.ID, PauseSuppressed, why)
		return SendOutcome{Reason: "recipient suppressed", Status: repository.StatusPaused}
	}
	optedOut, err := s.prefs.IsOptedOut(ctx, c.CustomerEmail)
	if err != nil {
		s.log.Warn("opt-out check failed", "campaignId", c.ID, "error", err)
		return SendOutcome{Reason: "opt-out check failed", Status: c.Status}
	}
	if optedOut {
		s.pause(ctx, c.ID, PauseOptedOut, "")
		return SendOutcome{Reason: "recipient opted out", Status: repository.StatusPaused}
	}

	st, err := s.settings.Load(ctx)
	if err != nil {
		s.log.Warn("nurture send could not load settings", "campaignId", c.ID, "error", err)
		return SendOutcome{Reason: "settings unavailable", Status: c.Status}
	}
	content, err := s.content.Content(ctx, ContentRequest{
		CampaignType: CampaignTypeReferralNurture,
		EmailNumber:  n,
		CustomerName: c.CustomerName,
		Settings:     st,
		Now:          s.now(),
	})
	if err != nil {
		s.log.Warn("nurture content unavailable", "campaignId", c.ID, "emailNumber", n, "error", err)
		return SendOutcome{Reason: "content unavailable", Status: c.Status}
	}

	if s.sender == nil || !s.sender.Configured() {
		s.log.Warn("nurture email skipped: no email provider configured", "campaignId", c.ID)
		return SendOutcome{Reason: "email provider not configured", Status: c.Status}
	}

	unsubscribeURL, err := s.prefs.UnsubscribeURL(c.CustomerEmail)
	if err != nil {
		s.log.Warn("failed to build unsubscribe link", "campaignId", c.ID, "error", err)
		return SendOutcome{Reason: "unsubscribe link unavailable", Status: c.Status}
	}

	msg := email.Message{
		To:      c.CustomerEmail,
		Subject: content.Subject,
		HTML:    WithHTMLFooter(content.HTML, content.Preheader, st.CompanyName, unsubscribeURL),
		Text:    WithTextFooter(content.Text, st.CompanyName, unsubscribeURL),
		Headers: map[string]string{
			"List-Unsubscribe":      "<" + unsubscribeURL + ">",
			"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
		},
		Tags: map[string]string{
			"campaign_id":  c.ID.String(),
			"email_number": fmt.Sprintf("%d", n),
		},
	}

	sentAt := s.now()
	result, sendErr := s.sender.Send(ctx, msg)
	s.logSend(ctx, c, n, msg.Subject, result, sendErr, sentAt)
	if sendErr != nil {
		s.log.ProviderError("email", "nurture send", sendErr)
		return SendOutcome{Reason: "send failed", Status: c.Status}
	}

	next := Advance(c, n, sentAt)
	saved, err := s.store.SaveProgress(ctx, next, c.Status)
	if err != nil || !saved {
		s.log.Warn("nurture progress not saved", "campaignId", c.ID, "emailNumber", n, "saved", saved, "error", err)
		return SendOutcome{Sent: true, Reason: "progress not saved", ProviderMessageID: result.ProviderMessageID, Status: c.Status}
	}

	s.log.Info("nurture email sent", "campaignId", c.ID, "emailNumber", n, "status", next.Status, "generated", content.Generated)
	return SendOutcome{Sent: true, ProviderMessageID: result.ProviderMessageID, Status: next.Status}
}

func (s *Service) skip(id uuid.UUID, n int, reason string) SendOutcome {
	s.log.Info("nurture email skipped", "campaignId", id, "emailNumber", n, "reason", reason)
	return SendOutcome{Reason: reason}
}

func (s *Service) pause(ctx context.Context, id uuid.UUID, reason, detail string) {
	if _, err := s.store.Pause(ctx, id, reason, s.now()); err != nil {
		s.log.Warn("failed to pause nurture campaign", "campaignId", id, "reason", reason, "error", err)
		return
	}
	s.log.Info("nurture campaign paused", "campaignId", id, "reason", reason, "detail", detail)
}

func (s *Service) logSend(ctx context.Context, c repository.Campaign, n int, subject string, result email.SendResult, sendErr error, at time.Time) {
	id := c.ID
	num := n
	entry := prefsrepo.SendLogEntry{
		ID:          uuid.New(),
		CampaignID:  &id,
		EmailNumber: &num,
		Recipient:   c.CustomerEmail,
		Subject:     subject,
		Status:      prefsrepo.SendStatusSent,
		SentAt:      at,
	}
	if result.ProviderMessageID != "" {
		pid := result.ProviderMessageID
		entry.ProviderMessageID = &pid
	}
	if sendErr != nil {
		msg := sendErr.Error()
		entry.Status = prefsrepo.SendStatusFailed
		entry.ErrorMessage = &msg
	}
	s.prefs.LogSend(ctx, entry)
}

// Advance returns the campaign state after email n was sent at the given time.
// Email 4 completes the campaign; otherwise an unopened streak of two pauses it.
func Advance(c repository.Campaign, n int, at time.Time) repository.Campaign {
	t := at
	switch n {
	case 1:
		c.Email1SentAt = &t
		c.Status = repository.StatusEmail1Sent
	case 2:
		c.Email2SentAt = &t
		c.Status = repository.StatusEmail2Sent
	case 3:
		c.Email3SentAt = &t
		c.Status = repository.StatusEmail3Sent
	case 4:
		c.Email4SentAt = &t
		c.Status = repository.StatusCompleted
		c.CompletedAt = &t
	}
	c.ConsecutiveUnopened++

	if c.Status != repository.StatusCompleted && c.ConsecutiveUnopened >= lowEngagementStreak {
		reason := PauseLowEngagement
		c.Status = repository.StatusPaused
		c.PausedAt = &t
		c.PauseReason = &reason
	}
	return c
}

// NextEmail returns the email due for a campaign that is days old, or 0.
// Only the first unmet threshold counts.
func NextEmail(c repository.Campaign, days int) int {
	for i, threshold := range cadence {
		n := i + 1
		if c.SentAt(n) != nil {
			continue
		}
		if days >= threshold {
			return n
		}
		return 0
	}
	return 0
}

// DaysSince returns whole days elapsed, floored.
func DaysSince(created, now time.Time) int {
	d := now.Sub(created)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// ProcessSummary describes one scheduler run.
type ProcessSummary struct {
	Blocked string `json:"blocked,omitempty"`
	Scanned int    `json:"scanned"`
	Due     int    `json:"due"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
}

// ProcessPendingEmails sends at most one due email per active campaign.
func (s *Service) ProcessPendingEmails(ctx context.Context) (ProcessSummary, error) {
	var summary ProcessSummary
	ok, reason, _ := s.CanSendEmails(ctx)
	if !ok {
		s.log.Info("nurture run skipped", "reason", reason)
		summary.Blocked = reason
		return summary, nil
	}

	campaigns, err := s.store.ListActive(ctx)
	if err != nil {
		return summary, apperr.Unavailable("failed to list nurture campaigns", err)
	}

	now := s.now()
	for _, c := range campaigns {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Scanned++
		n := NextEmail(c, DaysSince(c.CreatedAt, now))
		if n == 0 {
			continue
		}
		summary.Due++
		if out := s.SendReferralEmail(ctx, c.ID, n); out.Sent {
			summary.Sent++
		} else {
			summary.Failed++
		}
	}

	s.log.Info("nurture run finished", "scanned", summary.Scanned, "due", summary.Due, "sent", summary.Sent, "failed", summary.Failed)
	return summary, nil
}

// Get returns one campaign.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Campaign, error) {
	return s.store.Get(ctx, id)
}

// List returns campaigns, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]repository.Campaign, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.List(ctx, strings.TrimSpace(status), limit, offset)
	if err != nil {
		return nil, apperr.Unavailable("failed to list nurture campaigns", err)
	}
	return items, nil
}

// Pause stops a campaign on request of staff.
func (s *Service) Pause(ctx context.Context, id uuid.UUID, reason string) (repository.Campaign, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = PauseManual
	}
	ok, err := s.store.Pause(ctx, id, reason, s.now())
	if err != nil {
		return repository.Campaign{}, apperr.Unavailable("failed to pause campaign", err)
	}
	if !ok {
		return repository.Campaign{}, s.stateConflict(ctx, id, "campaign is already paused or completed")
	}
	return s.store.Get(ctx, id)
}

// Resume restarts a paused campaign with a fresh unopened streak.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) (repository.Campaign, error) {
	ok, err := s.store.Resume(ctx, id)
	if err != nil {
		return repository.Campaign{}, apperr.Unavailable("failed to resume campaign", err)
	}
	if !ok {
		return repository.Campaign{}, s.stateConflict(ctx, id, "campaign is not paused")
	}
	return s.store.Get(ctx, id)
}

func (s *Service) stateConflict(ctx context.Context, id uuid.UUID, msg string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return apperr.Conflict(msg)
}

// ListTemplates returns every stored template.
func (s *Service) ListTemplates(ctx context.Context) ([]repository.Template, error) {
	items, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, apperr.Unavailable("failed to list templates", err)
	}
	return items, nil
}

// SaveTemplate stores the template for one slot of a campaign type.
func (s *Service) SaveTemplate(ctx context.Context, t repository.Template) (repository.Template, error) {
	campaignType, ok := ParseCampaignType(t.CampaignType)
	if !ok {
		return repository.Template{}, apperr.Validation("unknown campaign type")
	}
	t.CampaignType = string(campaignType)
	if t.EmailNumber < 1 || t.EmailNumber > len(cadence) {
		return repository.Template{}, apperr.Validation("email number must be between 1 and 4")
	}
	saved, err := s.store.UpsertTemplate(ctx, t)
	if err != nil {
		return repository.Template{}, apperr.Unavailable("failed to save template", err)
	}
	return saved, nil
}

// Resend webhook event types handled here.
const (
	ResendEventOpened     = "email.opened"
	ResendEventBounced    = "email.bounced"
	ResendEventComplained = "email.complained"
)

// ResendEvent is the part of a Resend webhook payload this service reads.
type ResendEvent struct {
	Type      string
	EmailID   string
	CreatedAt time.Time
}

// HandleResendEvent records opens and suppresses bounced or complaining
// recipients. Unknown event types are ignored.
func (s *Service) HandleResendEvent(ctx context.Context, ev ResendEvent) error {
	switch ev.Type {
	case ResendEventOpened, ResendEventBounced, ResendEventComplained:
		if ev.EmailID == "" {
			return apperr.Validation("email id is required")
		}
	default:
		return nil
	}
	at := ev.CreatedAt
	if at.IsZero() {
		at = s.now()
	}

	switch ev.Type {
	case ResendEventOpened:
		campaignID, err := s.prefs.RecordOpen(ctx, ev.EmailID, at)
		if err != nil {
			return fmt.Errorf("record open: %w", err)
		}
		if campaignID == nil {
			return nil
		}
		if err := s.store.ResetUnopened(ctx, *campaignID); err != nil {
			return err
		}
		s.log.Debug("nurture email opened", "campaignId", *campaignID)
	case ResendEventBounced, ResendEventComplained:
		reason := strings.TrimPrefix(ev.Type, "email.")
		if err := s.prefs.SuppressMessageRecipient(ctx, ev.EmailID, reason); err != nil {
			return fmt.Errorf("suppress recipient: %w", err)
		}
		s.log.Info("recipient suppressed from webhook", "reason", reason)
	}
	return nil
}

// WithHTMLFooter appends the unsubscribe footer and, when given, a hidden
// preheader.
func WithHTMLFooter(body, preheader, company, unsubscribeURL string) string {
	if company == "" {
		company = "us"
	}
	footer := fmt.Sprintf(`<p style="margin-top:32px;font-size:12px;color:#6b7280;">You are receiving this email because you are a customer of %s. <a href="%s">Unsubscribe</a></p>`,
		html.EscapeString(company), html.EscapeString(unsubscribeURL))

	if preheader != "" {
		body = fmt.Sprintf(`<div style="display:none;max-height:0;overflow:hidden;">%s</div>`, html.EscapeString(preheader)) + body
	}
	if i := strings.LastIndex(strings.ToLower(body), "</body>"); i >= 0 {
		return body[:i] + footer + body[i:]
	}
	return body + footer
}

// WithTextFooter appends the plain-text unsubscribe footer.
func WithTextFooter(body, company, unsubscribeURL string) string {
	if company == "" {
		company = "us"
	}
	return strings.TrimRight(body, "\n") + "\n\n--\nYou are receiving this email because you are a customer of " +
		company + ".\nUnsubscribe: " + unsubscribeURL + "\n"
}
