package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"plumbing_backend/internal/ai"
	"plumbing_backend/internal/email"
	prefsrepo "plumbing_backend/internal/emailprefs/repository"
	"plumbing_backend/internal/nurture/repository"
	settingsservice "plumbing_backend/internal/settings/service"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/logger"

	"github.com/google/uuid"
)

var testNow = time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)

type memoryStore struct {
	campaigns map[uuid.UUID]repository.Campaign
	templates map[int]repository.Template
	resets    []uuid.UUID
}

func newMemoryStore() *memoryStore {
	return &memoryStore{campaigns: map[uuid.UUID]repository.Campaign{}, templates: map[int]repository.Template{}}
}

func (m *memoryStore) add(c repository.Campaign) repository.Campaign {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = repository.StatusQueued
	}
	if c.CustomerEmail == "" {
		c.CustomerEmail = "pat@example.com"
	}
	m.campaigns[c.ID] = c
	return c
}

func (m *memoryStore) CreateIfAbsent(_ context.Context, c repository.Campaign) (uuid.UUID, bool, error) {
	for _, existing := range m.campaigns {
		if existing.CustomerID == c.CustomerID {
			return existing.ID, false, nil
		}
	}
	c.Status = repository.StatusQueued
	m.campaigns[c.ID] = c
	return c.ID, true, nil
}

func (m *memoryStore) Get(_ context.Context, id uuid.UUID) (repository.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return repository.Campaign{}, apperr.NotFound("campaign not found")
	}
	return c, nil
}

func (m *memoryStore) ListActive(context.Context) ([]repository.Campaign, error) {
	var out []repository.Campaign
	for _, c := range m.campaigns {
		switch c.Status {
		case repository.StatusQueued, repository.StatusEmail1Sent, repository.StatusEmail2Sent, repository.StatusEmail3Sent:
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryStore) List(context.Context, string, int, int) ([]repository.Campaign, error) {
	return m.ListActive(context.Background())
}

func (m *memoryStore) SaveProgress(_ context.Context, c repository.Campaign, expected string) (bool, error) {
	if m.campaigns[c.ID].Status != expected {
		return false, nil
	}
	m.campaigns[c.ID] = c
	return true, nil
}

func (m *memoryStore) Pause(_ context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	c := m.campaigns[id]
	if c.Status == repository.StatusPaused || c.Status == repository.StatusCompleted {
		return false, nil
	}
	c.Status = repository.StatusPaused
	c.PauseReason = &reason
	c.PausedAt = &at
	m.campaigns[id] = c
	return true, nil
}

func (m *memoryStore) Resume(_ context.Context, id uuid.UUID) (bool, error) {
	c, ok := m.campaigns[id]
	if !ok || c.Status != repository.StatusPaused {
		return false, nil
	}
	c.Status = repository.StatusQueued
	c.ConsecutiveUnopened = 0
	c.PauseReason = nil
	m.campaigns[id] = c
	return true, nil
}

func (m *memoryStore) ResetUnopened(_ context.Context, id uuid.UUID) error {
	m.resets = append(m.resets, id)
	c := m.campaigns[id]
	c.ConsecutiveUnopened = 0
	m.campaigns[id] = c
	return nil
}

func (m *memoryStore) ListTemplates(context.Context) ([]repository.Template, error) {
	var out []repository.Template
	for _, t := range m.templates {
		out = append(out, t)
	}
	return out, nil
}

func (m *memoryStore) UpsertTemplate(_ context.Context, t repository.Template) (repository.Template, error) {
	m.templates[t.EmailNumber] = t
	return t, nil
}

func (m *memoryStore) GetTemplate(_ context.Context, _ string, n int) (*repository.Template, error) {
	t, ok := m.templates[n]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

type fakeSettings struct {
	settings settingsservice.Settings
	err      error
}

func (f fakeSettings) Load(context.Context) (settingsservice.Settings, error) {
	return f.settings, f.err
}

func openSettings() fakeSettings {
	return fakeSettings{settings: settingsservice.Settings{
		EmailMasterEnabled:   true,
		ReviewDripEnabled:    true,
		ReferralNurturePhone: "(512) 555-0100",
		CompanyName:          "Acme Plumbing",
		WebsiteURL:           "https://acme.example",
	}}
}

type fakePrefs struct {
	suppressed         map[string]string
	optedOut           map[string]bool
	logs               []prefsrepo.SendLogEntry
	opens              map[string]uuid.UUID
	suppressedMessages []string
}

func (f *fakePrefs) Suppression(_ context.Context, addr string) (bool, string, error) {
	reason, ok := f.suppressed[addr]
	return ok, reason, nil
}

func (f *fakePrefs) IsOptedOut(_ context.Context, addr string) (bool, error) {
	return f.optedOut[addr], nil
}

func (f *fakePrefs) UnsubscribeURL(addr string) (string, error) {
	return "https://acme.example/unsubscribe?token=tok-" + addr, nil
}

func (f *fakePrefs) LogSend(_ context.Context, e prefsrepo.SendLogEntry) {
	f.logs = append(f.logs, e)
}

func (f *fakePrefs) RecordOpen(_ context.Context, id string, _ time.Time) (*uuid.UUID, error) {
	campaignID, ok := f.opens[id]
	if !ok {
		return nil, nil
	}
	return &campaignID, nil
}

func (f *fakePrefs) SuppressMessageRecipient(_ context.Context, id, _ string) error {
	f.suppressedMessages = append(f.suppressedMessages, id)
	return nil
}

type fakeSender struct {
	configured bool
	err        error
	sent       []email.Message
}

func (f *fakeSender) Send(_ context.Context, msg email.Message) (email.SendResult, error) {
	if f.err != nil {
		return email.SendResult{}, f.err
	}
	f.sent = append(f.sent, msg)
	return email.SendResult{ProviderMessageID: "msg-" + msg.Tags["email_number"]}, nil
}

func (f *fakeSender) Configured() bool { return f.configured }

type staticContent struct {
	err error
}

func (s staticContent) Content(_ context.Context, req ContentRequest) (Content, error) {
	if s.err != nil {
		return Content{}, s.err
	}
	return Content{Subject: "Email", HTML: "<p>Hi " + FirstName(req.CustomerName) + "</p>", Text: "Hi"}, nil
}

type fixture struct {
	svc    *Service
	store  *memoryStore
	prefs  *fakePrefs
	sender *fakeSender
}

func newFixture(settings fakeSettings) fixture {
	store := newMemoryStore()
	prefs := &fakePrefs{suppressed: map[string]string{}, optedOut: map[string]bool{}, opens: map[string]uuid.UUID{}}
	sender := &fakeSender{configured: true}
	svc := New(store, settings, prefs, sender, staticContent{}, logger.Nop())
	svc.now = func() time.Time { return testNow }
	return fixture{svc: svc, store: store, prefs: prefs, sender: sender}
}

func daysAgo(n int) time.Time {
	return testNow.Add(-time.Duration(n) * 24 * time.Hour)
}

func TestProcessPendingEmailsSendsOnlyFirstEmailAtDayFifteen(t *testing.T) {
	f := newFixture(openSettings())
	c := f.store.add(repository.Campaign{CustomerID: 1, CreatedAt: daysAgo(15)})

	summary, err := f.svc.ProcessPendingEmails(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if summary.Sent != 1 || len(f.sender.sent) != 1 {
		t.Fatalf("expected exactly one send, summary=%+v sent=%d", summary, len(f.sender.sent))
	}
	got := f.store.campaigns[c.ID]
	if got.Status != repository.StatusEmail1Sent || got.Email1SentAt == nil {
		t.Fatalf("expected email1_sent, got %+v", got)
	}
	if got.Email2SentAt != nil || got.Email3SentAt != nil || got.Email4SentAt != nil {
		t.Fatalf("later emails must not be sent")
	}
	if got.ConsecutiveUnopened != 1 {
		t.Fatalf("expected unopened streak 1, got %d", got.ConsecutiveUnopened)
	}
}

func TestProcessPendingEmailsHonoursGate(t *testing.T) {
	settings := openSettings()
	settings.settings.ReviewDripEnabled = false
	f := newFixture(settings)
	f.store.add(repository.Campaign{CustomerID: 1, CreatedAt: daysAgo(30)})

	summary, err := f.svc.ProcessPendingEmails(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if summary.Blocked != "review drip campaigns are disabled" || len(f.sender.sent) != 0 {
		t.Fatalf("expected blocked run, got %+v", summary)
	}
}

func TestCanSendEmailsShortCircuitsInOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*settingsservice.Settings)
		reason string
	}{
		{"master off", func(s *settingsservice.Settings) { s.EmailMasterEnabled = false; s.ReviewDripEnabled = false }, "email master switch is off"},
		{"drip off", func(s *settingsservice.Settings) { s.ReviewDripEnabled = false; s.ReferralNurturePhone = "" }, "review drip campaigns are disabled"},
		{"no phone", func(s *settingsservice.Settings) { s.ReferralNurturePhone = "" }, "referral nurture phone number is not configured"},
		{"open", func(*settingsservice.Settings) {}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := openSettings()
			tc.mutate(&settings.settings)
			f := newFixture(settings)
			ok, reason, _ := f.svc.CanSendEmails(context.Background())
			if reason != tc.reason || ok != (tc.reason == "") {
				t.Fatalf("got ok=%v reason=%q", ok, reason)
			}
		})
	}
}

func TestSecondUnopenedSendPausesForLowEngagement(t *testing.T) {
	f := newFixture(openSettings())
	sent := daysAgo(50)
	c := f.store.add(repository.Campaign{
		CustomerID:          1,
		CreatedAt:           daysAgo(61),
		Status:              repository.StatusEmail1Sent,
		Email1SentAt:        &sent,
		ConsecutiveUnopened: 1,
	})

	if _, err := f.svc.ProcessPendingEmails(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	got := f.store.campaigns[c.ID]
	if got.Status != repository.StatusPaused || got.PauseReason == nil || *got.PauseReason != PauseLowEngagement {
		t.Fatalf("expected low engagement pause, got %+v", got)
	}
	if got.Email2SentAt == nil {
		t.Fatalf("email 2 should be recorded as sent")
	}

	f.sender.sent = nil
	if _, err := f.svc.ProcessPendingEmails(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("paused campaign must be excluded from the next run")
	}
}

func TestFourthEmailCompletesCampaign(t *testing.T) {
	f := newFixture(openSettings())
	sent := daysAgo(100)
	c := f.store.add(repository.Campaign{
		CustomerID:          1,
		CreatedAt:           daysAgo(211),
		Status:              repository.StatusEmail3Sent,
		Email1SentAt:        &sent,
		Email2SentAt:        &sent,
		Email3SentAt:        &sent,
		ConsecutiveUnopened: 1,
	})

	out := f.svc.SendReferralEmail(context.Background(), c.ID, 4)
	if !out.Sent || out.Status != repository.StatusCompleted {
		t.Fatalf("expected completed, got %+v", out)
	}
	if got := f.store.campaigns[c.ID]; got.CompletedAt == nil || got.PauseReason != nil {
		t.Fatalf("unexpected final state %+v", got)
	}
}

func TestSuppressedRecipientPausesCampaign(t *testing.T) {
	f := newFixture(openSettings())
	c := f.store.add(repository.Campaign{CustomerID: 1, CreatedAt: daysAgo(20)})
	f.prefs.suppressed[c.CustomerEmail] = "bounced"

	out := f.svc.SendReferralEmail(context.Background(), c.ID, 1)
	if out.Sent {
		t.Fatalf("suppressed recipient must not be mailed")
	}
	got := f.store.campaigns[c.ID]
	if got.Status != repository.StatusPaused || *got.PauseReason != PauseSuppressed {
		t.Fatalf("expected suppressed pause, got %+v", got)
	}
	if len(f.sender.sent) != 0 || len(f.prefs.logs) != 0 {
		t.Fatalf("nothing should be sent or logged")
	}
}

func TestOptedOutRecipientPausesCampaign(t *testing.T) {
	f := newFixture(openSettings())
	c := f.store.add(repository.Campaign{CustomerID: 1, CreatedAt: daysAgo(20)})
	f.prefs.optedOut[c.CustomerEmail] = true

	if out := f.svc.SendReferralEmail(context.Background(), c.ID, 1); out.Sent {
		t.Fatalf("opted out recipient must not be mailed")
	}
	if got := f.store.campaigns[c.ID]; *got.PauseReason != PauseOptedOut {
		t.Fatalf("expected opted_out, got %v", *got.PauseReason)
	}
}

func TestSendWithoutProviderDoesNothing(t *testing.T) {
	f := newFixture(openSettings())
	f.sender.configured = false
	c := f.store.add(repository.Campaign{CustomerID: 1, CreatedAt: daysAgo(20)})

	out := f.svc.SendReferralEmail(context.Background(), c.ID, 1)
	if out.Sent || out.Reason != "email provider not configured" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if f.store.campaigns[c.ID].Status != repository.StatusQueued {
		t.Fatalf("campaign must stay queued")
	}
}

func TestSendFailureIsLoggedAndStateUnchanged(t *testing.T) {
	f := newFixture(openSettings())
	f.sender.err = errors.New("provider down")
	c := f.store.add(repository.Campaign{CustomerID: 1, CreatedAt: daysAgo(20)})

	if out := f.svc.SendReferralEmail(context.Background(), c.ID, 1); out.Sent {
		t.Fatalf("expected failure")
	}
	if len(f.prefs.logs) != 1 || f.prefs.logs[0].Status != prefsrepo.SendStatusFailed {
		t.Fatalf("expected a failed send log, got %+v", f.prefs.logs)
	}
	if f.store.campaigns[c.ID].Email1SentAt != nil {
		t.Fatalf("failed send must not advance the campaign")
	}
}

func TestSentMessageCarriesUnsubscribeHeadersAndFooter(t *testing.T) {
	f := newFixture(openSettings())
	c := f.store.add(repository.Campaign{CustomerID: 1, CustomerName: "pat smith", CreatedAt: daysAgo(20)})

	if out := f.svc.SendReferralEmail(context.Background(), c.ID, 1); !out.Sent {
		t.Fatalf("expected send, got %+v", out)
	}
	msg := f.sender.sent[0]
	url := "https://acme.example/unsubscribe?token=tok-pat@example.com"
	if msg.Headers["List-Unsubscribe"] != "<"+url+">" {
		t.Fatalf("unexpected List-Unsubscribe %q", msg.Headers["List-Unsubscribe"])
	}
	if msg.Headers["List-Unsubscribe-Post"] != "List-Unsubscribe=One-Click" {
		t.Fatalf("missing one-click header")
	}
	if !strings.Contains(msg.HTML, "Unsubscribe</a>") || !strings.Contains(msg.Text, "Unsubscribe: "+url) {
		t.Fatalf("footer missing: html=%q text=%q", msg.HTML, msg.Text)
	}
	if len(f.prefs.logs) != 1 || *f.prefs.logs[0].ProviderMessageID != "msg-1" {
		t.Fatalf("expected send log with provider id, got %+v", f.prefs.logs)
	}
}

func TestSendRefusesAlreadySentEmail(t *testing.T) {
	f := newFixture(openSettings())
	sent := daysAgo(5)
	c := f.store.add(repository.Campaign{CustomerID: 1, CreatedAt: daysAgo(20), Status: repository.StatusEmail1Sent, Email1SentAt: &sent})

	if out := f.svc.SendReferralEmail(context.Background(), c.ID, 1); out.Sent || out.Reason != "email already sent" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestNextEmailCadence(t *testing.T) {
	sent := testNow
	cases := []struct {
		name string
		c    repository.Campaign
		days int
		want int
	}{
		{"too early", repository.Campaign{}, 13, 0},
		{"day 14", repository.Campaign{}, 14, 1},
		{"late start still email 1", repository.Campaign{}, 300, 1},
		{"email 2 not due", repository.Campaign{Email1SentAt: &sent}, 59, 0},
		{"email 2 due", repository.Campaign{Email1SentAt: &sent}, 60, 2},
		{"email 3 due", repository.Campaign{Email1SentAt: &sent, Email2SentAt: &sent}, 150, 3},
		{"email 4 due", repository.Campaign{Email1SentAt: &sent, Email2SentAt: &sent, Email3SentAt: &sent}, 210, 4},
		{"all sent", repository.Campaign{Email1SentAt: &sent, Email2SentAt: &sent, Email3SentAt: &sent, Email4SentAt: &sent}, 400, 0},
	}
	for _, tc := range cases {
		if got := NextEmail(tc.c, tc.days); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestDaysSinceFloors(t *testing.T) {
	created := testNow.Add(-(14*24*time.Hour - time.Minute))
	if got := DaysSince(created, testNow); got != 13 {
		t.Fatalf("expected 13, got %d", got)
	}
}

func TestCreateCampaignForReviewerIsIdempotent(t *testing.T) {
	f := newFixture(openSettings())
	first, created, err := f.svc.CreateCampaignForReviewer(context.Background(), CreateInput{CustomerID: 7, Email: " Pat@Example.com ", ReviewID: "r1"})
	if err != nil || !created {
		t.Fatalf("create: %v created=%v", err, created)
	}
	second, created, err := f.svc.CreateCampaignForReviewer(context.Background(), CreateInput{CustomerID: 7, Email: "pat@example.com"})
	if err != nil || created {
		t.Fatalf("second create: %v created=%v", err, created)
	}
	if first != second {
		t.Fatalf("expected the same campaign id")
	}
	if got := f.store.campaigns[first]; got.CustomerEmail != "pat@example.com" || *got.OriginalReviewID != "r1" {
		t.Fatalf("unexpected campaign %+v", got)
	}
}

func TestCreateCampaignRequiresEmail(t *testing.T) {
	f := newFixture(openSettings())
	_, _, err := f.svc.CreateCampaignForReviewer(context.Background(), CreateInput{CustomerID: 7})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOpenEventResetsUnopenedStreak(t *testing.T) {
	f := newFixture(openSettings())
	c := f.store.add(repository.Campaign{CustomerID: 1, ConsecutiveUnopened: 1, Status: repository.StatusEmail1Sent})
	f.prefs.opens["msg-1"] = c.ID

	if err := f.svc.HandleResendEvent(context.Background(), ResendEvent{Type: ResendEventOpened, EmailID: "msg-1"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if f.store.campaigns[c.ID].ConsecutiveUnopened != 0 {
		t.Fatalf("expected streak reset")
	}
}

func TestBounceEventSuppressesRecipient(t *testing.T) {
	f := newFixture(openSettings())
	if err := f.svc.HandleResendEvent(context.Background(), ResendEvent{Type: ResendEventBounced, EmailID: "msg-9"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.prefs.suppressedMessages) != 1 || f.prefs.suppressedMessages[0] != "msg-9" {
		t.Fatalf("expected suppression, got %v", f.prefs.suppressedMessages)
	}
}

func TestNonEmailEventsAreIgnored(t *testing.T) {
	f := newFixture(openSettings())
	for _, typ := range []string{"contact.created", "domain.updated", "email.delivered"} {
		if err := f.svc.HandleResendEvent(context.Background(), ResendEvent{Type: typ}); err != nil {
			t.Fatalf("%s: expected no error, got %v", typ, err)
		}
	}
	if len(f.prefs.suppressedMessages) != 0 {
		t.Fatalf("ignored events must not suppress anyone, got %v", f.prefs.suppressedMessages)
	}
}

func TestEmailEventRequiresEmailID(t *testing.T) {
	f := newFixture(openSettings())
	err := f.svc.HandleResendEvent(context.Background(), ResendEvent{Type: ResendEventBounced})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPauseAndResume(t *testing.T) {
	f := newFixture(openSettings())
	c := f.store.add(repository.Campaign{CustomerID: 1})

	paused, err := f.svc.Pause(context.Background(), c.ID, "")
	if err != nil || paused.Status != repository.StatusPaused || *paused.PauseReason != PauseManual {
		t.Fatalf("pause: %v %+v", err, paused)
	}
	if _, err := f.svc.Pause(context.Background(), c.ID, ""); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on second pause, got %v", err)
	}
	resumed, err := f.svc.Resume(context.Background(), c.ID)
	if err != nil || resumed.Status != repository.StatusQueued {
		t.Fatalf("resume: %v %+v", err, resumed)
	}
	if _, err := f.svc.Resume(context.Background(), uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSaveTemplateValidatesSlot(t *testing.T) {
	f := newFixture(openSettings())
	if _, err := f.svc.SaveTemplate(context.Background(), repository.Template{EmailNumber: 5, Subject: "x", HTMLBody: "x"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	unknown := repository.Template{CampaignType: "winback", EmailNumber: 1, Subject: "x", HTMLBody: "x"}
	if _, err := f.svc.SaveTemplate(context.Background(), unknown); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected unknown campaign type to be rejected, got %v", err)
	}
	saved, err := f.svc.SaveTemplate(context.Background(), repository.Template{EmailNumber: 2, Subject: "x", HTMLBody: "x"})
	if err != nil || saved.CampaignType != string(CampaignTypeReferralNurture) {
		t.Fatalf("save: %v %+v", err, saved)
	}
}

func TestSeasonForMonths(t *testing.T) {
	cases := map[time.Month]string{
		time.December: "winter", time.January: "winter", time.February: "winter",
		time.March: "spring", time.May: "spring",
		time.June: "summer", time.August: "summer",
		time.September: "fall", time.November: "fall",
	}
	for month, want := range cases {
		if got := SeasonFor(time.Date(2026, month, 1, 0, 0, 0, 0, time.UTC)).Name; got != want {
			t.Fatalf("%s: expected %s, got %s", month, want, got)
		}
	}
}

func TestStrategyFor(t *testing.T) {
	want := []string{"value", "trust", "social_proof", "urgency"}
	for i, w := range want {
		if got := StrategyFor(CampaignTypeReferralNurture, i+1, ""); got != w {
			t.Fatalf("email %d: expected %s, got %s", i+1, w, got)
		}
	}
	if got := StrategyFor(CampaignTypeReferralNurture, 1, "urgency"); got != "urgency" {
		t.Fatalf("override ignored: %s", got)
	}
	if got := StrategyFor(CampaignType("winback"), 3, ""); got != StrategyValue {
		t.Fatalf("unknown campaign type should fall back to value, got %s", got)
	}
	if got := StrategyFor(CampaignTypeReferralNurture, 5, ""); got != StrategyValue {
		t.Fatalf("out-of-range slot should fall back to value, got %s", got)
	}
}

func TestEveryCampaignTypeHasGuidedStrategies(t *testing.T) {
	for campaignType, table := range strategies {
		parsed, ok := ParseCampaignType(string(campaignType))
		if !ok || parsed != campaignType {
			t.Fatalf("%s does not round-trip through ParseCampaignType", campaignType)
		}
		for i, strategy := range table {
			if _, ok := strategyGuidance[strategy]; !ok {
				t.Fatalf("%s email %d: strategy %q has no guidance", campaignType, i+1, strategy)
			}
		}
	}
	if parsed, ok := ParseCampaignType(""); !ok || parsed != CampaignTypeReferralNurture {
		t.Fatalf("empty campaign type should default to referral nurture, got %q", parsed)
	}
	if _, ok := ParseCampaignType("winback"); ok {
		t.Fatal("unknown campaign type accepted")
	}
}

func TestTemplateSourceEscapesHTMLValues(t *testing.T) {
	store := newMemoryStore()
	store.templates[1] = repository.Template{
		Subject:  "Thanks {{firstName}}",
		HTMLBody: "<p>Hi {{customerName}}, call {{referralPhone}}</p>",
	}
	src := NewTemplateSource(store)
	st := openSettings().settings

	got, err := src.Content(context.Background(), ContentRequest{EmailNumber: 1, CustomerName: "pat <b>smith</b>", Settings: st, Now: testNow})
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if got.Subject != "Thanks Pat" {
		t.Fatalf("unexpected subject %q", got.Subject)
	}
	if !strings.Contains(got.HTML, "pat &lt;b&gt;smith&lt;/b&gt;") || strings.Contains(got.HTML, "Season") {
		t.Fatalf("unexpected html %q", got.HTML)
	}
	if got.Text == "" || got.Generated {
		t.Fatalf("expected plain-text fallback and template origin, got %+v", got)
	}
}

type fakeGenerator struct {
	prompt ai.EmailPrompt
	calls  int
}

func (g *fakeGenerator) GenerateEmail(_ context.Context, p ai.EmailPrompt) (ai.EmailContent, error) {
	g.calls++
	g.prompt = p
	return ai.EmailContent{Subject: "Generated", BodyHTML: "<p>Hello there</p>"}, nil
}

func TestFallbackSourceGeneratesOnlyWithoutTemplate(t *testing.T) {
	store := newMemoryStore()
	gen := &fakeGenerator{}
	src := NewFallbackSource(NewTemplateSource(store), NewGeneratedSource(gen))
	req := ContentRequest{CampaignType: CampaignTypeReferralNurture, EmailNumber: 2, Settings: openSettings().settings, Now: testNow}

	got, err := src.Content(context.Background(), req)
	if err != nil || !got.Generated || gen.calls != 1 {
		t.Fatalf("expected generated content, got %+v err=%v calls=%d", got, err, gen.calls)
	}
	if got.Text != "Hello there" {
		t.Fatalf("expected plain text derived from html, got %q", got.Text)
	}
	if !strings.Contains(gen.prompt.User, "Season: spring") || !strings.Contains(gen.prompt.User, "Strategy: trust") {
		t.Fatalf("prompt missing context: %s", gen.prompt.User)
	}

	store.templates[2] = repository.Template{Subject: "Stored", HTMLBody: "<p>x</p>"}
	got, err = src.Content(context.Background(), req)
	if err != nil || got.Subject != "Stored" || gen.calls != 1 {
		t.Fatalf("expected stored template, got %+v calls=%d", got, gen.calls)
	}
}

func TestFirstName(t *testing.T) {
	if got := FirstName("  mARIA garcia "); got != "Maria" {
		t.Fatalf("unexpected %q", got)
	}
	if got := FirstName(""); got != "there" {
		t.Fatalf("unexpected %q", got)
	}
}
