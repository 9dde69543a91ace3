package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"plumbing_backend/internal/ai"
	"plumbing_backend/internal/nurture/repository"
	settingsservice "plumbing_backend/internal/settings/service"
	"plumbing_backend/platform/sanitize"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CampaignType names a nurture sequence; stored templates are keyed by it.
type CampaignType string

// CampaignTypeReferralNurture is the only campaign type sent today.
const CampaignTypeReferralNurture CampaignType = "referral_nurture"

// ParseCampaignType maps a stored or requested name to a known campaign
// type. An empty name means the referral nurture sequence.
func ParseCampaignType(name string) (CampaignType, bool) {
	if name == "" {
		return CampaignTypeReferralNurture, true
	}
	ct := CampaignType(name)
	_, ok := strategies[ct]
	return ct, ok
}

// Messaging strategies, one per email slot.
const (
	StrategyValue       = "value"
	StrategyTrust       = "trust"
	StrategySocialProof = "social_proof"
	StrategyUrgency     = "urgency"
)

// ErrNoTemplate is returned by TemplateSource when no template is stored.
var ErrNoTemplate = errors.New("no stored email template")

// Content is a rendered email body before the unsubscribe footer.
type Content struct {
	Subject   string
	Preheader string
	HTML      string
	Text      string
	Generated bool
}

// ContentRequest is what a content source needs to write one email.
type ContentRequest struct {
	CampaignType CampaignType
	EmailNumber  int
	CustomerName string
	Settings     settingsservice.Settings
	Strategy     string
	Now          time.Time
}

// ContentSource produces the content of one nurture email.
type ContentSource interface {
	Content(ctx context.Context, req ContentRequest) (Content, error)
}

// Season is the marketing angle used for a time of year.
type Season struct {
	Name  string
	Angle string
}

var seasons = [...]Season{
	{Name: "winter", Angle: "Frozen and burst pipes, water heaters working overtime and holiday guests straining drains."},
	{Name: "spring", Angle: "Spring rains, sump pumps, outdoor spigots coming back online and fresh-start home projects."},
	{Name: "summer", Angle: "Irrigation leaks, high water bills, vacation prep and busy households using more water."},
	{Name: "fall", Angle: "Getting the home ready for cold weather, water heater checkups and protecting pipes before the first freeze."},
}

// SeasonFor maps a month to its season: Dec-Feb winter, Mar-May spring,
// Jun-Aug summer, Sep-Nov fall.
func SeasonFor(t time.Time) Season {
	switch t.Month() {
	case time.December, time.January, time.February:
		return seasons[0]
	case time.March, time.April, time.May:
		return seasons[1]
	case time.June, time.July, time.August:
		return seasons[2]
	default:
		return seasons[3]
	}
}

// strategies holds the messaging strategy for emails 1-4 of each campaign type.
var strategies = map[CampaignType][4]string{
	CampaignTypeReferralNurture: {StrategyValue, StrategyTrust, StrategySocialProof, StrategyUrgency},
}

var strategyGuidance = map[string]string{
	StrategyValue:       "Explain the reward clearly: friends get great service and the customer earns a credit for every completed referral.",
	StrategyTrust:       "Remind them why they trusted us: licensed plumbers, upfront pricing and work that is done right the first time.",
	StrategySocialProof: "Mention that neighbors regularly refer friends and family and how much those referrals mean to a local business.",
	StrategyUrgency:     "Give a friendly, low-pressure nudge that now is a great time to share before the busy season.",
}

// StrategyFor returns the strategy for an email slot; override wins when set.
func StrategyFor(campaignType CampaignType, emailNumber int, override string) string {
	if override != "" {
		return override
	}
	table, ok := strategies[campaignType]
	if !ok || emailNumber < 1 || emailNumber > len(table) {
		return StrategyValue
	}
	return table[emailNumber-1]
}

var titleCaser = cases.Title(language.English)

// FirstName returns the title-cased first word of a name, or "there".
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return titleCaser.String(strings.ToLower(fields[0]))
}

// TemplateStore reads admin-authored templates.
type TemplateStore interface {
	GetTemplate(ctx context.Context, campaignType string, emailNumber int) (*repository.Template, error)
}

// TemplateSource renders stored templates. Placeholders are {{firstName}},
// {{customerName}}, {{companyName}}, {{referralPhone}} and {{websiteUrl}}.
type TemplateSource struct {
	store TemplateStore
}

// NewTemplateSource creates a template-backed content source.
func NewTemplateSource(store TemplateStore) *TemplateSource {
	return &TemplateSource{store: store}
}

// Content renders the stored template or returns ErrNoTemplate.
func (s *TemplateSource) Content(ctx context.Context, req ContentRequest) (Content, error) {
	t, err := s.store.GetTemplate(ctx, string(req.CampaignType), req.EmailNumber)
	if err != nil {
		return Content{}, err
	}
	if t == nil {
		return Content{}, ErrNoTemplate
	}

	values := placeholders(req)
	plain := strings.NewReplacer(values...)
	escaped := make([]string, len(values))
	for i, v := range values {
		if i%2 == 1 {
			v = html.EscapeString(v)
		}
		escaped[i] = v
	}
	htmlBody := strings.NewReplacer(escaped...).Replace(t.HTMLBody)

	text := plain.Replace(t.PlainBody)
	if strings.TrimSpace(text) == "" {
		text = sanitize.PlainText(htmlBody)
	}
	return Content{
		Subject:   plain.Replace(t.Subject),
		Preheader: plain.Replace(t.Preheader),
		HTML:      htmlBody,
		Text:      text,
	}, nil
}

func placeholders(req ContentRequest) []string {
	return []string{
		"{{firstName}}", FirstName(req.CustomerName),
		"{{customerName}}", strings.TrimSpace(req.CustomerName),
		"{{companyName}}", req.Settings.CompanyName,
		"{{referralPhone}}", req.Settings.ReferralNurturePhone,
		"{{websiteUrl}}", req.Settings.WebsiteURL,
	}
}

// Generator writes email copy.
type Generator interface {
	GenerateEmail(ctx context.Context, p ai.EmailPrompt) (ai.EmailContent, error)
}

// GeneratedSource asks the AI collaborator for the email. Seasonal context is
// only ever added here, never to stored templates.
type GeneratedSource struct {
	gen Generator
}

// NewGeneratedSource creates an AI-backed content source.
func NewGeneratedSource(gen Generator) *GeneratedSource {
	return &GeneratedSource{gen: gen}
}

// Content generates the email.
func (s *GeneratedSource) Content(ctx context.Context, req ContentRequest) (Content, error) {
	out, err := s.gen.GenerateEmail(ctx, BuildPrompt(req))
	if err != nil {
		return Content{}, err
	}
	text := out.BodyPlain
	if strings.TrimSpace(text) == "" {
		text = sanitize.PlainText(out.BodyHTML)
	}
	return Content{
		Subject:   out.Subject,
		Preheader: out.Preheader,
		HTML:      out.BodyHTML,
		Text:      text,
		Generated: true,
	}, nil
}

// BuildPrompt assembles the system and user prompt for one email.
func BuildPrompt(req ContentRequest) ai.EmailPrompt {
	strategy := StrategyFor(req.CampaignType, req.EmailNumber, req.Strategy)
	season := SeasonFor(req.Now)

	system := fmt.Sprintf(`You write short, warm referral emails for %s, a local plumbing company.
Respond with a JSON object with the keys "subject", "preheader", "bodyHtml" and "bodyPlain".
bodyHtml uses only <p>, <strong>, <em>, <ul>, <li> and <a> tags. Do not include an unsubscribe link.`,
		req.Settings.CompanyName)

	var b strings.Builder
	fmt.Fprintf(&b, "Write email %d of 4 in a referral program series.\n", req.EmailNumber)
	fmt.Fprintf(&b, "Customer first name: %s\n", FirstName(req.CustomerName))
	fmt.Fprintf(&b, "Strategy: %s. %s\n", strategy, strategyGuidance[strategy])
	fmt.Fprintf(&b, "Season: %s. %s\n", season.Name, season.Angle)
	if req.Settings.ReferralNurturePhone != "" {
		fmt.Fprintf(&b, "Friends can call %s and mention the customer's name.\n", req.Settings.ReferralNurturePhone)
	}
	if req.Settings.WebsiteURL != "" {
		fmt.Fprintf(&b, "Website: %s\n", req.Settings.WebsiteURL)
	}
	return ai.EmailPrompt{System: system, User: b.String()}
}

// FallbackSource tries primary and uses fallback only when primary has no
// stored template.
type FallbackSource struct {
	primary  ContentSource
	fallback ContentSource
}

// NewFallbackSource chains a template source in front of a generator.
func NewFallbackSource(primary, fallback ContentSource) *FallbackSource {
	return &FallbackSource{primary: primary, fallback: fallback}
}

// Content returns the primary content or, on ErrNoTemplate, the fallback's.
func (s *FallbackSource) Content(ctx context.Context, req ContentRequest) (Content, error) {
	c, err := s.primary.Content(ctx, req)
	if errors.Is(err, ErrNoTemplate) && s.fallback != nil {
		return s.fallback.Content(ctx, req)
	}
	return c, err
}
