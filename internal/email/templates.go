package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"plumbing_backend/platform/sanitize"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title       string
	Heading     string
	Subheading  string
	CTALabel    string
	CTAURL      string
	CompanyName string
}

type bookingConfirmationEmailData struct {
	baseEmailData
	CustomerName string
	Service      string
	Window       string
	JobNumber    string
}

type voucherIssuedEmailData struct {
	baseEmailData
	CustomerName string
	Code         string
	Amount       string
	Minimum      string
	ExpiresOn    string
}

// BookingConfirmation describes a confirmed booking for the customer email.
type BookingConfirmation struct {
	To           string
	CustomerName string
	Service      string
	JobNumber    string
	ArrivalStart *time.Time
	ArrivalEnd   *time.Time
	CompanyName  string
}

// VoucherIssued describes a referral reward voucher for the referrer email.
type VoucherIssued struct {
	To           string
	CustomerName string
	Code         string
	AmountCents  int64
	MinimumCents int64
	ExpiresAt    time.Time
	RedeemURL    string
	CompanyName  string
}

// RenderBookingConfirmation renders the booking confirmation message.
func RenderBookingConfirmation(b BookingConfirmation) (Message, error) {
	subject := fmt.Sprintf("Your %s appointment is confirmed", b.Service)
	data := bookingConfirmationEmailData{
		baseEmailData: baseEmailData{Title: subject, Heading: "You're booked", CompanyName: b.CompanyName},
		CustomerName:  b.CustomerName,
		Service:       b.Service,
		Window:        formatWindow(b.ArrivalStart, b.ArrivalEnd),
		JobNumber:     b.JobNumber,
	}
	html, err := renderEmailTemplate("booking_confirmation.html", data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: b.To, Subject: subject, HTML: html, Text: sanitize.PlainText(html)}, nil
}

// RenderVoucherIssued renders the referral reward voucher message.
func RenderVoucherIssued(v VoucherIssued) (Message, error) {
	subject := "Your referral reward is here"
	data := voucherIssuedEmailData{
		baseEmailData: baseEmailData{Title: subject, Heading: "Thanks for the referral", CTALabel: "View voucher", CTAURL: v.RedeemURL, CompanyName: v.CompanyName},
		CustomerName:  v.CustomerName,
		Code:          v.Code,
		Amount:        FormatUSD(v.AmountCents),
		Minimum:       FormatUSD(v.MinimumCents),
		ExpiresOn:     v.ExpiresAt.Format("January 2, 2006"),
	}
	html, err := renderEmailTemplate("voucher_issued.html", data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: v.To, Subject: subject, HTML: html, Text: sanitize.PlainText(html)}, nil
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func formatWindow(start, end *time.Time) string {
	if start == nil || end == nil {
		return ""
	}
	return fmt.Sprintf("%s, %s - %s", start.Format("Mon Jan 2"), start.Format("3:04 PM"), end.Format("3:04 PM"))
}

// FormatUSD renders cents as dollars, e.g. 2500 -> "$25.00".
func FormatUSD(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
