package handler

import (
	"html/template"
	"net/http"

	"plumbing_backend/internal/emailprefs/service"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const pageSource = "page"

var confirmPage = template.Must(template.New("confirm").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="utf-8"><meta name="robots" content="noindex"><title>Unsubscribe</title></head>
<body style="font-family:Arial,Helvetica,sans-serif;padding:40px;">
<h1>Unsubscribe {{.Email}}?</h1>
<p>You will no longer receive referral and review emails from us.</p>
<form method="post">
<input type="hidden" name="token" value="{{.Token}}">
<input type="hidden" name="source" value="page">
<button type="submit">Unsubscribe</button>
</form>
</body></html>`))

var unsubscribedPage = template.Must(template.New("unsubscribed").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="utf-8"><title>Unsubscribed</title></head>
<body style="font-family:Arial,Helvetica,sans-serif;padding:40px;">
<h1>You're unsubscribed</h1>
<p>{{.}} will no longer receive referral and review emails from us.</p>
</body></html>`))

// Handler serves the public unsubscribe endpoints.
type Handler struct {
	svc *service.Service
}

// New creates a new unsubscribe handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the unsubscribe routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/unsubscribe", h.UnsubscribeLink)
	rg.POST("/unsubscribe", h.Unsubscribe)
}

// UnsubscribeLink handles GET /api/email/unsubscribe?token= from the email
// footer. It only renders a confirmation form; link scanners that prefetch
// the URL change nothing.
func (h *Handler) UnsubscribeLink(c *gin.Context) {
	token := c.Query("token")
	email, err := h.svc.ParseToken(token)
	if err != nil {
		c.String(http.StatusBadRequest, "This unsubscribe link is not valid.")
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("X-Robots-Tag", "noindex")
	c.Status(http.StatusOK)
	_ = confirmPage.Execute(c.Writer, struct{ Email, Token string }{email, token})
}

// Unsubscribe handles POST /api/email/unsubscribe. Mail clients send the
// RFC 8058 one-click body and get JSON; the confirmation form gets a page.
func (h *Handler) Unsubscribe(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.PostForm("token")
	}
	fromPage := c.PostForm("source") == pageSource

	source := "one-click"
	if fromPage {
		source = "link"
	}
	email, err := h.svc.Unsubscribe(c.Request.Context(), token, source)
	if !fromPage {
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, gin.H{"unsubscribed": true})
		return
	}

	if err != nil {
		status := http.StatusInternalServerError
		if apperr.Is(err, apperr.KindBadRequest) {
			status = http.StatusBadRequest
		}
		c.String(status, "This unsubscribe link is not valid.")
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	_ = unsubscribedPage.Execute(c.Writer, email)
}
