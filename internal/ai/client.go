// Package ai generates marketing email copy with the OpenAI chat completions
// API in JSON mode.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"plumbing_backend/platform/config"
	"plumbing_backend/platform/logger"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const requestTimeout = 60 * time.Second

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("openai api key not configured")

// EmailContent is the generated email.
type EmailContent struct {
	Subject   string `json:"subject"`
	Preheader string `json:"preheader"`
	BodyHTML  string `json:"bodyHtml"`
	BodyPlain string `json:"bodyPlain"`
}

// EmailPrompt describes the email to write.
type EmailPrompt struct {
	System string
	User   string
}

// Client calls the chat completions endpoint through the OpenAI SDK.
type Client struct {
	apiKey string
	model  string
	openai openai.Client
	log    *logger.Logger
}

// NewClient creates a client; it returns ErrNotConfigured from every call when
// the API key is empty.
func NewClient(cfg config.OpenAIConfig, log *logger.Logger) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.GetOpenAIAPIKey()),
		option.WithRequestTimeout(requestTimeout),
		option.WithMaxRetries(2),
	}
	if base := strings.TrimSpace(cfg.GetOpenAIBaseURL()); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &Client{
		apiKey: cfg.GetOpenAIAPIKey(),
		model:  cfg.GetOpenAIModel(),
		openai: openai.NewClient(opts...),
		log:    log,
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c.apiKey != "" }

// GenerateEmail asks the model for an email and parses its JSON answer.
func (c *Client) GenerateEmail(ctx context.Context, p EmailPrompt) (EmailContent, error) {
	if !c.Configured() {
		return EmailContent{}, ErrNotConfigured
	}

	chat, err := c.openai.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return EmailContent{}, fmt.Errorf("openai error (%d): %s", apiErr.StatusCode, apiErr.Message)
		}
		c.log.ProviderError("openai", "chat completion request failed", err)
		return EmailContent{}, fmt.Errorf("openai request: %w", err)
	}
	if len(chat.Choices) == 0 {
		return EmailContent{}, errors.New("openai returned no choices")
	}
	return ParseEmailContent(chat.Choices[0].Message.Content)
}

// ParseEmailContent decodes the model's JSON answer and requires a subject
// and an HTML body. A missing plain body is left empty for the caller to derive.
func ParseEmailContent(raw string) (EmailContent, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out EmailContent
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return EmailContent{}, fmt.Errorf("decode generated email: %w", err)
	}
	out.Subject = strings.TrimSpace(out.Subject)
	if out.Subject == "" || strings.TrimSpace(out.BodyHTML) == "" {
		return EmailContent{}, errors.New("generated email is missing a subject or body")
	}
	return out, nil
}
