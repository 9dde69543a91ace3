// Package service manages who may receive automated mail: the suppression
// list, recipient opt-outs, signed unsubscribe links and the send log.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"plumbing_backend/internal/emailprefs/repository"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/config"
	"plumbing_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTypeUnsubscribe = "unsubscribe"

// Store is the persistence port.
type Store interface {
	IsSuppressed(ctx context.Context, email string) (bool, string, error)
	Suppress(ctx context.Context, email, reason string) error
	IsUnsubscribed(ctx context.Context, email string) (bool, error)
	Unsubscribe(ctx context.Context, email, source string) error
	LogSend(ctx context.Context, e repository.SendLogEntry) error
	MarkOpened(ctx context.Context, providerMessageID string, at time.Time) (*uuid.UUID, error)
	RecipientForMessage(ctx context.Context, providerMessageID string) (string, error)
}

// Service is the email preferences service.
type Service struct {
	store   Store
	secret  []byte
	baseURL string
	log     *logger.Logger
}

// New creates a new email preferences service.
func New(store Store, cfg config.UnsubscribeConfig, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		secret:  []byte(cfg.GetUnsubscribeSecret()),
		baseURL: strings.TrimRight(cfg.GetPublicBaseURL(), "/"),
		log:     log,
	}
}

// Normalize lowercases and trims an address.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Suppression returns whether the address is suppressed and the stored reason.
func (s *Service) Suppression(ctx context.Context, email string) (bool, string, error) {
	return s.store.IsSuppressed(ctx, Normalize(email))
}

// IsOptedOut reports whether the recipient unsubscribed.
func (s *Service) IsOptedOut(ctx context.Context, email string) (bool, error) {
	return s.store.IsUnsubscribed(ctx, Normalize(email))
}

// Suppress adds an address to the suppression list.
func (s *Service) Suppress(ctx context.Context, email, reason string) error {
	return s.store.Suppress(ctx, Normalize(email), reason)
}

// Token signs an unsubscribe token for the address. Tokens do not expire.
func (s *Service) Token(email string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  Normalize(email),
		"type": tokenTypeUnsubscribe,
		"iat":  time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// UnsubscribeURL returns the public opt-out link for the address.
func (s *Service) UnsubscribeURL(email string) (string, error) {
	token, err := s.Token(email)
	if err != nil {
		return "", fmt.Errorf("sign unsubscribe token: %w", err)
	}
	return s.baseURL + "/api/email/unsubscribe?token=" + url.QueryEscape(token), nil
}

// ParseToken verifies an unsubscribe token and returns its address.
func (s *Service) ParseToken(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", apperr.BadRequest("invalid unsubscribe link")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperr.BadRequest("invalid unsubscribe link")
	}
	if typ, _ := claims["type"].(string); typ != tokenTypeUnsubscribe {
		return "", apperr.BadRequest("invalid unsubscribe link")
	}
	email, _ := claims["sub"].(string)
	if email == "" {
		return "", apperr.BadRequest("invalid unsubscribe link")
	}
	return email, nil
}

// Unsubscribe records the opt-out carried by a signed token and returns the address.
func (s *Service) Unsubscribe(ctx context.Context, rawToken, source string) (string, error) {
	email, err := s.ParseToken(rawToken)
	if err != nil {
		return "", err
	}
	if err := s.store.Unsubscribe(ctx, email, source); err != nil {
		return "", apperr.Unavailable("failed to record unsubscribe", err)
	}
	s.log.Info("recipient unsubscribed", "source", source)
	return email, nil
}

// LogSend records a send attempt. Failures are logged and swallowed.
func (s *Service) LogSend(ctx context.Context, e repository.SendLogEntry) {
	e.Recipient = Normalize(e.Recipient)
	if err := s.store.LogSend(ctx, e); err != nil {
		s.log.Warn("failed to write email send log", "error", err)
	}
}

// RecordOpen marks a message opened and returns its campaign id, if any.
func (s *Service) RecordOpen(ctx context.Context, providerMessageID string, at time.Time) (*uuid.UUID, error) {
	return s.store.MarkOpened(ctx, providerMessageID, at)
}

// SuppressMessageRecipient suppresses whoever received the given message.
func (s *Service) SuppressMessageRecipient(ctx context.Context, providerMessageID, reason string) error {
	recipient, err := s.store.RecipientForMessage(ctx, providerMessageID)
	if err != nil || recipient == "" {
		return err
	}
	return s.store.Suppress(ctx, recipient, reason)
}
