// Package service authenticates back-office staff.
package service

import (
	"context"
	"strings"
	"time"

	"plumbing_backend/internal/auth/repository"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/config"
	"plumbing_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenType = "access"
	minPasswordLen  = 10
)

// RoleAdmin gates the admin API.
const RoleAdmin = "admin"

// dummyHash is compared against when the email is unknown so both paths cost
// one bcrypt comparison.
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3bHrPYtG9BNJ5iqcZl1k6Ci")

// Store is the persistence port of the auth service.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (repository.User, error)
	CreateUser(ctx context.Context, email, passwordHash string, roles []string) (repository.User, error)
	SetPassword(ctx context.Context, email, passwordHash string) error
}

// Service signs staff in.
type Service struct {
	store Store
	cfg   config.AuthServiceConfig
	log   *logger.Logger
	now   func() time.Time
}

// New creates the auth service.
func New(store Store, cfg config.AuthServiceConfig, log *logger.Logger) *Service {
	return &Service{store: store, cfg: cfg, log: log, now: time.Now}
}

// Session is an issued access token.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	Email       string
	Roles       []string
}

// SignIn checks the credentials and issues an access token.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			s.log.AuthEvent("sign_in", email, false, "unknown email")
			return Session{}, apperr.Unauthorized("invalid credentials")
		}
		return Session{}, apperr.Unavailable("failed to load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.AuthEvent("sign_in", email, false, "wrong password")
		return Session{}, apperr.Unauthorized("invalid credentials")
	}

	expires := s.now().Add(s.cfg.GetAccessTokenTTL())
	token, err := s.signJWT(user, expires)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, "failed to sign token", err)
	}
	s.log.AuthEvent("sign_in", user.Email, true, "")
	return Session{AccessToken: token, ExpiresAt: expires, Email: user.Email, Roles: user.Roles}, nil
}

func (s *Service) signJWT(user repository.User, expires time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"type":  accessTokenType,
		"roles": user.Roles,
		"exp":   expires.Unix(),
		"iat":   s.now().Unix(),
	}
	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenObj.SignedString([]byte(s.cfg.GetJWTAccessSecret()))
}

// CreateAdmin creates an admin user; used by the operator CLI.
func (s *Service) CreateAdmin(ctx context.Context, email, password string) (repository.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return repository.User{}, apperr.Validation("a valid email is required")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return repository.User{}, err
	}
	return s.store.CreateUser(ctx, email, hash, []string{RoleAdmin})
}

// ResetPassword sets a new password for an existing admin.
func (s *Service) ResetPassword(ctx context.Context, email, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.store.SetPassword(ctx, email, hash)
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", apperr.Validation("password must be at least 10 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to hash password", err)
	}
	return string(hash), nil
}
