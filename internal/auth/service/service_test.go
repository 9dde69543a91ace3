package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"plumbing_backend/internal/auth/repository"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/httpkit"
	"plumbing_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type testConfig struct{}

func (testConfig) GetJWTAccessSecret() string       { return "test-secret" }
func (testConfig) GetAccessTokenTTL() time.Duration { return 15 * time.Minute }

type memoryStore struct {
	users map[string]repository.User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[string]repository.User{}}
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (repository.User, error) {
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return repository.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

func (m *memoryStore) CreateUser(_ context.Context, email, hash string, roles []string) (repository.User, error) {
	if _, ok := m.users[email]; ok {
		return repository.User{}, apperr.Conflict("exists")
	}
	u := repository.User{ID: uuid.New(), Email: email, PasswordHash: hash, Roles: roles, CreatedAt: time.Now()}
	m.users[email] = u
	return u, nil
}

func (m *memoryStore) SetPassword(_ context.Context, email, hash string) error {
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return apperr.NotFound("user not found")
	}
	u.PasswordHash = hash
	m.users[u.Email] = u
	return nil
}

func newService(t *testing.T) (*Service, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	svc := New(store, testConfig{}, logger.Nop())
	if _, err := svc.CreateAdmin(context.Background(), "Office@Example.com", "correct horse battery"); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return svc, store
}

func TestSignInIssuesTokenAcceptedByAdminMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newService(t)

	session, err := svc.SignIn(context.Background(), "office@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if session.AccessToken == "" {
		t.Fatalf("expected access token")
	}

	r := gin.New()
	r.GET("/admin", httpkit.AuthRequired(testConfig{}), httpkit.RequireRole(RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, httpkit.GetIdentity(c).Email())
	})
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "office@example.com" {
		t.Fatalf("expected email claim, got %q", rec.Body.String())
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc, _ := newService(t)

	cases := []struct {
		name, email, password string
	}{
		{"wrong password", "office@example.com", "nope nope nope"},
		{"unknown email", "nobody@example.com", "correct horse battery"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SignIn(context.Background(), tc.email, tc.password)
			if !apperr.Is(err, apperr.KindUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestCreateAdminValidates(t *testing.T) {
	svc, _ := newService(t)

	if _, err := svc.CreateAdmin(context.Background(), "staff@example.com", "short"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for short password, got %v", err)
	}
	if _, err := svc.CreateAdmin(context.Background(), "not-an-email", "long enough password"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for email, got %v", err)
	}
	if _, err := svc.CreateAdmin(context.Background(), "office@example.com", "long enough password"); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestResetPassword(t *testing.T) {
	svc, _ := newService(t)

	if err := svc.ResetPassword(context.Background(), "office@example.com", "a brand new password"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.SignIn(context.Background(), "office@example.com", "a brand new password"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
	if _, err := svc.SignIn(context.Background(), "office@example.com", "correct horse battery"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("old password should be rejected, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newService(t)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	session, err := svc.SignIn(context.Background(), "office@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	r := gin.New()
	r.GET("/admin", httpkit.AuthRequired(testConfig{}), func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
