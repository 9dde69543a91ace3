package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type testJWTConfig struct{ secret string }

func (c testJWTConfig) GetJWTAccessSecret() string { return c.secret }

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newAdminEngine(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/admin", AuthRequired(testJWTConfig{secret: secret}), RequireRole("admin"), func(c *gin.Context) {
		c.String(http.StatusOK, MustGetIdentity(c).Email())
	})
	return engine
}

func TestAuthRequiredAcceptsAdminAccessToken(t *testing.T) {
	engine := newAdminEngine("s3cret")
	token := signToken(t, "s3cret", jwt.MapClaims{
		"sub":   uuid.NewString(),
		"email": "office@example.com",
		"roles": []string{"admin"},
		"type":  "access",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "office@example.com" {
		t.Fatalf("expected identity email in body, got %q", rec.Body.String())
	}
}

func TestAuthRequiredRejectsNonAccessTokens(t *testing.T) {
	engine := newAdminEngine("s3cret")
	token := signToken(t, "s3cret", jwt.MapClaims{
		"sub":  uuid.NewString(),
		"type": "unsubscribe",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRoleForbidsStaffWithoutAdmin(t *testing.T) {
	engine := newAdminEngine("s3cret")
	token := signToken(t, "s3cret", jwt.MapClaims{
		"sub":   uuid.NewString(),
		"roles": []string{"csr"},
		"type":  "access",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestSharedSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/hook", SharedSecret("X-Webhook-Secret", "abc"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, tc := range []struct {
		header string
		want   int
	}{{"abc", http.StatusNoContent}, {"nope", http.StatusUnauthorized}, {"", http.StatusUnauthorized}} {
		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		if tc.header != "" {
			req.Header.Set("X-Webhook-Secret", tc.header)
		}
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("header %q: expected %d, got %d", tc.header, tc.want, rec.Code)
		}
	}
}
