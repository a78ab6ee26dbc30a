package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mistakeknot/recall/internal/core"
)

func testIssuer() *Issuer {
	return NewIssuer("test-secret", time.Hour, 30*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	iss := testIssuer()
	token, err := iss.IssueAccessToken(core.User{ID: "u1", Email: "a@example.com", Role: core.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	info, err := iss.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if info.UserID != "u1" || info.Email != "a@example.com" || !info.IsAdmin() {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	iss := NewIssuer("test-secret", -time.Minute, time.Hour)
	token, err := iss.IssueAccessToken(core.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := iss.VerifyAccessToken(token); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestAccessTokenWrongSecret(t *testing.T) {
	token, err := testIssuer().IssueAccessToken(core.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other := NewIssuer("different-secret", time.Hour, time.Hour)
	if _, err := other.VerifyAccessToken(token); err == nil {
		t.Fatal("expected verification to fail with wrong secret")
	}
}

func TestAccessTokensAreUnique(t *testing.T) {
	iss := testIssuer()
	u := core.User{ID: "u1", Email: "a@example.com", Role: core.RoleUser}
	a, err := iss.IssueAccessToken(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	b, err := iss.IssueAccessToken(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// Two tokens minted within the same second must still differ, or a
	// quick refresh hands back the token it was meant to replace.
	if a == b {
		t.Fatal("back-to-back access tokens must differ")
	}
}

func TestRefreshTokensAreUnique(t *testing.T) {
	iss := testIssuer()
	a, err := iss.NewRefreshToken("u1")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := iss.NewRefreshToken("u1")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.Token == b.Token {
		t.Fatal("refresh tokens must be unique")
	}
	if !a.ExpiresAt.After(time.Now()) {
		t.Fatalf("expiry in the past: %v", a.ExpiresAt)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "s3cret") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("wrong password accepted")
	}
}

func TestMiddleware(t *testing.T) {
	iss := testIssuer()
	token, _ := iss.IssueAccessToken(core.User{ID: "u1", Email: "a@example.com", Role: core.RoleUser})

	var seen Info
	handler := Middleware(iss, func(r *http.Request) bool {
		return r.URL.Path == "/login"
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("public path passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/login", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status %d", rec.Code)
		}
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/documents", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "message") {
			t.Fatalf("expected message body, got %q", rec.Body.String())
		}
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/documents", nil)
		req.Header.Set("Authorization", "Bearer nonsense")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status %d", rec.Code)
		}
	})

	t.Run("valid token reaches handler with info", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/documents", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status %d", rec.Code)
		}
		if seen.UserID != "u1" || seen.Role != core.RoleUser {
			t.Fatalf("info: %+v", seen)
		}
	})
}

func TestConfigBootstrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret == "" || cfg.AdminPassword == "" {
		t.Fatalf("expected generated credentials: %+v", cfg)
	}
	if cfg.Addr == "" || cfg.DBPath == "" || cfg.AdminEmail == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("config mode %v, want 0600", info.Mode().Perm())
	}

	// Loading again must return the same secret rather than regenerating.
	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.JWTSecret != cfg.JWTSecret {
		t.Fatal("secret changed between loads")
	}
}
