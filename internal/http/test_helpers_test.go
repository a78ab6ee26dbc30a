package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mistakeknot/recall/internal/auth"
	"github.com/mistakeknot/recall/internal/core"
	"github.com/mistakeknot/recall/internal/storage/sqlite"
	"github.com/mistakeknot/recall/internal/ws"
)

// testEnv bundles a Service + httptest.Server + ws.Hub for handler
// tests, with one admin and one regular user already provisioned.
type testEnv struct {
	srv    *httptest.Server
	hub    *ws.Hub
	store  *sqlite.Store
	issuer *auth.Issuer

	admin      core.User
	user       core.User
	adminToken string
	userToken  string
}

const testPassword = "s3cret-pw"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := sqlite.NewInMemory()
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	issuer := auth.NewIssuer("test-secret", time.Hour, 30*24*time.Hour)
	hub := ws.NewHub()
	svc := NewService(st, issuer).WithBroadcaster(hub)
	router := NewRouter(svc, hub.Handler(), auth.Middleware(issuer, PublicPath))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admin, err := st.CreateUser(core.User{Email: "admin@test", HashedPassword: hash, Role: core.RoleAdmin, IsActive: true})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	user, err := st.CreateUser(core.User{Email: "user@test", HashedPassword: hash, Role: core.RoleUser, IsActive: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	adminToken, err := issuer.IssueAccessToken(admin)
	if err != nil {
		t.Fatalf("admin token: %v", err)
	}
	userToken, err := issuer.IssueAccessToken(user)
	if err != nil {
		t.Fatalf("user token: %v", err)
	}
	return &testEnv{
		srv: srv, hub: hub, store: st, issuer: issuer,
		admin: admin, user: user,
		adminToken: adminToken, userToken: userToken,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (e *testEnv) get(t *testing.T, path, token string) *http.Response {
	return e.do(t, http.MethodGet, path, token, nil)
}

func (e *testEnv) post(t *testing.T, path, token string, body any) *http.Response {
	return e.do(t, http.MethodPost, path, token, body)
}

func (e *testEnv) put(t *testing.T, path, token string, body any) *http.Response {
	return e.do(t, http.MethodPut, path, token, body)
}

func (e *testEnv) delete(t *testing.T, path, token string) *http.Response {
	return e.do(t, http.MethodDelete, path, token, nil)
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, body)
	}
}

// envUser builds an active regular user for direct store insertion.
func envUser(email string) core.User {
	return core.User{Email: email, HashedPassword: "x", Role: core.RoleUser, IsActive: true}
}

// createDocument ingests a raw_text document as the given token's user.
func (e *testEnv) createDocument(t *testing.T, token, title, text string, collectionIDs []string) documentDTO {
	t.Helper()
	resp := e.post(t, "/documents", token, map[string]any{
		"title":          title,
		"raw_text":       text,
		"collection_ids": collectionIDs,
	})
	requireStatus(t, resp, http.StatusOK)
	return decodeJSON[documentDTO](t, resp)
}

func (e *testEnv) createCollection(t *testing.T, token, name string) collectionDTO {
	t.Helper()
	resp := e.post(t, "/collections", token, map[string]any{"name": name})
	requireStatus(t, resp, http.StatusOK)
	return decodeJSON[collectionDTO](t, resp)
}
