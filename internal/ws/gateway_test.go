package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mistakeknot/recall/internal/auth"
	"github.com/mistakeknot/recall/internal/core"
	httpapi "github.com/mistakeknot/recall/internal/http"
	"github.com/mistakeknot/recall/internal/storage/sqlite"
)

type wsEnv struct {
	srv    *httptest.Server
	store  *sqlite.Store
	issuer *auth.Issuer
	userA  string // bearer tokens
	userB  string
	idA    string
	idB    string
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	st, err := sqlite.NewInMemory()
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	issuer := auth.NewIssuer("ws-test-secret", time.Hour, time.Hour)
	hub := NewHub()
	svc := httpapi.NewService(st, issuer).WithBroadcaster(hub)
	srv := httptest.NewServer(httpapi.NewRouter(svc, hub.Handler(), auth.Middleware(issuer, httpapi.PublicPath)))
	t.Cleanup(srv.Close)

	a, err := st.CreateUser(core.User{Email: "a@test", HashedPassword: "x", Role: core.RoleUser, IsActive: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	b, err := st.CreateUser(core.User{Email: "b@test", HashedPassword: "x", Role: core.RoleUser, IsActive: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	tokenA, _ := issuer.IssueAccessToken(a)
	tokenB, _ := issuer.IssueAccessToken(b)
	return &wsEnv{srv: srv, store: st, issuer: issuer, userA: tokenA, userB: tokenB, idA: a.ID, idB: b.ID}
}

func (e *wsEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/events"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	return conn
}

func (e *wsEnv) createDocument(t *testing.T, token, title string) {
	t.Helper()
	buf, _ := json.Marshal(map[string]any{"title": title, "raw_text": "body text"})
	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/documents", bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create document status: %d", resp.StatusCode)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	var event map[string]any
	if err := wsjson.Read(ctx, conn, &event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return event
}

func TestWSRequiresBearer(t *testing.T) {
	env := newWSEnv(t)

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/ws/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestWSReceivesDocumentEvents(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, env.userA)
	defer conn.Close(websocket.StatusNormalClosure, "")

	env.createDocument(t, env.userA, "watched")

	event := readEvent(t, conn, 2*time.Second)
	if event["type"] != "document.created" {
		t.Fatalf("expected document.created, got %v", event["type"])
	}
	if event["user_id"] != env.idA {
		t.Fatalf("event user: %v", event["user_id"])
	}
}

func TestWSUserIsolation(t *testing.T) {
	env := newWSEnv(t)
	connA := env.dial(t, env.userA)
	defer connA.Close(websocket.StatusNormalClosure, "")
	connB := env.dial(t, env.userB)
	defer connB.Close(websocket.StatusNormalClosure, "")

	env.createDocument(t, env.userA, "private")

	event := readEvent(t, connA, 2*time.Second)
	if event["type"] != "document.created" {
		t.Fatalf("expected document.created, got %v", event["type"])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var noop map[string]any
	if err := wsjson.Read(ctx, connB, &noop); err == nil {
		t.Fatal("user B must not receive user A's events")
	}
}

func TestWSSubscriptionCleanup(t *testing.T) {
	env := newWSEnv(t)

	conn := env.dial(t, env.userA)
	conn.Close(websocket.StatusNormalClosure, "done")

	time.Sleep(50 * time.Millisecond)

	// Broadcasting after disconnect must not panic.
	env.createDocument(t, env.userA, "after close")
}

func TestWSMultipleConnectionsSameUser(t *testing.T) {
	env := newWSEnv(t)
	conn1 := env.dial(t, env.userA)
	defer conn1.Close(websocket.StatusNormalClosure, "")
	conn2 := env.dial(t, env.userA)
	defer conn2.Close(websocket.StatusNormalClosure, "")

	env.createDocument(t, env.userA, "fanout")

	for i, conn := range []*websocket.Conn{conn1, conn2} {
		event := readEvent(t, conn, 2*time.Second)
		if event["type"] != "document.created" {
			t.Fatalf("conn %d: expected document.created, got %v", i, event["type"])
		}
	}
}
