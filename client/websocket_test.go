package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func wsTestServer(t *testing.T, events []Event) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tokenPayload{AccessToken: "tok", RefreshToken: "ref", ExpiresIn: 3600})
	})
	mux.HandleFunc("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		for _, event := range events {
			if err := wsjson.Write(r.Context(), conn, event); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "done")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEventsRequiresLogin(t *testing.T) {
	c := New("http://recall.invalid")
	err := c.Events().Connect(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %T (%v), want *AuthenticationError", err, err)
	}
}

func TestEventsRejectedDial(t *testing.T) {
	srv := wsTestServer(t, nil)
	c := New(srv.URL)
	// Install a session the server will not accept.
	c.installSession(Session{AccessToken: "forged", RefreshToken: "r"})

	err := c.Events().Connect(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %T (%v), want *AuthenticationError", err, err)
	}
}

func TestEventsDelivery(t *testing.T) {
	want := []Event{
		{Type: "document.created", EntityID: "doc-1"},
		{Type: "graph.pulled", EntityID: "graph-1"},
	}
	srv := wsTestServer(t, want)

	c := New(srv.URL)
	if _, err := c.Login(context.Background(), "a@b", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	got := make(chan Event, len(want))
	sub := c.Events()
	sub.OnEvent(func(e Event) { got <- e })
	if err := sub.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer sub.Close()

	for i, expect := range want {
		select {
		case event := <-got:
			if event.Type != expect.Type || event.EntityID != expect.EntityID {
				t.Fatalf("event %d = %+v, want %+v", i, event, expect)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not exit after server close")
	}
}

func TestEventsCloseStopsLoop(t *testing.T) {
	hold := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		// Service control frames (like the real gateway's read loop does)
		// so the client's close handshake can complete.
		conn.CloseRead(r.Context())
		<-hold
		conn.Close(websocket.StatusNormalClosure, "")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(hold) })

	c := New(srv.URL)
	c.installSession(Session{AccessToken: "tok", RefreshToken: "r"})

	sub := c.Events()
	if err := sub.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not exit after Close")
	}
}
