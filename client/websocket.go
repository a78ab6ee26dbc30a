package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	wsDialTimeout      = 10 * time.Second
	wsReconnectInitial = time.Second
	wsReconnectMax     = 30 * time.Second
)

// EventHandler receives one websocket event.
type EventHandler func(Event)

// WSClient subscribes to the server's per-user event feed. It dials
// with the owning Client's bearer token and reconnects with backoff
// until Close or context cancellation.
type WSClient struct {
	c         *Client
	handlers  []EventHandler
	reconnect bool

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

type WSOption func(*WSClient)

// WithReconnect keeps the subscription alive across connection drops.
func WithReconnect() WSOption {
	return func(w *WSClient) {
		w.reconnect = true
	}
}

// Events returns a new websocket subscription. Connect must be called
// to start it.
func (c *Client) Events(opts ...WSOption) *WSClient {
	w := &WSClient{c: c, done: make(chan struct{})}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnEvent registers a handler. Handlers run sequentially on the read
// loop goroutine; register before Connect.
func (w *WSClient) OnEvent(fn EventHandler) {
	w.handlers = append(w.handlers, fn)
}

// Connect dials the event feed and starts the read loop. It returns
// after the first dial succeeds or fails; delivery is asynchronous.
func (w *WSClient) Connect(ctx context.Context) error {
	conn, err := w.dial(ctx)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
	go w.readLoop(ctx, conn)
	return nil
}

// Done is closed when the read loop has exited for good.
func (w *WSClient) Done() <-chan struct{} {
	return w.done
}

// Close tears down the subscription. No handlers run after Done is
// closed.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.conn != nil {
		return w.conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	return nil
}

func (w *WSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	w.c.mu.Lock()
	token := w.c.session.AccessToken
	w.c.mu.Unlock()
	if token == "" {
		return nil, &AuthenticationError{Message: "not logged in"}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	if w.c.userAgent != "" {
		header.Set("User-Agent", w.c.userAgent)
	}

	dialCtx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	defer cancel()
	conn, resp, err := websocket.Dial(dialCtx, wsURL(w.c.BaseURL), &websocket.DialOptions{
		HTTPClient: w.c.HTTP,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, &AuthenticationError{Status: resp.StatusCode, Message: "websocket dial rejected"}
		}
		return nil, &NetworkError{Err: err}
	}
	return conn, nil
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/events"
}

func (w *WSClient) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer close(w.done)
	backoff := wsReconnectInitial
	for {
		w.readAll(ctx, conn)
		conn.Close(websocket.StatusNormalClosure, "")

		w.mu.Lock()
		closed := w.closed
		w.mu.Unlock()
		if closed || ctx.Err() != nil || !w.reconnect {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < wsReconnectMax {
			backoff *= 2
		}

		next, err := w.dial(ctx)
		if err != nil {
			// Auth failures will not heal with retries.
			var authErr *AuthenticationError
			if errors.As(err, &authErr) {
				return
			}
			continue
		}
		backoff = wsReconnectInitial
		conn = next
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			conn.Close(websocket.StatusNormalClosure, "client closing")
			return
		}
		w.conn = conn
		w.mu.Unlock()
	}
}

func (w *WSClient) readAll(ctx context.Context, conn *websocket.Conn) error {
	for {
		var event Event
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			return err
		}
		for _, fn := range w.handlers {
			fn(event)
		}
	}
}
