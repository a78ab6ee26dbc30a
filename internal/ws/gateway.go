// Package ws pushes document, collection, and graph lifecycle events to
// connected websocket clients, keyed by user.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mistakeknot/recall/internal/auth"
)

const writeTimeout = 5 * time.Second

type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*websocket.Conn]struct{})}
}

// Handler upgrades an authenticated request to a websocket subscription
// for the caller's events. The bearer middleware must have run first.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, ok := auth.FromContext(r.Context())
		if !ok || info.UserID == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}

		h.add(info.UserID, conn)
		defer h.remove(info.UserID, conn)

		ctx := r.Context()
		for {
			var v any
			if err := wsjson.Read(ctx, conn, &v); err != nil {
				return
			}
		}
	}
}

type connEntry struct {
	conn   *websocket.Conn
	userID string
}

// Broadcast delivers event to every connection of userID. An empty
// userID fans out to all connected users.
func (h *Hub) Broadcast(userID string, event any) {
	entries := h.snapshot(userID)
	if len(entries) == 0 {
		return
	}
	for _, e := range entries {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := wsjson.Write(ctx, e.conn, event)
		cancel()
		if err != nil {
			go func(e connEntry) {
				e.conn.Close(websocket.StatusGoingAway, "write error")
				h.remove(e.userID, e.conn)
			}(e)
		}
	}
}

func (h *Hub) snapshot(userID string) []connEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []connEntry
	if userID != "" {
		for conn := range h.conns[userID] {
			out = append(out, connEntry{conn: conn, userID: userID})
		}
		return out
	}
	for uid, conns := range h.conns {
		for conn := range conns {
			out = append(out, connEntry{conn: conn, userID: uid})
		}
	}
	return out
}

func (h *Hub) add(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	perUser, ok := h.conns[userID]
	if !ok {
		perUser = make(map[*websocket.Conn]struct{})
		h.conns[userID] = perUser
	}
	perUser[conn] = struct{}{}
}

func (h *Hub) remove(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	perUser, ok := h.conns[userID]
	if !ok {
		return
	}
	delete(perUser, conn)
	if len(perUser) == 0 {
		delete(h.conns, userID)
	}
}
