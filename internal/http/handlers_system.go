package httpapi

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/mistakeknot/recall/internal/auth"
)

func (s *Service) handleSystem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	parts := splitPath(r, "/system/")
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch parts[0] {
	case "health":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case "status":
		s.systemStatus(w)
	case "settings":
		s.adminOnly(w, r, s.systemSettings)
	case "logs":
		s.adminOnly(w, r, func(w http.ResponseWriter, r *http.Request) {
			limit := intParam(r, "limit", 100)
			lines := s.logs.Recent(limit)
			writeList(w, lines, len(lines))
		})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Service) adminOnly(w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	info, _ := auth.FromContext(r.Context())
	if !info.IsAdmin() {
		writeError(w, http.StatusForbidden, "admin access required")
		return
	}
	h(w, r)
}

func (s *Service) systemStatus(w http.ResponseWriter) {
	counts, err := s.store.Counts()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"start_time":     s.started,
		"uptime_seconds": int64(time.Since(s.started) / time.Second),
		"counts": map[string]int{
			"users":       counts.Users,
			"documents":   counts.Documents,
			"chunks":      counts.Chunks,
			"collections": counts.Collections,
		},
	})
}

func (s *Service) systemSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token_ttl_seconds": int64(s.issuer.AccessTTL() / time.Second),
		"default_list_limit":       defaultListLimit,
		"go_version":               runtime.Version(),
	})
}

// requestLog records every request in the log ring and to slog.
func RequestLog(logs *LogBuffer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logs.Add(LogLine{
			Time:     start.UTC(),
			Method:   r.Method,
			Path:     r.URL.Path,
			Status:   rec.status,
			Duration: time.Since(start).String(),
		})
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.written {
		r.status = status
		r.written = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps websocket upgrades working behind the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}
