// Package server runs the HTTP listener set: a required tcp address and
// an optional unix socket sharing one handler, shut down together.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"
)

type Config struct {
	Addr       string
	SocketPath string
	Handler    http.Handler
}

// Server fans one handler out over its configured listeners.
type Server struct {
	cfg       Config
	tcp       *http.Server
	listeners []listener
}

type listener struct {
	network string
	label   string
	ln      net.Listener
	srv     *http.Server
}

func New(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr required")
	}
	handler := cfg.Handler
	if handler == nil {
		handler = http.NewServeMux()
	}
	s := &Server{
		cfg: cfg,
		tcp: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	if cfg.SocketPath != "" {
		ln, err := openSocket(cfg.SocketPath)
		if err != nil {
			return nil, err
		}
		s.listeners = append(s.listeners, listener{
			network: "unix",
			label:   cfg.SocketPath,
			ln:      ln,
			srv:     &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second},
		})
	}
	return s, nil
}

// openSocket binds the unix socket, replacing a stale file left by a
// previous run, group-writable for local tooling.
func openSocket(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("unix listen: %w", err)
	}
	if err := os.Chmod(path, 0660); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return ln, nil
}

// Start serves on every listener. It blocks on the tcp listener; extra
// listeners serve in goroutines.
func (s *Server) Start() error {
	for _, l := range s.listeners {
		slog.Info("listening", "network", l.network, "addr", l.label)
		go l.srv.Serve(l.ln)
	}
	slog.Info("listening", "network", "tcp", "addr", s.cfg.Addr)
	return s.tcp.ListenAndServe()
}

// Shutdown drains every listener; the first error wins but all are
// attempted.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, l := range s.listeners {
		if err := l.srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.cfg.SocketPath != "" {
		os.Remove(s.cfg.SocketPath)
	}
	if err := s.tcp.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// SocketPath returns the configured socket path, empty when none.
func (s *Server) SocketPath() string {
	return s.cfg.SocketPath
}
