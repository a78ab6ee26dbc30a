// Package embedded provides an embeddable Recall server for in-process use.
package embedded

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mistakeknot/recall/internal/auth"
	"github.com/mistakeknot/recall/internal/core"
	httpapi "github.com/mistakeknot/recall/internal/http"
	"github.com/mistakeknot/recall/internal/storage/sqlite"
	"github.com/mistakeknot/recall/internal/ws"
)

// Config configures the embedded server.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// If empty, an in-memory database is used.
	DBPath string

	// Port is the HTTP port to listen on. 0 picks a free port.
	Port int

	// Host is the host to bind to. Defaults to 127.0.0.1.
	Host string

	// JWTSecret signs access tokens. Generated when empty.
	JWTSecret string

	// AdminEmail/AdminPassword seed the admin account. Defaults:
	// admin@localhost with a random password (readable via
	// AdminCredentials).
	AdminEmail    string
	AdminPassword string
}

// Server is an embedded Recall server.
type Server struct {
	cfg     Config
	store   *sqlite.Store
	hub     *ws.Hub
	issuer  *auth.Issuer
	http    *http.Server
	ln      net.Listener
	sweeper *sqlite.Sweeper
	started bool
	mu      sync.Mutex
}

// New creates an embedded Recall server. The admin account is created
// on first run.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.JWTSecret == "" {
		secret, err := auth.GenerateSecret()
		if err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		cfg.JWTSecret = secret
	}
	if cfg.AdminPassword == "" {
		password, err := auth.GenerateSecret()
		if err != nil {
			return nil, fmt.Errorf("generate admin password: %w", err)
		}
		cfg.AdminPassword = password
	}
	if cfg.AdminEmail == "" {
		cfg.AdminEmail = "admin@localhost"
	}

	var store *sqlite.Store
	var err error
	if cfg.DBPath == "" {
		store, err = sqlite.NewInMemory()
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); mkErr != nil {
			return nil, fmt.Errorf("create db dir: %w", mkErr)
		}
		store, err = sqlite.New(cfg.DBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	if err := seedAdmin(store, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		store.Close()
		return nil, err
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, time.Hour, 30*24*time.Hour)
	hub := ws.NewHub()
	svc := httpapi.NewService(store, issuer).WithBroadcaster(hub)
	router := httpapi.NewRouter(svc, hub.Handler(), auth.Middleware(issuer, httpapi.PublicPath))

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}

	return &Server{
		cfg:     cfg,
		store:   store,
		hub:     hub,
		issuer:  issuer,
		http:    &http.Server{Handler: router},
		ln:      ln,
		sweeper: sqlite.NewSweeper(store, time.Hour),
	}, nil
}

func seedAdmin(store *sqlite.Store, email, password string) error {
	if _, err := store.GetUserByEmail(email); err == nil {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	_, err = store.CreateUser(core.User{
		Email:          email,
		HashedPassword: hash,
		Role:           core.RoleAdmin,
		IsActive:       true,
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

// Start serves in a goroutine. It is a no-op when already started.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.sweeper.Start(context.Background())
	go func() {
		if err := s.http.Serve(s.ln); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "recall server error: %v\n", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully and closes the store.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		s.store.Close()
		return nil
	}
	s.mu.Unlock()

	s.sweeper.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.http.Shutdown(ctx)
	s.store.Close()
	return err
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// URL returns the base URL for the server.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s", s.Addr())
}

// AdminCredentials returns the seeded admin login.
func (s *Server) AdminCredentials() (email, password string) {
	return s.cfg.AdminEmail, s.cfg.AdminPassword
}

// Store returns the underlying store for direct access if needed.
func (s *Server) Store() *sqlite.Store {
	return s.store
}
