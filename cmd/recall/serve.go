package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/recall/internal/auth"
	"github.com/mistakeknot/recall/internal/core"
	httpapi "github.com/mistakeknot/recall/internal/http"
	"github.com/mistakeknot/recall/internal/server"
	"github.com/mistakeknot/recall/internal/storage/sqlite"
	"github.com/mistakeknot/recall/internal/ws"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		dbPath     string
		socketPath string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the retrieval server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = auth.ResolveConfigPath()
			}
			cfg, err := auth.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if socketPath != "" {
				cfg.SocketPath = socketPath
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default ./recall.yaml, or $RECALL_CONFIG)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides config")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path, overrides config")
	cmd.Flags().StringVar(&socketPath, "socket", "", "unix socket path, overrides config")
	return cmd
}

func runServer(ctx context.Context, cfg auth.Config) error {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create db dir: %w", err)
		}
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("store init: %w", err)
	}
	defer store.Close()

	if err := seedAdmin(store, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return err
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	hub := ws.NewHub()
	svc := httpapi.NewService(store, issuer).WithBroadcaster(hub)
	router := httpapi.NewRouter(svc, hub.Handler(), auth.Middleware(issuer, httpapi.PublicPath))

	srv, err := server.New(server.Config{
		Addr:       cfg.Addr,
		SocketPath: cfg.SocketPath,
		Handler:    router,
	})
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	sweeper := sqlite.NewSweeper(store, time.Hour)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seedAdmin creates the admin account on first run. Existing accounts
// are left alone, including their password.
func seedAdmin(store *sqlite.Store, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if _, err := store.GetUserByEmail(email); err == nil {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := store.CreateUser(core.User{
		Email:          email,
		HashedPassword: hash,
		Role:           core.RoleAdmin,
		IsActive:       true,
	}); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	slog.Info("seeded admin account", "email", email)
	return nil
}
