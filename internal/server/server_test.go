package server

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"
)

func TestServerRequiresAddr(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without addr")
	}
}

func TestServerUnixSocketLifecycle(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "recall.sock")
	mux := http.NewServeMux()
	mux.HandleFunc("/system/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv, err := New(Config{Addr: "127.0.0.1:0", SocketPath: sock, Handler: mux})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if srv.SocketPath() != sock {
		t.Fatalf("socket path: %s", srv.SocketPath())
	}

	// A second server on the same socket path replaces the stale file.
	srv2, err := New(Config{Addr: "127.0.0.1:0", SocketPath: sock, Handler: mux})
	if err != nil {
		t.Fatalf("stale socket not replaced: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv2.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
