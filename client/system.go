package client

import (
	"context"
	"net/http"
)

type SystemService struct {
	c *Client
}

// Health checks liveness. Works without authentication.
func (s *SystemService) Health(ctx context.Context) error {
	return s.c.do(ctx, http.MethodGet, "/system/health", nil, nil)
}

func (s *SystemService) Status(ctx context.Context) (SystemStatus, error) {
	var out SystemStatus
	if err := s.c.do(ctx, http.MethodGet, "/system/status", nil, &out); err != nil {
		return SystemStatus{}, err
	}
	return out, nil
}

// Settings returns server configuration. Admin only.
func (s *SystemService) Settings(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := s.c.do(ctx, http.MethodGet, "/system/settings", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Logs returns recent request log lines. Admin only.
func (s *SystemService) Logs(ctx context.Context, limit int) ([]LogLine, error) {
	opts := ListOptions{Limit: limit}
	page, err := list[LogLine](ctx, s.c, "/system/logs", opts)
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}
