package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// refreshCooldown rate-limits RefreshIfNeeded so callers polling it
// cannot storm the refresh endpoint.
const refreshCooldown = 5 * time.Minute

// Session is the client's view of an authenticated login.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Role         string    `json:"role"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresIn    int64     `json:"expires_in"`
}

// ExpiresAt returns the access token deadline, zero when unknown.
func (s Session) ExpiresAt() time.Time {
	if s.IssuedAt.IsZero() || s.ExpiresIn == 0 {
		return time.Time{}
	}
	return s.IssuedAt.Add(time.Duration(s.ExpiresIn) * time.Second)
}

func (s Session) Expired() bool {
	at := s.ExpiresAt()
	return !at.IsZero() && time.Now().After(at)
}

type tokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserRole     string `json:"user_role"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login authenticates and installs the session. Failures surface as
// *AuthenticationError.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	resp, err := c.send(ctx, http.MethodPost, "/login", mustJSON(map[string]string{
		"email":    email,
		"password": password,
	}), "application/json")
	if err != nil {
		return Session{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Session{}, &AuthenticationError{Status: resp.StatusCode, Message: serverMessage(resp)}
	}
	var payload tokenPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Session{}, fmt.Errorf("decode login response: %w", err)
	}
	session := Session{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		Role:         payload.UserRole,
		IssuedAt:     time.Now().UTC(),
		ExpiresIn:    payload.ExpiresIn,
	}
	c.installSession(session)
	return session, nil
}

// Refresh exchanges the refresh token for new tokens. An
// *AuthenticationError means the session is gone and the caller must
// log in again.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	gen := c.refreshGen
	c.mu.Unlock()
	return c.refreshAfter(ctx, gen)
}

// RefreshIfNeeded refreshes at most once per cooldown window. The
// periodic scheduling (the usual cadence is just short of the access
// TTL) belongs to the caller.
func (c *Client) RefreshIfNeeded(ctx context.Context) error {
	c.mu.Lock()
	recent := !c.lastRefresh.IsZero() && time.Since(c.lastRefresh) < refreshCooldown
	gen := c.refreshGen
	c.mu.Unlock()
	if recent {
		return nil
	}
	return c.refreshAfter(ctx, gen)
}

// refreshAfter performs one refresh unless another caller already
// settled the observed generation, in which case it returns that
// attempt's outcome. Concurrent 401s collapse to a single refresh
// request whether it succeeds or fails; only transport errors leave
// the generation open for a retry.
func (c *Client) refreshAfter(ctx context.Context, observedGen uint64) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.Lock()
	if c.refreshGen != observedGen {
		err := c.refreshErr
		c.mu.Unlock()
		return err
	}
	refreshToken := c.session.RefreshToken
	c.mu.Unlock()
	if refreshToken == "" {
		return &AuthenticationError{Message: "no refresh token; login required"}
	}

	resp, err := c.send(ctx, http.MethodPost, "/refresh_access_token", mustJSON(map[string]string{
		"refresh_token": refreshToken,
	}), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		authErr := &AuthenticationError{Status: resp.StatusCode, Message: serverMessage(resp)}
		c.settleRefresh(authErr)
		return authErr
	}
	var payload tokenPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		err = fmt.Errorf("decode refresh response: %w", err)
		c.settleRefresh(err)
		return err
	}

	c.mu.Lock()
	c.session.AccessToken = payload.AccessToken
	c.session.RefreshToken = payload.RefreshToken
	c.session.IssuedAt = time.Now().UTC()
	c.session.ExpiresIn = payload.ExpiresIn
	c.refreshGen++
	c.refreshErr = nil
	c.lastRefresh = time.Now()
	session := c.session
	c.mu.Unlock()
	if c.tokens != nil {
		_ = c.tokens.Save(session)
	}
	return nil
}

// settleRefresh closes the current generation with a terminal failure
// so callers queued behind this attempt share the error instead of
// repeating the round trip.
func (c *Client) settleRefresh(err error) {
	c.mu.Lock()
	c.refreshGen++
	c.refreshErr = err
	c.mu.Unlock()
}

// Logout revokes the session server-side best-effort; local state is
// cleared regardless of the network outcome.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, "/logout", nil, "")
	if err == nil {
		drain(resp)
	}
	c.mu.Lock()
	c.session = Session{}
	c.refreshGen++
	c.refreshErr = nil
	c.mu.Unlock()
	if c.tokens != nil {
		_ = c.tokens.Clear()
	}
	return nil
}

func (c *Client) installSession(session Session) {
	c.mu.Lock()
	c.session = session
	c.refreshGen++
	c.refreshErr = nil
	c.mu.Unlock()
	if c.tokens != nil {
		_ = c.tokens.Save(session)
	}
}

func mustJSON(v any) []byte {
	buf, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return buf
}

// TokenStore persists sessions across client restarts.
type TokenStore interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// FileTokenStore stores the session as JSON in a single file, written
// 0600 since it holds credentials.
type FileTokenStore struct {
	Path string
}

// DefaultTokenStore places the session file under the user config dir.
func DefaultTokenStore() (*FileTokenStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	return &FileTokenStore{Path: filepath.Join(dir, "recall", "session.json")}, nil
}

func (f *FileTokenStore) Load() (Session, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("parse session: %w", err)
	}
	return session, nil
}

func (f *FileTokenStore) Save(session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (f *FileTokenStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
