package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/mistakeknot/recall/internal/auth"
	"github.com/mistakeknot/recall/internal/core"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserRole     string `json:"user_role"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	user, err := s.store.GetUserByEmail(req.Email)
	if err != nil || !user.IsActive || !auth.CheckPassword(user.HashedPassword, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.issueTokens(w, user)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	stored, err := s.store.GetRefreshToken(req.RefreshToken)
	if err != nil || time.Now().UTC().After(stored.ExpiresAt) {
		writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}
	user, err := s.store.GetUser(stored.UserID)
	if err != nil || !user.IsActive {
		writeError(w, http.StatusUnauthorized, "account unavailable")
		return
	}
	// Rotate: the presented token is burned whether or not issuing
	// succeeds.
	_ = s.store.DeleteRefreshToken(stored.Token)
	s.issueTokens(w, user)
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	info, ok := auth.FromContext(r.Context())
	if ok {
		_ = s.store.DeleteUserRefreshTokens(info.UserID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Service) issueTokens(w http.ResponseWriter, user core.User) {
	access, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	refresh, err := s.issuer.NewRefreshToken(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	if err := s.store.SaveRefreshToken(refresh); err != nil {
		writeError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		UserRole:     string(user.Role),
		ExpiresIn:    int64(s.issuer.AccessTTL() / time.Second),
	})
}
