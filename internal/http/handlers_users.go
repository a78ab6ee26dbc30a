package httpapi

import (
	"net/http"
	"strings"

	"github.com/mistakeknot/recall/internal/auth"
	"github.com/mistakeknot/recall/internal/core"
)

type userRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
}

func (s *Service) handleUsers(w http.ResponseWriter, r *http.Request) {
	info, _ := auth.FromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		if !info.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		offset, limit := pageParams(r)
		users, total, err := s.store.ListUsers(offset, limit)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		out := make([]userDTO, len(users))
		for i, u := range users {
			out[i] = toUserDTO(u)
		}
		writeList(w, out, total)
	case http.MethodPost:
		if !info.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		var req userRequest
		if !decodeBody(w, r, &req) {
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}
		role := core.Role(req.Role)
		if role == "" {
			role = core.RoleUser
		}
		if role != core.RoleAdmin && role != core.RoleUser {
			writeError(w, http.StatusBadRequest, "role must be admin or user")
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		created, err := s.store.CreateUser(core.User{
			Email:          req.Email,
			HashedPassword: hash,
			Role:           role,
			IsActive:       true,
		})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserDTO(created))
	default:
		methodNotAllowed(w)
	}
}

func (s *Service) handleUserByID(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/users/")
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}
	id := parts[0]
	info, _ := auth.FromContext(r.Context())
	if !info.IsAdmin() && info.UserID != id {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	user, err := s.store.GetUser(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "change_password":
			s.changePassword(w, r, user)
		case "collections":
			s.userCollections(w, r, user)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
		return
	}
	if len(parts) > 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, toUserDTO(user))
	case http.MethodPut:
		var req userRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Email != "" {
			user.Email = strings.TrimSpace(req.Email)
		}
		if req.Role != "" {
			if !info.IsAdmin() {
				writeError(w, http.StatusForbidden, "only admins may change roles")
				return
			}
			user.Role = core.Role(req.Role)
		}
		if req.IsActive != nil {
			if !info.IsAdmin() {
				writeError(w, http.StatusForbidden, "only admins may change activation")
				return
			}
			user.IsActive = *req.IsActive
		}
		updated, err := s.store.UpdateUser(user)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserDTO(updated))
	case http.MethodDelete:
		if !info.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		if err := s.store.DeleteUser(id); err != nil {
			writeStoreError(w, err)
			return
		}
		_ = s.store.DeleteUserRefreshTokens(id)
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Service) changePassword(w http.ResponseWriter, r *http.Request, user core.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req changePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "new_password is required")
		return
	}
	info, _ := auth.FromContext(r.Context())
	// Admins may reset other users without the current password.
	if info.UserID == user.ID && !auth.CheckPassword(user.HashedPassword, req.CurrentPassword) {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	user.HashedPassword = hash
	if _, err := s.store.UpdateUser(user); err != nil {
		writeStoreError(w, err)
		return
	}
	// Existing sessions survive on their access tokens; refresh tokens
	// are revoked so they expire within the access TTL.
	_ = s.store.DeleteUserRefreshTokens(user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

func (s *Service) userCollections(w http.ResponseWriter, r *http.Request, user core.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	offset, limit := pageParams(r)
	colls, total, err := s.store.ListCollections(user.ID, offset, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeList(w, toCollectionDTOs(colls), total)
}
