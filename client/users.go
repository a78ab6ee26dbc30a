package client

import (
	"context"
	"net/http"
	"net/url"
)

type UsersService struct {
	c *Client
}

type UserRequest struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Role     string `json:"role,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// Create registers a user. Admin only.
func (s *UsersService) Create(ctx context.Context, req UserRequest) (User, error) {
	if req.Email == "" || req.Password == "" {
		return User{}, &ValidationError{Message: "email and password must be provided"}
	}
	var out User
	if err := s.c.do(ctx, http.MethodPost, "/users", req, &out); err != nil {
		return User{}, err
	}
	return out, nil
}

func (s *UsersService) Retrieve(ctx context.Context, id string) (User, error) {
	var out User
	if err := s.c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &out); err != nil {
		return User{}, err
	}
	return out, nil
}

func (s *UsersService) Update(ctx context.Context, id string, req UserRequest) (User, error) {
	var out User
	if err := s.c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id), req, &out); err != nil {
		return User{}, err
	}
	return out, nil
}

func (s *UsersService) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

// List requires the admin role; others receive a 403 *HTTPError.
func (s *UsersService) List(ctx context.Context, opts ListOptions) (ListResult[User], error) {
	return list[User](ctx, s.c, "/users", opts)
}

func (s *UsersService) ChangePassword(ctx context.Context, id, current, next string) error {
	if next == "" {
		return &ValidationError{Message: "new password must be provided"}
	}
	return s.c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(id)+"/change_password", map[string]string{
		"current_password": current,
		"new_password":     next,
	}, nil)
}

func (s *UsersService) ListCollections(ctx context.Context, id string, opts ListOptions) (ListResult[Collection], error) {
	return list[Collection](ctx, s.c, "/users/"+url.PathEscape(id)+"/collections", opts)
}
