package client

import (
	"context"
	"net/http"
	"net/url"
)

type CollectionsService struct {
	c *Client
}

type CollectionRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *CollectionsService) Create(ctx context.Context, req CollectionRequest) (Collection, error) {
	if req.Name == "" {
		return Collection{}, &ValidationError{Message: "name must be provided"}
	}
	var out Collection
	if err := s.c.do(ctx, http.MethodPost, "/collections", req, &out); err != nil {
		return Collection{}, err
	}
	return out, nil
}

func (s *CollectionsService) Retrieve(ctx context.Context, id string) (Collection, error) {
	var out Collection
	if err := s.c.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(id), nil, &out); err != nil {
		return Collection{}, err
	}
	return out, nil
}

func (s *CollectionsService) Update(ctx context.Context, id string, req CollectionRequest) (Collection, error) {
	var out Collection
	if err := s.c.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(id), req, &out); err != nil {
		return Collection{}, err
	}
	return out, nil
}

func (s *CollectionsService) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, http.MethodDelete, "/collections/"+url.PathEscape(id), nil, nil)
}

func (s *CollectionsService) List(ctx context.Context, opts ListOptions) (ListResult[Collection], error) {
	return list[Collection](ctx, s.c, "/collections", opts)
}

func (s *CollectionsService) ListDocuments(ctx context.Context, id string, opts ListOptions) (ListResult[Document], error) {
	return list[Document](ctx, s.c, "/collections/"+url.PathEscape(id)+"/documents", opts)
}

func (s *CollectionsService) AddDocument(ctx context.Context, id, documentID string) error {
	path := "/collections/" + url.PathEscape(id) + "/documents/" + url.PathEscape(documentID)
	return s.c.do(ctx, http.MethodPost, path, nil, nil)
}

func (s *CollectionsService) RemoveDocument(ctx context.Context, id, documentID string) error {
	path := "/collections/" + url.PathEscape(id) + "/documents/" + url.PathEscape(documentID)
	return s.c.do(ctx, http.MethodDelete, path, nil, nil)
}
