package client

import (
	"context"
	"net/http"
	"net/url"
)

type GraphsService struct {
	c *Client
}

type GraphRequest struct {
	CollectionID string `json:"collection_id,omitempty"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Create builds a graph over a collection. CollectionID and Name are
// required; the server enforces one graph per collection.
func (s *GraphsService) Create(ctx context.Context, req GraphRequest) (Graph, error) {
	if req.CollectionID == "" || req.Name == "" {
		return Graph{}, &ValidationError{Message: "collection_id and name must be provided"}
	}
	var out Graph
	if err := s.c.do(ctx, http.MethodPost, "/graphs", req, &out); err != nil {
		return Graph{}, err
	}
	return out, nil
}

func (s *GraphsService) Retrieve(ctx context.Context, id string) (Graph, error) {
	var out Graph
	if err := s.c.do(ctx, http.MethodGet, "/graphs/"+url.PathEscape(id), nil, &out); err != nil {
		return Graph{}, err
	}
	return out, nil
}

func (s *GraphsService) Update(ctx context.Context, id string, req GraphRequest) (Graph, error) {
	var out Graph
	if err := s.c.do(ctx, http.MethodPut, "/graphs/"+url.PathEscape(id), req, &out); err != nil {
		return Graph{}, err
	}
	return out, nil
}

func (s *GraphsService) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, http.MethodDelete, "/graphs/"+url.PathEscape(id), nil, nil)
}

func (s *GraphsService) List(ctx context.Context, opts ListOptions) (ListResult[Graph], error) {
	return list[Graph](ctx, s.c, "/graphs", opts)
}

// Pull re-extracts entities and relationships from the graph's
// collection.
func (s *GraphsService) Pull(ctx context.Context, id string) (Graph, error) {
	var out Graph
	if err := s.c.do(ctx, http.MethodPost, "/graphs/"+url.PathEscape(id)+"/pull", nil, &out); err != nil {
		return Graph{}, err
	}
	return out, nil
}

func (s *GraphsService) ListEntities(ctx context.Context, id string, opts ListOptions) (ListResult[GraphEntity], error) {
	return list[GraphEntity](ctx, s.c, "/graphs/"+url.PathEscape(id)+"/entities", opts)
}

func (s *GraphsService) ListRelationships(ctx context.Context, id string, opts ListOptions) (ListResult[GraphRelationship], error) {
	return list[GraphRelationship](ctx, s.c, "/graphs/"+url.PathEscape(id)+"/relationships", opts)
}
