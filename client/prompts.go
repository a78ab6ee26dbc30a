package client

import (
	"context"
	"net/http"
	"net/url"
)

type PromptsService struct {
	c *Client
}

type PromptRequest struct {
	Name       string            `json:"name,omitempty"`
	Template   string            `json:"template,omitempty"`
	InputTypes map[string]string `json:"input_types,omitempty"`
}

func (s *PromptsService) Create(ctx context.Context, req PromptRequest) (Prompt, error) {
	if req.Name == "" || req.Template == "" {
		return Prompt{}, &ValidationError{Message: "name and template must be provided"}
	}
	var out Prompt
	if err := s.c.do(ctx, http.MethodPost, "/prompts", req, &out); err != nil {
		return Prompt{}, err
	}
	return out, nil
}

func (s *PromptsService) Retrieve(ctx context.Context, name string) (Prompt, error) {
	var out Prompt
	if err := s.c.do(ctx, http.MethodGet, "/prompts/"+url.PathEscape(name), nil, &out); err != nil {
		return Prompt{}, err
	}
	return out, nil
}

func (s *PromptsService) Update(ctx context.Context, name string, req PromptRequest) (Prompt, error) {
	var out Prompt
	if err := s.c.do(ctx, http.MethodPut, "/prompts/"+url.PathEscape(name), req, &out); err != nil {
		return Prompt{}, err
	}
	return out, nil
}

func (s *PromptsService) Delete(ctx context.Context, name string) error {
	return s.c.do(ctx, http.MethodDelete, "/prompts/"+url.PathEscape(name), nil, nil)
}

func (s *PromptsService) List(ctx context.Context, opts ListOptions) (ListResult[Prompt], error) {
	return list[Prompt](ctx, s.c, "/prompts", opts)
}
