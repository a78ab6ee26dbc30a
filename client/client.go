// Package client provides a typed Go client for the Recall retrieval
// server: session management with automatic token refresh, resource
// CRUD, streaming RAG queries, and a websocket event feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type Client struct {
	BaseURL   string
	HTTP      *http.Client
	userAgent string
	tokens    TokenStore

	mu          sync.Mutex // guards session, refreshGen, refreshErr, lastRefresh
	refreshMu   sync.Mutex // serializes refresh round trips
	session     Session
	refreshGen  uint64
	refreshErr  error // outcome of the attempt that ended the previous generation
	lastRefresh time.Time

	Documents   *DocumentsService
	Collections *CollectionsService
	Graphs      *GraphsService
	Prompts     *PromptsService
	Users       *UsersService
	System      *SystemService
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.HTTP = httpClient
		}
	}
}

// WithTokenStore persists the session across restarts. The stored
// session, if any, is loaded at construction.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		c.tokens = store
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(ua)
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens != nil {
		if session, err := c.tokens.Load(); err == nil && session.AccessToken != "" {
			c.session = session
		}
	}
	c.Documents = &DocumentsService{c: c}
	c.Collections = &CollectionsService{c: c}
	c.Graphs = &GraphsService{c: c}
	c.Prompts = &PromptsService{c: c}
	c.Users = &UsersService{c: c}
	c.System = &SystemService{c: c}
	return c
}

// Session returns a copy of the current session.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// do runs a JSON request with the single 401 refresh-and-replay retry.
// out may be nil for endpoints whose body is discarded.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	contentType := ""
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = buf
		contentType = "application/json"
	}
	resp, err := c.roundTrip(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

// doMultipart is do for multipart payloads. The body is pre-built so a
// 401 replay resends identical bytes.
func (c *Client) doMultipart(ctx context.Context, method, path string, files map[string]fileUpload, fields map[string]string, out any) error {
	body, contentType, err := buildMultipart(files, fields)
	if err != nil {
		return err
	}
	resp, err := c.roundTrip(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

// roundTrip sends the request, retrying exactly once after a shared
// refresh when the server answers 401 on an authenticated call.
func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	gen := c.generation()
	resp, err := c.send(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !c.authenticated() {
		return resp, nil
	}
	drain(resp)
	if err := c.refreshAfter(ctx, gen); err != nil {
		return nil, err
	}
	return c.send(ctx, method, path, body, contentType)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.applyHeaders(req)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return resp, nil
}

func (c *Client) applyHeaders(req *http.Request) {
	c.mu.Lock()
	token := c.session.AccessToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func (c *Client) authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.AccessToken != ""
}

func (c *Client) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshGen
}

// decodeResponse closes the body, maps non-2xx statuses onto the error
// taxonomy, and decodes 2xx JSON into out.
func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	msg := serverMessage(resp)
	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthenticationError{Status: resp.StatusCode, Message: msg}
	}
	return &HTTPError{Status: resp.StatusCode, Message: msg}
}

func serverMessage(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}
	return http.StatusText(resp.StatusCode)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

type fileUpload struct {
	Name    string
	Content []byte
}

func buildMultipart(files map[string]fileUpload, fields map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, file := range files {
		part, err := mw.CreateFormFile(field, file.Name)
		if err != nil {
			return nil, "", fmt.Errorf("multipart file %s: %w", field, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", fmt.Errorf("multipart file %s: %w", field, err)
		}
	}
	for field, value := range fields {
		if err := mw.WriteField(field, value); err != nil {
			return nil, "", fmt.Errorf("multipart field %s: %w", field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("multipart close: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// listQuery renders offset/limit onto a path.
func listQuery(path string, opts ListOptions) string {
	values := url.Values{}
	if opts.Offset > 0 {
		values.Set("offset", fmt.Sprintf("%d", opts.Offset))
	}
	if opts.Limit > 0 {
		values.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}
	if len(values) == 0 {
		return path
	}
	return path + "?" + values.Encode()
}

// effectiveLimit mirrors the server default so Pagination arithmetic
// stays correct when the caller leaves Limit zero.
func effectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// list is the shared GET-a-page helper.
func list[T any](ctx context.Context, c *Client, path string, opts ListOptions) (ListResult[T], error) {
	var envelope listEnvelope[T]
	if err := c.do(ctx, http.MethodGet, listQuery(path, opts), nil, &envelope); err != nil {
		return ListResult[T]{}, err
	}
	return ListResult[T]{
		Results: envelope.Results,
		Pagination: Pagination{
			Offset: opts.Offset,
			Limit:  effectiveLimit(opts.Limit),
			Total:  envelope.TotalEntries,
		},
	}, nil
}
