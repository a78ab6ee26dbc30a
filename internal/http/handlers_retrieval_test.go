package httpapi

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestRAGNonStreaming(t *testing.T) {
	env := newTestEnv(t)
	env.createDocument(t, env.userToken, "go-notes", "Go has goroutines.\n\nRust has ownership.", nil)

	resp := env.post(t, "/rag", env.userToken, map[string]any{"query": "goroutines"})
	requireStatus(t, resp, http.StatusOK)
	body := decodeJSON[ragResponse](t, resp)
	if len(body.Results) != 1 {
		t.Fatalf("results: %+v", body.Results)
	}
	if body.Results[0].Text != "Go has goroutines." {
		t.Fatalf("source text: %q", body.Results[0].Text)
	}
	if !strings.Contains(body.Completion, "[[citation:1]]") {
		t.Fatalf("completion should cite: %q", body.Completion)
	}

	t.Run("empty query rejected", func(t *testing.T) {
		resp := env.post(t, "/rag", env.userToken, map[string]any{"query": "  "})
		requireStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("no matches still answers", func(t *testing.T) {
		resp := env.post(t, "/rag", env.userToken, map[string]any{"query": "quantum entanglement"})
		requireStatus(t, resp, http.StatusOK)
		body := decodeJSON[ragResponse](t, resp)
		if len(body.Results) != 0 || body.Completion == "" {
			t.Fatalf("body: %+v", body)
		}
	})
}

func TestRAGCollectionFilter(t *testing.T) {
	env := newTestEnv(t)
	coll := env.createCollection(t, env.userToken, "go")
	env.createDocument(t, env.userToken, "in", "goroutines inside collection", []string{coll.ID})
	env.createDocument(t, env.userToken, "out", "goroutines outside collection", nil)

	resp := env.post(t, "/rag", env.userToken, map[string]any{
		"query":   "goroutines",
		"filters": map[string]string{"collection_id": coll.ID},
	})
	requireStatus(t, resp, http.StatusOK)
	body := decodeJSON[ragResponse](t, resp)
	if len(body.Results) != 1 || body.Results[0].Text != "goroutines inside collection" {
		t.Fatalf("results: %+v", body.Results)
	}
}

func TestRAGStreamingWireFormat(t *testing.T) {
	env := newTestEnv(t)
	env.createDocument(t, env.userToken, "go-notes", "Go has goroutines.", nil)

	resp := env.post(t, "/rag", env.userToken, map[string]any{
		"query":  "goroutines",
		"stream": true,
	})
	requireStatus(t, resp, http.StatusOK)
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: %s", ct)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	body := string(raw)

	searchStart := strings.Index(body, "<search>")
	searchEnd := strings.Index(body, "</search>")
	compStart := strings.Index(body, "<completion>")
	compEnd := strings.Index(body, "</completion>")
	if searchStart != 0 || searchEnd < 0 || compStart < searchEnd || compEnd < compStart {
		t.Fatalf("section ordering broken: %q", body)
	}

	sources := body[searchStart+len("<search>") : searchEnd]
	if !strings.Contains(sources, `"document_id"`) || !strings.Contains(sources, "goroutines") {
		t.Fatalf("sources payload: %q", sources)
	}
	completion := body[compStart+len("<completion>") : compEnd]
	if !strings.Contains(completion, "[[citation:1]]") {
		t.Fatalf("completion: %q", completion)
	}
	if strings.TrimSpace(body[compEnd+len("</completion>"):]) != "" {
		t.Fatalf("trailing bytes after close tag: %q", body[compEnd:])
	}
}

func TestRAGScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	env.createDocument(t, env.adminToken, "admin-doc", "secret goroutines text", nil)

	resp := env.post(t, "/rag", env.userToken, map[string]any{"query": "goroutines"})
	requireStatus(t, resp, http.StatusOK)
	body := decodeJSON[ragResponse](t, resp)
	if len(body.Results) != 0 {
		t.Fatalf("user must not retrieve another owner's chunks: %+v", body.Results)
	}
}
