package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/mistakeknot/recall/internal/auth"
	"github.com/mistakeknot/recall/internal/core"
	"github.com/mistakeknot/recall/internal/retrieval"
)

type ragRequest struct {
	Query   string     `json:"query"`
	Filters ragFilters `json:"filters"`
	Limit   int        `json:"limit"`
	Stream  bool       `json:"stream"`
}

type ragFilters struct {
	CollectionID string `json:"collection_id"`
}

type ragResponse struct {
	Results    []core.SearchResult `json:"results"`
	Completion string              `json:"completion"`
}

// streamPieceSize keeps streamed completion writes small enough that
// clients see multiple deltas.
const streamPieceSize = 64

func (s *Service) handleRAG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req ragRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	info, _ := auth.FromContext(r.Context())
	owner := info.UserID
	if info.IsAdmin() {
		owner = ""
	}
	chunks, err := s.store.SearchableChunks(owner, req.Filters.CollectionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	results := retrieval.TopK(req.Query, chunks, req.Limit)
	completion := retrieval.Completion(req.Query, results)

	if !req.Stream {
		if results == nil {
			results = []core.SearchResult{}
		}
		writeJSON(w, http.StatusOK, ragResponse{Results: results, Completion: completion})
		return
	}
	s.streamRAG(w, r, results, completion)
}

// streamRAG writes the tag-delimited stream: one <search> section with
// the sources as JSON, then the completion in pieces inside a single
// <completion> section.
func (s *Service) streamRAG(w http.ResponseWriter, r *http.Request, results []core.SearchResult, completion string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if results == nil {
		results = []core.SearchResult{}
	}
	sources, err := json.Marshal(results)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	_, _ = io.WriteString(w, "<search>")
	_, _ = w.Write(sources)
	_, _ = io.WriteString(w, "</search>")
	flusher.Flush()

	_, _ = io.WriteString(w, "<completion>")
	for len(completion) > 0 {
		if r.Context().Err() != nil {
			return
		}
		n := streamPieceSize
		if n > len(completion) {
			n = len(completion)
		}
		if _, err := io.WriteString(w, completion[:n]); err != nil {
			return
		}
		completion = completion[n:]
		flusher.Flush()
	}
	_, _ = io.WriteString(w, "</completion>")
	flusher.Flush()
}
