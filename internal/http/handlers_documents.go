package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mistakeknot/recall/internal/auth"
	"github.com/mistakeknot/recall/internal/core"
)

const maxUploadBytes = 32 << 20

type createDocumentRequest struct {
	Title         string         `json:"title"`
	RawText       string         `json:"raw_text"`
	Chunks        []string       `json:"chunks"`
	ContentType   string         `json:"content_type"`
	Metadata      map[string]any `json:"metadata"`
	CollectionIDs []string       `json:"collection_ids"`
}

func (s *Service) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listDocuments(w, r)
	case http.MethodPost:
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			s.createDocumentMultipart(w, r)
			return
		}
		s.createDocumentJSON(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Service) listDocuments(w http.ResponseWriter, r *http.Request) {
	info, _ := auth.FromContext(r.Context())
	owner := info.UserID
	if info.IsAdmin() {
		owner = ""
	}
	offset, limit := pageParams(r)
	docs, total, err := s.store.ListDocuments(owner, offset, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeList(w, toDocumentDTOs(docs), total)
}

func (s *Service) createDocumentJSON(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var chunks []core.Chunk
	switch {
	case req.RawText != "":
		chunks = chunkText(req.RawText)
	case len(req.Chunks) > 0:
		for _, text := range req.Chunks {
			chunks = append(chunks, core.Chunk{Text: text})
		}
	default:
		writeError(w, http.StatusBadRequest, "raw_text or chunks is required")
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}
	s.storeDocument(w, r, core.Document{
		Title:         strings.TrimSpace(req.Title),
		ContentType:   contentType,
		Metadata:      req.Metadata,
		CollectionIDs: req.CollectionIDs,
		SizeBytes:     textSize(chunks),
	}, chunks)
}

func (s *Service) createDocumentMultipart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read file part")
		return
	}

	var metadata map[string]any
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			writeError(w, http.StatusBadRequest, "metadata must be JSON")
			return
		}
	}
	var collectionIDs []string
	if raw := r.FormValue("collection_ids"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &collectionIDs); err != nil {
			writeError(w, http.StatusBadRequest, "collection_ids must be a JSON array")
			return
		}
	}
	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	s.storeDocument(w, r, core.Document{
		Title:         title,
		ContentType:   contentType,
		Metadata:      metadata,
		CollectionIDs: collectionIDs,
		SizeBytes:     int64(len(content)),
	}, chunkText(string(content)))
}

func (s *Service) storeDocument(w http.ResponseWriter, r *http.Request, doc core.Document, chunks []core.Chunk) {
	if doc.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	info, _ := auth.FromContext(r.Context())
	doc.OwnerID = info.UserID
	doc.IngestionStatus = core.IngestionSuccess
	created, err := s.store.CreateDocument(doc, chunks)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.broadcast(created.OwnerID, core.EventDocumentCreated, created.ID, toDocumentDTO(created))
	writeJSON(w, http.StatusOK, toDocumentDTO(created))
}

func (s *Service) handleDocumentByID(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/documents/")
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}
	id := parts[0]
	doc, err := s.store.GetDocument(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	info, _ := auth.FromContext(r.Context())
	if !info.IsAdmin() && doc.OwnerID != info.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "chunks":
			s.documentChunks(w, r, id)
		case "download":
			s.downloadDocument(w, r, doc)
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
		writeJSON(w, http.StatusOK, toDocumentDTO(doc))
	case http.MethodPost:
		s.updateDocument(w, r, doc)
	case http.MethodDelete:
		if err := s.store.DeleteDocument(id); err != nil {
			writeStoreError(w, err)
			return
		}
		s.broadcast(doc.OwnerID, core.EventDocumentDeleted, id, nil)
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Service) updateDocument(w http.ResponseWriter, r *http.Request, doc core.Document) {
	var req createDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title != "" {
		doc.Title = strings.TrimSpace(req.Title)
	}
	if req.Metadata != nil {
		doc.Metadata = req.Metadata
	}
	if req.CollectionIDs != nil {
		doc.CollectionIDs = req.CollectionIDs
	}
	var chunks []core.Chunk
	if req.RawText != "" {
		chunks = chunkText(req.RawText)
		doc.SizeBytes = textSize(chunks)
	} else if len(req.Chunks) > 0 {
		for _, text := range req.Chunks {
			chunks = append(chunks, core.Chunk{Text: text})
		}
		doc.SizeBytes = textSize(chunks)
	}
	updated, err := s.store.UpdateDocument(doc, chunks)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.broadcast(updated.OwnerID, core.EventDocumentUpdated, updated.ID, toDocumentDTO(updated))
	writeJSON(w, http.StatusOK, toDocumentDTO(updated))
}

func (s *Service) documentChunks(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	offset, limit := pageParams(r)
	chunks, total, err := s.store.DocumentChunks(id, offset, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeList(w, toChunkDTOs(chunks), total)
}

func (s *Service) downloadDocument(w http.ResponseWriter, r *http.Request, doc core.Document) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	text, err := s.store.DocumentText(doc.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Title+`"`)
	_, _ = io.WriteString(w, text)
}

func (s *Service) broadcast(userID string, typ core.EventType, entityID string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Broadcast(userID, core.Event{
		Type:      typ,
		UserID:    userID,
		EntityID:  entityID,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	})
}

// chunkText splits text into paragraph chunks on blank lines.
func chunkText(text string) []core.Chunk {
	var chunks []core.Chunk
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		chunks = append(chunks, core.Chunk{Text: para})
	}
	return chunks
}

func textSize(chunks []core.Chunk) int64 {
	var n int64
	for _, c := range chunks {
		n += int64(len(c.Text))
	}
	return n
}
