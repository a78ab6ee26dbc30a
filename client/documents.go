package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

type DocumentsService struct {
	c *Client
}

// CreateDocumentRequest describes a document to ingest. Exactly one of
// FilePath, RawText, or Chunks must be set.
type CreateDocumentRequest struct {
	Title         string
	FilePath      string
	RawText       string
	Chunks        []string
	ContentType   string
	Metadata      map[string]any
	CollectionIDs []string
}

func (r CreateDocumentRequest) validate() error {
	provided := 0
	if r.FilePath != "" {
		provided++
	}
	if r.RawText != "" {
		provided++
	}
	if len(r.Chunks) > 0 {
		provided++
	}
	switch {
	case provided == 0:
		return &ValidationError{Message: "Either file, raw_text, or chunks must be provided"}
	case provided > 1:
		return &ValidationError{Message: "Only one of file, raw_text, or chunks may be provided"}
	}
	return nil
}

// Create ingests a document. Validation happens before any network
// call.
func (d *DocumentsService) Create(ctx context.Context, req CreateDocumentRequest) (Document, error) {
	if err := req.validate(); err != nil {
		return Document{}, err
	}
	if req.FilePath != "" {
		return d.createFromFile(ctx, req)
	}
	payload := map[string]any{
		"title":          req.Title,
		"content_type":   req.ContentType,
		"metadata":       req.Metadata,
		"collection_ids": req.CollectionIDs,
	}
	if req.RawText != "" {
		payload["raw_text"] = req.RawText
	} else {
		payload["chunks"] = req.Chunks
	}
	var out Document
	if err := d.c.do(ctx, http.MethodPost, "/documents", payload, &out); err != nil {
		return Document{}, err
	}
	return out, nil
}

func (d *DocumentsService) createFromFile(ctx context.Context, req CreateDocumentRequest) (Document, error) {
	content, err := os.ReadFile(req.FilePath)
	if err != nil {
		return Document{}, &ValidationError{Message: fmt.Sprintf("cannot read file: %v", err)}
	}
	fields := map[string]string{}
	if req.Title != "" {
		fields["title"] = req.Title
	}
	if req.Metadata != nil {
		meta, err := json.Marshal(req.Metadata)
		if err != nil {
			return Document{}, fmt.Errorf("marshal metadata: %w", err)
		}
		fields["metadata"] = string(meta)
	}
	if req.CollectionIDs != nil {
		ids, err := json.Marshal(req.CollectionIDs)
		if err != nil {
			return Document{}, fmt.Errorf("marshal collection ids: %w", err)
		}
		fields["collection_ids"] = string(ids)
	}
	files := map[string]fileUpload{
		"file": {Name: filepath.Base(req.FilePath), Content: content},
	}
	var out Document
	if err := d.c.doMultipart(ctx, http.MethodPost, "/documents", files, fields, &out); err != nil {
		return Document{}, err
	}
	return out, nil
}

func (d *DocumentsService) Retrieve(ctx context.Context, id string) (Document, error) {
	var out Document
	if err := d.c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, &out); err != nil {
		return Document{}, err
	}
	return out, nil
}

// UpdateDocumentRequest carries partial updates; zero-valued fields are
// left unchanged. RawText or Chunks replace the stored chunks.
type UpdateDocumentRequest struct {
	Title         string
	RawText       string
	Chunks        []string
	Metadata      map[string]any
	CollectionIDs []string
}

func (d *DocumentsService) Update(ctx context.Context, id string, req UpdateDocumentRequest) (Document, error) {
	if req.RawText != "" && len(req.Chunks) > 0 {
		return Document{}, &ValidationError{Message: "Only one of file, raw_text, or chunks may be provided"}
	}
	payload := map[string]any{}
	if req.Title != "" {
		payload["title"] = req.Title
	}
	if req.RawText != "" {
		payload["raw_text"] = req.RawText
	}
	if len(req.Chunks) > 0 {
		payload["chunks"] = req.Chunks
	}
	if req.Metadata != nil {
		payload["metadata"] = req.Metadata
	}
	if req.CollectionIDs != nil {
		payload["collection_ids"] = req.CollectionIDs
	}
	var out Document
	if err := d.c.do(ctx, http.MethodPost, "/documents/"+url.PathEscape(id), payload, &out); err != nil {
		return Document{}, err
	}
	return out, nil
}

func (d *DocumentsService) Delete(ctx context.Context, id string) error {
	return d.c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, nil)
}

func (d *DocumentsService) List(ctx context.Context, opts ListOptions) (ListResult[Document], error) {
	return list[Document](ctx, d.c, "/documents", opts)
}

func (d *DocumentsService) ListChunks(ctx context.Context, id string, opts ListOptions) (ListResult[Chunk], error) {
	return list[Chunk](ctx, d.c, "/documents/"+url.PathEscape(id)+"/chunks", opts)
}

// Download streams the document's text into w.
func (d *DocumentsService) Download(ctx context.Context, id string, w io.Writer) error {
	resp, err := d.c.roundTrip(ctx, http.MethodGet, "/documents/"+url.PathEscape(id)+"/download", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	return nil
}

// Export writes the full document listing as CSV, paging through the
// server with the given page size.
func (d *DocumentsService) Export(ctx context.Context, w io.Writer, opts ExportOptions) error {
	return exportCSV(ctx, w, opts, func(ctx context.Context, page ListOptions) (ListResult[Document], error) {
		return d.List(ctx, page)
	}, documentRow)
}

func documentRow(doc Document) map[string]string {
	return map[string]string{
		"id":               doc.ID,
		"owner_id":         doc.OwnerID,
		"title":            doc.Title,
		"content_type":     doc.ContentType,
		"ingestion_status": doc.IngestionStatus,
		"size_bytes":       fmt.Sprintf("%d", doc.SizeBytes),
		"created_at":       doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
