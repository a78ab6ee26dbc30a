package httpapi

import (
	"time"

	"github.com/mistakeknot/recall/internal/core"
)

// Wire representations. Persistence models stay JSON-free; the API
// shapes live here.

type documentDTO struct {
	ID              string         `json:"id"`
	OwnerID         string         `json:"owner_id"`
	Title           string         `json:"title"`
	ContentType     string         `json:"content_type"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	IngestionStatus string         `json:"ingestion_status"`
	CollectionIDs   []string       `json:"collection_ids"`
	SizeBytes       int64          `json:"size_bytes"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func toDocumentDTO(d core.Document) documentDTO {
	ids := d.CollectionIDs
	if ids == nil {
		ids = []string{}
	}
	return documentDTO{
		ID:              d.ID,
		OwnerID:         d.OwnerID,
		Title:           d.Title,
		ContentType:     d.ContentType,
		Metadata:        d.Metadata,
		IngestionStatus: string(d.IngestionStatus),
		CollectionIDs:   ids,
		SizeBytes:       d.SizeBytes,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func toDocumentDTOs(docs []core.Document) []documentDTO {
	out := make([]documentDTO, len(docs))
	for i, d := range docs {
		out[i] = toDocumentDTO(d)
	}
	return out
}

type chunkDTO struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Ordinal    int            `json:"ordinal"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func toChunkDTOs(chunks []core.Chunk) []chunkDTO {
	out := make([]chunkDTO, len(chunks))
	for i, c := range chunks {
		out[i] = chunkDTO{ID: c.ID, DocumentID: c.DocumentID, Ordinal: c.Ordinal, Text: c.Text, Metadata: c.Metadata}
	}
	return out
}

type collectionDTO struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toCollectionDTO(c core.Collection) collectionDTO {
	return collectionDTO{
		ID:            c.ID,
		OwnerID:       c.OwnerID,
		Name:          c.Name,
		Description:   c.Description,
		DocumentCount: c.DocumentCount,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toCollectionDTOs(colls []core.Collection) []collectionDTO {
	out := make([]collectionDTO, len(colls))
	for i, c := range colls {
		out[i] = toCollectionDTO(c)
	}
	return out
}

type graphDTO struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collection_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	EntityCount  int       `json:"entity_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toGraphDTO(g core.Graph) graphDTO {
	return graphDTO{
		ID:           g.ID,
		CollectionID: g.CollectionID,
		Name:         g.Name,
		Description:  g.Description,
		Status:       string(g.Status),
		EntityCount:  g.EntityCount,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

type entityDTO struct {
	ID           string `json:"id"`
	GraphID      string `json:"graph_id"`
	Name         string `json:"name"`
	Category     string `json:"category,omitempty"`
	Description  string `json:"description,omitempty"`
	MentionCount int    `json:"mention_count"`
}

type relationshipDTO struct {
	ID        string  `json:"id"`
	GraphID   string  `json:"graph_id"`
	SubjectID string  `json:"subject_id"`
	ObjectID  string  `json:"object_id"`
	Predicate string  `json:"predicate"`
	Weight    float64 `json:"weight"`
}

type promptDTO struct {
	Name       string            `json:"name"`
	Template   string            `json:"template"`
	InputTypes map[string]string `json:"input_types,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func toPromptDTO(p core.Prompt) promptDTO {
	return promptDTO{
		Name:       p.Name,
		Template:   p.Template,
		InputTypes: p.InputTypes,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

type userDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserDTO(u core.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Email:     u.Email,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
