package client

import "time"

// ListResult carries one page of results plus the pagination state
// needed to fetch the next.
type ListResult[T any] struct {
	Results    []T
	Pagination Pagination
}

type listEnvelope[T any] struct {
	Results      []T `json:"results"`
	TotalEntries int `json:"total_entries"`
}

// ListOptions selects a page. A zero Limit uses the server default (10).
type ListOptions struct {
	Offset int
	Limit  int
}

type Document struct {
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

type Chunk struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Ordinal    int            `json:"ordinal"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type Collection struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Graph struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collection_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	EntityCount  int       `json:"entity_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type GraphEntity struct {
	ID           string `json:"id"`
	GraphID      string `json:"graph_id"`
	Name         string `json:"name"`
	Category     string `json:"category,omitempty"`
	Description  string `json:"description,omitempty"`
	MentionCount int    `json:"mention_count"`
}

type GraphRelationship struct {
	ID        string  `json:"id"`
	GraphID   string  `json:"graph_id"`
	SubjectID string  `json:"subject_id"`
	ObjectID  string  `json:"object_id"`
	Predicate string  `json:"predicate"`
	Weight    float64 `json:"weight"`
}

type Prompt struct {
	Name       string            `json:"name"`
	Template   string            `json:"template"`
	InputTypes map[string]string `json:"input_types,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Source is one retrieved chunk backing a RAG answer. Text falls back
// to the "text" metadata key when the field itself is empty.
type Source struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Score      float64        `json:"score"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// DisplayText returns the source text, falling back to metadata.
func (s Source) DisplayText() string {
	if s.Text != "" {
		return s.Text
	}
	if v, ok := s.Metadata["text"].(string); ok {
		return v
	}
	return ""
}

type SystemStatus struct {
	StartTime     time.Time      `json:"start_time"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Counts        map[string]int `json:"counts"`
}

type LogLine struct {
	Time     time.Time `json:"time"`
	Method   string    `json:"method"`
	Path     string    `json:"path"`
	Status   int       `json:"status"`
	Duration string    `json:"duration"`
}

// Event is a lifecycle notification delivered over the websocket feed.
type Event struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	EntityID  string    `json:"entity_id"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
