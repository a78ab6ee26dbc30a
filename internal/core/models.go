package core

import "time"

type EventType string

const (
	EventDocumentCreated   EventType = "document.created"
	EventDocumentUpdated   EventType = "document.updated"
	EventDocumentDeleted   EventType = "document.deleted"
	EventCollectionCreated EventType = "collection.created"
	EventCollectionUpdated EventType = "collection.updated"
	EventCollectionDeleted EventType = "collection.deleted"
	EventGraphPulled       EventType = "graph.pulled"
)

// IngestionStatus tracks a document through the ingestion lifecycle.
type IngestionStatus string

const (
	IngestionPending IngestionStatus = "pending"
	IngestionParsing IngestionStatus = "parsing"
	IngestionSuccess IngestionStatus = "success"
	IngestionFailed  IngestionStatus = "failed"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type Document struct {
	ID              string
	OwnerID         string
	Title           string
	ContentType     string
	Metadata        map[string]any
	IngestionStatus IngestionStatus
	CollectionIDs   []string
	SizeBytes       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Chunk is one retrievable unit of a document's text.
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Text       string
	Metadata   map[string]any
}

type Collection struct {
	ID            string
	OwnerID       string
	Name          string
	Description   string
	DocumentCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GraphStatus tracks whether a graph has been extracted from its collection.
type GraphStatus string

const (
	GraphPending GraphStatus = "pending"
	GraphBuilt   GraphStatus = "built"
)

type Graph struct {
	ID           string
	CollectionID string
	Name         string
	Description  string
	Status       GraphStatus
	EntityCount  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type GraphEntity struct {
	ID           string
	GraphID      string
	Name         string
	Category     string
	Description  string
	MentionCount int
}

type GraphRelationship struct {
	ID        string
	GraphID   string
	SubjectID string
	ObjectID  string
	Predicate string
	Weight    float64
}

type Prompt struct {
	Name      string
	Template  string
	InputTypes map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID             string
	Email          string
	HashedPassword string
	Role           Role
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RefreshToken is an opaque server-side token exchanged for new access tokens.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SearchResult is one scored chunk returned by retrieval.
type SearchResult struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Score      float64        `json:"score"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Event wraps an entity change for broadcast to websocket subscribers.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	EntityID  string    `json:"entity_id"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
