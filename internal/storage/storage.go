package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mistakeknot/recall/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Counts summarizes stored entities for the system status endpoint.
type Counts struct {
	Users       int
	Documents   int
	Chunks      int
	Collections int
}

type Store interface {
	// Users
	CreateUser(core.User) (core.User, error)
	GetUser(id string) (core.User, error)
	GetUserByEmail(email string) (core.User, error)
	ListUsers(offset, limit int) ([]core.User, int, error)
	UpdateUser(core.User) (core.User, error)
	DeleteUser(id string) error

	// Refresh tokens
	SaveRefreshToken(core.RefreshToken) error
	GetRefreshToken(token string) (core.RefreshToken, error)
	DeleteRefreshToken(token string) error
	DeleteUserRefreshTokens(userID string) error
	PurgeExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error)

	// Documents
	CreateDocument(doc core.Document, chunks []core.Chunk) (core.Document, error)
	GetDocument(id string) (core.Document, error)
	ListDocuments(ownerID string, offset, limit int) ([]core.Document, int, error)
	UpdateDocument(doc core.Document, chunks []core.Chunk) (core.Document, error)
	DeleteDocument(id string) error
	DocumentChunks(documentID string, offset, limit int) ([]core.Chunk, int, error)
	DocumentText(id string) (string, error)
	SearchableChunks(ownerID, collectionID string) ([]core.Chunk, error)

	// Collections
	CreateCollection(core.Collection) (core.Collection, error)
	GetCollection(id string) (core.Collection, error)
	ListCollections(ownerID string, offset, limit int) ([]core.Collection, int, error)
	UpdateCollection(core.Collection) (core.Collection, error)
	DeleteCollection(id string) error
	AddDocumentToCollection(collectionID, documentID string) error
	RemoveDocumentFromCollection(collectionID, documentID string) error
	CollectionDocuments(collectionID string, offset, limit int) ([]core.Document, int, error)

	// Graphs
	CreateGraph(core.Graph) (core.Graph, error)
	GetGraph(id string) (core.Graph, error)
	ListGraphs(offset, limit int) ([]core.Graph, int, error)
	UpdateGraph(core.Graph) (core.Graph, error)
	DeleteGraph(id string) error
	ReplaceGraphElements(graphID string, entities []core.GraphEntity, rels []core.GraphRelationship) error
	GraphEntities(graphID string, offset, limit int) ([]core.GraphEntity, int, error)
	GraphRelationships(graphID string, offset, limit int) ([]core.GraphRelationship, int, error)

	// Prompts
	CreatePrompt(core.Prompt) (core.Prompt, error)
	GetPrompt(name string) (core.Prompt, error)
	ListPrompts(offset, limit int) ([]core.Prompt, int, error)
	UpdatePrompt(core.Prompt) (core.Prompt, error)
	DeletePrompt(name string) error

	Counts() (Counts, error)
}

// Paginate slices items by offset/limit and returns the page plus the total.
// A limit <= 0 means "everything from offset".
func Paginate[T any](items []T, offset, limit int) ([]T, int) {
	total := len(items)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []T{}, total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	page := make([]T, end-offset)
	copy(page, items[offset:end])
	return page, total
}

// InMemory is a mutex-guarded in-memory store for tests and ephemeral use.
type InMemory struct {
	mu sync.RWMutex

	users      map[string]core.User
	userOrder  []string
	tokens     map[string]core.RefreshToken
	docs       map[string]core.Document
	docOrder   []string
	chunks     map[string][]core.Chunk // documentID -> ordered chunks
	colls      map[string]core.Collection
	collOrder  []string
	collDocs   map[string]map[string]bool // collectionID -> documentID set
	graphs     map[string]core.Graph
	graphOrder []string
	entities   map[string][]core.GraphEntity
	rels       map[string][]core.GraphRelationship
	prompts    map[string]core.Prompt
	promptOrd  []string
}

func NewInMemory() *InMemory {
	return &InMemory{
		users:    make(map[string]core.User),
		tokens:   make(map[string]core.RefreshToken),
		docs:     make(map[string]core.Document),
		chunks:   make(map[string][]core.Chunk),
		colls:    make(map[string]core.Collection),
		collDocs: make(map[string]map[string]bool),
		graphs:   make(map[string]core.Graph),
		entities: make(map[string][]core.GraphEntity),
		rels:     make(map[string][]core.GraphRelationship),
		prompts:  make(map[string]core.Prompt),
	}
}

// --- Users ---

func (m *InMemory) CreateUser(u core.User) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return core.User{}, ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	m.users[u.ID] = u
	m.userOrder = append(m.userOrder, u.ID)
	return u, nil
}

func (m *InMemory) GetUser(id string) (core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return core.User{}, ErrNotFound
	}
	return u, nil
}

func (m *InMemory) GetUserByEmail(email string) (core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, ErrNotFound
}

func (m *InMemory) ListUsers(offset, limit int) ([]core.User, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]core.User, 0, len(m.userOrder))
	for _, id := range m.userOrder {
		if u, ok := m.users[id]; ok {
			all = append(all, u)
		}
	}
	page, total := Paginate(all, offset, limit)
	return page, total, nil
}

func (m *InMemory) UpdateUser(u core.User) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[u.ID]
	if !ok {
		return core.User{}, ErrNotFound
	}
	if u.Email == "" {
		u.Email = existing.Email
	}
	if u.HashedPassword == "" {
		u.HashedPassword = existing.HashedPassword
	}
	if u.Role == "" {
		u.Role = existing.Role
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	m.users[u.ID] = u
	return u, nil
}

func (m *InMemory) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	m.userOrder = removeID(m.userOrder, id)
	for token, rt := range m.tokens {
		if rt.UserID == id {
			delete(m.tokens, token)
		}
	}
	return nil
}

// --- Refresh tokens ---

func (m *InMemory) SaveRefreshToken(t core.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.tokens[t.Token] = t
	return nil
}

func (m *InMemory) GetRefreshToken(token string) (core.RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[token]
	if !ok {
		return core.RefreshToken{}, ErrNotFound
	}
	return t, nil
}

func (m *InMemory) DeleteRefreshToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

func (m *InMemory) DeleteUserRefreshTokens(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, rt := range m.tokens {
		if rt.UserID == userID {
			delete(m.tokens, token)
		}
	}
	return nil
}

func (m *InMemory) PurgeExpiredRefreshTokens(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for token, rt := range m.tokens {
		if rt.ExpiresAt.Before(before) {
			delete(m.tokens, token)
			n++
		}
	}
	return n, nil
}

// --- Documents ---

func (m *InMemory) CreateDocument(doc core.Document, chunks []core.Chunk) (core.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.IngestionStatus == "" {
		doc.IngestionStatus = core.IngestionSuccess
	}
	m.docs[doc.ID] = doc
	m.docOrder = append(m.docOrder, doc.ID)
	m.chunks[doc.ID] = normalizeChunks(doc.ID, chunks)
	for _, collID := range doc.CollectionIDs {
		if set, ok := m.collDocs[collID]; ok {
			set[doc.ID] = true
		}
	}
	return doc, nil
}

func (m *InMemory) GetDocument(id string) (core.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return core.Document{}, ErrNotFound
	}
	return m.withCollections(doc), nil
}

func (m *InMemory) ListDocuments(ownerID string, offset, limit int) ([]core.Document, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]core.Document, 0, len(m.docOrder))
	for _, id := range m.docOrder {
		doc, ok := m.docs[id]
		if !ok {
			continue
		}
		if ownerID != "" && doc.OwnerID != ownerID {
			continue
		}
		all = append(all, m.withCollections(doc))
	}
	page, total := Paginate(all, offset, limit)
	return page, total, nil
}

func (m *InMemory) UpdateDocument(doc core.Document, chunks []core.Chunk) (core.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.docs[doc.ID]
	if !ok {
		return core.Document{}, ErrNotFound
	}
	if doc.Title == "" {
		doc.Title = existing.Title
	}
	if doc.Metadata == nil {
		doc.Metadata = existing.Metadata
	}
	if doc.IngestionStatus == "" {
		doc.IngestionStatus = existing.IngestionStatus
	}
	doc.OwnerID = existing.OwnerID
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = time.Now().UTC()
	m.docs[doc.ID] = doc
	if chunks != nil {
		m.chunks[doc.ID] = normalizeChunks(doc.ID, chunks)
	}
	return m.withCollections(doc), nil
}

func (m *InMemory) DeleteDocument(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	m.docOrder = removeID(m.docOrder, id)
	for _, set := range m.collDocs {
		delete(set, id)
	}
	return nil
}

func (m *InMemory) DocumentChunks(documentID string, offset, limit int) ([]core.Chunk, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.docs[documentID]; !ok {
		return nil, 0, ErrNotFound
	}
	page, total := Paginate(m.chunks[documentID], offset, limit)
	return page, total, nil
}

func (m *InMemory) DocumentText(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.docs[id]; !ok {
		return "", ErrNotFound
	}
	parts := make([]string, 0, len(m.chunks[id]))
	for _, ch := range m.chunks[id] {
		parts = append(parts, ch.Text)
	}
	return strings.Join(parts, "\n\n"), nil
}

func (m *InMemory) SearchableChunks(ownerID, collectionID string) ([]core.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Chunk
	for _, id := range m.docOrder {
		doc, ok := m.docs[id]
		if !ok {
			continue
		}
		if ownerID != "" && doc.OwnerID != ownerID {
			continue
		}
		if collectionID != "" {
			set, ok := m.collDocs[collectionID]
			if !ok || !set[id] {
				continue
			}
		}
		out = append(out, m.chunks[id]...)
	}
	return out, nil
}

// --- Collections ---

func (m *InMemory) CreateCollection(c core.Collection) (core.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	m.colls[c.ID] = c
	m.collOrder = append(m.collOrder, c.ID)
	m.collDocs[c.ID] = make(map[string]bool)
	return c, nil
}

func (m *InMemory) GetCollection(id string) (core.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.colls[id]
	if !ok {
		return core.Collection{}, ErrNotFound
	}
	c.DocumentCount = len(m.collDocs[id])
	return c, nil
}

func (m *InMemory) ListCollections(ownerID string, offset, limit int) ([]core.Collection, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]core.Collection, 0, len(m.collOrder))
	for _, id := range m.collOrder {
		c, ok := m.colls[id]
		if !ok {
			continue
		}
		if ownerID != "" && c.OwnerID != ownerID {
			continue
		}
		c.DocumentCount = len(m.collDocs[id])
		all = append(all, c)
	}
	page, total := Paginate(all, offset, limit)
	return page, total, nil
}

func (m *InMemory) UpdateCollection(c core.Collection) (core.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.colls[c.ID]
	if !ok {
		return core.Collection{}, ErrNotFound
	}
	if c.Name == "" {
		c.Name = existing.Name
	}
	if c.Description == "" {
		c.Description = existing.Description
	}
	c.OwnerID = existing.OwnerID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	m.colls[c.ID] = c
	c.DocumentCount = len(m.collDocs[c.ID])
	return c, nil
}

func (m *InMemory) DeleteCollection(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.colls[id]; !ok {
		return ErrNotFound
	}
	delete(m.colls, id)
	delete(m.collDocs, id)
	m.collOrder = removeID(m.collOrder, id)
	return nil
}

func (m *InMemory) AddDocumentToCollection(collectionID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.collDocs[collectionID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.docs[documentID]; !ok {
		return ErrNotFound
	}
	set[documentID] = true
	return nil
}

func (m *InMemory) RemoveDocumentFromCollection(collectionID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.collDocs[collectionID]
	if !ok {
		return ErrNotFound
	}
	if !set[documentID] {
		return ErrNotFound
	}
	delete(set, documentID)
	return nil
}

func (m *InMemory) CollectionDocuments(collectionID string, offset, limit int) ([]core.Document, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.collDocs[collectionID]
	if !ok {
		return nil, 0, ErrNotFound
	}
	all := make([]core.Document, 0, len(set))
	for _, id := range m.docOrder {
		if set[id] {
			all = append(all, m.withCollections(m.docs[id]))
		}
	}
	page, total := Paginate(all, offset, limit)
	return page, total, nil
}

// --- Graphs ---

func (m *InMemory) CreateGraph(g core.Graph) (core.Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.CollectionID != "" {
		if _, ok := m.colls[g.CollectionID]; !ok {
			return core.Graph{}, ErrNotFound
		}
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	if g.Status == "" {
		g.Status = core.GraphPending
	}
	m.graphs[g.ID] = g
	m.graphOrder = append(m.graphOrder, g.ID)
	return g, nil
}

func (m *InMemory) GetGraph(id string) (core.Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.graphs[id]
	if !ok {
		return core.Graph{}, ErrNotFound
	}
	g.EntityCount = len(m.entities[id])
	return g, nil
}

func (m *InMemory) ListGraphs(offset, limit int) ([]core.Graph, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]core.Graph, 0, len(m.graphOrder))
	for _, id := range m.graphOrder {
		if g, ok := m.graphs[id]; ok {
			g.EntityCount = len(m.entities[id])
			all = append(all, g)
		}
	}
	page, total := Paginate(all, offset, limit)
	return page, total, nil
}

func (m *InMemory) UpdateGraph(g core.Graph) (core.Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.graphs[g.ID]
	if !ok {
		return core.Graph{}, ErrNotFound
	}
	if g.Name == "" {
		g.Name = existing.Name
	}
	if g.Description == "" {
		g.Description = existing.Description
	}
	if g.Status == "" {
		g.Status = existing.Status
	}
	g.CollectionID = existing.CollectionID
	g.CreatedAt = existing.CreatedAt
	g.UpdatedAt = time.Now().UTC()
	m.graphs[g.ID] = g
	g.EntityCount = len(m.entities[g.ID])
	return g, nil
}

func (m *InMemory) DeleteGraph(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.graphs[id]; !ok {
		return ErrNotFound
	}
	delete(m.graphs, id)
	delete(m.entities, id)
	delete(m.rels, id)
	m.graphOrder = removeID(m.graphOrder, id)
	return nil
}

func (m *InMemory) ReplaceGraphElements(graphID string, entities []core.GraphEntity, rels []core.GraphRelationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[graphID]
	if !ok {
		return ErrNotFound
	}
	m.entities[graphID] = entities
	m.rels[graphID] = rels
	g.Status = core.GraphBuilt
	g.UpdatedAt = time.Now().UTC()
	m.graphs[graphID] = g
	return nil
}

func (m *InMemory) GraphEntities(graphID string, offset, limit int) ([]core.GraphEntity, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.graphs[graphID]; !ok {
		return nil, 0, ErrNotFound
	}
	page, total := Paginate(m.entities[graphID], offset, limit)
	return page, total, nil
}

func (m *InMemory) GraphRelationships(graphID string, offset, limit int) ([]core.GraphRelationship, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.graphs[graphID]; !ok {
		return nil, 0, ErrNotFound
	}
	page, total := Paginate(m.rels[graphID], offset, limit)
	return page, total, nil
}

// --- Prompts ---

func (m *InMemory) CreatePrompt(p core.Prompt) (core.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prompts[p.Name]; ok {
		return core.Prompt{}, ErrConflict
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.prompts[p.Name] = p
	m.promptOrd = append(m.promptOrd, p.Name)
	return p, nil
}

func (m *InMemory) GetPrompt(name string) (core.Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prompts[name]
	if !ok {
		return core.Prompt{}, ErrNotFound
	}
	return p, nil
}

func (m *InMemory) ListPrompts(offset, limit int) ([]core.Prompt, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]core.Prompt, 0, len(m.promptOrd))
	for _, name := range m.promptOrd {
		if p, ok := m.prompts[name]; ok {
			all = append(all, p)
		}
	}
	page, total := Paginate(all, offset, limit)
	return page, total, nil
}

func (m *InMemory) UpdatePrompt(p core.Prompt) (core.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.prompts[p.Name]
	if !ok {
		return core.Prompt{}, ErrNotFound
	}
	if p.Template == "" {
		p.Template = existing.Template
	}
	if p.InputTypes == nil {
		p.InputTypes = existing.InputTypes
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	m.prompts[p.Name] = p
	return p, nil
}

func (m *InMemory) DeletePrompt(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prompts[name]; !ok {
		return ErrNotFound
	}
	delete(m.prompts, name)
	m.promptOrd = removeID(m.promptOrd, name)
	return nil
}

func (m *InMemory) Counts() (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var chunks int
	for _, cs := range m.chunks {
		chunks += len(cs)
	}
	return Counts{
		Users:       len(m.users),
		Documents:   len(m.docs),
		Chunks:      chunks,
		Collections: len(m.colls),
	}, nil
}

// --- helpers ---

func (m *InMemory) withCollections(doc core.Document) core.Document {
	var ids []string
	for collID, set := range m.collDocs {
		if set[doc.ID] {
			ids = append(ids, collID)
		}
	}
	sort.Strings(ids)
	doc.CollectionIDs = ids
	return doc
}

func removeID(order []string, id string) []string {
	out := order[:0]
	for _, v := range order {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func normalizeChunks(documentID string, chunks []core.Chunk) []core.Chunk {
	out := make([]core.Chunk, len(chunks))
	for i, ch := range chunks {
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		ch.DocumentID = documentID
		ch.Ordinal = i
		out[i] = ch
	}
	return out
}
