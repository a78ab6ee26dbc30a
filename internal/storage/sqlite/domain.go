package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mistakeknot/recall/internal/core"
	"github.com/mistakeknot/recall/internal/storage"
)

// --- Documents ---

func (s *Store) CreateDocument(doc core.Document, chunks []core.Chunk) (core.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.IngestionStatus == "" {
		doc.IngestionStatus = core.IngestionSuccess
	}
	if doc.ContentType == "" {
		doc.ContentType = "text/plain"
	}
	meta := marshalMeta(doc.Metadata)

	err := withBusyRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(
			`INSERT INTO documents (id, owner_id, title, content_type, metadata_json, ingestion_status, size_bytes, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			doc.ID, doc.OwnerID, doc.Title, doc.ContentType, meta, string(doc.IngestionStatus), doc.SizeBytes, ts(doc.CreatedAt), ts(doc.UpdatedAt),
		); err != nil {
			return err
		}
		if err := insertChunks(tx, doc.ID, chunks); err != nil {
			return err
		}
		for _, collID := range doc.CollectionIDs {
			if _, err := tx.Exec(
				`INSERT OR IGNORE INTO collection_documents (collection_id, document_id) VALUES (?, ?)`,
				collID, doc.ID,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return core.Document{}, fmt.Errorf("insert document: %w", err)
	}
	return s.GetDocument(doc.ID)
}

func (s *Store) GetDocument(id string) (core.Document, error) {
	doc, err := s.scanDocument(s.db.QueryRow(
		`SELECT id, owner_id, title, content_type, metadata_json, ingestion_status, size_bytes, created_at, updated_at
		 FROM documents WHERE id = ?`, id))
	if err != nil {
		return core.Document{}, err
	}
	doc.CollectionIDs, err = s.documentCollectionIDs(id)
	if err != nil {
		return core.Document{}, err
	}
	return doc, nil
}

func (s *Store) ListDocuments(ownerID string, offset, limit int) ([]core.Document, int, error) {
	where := ""
	args := []any{}
	if ownerID != "" {
		where = " WHERE owner_id = ?"
		args = append(args, ownerID)
	}
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}
	args = append(args, limitOrAll(limit), offset)
	rows, err := s.db.Query(
		`SELECT id, owner_id, title, content_type, metadata_json, ingestion_status, size_bytes, created_at, updated_at
		 FROM documents`+where+` ORDER BY created_at, id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	out := []core.Document{}
	for rows.Next() {
		doc, err := s.scanDocumentRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].CollectionIDs, err = s.documentCollectionIDs(out[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (s *Store) UpdateDocument(doc core.Document, chunks []core.Chunk) (core.Document, error) {
	existing, err := s.GetDocument(doc.ID)
	if err != nil {
		return core.Document{}, err
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
	if doc.ContentType == "" {
		doc.ContentType = existing.ContentType
	}
	if doc.SizeBytes == 0 {
		doc.SizeBytes = existing.SizeBytes
	}
	doc.UpdatedAt = time.Now().UTC()

	err = withBusyRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(
			`UPDATE documents SET title = ?, content_type = ?, metadata_json = ?, ingestion_status = ?, size_bytes = ?, updated_at = ? WHERE id = ?`,
			doc.Title, doc.ContentType, marshalMeta(doc.Metadata), string(doc.IngestionStatus), doc.SizeBytes, ts(doc.UpdatedAt), doc.ID,
		); err != nil {
			return err
		}
		if chunks != nil {
			if _, err := tx.Exec(`DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
				return err
			}
			if err := insertChunks(tx, doc.ID, chunks); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return core.Document{}, fmt.Errorf("update document: %w", err)
	}
	return s.GetDocument(doc.ID)
}

func (s *Store) DeleteDocument(id string) error {
	return s.deleteByID(`DELETE FROM documents WHERE id = ?`, id)
}

func (s *Store) DocumentChunks(documentID string, offset, limit int) ([]core.Chunk, int, error) {
	if _, err := s.GetDocument(documentID); err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks WHERE document_id = ?`, documentID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count chunks: %w", err)
	}
	rows, err := s.db.Query(
		`SELECT id, document_id, ordinal, text, metadata_json FROM chunks
		 WHERE document_id = ? ORDER BY ordinal LIMIT ? OFFSET ?`,
		documentID, limitOrAll(limit), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()
	out := []core.Chunk{}
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ch)
	}
	return out, total, rows.Err()
}

func (s *Store) DocumentText(id string) (string, error) {
	if _, err := s.GetDocument(id); err != nil {
		return "", err
	}
	rows, err := s.db.Query(`SELECT text FROM chunks WHERE document_id = ? ORDER BY ordinal`, id)
	if err != nil {
		return "", fmt.Errorf("document text: %w", err)
	}
	defer rows.Close()
	var parts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"), rows.Err()
}

func (s *Store) SearchableChunks(ownerID, collectionID string) ([]core.Chunk, error) {
	query := `SELECT c.id, c.document_id, c.ordinal, c.text, c.metadata_json
	          FROM chunks c JOIN documents d ON d.id = c.document_id`
	var conds []string
	var args []any
	if collectionID != "" {
		query += ` JOIN collection_documents cd ON cd.document_id = d.id`
		conds = append(conds, "cd.collection_id = ?")
		args = append(args, collectionID)
	}
	if ownerID != "" {
		conds = append(conds, "d.owner_id = ?")
		args = append(args, ownerID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY d.created_at, c.ordinal"
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("searchable chunks: %w", err)
	}
	defer rows.Close()
	var out []core.Chunk
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// --- Collections ---

func (s *Store) CreateCollection(c core.Collection) (core.Collection, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	err := withBusyRetry(func() error {
		_, err := s.db.Exec(
			`INSERT INTO collections (id, owner_id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.OwnerID, c.Name, c.Description, ts(c.CreatedAt), ts(c.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return core.Collection{}, fmt.Errorf("insert collection: %w", err)
	}
	return c, nil
}

func (s *Store) GetCollection(id string) (core.Collection, error) {
	var c core.Collection
	var createdAt, updatedAt string
	err := s.db.QueryRow(
		`SELECT c.id, c.owner_id, c.name, c.description, c.created_at, c.updated_at,
		        (SELECT COUNT(*) FROM collection_documents cd WHERE cd.collection_id = c.id)
		 FROM collections c WHERE c.id = ?`, id,
	).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &createdAt, &updatedAt, &c.DocumentCount)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Collection{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	c.CreatedAt = parseTS(createdAt)
	c.UpdatedAt = parseTS(updatedAt)
	return c, nil
}

func (s *Store) ListCollections(ownerID string, offset, limit int) ([]core.Collection, int, error) {
	where := ""
	args := []any{}
	if ownerID != "" {
		where = " WHERE owner_id = ?"
		args = append(args, ownerID)
	}
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM collections`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count collections: %w", err)
	}
	args = append(args, limitOrAll(limit), offset)
	rows, err := s.db.Query(
		`SELECT c.id, c.owner_id, c.name, c.description, c.created_at, c.updated_at,
		        (SELECT COUNT(*) FROM collection_documents cd WHERE cd.collection_id = c.id)
		 FROM collections c`+where+` ORDER BY c.created_at, c.id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()
	out := []core.Collection{}
	for rows.Next() {
		var c core.Collection
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &createdAt, &updatedAt, &c.DocumentCount); err != nil {
			return nil, 0, fmt.Errorf("scan collection: %w", err)
		}
		c.CreatedAt = parseTS(createdAt)
		c.UpdatedAt = parseTS(updatedAt)
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdateCollection(c core.Collection) (core.Collection, error) {
	existing, err := s.GetCollection(c.ID)
	if err != nil {
		return core.Collection{}, err
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
	err = withBusyRetry(func() error {
		_, err := s.db.Exec(
			`UPDATE collections SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
			c.Name, c.Description, ts(c.UpdatedAt), c.ID,
		)
		return err
	})
	if err != nil {
		return core.Collection{}, fmt.Errorf("update collection: %w", err)
	}
	return s.GetCollection(c.ID)
}

func (s *Store) DeleteCollection(id string) error {
	return s.deleteByID(`DELETE FROM collections WHERE id = ?`, id)
}

func (s *Store) AddDocumentToCollection(collectionID, documentID string) error {
	if _, err := s.GetCollection(collectionID); err != nil {
		return err
	}
	if _, err := s.GetDocument(documentID); err != nil {
		return err
	}
	return withBusyRetry(func() error {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO collection_documents (collection_id, document_id) VALUES (?, ?)`,
			collectionID, documentID,
		)
		return err
	})
}

func (s *Store) RemoveDocumentFromCollection(collectionID, documentID string) error {
	if _, err := s.GetCollection(collectionID); err != nil {
		return err
	}
	var affected int64
	err := withBusyRetry(func() error {
		res, err := s.db.Exec(
			`DELETE FROM collection_documents WHERE collection_id = ? AND document_id = ?`,
			collectionID, documentID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("remove document from collection: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CollectionDocuments(collectionID string, offset, limit int) ([]core.Document, int, error) {
	if _, err := s.GetCollection(collectionID); err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM collection_documents WHERE collection_id = ?`, collectionID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count collection documents: %w", err)
	}
	rows, err := s.db.Query(
		`SELECT d.id, d.owner_id, d.title, d.content_type, d.metadata_json, d.ingestion_status, d.size_bytes, d.created_at, d.updated_at
		 FROM documents d JOIN collection_documents cd ON cd.document_id = d.id
		 WHERE cd.collection_id = ? ORDER BY d.created_at, d.id LIMIT ? OFFSET ?`,
		collectionID, limitOrAll(limit), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list collection documents: %w", err)
	}
	defer rows.Close()
	out := []core.Document{}
	for rows.Next() {
		doc, err := s.scanDocumentRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, doc)
	}
	return out, total, rows.Err()
}

// --- Graphs ---

func (s *Store) CreateGraph(g core.Graph) (core.Graph, error) {
	if g.CollectionID != "" {
		if _, err := s.GetCollection(g.CollectionID); err != nil {
			return core.Graph{}, err
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
	err := withBusyRetry(func() error {
		_, err := s.db.Exec(
			`INSERT INTO graphs (id, collection_id, name, description, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			g.ID, g.CollectionID, g.Name, g.Description, string(g.Status), ts(g.CreatedAt), ts(g.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return core.Graph{}, fmt.Errorf("insert graph: %w", err)
	}
	return g, nil
}

func (s *Store) GetGraph(id string) (core.Graph, error) {
	var g core.Graph
	var status, createdAt, updatedAt string
	err := s.db.QueryRow(
		`SELECT g.id, g.collection_id, g.name, g.description, g.status, g.created_at, g.updated_at,
		        (SELECT COUNT(*) FROM graph_entities e WHERE e.graph_id = g.id)
		 FROM graphs g WHERE g.id = ?`, id,
	).Scan(&g.ID, &g.CollectionID, &g.Name, &g.Description, &status, &createdAt, &updatedAt, &g.EntityCount)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Graph{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Graph{}, fmt.Errorf("get graph: %w", err)
	}
	g.Status = core.GraphStatus(status)
	g.CreatedAt = parseTS(createdAt)
	g.UpdatedAt = parseTS(updatedAt)
	return g, nil
}

func (s *Store) ListGraphs(offset, limit int) ([]core.Graph, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM graphs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count graphs: %w", err)
	}
	rows, err := s.db.Query(
		`SELECT g.id, g.collection_id, g.name, g.description, g.status, g.created_at, g.updated_at,
		        (SELECT COUNT(*) FROM graph_entities e WHERE e.graph_id = g.id)
		 FROM graphs g ORDER BY g.created_at, g.id LIMIT ? OFFSET ?`, limitOrAll(limit), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list graphs: %w", err)
	}
	defer rows.Close()
	out := []core.Graph{}
	for rows.Next() {
		var g core.Graph
		var status, createdAt, updatedAt string
		if err := rows.Scan(&g.ID, &g.CollectionID, &g.Name, &g.Description, &status, &createdAt, &updatedAt, &g.EntityCount); err != nil {
			return nil, 0, fmt.Errorf("scan graph: %w", err)
		}
		g.Status = core.GraphStatus(status)
		g.CreatedAt = parseTS(createdAt)
		g.UpdatedAt = parseTS(updatedAt)
		out = append(out, g)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdateGraph(g core.Graph) (core.Graph, error) {
	existing, err := s.GetGraph(g.ID)
	if err != nil {
		return core.Graph{}, err
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
	err = withBusyRetry(func() error {
		_, err := s.db.Exec(
			`UPDATE graphs SET name = ?, description = ?, status = ?, updated_at = ? WHERE id = ?`,
			g.Name, g.Description, string(g.Status), ts(g.UpdatedAt), g.ID,
		)
		return err
	})
	if err != nil {
		return core.Graph{}, fmt.Errorf("update graph: %w", err)
	}
	return s.GetGraph(g.ID)
}

func (s *Store) DeleteGraph(id string) error {
	return s.deleteByID(`DELETE FROM graphs WHERE id = ?`, id)
}

func (s *Store) ReplaceGraphElements(graphID string, entities []core.GraphEntity, rels []core.GraphRelationship) error {
	if _, err := s.GetGraph(graphID); err != nil {
		return err
	}
	err := withBusyRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM graph_entities WHERE graph_id = ?`, graphID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM graph_relationships WHERE graph_id = ?`, graphID); err != nil {
			return err
		}
		for _, e := range entities {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if _, err := tx.Exec(
				`INSERT INTO graph_entities (id, graph_id, name, category, description, mention_count) VALUES (?, ?, ?, ?, ?, ?)`,
				e.ID, graphID, e.Name, e.Category, e.Description, e.MentionCount,
			); err != nil {
				return err
			}
		}
		for _, r := range rels {
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			if _, err := tx.Exec(
				`INSERT INTO graph_relationships (id, graph_id, subject_id, object_id, predicate, weight) VALUES (?, ?, ?, ?, ?, ?)`,
				r.ID, graphID, r.SubjectID, r.ObjectID, r.Predicate, r.Weight,
			); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(
			`UPDATE graphs SET status = ?, updated_at = ? WHERE id = ?`,
			string(core.GraphBuilt), ts(time.Now().UTC()), graphID,
		); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("replace graph elements: %w", err)
	}
	return nil
}

func (s *Store) GraphEntities(graphID string, offset, limit int) ([]core.GraphEntity, int, error) {
	if _, err := s.GetGraph(graphID); err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM graph_entities WHERE graph_id = ?`, graphID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entities: %w", err)
	}
	rows, err := s.db.Query(
		`SELECT id, graph_id, name, category, description, mention_count FROM graph_entities
		 WHERE graph_id = ? ORDER BY name LIMIT ? OFFSET ?`, graphID, limitOrAll(limit), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()
	out := []core.GraphEntity{}
	for rows.Next() {
		var e core.GraphEntity
		if err := rows.Scan(&e.ID, &e.GraphID, &e.Name, &e.Category, &e.Description, &e.MentionCount); err != nil {
			return nil, 0, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (s *Store) GraphRelationships(graphID string, offset, limit int) ([]core.GraphRelationship, int, error) {
	if _, err := s.GetGraph(graphID); err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM graph_relationships WHERE graph_id = ?`, graphID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count relationships: %w", err)
	}
	rows, err := s.db.Query(
		`SELECT id, graph_id, subject_id, object_id, predicate, weight FROM graph_relationships
		 WHERE graph_id = ? ORDER BY id LIMIT ? OFFSET ?`, graphID, limitOrAll(limit), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()
	out := []core.GraphRelationship{}
	for rows.Next() {
		var r core.GraphRelationship
		if err := rows.Scan(&r.ID, &r.GraphID, &r.SubjectID, &r.ObjectID, &r.Predicate, &r.Weight); err != nil {
			return nil, 0, fmt.Errorf("scan relationship: %w", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// --- Prompts ---

func (s *Store) CreatePrompt(p core.Prompt) (core.Prompt, error) {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	inputTypes, _ := json.Marshal(orEmptyTypes(p.InputTypes))
	err := withBusyRetry(func() error {
		_, err := s.db.Exec(
			`INSERT INTO prompts (name, template, input_types_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			p.Name, p.Template, string(inputTypes), ts(p.CreatedAt), ts(p.UpdatedAt),
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return core.Prompt{}, storage.ErrConflict
		}
		return core.Prompt{}, fmt.Errorf("insert prompt: %w", err)
	}
	return p, nil
}

func (s *Store) GetPrompt(name string) (core.Prompt, error) {
	var p core.Prompt
	var inputTypes, createdAt, updatedAt string
	err := s.db.QueryRow(
		`SELECT name, template, input_types_json, created_at, updated_at FROM prompts WHERE name = ?`, name,
	).Scan(&p.Name, &p.Template, &inputTypes, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Prompt{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Prompt{}, fmt.Errorf("get prompt: %w", err)
	}
	_ = json.Unmarshal([]byte(inputTypes), &p.InputTypes)
	p.CreatedAt = parseTS(createdAt)
	p.UpdatedAt = parseTS(updatedAt)
	return p, nil
}

func (s *Store) ListPrompts(offset, limit int) ([]core.Prompt, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM prompts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prompts: %w", err)
	}
	rows, err := s.db.Query(
		`SELECT name, template, input_types_json, created_at, updated_at FROM prompts
		 ORDER BY created_at, name LIMIT ? OFFSET ?`, limitOrAll(limit), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()
	out := []core.Prompt{}
	for rows.Next() {
		var p core.Prompt
		var inputTypes, createdAt, updatedAt string
		if err := rows.Scan(&p.Name, &p.Template, &inputTypes, &createdAt, &updatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan prompt: %w", err)
		}
		_ = json.Unmarshal([]byte(inputTypes), &p.InputTypes)
		p.CreatedAt = parseTS(createdAt)
		p.UpdatedAt = parseTS(updatedAt)
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdatePrompt(p core.Prompt) (core.Prompt, error) {
	existing, err := s.GetPrompt(p.Name)
	if err != nil {
		return core.Prompt{}, err
	}
	if p.Template == "" {
		p.Template = existing.Template
	}
	if p.InputTypes == nil {
		p.InputTypes = existing.InputTypes
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	inputTypes, _ := json.Marshal(orEmptyTypes(p.InputTypes))
	err = withBusyRetry(func() error {
		_, err := s.db.Exec(
			`UPDATE prompts SET template = ?, input_types_json = ?, updated_at = ? WHERE name = ?`,
			p.Template, string(inputTypes), ts(p.UpdatedAt), p.Name,
		)
		return err
	})
	if err != nil {
		return core.Prompt{}, fmt.Errorf("update prompt: %w", err)
	}
	return p, nil
}

func (s *Store) DeletePrompt(name string) error {
	return s.deleteByID(`DELETE FROM prompts WHERE name = ?`, name)
}

func (s *Store) Counts() (storage.Counts, error) {
	var c storage.Counts
	row := s.db.QueryRow(
		`SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM documents),
		        (SELECT COUNT(*) FROM chunks), (SELECT COUNT(*) FROM collections)`)
	if err := row.Scan(&c.Users, &c.Documents, &c.Chunks, &c.Collections); err != nil {
		return storage.Counts{}, fmt.Errorf("counts: %w", err)
	}
	return c, nil
}

// --- helpers ---

func insertChunks(tx *sql.Tx, documentID string, chunks []core.Chunk) error {
	for i, ch := range chunks {
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		if _, err := tx.Exec(
			`INSERT INTO chunks (id, document_id, ordinal, text, metadata_json) VALUES (?, ?, ?, ?, ?)`,
			ch.ID, documentID, i, ch.Text, marshalMeta(ch.Metadata),
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) documentCollectionIDs(documentID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT collection_id FROM collection_documents WHERE document_id = ? ORDER BY collection_id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("document collections: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) scanDocument(row *sql.Row) (core.Document, error) {
	var d core.Document
	var meta, status, createdAt, updatedAt string
	err := row.Scan(&d.ID, &d.OwnerID, &d.Title, &d.ContentType, &meta, &status, &d.SizeBytes, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Document{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Document{}, fmt.Errorf("scan document: %w", err)
	}
	_ = json.Unmarshal([]byte(meta), &d.Metadata)
	d.IngestionStatus = core.IngestionStatus(status)
	d.CreatedAt = parseTS(createdAt)
	d.UpdatedAt = parseTS(updatedAt)
	return d, nil
}

func (s *Store) scanDocumentRows(rows *sql.Rows) (core.Document, error) {
	var d core.Document
	var meta, status, createdAt, updatedAt string
	if err := rows.Scan(&d.ID, &d.OwnerID, &d.Title, &d.ContentType, &meta, &status, &d.SizeBytes, &createdAt, &updatedAt); err != nil {
		return core.Document{}, fmt.Errorf("scan document: %w", err)
	}
	_ = json.Unmarshal([]byte(meta), &d.Metadata)
	d.IngestionStatus = core.IngestionStatus(status)
	d.CreatedAt = parseTS(createdAt)
	d.UpdatedAt = parseTS(updatedAt)
	return d, nil
}

func scanChunk(rows *sql.Rows) (core.Chunk, error) {
	var ch core.Chunk
	var meta string
	if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Ordinal, &ch.Text, &meta); err != nil {
		return core.Chunk{}, fmt.Errorf("scan chunk: %w", err)
	}
	_ = json.Unmarshal([]byte(meta), &ch.Metadata)
	return ch, nil
}

func marshalMeta(m map[string]any) string {
	if m == nil {
		return "{}"
	}
	buf, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(buf)
}

func orEmptyTypes(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
