package httpapi

import (
	"net/http"
	"strings"

	"github.com/mistakeknot/recall/internal/core"
	"github.com/mistakeknot/recall/internal/retrieval"
)

type graphRequest struct {
	CollectionID string `json:"collection_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
}

func (s *Service) handleGraphs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		offset, limit := pageParams(r)
		graphs, total, err := s.store.ListGraphs(offset, limit)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		out := make([]graphDTO, len(graphs))
		for i, g := range graphs {
			out[i] = toGraphDTO(g)
		}
		writeList(w, out, total)
	case http.MethodPost:
		var req graphRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.CollectionID) == "" || strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, "collection_id and name are required")
			return
		}
		if _, err := s.store.GetCollection(req.CollectionID); err != nil {
			writeStoreError(w, err)
			return
		}
		// One graph per collection.
		existing, _, err := s.store.ListGraphs(0, 0)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		for _, g := range existing {
			if g.CollectionID == req.CollectionID {
				writeError(w, http.StatusConflict, "graph already exists for collection")
				return
			}
		}
		created, err := s.store.CreateGraph(core.Graph{
			CollectionID: req.CollectionID,
			Name:         strings.TrimSpace(req.Name),
			Description:  req.Description,
		})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGraphDTO(created))
	default:
		methodNotAllowed(w)
	}
}

func (s *Service) handleGraphByID(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/graphs/")
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "graph id is required")
		return
	}
	graph, err := s.store.GetGraph(parts[0])
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "pull":
			s.pullGraph(w, r, graph)
		case "entities":
			s.graphEntities(w, r, graph.ID)
		case "relationships":
			s.graphRelationships(w, r, graph.ID)
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
		writeJSON(w, http.StatusOK, toGraphDTO(graph))
	case http.MethodPut:
		var req graphRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name != "" {
			graph.Name = strings.TrimSpace(req.Name)
		}
		if req.Description != "" {
			graph.Description = req.Description
		}
		updated, err := s.store.UpdateGraph(graph)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGraphDTO(updated))
	case http.MethodDelete:
		if err := s.store.DeleteGraph(graph.ID); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

// pullGraph re-extracts entities and relationships from the chunks of
// the graph's collection.
func (s *Service) pullGraph(w http.ResponseWriter, r *http.Request, graph core.Graph) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	chunks, err := s.store.SearchableChunks("", graph.CollectionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	entities, rels := retrieval.ExtractEntities(chunks)
	for i := range entities {
		entities[i].GraphID = graph.ID
	}
	for i := range rels {
		rels[i].GraphID = graph.ID
	}
	if err := s.store.ReplaceGraphElements(graph.ID, entities, rels); err != nil {
		writeStoreError(w, err)
		return
	}
	updated, err := s.store.GetGraph(graph.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.broadcast("", core.EventGraphPulled, graph.ID, toGraphDTO(updated))
	writeJSON(w, http.StatusOK, toGraphDTO(updated))
}

func (s *Service) graphEntities(w http.ResponseWriter, r *http.Request, graphID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	offset, limit := pageParams(r)
	entities, total, err := s.store.GraphEntities(graphID, offset, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]entityDTO, len(entities))
	for i, e := range entities {
		out[i] = entityDTO{
			ID:           e.ID,
			GraphID:      e.GraphID,
			Name:         e.Name,
			Category:     e.Category,
			Description:  e.Description,
			MentionCount: e.MentionCount,
		}
	}
	writeList(w, out, total)
}

func (s *Service) graphRelationships(w http.ResponseWriter, r *http.Request, graphID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	offset, limit := pageParams(r)
	rels, total, err := s.store.GraphRelationships(graphID, offset, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]relationshipDTO, len(rels))
	for i, rel := range rels {
		out[i] = relationshipDTO{
			ID:        rel.ID,
			GraphID:   rel.GraphID,
			SubjectID: rel.SubjectID,
			ObjectID:  rel.ObjectID,
			Predicate: rel.Predicate,
			Weight:    rel.Weight,
		}
	}
	writeList(w, out, total)
}
