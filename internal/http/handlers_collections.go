package httpapi

import (
	"net/http"
	"strings"

	"github.com/mistakeknot/recall/internal/auth"
	"github.com/mistakeknot/recall/internal/core"
)

type collectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Service) handleCollections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		info, _ := auth.FromContext(r.Context())
		owner := info.UserID
		if info.IsAdmin() {
			owner = ""
		}
		offset, limit := pageParams(r)
		colls, total, err := s.store.ListCollections(owner, offset, limit)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeList(w, toCollectionDTOs(colls), total)
	case http.MethodPost:
		var req collectionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		info, _ := auth.FromContext(r.Context())
		created, err := s.store.CreateCollection(core.Collection{
			OwnerID:     info.UserID,
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
		})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		s.broadcast(created.OwnerID, core.EventCollectionCreated, created.ID, toCollectionDTO(created))
		writeJSON(w, http.StatusOK, toCollectionDTO(created))
	default:
		methodNotAllowed(w)
	}
}

func (s *Service) handleCollectionByID(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/collections/")
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "collection id is required")
		return
	}
	coll, err := s.store.GetCollection(parts[0])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	info, _ := auth.FromContext(r.Context())
	if !info.IsAdmin() && coll.OwnerID != info.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	switch {
	case len(parts) == 1:
		s.collectionOps(w, r, coll)
	case len(parts) == 2 && parts[1] == "documents":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		offset, limit := pageParams(r)
		docs, total, err := s.store.CollectionDocuments(coll.ID, offset, limit)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeList(w, toDocumentDTOs(docs), total)
	case len(parts) == 3 && parts[1] == "documents":
		s.collectionMembership(w, r, coll, parts[2])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Service) collectionOps(w http.ResponseWriter, r *http.Request, coll core.Collection) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, toCollectionDTO(coll))
	case http.MethodPut:
		var req collectionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name != "" {
			coll.Name = strings.TrimSpace(req.Name)
		}
		if req.Description != "" {
			coll.Description = req.Description
		}
		updated, err := s.store.UpdateCollection(coll)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		s.broadcast(updated.OwnerID, core.EventCollectionUpdated, updated.ID, toCollectionDTO(updated))
		writeJSON(w, http.StatusOK, toCollectionDTO(updated))
	case http.MethodDelete:
		if err := s.store.DeleteCollection(coll.ID); err != nil {
			writeStoreError(w, err)
			return
		}
		s.broadcast(coll.OwnerID, core.EventCollectionDeleted, coll.ID, nil)
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Service) collectionMembership(w http.ResponseWriter, r *http.Request, coll core.Collection, docID string) {
	switch r.Method {
	case http.MethodPost:
		if err := s.store.AddDocumentToCollection(coll.ID, docID); err != nil {
			writeStoreError(w, err)
			return
		}
		s.broadcast(coll.OwnerID, core.EventCollectionUpdated, coll.ID, nil)
		writeJSON(w, http.StatusOK, map[string]string{"message": "added"})
	case http.MethodDelete:
		if err := s.store.RemoveDocumentFromCollection(coll.ID, docID); err != nil {
			writeStoreError(w, err)
			return
		}
		s.broadcast(coll.OwnerID, core.EventCollectionUpdated, coll.ID, nil)
		writeJSON(w, http.StatusOK, map[string]string{"message": "removed"})
	default:
		methodNotAllowed(w)
	}
}
