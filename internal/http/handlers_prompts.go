package httpapi

import (
	"net/http"
	"strings"

	"github.com/mistakeknot/recall/internal/core"
)

type promptRequest struct {
	Name       string            `json:"name"`
	Template   string            `json:"template"`
	InputTypes map[string]string `json:"input_types"`
}

func (s *Service) handlePrompts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		offset, limit := pageParams(r)
		prompts, total, err := s.store.ListPrompts(offset, limit)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		out := make([]promptDTO, len(prompts))
		for i, p := range prompts {
			out[i] = toPromptDTO(p)
		}
		writeList(w, out, total)
	case http.MethodPost:
		var req promptRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Name) == "" || req.Template == "" {
			writeError(w, http.StatusBadRequest, "name and template are required")
			return
		}
		created, err := s.store.CreatePrompt(core.Prompt{
			Name:       strings.TrimSpace(req.Name),
			Template:   req.Template,
			InputTypes: req.InputTypes,
		})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPromptDTO(created))
	default:
		methodNotAllowed(w)
	}
}

func (s *Service) handlePromptByName(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/prompts/")
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	name := parts[0]
	switch r.Method {
	case http.MethodGet:
		p, err := s.store.GetPrompt(name)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPromptDTO(p))
	case http.MethodPut:
		var req promptRequest
		if !decodeBody(w, r, &req) {
			return
		}
		existing, err := s.store.GetPrompt(name)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if req.Template != "" {
			existing.Template = req.Template
		}
		if req.InputTypes != nil {
			existing.InputTypes = req.InputTypes
		}
		updated, err := s.store.UpdatePrompt(existing)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPromptDTO(updated))
	case http.MethodDelete:
		if err := s.store.DeletePrompt(name); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	default:
		methodNotAllowed(w)
	}
}
