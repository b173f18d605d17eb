package server

import (
	"fmt"
	"net/http"
	"strings"

	"pluginhub/internal/selection"
)

// EntitiesResponse is the entity selection view
type EntitiesResponse struct {
	Entities *selection.EntityTree `json:"entities"`
	HasError bool                  `json:"hasExtractorLoadingError"`
}

type loadEntitiesRequest struct {
	Extractor string `json:"extractor"`
}

type toggleRequest struct {
	Group     string `json:"group"`
	Attribute string `json:"attribute"`
}

func (s *Server) entitiesResponse() EntitiesResponse {
	cache := s.store.Cache()
	return EntitiesResponse{
		Entities: cache.Entities(),
		HasError: cache.HasEntityError(),
	}
}

// handleEntities handles GET and DELETE /api/entities
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.entitiesResponse())
	case http.MethodDelete:
		s.store.ClearEntityListing()
		writeJSON(w, http.StatusOK, s.entitiesResponse())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// routeEntities dispatches POST /api/entities/{action}
func (s *Server) routeEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	action := strings.TrimPrefix(r.URL.Path, "/api/entities/")
	switch action {
	case "load":
		s.handleLoadEntities(w, r)
	case "toggle-group":
		s.handleToggleGroup(w, r)
	case "toggle-attribute":
		s.handleToggleAttribute(w, r)
	case "select-all":
		s.respondAfterToggle(w, s.store.ToggleAllEntityGroupsOn())
	case "deselect-all":
		s.respondAfterToggle(w, s.store.ToggleAllEntityGroupsOff())
	case "submit":
		s.handleSubmitEntities(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleLoadEntities(w http.ResponseWriter, r *http.Request) {
	var req loadEntitiesRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Extractor == "" {
		http.Error(w, "Extractor name is required", http.StatusBadRequest)
		return
	}

	if err := s.store.LoadEntityListing(r.Context(), req.Extractor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.entitiesResponse())
}

func (s *Server) handleToggleGroup(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Group == "" {
		http.Error(w, "Group name is required", http.StatusBadRequest)
		return
	}
	s.respondAfterToggle(w, s.store.ToggleEntityGroup(req.Group))
}

func (s *Server) handleToggleAttribute(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Group == "" || req.Attribute == "" {
		http.Error(w, "Group and attribute names are required", http.StatusBadRequest)
		return
	}
	s.respondAfterToggle(w, s.store.ToggleEntityAttribute(req.Group, req.Attribute))
}

func (s *Server) respondAfterToggle(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.entitiesResponse())
}

func (s *Server) handleSubmitEntities(w http.ResponseWriter, r *http.Request) {
	if err := s.store.SelectEntities(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Entity selection submitted",
	})
}
