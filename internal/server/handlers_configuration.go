package server

import (
	"fmt"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"

	"pluginhub/internal/configuration"
	"pluginhub/internal/logging"
	"pluginhub/internal/orchestrations"
)

// routeConfiguration handles /api/configuration/{extractor|loader}[/{name}]
//
//	GET    .../{slot}          current focused record
//	GET    .../{slot}/{name}   load and focus the record of name
//	POST   .../{slot}          save the record in the body
//	DELETE .../{slot}          clear the focus
func (s *Server) routeConfiguration(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/configuration/"), "/")
	parts := strings.SplitN(path, "/", 2)

	slot := configuration.Slot(parts[0])
	if slot != configuration.SlotExtractor && slot != configuration.SlotLoader {
		http.NotFound(w, r)
		return
	}
	name := ""
	if len(parts) == 2 {
		name = parts[1]
	}

	switch r.Method {
	case http.MethodGet:
		if name != "" {
			if err := s.store.LoadFocusedConfiguration(r.Context(), name, slot); err != nil {
				writeError(w, err)
				return
			}
		}
		s.writeConfiguration(w, r, s.store.Cache().Focused(slot))
	case http.MethodPost:
		if name != "" {
			http.Error(w, "Save takes the record in the body", http.StatusBadRequest)
			return
		}
		s.handleSaveConfiguration(w, r, slot)
	case http.MethodDelete:
		if name != "" {
			http.Error(w, "Clear takes no plugin name", http.StatusBadRequest)
			return
		}
		s.store.ClearFocused(slot)
		s.writeConfiguration(w, r, s.store.Cache().Focused(slot))
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSaveConfiguration(w http.ResponseWriter, r *http.Request, slot configuration.Slot) {
	var record orchestrations.Configuration
	if err := decodeJSON(r, &record); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	save := s.store.SaveExtractorConfiguration
	if slot == configuration.SlotLoader {
		save = s.store.SaveLoaderConfiguration
	}
	if err := save(r.Context(), record); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Configuration for '%s' saved", record.Name()),
	})
}

// writeConfiguration renders a record as JSON, or YAML with ?format=yaml
func (s *Server) writeConfiguration(w http.ResponseWriter, r *http.Request, record orchestrations.Configuration) {
	if r.URL.Query().Get("format") != "yaml" {
		writeJSON(w, http.StatusOK, record)
		return
	}

	out, err := yaml.Marshal(map[string]interface{}(record))
	if err != nil {
		logging.Errorf("Failed to render configuration as YAML: %v", err)
		http.Error(w, "Failed to render configuration", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	if _, err := w.Write(out); err != nil {
		logging.Errorf("Failed to write YAML response: %v", err)
	}
}
