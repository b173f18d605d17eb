package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pluginhub/internal/database"
	"pluginhub/internal/logging"
	"pluginhub/internal/version"
)

// OperationResponse is one install operation as served by GET /api/operations
type OperationResponse struct {
	ID             string     `json:"id"`
	CollectionType string     `json:"collectionType"`
	PluginName     string     `json:"pluginName"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func operationResponse(op database.InstallOperation) OperationResponse {
	resp := OperationResponse{
		ID:             op.ID,
		CollectionType: op.CollectionType,
		PluginName:     op.PluginName,
		Status:         op.Status,
		ErrorMessage:   op.ErrorMessage.String,
		CreatedAt:      op.CreatedAt,
		UpdatedAt:      op.UpdatedAt,
	}
	if op.CompletedAt.Valid {
		completed := op.CompletedAt.Time
		resp.CompletedAt = &completed
	}
	return resp
}

// handleOperations handles GET /api/operations?limit=
func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.operations == nil {
		http.Error(w, "Operation log not available", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, fmt.Sprintf("Invalid limit %q", raw), http.StatusBadRequest)
			return
		}
		limit = n
	}

	ops, err := s.operations.List(r.Context(), limit)
	if err != nil {
		logging.Errorf("Failed to list install operations: %v", err)
		http.Error(w, "Failed to list operations", http.StatusInternalServerError)
		return
	}

	resp := make([]OperationResponse, 0, len(ops))
	for _, op := range ops {
		resp = append(resp, operationResponse(op))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleVersion handles GET /api/version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, version.Get())
}

// handleEvents streams store events to the browser
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := NewSSEClient()
	s.sseManager.RegisterClient(client)
	logging.Debugf("SSE client connected")
	defer func() {
		s.sseManager.UnregisterClient(client)
		logging.Debugf("SSE client disconnected")
	}()

	// Initial comment so clients see the stream is open
	fmt.Fprint(w, ": connected\n\n") //nolint:errcheck // SSE stream
	flusher.Flush()

	ctx := r.Context()
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Close:
			return
		case message := <-client.Messages:
			if _, err := fmt.Fprint(w, message); err != nil {
				logging.Debugf("Failed to write SSE message: %v", err)
				return
			}
			flusher.Flush()
		case <-pingTicker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				logging.Debugf("Failed to send SSE keepalive: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
