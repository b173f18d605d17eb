package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"pluginhub/internal/configuration"
	"pluginhub/internal/logging"
	"pluginhub/internal/orchestrations"
)

// maxBodyBytes caps request bodies; configuration records are small
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Errorf("Failed to encode response: %v", err)
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// statusFor maps store and client errors to an HTTP status
func statusFor(err error) int {
	var apiErr *orchestrations.APIError
	switch {
	case errors.Is(err, configuration.ErrGroupNotFound),
		errors.Is(err, configuration.ErrAttributeNotFound),
		errors.Is(err, configuration.ErrNoEntities):
		return http.StatusNotFound
	case errors.Is(err, configuration.ErrUnknownCollectionType),
		errors.Is(err, configuration.ErrPluginNameRequired):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		// everything else failed talking to the orchestration service
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}
