package translator

import (
	"errors"

	"lyricgen/internal/catalog"
	"lyricgen/internal/provider"
)

// ConnectionTestResponse reports whether a provider's catalog is reachable.
type ConnectionTestResponse struct {
	Provider   string           `json:"provider"`
	OK         bool             `json:"ok"`
	Models     int              `json:"models"`
	DurationMs int64            `json:"durationMs"`
	Error      *ConnectionError `json:"error,omitempty"`
}

// ConnectionError describes a failed connection test.
type ConnectionError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// FromConnectionReport converts a connection check into its API payload.
func FromConnectionReport(r catalog.ConnectionReport) ConnectionTestResponse {
	resp := ConnectionTestResponse{
		Provider:   r.Provider,
		OK:         r.OK,
		Models:     r.Models,
		DurationMs: r.Duration.Milliseconds(),
	}
	if r.Err == nil {
		return resp
	}

	message := r.Err.Error()
	var apiErr *provider.APIError
	if errors.As(r.Err, &apiErr) && apiErr.Message != "" {
		message = apiErr.Message
	}
	errType := provider.ErrorType(r.Err)
	if errors.Is(r.Err, catalog.ErrNoModelsEndpoint) {
		errType = "no_models_endpoint"
	}
	resp.Error = &ConnectionError{Message: message, Type: errType}
	return resp
}
