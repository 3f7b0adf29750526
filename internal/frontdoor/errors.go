package frontdoor

import (
	"encoding/json"
	"net/http"

	"github.com/tjfontaine/polyglot-chat-proxy/internal/domain"
)

// errorBody is the JSON shape of every synchronous error response.
type errorBody struct {
	Error   string              `json:"error"`
	Details []domain.FieldError `json:"details,omitempty"`
	Message string              `json:"message,omitempty"`
}

// writeError renders err with the status its type maps to. Validation errors
// carry their field details; everything else is reported as an internal
// server error with the underlying message.
func writeError(w http.ResponseWriter, err error) {
	apiErr := domain.AsAPIError(err)

	body := errorBody{Error: apiErr.Message, Details: apiErr.Details}
	if apiErr.Type != domain.ErrorTypeValidation {
		body = errorBody{Error: "Internal server error", Message: apiErr.Message}
	}

	writeJSON(w, apiErr.HTTPStatusCode(), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// outcome names an error for metrics and request logs.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(domain.AsAPIError(err).Type) + "_error"
}
