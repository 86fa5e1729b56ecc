package http

import (
	"encoding/json"
	"net/http"

	telemetry "garden-cloud/internal/telemetry/domain"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorBody{Error: message, Details: details})
}

// writeDomainError maps the error taxonomy onto status codes: validation
// failures are 400, missing references 404, everything else 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case telemetry.IsValidation(err):
		writeError(w, http.StatusBadRequest, "validation failed", err.Error())
	case telemetry.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}
