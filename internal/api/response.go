package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// failureResponse is the standard JSON error shape for admin endpoints.
type failureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding json response", "error", err)
	}
}

// writeError writes the standard failure shape.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, failureResponse{Message: msg})
}

// writeTwiML writes signaling markup for the telephony provider. The
// provider treats any non-2xx as a failed webhook and plays its own error
// to the caller, so documents are always delivered with 200.
func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc)); err != nil {
		slog.Error("writing twiml response", "error", err)
	}
}
