package kit

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an error body whose details carry machine-readable context
// (violation lists, offending ids).
func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string, details any) {
	WriteJSON(w, status, ErrorResponse{
		Error:     msg,
		Details:   details,
		RequestID: chimw.GetReqID(r.Context()),
	})
}

// WriteErrorMessage writes an error body with a human-readable message next to the tag.
func WriteErrorMessage(w http.ResponseWriter, r *http.Request, status int, msg, message string) {
	WriteJSON(w, status, ErrorResponse{
		Error:     msg,
		Message:   message,
		RequestID: chimw.GetReqID(r.Context()),
	})
}
