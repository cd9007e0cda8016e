package handler

import (
	"encoding/json"
	"net/http"
)

// JSON writes data as a JSON body with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
		}
	}
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func Error(w http.ResponseWriter, status int, code string, message string) {
	ErrorWithDetails(w, status, code, message, nil)
}

// ErrorWithDetails attaches machine-readable context, such as the rejected
// format pair, to an error body.
func ErrorWithDetails(w http.ResponseWriter, status int, code string, message string, details map[string]string) {
	JSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}
