package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"forensic_audit/pkg/core/calc"
	"forensic_audit/pkg/core/document"
	"forensic_audit/pkg/core/ingest"
)

// Envelope is the body of every audit response.
type Envelope struct {
	Status  string `json:"status"` // "success" or "error"
	Results any    `json:"results,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, results any) {
	writeJSON(w, http.StatusOK, Envelope{Status: "success", Results: results})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Status: "error", Message: msg})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var (
		inputErr *calc.InputError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &inputErr), ingest.IsTableError(err), errors.Is(err, document.ErrEmptyDocument):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, document.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
