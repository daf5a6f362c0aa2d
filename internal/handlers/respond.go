package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"certproof/internal/extractor"
	"certproof/internal/registry"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// writeDomainError maps domain errors onto HTTP statuses. Store failures are
// retryable for the caller (503); extraction failures are the caller's input
// (422); conflicts and absences keep their conventional codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate",
			"a certificate with this fingerprint is already registered")
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "certificate not found")
	case errors.Is(err, extractor.ErrUnreadable):
		writeError(w, http.StatusUnprocessableEntity, "unreadable",
			"the document could not be read or contained no usable fields")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "the operation timed out")
	case errors.Is(err, context.Canceled):
		// Client went away; status is moot but close the exchange cleanly.
		writeError(w, 499, "canceled", "request canceled")
	default:
		writeError(w, http.StatusServiceUnavailable, "store_error",
			"the certificate store is temporarily unavailable")
	}
}
