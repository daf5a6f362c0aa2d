package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"certproof/internal/registry"
	"certproof/internal/verification"
)

// Server holds the handler dependencies for the certificate API.
type Server struct {
	Service       *verification.Service
	Registry      registry.Registry
	Log           *zap.Logger
	PublicBaseURL string
	ShareSecret   []byte
}

// RegisterCertificate handles POST /api/v1/certificates: multipart upload,
// extract, fingerprint, store.
func (s *Server) RegisterCertificate(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_upload", err.Error())
		return
	}

	stored, err := s.Service.Register(r.Context(), data, contentType)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// GetCertificate handles GET /api/v1/certificates/{hash_key}.
func (s *Server) GetCertificate(w http.ResponseWriter, r *http.Request) {
	hashKey := chi.URLParam(r, "hash_key")
	rec, err := s.Registry.Lookup(r.Context(), hashKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListCertificates handles GET /api/v1/certificates?query=&status=&limit=&offset=.
func (s *Server) ListCertificates(w http.ResponseWriter, r *http.Request) {
	f := registry.Filter{Query: r.URL.Query().Get("query")}

	switch status := r.URL.Query().Get("status"); status {
	case "":
	case "verified":
		v := true
		f.Verified = &v
	case "unverified":
		v := false
		f.Verified = &v
	default:
		writeError(w, http.StatusBadRequest, "bad_filter",
			"status must be 'verified' or 'unverified'")
		return
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			f.Offset = n
		}
	}

	recs, err := s.Registry.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"certificates": recs,
		"count":        len(recs),
		"offset":       f.Offset,
	})
}

// DeleteCertificate handles DELETE /api/v1/certificates/{hash_key} (admin).
func (s *Server) DeleteCertificate(w http.ResponseWriter, r *http.Request) {
	hashKey := chi.URLParam(r, "hash_key")
	if err := s.Registry.Delete(r.Context(), hashKey); err != nil {
		writeDomainError(w, err)
		return
	}
	s.Log.Info("certificate deleted", zap.String("hash_key", hashKey))
	w.WriteHeader(http.StatusNoContent)
}

// SetVerified handles PATCH /api/v1/certificates/{hash_key}/verified (admin).
func (s *Server) SetVerified(w http.ResponseWriter, r *http.Request) {
	hashKey := chi.URLParam(r, "hash_key")
	var body struct {
		Verified *bool `json:"verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Verified == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "body must be {\"verified\": true|false}")
		return
	}
	if err := s.Registry.SetVerified(r.Context(), hashKey, *body.Verified); err != nil {
		writeDomainError(w, err)
		return
	}
	rec, err := s.Registry.Lookup(r.Context(), hashKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
