package handlers

import (
	"net/http"
)

// VerifyDocument handles POST /api/v1/verifications: multipart upload in,
// verdict out. A negative verdict is a normal 200 response; only faults the
// server could not answer through (store down, timeout) become error
// statuses.
func (s *Server) VerifyDocument(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_upload", err.Error())
		return
	}

	verdict, err := s.Service.Verify(r.Context(), data, contentType)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

// ExtractDocument handles POST /api/v1/extractions: runs only the extractor
// and returns the structured fields, without registering anything.
func (s *Server) ExtractDocument(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_upload", err.Error())
		return
	}

	record, err := s.Service.Extract(r.Context(), data, contentType)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
