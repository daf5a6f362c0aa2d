package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
)

// CertificateQRCode handles GET /api/v1/certificates/{hash_key}/qrcode: a
// PNG QR code pointing at the public record for the hash key, for printing
// on issued certificates.
func (s *Server) CertificateQRCode(w http.ResponseWriter, r *http.Request) {
	hashKey := chi.URLParam(r, "hash_key")
	if _, err := s.Registry.Lookup(r.Context(), hashKey); err != nil {
		writeDomainError(w, err)
		return
	}

	url := s.PublicBaseURL + "/api/v1/certificates/" + hashKey
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "qr_failed", "failed to generate QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
