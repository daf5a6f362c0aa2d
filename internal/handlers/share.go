package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

type shareClaims struct {
	HashKey string `json:"hash_key"`
	jwt.RegisteredClaims
}

type shareRequest struct {
	ExpiresInHours int `json:"expires_in_hours"`
}

type shareResponse struct {
	ShareableURL string    `json:"shareable_url"`
	ValidUntil   time.Time `json:"valid_until"`
}

// CreateShareLink handles POST /api/v1/certificates/{hash_key}/share
// (admin): issues a short-lived token that lets anyone holding the link read
// the registered record.
func (s *Server) CreateShareLink(w http.ResponseWriter, r *http.Request) {
	hashKey := chi.URLParam(r, "hash_key")
	if _, err := s.Registry.Lookup(r.Context(), hashKey); err != nil {
		writeDomainError(w, err)
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	// Bound to a week so links cannot be minted effectively forever.
	if req.ExpiresInHours < 1 || req.ExpiresInHours > 168 {
		writeError(w, http.StatusBadRequest, "bad_request",
			"expires_in_hours must be between 1 and 168")
		return
	}

	exp := time.Now().Add(time.Duration(req.ExpiresInHours) * time.Hour)
	claims := shareClaims{
		HashKey: hashKey,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.ShareSecret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "share_failed", "failed to sign share token")
		return
	}

	url := fmt.Sprintf("%s/api/v1/shared/%s?token=%s", s.PublicBaseURL, hashKey, signed)
	writeJSON(w, http.StatusOK, shareResponse{ShareableURL: url, ValidUntil: exp})
}

// SharedCertificate handles GET /api/v1/shared/{hash_key}?token=: the public
// side of a share link.
func (s *Server) SharedCertificate(w http.ResponseWriter, r *http.Request) {
	hashKey := chi.URLParam(r, "hash_key")
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		writeError(w, http.StatusUnauthorized, "invalid_link",
			"this share link is invalid or has expired")
		return
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &shareClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.ShareSecret, nil
	})
	if err != nil || !parsed.Valid {
		writeError(w, http.StatusUnauthorized, "invalid_link",
			"this share link is invalid or has expired")
		return
	}
	claims, ok := parsed.Claims.(*shareClaims)
	if !ok || claims.ExpiresAt == nil {
		writeError(w, http.StatusUnauthorized, "invalid_link",
			"this share link is invalid or has expired")
		return
	}
	if claims.HashKey != hashKey {
		writeError(w, http.StatusForbidden, "invalid_link", "token does not match certificate")
		return
	}

	rec, err := s.Registry.Lookup(r.Context(), hashKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"certificate": rec,
		"valid_until": claims.ExpiresAt.Time,
	})
}
