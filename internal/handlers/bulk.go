package handlers

import (
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strings"

	"certproof/internal/models"
	"certproof/internal/registry"
)

var bulkHeaders = []string{
	models.FieldStudentName,
	models.FieldRollNumber,
	models.FieldCourse,
	models.FieldInstitution,
	models.FieldGrade,
	models.FieldDateOfCompletion,
}

// BulkRegister handles POST /api/v1/certificates/bulk (admin): a CSV of
// certificate rows, each fingerprinted and registered individually.
// Duplicate fingerprints are skipped and counted, not treated as failures.
func (s *Server) BulkRegister(w http.ResponseWriter, r *http.Request) {
	data, _, err := readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_upload", err.Error())
		return
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_csv", "unable to read CSV header")
		return
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
	}
	if !equalStrings(headers, bulkHeaders) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "bad_csv",
			"message":  "invalid CSV header; use the provided template",
			"expected": bulkHeaders,
			"got":      headers,
		})
		return
	}

	var inserted, duplicates int
	var hashKeys []string
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_csv", "failed to read CSV rows")
			return
		}
		if len(row) != len(bulkHeaders) {
			writeError(w, http.StatusBadRequest, "bad_csv", "row does not match header length")
			return
		}

		var record models.ExtractedRecord
		for i, name := range bulkHeaders {
			record.SetField(name, strings.TrimSpace(row[i]))
		}
		if record.Empty() {
			continue
		}

		stored, err := s.Service.RegisterRecord(r.Context(), record)
		if errors.Is(err, registry.ErrDuplicate) {
			duplicates++
			continue
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		inserted++
		hashKeys = append(hashKeys, stored.HashKey)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"inserted":           inserted,
		"duplicates_skipped": duplicates,
		"hash_keys":          hashKeys,
	})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
