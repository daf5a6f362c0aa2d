package handlers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"certproof/internal/auth"
	"certproof/internal/extractor"
	"certproof/internal/handlers"
	"certproof/internal/models"
	"certproof/internal/registry"
	"certproof/internal/router"
	"certproof/internal/verification"
)

const testSecret = "test-secret"

const genuineCertificate = `ABC University

Student Name: John Doe
Roll Number: CS001
Course: Computer Science
Grade: A+
Date of Completion: 2023-05-15
`

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := zap.NewNop()
	reg := registry.NewInMemory()
	dispatcher := extractor.NewDispatcher().
		Handle("text/plain", extractor.NewText()).
		Handle("text/csv", extractor.NewText()).
		Handle("application/json", extractor.NewJSON())
	service := verification.NewService(dispatcher, reg, verification.Options{
		ExtractTimeout: time.Second,
		StoreTimeout:   time.Second,
		StoreRetries:   1,
	}, log)
	srv := &handlers.Server{
		Service:       service,
		Registry:      reg,
		Log:           log,
		PublicBaseURL: "http://localhost:8080",
		ShareSecret:   []byte(testSecret),
	}
	authHandler := auth.NewHandler(auth.NewMemoryNonceStore(), []byte(testSecret), time.Hour, nil, log)
	return router.New(srv, authHandler, []byte(testSecret), log)
}

func uploadRequest(t *testing.T, target, field, filename, contentType string, payload []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := auth.CreateToken("0x0000000000000000000000000000000000000001", []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return token
}

func registerGenuine(t *testing.T, r http.Handler) models.CertificateRecord {
	t.Helper()
	req := uploadRequest(t, "/api/v1/certificates", "certificate", "cert.txt", "text/plain", []byte(genuineCertificate))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var stored models.CertificateRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stored))
	return stored
}

func TestRegisterThenVerifyRoundTrip(t *testing.T) {
	r := newTestRouter(t)
	stored := registerGenuine(t, r)
	require.Len(t, stored.HashKey, 64)
	assert.Equal(t, "CS001", stored.Fields.RollNumber)

	req := uploadRequest(t, "/api/v1/verifications", "certificate", "cert.txt", "text/plain", []byte(genuineCertificate))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var verdict models.VerificationVerdict
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&verdict))
	assert.True(t, verdict.Verified)
	assert.Equal(t, models.VerdictVerified, verdict.Code)
	require.NotNil(t, verdict.Match)
	assert.True(t, verdict.Match.HashMatch)
	assert.Equal(t, stored.HashKey, verdict.Match.HashKey)
	assert.Equal(t, "CS001", verdict.Match.Fields.RollNumber)
}

func TestVerifyTamperedDocument(t *testing.T) {
	r := newTestRouter(t)
	stored := registerGenuine(t, r)

	tampered := strings.Replace(genuineCertificate, "CS001", "CS002", 1)
	req := uploadRequest(t, "/api/v1/verifications", "certificate", "cert.txt", "text/plain", []byte(tampered))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var verdict models.VerificationVerdict
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&verdict))
	assert.False(t, verdict.Verified)
	assert.Equal(t, models.VerdictNoMatch, verdict.Code)
	assert.Nil(t, verdict.Match)
	assert.NotEmpty(t, verdict.Message)
	assert.NotEqual(t, stored.HashKey, "")
}

func TestVerifyUnreadableDocumentIsDistinct(t *testing.T) {
	r := newTestRouter(t)

	req := uploadRequest(t, "/api/v1/verifications", "certificate", "cert.bin", "application/octet-stream", []byte{0x00, 0x01})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var verdict models.VerificationVerdict
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&verdict))
	assert.False(t, verdict.Verified)
	assert.Equal(t, models.VerdictUnreadable, verdict.Code)
}

func TestDuplicateRegistrationConflict(t *testing.T) {
	r := newTestRouter(t)
	registerGenuine(t, r)

	req := uploadRequest(t, "/api/v1/certificates", "certificate", "cert.txt", "text/plain", []byte(genuineCertificate))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterUnreadableDocument(t *testing.T) {
	r := newTestRouter(t)

	req := uploadRequest(t, "/api/v1/certificates", "certificate", "empty.txt", "text/plain", []byte("   "))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListCertificates(t *testing.T) {
	r := newTestRouter(t)
	stored := registerGenuine(t, r)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/certificates?query="+url.QueryEscape("john"), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Certificates []models.CertificateRecord `json:"certificates"`
		Count        int                        `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, stored.HashKey, resp.Certificates[0].HashKey)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/certificates?query=nobody", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Zero(t, resp.Count)
}

func TestGetCertificate(t *testing.T) {
	r := newTestRouter(t)
	stored := registerGenuine(t, r)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/certificates/"+stored.HashKey, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/certificates/"+strings.Repeat("0", 64), nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	r := newTestRouter(t)
	stored := registerGenuine(t, r)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/certificates/"+stored.HashKey, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/certificates/"+stored.HashKey, nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/certificates/"+stored.HashKey, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetVerifiedFlag(t *testing.T) {
	r := newTestRouter(t)
	stored := registerGenuine(t, r)
	require.False(t, stored.Verified)

	body := strings.NewReader(`{"verified": true}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/certificates/"+stored.HashKey+"/verified", body)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.CertificateRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.True(t, updated.Verified)
}

func TestQRCodeEndpoint(t *testing.T) {
	r := newTestRouter(t)
	stored := registerGenuine(t, r)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/certificates/"+stored.HashKey+"/qrcode", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestShareLinkFlow(t *testing.T) {
	r := newTestRouter(t)
	stored := registerGenuine(t, r)

	body := strings.NewReader(`{"expires_in_hours": 24}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/certificates/"+stored.HashKey+"/share", body)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var share struct {
		ShareableURL string `json:"shareable_url"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&share))

	parsed, err := url.Parse(share.ShareableURL)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, parsed.Path+"?"+parsed.RawQuery, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var shared struct {
		Certificate models.CertificateRecord `json:"certificate"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&shared))
	assert.Equal(t, stored.HashKey, shared.Certificate.HashKey)

	// Tampered token is rejected.
	req = httptest.NewRequest(http.MethodGet, parsed.Path+"?token=not-a-token", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExtractionPreview(t *testing.T) {
	r := newTestRouter(t)

	req := uploadRequest(t, "/api/v1/extractions", "certificate", "cert.txt", "text/plain", []byte(genuineCertificate))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var record models.ExtractedRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&record))
	assert.Equal(t, "John Doe", record.StudentName)
	assert.Equal(t, "ABC University", record.Institution)

	// Nothing was registered by the preview.
	vreq := uploadRequest(t, "/api/v1/verifications", "certificate", "cert.txt", "text/plain", []byte(genuineCertificate))
	vrec := httptest.NewRecorder()
	r.ServeHTTP(vrec, vreq)
	var verdict models.VerificationVerdict
	require.NoError(t, json.NewDecoder(vrec.Body).Decode(&verdict))
	assert.Equal(t, models.VerdictNoMatch, verdict.Code)
}

func TestBulkRegistration(t *testing.T) {
	r := newTestRouter(t)

	csvBody := "student_name,roll_number,course,institution,grade,date_of_completion\n" +
		"John Doe,CS001,Computer Science,ABC University,A+,2023-05-15\n" +
		"Alice Smith,EE042,Electrical Engineering,ABC University,A,2023-05-15\n" +
		"John Doe,CS001,Computer Science,ABC University,A+,2023-05-15\n"

	req := uploadRequest(t, "/api/v1/certificates/bulk", "certificate", "records.csv", "text/csv", []byte(csvBody))
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Inserted          int      `json:"inserted"`
		DuplicatesSkipped int      `json:"duplicates_skipped"`
		HashKeys          []string `json:"hash_keys"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Inserted)
	assert.Equal(t, 1, resp.DuplicatesSkipped)
	assert.Len(t, resp.HashKeys, 2)
}

func TestBulkRejectsWrongHeader(t *testing.T) {
	r := newTestRouter(t)

	req := uploadRequest(t, "/api/v1/certificates/bulk", "certificate", "records.csv", "text/csv", []byte("name,roll\nx,y\n"))
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissingFileField(t *testing.T) {
	r := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/certificates", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
