package handlers

import (
	"errors"
	"io"
	"net/http"
)

const maxUploadBytes = 10 << 20 // 10MB

var errNoFile = errors.New("missing file field 'certificate'")

// readUpload pulls the single uploaded document out of a multipart request.
// The canonical field name is "certificate"; a few common alternatives are
// accepted so form tooling quirks don't turn into support tickets.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", err
	}

	file, header, err := r.FormFile("certificate")
	if err != nil {
		for _, alt := range []string{"file", "document", "upload"} {
			if f, h, aerr := r.FormFile(alt); aerr == nil {
				file, header, err = f, h, nil
				break
			}
		}
	}
	if err != nil {
		return nil, "", errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
