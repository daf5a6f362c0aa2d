// Package extractor turns raw uploaded document bytes into an
// ExtractedRecord. The extraction method (OCR, LLM parsing, plain structured
// input) is an external capability behind the Extractor interface; callers
// only see the record or an unreadable signal.
package extractor

import (
	"context"
	"errors"
	"mime"
	"strings"

	"certproof/internal/models"
)

// ErrUnreadable signals that the document could not be decoded or contained
// no usable fields or text. Callers must treat it as "we could not read
// this", never as "this certificate is not registered".
var ErrUnreadable = errors.New("document unreadable")

// Extractor produces the structured record for an uploaded document.
type Extractor interface {
	Extract(ctx context.Context, data []byte, contentType string) (models.ExtractedRecord, error)
}

// Dispatcher routes an upload to the extractor registered for its media type.
// Image keys cover both specific types ("image/png") and the "image" family.
type Dispatcher struct {
	byType map[string]Extractor
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{byType: make(map[string]Extractor)}
}

// Handle registers an extractor for a media type ("application/json") or a
// whole family ("image").
func (d *Dispatcher) Handle(mediaType string, ex Extractor) *Dispatcher {
	d.byType[strings.ToLower(mediaType)] = ex
	return d
}

func (d *Dispatcher) Extract(ctx context.Context, data []byte, contentType string) (models.ExtractedRecord, error) {
	if len(data) == 0 {
		return models.ExtractedRecord{}, ErrUnreadable
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if ex, ok := d.byType[mediaType]; ok {
		return ex.Extract(ctx, data, mediaType)
	}
	if family, _, found := strings.Cut(mediaType, "/"); found {
		if ex, ok := d.byType[family]; ok {
			return ex.Extract(ctx, data, mediaType)
		}
	}
	return models.ExtractedRecord{}, ErrUnreadable
}
