package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"certproof/internal/models"
)

// JSON accepts documents that already carry structured fields, as produced by
// the bulk registration path and integrations that bypass OCR. The payload is
// a flat object of string-valued fields; unknown keys are retained as extra
// fields, arbitrary nested structure is rejected.
type JSON struct{}

func NewJSON() *JSON { return &JSON{} }

func (JSON) Extract(ctx context.Context, data []byte, contentType string) (models.ExtractedRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.ExtractedRecord{}, err
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return models.ExtractedRecord{}, ErrUnreadable
	}

	var record models.ExtractedRecord
	for key, value := range payload {
		str, ok := value.(string)
		if !ok {
			if value == nil {
				continue
			}
			return models.ExtractedRecord{}, fmt.Errorf("field %q is not a string: %w", key, ErrUnreadable)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "raw_text" {
			record.RawText = str
			continue
		}
		record.SetField(key, strings.TrimSpace(str))
	}
	if record.Empty() {
		return models.ExtractedRecord{}, ErrUnreadable
	}
	return record, nil
}
