package extractor

import (
	"context"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"certproof/internal/models"
)

// Parser structures raw OCR text into an ExtractedRecord.
type Parser interface {
	Parse(ctx context.Context, raw string) (models.ExtractedRecord, error)
}

// OCR extracts certificate fields from scanned images: Google Cloud Vision
// document-text detection, then a Parser (Gemini in production) over the raw
// text.
type OCR struct {
	credentialsFile string
	parser          Parser
}

func NewOCR(credentialsFile string, parser Parser) *OCR {
	return &OCR{credentialsFile: credentialsFile, parser: parser}
}

func (o *OCR) Extract(ctx context.Context, data []byte, contentType string) (models.ExtractedRecord, error) {
	raw, err := o.detectText(ctx, data)
	if err != nil {
		return models.ExtractedRecord{}, err
	}

	record, err := o.parser.Parse(ctx, raw)
	if err != nil {
		return models.ExtractedRecord{}, fmt.Errorf("parse OCR text: %w", err)
	}
	record.RawText = raw
	if record.Empty() {
		return models.ExtractedRecord{}, ErrUnreadable
	}
	return record, nil
}

func (o *OCR) detectText(ctx context.Context, data []byte) (string, error) {
	var opts []option.ClientOption
	if o.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(o.credentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("init vision client: %w", err)
	}
	defer client.Close()

	img := &visionpb.Image{Content: data}
	annotation, err := client.DetectDocumentText(ctx, img, nil)
	if err != nil {
		return "", fmt.Errorf("detect document text: %w", err)
	}
	if annotation == nil || strings.TrimSpace(annotation.Text) == "" {
		return "", ErrUnreadable
	}
	return annotation.Text, nil
}
