package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"certproof/internal/models"
)

const geminiPrompt = `You are an expert data extraction assistant. Extract the following fields from the raw text of an academic certificate and return them as a JSON object.

Rules:
1. The required keys are: "student_name", "roll_number", "course", "institution", "grade", "date_of_completion".
2. If a field cannot be found in the text, its value must be null.
3. Respond with ONLY the JSON object, no explanations and no text before or after it.
4. Clean extracted values of stray newlines and extra whitespace.

Raw text:
"""
%s
"""`

// Gemini structures raw OCR text via Google's Gemini API.
type Gemini struct {
	apiKey string
	model  string
}

func NewGemini(apiKey string) *Gemini {
	return &Gemini{apiKey: apiKey, model: "gemini-2.0-flash-lite"}
}

func (g *Gemini) Parse(ctx context.Context, raw string) (models.ExtractedRecord, error) {
	var record models.ExtractedRecord
	if strings.TrimSpace(g.apiKey) == "" {
		return record, errors.New("missing Gemini API key")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return record, fmt.Errorf("init Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.GenerationConfig = genai.GenerationConfig{ResponseMIMEType: "application/json"}

	resp, err := model.GenerateContent(ctx, genai.Text(fmt.Sprintf(geminiPrompt, raw)))
	if err != nil {
		return record, fmt.Errorf("gemini generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return record, errors.New("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	jsonStr := stripCodeFences(sb.String())
	if candidate, ok := extractFirstJSON(jsonStr); ok {
		jsonStr = candidate
	}
	if jsonStr == "" {
		return record, errors.New("no JSON in Gemini response")
	}

	// Values may be null; decode into a map first.
	var fields map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		return record, fmt.Errorf("parse Gemini JSON: %w", err)
	}
	for key, value := range fields {
		if str, ok := value.(string); ok {
			record.SetField(strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(str))
		}
	}
	return record, nil
}

// stripCodeFences removes surrounding Markdown fences like ```json ... ```.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
	if i := strings.IndexByte(s, '\n'); i != -1 {
		if tag := strings.TrimSpace(s[:i]); len(tag) > 0 && len(tag) < 20 {
			s = s[i+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// extractFirstJSON pulls the first balanced JSON object or array out of text
// that may carry prose around it.
func extractFirstJSON(s string) (string, bool) {
	if obj, ok := extractBalanced(s, '{', '}'); ok {
		return obj, true
	}
	return extractBalanced(s, '[', ']')
}

func extractBalanced(s string, open, close rune) (string, bool) {
	start, depth := -1, 0
	for i, r := range s {
		switch r {
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}
