package extractor

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"certproof/internal/models"
)

// labelAliases maps the label spellings seen on real certificates and OCR
// output to canonical field names. Anything not listed is matched fuzzily.
var labelAliases = map[string]string{
	"student name":       models.FieldStudentName,
	"name":               models.FieldStudentName,
	"candidate name":     models.FieldStudentName,
	"roll number":        models.FieldRollNumber,
	"roll no":            models.FieldRollNumber,
	"register number":    models.FieldRollNumber,
	"registration no":    models.FieldRollNumber,
	"course":             models.FieldCourse,
	"course name":        models.FieldCourse,
	"program":            models.FieldCourse,
	"institution":        models.FieldInstitution,
	"university":         models.FieldInstitution,
	"college":            models.FieldInstitution,
	"grade":              models.FieldGrade,
	"result":             models.FieldGrade,
	"cgpa":               models.FieldGrade,
	"date of completion": models.FieldDateOfCompletion,
	"completion date":    models.FieldDateOfCompletion,
	"date":               models.FieldDateOfCompletion,
	"issued date":        models.FieldDateOfCompletion,
}

// labelMatchThreshold is the Jaro-Winkler similarity above which a noisy
// label ("Roll Numbr") is accepted as a known one. Fuzziness ends at this
// boundary; it never reaches the verification decision.
const labelMatchThreshold = 0.88

// Text parses line-oriented "Label: value" documents, the shape both the
// structured-upload path and OCR post-processing produce.
type Text struct {
	metric *metrics.JaroWinkler
}

func NewText() *Text {
	return &Text{metric: metrics.NewJaroWinkler()}
}

func (t *Text) Extract(ctx context.Context, data []byte, contentType string) (models.ExtractedRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.ExtractedRecord{}, err
	}
	if !utf8.Valid(data) {
		return models.ExtractedRecord{}, ErrUnreadable
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return models.ExtractedRecord{}, ErrUnreadable
	}

	record := models.ExtractedRecord{RawText: raw}
	for _, line := range strings.Split(raw, "\n") {
		label, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if field := t.canonicalLabel(label); field != "" {
			if record.Field(field) == "" {
				record.SetField(field, value)
			}
			continue
		}
		record.SetField(normalizeLabel(label), value)
	}

	if record.Institution == "" {
		record.Institution = guessInstitution(raw)
	}
	return record, nil
}

func (t *Text) canonicalLabel(label string) string {
	normalized := normalizeLabel(label)
	if normalized == "" {
		return ""
	}
	if field, ok := labelAliases[normalized]; ok {
		return field
	}
	best, bestScore := "", 0.0
	for alias, field := range labelAliases {
		if score := strutil.Similarity(normalized, alias, t.metric); score > bestScore {
			best, bestScore = field, score
		}
	}
	if bestScore >= labelMatchThreshold {
		return best
	}
	return ""
}

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.Trim(label, ".-#")
	label = strings.ReplaceAll(label, "_", " ")
	return strings.Join(strings.Fields(label), " ")
}

// guessInstitution picks the longest line mentioning an institution keyword,
// for certificates that print the issuer as a heading rather than a field.
func guessInstitution(raw string) string {
	keywords := []string{"university", "institute", "college", "academy"}
	best := ""
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, ":") {
			continue
		}
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) && len(line) > len(best) {
				best = line
				break
			}
		}
	}
	return best
}
