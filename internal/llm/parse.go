package llm

import (
	"encoding/json"
	"strings"

	"github.com/receiptdu/receiptdu/internal/common"
)

// ParseExtraction locates the first JSON object embedded anywhere in the raw
// model output (wrapper prose is tolerated and discarded) and enforces the
// minimal structural contract: a mapping with an "extracted" mapping.
func ParseExtraction(raw string) (*Extraction, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, common.NewAppError(common.CodeMalformedResponse, "no JSON object found in model output", nil)
	}

	var v any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return nil, common.NewAppError(common.CodeMalformedResponse, "model output is not parseable JSON", err)
	}

	if err := ValidateAgainstSchema(responseSchema, v); err != nil {
		return nil, common.NewAppError(common.CodeSchemaViolation, "model output missing 'extracted' mapping", err)
	}

	doc := v.(map[string]any)
	extracted, _ := doc["extracted"].(map[string]any)

	ex := &Extraction{
		Extracted: extracted,
		Evidence:  parseEvidence(doc["evidence"]),
		doc:       doc,
	}
	return ex, nil
}

// parseEvidence reads the per-field evidence entries, tolerating missing or
// wrong-typed values (they become nil, never an error).
func parseEvidence(v any) map[string]*Evidence {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]*Evidence, len(m))
	for field, raw := range m {
		entry, ok := raw.(map[string]any)
		if !ok {
			out[field] = nil
			continue
		}
		ev := &Evidence{}
		if idx, ok := entry["line_index"].(float64); ok {
			i := int(idx)
			ev.LineIndex = &i
		}
		if txt, ok := entry["line_text"].(string); ok {
			t := txt
			ev.LineText = &t
		}
		out[field] = ev
	}
	return out
}

// NormalizeEvidence nulls any evidence entry whose line_index is out of range
// or whose line_text does not match the normalized line at that index. The
// response as a whole is never rejected for bad evidence, and evidence is
// never invented.
func (ex *Extraction) NormalizeEvidence(lines []string) {
	for field, ev := range ex.Evidence {
		if ev == nil {
			continue
		}
		if ev.LineIndex == nil && ev.LineText == nil {
			continue // explicit null citation, already valid
		}
		if ev.LineIndex == nil || *ev.LineIndex < 0 || *ev.LineIndex >= len(lines) {
			ex.Evidence[field] = nil
			continue
		}
		if ev.LineText == nil || *ev.LineText != lines[*ev.LineIndex] {
			ex.Evidence[field] = nil
		}
	}
}
