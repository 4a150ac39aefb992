package llm

import (
	"context"
	"encoding/json"

	"github.com/receiptdu/receiptdu/internal/rules"
)

// Fields extracted from a receipt, in request/merge order.
var Fields = []string{"merchant", "date", "total", "currency"}

// Request carries everything the model needs to ground its answer: the full
// normalized line sequence (the only valid citation space) and the ranked
// rule candidates.
type Request struct {
	Lines      []string
	Candidates rules.CandidateSet
}

// Evidence is a model-asserted citation of the source line supporting an
// extracted value. Never fabricated on this side.
type Evidence struct {
	LineIndex *int    `json:"line_index"`
	LineText  *string `json:"line_text"`
}

// Extraction is the parsed model document. Extracted may be mutated by the
// fallback merger; Evidence is trusted as provided (after normalization) and
// never back-filled.
type Extraction struct {
	Extracted map[string]any       `json:"extracted"`
	Evidence  map[string]*Evidence `json:"evidence"`

	doc map[string]any // full payload, kept for raw persistence
}

// Doc returns the full document with the (possibly merged) extracted map and
// evidence written back, suitable for raw JSON persistence.
func (ex *Extraction) Doc() map[string]any {
	doc := ex.doc
	if doc == nil {
		doc = map[string]any{}
	}
	doc["extracted"] = ex.Extracted
	if ex.Evidence != nil {
		ev := map[string]any{}
		for k, v := range ex.Evidence {
			if v == nil {
				ev[k] = nil
				continue
			}
			ev[k] = map[string]any{"line_index": v.LineIndex, "line_text": v.LineText}
		}
		doc["evidence"] = ev
	}
	return doc
}

// MarshalDoc renders the document for the du_json column.
func (ex *Extraction) MarshalDoc() (json.RawMessage, error) {
	return json.Marshal(ex.Doc())
}

// FieldExtractor is the interface the pipeline depends on. It returns the
// validated extraction plus the raw JSON content for audit persistence.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req Request) (*Extraction, []byte, error)
}
