package llm

import "github.com/receiptdu/receiptdu/internal/rules"

// MergeCandidates fills null/missing extracted fields from the top-ranked
// rule candidates. An empty string counts as missing for merchant, date and
// currency; for the numeric total only null/missing triggers the fallback.
// Evidence is never back-filled: a merged field may carry a value with null
// evidence.
func MergeCandidates(ex *Extraction, cands rules.CandidateSet) {
	if ex.Extracted == nil {
		ex.Extracted = map[string]any{}
	}

	if emptyString(ex.Extracted["merchant"]) {
		ex.Extracted["merchant"] = topValue(cands.Merchant)
	}
	if emptyString(ex.Extracted["date"]) {
		ex.Extracted["date"] = topValue(cands.Date)
	}
	if emptyString(ex.Extracted["currency"]) {
		ex.Extracted["currency"] = topValue(cands.Currency)
	}
	if ex.Extracted["total"] == nil {
		ex.Extracted["total"] = topValue(cands.Total)
	}
}

// topValue returns the highest-scored candidate's value, or nil.
func topValue(cands []rules.Candidate) any {
	if len(cands) == 0 {
		return nil
	}
	return cands[0].Value
}

// emptyString reports whether v is missing, null, or a zero-length string.
// Non-string noise is left alone rather than overwritten.
func emptyString(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
