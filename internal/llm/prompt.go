package llm

// BuildSystemPrompt composes the system message: schema discipline, nullable
// unknowns, and the evidence grounding contract.
func BuildSystemPrompt() string {
	return "You extract structured fields from receipt OCR.\n" +
		"Return ONLY valid JSON matching the required schema.\n" +
		"If a field is unknown, use null.\n" +
		"Evidence MUST reference ocr_lines with a 0-based line_index and exact line_text.\n" +
		"If you cannot find supporting evidence in ocr_lines, set that evidence entry to nulls.\n" +
		"Return JSON only (no markdown).\n"
}

// BuildUserPayload packages the grounded request: the exact normalized lines,
// the rule candidates, the required schema, and the extraction rules. The
// line indices here are the only citation space the model may use.
func BuildUserPayload(req Request) map[string]any {
	lines := req.Lines
	if lines == nil {
		lines = []string{}
	}
	return map[string]any{
		"ocr_lines":       lines,
		"rule_candidates": req.Candidates,
		"required_schema": requiredSchema(),
		"rules": []string{
			"Do not invent values that are not in ocr_lines.",
			"Prefer rule_candidates only when consistent with ocr_lines.",
			"Total must be the final payable amount (not cash tendered, not change due).",
		},
	}
}

func requiredSchema() map[string]any {
	evidence := map[string]any{}
	extracted := map[string]any{
		"merchant": "string|null",
		"date":     "string|null",
		"total":    "number|null",
		"currency": "string|null",
	}
	for _, f := range Fields {
		evidence[f] = map[string]any{"line_index": "int|null", "line_text": "string|null"}
	}
	return map[string]any{
		"extracted": extracted,
		"evidence":  evidence,
	}
}
