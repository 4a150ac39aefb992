package rules

import "strings"

// SplitLines turns raw OCR text into the ordered sequence of trimmed,
// non-empty lines. This sequence is the single source of truth that every
// candidate and every evidence line index refers back to.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		lines = append(lines, ln)
	}
	return lines
}

// NormalizeLines trims per-line text and drops empties, preserving order.
// Per-line confidence is discarded for the heuristic path.
func NormalizeLines(texts []string) []string {
	var lines []string
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		lines = append(lines, t)
	}
	return lines
}
