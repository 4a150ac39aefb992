package rules

import (
	"regexp"
	"sort"
	"strings"
)

// Candidate is one scored hypothesis for a field, grounded in a specific
// source line. LineText always equals the normalized line at LineIndex.
type Candidate struct {
	Value     string  `json:"value"`
	LineIndex int     `json:"line_index"`
	LineText  string  `json:"line_text"`
	Score     float64 `json:"score"`
}

// CandidateSet is the ranked rule output for all four fields, best-first.
// Immutable once built; consumed by both the extraction request and the
// fallback merger.
type CandidateSet struct {
	Merchant  []Candidate `json:"merchant"`
	Date      []Candidate `json:"date"`
	Total     []Candidate `json:"total"`
	Currency  []Candidate `json:"currency"`
	LineCount int         `json:"line_count"`
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),          // 08/20/10
	regexp.MustCompile(`\b\d{4}-\d{1,2}-\d{1,2}\b`),            // 2026-01-05
	regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{2,4}\b`),          // 08-20-2010
	regexp.MustCompile(`\b(?:19|20)\d{2}/\d{1,2}/\d{1,2}\b`),   // YYYY/MM/DD
	regexp.MustCompile(`\b(?:19|20)\d{2}\.\d{1,2}\.\d{1,2}\b`), // YYYY.MM.DD
}

var (
	reTimeOfDay   = regexp.MustCompile(`\b\d{1,2}:\d{2}(:\d{2})?\b`)
	reMoney       = regexp.MustCompile(`\b(\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})|\d+(?:[.,]\d{2}))\b`)
	reMerchNoise  = regexp.MustCompile(`\b(open|hours|tel|phone|tr#|st#|tc#)\b`)
	rePhoneShape  = regexp.MustCompile(`\(\d{3}\)\d`)
	reCurrencyUSD = regexp.MustCompile(`\bUSD\b`)
	reCurrencyEUR = regexp.MustCompile(`\bEUR\b`)
)

var totalAnchors = []string{"total", "amount due", "balance due", "grand total", "to pay"}

// FindDateCandidates scans for common receipt date formats. Dates near the
// bottom of the document, or sharing a line with a time stamp, score higher.
func FindDateCandidates(lines []string) []Candidate {
	var cands []Candidate
	for i, ln := range lines {
		for _, pat := range datePatterns {
			m := pat.FindString(ln)
			if m == "" {
				continue
			}
			score := 0.6
			if reTimeOfDay.MatchString(ln) {
				score += 0.2
			}
			if float64(i) > float64(len(lines))*0.6 {
				score += 0.1
			}
			cands = append(cands, Candidate{Value: m, LineIndex: i, LineText: ln, Score: score})
		}
	}
	return top(cands, 5)
}

// FindTotalCandidates looks for anchor phrases (TOTAL / AMOUNT DUE / ...) and
// extracts a monetary-looking number from the anchor line, or from the line
// immediately below it (common two-line layout). With no anchored hit at all,
// it falls back to the last money-like number near the bottom.
func FindTotalCandidates(lines []string) []Candidate {
	var cands []Candidate
	for i, ln := range lines {
		low := strings.ToLower(ln)
		anchored := false
		for _, a := range totalAnchors {
			if strings.Contains(low, a) {
				anchored = true
				break
			}
		}
		if !anchored {
			continue
		}

		if m := reMoney.FindStringSubmatch(ln); m != nil {
			score := 0.8
			if strings.Contains(low, "total") {
				score += 0.1
			}
			cands = append(cands, Candidate{Value: m[1], LineIndex: i, LineText: ln, Score: score})
			continue
		}

		if i+1 < len(lines) {
			if m := reMoney.FindStringSubmatch(lines[i+1]); m != nil {
				cands = append(cands, Candidate{Value: m[1], LineIndex: i + 1, LineText: lines[i+1], Score: 0.75})
			}
		}
	}

	// Fallback: last money-like number near the bottom (weak).
	if len(cands) == 0 {
		for i := len(lines) - 1; i >= 0 && i > len(lines)-12; i-- {
			if m := reMoney.FindStringSubmatch(lines[i]); m != nil {
				cands = append(cands, Candidate{Value: m[1], LineIndex: i, LineText: lines[i], Score: 0.4})
				break
			}
		}
	}

	return top(cands, 5)
}

// FindCurrencyCandidates detects currency from symbols and explicit codes.
// Whole-word codes outrank symbol-only detection.
func FindCurrencyCandidates(lines []string) []Candidate {
	var cands []Candidate
	for i, ln := range lines {
		if strings.Contains(ln, "$") {
			cands = append(cands, Candidate{Value: "USD", LineIndex: i, LineText: ln, Score: 0.6})
		}
		if strings.Contains(ln, "€") {
			cands = append(cands, Candidate{Value: "EUR", LineIndex: i, LineText: ln, Score: 0.6})
		}
		if strings.Contains(ln, "£") {
			cands = append(cands, Candidate{Value: "GBP", LineIndex: i, LineText: ln, Score: 0.6})
		}
		if reCurrencyUSD.MatchString(ln) {
			cands = append(cands, Candidate{Value: "USD", LineIndex: i, LineText: ln, Score: 0.7})
		}
		if reCurrencyEUR.MatchString(ln) {
			cands = append(cands, Candidate{Value: "EUR", LineIndex: i, LineText: ln, Score: 0.7})
		}
	}
	return top(cands, 3)
}

// FindMerchantCandidates ranks early lines that look like a store name.
// Only the first 8 lines are eligible; operational noise and phone-number
// shapes are skipped.
func FindMerchantCandidates(lines []string) []Candidate {
	head := lines
	if len(head) > 8 {
		head = head[:8]
	}

	var cands []Candidate
	for i, ln := range head {
		if len(ln) < 3 {
			continue
		}
		if reMerchNoise.MatchString(strings.ToLower(ln)) {
			continue
		}
		if rePhoneShape.MatchString(ln) {
			continue
		}

		score := 0.5
		if isUpper(ln) {
			score += 0.2
		}
		if i == 0 {
			score += 0.2
		}
		cands = append(cands, Candidate{Value: ln, LineIndex: i, LineText: ln, Score: score})
	}
	return top(cands, 5)
}

// BuildCandidates packages the four ranked lists plus the line count.
func BuildCandidates(lines []string) CandidateSet {
	return CandidateSet{
		Merchant:  FindMerchantCandidates(lines),
		Date:      FindDateCandidates(lines),
		Total:     FindTotalCandidates(lines),
		Currency:  FindCurrencyCandidates(lines),
		LineCount: len(lines),
	}
}

// top sorts best-first and keeps at most n. The sort must be stable so that
// equal-score candidates retain document order.
func top(cands []Candidate, n int) []Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Score > cands[j].Score
	})
	if len(cands) > n {
		cands = cands[:n]
	}
	return cands
}

// isUpper reports whether s contains at least one cased character and no
// lower-case ones.
func isUpper(s string) bool {
	return strings.ToUpper(s) == s && strings.ToLower(s) != s
}
