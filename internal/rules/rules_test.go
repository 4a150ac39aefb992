package rules

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRules(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rules Suite")
}

var _ = Describe("SplitLines", func() {
	It("trims and drops empty lines while preserving order", func() {
		lines := SplitLines("  WALMART  \n\n 123 Main St \n\t\nTOTAL 12.00")
		Expect(lines).To(Equal([]string{"WALMART", "123 Main St", "TOTAL 12.00"}))
	})

	It("returns nil for empty input", func() {
		Expect(SplitLines("")).To(BeNil())
	})
})

var _ = Describe("FindTotalCandidates", func() {
	When("an anchor line carries the amount", func() {
		var cands []Candidate

		BeforeEach(func() {
			cands = FindTotalCandidates([]string{"MILK 3.49", "Total: 42.50"})
		})

		It("extracts the number from the anchor line", func() {
			Expect(cands).NotTo(BeEmpty())
			Expect(cands[0].Value).To(Equal("42.50"))
			Expect(cands[0].LineIndex).To(Equal(1))
		})

		It("scores the anchored hit at least 0.8", func() {
			Expect(cands[0].Score).To(BeNumerically(">=", 0.8))
		})

		It("keeps line_text equal to the source line", func() {
			Expect(cands[0].LineText).To(Equal("Total: 42.50"))
		})
	})

	When("the amount sits on the line below the anchor", func() {
		It("uses the next line with a lower score", func() {
			cands := FindTotalCandidates([]string{"TOTAL", "12.00"})
			Expect(cands).NotTo(BeEmpty())
			Expect(cands[0].Value).To(Equal("12.00"))
			Expect(cands[0].LineIndex).To(Equal(1))
			Expect(cands[0].Score).To(Equal(0.75))
		})
	})

	When("no anchor is present", func() {
		It("falls back to the last money-like number near the bottom", func() {
			cands := FindTotalCandidates([]string{"WALMART", "MILK 3.49", "BREAD 2.15"})
			Expect(cands).To(HaveLen(1))
			Expect(cands[0].Value).To(Equal("2.15"))
			Expect(cands[0].Score).To(Equal(0.4))
		})

		It("returns nothing when no line has a money shape", func() {
			Expect(FindTotalCandidates([]string{"WALMART", "THANK YOU"})).To(BeEmpty())
		})
	})

	It("recognizes thousands separators", func() {
		cands := FindTotalCandidates([]string{"GRAND TOTAL 1,234.56"})
		Expect(cands).NotTo(BeEmpty())
		Expect(cands[0].Value).To(Equal("1,234.56"))
	})
})

var _ = Describe("FindDateCandidates", func() {
	It("finds slash dates and reports the line index", func() {
		lines := []string{"STORE", "receipt", "thanks", "01/02/2024 13:45"}
		cands := FindDateCandidates(lines)
		Expect(cands).NotTo(BeEmpty())
		Expect(cands[0].Value).To(Equal("01/02/2024"))
		Expect(cands[0].LineIndex).To(Equal(3))
	})

	It("boosts dates that share a line with a time stamp", func() {
		with := FindDateCandidates([]string{"01/02/2024 13:45"})
		without := FindDateCandidates([]string{"01/02/2024"})
		Expect(with[0].Score).To(BeNumerically(">", without[0].Score))
	})

	It("boosts dates near the bottom of the document", func() {
		lines := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "01/02/2024"}
		cands := FindDateCandidates(lines)
		Expect(cands[0].Score).To(BeNumerically("~", 0.7, 1e-9))
	})

	It("finds ISO dates", func() {
		cands := FindDateCandidates([]string{"2024-01-02"})
		Expect(cands).NotTo(BeEmpty())
		Expect(cands[0].Value).To(Equal("2024-01-02"))
	})
})

var _ = Describe("FindCurrencyCandidates", func() {
	It("ranks an explicit code above a symbol", func() {
		cands := FindCurrencyCandidates([]string{"$12.00", "Paid in EUR"})
		Expect(cands).NotTo(BeEmpty())
		Expect(cands[0].Value).To(Equal("EUR"))
		Expect(cands[0].Score).To(Equal(0.7))
	})

	It("maps symbols to codes", func() {
		cands := FindCurrencyCandidates([]string{"£9.99"})
		Expect(cands).To(HaveLen(1))
		Expect(cands[0].Value).To(Equal("GBP"))
	})

	It("does not match USD inside a longer word", func() {
		Expect(FindCurrencyCandidates([]string{"USDA PRIME BEEF"})).To(BeEmpty())
	})

	It("keeps at most three candidates", func() {
		lines := []string{"$1", "$2", "$3", "$4", "$5"}
		Expect(FindCurrencyCandidates(lines)).To(HaveLen(3))
	})
})

var _ = Describe("FindMerchantCandidates", func() {
	It("prefers an all-caps first line", func() {
		cands := FindMerchantCandidates([]string{"WALMART", "123 Main St", "Springfield"})
		Expect(cands).NotTo(BeEmpty())
		Expect(cands[0].Value).To(Equal("WALMART"))
		Expect(cands[0].Score).To(BeNumerically("~", 0.9, 1e-9))
	})

	It("skips operational noise and phone numbers", func() {
		cands := FindMerchantCandidates([]string{"Open 24 Hours", "(555)123-4567", "CORNER SHOP"})
		Expect(cands).To(HaveLen(1))
		Expect(cands[0].Value).To(Equal("CORNER SHOP"))
	})

	It("ignores lines beyond the first eight", func() {
		lines := make([]string, 12)
		for i := range lines {
			lines[i] = "some line here"
		}
		for _, c := range FindMerchantCandidates(lines) {
			Expect(c.LineIndex).To(BeNumerically("<", 8))
		}
	})

	It("keeps equal-score candidates in document order", func() {
		cands := FindMerchantCandidates([]string{"tel 555", "alpha shop", "beta shop"})
		Expect(cands).To(HaveLen(2))
		Expect(cands[0].Value).To(Equal("alpha shop"))
		Expect(cands[1].Value).To(Equal("beta shop"))
	})
})

var _ = Describe("BuildCandidates", func() {
	It("records the line count of the normalized sequence", func() {
		set := BuildCandidates([]string{"WALMART", "TOTAL 5.00"})
		Expect(set.LineCount).To(Equal(2))
	})

	It("grounds every candidate in its source line", func() {
		lines := []string{"WALMART", "01/02/2024", "TOTAL 12.00", "$12.00"}
		set := BuildCandidates(lines)
		for _, group := range [][]Candidate{set.Merchant, set.Date, set.Total, set.Currency} {
			for _, c := range group {
				Expect(c.LineIndex).To(BeNumerically(">=", 0))
				Expect(c.LineIndex).To(BeNumerically("<", len(lines)))
				Expect(c.LineText).To(Equal(lines[c.LineIndex]))
			}
		}
	})
})

var _ = Describe("ParseAmount", func() {
	It("parses a plain decimal", func() {
		f, ok := ParseAmount("42.50")
		Expect(ok).To(BeTrue())
		Expect(f).To(Equal(42.50))
	})

	It("handles thousands separators", func() {
		f, ok := ParseAmount("1,234.56")
		Expect(ok).To(BeTrue())
		Expect(f).To(Equal(1234.56))
	})

	It("treats a trailing comma group of two digits as the decimal part", func() {
		f, ok := ParseAmount("12,50")
		Expect(ok).To(BeTrue())
		Expect(f).To(Equal(12.50))
	})

	It("rejects non-numeric input", func() {
		_, ok := ParseAmount("n/a")
		Expect(ok).To(BeFalse())
	})
})
