package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestOCR(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "OCR Suite")
}

type fakeRunner struct {
	stdout string
	stderr string
	err    error

	gotName string
	gotArgs []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.gotName = name
	f.gotArgs = args
	return []byte(f.stdout), []byte(f.stderr), f.err
}

const tsvHeader = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"

func tsvRow(level, page, block, par, line, word, conf, text string) string {
	return strings.Join([]string{level, page, block, par, line, word, "0", "0", "10", "10", conf, text}, "\t")
}

var _ = Describe("parseTSV", func() {
	It("groups word rows into lines and averages confidence", func() {
		body := strings.Join([]string{
			tsvHeader,
			tsvRow("5", "1", "1", "1", "1", "1", "90", "WALMART"),
			tsvRow("5", "1", "1", "1", "2", "1", "80", "TOTAL"),
			tsvRow("5", "1", "1", "1", "2", "2", "60", "12.00"),
		}, "\n")

		p := parseTSV(body)
		Expect(p.RecognizedTexts()).To(Equal([]string{"WALMART", "TOTAL 12.00"}))
		Expect(p.RecognizedScores()).To(HaveLen(2))
		Expect(p.RecognizedScores()[0]).To(BeNumerically("~", 0.90, 1e-9))
		Expect(p.RecognizedScores()[1]).To(BeNumerically("~", 0.70, 1e-9))
	})

	It("skips non-word rows and blank text cells", func() {
		body := strings.Join([]string{
			tsvHeader,
			tsvRow("4", "1", "1", "1", "1", "0", "-1", ""),
			tsvRow("5", "1", "1", "1", "1", "1", "95", "STORE"),
			tsvRow("5", "1", "1", "1", "1", "2", "-1", "  "),
		}, "\n")

		p := parseTSV(body)
		Expect(p.RecognizedTexts()).To(Equal([]string{"STORE"}))
	})

	It("yields an empty page for a body that is not TSV at all", func() {
		p := parseTSV("some plain text output\nwithout tab columns")
		Expect(p.RecognizedTexts()).To(BeNil())
		Expect(p.RecognizedScores()).To(BeNil())
	})
})

var _ = Describe("cleanLine", func() {
	It("collapses tabs and space runs to single spaces", func() {
		Expect(cleanLine("TOTAL\t\t12.00   USD")).To(Equal("TOTAL 12.00 USD"))
	})
})

var _ = Describe("Engine.Recognize", func() {
	var (
		runner *fakeRunner
		engine *Engine
	)

	newEngine := func(cfg Config) *Engine {
		e := NewEngine(cfg, nil)
		e.runner = runner
		return e
	}

	BeforeEach(func() {
		runner = &fakeRunner{}
	})

	When("running in TSV mode", func() {
		BeforeEach(func() {
			runner.stdout = strings.Join([]string{
				tsvHeader,
				tsvRow("5", "1", "1", "1", "1", "1", "90", "WALMART"),
			}, "\n")
			engine = newEngine(Config{TSVConfidence: true, PSM: 6})
		})

		It("returns cleaned lines with confidence", func() {
			lines, err := engine.Recognize(context.Background(), "receipt.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(HaveLen(1))
			Expect(lines[0].Text).To(Equal("WALMART"))
			Expect(lines[0].Confidence).To(BeNumerically("~", 0.90, 1e-9))
		})

		It("invokes tesseract with the tsv config and page segmentation mode", func() {
			_, err := engine.Recognize(context.Background(), "receipt.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(runner.gotName).To(Equal("tesseract"))
			Expect(runner.gotArgs).To(ContainElements("receipt.jpg", "stdout", "-l", "eng", "--psm", "6", "tsv"))
		})
	})

	When("the engine output has an unexpected shape", func() {
		BeforeEach(func() {
			runner.stdout = "garbage that is not tsv"
			engine = newEngine(Config{TSVConfidence: true})
		})

		It("degrades to no lines without an error", func() {
			lines, err := engine.Recognize(context.Background(), "receipt.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(BeEmpty())
		})
	})

	When("the engine cannot be executed", func() {
		BeforeEach(func() {
			runner.err = errors.New("exec: not found")
			engine = newEngine(Config{TSVConfidence: true})
		})

		It("propagates the failure", func() {
			_, err := engine.Recognize(context.Background(), "receipt.jpg")
			Expect(err).To(HaveOccurred())
		})
	})

	When("running in plain text mode", func() {
		BeforeEach(func() {
			runner.stdout = "WALMART\n\nTOTAL  12.00\n"
			engine = newEngine(Config{TSVConfidence: false})
		})

		It("returns trimmed lines with zero confidence", func() {
			lines, err := engine.Recognize(context.Background(), "receipt.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(HaveLen(2))
			Expect(lines[0]).To(Equal(Line{Text: "WALMART"}))
			Expect(lines[1]).To(Equal(Line{Text: "TOTAL 12.00"}))
		})
	})
})
