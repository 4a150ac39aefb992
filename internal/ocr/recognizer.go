package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// RecognizedPage exposes the two accessors the pipeline needs from an engine
// result. Adapters implement it per underlying engine output mode, decided
// once at construction rather than probed per call.
type RecognizedPage interface {
	RecognizedTexts() []string
	RecognizedScores() []float64 // nil when the mode carries no confidence
}

// recognizer is one configured engine invocation strategy (per language).
type recognizer interface {
	Recognize(ctx context.Context, imagePath string) (RecognizedPage, error)
}

type page struct {
	texts  []string
	scores []float64
}

func (p page) RecognizedTexts() []string   { return p.texts }
func (p page) RecognizedScores() []float64 { return p.scores }

// tsvRecognizer runs tesseract in TSV mode and groups word rows into lines,
// averaging word confidence per line.
type tsvRecognizer struct {
	cfg    Config
	lang   string
	runner Runner
}

func (r tsvRecognizer) Recognize(ctx context.Context, imagePath string) (RecognizedPage, error) {
	args := r.baseArgs(imagePath)
	args = append(args, "tsv")

	out, errb, err := r.runner.Run(ctx, r.cfg.Tesseract, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract tsv: %w (%s)", err, truncate(string(errb), 512))
	}
	return parseTSV(string(out)), nil
}

func (r tsvRecognizer) baseArgs(imagePath string) []string {
	args := []string{imagePath, "stdout", "-l", r.lang}
	if r.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(r.cfg.PSM))
	}
	if r.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(r.cfg.OEM))
	}
	if r.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", r.cfg.TessdataDir)
	}
	return args
}

// parseTSV groups tesseract word rows (level 5) by page/block/paragraph/line.
// A body that does not look like TSV at all yields an empty page; the caller
// treats that as graceful degradation, not a failure.
func parseTSV(body string) page {
	rows := strings.Split(body, "\n")
	var p page

	type lineKey struct{ pg, blk, par, ln string }
	var cur lineKey
	var words []string
	var confSum float64
	var confN int

	flush := func() {
		if len(words) == 0 {
			return
		}
		p.texts = append(p.texts, strings.Join(words, " "))
		if confN > 0 {
			p.scores = append(p.scores, confSum/float64(confN)/100.0)
		} else {
			p.scores = append(p.scores, 0)
		}
		words, confSum, confN = nil, 0, 0
	}

	for i, row := range rows {
		if i == 0 || row == "" { // skip header
			continue
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		if cols[0] != "5" { // word level only
			continue
		}
		key := lineKey{cols[1], cols[2], cols[3], cols[4]}
		if key != cur {
			flush()
			cur = key
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		words = append(words, text)
		if v, err := strconv.ParseFloat(cols[10], 64); err == nil && v >= 0 {
			confSum += v
			confN++
		}
	}
	flush()

	if len(p.scores) != len(p.texts) {
		p.scores = nil
	}
	return p
}

// plainRecognizer runs tesseract in plain text mode; no per-line confidence.
type plainRecognizer struct {
	cfg    Config
	lang   string
	runner Runner
}

func (r plainRecognizer) Recognize(ctx context.Context, imagePath string) (RecognizedPage, error) {
	args := []string{imagePath, "stdout", "-l", r.lang}
	if r.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", r.cfg.TessdataDir)
	}

	out, errb, err := r.runner.Run(ctx, r.cfg.Tesseract, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 512))
	}
	return page{texts: strings.Split(string(out), "\n")}, nil
}
