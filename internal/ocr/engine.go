package ocr

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// Line is one recognized text line with its confidence (0 when the engine
// mode carries none).
type Line struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type Config struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	TessdataDir string
	PSM         int // e.g., 6 is good for a uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default

	// TSVConfidence selects the TSV output mode (per-line confidence).
	// When false the plain text mode is used and confidence is 0.
	TSVConfidence bool
}

// Engine is the process-wide OCR handle. It is constructed once by the
// composition root and caches one recognizer per language configuration.
// Safe to reuse across sequential calls; callers wanting parallel throughput
// must serialize access or provision one Engine per worker.
type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger

	mu          sync.Mutex
	recognizers map[string]recognizer
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	return &Engine{
		cfg:         cfg,
		runner:      execRunner{logger: logger},
		logger:      logger,
		recognizers: make(map[string]recognizer),
	}
}

// Recognize returns the structured lines for an image, or an empty slice when
// the engine's output does not match the expected shape (graceful
// degradation, not a failure). Failing to execute the engine at all is an
// error and propagates.
func (e *Engine) Recognize(ctx context.Context, imagePath string) ([]Line, error) {
	rec := e.recognizerFor(e.cfg.Lang)

	pg, err := rec.Recognize(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	texts := pg.RecognizedTexts()
	if texts == nil {
		e.logger.Warn("ocr.recognize.shape_mismatch", "path", imagePath)
		return nil, nil
	}
	scores := pg.RecognizedScores()
	paired := len(scores) == len(texts)

	var lines []Line
	for i, t := range texts {
		t = strings.TrimSpace(cleanLine(t))
		if t == "" {
			continue
		}
		ln := Line{Text: t}
		if paired {
			ln.Confidence = scores[i]
		}
		lines = append(lines, ln)
	}

	e.logger.Debug("ocr.recognize.ok", "path", imagePath, "lines", len(lines), "lang", e.cfg.Lang)
	return lines, nil
}

func (e *Engine) recognizerFor(lang string) recognizer {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r, ok := e.recognizers[lang]; ok {
		return r
	}
	var r recognizer
	if e.cfg.TSVConfidence {
		r = tsvRecognizer{cfg: e.cfg, lang: lang, runner: e.runner}
	} else {
		r = plainRecognizer{cfg: e.cfg, lang: lang, runner: e.runner}
	}
	e.logger.Info("ocr.engine.init", "lang", lang, "tsv", e.cfg.TSVConfidence)
	e.recognizers[lang] = r
	return r
}

var (
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
)

// cleanLine collapses noisy intra-line whitespace. Conservative: never drops
// characters other than whitespace runs.
func cleanLine(s string) string {
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	return s
}
