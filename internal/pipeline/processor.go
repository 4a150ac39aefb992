package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/receiptdu/receiptdu/internal/common"
	"github.com/receiptdu/receiptdu/internal/entity"
	"github.com/receiptdu/receiptdu/internal/llm"
	"github.com/receiptdu/receiptdu/internal/ocr"
	"github.com/receiptdu/receiptdu/internal/rules"
)

// LineEngine is the OCR collaborator: image path in, structured lines out.
// An empty slice means the engine's output shape did not match (degradation,
// not failure).
type LineEngine interface {
	Recognize(ctx context.Context, imagePath string) ([]ocr.Line, error)
}

// Processor runs one receipt end-to-end: digest, OCR, heuristic candidates,
// grounded model extraction, fallback merge, flat record assembly.
// Synchronous and single-receipt; callers wanting throughput run one
// Processor per worker.
type Processor struct {
	logger    *slog.Logger
	engine    LineEngine
	extractor llm.FieldExtractor
}

func NewProcessor(engine LineEngine, extractor llm.FieldExtractor, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger, engine: engine, extractor: extractor}
}

// Process turns a photographed receipt into a flat, evidence-backed record
// ready for the upsert store. Any model-side failure aborts the receipt with
// nothing persisted; only an OCR output-shape mismatch degrades gracefully.
func (p *Processor) Process(ctx context.Context, imagePath string) (*entity.ReceiptRecord, error) {
	runID := uuid.New().String()
	startedAt := time.Now().UTC()

	if _, err := os.Stat(imagePath); err != nil {
		return nil, common.NewAppError(common.CodeSourceNotFound, imagePath, err)
	}

	sha, err := hashFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("digest source: %w", err)
	}

	p.logger.Info("pipeline.process.start",
		"run_id", runID, "path", imagePath, "source_sha", sha)

	// 1) OCR
	ocrLines, err := p.engine.Recognize(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("ocr extract: %w", err)
	}
	texts := make([]string, len(ocrLines))
	for i, ln := range ocrLines {
		texts[i] = ln.Text
	}
	lines := rules.NormalizeLines(texts)
	ocrText := strings.Join(lines, "\n")

	// 2) Rules
	cands := rules.BuildCandidates(lines)

	// 3) Grounded model extraction; fatal on any failure, nothing persisted.
	ex, _, err := p.extractor.ExtractFields(ctx, llm.Request{Lines: lines, Candidates: cands})
	if err != nil {
		p.logger.Error("pipeline.extract.failed", "run_id", runID, "error", err)
		return nil, err
	}

	// 4) Fallbacks fill extracted only; evidence is never back-filled.
	llm.MergeCandidates(ex, cands)

	// 5) Flat record
	rec, err := buildRecord(imagePath, sha, ocrLines, lines, ocrText, cands, ex, startedAt)
	if err != nil {
		return nil, err
	}

	p.logger.Info("pipeline.process.ok",
		"run_id", runID,
		"source_sha", sha,
		"lines", len(lines),
		"merchant", ex.Extracted["merchant"],
		"total", ex.Extracted["total"],
		"elapsed_ms", time.Since(startedAt).Milliseconds(),
	)
	return rec, nil
}

func buildRecord(
	imagePath, sha string,
	ocrLines []ocr.Line,
	lines []string,
	ocrText string,
	cands rules.CandidateSet,
	ex *llm.Extraction,
	startedAt time.Time,
) (*entity.ReceiptRecord, error) {
	ocrJSON, err := json.Marshal(map[string]any{
		"lines": ocrLinesJSON(ocrLines),
		"text":  ocrText,
	})
	if err != nil {
		return nil, fmt.Errorf("encode ocr_json: %w", err)
	}

	duJSON, err := ex.MarshalDoc()
	if err != nil {
		return nil, fmt.Errorf("encode du_json: %w", err)
	}

	metaJSON, err := json.Marshal(map[string]any{
		"source_path":     imagePath,
		"source_sha":      sha,
		"started_at":      startedAt.Format(time.RFC3339),
		"processed_at":    time.Now().UTC().Format(time.RFC3339),
		"ocr_line_count":  len(ocrLines),
		"rule_candidates": cands,
	})
	if err != nil {
		return nil, fmt.Errorf("encode meta_json: %w", err)
	}

	return &entity.ReceiptRecord{
		SourceSHA:   sha,
		SourcePath:  imagePath,
		Merchant:    stringField(ex.Extracted, "merchant"),
		ReceiptDate: stringField(ex.Extracted, "date"),
		TotalAmount: amountField(ex.Extracted, "total"),
		Currency:    stringField(ex.Extracted, "currency"),
		OCRText:     ocrText,
		OCRJSON:     ocrJSON,
		DUJSON:      duJSON,
		MetaJSON:    metaJSON,
	}, nil
}

func ocrLinesJSON(ocrLines []ocr.Line) []map[string]any {
	out := make([]map[string]any, len(ocrLines))
	for i, ln := range ocrLines {
		out[i] = map[string]any{"text": ln.Text, "confidence": ln.Confidence}
	}
	return out
}

func stringField(extracted map[string]any, key string) *string {
	s, ok := extracted[key].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

// amountField accepts either a model-provided number or a rule candidate's
// string form (possibly with thousands separators or a comma decimal).
func amountField(extracted map[string]any, key string) *float64 {
	switch v := extracted[key].(type) {
	case float64:
		return &v
	case string:
		if f, ok := rules.ParseAmount(v); ok {
			return &f
		}
	}
	return nil
}

// hashFile computes the SHA-256 content digest of the source image; this is
// the deduplication/idempotency key for the store.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
